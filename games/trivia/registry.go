/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// JoinRequest is validated before a player is placed in a room.
type JoinRequest struct {
	PlayerID    string `validate:"required"`
	DisplayName string `validate:"required,max=32"`
}

// Registry owns every active room. Joins and leaves are serialized on mu, so
// two joiners can never both claim the last seat of the same room.
type Registry struct {
	settings Settings
	source   PromptSource
	rater    Rater
	notify   Notifier
	validate *validator.Validate

	mu    sync.RWMutex
	rooms map[string]*Room
	order []string          // room ids, oldest first
	seats map[string]string // player id -> room id
}

func NewRegistry(s Settings, source PromptSource, rater Rater, notify Notifier) *Registry {
	return &Registry{
		settings: s.withDefaults(),
		source:   source,
		rater:    rater,
		notify:   notify,
		validate: validator.New(),
		rooms:    make(map[string]*Room),
		seats:    make(map[string]string),
	}
}

// JoinOrCreate seats the player in the first room with a free seat, creating
// a room when none has one. A player whose previous game has ended is moved
// out of that room first.
func (rg *Registry) JoinOrCreate(playerID, displayName string) (Snapshot, Player, error) {
	req := JoinRequest{
		PlayerID:    playerID,
		DisplayName: strings.TrimSpace(displayName),
	}
	if err := rg.validate.Struct(req); err != nil {
		return Snapshot{}, Player{}, fmt.Errorf("%w: %v", ErrInvalidName, err)
	}

	rg.mu.Lock()
	defer rg.mu.Unlock()

	if roomID, ok := rg.seats[playerID]; ok {
		current := rg.rooms[roomID]
		if current != nil && !current.terminal() {
			return Snapshot{}, Player{}, fmt.Errorf("%w: %s is in room %s", ErrAlreadyJoined, playerID, roomID)
		}
		if _, err := rg.leaveLocked(playerID); err != nil && !errors.Is(err, ErrUnknownPlayer) {
			return Snapshot{}, Player{}, err
		}
	}

	room := rg.firstFitLocked()
	if room == nil {
		room = rg.createLocked()
	}

	player, err := room.join(req.PlayerID, req.DisplayName)
	if err != nil {
		rg.settings.logf("GAMES: Rejected %s from %s: %v", playerID, room.ID(), err)
		return Snapshot{}, Player{}, err
	}
	rg.seats[playerID] = room.ID()

	return room.Snapshot(), player, nil
}

func (rg *Registry) firstFitLocked() *Room {
	for _, id := range rg.order {
		if room := rg.rooms[id]; room.joinable() {
			return room
		}
	}

	return nil
}

func (rg *Registry) createLocked() *Room {
	id := "room-" + uuid.NewString()
	room := newRoom(id, rg.settings, rg.source, rg.rater, rg.notify)

	rg.rooms[id] = room
	rg.order = append(rg.order, id)

	rg.settings.logf("GAMES: Created room %s", id)

	return room
}

// Leave removes the player from whichever room holds them. The room is
// deleted once its last player is gone.
func (rg *Registry) Leave(playerID string) (LeaveResult, error) {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	return rg.leaveLocked(playerID)
}

func (rg *Registry) leaveLocked(playerID string) (LeaveResult, error) {
	roomID, ok := rg.seats[playerID]
	if !ok {
		return LeaveResult{}, fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID)
	}
	delete(rg.seats, playerID)

	room, ok := rg.rooms[roomID]
	if !ok {
		return LeaveResult{}, fmt.Errorf("%w: %s", ErrUnknownRoom, roomID)
	}

	res, err := room.leave(playerID)
	if err != nil {
		return LeaveResult{}, err
	}

	if res.Deleted {
		rg.deleteLocked(roomID)
	}

	return res, nil
}

func (rg *Registry) deleteLocked(roomID string) {
	delete(rg.rooms, roomID)
	rg.order = slices.DeleteFunc(rg.order, func(id string) bool {
		return id == roomID
	})

	rg.settings.logf("GAMES: Deleted room %s", roomID)
}

// Submit hands an answer to the named room. An empty roomID means the room
// the player is seated in.
func (rg *Registry) Submit(playerID, roomID, answer string) error {
	rg.mu.RLock()
	if roomID == "" {
		roomID = rg.seats[playerID]
	}
	room, ok := rg.rooms[roomID]
	rg.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownRoom, roomID)
	}

	return room.Submit(playerID, answer)
}

func (rg *Registry) Room(roomID string) (Snapshot, bool) {
	rg.mu.RLock()
	room, ok := rg.rooms[roomID]
	rg.mu.RUnlock()

	if !ok {
		return Snapshot{}, false
	}

	return room.Snapshot(), true
}

// Snapshots lists every room, oldest first.
func (rg *Registry) Snapshots() []Snapshot {
	rg.mu.RLock()
	defer rg.mu.RUnlock()

	return lo.Map(rg.order, func(id string, _ int) Snapshot {
		return rg.rooms[id].Snapshot()
	})
}

// Reap closes and removes rooms that have seen no activity for idle.
func (rg *Registry) Reap(idle time.Duration) int {
	cutoff := time.Now().Add(-idle)

	rg.mu.Lock()
	defer rg.mu.Unlock()

	reaped := 0
	for _, id := range slices.Clone(rg.order) {
		room := rg.rooms[id]
		if !room.idleSince().Before(cutoff) {
			continue
		}

		for _, playerID := range room.close(ReasonIdle) {
			delete(rg.seats, playerID)
		}
		rg.deleteLocked(id)
		reaped++
	}

	return reaped
}

// Run reaps idle rooms until ctx is done.
func (rg *Registry) Run(ctx context.Context, idle time.Duration) {
	if idle <= 0 {
		return
	}

	ticker := time.NewTicker(idle / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := rg.Reap(idle); n > 0 {
				rg.settings.logf("GAMES: Reaped %d idle room(s)", n)
			}
		}
	}
}

// Close ends every room.
func (rg *Registry) Close() {
	rg.mu.Lock()
	defer rg.mu.Unlock()

	for _, id := range slices.Clone(rg.order) {
		rg.rooms[id].close(ReasonShutdown)
		rg.deleteLocked(id)
	}
	clear(rg.seats)
}
