/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

type Stage string

const (
	StageWaiting         Stage = "waiting"
	StageReady           Stage = "ready"
	StageRoundActive     Stage = "round_active"
	StageRating          Stage = "rating"
	StageRoundComplete   Stage = "round_complete"
	StageWinnerAnnounced Stage = "winner_announced"
	StageAbandoned       Stage = "abandoned"
)

// Terminal reports whether the room has finished its game, one way or another.
func (s Stage) Terminal() bool {
	return s == StageWinnerAnnounced || s == StageAbandoned
}

// Player is owned by the Room it joined. Seats run from 1 to capacity.
type Player struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Seat        int    `json:"seat"`
}

// Snapshot is a copy of a room's state, safe to hand to other goroutines.
type Snapshot struct {
	ID         string               `json:"id"`
	Stage      Stage                `json:"stage"`
	Round      int                  `json:"round"`
	MaxRounds  int                  `json:"max_rounds"`
	Capacity   int                  `json:"capacity"`
	Players    []Player             `json:"players"`
	Answered   int                  `json:"answered"`
	Ratings    map[string][]float64 `json:"ratings,omitempty"`
	WinnerID   string               `json:"winner_id,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	LastActive time.Time            `json:"last_active"`
}

// LeaveResult describes a room after one of its players left. When Deleted is
// set the room had no players left and no longer exists.
type LeaveResult struct {
	RoomID  string
	Players []Player
	IsReady bool
	Deleted bool
}

type ballot struct {
	player   Player
	answer   string
	departed bool
}

// Room runs one game. Every mutation happens under mu; the only work done
// outside it is waiting on the prompt source and the rater, whose results are
// applied only if the room is still in the stage and round that asked for
// them.
type Room struct {
	id       string
	settings Settings
	source   PromptSource
	rater    Rater
	notify   Notifier

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	players    map[string]*Player
	stage      Stage
	round      int
	prompts    []string
	pending    map[string]string
	forfeits   map[string]ballot
	ratings    map[string][]float64
	winnerID   string
	latch      roundLatch
	timer      *time.Timer
	prepCancel context.CancelFunc
	prepEpoch  int
	createdAt  time.Time
	lastActive time.Time
}

func newRoom(id string, s Settings, source PromptSource, rater Rater, notify Notifier) *Room {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()

	return &Room{
		id:         id,
		settings:   s,
		source:     source,
		rater:      rater,
		notify:     notify,
		ctx:        ctx,
		cancel:     cancel,
		players:    make(map[string]*Player, s.Capacity),
		stage:      StageWaiting,
		pending:    make(map[string]string, s.Capacity),
		forfeits:   make(map[string]ballot),
		ratings:    make(map[string][]float64, s.Capacity),
		createdAt:  now,
		lastActive: now,
	}
}

func (r *Room) ID() string {
	return r.id
}

func (r *Room) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.snapshotLocked()
}

func (r *Room) snapshotLocked() Snapshot {
	ratings := make(map[string][]float64, len(r.ratings))
	for id, rs := range r.ratings {
		ratings[id] = slices.Clone(rs)
	}

	return Snapshot{
		ID:         r.id,
		Stage:      r.stage,
		Round:      r.round,
		MaxRounds:  r.settings.MaxRounds,
		Capacity:   r.settings.Capacity,
		Players:    r.seatedLocked(),
		Answered:   len(r.pending),
		Ratings:    ratings,
		WinnerID:   r.winnerID,
		CreatedAt:  r.createdAt,
		LastActive: r.lastActive,
	}
}

func (r *Room) joinable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.stage == StageWaiting && len(r.players) < r.settings.Capacity
}

func (r *Room) terminal() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.stage.Terminal()
}

func (r *Room) idleSince() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.lastActive
}

// join seats a player. The capacity check and the insert happen under the
// same lock, so a room can never be over-filled.
func (r *Room) join(playerID, displayName string) (Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stage != StageWaiting || len(r.players) >= r.settings.Capacity {
		return Player{}, fmt.Errorf("%w: room %s is %s with %d/%d players",
			ErrJoinRejected, r.id, r.stage, len(r.players), r.settings.Capacity)
	}

	p := &Player{
		ID:          playerID,
		DisplayName: displayName,
		Seat:        r.freeSeatLocked(),
	}
	r.players[playerID] = p
	r.touchLocked()

	r.settings.logf("GAMES: Player %q joined %s in seat %d", displayName, r.id, p.Seat)

	r.notify.Deliver([]string{playerID}, JoinedMessage{
		Type:   TypeJoined,
		RoomID: r.id,
		Player: *p,
	})
	r.broadcastRosterLocked()

	if len(r.players) == r.settings.Capacity {
		r.prepareLocked()
	}

	return *p, nil
}

// freeSeatLocked returns the lowest seat not currently taken.
func (r *Room) freeSeatLocked() int {
	taken := make(map[int]bool, len(r.players))
	for _, p := range r.players {
		taken[p.Seat] = true
	}

	seat := 1
	for taken[seat] {
		seat++
	}

	return seat
}

// prepareLocked moves a full room to ready and starts fetching prompts.
func (r *Room) prepareLocked() {
	r.stage = StageReady
	r.prepEpoch++

	ctx, cancel := context.WithCancel(r.ctx)
	r.prepCancel = cancel

	r.broadcastLocked(GameStartingMessage{
		Type:      TypeGameStarting,
		RoomID:    r.id,
		MaxRounds: r.settings.MaxRounds,
	})

	go r.fetchPrompts(ctx, r.prepEpoch)
}

// fetchPrompts asks for every prompt in turn. A single failure, after
// retries, abandons the room; a partial prompt set is never used.
func (r *Room) fetchPrompts(ctx context.Context, epoch int) {
	prompts := make([]string, 0, r.settings.MaxRounds)

	var fetchErr error
	for range r.settings.MaxRounds {
		p, err := retry(ctx, r.settings, r.source.Prompt)
		if err != nil {
			fetchErr = err
			break
		}
		prompts = append(prompts, p)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stage != StageReady || r.prepEpoch != epoch {
		return
	}

	r.prepCancel()
	r.prepCancel = nil

	if fetchErr != nil {
		r.abandonLocked(ReasonOracleUnavailable, fetchErr)
		return
	}

	r.prompts = prompts
	r.round = 1
	r.beginRoundLocked()
}

func (r *Room) beginRoundLocked() {
	r.stage = StageRoundActive
	r.pending = make(map[string]string, len(r.players))
	r.forfeits = make(map[string]ballot)
	r.latch.reset()

	round := r.round
	deadline := time.Now().Add(r.settings.TurnTimeout)
	r.timer = time.AfterFunc(r.settings.TurnTimeout, func() {
		r.expire(round)
	})

	r.settings.logf("GAMES: Round %d/%d started in %s", round, r.settings.MaxRounds, r.id)

	r.broadcastLocked(RoundStartMessage{
		Type:      TypeRoundStart,
		RoomID:    r.id,
		Round:     round,
		MaxRounds: r.settings.MaxRounds,
		Prompt:    r.prompts[round-1],
		Deadline:  deadline,
	})
}

// Submit records a player's answer for the current round. A second answer
// from the same player replaces the first.
func (r *Room) Submit(playerID, answer string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[playerID]; !ok {
		r.settings.logf("GAMES: Dropped answer from %s in %s: not seated", playerID, r.id)
		return fmt.Errorf("%w: %s is not seated in room %s", ErrInvalidSubmission, playerID, r.id)
	}

	if r.stage != StageRoundActive {
		return fmt.Errorf("%w: room %s is %s", ErrRoundClosed, r.id, r.stage)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = NoResponse
	}

	r.pending[playerID] = answer
	r.touchLocked()

	r.checkRoundLocked()

	return nil
}

// expire auto-submits NoResponse for everyone still missing an answer. It is
// a no-op if the round it was armed for has already closed.
func (r *Room) expire(round int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stage != StageRoundActive || r.round != round {
		return
	}

	missing := 0
	for id := range r.players {
		if _, ok := r.pending[id]; !ok {
			r.pending[id] = NoResponse
			missing++
		}
	}

	r.settings.logf("GAMES: Turn timer expired in %s round %d (%d unanswered)", r.id, round, missing)

	r.checkRoundLocked()
}

// checkRoundLocked closes the round once every seated player has answered.
func (r *Room) checkRoundLocked() {
	if !r.latch.trip(len(r.pending), len(r.players)) {
		return
	}

	r.stopTimerLocked()
	r.stage = StageRating

	ballots := r.ballotsLocked()
	prompt := r.prompts[r.round-1]

	go r.rateRound(r.round, prompt, ballots)
}

// ballotsLocked lists seated answers then forfeits, each in seat order.
func (r *Room) ballotsLocked() []ballot {
	ballots := lo.Map(r.seatedLocked(), func(p Player, _ int) ballot {
		return ballot{player: p, answer: r.pending[p.ID]}
	})

	departed := lo.Values(r.forfeits)
	slices.SortFunc(departed, func(a, b ballot) int {
		return a.player.Seat - b.player.Seat
	})

	return append(ballots, departed...)
}

// rateRound fans every answer out to the rater and waits for all of them. The
// first failure cancels the rest and abandons the room.
func (r *Room) rateRound(round int, prompt string, ballots []ballot) {
	ratings := make([]float64, len(ballots))

	g, ctx := errgroup.WithContext(r.ctx)
	for i, b := range ballots {
		g.Go(func() error {
			v, err := retry(ctx, r.settings, func(ctx context.Context) (float64, error) {
				return r.rater.Rate(ctx, prompt, b.answer)
			})
			if err != nil {
				return fmt.Errorf("rating %s: %w", b.player.ID, err)
			}
			ratings[i] = v

			return nil
		})
	}
	err := g.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stage != StageRating || r.round != round {
		return
	}

	if err != nil {
		r.abandonLocked(ReasonOracleUnavailable, err)
		return
	}

	r.recordRoundLocked(prompt, ballots, ratings)
}

func (r *Room) recordRoundLocked(prompt string, ballots []ballot, ratings []float64) {
	for i, b := range ballots {
		r.ratings[b.player.ID] = append(r.ratings[b.player.ID], ratings[i])
	}

	answers := lo.Map(ballots, func(b ballot, i int) RatedAnswer {
		return RatedAnswer{
			Player:   b.player,
			Answer:   b.answer,
			Rating:   ratings[i],
			Departed: b.departed,
		}
	})

	r.pending = make(map[string]string, len(r.players))
	r.forfeits = make(map[string]ballot)
	r.stage = StageRoundComplete
	r.touchLocked()

	r.broadcastLocked(RoundResultMessage{
		Type:    TypeRoundResult,
		RoomID:  r.id,
		Round:   r.round,
		Prompt:  prompt,
		Answers: answers,
	})

	if r.round >= r.settings.MaxRounds {
		r.announceWinnerLocked()
		return
	}

	r.round++
	r.beginRoundLocked()
}

func (r *Room) announceWinnerLocked() {
	standings := Standings(r.seatedLocked(), r.ratings)

	winner, ok := Winner(standings)
	r.stage = StageWinnerAnnounced
	if !ok {
		return
	}
	r.winnerID = winner.Player.ID

	r.settings.logf("GAMES: %q won %s with %.2f", winner.Player.DisplayName, r.id, winner.Average)

	r.broadcastLocked(WinnerMessage{
		Type:      TypeWinner,
		RoomID:    r.id,
		Winner:    winner.Player,
		Standings: standings,
	})
}

// leave removes a player. Mid-round, the departed player is treated as having
// answered NoResponse (or keeps an answer already given) and the round is
// re-checked against the smaller roster. Fewer than two players left in a
// game in progress abandons it.
func (r *Room) leave(playerID string) (LeaveResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[playerID]
	if !ok {
		return LeaveResult{}, fmt.Errorf("%w: %s in room %s", ErrUnknownPlayer, playerID, r.id)
	}
	delete(r.players, playerID)
	r.touchLocked()

	r.settings.logf("GAMES: Player %q left %s during %s", p.DisplayName, r.id, r.stage)

	if len(r.players) == 0 {
		r.shutdownLocked()
		return LeaveResult{RoomID: r.id, Deleted: true}, nil
	}

	r.broadcastRosterLocked()

	switch r.stage {
	case StageReady:
		if r.prepCancel != nil {
			r.prepCancel()
			r.prepCancel = nil
		}
		r.stage = StageWaiting
	case StageRoundActive:
		answer, answered := r.pending[playerID]
		if !answered {
			answer = NoResponse
		}
		delete(r.pending, playerID)
		r.forfeits[playerID] = ballot{player: *p, answer: answer, departed: true}

		if len(r.players) < 2 {
			r.abandonLocked(ReasonTooFewPlayers, ErrRoomAbandoned)
			break
		}
		r.checkRoundLocked()
	case StageRating:
		if len(r.players) < 2 {
			r.abandonLocked(ReasonTooFewPlayers, ErrRoomAbandoned)
		}
	}

	return LeaveResult{
		RoomID:  r.id,
		Players: r.seatedLocked(),
		IsReady: r.isReadyLocked(),
	}, nil
}

// close ends the room for good, telling anyone still seated in an unfinished
// game why. It returns the ids of the players that were seated.
func (r *Room) close(reason string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids := lo.Keys(r.players)

	// A finished game keeps its result; only games in progress are abandoned.
	if len(ids) > 0 && !r.stage.Terminal() {
		r.abandonLocked(reason, ErrRoomAbandoned)
	}
	r.shutdownLocked()

	return ids
}

func (r *Room) abandonLocked(reason string, cause error) {
	r.stopTimerLocked()
	if r.prepCancel != nil {
		r.prepCancel()
		r.prepCancel = nil
	}
	r.stage = StageAbandoned
	r.cancel()

	r.settings.logf("GAMES: Abandoned %s (%s): %v", r.id, reason, cause)

	r.broadcastLocked(AbandonedMessage{
		Type:    TypeAbandoned,
		RoomID:  r.id,
		Reason:  reason,
		Message: "The game could not continue.",
	})
}

func (r *Room) shutdownLocked() {
	r.stopTimerLocked()
	if r.prepCancel != nil {
		r.prepCancel()
		r.prepCancel = nil
	}
	r.cancel()
}

func (r *Room) stopTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Room) touchLocked() {
	r.lastActive = time.Now()
}

func (r *Room) isReadyLocked() bool {
	return len(r.players) == r.settings.Capacity
}

// seatedLocked returns copies of the seated players in seat order.
func (r *Room) seatedLocked() []Player {
	players := lo.MapToSlice(r.players, func(_ string, p *Player) Player {
		return *p
	})
	slices.SortFunc(players, func(a, b Player) int {
		return a.Seat - b.Seat
	})

	return players
}

func (r *Room) broadcastRosterLocked() {
	r.broadcastLocked(RosterMessage{
		Type:    TypeRoster,
		RoomID:  r.id,
		Players: r.seatedLocked(),
		IsReady: r.isReadyLocked(),
	})
}

func (r *Room) broadcastLocked(msg any) {
	if len(r.players) == 0 {
		return
	}
	r.notify.Deliver(lo.Keys(r.players), msg)
}
