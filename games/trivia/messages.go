/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import "time"

// Message types sent to clients.
const (
	TypeJoined       = "joined"
	TypeRoster       = "roster"
	TypeGameStarting = "game_starting"
	TypeRoundStart   = "round_start"
	TypeRoundResult  = "round_result"
	TypeWinner       = "winner"
	TypeAbandoned    = "abandoned"
	TypeError        = "error"
)

// Reasons attached to AbandonedMessage.
const (
	ReasonTooFewPlayers     = "too_few_players"
	ReasonOracleUnavailable = "oracle_unavailable"
	ReasonIdle              = "idle"
	ReasonShutdown          = "shutdown"
)

// JoinedMessage is sent only to the player that just joined.
type JoinedMessage struct {
	Type   string `json:"type"` // "joined"
	RoomID string `json:"room_id"`
	Player Player `json:"player"`
}

// RosterMessage is broadcast after every join and leave.
type RosterMessage struct {
	Type    string   `json:"type"` // "roster"
	RoomID  string   `json:"room_id"`
	Players []Player `json:"players"`
	IsReady bool     `json:"is_ready"`
}

type GameStartingMessage struct {
	Type      string `json:"type"` // "game_starting"
	RoomID    string `json:"room_id"`
	MaxRounds int    `json:"max_rounds"`
}

// RoundStartMessage carries the prompt for the round and the time at which
// unanswered players are auto-submitted.
type RoundStartMessage struct {
	Type      string    `json:"type"` // "round_start"
	RoomID    string    `json:"room_id"`
	Round     int       `json:"round"`
	MaxRounds int       `json:"max_rounds"`
	Prompt    string    `json:"prompt"`
	Deadline  time.Time `json:"deadline"`
}

type RatedAnswer struct {
	Player   Player  `json:"player"`
	Answer   string  `json:"answer"`
	Rating   float64 `json:"rating"`
	Departed bool    `json:"departed,omitempty"`
}

type RoundResultMessage struct {
	Type    string        `json:"type"` // "round_result"
	RoomID  string        `json:"room_id"`
	Round   int           `json:"round"`
	Prompt  string        `json:"prompt"`
	Answers []RatedAnswer `json:"answers"`
}

type WinnerMessage struct {
	Type      string     `json:"type"` // "winner"
	RoomID    string     `json:"room_id"`
	Winner    Player     `json:"winner"`
	Standings []Standing `json:"standings"`
}

// AbandonedMessage is the terminal failure notice for a room. No winner is
// computed for an abandoned game.
type AbandonedMessage struct {
	Type    string `json:"type"` // "abandoned"
	RoomID  string `json:"room_id"`
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// ErrorMessage is sent only to the client whose request failed.
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}
