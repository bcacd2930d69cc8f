/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import "time"

const (
	DefaultCapacity      = 3
	DefaultMaxRounds     = 3
	DefaultTurnTimeout   = 30 * time.Second
	DefaultOracleRetries = 3
	DefaultOracleBackoff = 250 * time.Millisecond
	DefaultOracleTimeout = 10 * time.Second
)

// NoResponse is recorded for any player who did not answer before the turn
// timer expired, or who left mid-round.
const NoResponse = "no response"

// Settings parameterize every room a Registry creates.
type Settings struct {
	Capacity      int
	MaxRounds     int
	TurnTimeout   time.Duration
	OracleRetries int
	OracleBackoff time.Duration
	OracleTimeout time.Duration

	// Logf receives verbose log lines. Nil disables logging.
	Logf func(format string, args ...any)
}

func DefaultSettings() Settings {
	return Settings{
		Capacity:      DefaultCapacity,
		MaxRounds:     DefaultMaxRounds,
		TurnTimeout:   DefaultTurnTimeout,
		OracleRetries: DefaultOracleRetries,
		OracleBackoff: DefaultOracleBackoff,
		OracleTimeout: DefaultOracleTimeout,
	}
}

func (s Settings) withDefaults() Settings {
	if s.Capacity < 2 {
		s.Capacity = DefaultCapacity
	}
	if s.MaxRounds < 1 {
		s.MaxRounds = DefaultMaxRounds
	}
	if s.TurnTimeout <= 0 {
		s.TurnTimeout = DefaultTurnTimeout
	}
	if s.OracleRetries < 0 {
		s.OracleRetries = 0
	}
	if s.OracleBackoff <= 0 {
		s.OracleBackoff = DefaultOracleBackoff
	}
	return s
}

func (s Settings) logf(format string, args ...any) {
	if s.Logf == nil {
		return
	}
	s.Logf(format, args...)
}
