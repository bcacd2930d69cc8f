package trivia_test

import (
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/Seednode/promptparty/games/trivia"
	"github.com/Seednode/promptparty/games/trivia/mocks"
	"go.uber.org/mock/gomock"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type delivery struct {
	to  []string
	msg any
}

// recorder is a Notifier that keeps every delivery for later inspection.
type recorder struct {
	mu         sync.Mutex
	deliveries []delivery
}

func (r *recorder) Deliver(playerIDs []string, msg any) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.deliveries = append(r.deliveries, delivery{to: slices.Clone(playerIDs), msg: msg})
}

// typesFor lists, in order, the message types delivered to playerID.
func (r *recorder) typesFor(playerID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var types []string
	for _, d := range r.deliveries {
		if slices.Contains(d.to, playerID) {
			types = append(types, typeOf(d.msg))
		}
	}

	return types
}

func (r *recorder) count(msgType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, d := range r.deliveries {
		if typeOf(d.msg) == msgType {
			n++
		}
	}

	return n
}

func messagesOf[T any](r *recorder) []T {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []T
	for _, d := range r.deliveries {
		if m, ok := d.msg.(T); ok {
			out = append(out, m)
		}
	}

	return out
}

func typeOf(msg any) string {
	switch m := msg.(type) {
	case trivia.JoinedMessage:
		return m.Type
	case trivia.RosterMessage:
		return m.Type
	case trivia.GameStartingMessage:
		return m.Type
	case trivia.RoundStartMessage:
		return m.Type
	case trivia.RoundResultMessage:
		return m.Type
	case trivia.WinnerMessage:
		return m.Type
	case trivia.AbandonedMessage:
		return m.Type
	default:
		return "unknown"
	}
}

func testSettings() trivia.Settings {
	return trivia.Settings{
		Capacity:      3,
		MaxRounds:     3,
		TurnTimeout:   time.Minute,
		OracleRetries: 1,
		OracleBackoff: time.Millisecond,
		OracleTimeout: time.Second,
	}
}

type fixture struct {
	registry *trivia.Registry
	source   *mocks.MockPromptSource
	rater    *mocks.MockRater
	notes    *recorder
}

func newFixture(t *testing.T, s trivia.Settings) *fixture {
	t.Helper()

	ctrl := gomock.NewController(t)
	f := &fixture{
		source: mocks.NewMockPromptSource(ctrl),
		rater:  mocks.NewMockRater(ctrl),
		notes:  &recorder{},
	}
	f.registry = trivia.NewRegistry(s, f.source, f.rater, f.notes)
	t.Cleanup(f.registry.Close)

	return f
}

// steadyOracles makes every prompt and every rating succeed.
func (f *fixture) steadyOracles(rating float64) {
	f.source.EXPECT().Prompt(gomock.Any()).Return("say something", nil).AnyTimes()
	f.rater.EXPECT().Rate(gomock.Any(), gomock.Any(), gomock.Any()).Return(rating, nil).AnyTimes()
}

func (f *fixture) stage(roomID string) (trivia.Stage, int) {
	snap, ok := f.registry.Room(roomID)
	if !ok {
		return "", 0
	}
	return snap.Stage, snap.Round
}

func (f *fixture) inStage(roomID string, stage trivia.Stage, round int) func() bool {
	return func() bool {
		s, r := f.stage(roomID)
		return s == stage && r == round
	}
}
