/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=mocks/mock_contract.go -package=mocks

package trivia

import "context"

// PromptSource hands out one prompt per call. A room asks for maxRounds of
// them, one after another, as soon as it fills up.
type PromptSource interface {
	Prompt(ctx context.Context) (string, error)
}

// Rater scores a single answer to a prompt.
type Rater interface {
	Rate(ctx context.Context, prompt, answer string) (float64, error)
}

// Notifier carries outbound messages to connected players. Deliver must not
// block and must not call back into the Registry.
type Notifier interface {
	Deliver(playerIDs []string, msg any)
}
