/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"slices"
	"strings"
	"sync"

	"github.com/Seednode/promptparty/games/trivia"
)

const maxOracleResponse = 64 << 10

var errEmptyPrompt = errors.New("prompt service returned an empty prompt")

var builtinPrompts = []string{
	"Name a terrible thing to say at a job interview.",
	"What is the worst possible name for a cruise ship?",
	"Invent a new holiday and explain how people celebrate it.",
	"What would a cat's autobiography be titled?",
	"Describe the least popular ride at a theme park.",
	"What is the real reason dinosaurs went extinct?",
	"Pitch a reality show that should never be made.",
	"What does the fine print on a wizard's contract say?",
	"Name a snack that would be perfect for a long space voyage.",
	"What is the worst advice a fortune cookie could give?",
	"Describe your ideal superpower in exactly one sentence.",
	"What would aliens find most confusing about Earth?",
	"Give a motivational speech to a houseplant.",
	"What is the secret ingredient in grandma's famous soup?",
	"Come up with a slogan for a haunted hotel.",
	"What is a robot's favorite song?",
}

// bankPrompts deals prompts from a shuffled deck of the fixed list. When the
// deck runs out it is reshuffled with the most recently dealt half moved to
// the back, so consecutive draws do not repeat across the reshuffle.
type bankPrompts struct {
	prompts []string

	mu   sync.Mutex
	deck []int
	next int
}

func newBankPrompts(prompts []string) *bankPrompts {
	return &bankPrompts{prompts: prompts}
}

func (b *bankPrompts) Prompt(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.next >= len(b.deck) {
		b.reshuffleLocked()
	}

	prompt := b.prompts[b.deck[b.next]]
	b.next++

	return prompt, nil
}

func (b *bankPrompts) reshuffleLocked() {
	recent := make(map[int]bool)
	if n := len(b.deck); n > 0 {
		for _, i := range b.deck[n-n/2:] {
			recent[i] = true
		}
	}

	deck := rand.Perm(len(b.prompts))
	slices.SortStableFunc(deck, func(x, y int) int {
		switch {
		case recent[x] == recent[y]:
			return 0
		case recent[y]:
			return -1
		default:
			return 1
		}
	})

	b.deck = deck
	b.next = 0
}

// lengthRater scores answers by word count, so longer answers rate higher up
// to a cap of 10. Missing answers rate 0.
type lengthRater struct{}

func (lengthRater) Rate(ctx context.Context, _, answer string) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	answer = strings.TrimSpace(answer)
	if answer == "" || answer == trivia.NoResponse {
		return 0, nil
	}

	return float64(min(10, 1+len(strings.Fields(answer)))), nil
}

type promptResponse struct {
	Prompt string `json:"prompt"`
}

// httpPrompts fetches one prompt per GET request.
type httpPrompts struct {
	client *http.Client
	url    string
}

func (h *httpPrompts) Prompt(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	var out promptResponse
	if err := doJSON(h.client, req, &out); err != nil {
		return "", err
	}

	prompt := strings.TrimSpace(out.Prompt)
	if prompt == "" {
		return "", errEmptyPrompt
	}

	return prompt, nil
}

type rateRequest struct {
	Prompt string `json:"prompt"`
	Answer string `json:"answer"`
}

type rateResponse struct {
	Rating float64 `json:"rating"`
}

// httpRater posts each answer to a rating service.
type httpRater struct {
	client *http.Client
	url    string
}

func (h *httpRater) Rate(ctx context.Context, prompt, answer string) (float64, error) {
	body, err := json.Marshal(rateRequest{Prompt: prompt, Answer: answer})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	var out rateResponse
	if err := doJSON(h.client, req, &out); err != nil {
		return 0, err
	}

	return out.Rating, nil
}

func doJSON(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body := io.LimitReader(resp.Body, maxOracleResponse)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, body)

		return fmt.Errorf("%s %s: unexpected status %s", req.Method, req.URL.Redacted(), resp.Status)
	}

	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", req.Method, req.URL.Redacted(), err)
	}

	return nil
}

// newOracles picks the prompt source and rater for the configured URLs,
// falling back to the built-in ones.
func newOracles(cfg *Config) (trivia.PromptSource, trivia.Rater) {
	client := &http.Client{Timeout: cfg.oracleTimeout}

	var source trivia.PromptSource = newBankPrompts(builtinPrompts)
	if cfg.promptURL != "" {
		source = &httpPrompts{client: client, url: cfg.promptURL}
	}

	var rater trivia.Rater = lengthRater{}
	if cfg.rateURL != "" {
		rater = &httpRater{client: client, url: cfg.rateURL}
	}

	return source, rater
}
