/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Seednode/promptparty/games/trivia"
	"github.com/stretchr/testify/require"
)

func TestHTTPPrompts(t *testing.T) {
	t.Run("returns the trimmed prompt", func(t *testing.T) {
		req := require.New(t)

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req.Equal(http.MethodGet, r.Method)
			_, _ = w.Write([]byte(`{"prompt": "  Name a fruit.  "}`))
		}))
		defer srv.Close()

		src := &httpPrompts{client: srv.Client(), url: srv.URL}
		prompt, err := src.Prompt(context.Background())
		req.NoError(err)
		req.Equal("Name a fruit.", prompt)
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "busy", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		src := &httpPrompts{client: srv.Client(), url: srv.URL}
		_, err := src.Prompt(context.Background())
		require.ErrorContains(t, err, "503")
	})

	t.Run("empty prompt is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"prompt": ""}`))
		}))
		defer srv.Close()

		src := &httpPrompts{client: srv.Client(), url: srv.URL}
		_, err := src.Prompt(context.Background())
		require.ErrorIs(t, err, errEmptyPrompt)
	})

	t.Run("honors the context deadline", func(t *testing.T) {
		done := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-done:
			case <-r.Context().Done():
			}
		}))
		defer srv.Close()
		defer close(done)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		src := &httpPrompts{client: srv.Client(), url: srv.URL}
		_, err := src.Prompt(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestHTTPRater(t *testing.T) {
	t.Run("posts prompt and answer", func(t *testing.T) {
		req := require.New(t)

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			req.Equal(http.MethodPost, r.Method)
			req.Equal("application/json", r.Header.Get("Content-Type"))

			var body rateRequest
			req.NoError(json.NewDecoder(r.Body).Decode(&body))
			req.Equal("Name a fruit.", body.Prompt)
			req.Equal("durian", body.Answer)

			_, _ = w.Write([]byte(`{"rating": 7.5}`))
		}))
		defer srv.Close()

		rater := &httpRater{client: srv.Client(), url: srv.URL}
		rating, err := rater.Rate(context.Background(), "Name a fruit.", "durian")
		req.NoError(err)
		req.InDelta(7.5, rating, 0.0001)
	})

	t.Run("malformed body is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		}))
		defer srv.Close()

		rater := &httpRater{client: srv.Client(), url: srv.URL}
		_, err := rater.Rate(context.Background(), "p", "a")
		require.ErrorContains(t, err, "decode response")
	})
}

func TestBuiltinOracles(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	src := newBankPrompts(builtinPrompts)
	prompt, err := src.Prompt(ctx)
	req.NoError(err)
	req.Contains(builtinPrompts, prompt)

	var rater lengthRater
	tests := []struct {
		answer string
		want   float64
	}{
		{"", 0},
		{trivia.NoResponse, 0},
		{"banana", 2},
		{"a ripe banana", 4},
		{"one two three four five six seven eight nine ten eleven", 10},
	}
	for _, tt := range tests {
		got, err := rater.Rate(ctx, prompt, tt.answer)
		req.NoError(err)
		req.InDelta(tt.want, got, 0.0001, "answer %q", tt.answer)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = rater.Rate(cancelled, prompt, "banana")
	req.ErrorIs(err, context.Canceled)
}

func TestBankPrompts_NoRepeats(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	src := newBankPrompts(builtinPrompts)
	n := len(builtinPrompts)

	drawn := make([]string, 0, 3*n)
	for range 3 * n {
		prompt, err := src.Prompt(ctx)
		req.NoError(err)
		drawn = append(drawn, prompt)
	}

	// Each full pass deals every prompt exactly once.
	for pass := range 3 {
		req.ElementsMatch(builtinPrompts, drawn[pass*n:(pass+1)*n])
	}

	// Any run of half the bank stays distinct, even across a reshuffle.
	window := n / 2
	for start := 0; start+window <= len(drawn); start++ {
		seen := make(map[string]bool, window)
		for _, p := range drawn[start : start+window] {
			req.False(seen[p], "prompt %q repeated within draws %d..%d", p, start, start+window-1)
			seen[p] = true
		}
	}
}

func TestNewOracles(t *testing.T) {
	req := require.New(t)

	cfg := validConfig()
	source, rater := newOracles(cfg)
	req.IsType(&bankPrompts{}, source)
	req.IsType(lengthRater{}, rater)

	cfg.promptURL = "http://localhost:9000/prompt"
	cfg.rateURL = "http://localhost:9000/rate"
	source, rater = newOracles(cfg)
	req.IsType(&httpPrompts{}, source)
	req.IsType(&httpRater{}, rater)
}
