/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Seednode/promptparty/games/trivia"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

const readWait = 3 * time.Second

type testServer struct {
	srv      *httptest.Server
	registry *trivia.Registry
}

func newTestServer(t *testing.T, cfg *Config) *testServer {
	t.Helper()

	return newTestServerWith(t, cfg, newGateway(cfg))
}

func newTestServerWith(t *testing.T, cfg *Config, gateway *Gateway) *testServer {
	t.Helper()

	errs := make(chan error, 64)
	mux, registry := newRouter(cfg, gateway, errs)
	srv := httptest.NewServer(mux)

	t.Cleanup(func() {
		registry.Close()
		srv.Close()
	})

	return &testServer{srv: srv, registry: registry}
}

func (ts *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(ts.srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

type frame struct {
	Type string `json:"type"`
	raw  []byte
}

// readUntil discards frames until one of type want arrives.
func readUntil(t *testing.T, conn *websocket.Conn, want string) frame {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readWait)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err, "waiting for %q", want)

		var f frame
		require.NoError(t, json.Unmarshal(data, &f))
		if f.Type == want {
			f.raw = data
			return f
		}
	}
}

func decode[T any](t *testing.T, f frame) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(f.raw, &out))
	return out
}

func send(t *testing.T, conn *websocket.Conn, msg ClientMessage) {
	t.Helper()

	require.NoError(t, conn.WriteJSON(msg))
}

func gameConfig() *Config {
	cfg := validConfig()
	cfg.capacity = 2
	cfg.rounds = 1
	cfg.turnTimeout = time.Minute
	cfg.oracleRetries = 0
	cfg.oracleBackoff = time.Millisecond
	cfg.oracleTimeout = time.Second
	return cfg
}

func TestGateway_FullGame(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t, gameConfig())

	ada := ts.dial(t)
	bo := ts.dial(t)

	send(t, ada, ClientMessage{Type: "join", DisplayName: "Ada"})
	joined := decode[trivia.JoinedMessage](t, readUntil(t, ada, trivia.TypeJoined))
	req.Equal("Ada", joined.Player.DisplayName)
	req.Equal(1, joined.Player.Seat)

	send(t, bo, ClientMessage{Type: "join", DisplayName: "Bo"})
	req.Equal(joined.RoomID, decode[trivia.JoinedMessage](t, readUntil(t, bo, trivia.TypeJoined)).RoomID)

	roster := decode[trivia.RosterMessage](t, readUntil(t, ada, trivia.TypeRoster))
	for !roster.IsReady {
		roster = decode[trivia.RosterMessage](t, readUntil(t, ada, trivia.TypeRoster))
	}
	req.Len(roster.Players, 2)

	start := decode[trivia.RoundStartMessage](t, readUntil(t, ada, trivia.TypeRoundStart))
	req.Equal(1, start.Round)
	req.Contains(builtinPrompts, start.Prompt)
	req.True(start.Deadline.After(time.Now()))
	readUntil(t, bo, trivia.TypeRoundStart)

	send(t, ada, ClientMessage{Type: "submit", RoomID: joined.RoomID, Answer: "a long and thoughtful answer"})
	send(t, bo, ClientMessage{Type: "submit", Answer: "short"})

	result := decode[trivia.RoundResultMessage](t, readUntil(t, bo, trivia.TypeRoundResult))
	req.Len(result.Answers, 2)
	req.Equal("Ada", result.Answers[0].Player.DisplayName)
	req.InDelta(6, result.Answers[0].Rating, 0.0001)
	req.InDelta(2, result.Answers[1].Rating, 0.0001)

	winner := decode[trivia.WinnerMessage](t, readUntil(t, bo, trivia.TypeWinner))
	req.Equal("Ada", winner.Winner.DisplayName)
	req.Len(winner.Standings, 2)

	snap, ok := ts.registry.Room(joined.RoomID)
	req.True(ok)
	req.Equal(trivia.StageWinnerAnnounced, snap.Stage)

	// A finished player can queue for the next game on the same socket.
	send(t, ada, ClientMessage{Type: "join", DisplayName: "Ada"})
	again := decode[trivia.JoinedMessage](t, readUntil(t, ada, trivia.TypeJoined))
	req.NotEqual(joined.RoomID, again.RoomID)
}

func TestGateway_Errors(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t, gameConfig())

	conn := ts.dial(t)

	send(t, conn, ClientMessage{Type: "submit", Answer: "too early"})
	msg := decode[trivia.ErrorMessage](t, readUntil(t, conn, trivia.TypeError))
	req.Equal(userMessage(trivia.ErrUnknownRoom), msg.Message)

	send(t, conn, ClientMessage{Type: "join", DisplayName: "   "})
	msg = decode[trivia.ErrorMessage](t, readUntil(t, conn, trivia.TypeError))
	req.Equal(userMessage(trivia.ErrInvalidName), msg.Message)

	send(t, conn, ClientMessage{Type: "join", DisplayName: "Ada"})
	joined := decode[trivia.JoinedMessage](t, readUntil(t, conn, trivia.TypeJoined))

	send(t, conn, ClientMessage{Type: "join", DisplayName: "Ada"})
	msg = decode[trivia.ErrorMessage](t, readUntil(t, conn, trivia.TypeError))
	req.Equal(userMessage(trivia.ErrAlreadyJoined), msg.Message)

	send(t, conn, ClientMessage{Type: "submit", RoomID: joined.RoomID, Answer: "still waiting"})
	msg = decode[trivia.ErrorMessage](t, readUntil(t, conn, trivia.TypeError))
	req.Equal(userMessage(trivia.ErrRoundClosed), msg.Message)
}

func TestGateway_Disconnect(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t, gameConfig())

	ada := ts.dial(t)
	bo := ts.dial(t)

	send(t, ada, ClientMessage{Type: "join", DisplayName: "Ada"})
	joined := decode[trivia.JoinedMessage](t, readUntil(t, ada, trivia.TypeJoined))
	send(t, bo, ClientMessage{Type: "join", DisplayName: "Bo"})
	readUntil(t, bo, trivia.TypeRoundStart)

	require.NoError(t, bo.Close())

	abandoned := decode[trivia.AbandonedMessage](t, readUntil(t, ada, trivia.TypeAbandoned))
	req.Equal(joined.RoomID, abandoned.RoomID)
	req.Equal(trivia.ReasonTooFewPlayers, abandoned.Reason)

	require.NoError(t, ada.Close())
	req.Eventually(func() bool {
		_, ok := ts.registry.Room(joined.RoomID)
		return !ok
	}, readWait, 10*time.Millisecond)
}

func TestRoutes(t *testing.T) {
	ts := newTestServer(t, gameConfig())

	tests := []struct {
		path        string
		status      int
		contentType string
		contains    string
	}{
		{"/", http.StatusOK, "text/html", "Prompt Party"},
		{"/assets/app.js", http.StatusOK, "text/javascript", "WebSocket"},
		{"/assets/app.css", http.StatusOK, "text/css", "main{"},
		{"/healthz", http.StatusOK, "text/plain", "Ok"},
		{"/version", http.StatusOK, "text/plain", "promptparty v" + releaseVersion},
		{"/robots.txt", http.StatusOK, "text/plain", "GPTBot"},
		{"/rooms", http.StatusOK, "application/json", "[]"},
		{"/rooms/room-missing", http.StatusNotFound, "application/json", "room not found"},
		{"/qr", http.StatusOK, "image/png", "PNG"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := require.New(t)

			resp, err := ts.srv.Client().Get(ts.srv.URL + tt.path)
			req.NoError(err)
			defer resp.Body.Close()

			req.Equal(tt.status, resp.StatusCode)
			req.Contains(resp.Header.Get("Content-Type"), tt.contentType)
			req.Equal("nosniff", resp.Header.Get("X-Content-Type-Options"))

			body, err := io.ReadAll(resp.Body)
			req.NoError(err)
			req.Contains(string(body), tt.contains)
		})
	}
}

func TestRoutes_RoomSnapshot(t *testing.T) {
	req := require.New(t)
	ts := newTestServer(t, gameConfig())

	snap, _, err := ts.registry.JoinOrCreate("p1", "Ada")
	req.NoError(err)

	resp, err := ts.srv.Client().Get(ts.srv.URL + "/rooms/" + snap.ID)
	req.NoError(err)
	defer resp.Body.Close()

	var got trivia.Snapshot
	req.NoError(json.NewDecoder(resp.Body).Decode(&got))
	req.Equal(snap.ID, got.ID)
	req.Equal(trivia.StageWaiting, got.Stage)
	req.Len(got.Players, 1)
}

func TestGateway_Keepalive(t *testing.T) {
	const wait = 150 * time.Millisecond

	fastPings := func(cfg *Config) *Gateway {
		g := newGateway(cfg)
		g.pongWait = wait
		g.pingPeriod = wait / 3
		return g
	}

	t.Run("a client that answers pings keeps its seat", func(t *testing.T) {
		req := require.New(t)
		cfg := gameConfig()
		ts := newTestServerWith(t, cfg, fastPings(cfg))

		conn := ts.dial(t)
		send(t, conn, ClientMessage{Type: "join", DisplayName: "Ada"})
		joined := decode[trivia.JoinedMessage](t, readUntil(t, conn, trivia.TypeJoined))

		// Reading lets the client's default ping handler reply with pongs.
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		time.Sleep(4 * wait)

		snap, ok := ts.registry.Room(joined.RoomID)
		req.True(ok)
		req.Len(snap.Players, 1)
	})

	t.Run("a silent client is dropped and leaves its room", func(t *testing.T) {
		req := require.New(t)
		cfg := gameConfig()
		ts := newTestServerWith(t, cfg, fastPings(cfg))

		conn := ts.dial(t)
		send(t, conn, ClientMessage{Type: "join", DisplayName: "Ada"})
		joined := decode[trivia.JoinedMessage](t, readUntil(t, conn, trivia.TypeJoined))

		// Never reading again means pings go unanswered.
		req.Eventually(func() bool {
			_, ok := ts.registry.Room(joined.RoomID)
			return !ok
		}, readWait, 10*time.Millisecond)
	})
}
