/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"sync"
	"time"

	"github.com/Seednode/promptparty/games/trivia"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	maxClientMessage = 4096
	sendBuffer       = 16
)

// A client that misses pongs for pongWait is treated as disconnected.
const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// ClientMessage is any frame a browser sends over the socket.
type ClientMessage struct {
	Type        string `json:"type"`                   // "join", "submit"
	DisplayName string `json:"display_name,omitempty"` // join
	RoomID      string `json:"room_id,omitempty"`      // submit
	Answer      string `json:"answer,omitempty"`       // submit
}

type Client struct {
	conn *websocket.Conn
	send chan any
	id   string
}

// Gateway maps player ids to live connections and relays room events to
// them. Each connection is one player for as long as it stays open.
type Gateway struct {
	cfg      *Config
	registry *trivia.Registry

	pongWait   time.Duration
	pingPeriod time.Duration

	mu      sync.Mutex
	clients map[string]*Client
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func newGateway(cfg *Config) *Gateway {
	return &Gateway{
		cfg:        cfg,
		pongWait:   pongWait,
		pingPeriod: pingPeriod,
		clients:    make(map[string]*Client),
	}
}

// Deliver queues msg for each connected player. A client whose buffer is
// full is dropped rather than stalling the room.
func (g *Gateway) Deliver(playerIDs []string, msg any) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, id := range playerIDs {
		g.queueLocked(id, msg)
	}
}

func (g *Gateway) queueLocked(id string, msg any) {
	c, ok := g.clients[id]
	if !ok {
		return
	}

	select {
	case c.send <- msg:
	default:
		logf(g.cfg, "ERROR: Dropping slow client %s", id)
		delete(g.clients, id)
		close(c.send)
	}
}

func (g *Gateway) reply(c *Client, msg any) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.queueLocked(c.id, msg)
}

func (g *Gateway) register(c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.clients[c.id] = c
}

func (g *Gateway) unregister(c *Client) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if current, ok := g.clients[c.id]; ok && current == c {
		delete(g.clients, c.id)
		close(c.send)
	}
}

func (g *Gateway) handle(c *Client, msg ClientMessage) {
	var err error

	switch msg.Type {
	case "join":
		var snap trivia.Snapshot
		snap, _, err = g.registry.JoinOrCreate(c.id, msg.DisplayName)
		if err == nil {
			logf(g.cfg, "GAMES: %s joined %s (%d/%d)", c.id, snap.ID, len(snap.Players), snap.Capacity)
		}
	case "submit":
		err = g.registry.Submit(c.id, msg.RoomID, msg.Answer)
	default:
		return
	}

	if err != nil {
		logf(g.cfg, "GAMES: Rejected %s from %s: %v", msg.Type, c.id, err)

		g.reply(c, trivia.ErrorMessage{
			Type:    trivia.TypeError,
			Message: userMessage(err),
		})
	}
}

func serveWS(cfg *Config, g *Gateway) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: Websocket upgrade for %s failed: %v", realIP(r), err)

			return
		}

		client := &Client{
			conn: conn,
			send: make(chan any, sendBuffer),
			id:   uuid.NewString(),
		}

		g.register(client)

		logf(cfg, "SERVE: Player %s connected from %s", client.id, realIP(r))

		go client.writePump(g.pingPeriod)
		client.readPump(g)
	}
}

func (c *Client) readPump(g *Gateway) {
	defer func() {
		if res, err := g.registry.Leave(c.id); err == nil {
			logf(g.cfg, "GAMES: %s left %s", c.id, res.RoomID)
		}
		g.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxClientMessage)
	wait := g.pongWait
	_ = c.conn.SetReadDeadline(time.Now().Add(wait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wait))
	})

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		g.handle(c, msg)
	}
}

func (c *Client) writePump(pingEvery time.Duration) {
	ticker := time.NewTicker(pingEvery)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(timeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
