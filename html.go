/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Seednode/promptparty/games/trivia"
	"github.com/julienschmidt/httprouter"
)

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Prompt Party</title>
<link rel="stylesheet" href="{{prefix}}/assets/app.css">
<script defer src="{{prefix}}/assets/app.js"></script>
</head>
<body data-prefix="{{prefix}}">
<main>
<h1>Prompt Party</h1>
<p id="status"></p>
<section id="lobby">
  <form id="join-form">
    <label for="name">Display name</label>
    <input id="name" maxlength="32" autocomplete="off" required>
    <button type="submit">Join a game</button>
  </form>
  <img id="qr" src="{{prefix}}/qr" alt="QR code for this page" width="160" height="160">
</section>
<section id="waiting" hidden>
  <h2>Waiting for players</h2>
  <ul id="roster"></ul>
</section>
<section id="round" hidden>
  <h2 id="round-title"></h2>
  <p id="prompt"></p>
  <p id="countdown"></p>
  <form id="answer-form">
    <input id="answer" maxlength="280" autocomplete="off">
    <button type="submit">Submit</button>
  </form>
</section>
<section id="results" hidden>
  <h2 id="results-title"></h2>
  <ol id="answers"></ol>
  <button id="again" type="button" hidden>Play again</button>
</section>
</main>
</body>
</html>
`

const appCSS = `body{font-family:system-ui,sans-serif;background:#111;color:#eee;margin:0}
main{max-width:40rem;margin:0 auto;padding:1rem}
input,button{font:inherit;padding:.4rem .6rem;margin:.25rem 0}
#prompt{font-size:1.4rem}
#countdown{color:#aaa}
#status{color:#f99;min-height:1.2em}
li.departed{opacity:.6}
`

const appJS = `(() => {
  const $ = (id) => document.getElementById(id);
  const prefix = document.body.dataset.prefix || "";
  let socket = null;
  let roomId = "";
  let name = "";
  let ticker = null;

  function show(id) {
    for (const s of document.querySelectorAll("section")) s.hidden = s.id !== id;
  }

  function list(el, items) {
    el.replaceChildren(...items.map(([text, cls]) => {
      const li = document.createElement("li");
      li.textContent = text;
      if (cls) li.className = cls;
      return li;
    }));
  }

  function countdown(deadline) {
    clearInterval(ticker);
    const end = new Date(deadline).getTime();
    const tick = () => {
      const left = Math.max(0, Math.ceil((end - Date.now()) / 1000));
      $("countdown").textContent = left + "s left";
      if (left === 0) clearInterval(ticker);
    };
    tick();
    ticker = setInterval(tick, 250);
  }

  function send(msg) {
    if (socket && socket.readyState === WebSocket.OPEN) socket.send(JSON.stringify(msg));
  }

  function connect() {
    const proto = location.protocol === "https:" ? "wss:" : "ws:";
    socket = new WebSocket(proto + "//" + location.host + prefix + "/ws");
    socket.onopen = () => send({type: "join", display_name: name});
    socket.onmessage = (ev) => handle(JSON.parse(ev.data));
    socket.onclose = () => { $("status").textContent = "Disconnected."; };
  }

  function handle(m) {
    switch (m.type) {
    case "joined":
      roomId = m.room_id;
      $("status").textContent = "";
      show("waiting");
      break;
    case "roster":
      list($("roster"), m.players.map((p) => ["Seat " + p.seat + ": " + p.display_name]));
      break;
    case "game_starting":
      $("status").textContent = "Room is full. Fetching " + m.max_rounds + " prompts...";
      break;
    case "round_start":
      $("status").textContent = "";
      $("round-title").textContent = "Round " + m.round + " of " + m.max_rounds;
      $("prompt").textContent = m.prompt;
      $("answer").value = "";
      $("answer").disabled = false;
      show("round");
      countdown(m.deadline);
      break;
    case "round_result":
      clearInterval(ticker);
      $("results-title").textContent = "Round " + m.round + ": " + m.prompt;
      list($("answers"), m.answers.map((a) => [
        a.player.display_name + ": " + a.answer + " (" + a.rating + ")",
        a.departed ? "departed" : "",
      ]));
      $("again").hidden = true;
      show("results");
      break;
    case "winner":
      $("results-title").textContent = m.winner.display_name + " wins!";
      list($("answers"), m.standings.map((s) => [s.player.display_name + ": " + s.average.toFixed(2)]));
      $("again").hidden = false;
      show("results");
      break;
    case "abandoned":
      clearInterval(ticker);
      $("status").textContent = m.message;
      $("again").hidden = false;
      show("results");
      break;
    case "error":
      $("status").textContent = m.message;
      break;
    }
  }

  $("join-form").addEventListener("submit", (ev) => {
    ev.preventDefault();
    name = $("name").value.trim();
    if (!name) return;
    if (socket && socket.readyState === WebSocket.OPEN) send({type: "join", display_name: name});
    else connect();
  });

  $("answer-form").addEventListener("submit", (ev) => {
    ev.preventDefault();
    send({type: "submit", room_id: roomId, answer: $("answer").value});
    $("answer").disabled = true;
  });

  $("again").addEventListener("click", () => send({type: "join", display_name: name}));
})();
`

func serveHomePage(cfg *Config, errs chan<- error) httprouter.Handle {
	page := strings.ReplaceAll(indexHTML, "{{prefix}}", html.EscapeString(cfg.prefix))

	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(page)))
		securityHeaders(cfg, w)

		_, err := w.Write([]byte(page))
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveAsset(cfg *Config, contentType, data string, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		_, err := w.Write([]byte(data))
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveHealthCheck(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		securityHeaders(cfg, w)

		_, err := w.Write([]byte("Ok\n"))
		if err != nil {
			errs <- err

			return
		}
	}
}

func serveRooms(cfg *Config, registry *trivia.Registry, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		writeJSON(cfg, w, http.StatusOK, registry.Snapshots(), errs)
	}
}

func serveRoom(cfg *Config, registry *trivia.Registry, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		snap, ok := registry.Room(p.ByName("roomid"))
		if !ok {
			writeJSON(cfg, w, http.StatusNotFound, trivia.ErrorMessage{
				Type:    trivia.TypeError,
				Message: "room not found",
			}, errs)

			return
		}

		writeJSON(cfg, w, http.StatusOK, snap, errs)
	}
}

func writeJSON(cfg *Config, w http.ResponseWriter, status int, v any, errs chan<- error) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		errs <- err
	}
}

func serveRobots(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, p httprouter.Params) {
		data := `User-agent: Amazonbot
Disallow: /

User-agent: Applebot-Extended
Disallow: /

User-agent: Bytespider
Disallow: /

User-agent: CCBot
Disallow: /

User-agent: ClaudeBot
Disallow: /

User-agent: Google-Extended
Disallow: /

User-agent: GPTBot
Disallow: /

User-agent: meta-externalagent
Disallow: /`

		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		securityHeaders(cfg, w)

		_, err := w.Write([]byte(data))
		if err != nil {
			errs <- err

			return
		}
	}
}
