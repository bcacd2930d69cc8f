/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
	"html"
	"log"
	"strings"
	"time"

	"github.com/Seednode/promptparty/games/trivia"
)

func logf(cfg *Config, format string, args ...any) {
	if cfg == nil || !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

// userMessage turns a registry error into text fit for a player.
func userMessage(err error) string {
	switch {
	case errors.Is(err, trivia.ErrInvalidName):
		return "Please choose a display name of up to 32 characters."
	case errors.Is(err, trivia.ErrAlreadyJoined):
		return "You are already in a game."
	case errors.Is(err, trivia.ErrRoundClosed):
		return "This round is no longer accepting answers."
	case errors.Is(err, trivia.ErrInvalidSubmission), errors.Is(err, trivia.ErrUnknownRoom):
		return "You are not playing in that room."
	case errors.Is(err, trivia.ErrJoinRejected):
		return "That room is no longer accepting players."
	default:
		return "Something went wrong. Please try again."
	}
}

func newPage(cfg *Config, title, body string) string {
	var htmlBody strings.Builder

	htmlBody.WriteString(`<!DOCTYPE html><html lang="en"><head>`)
	htmlBody.WriteString(`<style>`)
	htmlBody.WriteString(`html,body,a{display:block;height:100%;width:100%;text-decoration:none;color:inherit;cursor:auto;}</style>`)
	htmlBody.WriteString(fmt.Sprintf("<title>%s</title></head>", html.EscapeString(title)))
	htmlBody.WriteString(fmt.Sprintf("<body><a href=\"%s/\">%s</a></body></html>", html.EscapeString(cfg.prefix), html.EscapeString(body)))

	return htmlBody.String()
}
