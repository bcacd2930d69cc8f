/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import "errors"

var (
	ErrJoinRejected      = errors.New("join rejected")
	ErrAlreadyJoined     = errors.New("player already in a room")
	ErrInvalidName       = errors.New("invalid display name")
	ErrInvalidSubmission = errors.New("invalid submission")
	ErrUnknownRoom       = errors.New("unknown room")
	ErrUnknownPlayer     = errors.New("player not in any room")
	ErrRoundClosed       = errors.New("round is not accepting answers")
	ErrOracleUnavailable = errors.New("oracle unavailable")
	ErrRoomAbandoned     = errors.New("room abandoned")
)
