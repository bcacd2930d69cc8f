/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

// roundLatch closes exactly once per round: the first time the number of
// collected answers reaches the number of seated players. The turn timer and
// the submission path both go through it, so only one of them can move the
// round into rating.
type roundLatch struct {
	fired bool
}

func (l *roundLatch) trip(have, want int) bool {
	if l.fired || have < want {
		return false
	}
	l.fired = true
	return true
}

func (l *roundLatch) reset() {
	l.fired = false
}
