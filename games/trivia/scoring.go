/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package trivia

import "github.com/samber/lo"

// Standing is one player's final score: the mean of every rating recorded
// for them. A player with no ratings averages 0.
type Standing struct {
	Player  Player  `json:"player"`
	Average float64 `json:"average"`
	Rounds  int     `json:"rounds"`
}

func average(ratings []float64) float64 {
	if len(ratings) == 0 {
		return 0
	}
	return lo.Sum(ratings) / float64(len(ratings))
}

// Standings scores players in the order given, which callers keep by seat.
func Standings(players []Player, ratings map[string][]float64) []Standing {
	return lo.Map(players, func(p Player, _ int) Standing {
		return Standing{
			Player:  p,
			Average: average(ratings[p.ID]),
			Rounds:  len(ratings[p.ID]),
		}
	})
}

// Winner returns the first standing with the strictly greatest average, so
// ties go to the lowest seat when standings are in seat order.
func Winner(standings []Standing) (Standing, bool) {
	if len(standings) == 0 {
		return Standing{}, false
	}

	best := standings[0]
	for _, s := range standings[1:] {
		if s.Average > best.Average {
			best = s
		}
	}

	return best, true
}
