package session

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Rules are the fixed parameters of a game cycle.
type Rules struct {
	MaxRounds          int     `yaml:"max_rounds"`
	TurnSeconds        int     `yaml:"turn_seconds"`
	LeaderboardSeconds int     `yaml:"leaderboard_seconds"`
	RatingMin          float64 `yaml:"rating_min"`
	RatingMax          float64 `yaml:"rating_max"`
}

func DefaultRules() Rules {
	return Rules{
		MaxRounds:          3,
		TurnSeconds:        30,
		LeaderboardSeconds: 10,
		RatingMin:          1,
		RatingMax:          5,
	}
}

func (r Rules) Validate() error {
	if r.MaxRounds < 1 {
		return fmt.Errorf("max_rounds must be at least 1, got %d", r.MaxRounds)
	}
	if r.TurnSeconds < 1 {
		return fmt.Errorf("turn_seconds must be at least 1, got %d", r.TurnSeconds)
	}
	if r.LeaderboardSeconds < 0 {
		return fmt.Errorf("leaderboard_seconds must not be negative, got %d", r.LeaderboardSeconds)
	}
	for _, bound := range []float64{r.RatingMin, r.RatingMax} {
		if math.IsNaN(bound) || math.IsInf(bound, 0) {
			return fmt.Errorf("rating bounds must be finite, got %v", bound)
		}
	}
	if r.RatingMin > r.RatingMax {
		return errors.New("rating_min must not exceed rating_max")
	}
	return nil
}

func (r Rules) leaderboardPause() time.Duration {
	return time.Duration(r.LeaderboardSeconds) * time.Second
}
