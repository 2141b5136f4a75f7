package models

import (
	"time"
)

// Player represents a participant registered on a live connection
type Player struct {
	ConnectionID string    `json:"connection_id"`
	Name         string    `json:"name"`
	Ratings      []float64 `json:"ratings"`
	JoinedAt     time.Time `json:"joined_at"`
}

// AverageRating is the arithmetic mean of the received ratings, 0 when none were received.
func (p *Player) AverageRating() float64 {
	if len(p.Ratings) == 0 {
		return 0
	}
	var sum float64
	for _, r := range p.Ratings {
		sum += r
	}
	return sum / float64(len(p.Ratings))
}

// Clone returns a copy that does not share the ratings slice.
func (p Player) Clone() Player {
	out := p
	out.Ratings = append([]float64(nil), p.Ratings...)
	return out
}
