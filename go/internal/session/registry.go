package session

import (
	"time"

	"github.com/mcdev12/sketchturn/go/internal/models"
	"github.com/mcdev12/sketchturn/go/internal/session/events"
)

// Registry tracks connected players in registration order. Registration order
// is the tie-break order for drawer selection and the leaderboard.
type Registry struct {
	players []*models.Player
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register drops any record held by connID and appends a fresh one with no ratings.
func (r *Registry) Register(connID, name string, joinedAt time.Time) models.Player {
	r.Remove(connID)
	p := &models.Player{
		ConnectionID: connID,
		Name:         name,
		Ratings:      []float64{},
		JoinedAt:     joinedAt,
	}
	r.players = append(r.players, p)
	return p.Clone()
}

// Remove deletes the record for connID and reports whether one existed.
func (r *Registry) Remove(connID string) bool {
	for i, p := range r.players {
		if p.ConnectionID == connID {
			r.players = append(r.players[:i], r.players[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Registry) Get(connID string) (models.Player, bool) {
	for _, p := range r.players {
		if p.ConnectionID == connID {
			return p.Clone(), true
		}
	}
	return models.Player{}, false
}

func (r *Registry) Has(connID string) bool {
	_, ok := r.Get(connID)
	return ok
}

// FindByName returns the earliest registered player using name.
func (r *Registry) FindByName(name string) (models.Player, bool) {
	for _, p := range r.players {
		if p.Name == name {
			return p.Clone(), true
		}
	}
	return models.Player{}, false
}

// All returns copies of every player in registration order.
func (r *Registry) All() []models.Player {
	out := make([]models.Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p.Clone())
	}
	return out
}

// AppendRating adds value to the earliest registered player named name.
// It is a no-op when nobody uses that name.
func (r *Registry) AppendRating(name string, value float64) (models.Player, bool) {
	for _, p := range r.players {
		if p.Name == name {
			p.Ratings = append(p.Ratings, value)
			return p.Clone(), true
		}
	}
	return models.Player{}, false
}

func (r *Registry) Len() int {
	return len(r.players)
}

func (r *Registry) Reset() {
	r.players = nil
}

// Summaries builds the roster payload of a users event.
func (r *Registry) Summaries() []events.PlayerSummary {
	out := make([]events.PlayerSummary, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, events.PlayerSummary{
			Name:         p.Name,
			ConnectionID: p.ConnectionID,
			Rating:       AverageRating(*p),
		})
	}
	return out
}

// AverageRating is the mean of the player's received ratings, 0 when empty.
func AverageRating(p models.Player) float64 {
	return p.AverageRating()
}
