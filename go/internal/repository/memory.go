package repository

import (
	"context"
	"sync"

	"github.com/mcdev12/sketchturn/go/internal/models"
)

// MemoryRepository keeps records in process memory. Players are listed in the
// order they were last saved.
type MemoryRepository struct {
	mu      sync.RWMutex
	players []models.Player
	strokes []models.Stroke
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) SavePlayer(_ context.Context, player models.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(player.ConnectionID)
	r.players = append(r.players, player.Clone())
	return nil
}

func (r *MemoryRepository) DeletePlayer(_ context.Context, connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(connID)
	return nil
}

func (r *MemoryRepository) DeleteAllPlayers(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players = nil
	return nil
}

func (r *MemoryRepository) AppendRating(_ context.Context, connID string, value float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.players {
		if r.players[i].ConnectionID == connID {
			r.players[i].Ratings = append(r.players[i].Ratings, value)
			return nil
		}
	}
	return ErrNotFound
}

func (r *MemoryRepository) GetPlayer(_ context.Context, connID string) (models.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.players {
		if p.ConnectionID == connID {
			return p.Clone(), nil
		}
	}
	return models.Player{}, ErrNotFound
}

func (r *MemoryRepository) ListPlayers(_ context.Context) ([]models.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p.Clone())
	}
	return out, nil
}

func (r *MemoryRepository) AppendStroke(_ context.Context, stroke models.Stroke) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strokes = append(r.strokes, stroke)
	return nil
}

func (r *MemoryRepository) ClearStrokes(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strokes = nil
	return nil
}

func (r *MemoryRepository) ListStrokes(_ context.Context) ([]models.Stroke, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.Stroke{}, r.strokes...), nil
}

func (r *MemoryRepository) Reset(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.players = nil
	r.strokes = nil
	return nil
}

func (r *MemoryRepository) Close() {}

func (r *MemoryRepository) removeLocked(connID string) {
	for i, p := range r.players {
		if p.ConnectionID == connID {
			r.players = append(r.players[:i], r.players[i+1:]...)
			return
		}
	}
}
