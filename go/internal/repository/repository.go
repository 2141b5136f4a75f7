package repository

import (
	"context"
	"errors"

	"github.com/mcdev12/sketchturn/go/internal/models"
)

// ErrNotFound is returned when no player record exists for a connection id.
var ErrNotFound = errors.New("player not found")

// Repository is the flat record keeper behind the session. It mirrors the
// in-memory roster and canvas; the session never reads from it.
type Repository interface {
	SavePlayer(ctx context.Context, player models.Player) error
	DeletePlayer(ctx context.Context, connID string) error
	DeleteAllPlayers(ctx context.Context) error
	AppendRating(ctx context.Context, connID string, value float64) error
	GetPlayer(ctx context.Context, connID string) (models.Player, error)
	ListPlayers(ctx context.Context) ([]models.Player, error)

	AppendStroke(ctx context.Context, stroke models.Stroke) error
	ClearStrokes(ctx context.Context) error
	ListStrokes(ctx context.Context) ([]models.Stroke, error)

	// Reset drops every player and stroke.
	Reset(ctx context.Context) error
	Close()
}
