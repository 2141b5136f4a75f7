package repository

import (
	"context"
	"testing"
	"time"

	"github.com/mcdev12/sketchturn/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRepository exercises the behaviour every Repository must share.
func testRepository(t *testing.T, repo Repository) {
	ctx := context.Background()
	joined := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Reset(ctx))

	t.Run("save and get", func(t *testing.T) {
		require.NoError(t, repo.SavePlayer(ctx, models.Player{ConnectionID: "c1", Name: "alice", JoinedAt: joined}))
		require.NoError(t, repo.SavePlayer(ctx, models.Player{ConnectionID: "c2", Name: "bob", JoinedAt: joined}))

		p, err := repo.GetPlayer(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, "alice", p.Name)
		assert.Empty(t, p.Ratings)
		assert.True(t, joined.Equal(p.JoinedAt))
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := repo.GetPlayer(ctx, "ghost")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("append rating", func(t *testing.T) {
		require.NoError(t, repo.AppendRating(ctx, "c1", 4))
		require.NoError(t, repo.AppendRating(ctx, "c1", 2.5))

		p, err := repo.GetPlayer(ctx, "c1")
		require.NoError(t, err)
		assert.Equal(t, []float64{4, 2.5}, p.Ratings)

		assert.ErrorIs(t, repo.AppendRating(ctx, "ghost", 3), ErrNotFound)
	})

	t.Run("save replaces and moves to end", func(t *testing.T) {
		require.NoError(t, repo.SavePlayer(ctx, models.Player{ConnectionID: "c1", Name: "alicia", JoinedAt: joined}))

		players, err := repo.ListPlayers(ctx)
		require.NoError(t, err)
		require.Len(t, players, 2)
		assert.Equal(t, "c2", players[0].ConnectionID)
		assert.Equal(t, "alicia", players[1].Name)
		assert.Empty(t, players[1].Ratings)
	})

	t.Run("delete player", func(t *testing.T) {
		require.NoError(t, repo.DeletePlayer(ctx, "c2"))
		require.NoError(t, repo.DeletePlayer(ctx, "c2"))

		_, err := repo.GetPlayer(ctx, "c2")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("strokes keep order", func(t *testing.T) {
		a := models.Stroke{X0: 0, Y0: 0, X1: 10, Y1: 10, Color: "#ff0000"}
		b := models.Stroke{X0: 10, Y0: 10, X1: 20, Y1: 5, Color: "#0000ff"}
		require.NoError(t, repo.AppendStroke(ctx, a))
		require.NoError(t, repo.AppendStroke(ctx, b))

		strokes, err := repo.ListStrokes(ctx)
		require.NoError(t, err)
		assert.Equal(t, []models.Stroke{a, b}, strokes)

		require.NoError(t, repo.ClearStrokes(ctx))
		strokes, err = repo.ListStrokes(ctx)
		require.NoError(t, err)
		assert.Empty(t, strokes)
	})

	t.Run("delete all and reset", func(t *testing.T) {
		require.NoError(t, repo.AppendStroke(ctx, models.Stroke{Color: "#000"}))
		require.NoError(t, repo.DeleteAllPlayers(ctx))

		players, err := repo.ListPlayers(ctx)
		require.NoError(t, err)
		assert.Empty(t, players)

		strokes, err := repo.ListStrokes(ctx)
		require.NoError(t, err)
		assert.Len(t, strokes, 1)

		require.NoError(t, repo.Reset(ctx))
		strokes, err = repo.ListStrokes(ctx)
		require.NoError(t, err)
		assert.Empty(t, strokes)
	})
}
