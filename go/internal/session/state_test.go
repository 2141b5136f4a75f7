package session

import (
	"math"
	"testing"
	"time"

	"github.com/mcdev12/sketchturn/go/internal/models"
	"github.com/mcdev12/sketchturn/go/internal/session/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	r := NewRegistry()

	r.Register("c1", "alice", now)
	r.Register("c2", "bob", now)
	r.Register("c3", "alice", now)

	t.Run("find by name returns earliest", func(t *testing.T) {
		p, ok := r.FindByName("alice")
		require.True(t, ok)
		assert.Equal(t, "c1", p.ConnectionID)
	})

	t.Run("rating goes to earliest duplicate", func(t *testing.T) {
		p, ok := r.AppendRating("alice", 4)
		require.True(t, ok)
		assert.Equal(t, "c1", p.ConnectionID)
		assert.Equal(t, []float64{4}, p.Ratings)

		other, _ := r.Get("c3")
		assert.Empty(t, other.Ratings)

		_, ok = r.AppendRating("nobody", 4)
		assert.False(t, ok)
	})

	t.Run("returned records are copies", func(t *testing.T) {
		p, _ := r.Get("c1")
		p.Ratings[0] = 1
		again, _ := r.Get("c1")
		assert.Equal(t, []float64{4}, again.Ratings)
	})

	t.Run("re-register moves to end with fresh ratings", func(t *testing.T) {
		r.Register("c1", "alicia", now)
		all := r.All()
		require.Len(t, all, 3)
		assert.Equal(t, []string{"c2", "c3", "c1"}, []string{all[0].ConnectionID, all[1].ConnectionID, all[2].ConnectionID})
		assert.Empty(t, all[2].Ratings)
	})

	t.Run("remove", func(t *testing.T) {
		assert.True(t, r.Remove("c2"))
		assert.False(t, r.Remove("c2"))
		assert.False(t, r.Has("c2"))
		assert.Equal(t, 2, r.Len())
	})

	t.Run("summaries", func(t *testing.T) {
		r.AppendRating("alice", 2)
		assert.Equal(t, []events.PlayerSummary{
			{Name: "alice", ConnectionID: "c3", Rating: 2},
			{Name: "alicia", ConnectionID: "c1", Rating: 0},
		}, r.Summaries())
	})

	t.Run("reset", func(t *testing.T) {
		r.Reset()
		assert.Equal(t, 0, r.Len())
		assert.Equal(t, []events.PlayerSummary{}, r.Summaries())
	})
}

func TestRatingLog(t *testing.T) {
	l := NewRatingLog()

	assert.False(t, l.Seen(1, "a", "bob"))
	l.Record(1, "a", "bob")
	assert.True(t, l.Seen(1, "a", "bob"))
	assert.False(t, l.Seen(1, "a", "carol"))
	assert.False(t, l.Seen(2, "a", "bob"))

	l.Record(2, "b", "carol")
	l.StartRound(2)
	assert.False(t, l.Seen(1, "a", "bob"))
	assert.False(t, l.Seen(2, "b", "carol"))

	l.Record(2, "a", "bob")
	l.Record(2, "b", "bob")
	l.Forget("a")
	assert.False(t, l.Seen(2, "a", "bob"))
	assert.True(t, l.Seen(2, "b", "bob"))

	l.Reset()
	assert.False(t, l.Seen(2, "b", "bob"))
}

func TestLeaderboardRanking(t *testing.T) {
	tests := []struct {
		name    string
		players []models.Player
		want    []events.LeaderboardEntry
	}{
		{
			name: "empty",
			want: []events.LeaderboardEntry{},
		},
		{
			name: "descending by average",
			players: []models.Player{
				{Name: "low", Ratings: []float64{1, 2}},
				{Name: "high", Ratings: []float64{5}},
				{Name: "none"},
			},
			want: []events.LeaderboardEntry{
				{Name: "high", Rating: 5},
				{Name: "low", Rating: 1.5},
				{Name: "none", Rating: 0},
			},
		},
		{
			name: "ties keep registration order",
			players: []models.Player{
				{Name: "A", Ratings: []float64{3}},
				{Name: "B", Ratings: []float64{3}},
				{Name: "C", Ratings: []float64{3}},
			},
			want: []events.LeaderboardEntry{
				{Name: "A", Rating: 3},
				{Name: "B", Rating: 3},
				{Name: "C", Rating: 3},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Leaderboard(tt.players))
		})
	}
}

func TestStrokeLog(t *testing.T) {
	l := NewStrokeLog()
	assert.Empty(t, l.All())

	a := models.Stroke{X0: 0, Y0: 0, X1: 1, Y1: 1, Color: "#000"}
	b := models.Stroke{X0: 1, Y0: 1, X1: 2, Y1: 2, Color: "#fff"}
	l.Append(a)
	l.Append(b)

	got := l.All()
	assert.Equal(t, []models.Stroke{a, b}, got)
	got[0].Color = "changed"
	assert.Equal(t, "#000", l.All()[0].Color)

	l.Clear()
	assert.Equal(t, 0, l.Len())
}

func TestRulesValidate(t *testing.T) {
	require.NoError(t, DefaultRules().Validate())

	tests := []struct {
		name   string
		modify func(r *Rules)
	}{
		{"zero rounds", func(r *Rules) { r.MaxRounds = 0 }},
		{"zero turn", func(r *Rules) { r.TurnSeconds = 0 }},
		{"negative pause", func(r *Rules) { r.LeaderboardSeconds = -1 }},
		{"inverted rating range", func(r *Rules) { r.RatingMin, r.RatingMax = 5, 1 }},
		{"nan bound", func(r *Rules) { r.RatingMax = math.NaN() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := DefaultRules()
			tt.modify(&r)
			assert.Error(t, r.Validate())
		})
	}
}
