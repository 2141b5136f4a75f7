package session

import (
	"sort"

	"github.com/mcdev12/sketchturn/go/internal/models"
	"github.com/mcdev12/sketchturn/go/internal/session/events"
)

// Leaderboard ranks players by average rating, highest first. Players with
// equal averages keep their registration order.
func Leaderboard(players []models.Player) []events.LeaderboardEntry {
	entries := make([]events.LeaderboardEntry, 0, len(players))
	for _, p := range players {
		entries = append(entries, events.LeaderboardEntry{
			Name:   p.Name,
			Rating: AverageRating(p),
		})
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Rating > entries[j].Rating
	})
	return entries
}
