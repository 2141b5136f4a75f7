package session

import (
	"context"
	"math"

	"github.com/rs/zerolog/log"
)

// RatingLog remembers which targets each rater already rated, per round.
type RatingLog struct {
	rounds map[int]map[string]map[string]struct{}
}

func NewRatingLog() *RatingLog {
	return &RatingLog{rounds: make(map[int]map[string]map[string]struct{})}
}

// Seen reports whether rater already rated target during round.
func (l *RatingLog) Seen(round int, rater, target string) bool {
	targets, ok := l.rounds[round][rater]
	if !ok {
		return false
	}
	_, ok = targets[target]
	return ok
}

func (l *RatingLog) Record(round int, rater, target string) {
	raters, ok := l.rounds[round]
	if !ok {
		raters = make(map[string]map[string]struct{})
		l.rounds[round] = raters
	}
	targets, ok := raters[rater]
	if !ok {
		targets = make(map[string]struct{})
		raters[rater] = targets
	}
	targets[target] = struct{}{}
}

// StartRound clears the entry for round. Entries of earlier rounds are never
// consulted again, so they are dropped as well.
func (l *RatingLog) StartRound(round int) {
	for r := range l.rounds {
		if r <= round {
			delete(l.rounds, r)
		}
	}
}

// Forget drops every entry recorded by rater.
func (l *RatingLog) Forget(rater string) {
	for _, raters := range l.rounds {
		delete(raters, rater)
	}
}

func (l *RatingLog) Reset() {
	l.rounds = make(map[int]map[string]map[string]struct{})
}

// Rejection reasons for a rate request. Rejections are never reported to the rater.
const (
	rejectNone          = ""
	rejectDrawer        = "drawer cannot rate"
	rejectUnregistered  = "rater is not registered"
	rejectOutOfRange    = "rating out of range"
	rejectDuplicate     = "already rated this round"
	rejectUnknownTarget = "unknown target"
	rejectSelf          = "cannot rate self"
)

// recordRating applies one rate request. It returns the rejection reason, or
// rejectNone when the rating was stored.
func (s *Session) recordRating(ctx context.Context, fromID, targetName string, value float64) string {
	reason := s.checkRating(fromID, targetName, value)
	if reason != rejectNone {
		log.Debug().
			Str("connection_id", fromID).
			Str("target", targetName).
			Float64("value", value).
			Str("reason", reason).
			Msg("rating ignored")
		return reason
	}

	target, _ := s.registry.AppendRating(targetName, value)
	s.ratings.Record(s.round, fromID, targetName)
	s.persist(ctx, "append_rating", func(ctx context.Context) error {
		return s.store.AppendRating(ctx, target.ConnectionID, value)
	})

	log.Info().
		Str("connection_id", fromID).
		Str("target", targetName).
		Float64("value", value).
		Int("round", s.round).
		Msg("rating recorded")

	s.broadcastUsers()
	return rejectNone
}

func (s *Session) checkRating(fromID, targetName string, value float64) string {
	if fromID == s.drawerID {
		return rejectDrawer
	}
	if !s.registry.Has(fromID) {
		return rejectUnregistered
	}
	if math.IsNaN(value) || math.IsInf(value, 0) || value < s.rules.RatingMin || value > s.rules.RatingMax {
		return rejectOutOfRange
	}
	if s.ratings.Seen(s.round, fromID, targetName) {
		return rejectDuplicate
	}
	target, ok := s.registry.FindByName(targetName)
	if !ok {
		return rejectUnknownTarget
	}
	if target.ConnectionID == fromID {
		return rejectSelf
	}
	return rejectNone
}
