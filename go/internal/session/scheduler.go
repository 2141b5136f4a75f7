package session

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/sketchturn/go/internal/models"
	"github.com/mcdev12/sketchturn/go/internal/session/events"
	"github.com/rs/zerolog/log"
)

// startSession moves Idle to ActiveTurn. The drawer and phase are checked
// again here so two joins can never both start a game cycle.
func (s *Session) startSession(ctx context.Context) {
	if s.drawerID != "" || s.phase != PhaseIdle || s.registry.Len() == 0 {
		return
	}
	s.round = 1
	s.drawn = make(map[string]struct{})
	s.ratings.Reset()

	log.Info().Int("players", s.registry.Len()).Msg("game cycle started")

	s.bc.Broadcast(events.Round(s.round))
	s.pickNextDrawer(ctx)
}

// pickNextDrawer hands the turn to the first eligible player in registration
// order, rolling rounds over and ending the cycle as needed. A round advance
// makes every registered player eligible again, so the loop ends after at
// most two passes; the bound only guards against a broken invariant.
func (s *Session) pickNextDrawer(ctx context.Context) {
	for pass := 0; pass <= s.rules.MaxRounds; pass++ {
		if s.registry.Len() == 0 {
			s.goIdle("no players left")
			return
		}

		eligible := s.eligible()
		if len(eligible) > 0 {
			s.startTurn(ctx, eligible[0])
			return
		}

		if s.round >= s.rules.MaxRounds {
			s.showLeaderboard()
			return
		}
		s.advanceRound()
	}

	log.Error().
		Int("round", s.round).
		Int("players", s.registry.Len()).
		Msg("no drawer could be selected")
	s.goIdle("drawer selection exhausted")
}

// eligible lists registered players that have not drawn this round, in registration order.
func (s *Session) eligible() []models.Player {
	var out []models.Player
	for _, p := range s.registry.All() {
		if _, ok := s.drawn[p.ConnectionID]; ok {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (s *Session) advanceRound() {
	s.round++
	s.drawn = make(map[string]struct{})
	s.ratings.StartRound(s.round)

	log.Info().Int("round", s.round).Msg("round advanced")

	s.bc.Broadcast(events.Round(s.round))
}

func (s *Session) startTurn(ctx context.Context, drawer models.Player) {
	s.phase = PhaseActiveTurn
	s.drawerID = drawer.ConnectionID
	s.drawn[drawer.ConnectionID] = struct{}{}
	s.timerRemaining = s.rules.TurnSeconds

	s.clearCanvas(ctx)

	// The countdown is armed before the turn is announced, so anyone reacting
	// to the turn event already sees the new timer.
	s.startCountdown()

	log.Info().
		Str("drawer_id", drawer.ConnectionID).
		Str("drawer", drawer.Name).
		Int("round", s.round).
		Msg("turn started")

	s.bc.Broadcast(events.Turn(s.drawerID, s.round))
}

// drawerDeparted reselects immediately instead of waiting for the countdown.
func (s *Session) drawerDeparted(ctx context.Context) {
	log.Info().Str("drawer_id", s.drawerID).Int("round", s.round).Msg("drawer left mid-turn")
	s.cancelCountdown()
	s.drawerID = ""
	s.pickNextDrawer(ctx)
}

func (s *Session) onTick(ctx context.Context) {
	if s.countdown == nil {
		return
	}
	s.timerRemaining--
	s.bc.Broadcast(events.Timer(s.timerRemaining))
	if s.timerRemaining > 0 {
		return
	}

	log.Info().Str("drawer_id", s.drawerID).Int("round", s.round).Msg("turn timed out")
	s.cancelCountdown()
	s.pickNextDrawer(ctx)
}

func (s *Session) showLeaderboard() {
	s.cancelCountdown()
	s.phase = PhaseLeaderboard
	s.drawerID = ""
	s.leaderboard = Leaderboard(s.registry.All())

	s.cancelPause()
	s.pause = s.clock.NewTimer(s.rules.leaderboardPause())

	log.Info().
		Int("players", len(s.leaderboard)).
		Int("pause_seconds", s.rules.LeaderboardSeconds).
		Msg("leaderboard shown")

	s.bc.Broadcast(events.Leaderboard(s.leaderboard))
}

// onPauseEnd starts the next game cycle once the leaderboard pause is over.
// Joins and leaves during the pause do not shorten or extend it.
func (s *Session) onPauseEnd(ctx context.Context) {
	s.pause = nil
	s.round = 1
	s.drawn = make(map[string]struct{})
	s.ratings.Reset()
	s.leaderboard = nil

	log.Info().Int("players", s.registry.Len()).Msg("game cycle restarting")

	s.clearCanvas(ctx)
	s.bc.Broadcast(events.Round(s.round))
	s.pickNextDrawer(ctx)
}

// goIdle stops every timer and forgets the cycle in progress.
func (s *Session) goIdle(reason string) {
	s.cancelCountdown()
	s.cancelPause()

	wasActive := s.phase != PhaseIdle
	s.phase = PhaseIdle
	s.drawerID = ""
	s.round = 1
	s.timerRemaining = 0
	s.drawn = make(map[string]struct{})
	s.ratings.Reset()
	s.leaderboard = nil

	if wasActive {
		log.Info().Str("reason", reason).Msg("session idle")
		s.bc.Broadcast(events.Turn("", s.round))
	}
}

// startCountdown replaces any running countdown with a fresh one.
func (s *Session) startCountdown() {
	s.cancelCountdown()
	s.countdown = s.clock.NewTicker(tickInterval)
}

// cancelCountdown stops the countdown. Its channel is dropped with it, so a
// tick that was already pending can never be observed.
func (s *Session) cancelCountdown() {
	if s.countdown == nil {
		return
	}
	s.countdown.Stop()
	s.countdown = nil
}

func (s *Session) cancelPause() {
	if s.pause == nil {
		return
	}
	stopAndDrainTimer(s.pause)
	s.pause = nil
}

func (s *Session) countdownChan() <-chan time.Time {
	if s.countdown == nil {
		return nil
	}
	return s.countdown.Chan()
}

func (s *Session) pauseChan() <-chan time.Time {
	if s.pause == nil {
		return nil
	}
	return s.pause.Chan()
}

// stopAndDrainTimer stops a timer and drains its channel if it already fired.
func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}
