package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/sketchturn/go/internal/models"
	"github.com/mcdev12/sketchturn/go/internal/session/events"
	"github.com/rs/zerolog/log"
)

// ErrClosed is returned by session operations once the coordinator has stopped.
var ErrClosed = errors.New("session closed")

// Clock is the interface we use for time operations.
// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) clockwork.Ticker
	NewTimer(d time.Duration) clockwork.Timer
}

// Broadcaster delivers outbound events. Implementations must not block the caller.
type Broadcaster interface {
	Broadcast(evt events.Event)
	BroadcastExcept(connID string, evt events.Event)
	Send(connID string, evt events.Event)
}

// Store is the flat record keeper mirroring the roster and the canvas.
// Writes are last-write-wins; failures are logged and never retried.
type Store interface {
	SavePlayer(ctx context.Context, player models.Player) error
	DeletePlayer(ctx context.Context, connID string) error
	DeleteAllPlayers(ctx context.Context) error
	AppendRating(ctx context.Context, connID string, value float64) error
	AppendStroke(ctx context.Context, stroke models.Stroke) error
	ClearStrokes(ctx context.Context) error
}

// Phase is the externally visible state of the turn scheduler
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseActiveTurn  Phase = "active_turn"
	PhaseLeaderboard Phase = "leaderboard"
)

const tickInterval = time.Second

// Config wires a Session to its collaborators
type Config struct {
	Rules        Rules
	Clock        Clock
	Store        Store
	Broadcaster  Broadcaster
	StoreTimeout time.Duration
}

type command struct {
	fn   func(ctx context.Context)
	done chan struct{}
}

// Session is the single owner of the game state. Every mutation, including
// timer expiry, runs on the goroutine started by Run, so the fields below are
// never touched concurrently.
type Session struct {
	rules        Rules
	clock        Clock
	store        Store
	bc           Broadcaster
	storeTimeout time.Duration

	inbox   chan command
	stopped chan struct{}

	registry *Registry
	strokes  *StrokeLog
	ratings  *RatingLog

	phase          Phase
	drawerID       string
	round          int
	timerRemaining int
	drawn          map[string]struct{}
	leaderboard    []events.LeaderboardEntry

	countdown clockwork.Ticker
	pause     clockwork.Timer
}

// New creates a session in the Idle phase. Run must be started before any operation is called.
func New(cfg Config) *Session {
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Store == nil {
		cfg.Store = nopStore{}
	}
	if cfg.Broadcaster == nil {
		cfg.Broadcaster = nopBroadcaster{}
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	if cfg.Rules == (Rules{}) {
		cfg.Rules = DefaultRules()
	}

	return &Session{
		rules:        cfg.Rules,
		clock:        cfg.Clock,
		store:        cfg.Store,
		bc:           cfg.Broadcaster,
		storeTimeout: cfg.StoreTimeout,
		inbox:        make(chan command),
		stopped:      make(chan struct{}),
		registry:     NewRegistry(),
		strokes:      NewStrokeLog(),
		ratings:      NewRatingLog(),
		phase:        PhaseIdle,
		round:        1,
		drawn:        make(map[string]struct{}),
	}
}

// Run processes operations and timer expiries until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	log.Info().
		Int("max_rounds", s.rules.MaxRounds).
		Int("turn_seconds", s.rules.TurnSeconds).
		Msg("session coordinator started")

	defer func() {
		s.cancelCountdown()
		s.cancelPause()
		close(s.stopped)
		log.Info().Msg("session coordinator stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-s.inbox:
			cmd.fn(ctx)
			close(cmd.done)
		case <-s.countdownChan():
			s.onTick(ctx)
		case <-s.pauseChan():
			s.onPauseEnd(ctx)
		}
	}
}

// do runs fn on the coordinator goroutine and waits for it to finish.
func (s *Session) do(ctx context.Context, fn func(ctx context.Context)) error {
	cmd := command{fn: fn, done: make(chan struct{})}
	select {
	case s.inbox <- cmd:
	case <-s.stopped:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-cmd.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join registers connID under name, replays the canvas to it and starts a
// game cycle when the session is idle.
func (s *Session) Join(ctx context.Context, connID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		log.Debug().Str("connection_id", connID).Msg("join ignored: empty name")
		return nil
	}
	return s.do(ctx, func(ctx context.Context) {
		player := s.registry.Register(connID, name, s.clock.Now())
		s.persist(ctx, "save_player", func(ctx context.Context) error {
			return s.store.SavePlayer(ctx, player)
		})

		log.Info().
			Str("connection_id", connID).
			Str("name", name).
			Int("players", s.registry.Len()).
			Msg("player joined")

		s.bc.Send(connID, events.History(s.strokes.All()))
		s.broadcastUsers()

		if s.phase == PhaseIdle && s.drawerID == "" && s.registry.Len() > 0 {
			s.startSession(ctx)
		} else {
			s.bc.Send(connID, events.Turn(s.drawerID, s.round))
			if s.phase == PhaseLeaderboard {
				s.bc.Send(connID, events.Round(s.round))
				s.bc.Send(connID, events.Leaderboard(s.leaderboard))
			}
		}
		s.bc.Send(connID, events.Timer(s.timerRemaining))
	})
}

// Draw appends a stroke sent by the active drawer and relays it to everyone else.
// Strokes from any other connection are dropped.
func (s *Session) Draw(ctx context.Context, connID string, stroke models.Stroke) error {
	return s.do(ctx, func(ctx context.Context) {
		if s.drawerID == "" || connID != s.drawerID {
			log.Debug().Str("connection_id", connID).Msg("stroke ignored: sender is not the drawer")
			return
		}
		s.strokes.Append(stroke)
		s.persist(ctx, "append_stroke", func(ctx context.Context) error {
			return s.store.AppendStroke(ctx, stroke)
		})
		s.bc.BroadcastExcept(connID, events.Draw(stroke))
	})
}

// Clear wipes the canvas when requested by the active drawer.
func (s *Session) Clear(ctx context.Context, connID string) error {
	return s.do(ctx, func(ctx context.Context) {
		if s.drawerID == "" || connID != s.drawerID {
			log.Debug().Str("connection_id", connID).Msg("clear ignored: sender is not the drawer")
			return
		}
		s.clearCanvas(ctx)
		log.Info().Str("connection_id", connID).Msg("canvas cleared by drawer")
	})
}

// Rate records a rating from connID for the player named targetName.
// Rejected ratings have no effect and are not reported.
func (s *Session) Rate(ctx context.Context, connID, targetName string, value float64) error {
	return s.do(ctx, func(ctx context.Context) {
		s.recordRating(ctx, connID, targetName, value)
	})
}

// Leave removes the player on request.
func (s *Session) Leave(ctx context.Context, connID string) error {
	return s.do(ctx, func(ctx context.Context) {
		s.depart(ctx, connID, "leave")
	})
}

// Disconnect removes the player when the transport reports the connection gone.
func (s *Session) Disconnect(ctx context.Context, connID string) error {
	return s.do(ctx, func(ctx context.Context) {
		s.depart(ctx, connID, "disconnect")
	})
}

// ResetRoster wipes every player record and returns the scheduler to Idle.
// Connections stay open and may join again.
func (s *Session) ResetRoster(ctx context.Context) error {
	return s.do(ctx, func(ctx context.Context) {
		removed := s.registry.Len()
		s.registry.Reset()
		s.persist(ctx, "delete_all_players", func(ctx context.Context) error {
			return s.store.DeleteAllPlayers(ctx)
		})
		s.goIdle("roster reset")
		s.broadcastUsers()
		log.Warn().Int("removed", removed).Msg("player roster wiped")
	})
}

// Snapshot is a read-only view of the session state
type Snapshot struct {
	Phase          Phase                  `json:"phase"`
	DrawerID       string                 `json:"drawer_id"`
	Round          int                    `json:"round"`
	MaxRounds      int                    `json:"max_rounds"`
	TimerRemaining int                    `json:"timer_remaining"`
	Players        []events.PlayerSummary `json:"players"`
	DrawnThisRound []string               `json:"drawn_this_round"`
	StrokeCount    int                    `json:"stroke_count"`
}

func (s *Session) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.do(ctx, func(ctx context.Context) {
		snap = Snapshot{
			Phase:          s.phase,
			DrawerID:       s.drawerID,
			Round:          s.round,
			MaxRounds:      s.rules.MaxRounds,
			TimerRemaining: s.timerRemaining,
			Players:        s.registry.Summaries(),
			StrokeCount:    s.strokes.Len(),
		}
		for _, p := range s.registry.All() {
			if _, ok := s.drawn[p.ConnectionID]; ok {
				snap.DrawnThisRound = append(snap.DrawnThisRound, p.ConnectionID)
			}
		}
	})
	return snap, err
}

// Strokes returns the current canvas in drawing order.
func (s *Session) Strokes(ctx context.Context) ([]models.Stroke, error) {
	var out []models.Stroke
	err := s.do(ctx, func(ctx context.Context) {
		out = s.strokes.All()
	})
	return out, err
}

func (s *Session) depart(ctx context.Context, connID, reason string) {
	removed := s.registry.Remove(connID)
	s.ratings.Forget(connID)
	delete(s.drawn, connID)

	if removed {
		s.persist(ctx, "delete_player", func(ctx context.Context) error {
			return s.store.DeletePlayer(ctx, connID)
		})
		log.Info().
			Str("connection_id", connID).
			Str("reason", reason).
			Int("players", s.registry.Len()).
			Msg("player left")
		s.broadcastUsers()
	}

	if connID == s.drawerID {
		s.drawerDeparted(ctx)
	}
}

func (s *Session) clearCanvas(ctx context.Context) {
	s.strokes.Clear()
	s.persist(ctx, "clear_strokes", func(ctx context.Context) error {
		return s.store.ClearStrokes(ctx)
	})
	s.bc.Broadcast(events.Clear())
}

func (s *Session) broadcastUsers() {
	s.bc.Broadcast(events.Users(s.registry.Summaries()))
}

// persist mirrors a state change to the store. The in-memory state stays
// authoritative when the write fails.
func (s *Session) persist(ctx context.Context, op string, fn func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Error().Err(err).Str("op", op).Msg("store write failed")
	}
}

type nopStore struct{}

func (nopStore) SavePlayer(context.Context, models.Player) error     { return nil }
func (nopStore) DeletePlayer(context.Context, string) error          { return nil }
func (nopStore) DeleteAllPlayers(context.Context) error              { return nil }
func (nopStore) AppendRating(context.Context, string, float64) error { return nil }
func (nopStore) AppendStroke(context.Context, models.Stroke) error   { return nil }
func (nopStore) ClearStrokes(context.Context) error                  { return nil }

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(events.Event)               {}
func (nopBroadcaster) BroadcastExcept(string, events.Event) {}
func (nopBroadcaster) Send(string, events.Event)            {}
