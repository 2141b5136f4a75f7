package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/sketchturn/go/internal/models"
	"github.com/mcdev12/sketchturn/go/internal/session/events"
	"github.com/stretchr/testify/require"
)

// delivery is one outbound event as the session handed it to the transport.
// An empty to means a broadcast; except names the skipped connection.
type delivery struct {
	to     string
	except string
	evt    events.Event
}

type recorder struct {
	mu  sync.Mutex
	out []delivery
}

func (r *recorder) Broadcast(evt events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, delivery{evt: evt})
}

func (r *recorder) BroadcastExcept(connID string, evt events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, delivery{except: connID, evt: evt})
}

func (r *recorder) Send(connID string, evt events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, delivery{to: connID, evt: evt})
}

func (r *recorder) all() []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]delivery(nil), r.out...)
}

// broadcasts returns every broadcast of type typ, in order.
func (r *recorder) broadcasts(typ events.Type) []events.Event {
	var out []events.Event
	for _, d := range r.all() {
		if d.to == "" && d.except == "" && d.evt.Type == typ {
			out = append(out, d.evt)
		}
	}
	return out
}

// received returns what connID would have seen, in order.
func (r *recorder) received(connID string) []events.Event {
	var out []events.Event
	for _, d := range r.all() {
		switch {
		case d.to != "":
			if d.to == connID {
				out = append(out, d.evt)
			}
		case d.except != connID:
			out = append(out, d.evt)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = nil
}

type harness struct {
	t       *testing.T
	session *Session
	clock   *clockwork.FakeClock
	rec     *recorder
	ctx     context.Context
}

func newHarness(t *testing.T, rules Rules) *harness {
	return newHarnessWithStore(t, rules, nil)
}

func newHarnessWithStore(t *testing.T, rules Rules, store Store) *harness {
	t.Helper()

	clock := clockwork.NewFakeClock()
	rec := &recorder{}
	s := New(Config{
		Rules:       rules,
		Clock:       clock,
		Store:       store,
		Broadcaster: rec,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &harness{t: t, session: s, clock: clock, rec: rec, ctx: context.Background()}
}

func (h *harness) join(connID, name string) {
	h.t.Helper()
	require.NoError(h.t, h.session.Join(h.ctx, connID, name))
}

func (h *harness) snapshot() Snapshot {
	h.t.Helper()
	snap, err := h.session.Snapshot(h.ctx)
	require.NoError(h.t, err)
	return snap
}

// tick advances the fake clock one second at a time, waiting for each timer
// broadcast before moving on so no tick is coalesced.
func (h *harness) tick(n int) {
	h.t.Helper()
	for i := 0; i < n; i++ {
		before := len(h.rec.broadcasts(events.TypeTimer))
		h.clock.Advance(time.Second)
		h.waitFor(func() bool {
			return len(h.rec.broadcasts(events.TypeTimer)) > before
		}, "timer broadcast after tick %d", i+1)
	}
}

func (h *harness) waitFor(cond func() bool, msg string, args ...any) {
	h.t.Helper()
	require.Eventuallyf(h.t, cond, 2*time.Second, 2*time.Millisecond, msg, args...)
}

func (h *harness) waitForTurn(connID string, round int) {
	h.t.Helper()
	want := events.TurnPayload{ConnectionID: connID, Round: round}
	h.waitFor(func() bool {
		turns := h.rec.broadcasts(events.TypeTurn)
		return len(turns) > 0 && turns[len(turns)-1].Data == want
	}, "turn to %q in round %d", connID, round)
}

// advanceUntilTurn moves the clock by d and waits for a new turn broadcast.
func (h *harness) advanceUntilTurn(d time.Duration, connID string, round int) {
	h.t.Helper()
	before := len(h.rec.broadcasts(events.TypeTurn))
	h.clock.Advance(d)
	h.waitFor(func() bool {
		return len(h.rec.broadcasts(events.TypeTurn)) > before
	}, "turn broadcast after advancing %s", d)
	h.waitForTurn(connID, round)
}

func testRules() Rules {
	return Rules{
		MaxRounds:          3,
		TurnSeconds:        3,
		LeaderboardSeconds: 10,
		RatingMin:          1,
		RatingMax:          5,
	}
}

func lastTurn(t *testing.T, rec *recorder) events.TurnPayload {
	t.Helper()
	turns := rec.broadcasts(events.TypeTurn)
	require.NotEmpty(t, turns)
	return turns[len(turns)-1].Data.(events.TurnPayload)
}

func ints(evts []events.Event) []int {
	out := make([]int, 0, len(evts))
	for _, e := range evts {
		out = append(out, e.Data.(int))
	}
	return out
}

var errStoreDown = errors.New("store down")

// failingStore rejects every write.
type failingStore struct {
	mu    sync.Mutex
	calls int
}

func (f *failingStore) fail() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return errStoreDown
}

func (f *failingStore) SavePlayer(context.Context, models.Player) error     { return f.fail() }
func (f *failingStore) DeletePlayer(context.Context, string) error          { return f.fail() }
func (f *failingStore) DeleteAllPlayers(context.Context) error              { return f.fail() }
func (f *failingStore) AppendRating(context.Context, string, float64) error { return f.fail() }
func (f *failingStore) AppendStroke(context.Context, models.Stroke) error   { return f.fail() }
func (f *failingStore) ClearStrokes(context.Context) error                  { return f.fail() }
