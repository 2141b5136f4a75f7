package gateway

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/mcdev12/sketchturn/go/internal/models"
	"github.com/mcdev12/sketchturn/go/internal/session/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	op     string
	connID string
	arg    string
	stroke models.Stroke
	value  float64
}

type fakeDispatcher struct {
	calls chan call
}

func newFakeDispatcher() *fakeDispatcher {
	return &fakeDispatcher{calls: make(chan call, 64)}
}

func (f *fakeDispatcher) Join(_ context.Context, connID, name string) error {
	f.calls <- call{op: "join", connID: connID, arg: name}
	return nil
}

func (f *fakeDispatcher) Draw(_ context.Context, connID string, stroke models.Stroke) error {
	f.calls <- call{op: "draw", connID: connID, stroke: stroke}
	return nil
}

func (f *fakeDispatcher) Clear(_ context.Context, connID string) error {
	f.calls <- call{op: "clear", connID: connID}
	return nil
}

func (f *fakeDispatcher) Rate(_ context.Context, connID, targetName string, value float64) error {
	f.calls <- call{op: "rate", connID: connID, arg: targetName, value: value}
	return nil
}

func (f *fakeDispatcher) Leave(_ context.Context, connID string) error {
	f.calls <- call{op: "leave", connID: connID}
	return nil
}

func (f *fakeDispatcher) Disconnect(_ context.Context, connID string) error {
	f.calls <- call{op: "disconnect", connID: connID}
	return nil
}

func (f *fakeDispatcher) next(t *testing.T) call {
	t.Helper()
	select {
	case c := <-f.calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for dispatcher call")
		return call{}
	}
}

type testServer struct {
	cm         *ConnectionManager
	dispatcher *fakeDispatcher
	url        string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	cm := NewConnectionManager(DefaultConnectionConfig())
	d := newFakeDispatcher()

	router := httprouter.New()
	NewWebSocketHandler(cm, d).RegisterRoutes(router)
	srv := httptest.NewServer(router)

	ctx, cancel := context.WithCancel(context.Background())
	go cm.Start(ctx)

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})

	return &testServer{
		cm:         cm,
		dispatcher: d,
		url:        "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
	}
}

func (s *testServer) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(s.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

// join sends a join frame and returns the connection id the server assigned.
func (s *testServer) join(t *testing.T, conn *websocket.Conn, name string) string {
	t.Helper()
	send(t, conn, `{"type":"join","data":"`+name+`"}`)
	c := s.dispatcher.next(t)
	require.Equal(t, "join", c.op)
	require.Equal(t, name, c.arg)
	return c.connID
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestGateway_SendReachesOnlyTarget(t *testing.T) {
	s := newTestServer(t)
	alice := s.dial(t)
	bob := s.dial(t)
	aliceID := s.join(t, alice, "alice")
	s.join(t, bob, "bob")

	s.cm.Send(aliceID, events.Timer(30))
	s.cm.Broadcast(events.Round(2))

	env := readEnvelope(t, alice)
	assert.Equal(t, events.TypeTimer, env.Type)
	assert.JSONEq(t, `30`, string(env.Data))
	assert.NotEmpty(t, env.ID)
	assert.False(t, env.Timestamp.IsZero())

	env = readEnvelope(t, alice)
	assert.Equal(t, events.TypeRound, env.Type)

	// bob never saw the timer
	env = readEnvelope(t, bob)
	assert.Equal(t, events.TypeRound, env.Type)
	assert.JSONEq(t, `2`, string(env.Data))
}

func TestGateway_BroadcastExceptSkipsSender(t *testing.T) {
	s := newTestServer(t)
	alice := s.dial(t)
	bob := s.dial(t)
	aliceID := s.join(t, alice, "alice")
	s.join(t, bob, "bob")

	stroke := models.Stroke{X0: 1, Y0: 2, X1: 3, Y1: 4, Color: "#123456"}
	s.cm.BroadcastExcept(aliceID, events.Draw(stroke))
	s.cm.Broadcast(events.Clear())

	env := readEnvelope(t, bob)
	assert.Equal(t, events.TypeDraw, env.Type)
	assert.JSONEq(t, `{"x0":1,"y0":2,"x1":3,"y1":4,"color":"#123456"}`, string(env.Data))

	env = readEnvelope(t, alice)
	assert.Equal(t, events.TypeClear, env.Type)
	assert.JSONEq(t, `null`, string(env.Data))
}

func TestGateway_DecodesClientFrames(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t)
	id := s.join(t, conn, "alice")

	send(t, conn, `{"type":"draw","data":{"x0":0,"y0":0,"x1":5,"y1":5,"color":"#000000"}}`)
	c := s.dispatcher.next(t)
	assert.Equal(t, "draw", c.op)
	assert.Equal(t, id, c.connID)
	assert.Equal(t, models.Stroke{X1: 5, Y1: 5, Color: "#000000"}, c.stroke)

	send(t, conn, `not json`)
	send(t, conn, `{"type":"dance"}`)

	send(t, conn, `{"type":"rate","data":{"targetName":"bob","value":4}}`)
	c = s.dispatcher.next(t)
	assert.Equal(t, "rate", c.op)
	assert.Equal(t, "bob", c.arg)
	assert.Equal(t, 4.0, c.value)

	send(t, conn, `{"type":"clear"}`)
	c = s.dispatcher.next(t)
	assert.Equal(t, "clear", c.op)
}

func TestGateway_LeaveClosesSocket(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t)
	id := s.join(t, conn, "alice")

	send(t, conn, `{"type":"leave"}`)

	c := s.dispatcher.next(t)
	assert.Equal(t, call{op: "leave", connID: id}, c)
	c = s.dispatcher.next(t)
	assert.Equal(t, call{op: "disconnect", connID: id}, c)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)

	require.Eventually(t, func() bool {
		return s.cm.Stats().TotalConnections == 0
	}, 2*time.Second, 5*time.Millisecond)
}

func TestGateway_ClientCloseReportsDisconnect(t *testing.T) {
	s := newTestServer(t)
	conn := s.dial(t)
	id := s.join(t, conn, "alice")

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))

	c := s.dispatcher.next(t)
	assert.Equal(t, call{op: "disconnect", connID: id}, c)
}
