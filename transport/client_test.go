package transport

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/openlift/serversdk/message"
	"github.com/openlift/serversdk/sdkerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var log *zap.SugaredLogger

func init() {
	l, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	log = l.Sugar()
}

// fakeSocket scripts acknowledgment behavior per event name and lets tests
// deliver inbound events by hand.
type fakeSocket struct {
	mu        sync.Mutex
	connected bool
	emitted   []string
	replies   map[string]func(payload []byte) (bool, []byte)
	silent    map[string]bool
	handlers  map[string]EventFunc
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{
		replies:  map[string]func(payload []byte) (bool, []byte){},
		silent:   map[string]bool{},
		handlers: map[string]EventFunc{},
	}
}

func (s *fakeSocket) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *fakeSocket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *fakeSocket) Emit(ctx context.Context, event string, payload []byte, reply ResponseFunc) error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return sdkerr.ErrTransportNotInitialized
	}
	s.emitted = append(s.emitted, event)
	scripted := s.replies[event]
	silent := s.silent[event]
	s.mu.Unlock()

	if reply == nil || silent {
		return nil
	}
	if scripted == nil {
		reply(true, nil)
		return nil
	}
	ok, data := scripted(payload)
	reply(ok, data)
	return nil
}

func (s *fakeSocket) On(event string, fn EventFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[event] = fn
}

func (s *fakeSocket) Close(reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

func (s *fakeSocket) respondTo(event string, fn func(payload []byte) (bool, []byte)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies[event] = fn
}

// silence withholds the acknowledgment for an event entirely, leaving the
// caller waiting.
func (s *fakeSocket) silence(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.silent[event] = true
}

// deliver routes an inbound event the way the real socket's read loop would,
// with a one-shot ack recording its first outcome.
func (s *fakeSocket) deliver(t *testing.T, event string, payload []byte) *ackRecorder {
	s.mu.Lock()
	fn := s.handlers[event]
	s.mu.Unlock()
	require.NotNil(t, fn, "no handler subscribed for %s", event)

	rec := &ackRecorder{}
	fn(payload, rec.ack())
	return rec
}

type ackRecorder struct {
	mu    sync.Mutex
	acked bool
	ok    bool
}

func (r *ackRecorder) ack() AckFunc {
	var once sync.Once
	return func(ok bool) {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.acked = true
			r.ok = ok
		})
	}
}

func (r *ackRecorder) outcome() (acked, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.acked, r.ok
}

// handlerRecorder collects what the client routes to the Handler.
type handlerRecorder struct {
	mu         sync.Mutex
	started    []message.GameSession
	updated    []message.UpdateGameSession
	terminated []time.Time
}

func (h *handlerRecorder) HandleStartGameSession(gs message.GameSession, ack AckFunc) {
	h.mu.Lock()
	h.started = append(h.started, gs)
	h.mu.Unlock()
	ack(true)
}

func (h *handlerRecorder) HandleUpdateGameSession(update message.UpdateGameSession, ack AckFunc) {
	h.mu.Lock()
	h.updated = append(h.updated, update)
	h.mu.Unlock()
	ack(true)
}

func (h *handlerRecorder) HandleTerminateProcess(terminationTime time.Time) {
	h.mu.Lock()
	h.terminated = append(h.terminated, terminationTime)
	h.mu.Unlock()
}

func newTestClient(t *testing.T) (*Client, *fakeSocket, *handlerRecorder) {
	sock := newFakeSocket()
	handler := &handlerRecorder{}
	client := NewClient(sock, handler, log)
	require.NoError(t, client.Connect(context.Background()))
	return client, sock, handler
}

func TestCallSuccessWithoutResponse(t *testing.T) {
	client, sock, _ := newTestClient(t)

	err := client.Call(context.Background(), message.ProcessEnding{}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{(message.ProcessEnding{}).TypeName()}, sock.emitted)
}

func TestCallFailureCarriesEnvelopeMessage(t *testing.T) {
	client, sock, _ := newTestClient(t)
	sock.respondTo((message.GameSessionActivate{}).TypeName(), func(payload []byte) (bool, []byte) {
		return false, []byte(`{"status":"ERROR_400","errorMessage":"bad id"}`)
	})

	err := client.Call(context.Background(), message.GameSessionActivate{GameSessionID: "nope"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, sdkerr.ErrServiceCallFailed)
	assert.ErrorContains(t, err, "bad id")
}

func TestCallFailureWithUndecodableEnvelope(t *testing.T) {
	client, sock, _ := newTestClient(t)
	sock.respondTo((message.GameSessionActivate{}).TypeName(), func(payload []byte) (bool, []byte) {
		return false, []byte(`not json`)
	})

	err := client.Call(context.Background(), message.GameSessionActivate{GameSessionID: "nope"}, nil)
	assert.ErrorIs(t, err, sdkerr.ErrServiceCallFailed)
}

func TestCallExpectingResponseRejectsEmptyPayload(t *testing.T) {
	client, _, _ := newTestClient(t)

	var resp message.DescribePlayerSessionsResponse
	err := client.Call(context.Background(), message.DescribePlayerSessionsRequest{}, &resp)
	require.Error(t, err)
	assert.ErrorIs(t, err, sdkerr.ErrServiceCallFailed)
	assert.ErrorContains(t, err, "no response received")
}

func TestCallDecodesResponse(t *testing.T) {
	client, sock, _ := newTestClient(t)
	sock.respondTo((message.DescribePlayerSessionsRequest{}).TypeName(), func(payload []byte) (bool, []byte) {
		return true, []byte(`{"nextToken":"tok-2","playerSessions":[{"playerSessionId":"psess-1"}]}`)
	})

	var resp message.DescribePlayerSessionsResponse
	err := client.Call(context.Background(), message.DescribePlayerSessionsRequest{GameSessionID: "gsess-1"}, &resp)
	require.NoError(t, err)
	assert.Equal(t, "tok-2", resp.NextToken)
	require.Len(t, resp.PlayerSessions, 1)
	assert.Equal(t, "psess-1", resp.PlayerSessions[0].PlayerSessionID)
}

func TestCallRejectsUndecodableResponse(t *testing.T) {
	client, sock, _ := newTestClient(t)
	sock.respondTo((message.DescribePlayerSessionsRequest{}).TypeName(), func(payload []byte) (bool, []byte) {
		return true, []byte(`[1,2,3]`)
	})

	var resp message.DescribePlayerSessionsResponse
	err := client.Call(context.Background(), message.DescribePlayerSessionsRequest{}, &resp)
	assert.ErrorIs(t, err, sdkerr.ErrServiceCallFailed)
}

func TestCallHonorsContextCancellation(t *testing.T) {
	client, sock, _ := newTestClient(t)
	sock.silence((message.ProcessReady{}).TypeName())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Call(ctx, message.ProcessReady{Port: 2020}, nil)
	}()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	case <-time.After(5 * time.Second):
		t.Fatal("Call did not return after context cancellation")
	}
}

func TestStartGameSessionRouted(t *testing.T) {
	_, sock, handler := newTestClient(t)

	payload, err := json.Marshal(message.ActivateGameSession{
		GameSession: message.GameSession{GameSessionID: "gsess-1", MaxPlayers: 2},
	})
	require.NoError(t, err)

	rec := sock.deliver(t, message.EventStartGameSession, payload)

	acked, ok := rec.outcome()
	assert.True(t, acked)
	assert.True(t, ok)
	require.Len(t, handler.started, 1)
	assert.Equal(t, "gsess-1", handler.started[0].GameSessionID)
}

func TestStartGameSessionUndecodablePayloadAcksFalse(t *testing.T) {
	_, sock, handler := newTestClient(t)

	rec := sock.deliver(t, message.EventStartGameSession, []byte(`{{{`))

	acked, ok := rec.outcome()
	assert.True(t, acked)
	assert.False(t, ok)
	assert.Empty(t, handler.started)
}

func TestUpdateGameSessionRouted(t *testing.T) {
	_, sock, handler := newTestClient(t)

	payload, err := json.Marshal(message.UpdateGameSession{
		GameSession:      message.GameSession{GameSessionID: "gsess-1"},
		UpdateReason:     message.UpdateReasonBackfillTimedOut,
		BackfillTicketID: "ticket-1",
	})
	require.NoError(t, err)

	rec := sock.deliver(t, message.EventUpdateGameSession, payload)

	acked, ok := rec.outcome()
	assert.True(t, acked)
	assert.True(t, ok)
	require.Len(t, handler.updated, 1)
	assert.Equal(t, "ticket-1", handler.updated[0].BackfillTicketID)
}

func TestTerminateProcessRouted(t *testing.T) {
	_, sock, handler := newTestClient(t)

	deadline := time.Now().Add(3 * time.Minute).Truncate(time.Second)
	payload, err := json.Marshal(message.TerminateProcess{TerminationTime: deadline.Unix()})
	require.NoError(t, err)

	sock.deliver(t, message.EventTerminateProcess, payload)

	require.Len(t, handler.terminated, 1)
	assert.True(t, handler.terminated[0].Equal(deadline))
}

func TestTerminateProcessMalformedPayloadDefaultsDeadline(t *testing.T) {
	_, sock, handler := newTestClient(t)

	before := time.Now()
	sock.deliver(t, message.EventTerminateProcess, []byte(`garbage`))

	require.Len(t, handler.terminated, 1)
	got := handler.terminated[0]
	assert.WithinDuration(t, before.Add(TerminationGracePeriod), got, 5*time.Second)
}
