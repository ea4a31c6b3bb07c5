package transport

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/openlift/serversdk/sdkerr"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// Handshake metadata sent as query parameters when dialing the control
// plane, so it can associate the connection with this server process.
const (
	SDKVersion  = "4.0.2"
	SDKLanguage = "Go"
)

const (
	// dialRetryMax bounds handshake retries within a single Connect call.
	dialRetryMax = 3

	// readLimit bounds a single inbound frame. Session descriptors carry
	// matchmaker data blobs, so this is well above the defaults.
	readLimit = 262144
)

// WebSocketSocket is the production Socket, speaking Packet frames over a
// single persistent WebSocket connection to the local control-plane proxy.
type WebSocketSocket struct {
	log        *zap.SugaredLogger
	url        string
	processID  string
	httpClient *http.Client

	mu         sync.Mutex
	conn       *websocket.Conn
	cancelRead context.CancelFunc
	connecting bool
	nextSeq    int64
	pending    map[int64]ResponseFunc
	handlers   map[string]EventFunc
}

var _ Socket = (*WebSocketSocket)(nil)

// NewWebSocketSocket returns a disconnected socket that will dial rawURL,
// identifying itself as processID.
func NewWebSocketSocket(rawURL, processID string, log *zap.SugaredLogger) *WebSocketSocket {
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = dialRetryMax
	retryClient.Backoff = func(min, max time.Duration, attemptNum int, resp *http.Response) time.Duration {
		return 250 * time.Millisecond
	}
	retryClient.Logger = &logAdapter{log}

	return &WebSocketSocket{
		log:        log.Named("socket"),
		url:        rawURL,
		processID:  processID,
		httpClient: retryClient.StandardClient(),
	}
}

type logAdapter struct {
	log *zap.SugaredLogger
}

func (a *logAdapter) Printf(msg string, args ...interface{}) {
	a.log.Debugf(msg, args...)
}

func (s *WebSocketSocket) handshakeURL() (string, error) {
	u, err := url.Parse(s.url)
	if err != nil {
		return "", fmt.Errorf("parsing WebSocket URL %q: %w", s.url, err)
	}
	q := u.Query()
	q.Set("pID", s.processID)
	q.Set("sdkVersion", SDKVersion)
	q.Set("sdkLanguage", SDKLanguage)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *WebSocketSocket) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.conn != nil {
		s.mu.Unlock()
		return nil
	}
	if s.connecting {
		s.mu.Unlock()
		return fmt.Errorf("connect already in progress")
	}
	s.connecting = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.connecting = false
		s.mu.Unlock()
	}()

	u, err := s.handshakeURL()
	if err != nil {
		return err
	}

	s.log.Debugw("dialing control plane", "URL", u)
	conn, _, err := websocket.Dial(ctx, u, &websocket.DialOptions{
		HTTPClient:      s.httpClient,
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		return fmt.Errorf("dialing WebSocket conn: %w", err)
	}
	conn.SetReadLimit(readLimit)

	readCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.conn = conn
	s.cancelRead = cancel
	s.nextSeq = 0
	s.pending = map[int64]ResponseFunc{}
	s.mu.Unlock()

	go s.readLoop(readCtx, conn)

	return nil
}

func (s *WebSocketSocket) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

func (s *WebSocketSocket) Emit(ctx context.Context, event string, payload []byte, reply ResponseFunc) error {
	s.mu.Lock()
	conn := s.conn
	if conn == nil {
		s.mu.Unlock()
		return sdkerr.ErrTransportNotInitialized
	}
	var seq int64
	if reply != nil {
		s.nextSeq++
		seq = s.nextSeq
		s.pending[seq] = reply
	}
	s.mu.Unlock()

	err := wsjson.Write(ctx, conn, Packet{Event: event, Data: payload, Seq: seq})
	if err != nil {
		if seq != 0 {
			s.mu.Lock()
			delete(s.pending, seq)
			s.mu.Unlock()
		}
		return fmt.Errorf("writing %s: %w", event, err)
	}
	return nil
}

func (s *WebSocketSocket) On(event string, fn EventFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.handlers == nil {
		s.handlers = map[string]EventFunc{}
	}
	s.handlers[event] = fn
}

func (s *WebSocketSocket) Close(reason string) error {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		return nil
	}

	// WebSocket close reasons are limited to 125 bytes.
	if len(reason) > 100 {
		reason = reason[:100]
	}
	err := conn.Close(websocket.StatusNormalClosure, reason)
	s.teardown(conn)
	return err
}

// readLoop owns all reads on conn. It runs from connect until the connection
// drops, dispatching each inbound packet in delivery order.
func (s *WebSocketSocket) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		var pkt Packet
		err := wsjson.Read(ctx, conn, &pkt)
		if err != nil {
			s.log.Debugf("read loop exiting: %s", err)
			s.teardown(conn)
			return
		}
		s.route(ctx, conn, pkt)
	}
}

func (s *WebSocketSocket) route(ctx context.Context, conn *websocket.Conn, pkt Packet) {
	if pkt.Ack != 0 {
		s.mu.Lock()
		reply := s.pending[pkt.Ack]
		delete(s.pending, pkt.Ack)
		s.mu.Unlock()
		if reply == nil {
			s.log.Debugf("dropping ack for unknown seq %d", pkt.Ack)
			return
		}
		reply(pkt.OK, pkt.Data)
		return
	}

	if pkt.Event == "" {
		s.log.Debugw("dropping packet with no event or ack", "Packet", pkt)
		return
	}

	s.mu.Lock()
	fn := s.handlers[pkt.Event]
	s.mu.Unlock()

	ack := AckFunc(func(bool) {})
	if pkt.Seq != 0 {
		seq := pkt.Seq
		var once sync.Once
		ack = func(ok bool) {
			once.Do(func() {
				err := wsjson.Write(ctx, conn, Packet{Ack: seq, OK: ok})
				if err != nil {
					s.log.Debugf("error acking event %q: %s", pkt.Event, err)
				}
			})
		}
	}

	if fn == nil {
		s.log.Debugf("no handler for event %q", pkt.Event)
		ack(false)
		return
	}
	fn(pkt.Data, ack)
}

// teardown releases all channel state tied to conn: pending replies fail with
// ok=false and event subscriptions die with the connection. It is a no-op if
// conn has already been torn down or replaced.
func (s *WebSocketSocket) teardown(conn *websocket.Conn) {
	s.mu.Lock()
	if s.conn != conn {
		s.mu.Unlock()
		return
	}
	s.conn = nil
	if s.cancelRead != nil {
		s.cancelRead()
		s.cancelRead = nil
	}
	pending := s.pending
	s.pending = nil
	s.handlers = nil
	s.mu.Unlock()

	for _, reply := range pending {
		reply(false, nil)
	}
}
