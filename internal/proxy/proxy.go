// Package proxy is an in-process stand-in for the control plane's local
// proxy: it accepts an SDK process's WebSocket connection, records and
// acknowledges every operation the SDK emits, and pushes session-lifecycle
// events back. Tests and the localproxy dev binary drive it.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"

	"github.com/julienschmidt/httprouter"
	"github.com/openlift/serversdk/transport"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// ReceivedEvent is one operation the connected SDK process emitted.
type ReceivedEvent struct {
	Event   string
	Payload json.RawMessage
}

// Responder scripts the acknowledgment for one named operation. Returning
// ok=false sends a failure acknowledgment; a non-nil body is marshaled into
// the acknowledgment payload either way.
type Responder func(payload json.RawMessage) (ok bool, body interface{})

type ackResult struct {
	ok  bool
	err error
}

// Proxy accepts one SDK process at a time; a second connection replaces the
// first. All methods are safe for concurrent use.
type Proxy struct {
	log        *zap.SugaredLogger
	listenAddr string

	httpServer *http.Server
	listener   net.Listener

	mu          sync.Mutex
	conn        *websocket.Conn
	handshake   url.Values
	received    []ReceivedEvent
	responders  map[string]Responder
	eventHook   func(ReceivedEvent)
	nextSeq     int64
	pendingAcks map[int64]chan ackResult
}

type Option func(p *Proxy)

func WithLogger(l *zap.Logger) Option {
	return func(p *Proxy) {
		p.log = l.Sugar().Named("proxy")
	}
}

func WithListenAddr(s string) Option {
	return func(p *Proxy) {
		p.listenAddr = s
	}
}

// WithEventHook registers fn to run after each received operation is
// recorded. The hook runs on its own goroutine so it may push events and
// wait on their acknowledgments.
func WithEventHook(fn func(ReceivedEvent)) Option {
	return func(p *Proxy) {
		p.eventHook = fn
	}
}

func New(opts ...Option) *Proxy {
	p := &Proxy{
		log:         zap.NewNop().Sugar(),
		listenAddr:  "127.0.0.1:0",
		responders:  map[string]Responder{},
		pendingAcks: map[int64]chan ackResult{},
	}
	for _, o := range opts {
		o(p)
	}
	p.installDefaultResponders()
	return p
}

// Start listens on the configured address and serves in the background.
func (p *Proxy) Start() error {
	listener, err := net.Listen("tcp", p.listenAddr)
	if err != nil {
		return fmt.Errorf("listening TCP: %w", err)
	}
	p.listener = listener

	router := httprouter.New()
	router.GET("/", p.accept)
	router.GET("/healthz", p.healthz)

	p.httpServer = &http.Server{Handler: router}
	go func() {
		err := p.httpServer.Serve(listener)
		if !errors.Is(err, http.ErrServerClosed) {
			p.log.Debugf("HTTP server exited: %s", err)
		}
	}()

	p.log.Infow("proxy listening", "Addr", p.Addr())
	return nil
}

// Addr is the proxy's listen address, valid after Start.
func (p *Proxy) Addr() string {
	return p.listener.Addr().String()
}

// URL is the WebSocket endpoint SDK processes should dial.
func (p *Proxy) URL() string {
	return "ws://" + p.Addr()
}

func (p *Proxy) Stop() error {
	return p.httpServer.Close()
}

// Connected reports whether an SDK process is currently connected.
func (p *Proxy) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn != nil
}

// Handshake returns the query parameters the connected process dialed with.
func (p *Proxy) Handshake() url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := url.Values{}
	for k, v := range p.handshake {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Events returns a snapshot of every operation received so far, oldest
// first.
func (p *Proxy) Events() []ReceivedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ReceivedEvent(nil), p.received...)
}

// EventsNamed filters Events by event name.
func (p *Proxy) EventsNamed(name string) []ReceivedEvent {
	var out []ReceivedEvent
	for _, ev := range p.Events() {
		if ev.Event == name {
			out = append(out, ev)
		}
	}
	return out
}

// RespondTo scripts the acknowledgment for the named operation, replacing
// the default always-OK behavior.
func (p *Proxy) RespondTo(event string, fn Responder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.responders[event] = fn
}

func (p *Proxy) healthz(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	p.mu.Lock()
	response := struct {
		Connected bool
		ProcessID string
	}{
		Connected: p.conn != nil,
		ProcessID: p.handshake.Get("pID"),
	}
	p.mu.Unlock()

	b, err := json.Marshal(response)
	if err != nil {
		p.log.Debugf("error marshaling healthz response: %s", err)
	}
	w.Header().Add("Content-Type", "application/json")
	w.Write(b)
}

func (p *Proxy) accept(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	wsConn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		CompressionMode: websocket.CompressionContextTakeover,
	})
	if err != nil {
		p.log.Debugf("error accepting WebSocket conn: %s", err)
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	query := r.URL.Query()
	p.log.Debugw("accepted process conn", "PID", query.Get("pID"), "SDKVersion", query.Get("sdkVersion"), "SDKLanguage", query.Get("sdkLanguage"))

	p.mu.Lock()
	old := p.conn
	p.conn = wsConn
	p.handshake = query
	p.mu.Unlock()
	if old != nil {
		p.log.Debug("replacing existing process conn")
		old.Close(websocket.StatusGoingAway, "replaced by a new process conn")
	}

	p.serveConn(r.Context(), wsConn)
}

func (p *Proxy) serveConn(ctx context.Context, conn *websocket.Conn) {
	defer p.teardown(conn)
	for {
		var pkt transport.Packet
		err := wsjson.Read(ctx, conn, &pkt)
		if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
			p.log.Debug("got normal closure from process")
			return
		}
		if err != nil {
			p.log.Debugf("conn reader got error: %s", err)
			return
		}
		p.handlePacket(ctx, conn, pkt)
	}
}

func (p *Proxy) handlePacket(ctx context.Context, conn *websocket.Conn, pkt transport.Packet) {
	if pkt.Ack != 0 {
		p.mu.Lock()
		ackCh := p.pendingAcks[pkt.Ack]
		delete(p.pendingAcks, pkt.Ack)
		p.mu.Unlock()
		if ackCh == nil {
			p.log.Debugf("dropping ack for unknown seq %d", pkt.Ack)
			return
		}
		ackCh <- ackResult{ok: pkt.OK}
		return
	}
	if pkt.Event == "" {
		p.log.Debugw("dropping packet with no event or ack", "Packet", pkt)
		return
	}

	ev := ReceivedEvent{Event: pkt.Event, Payload: pkt.Data}
	p.mu.Lock()
	p.received = append(p.received, ev)
	responder := p.responders[pkt.Event]
	hook := p.eventHook
	p.mu.Unlock()

	p.log.Debugw("received operation", "Event", pkt.Event)
	if hook != nil {
		go hook(ev)
	}

	if pkt.Seq == 0 {
		return
	}

	ok, body := true, interface{}(nil)
	if responder != nil {
		ok, body = responder(pkt.Data)
	}
	var data json.RawMessage
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			p.log.Debugf("error marshaling %s response: %s", pkt.Event, err)
			ok, b = false, nil
		}
		data = b
	}
	err := wsjson.Write(ctx, conn, transport.Packet{Ack: pkt.Seq, OK: ok, Data: data})
	if err != nil {
		p.log.Debugf("error acking %s: %s", pkt.Event, err)
	}
}

func (p *Proxy) teardown(conn *websocket.Conn) {
	p.mu.Lock()
	if p.conn == conn {
		p.conn = nil
		p.handshake = nil
	}
	pending := p.pendingAcks
	p.pendingAcks = map[int64]chan ackResult{}
	p.mu.Unlock()

	for _, ackCh := range pending {
		ackCh <- ackResult{err: fmt.Errorf("process disconnected before acking")}
	}
}
