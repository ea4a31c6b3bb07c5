package server

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/openlift/serversdk/message"
	"github.com/openlift/serversdk/sdkerr"
	"github.com/openlift/serversdk/transport"
	"go.uber.org/zap"
)

const loggerName = "serversdk"

const defaultHealthCheckInterval = 60 * time.Second

var defaultLogger *zap.SugaredLogger

func init() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("error constructing default logger: %s", err))
	}
	defaultLogger = logger.Sugar().Named(loggerName)
}

// The control plane assumes a single SDK presence behind each process id, so
// at most one ProcessState is live per process.
var (
	liveMu sync.Mutex
	live   *ProcessState
)

// ProcessState is the session-lifecycle state machine for one game-server
// process. It tracks readiness, the assigned game session, and the
// termination deadline, and it owns the transport connection and the health
// reporter.
//
// All methods are safe for concurrent use. Methods on a nil or destroyed
// ProcessState fail with sdkerr.ErrNotInitialized.
type ProcessState struct {
	log            *zap.SugaredLogger
	cfg            Config
	cfgSet         bool
	healthInterval time.Duration

	mu              sync.Mutex
	sock            transport.Socket
	client          *transport.Client
	destroyed       bool
	ready           bool
	gameSessionID   string
	terminationTime time.Time

	onStartGameSession  func(message.GameSession)
	onUpdateGameSession func(message.UpdateGameSession)
	onProcessTerminate  func()
	onHealthCheck       func() bool
}

var _ transport.Handler = (*ProcessState)(nil)

type Option func(p *ProcessState)

func WithLogger(l *zap.Logger) Option {
	return func(p *ProcessState) {
		p.log = l.Sugar().Named(loggerName)
	}
}

// WithConfig supplies the config directly instead of reading the
// environment.
func WithConfig(cfg Config) Option {
	return func(p *ProcessState) {
		p.cfg = cfg
		p.cfgSet = true
	}
}

// WithSocket supplies the transport socket directly instead of dialing the
// configured WebSocket URL. Used by tests.
func WithSocket(sock transport.Socket) Option {
	return func(p *ProcessState) {
		p.sock = sock
	}
}

func WithHealthCheckInterval(d time.Duration) Option {
	return func(p *ProcessState) {
		p.healthInterval = d
	}
}

// CreateInstance constructs the process's ProcessState. At most one instance
// is live at a time; a second call fails with sdkerr.ErrAlreadyInitialized
// until Destroy releases the first.
func CreateInstance(opts ...Option) (*ProcessState, error) {
	p := &ProcessState{log: defaultLogger}
	for _, o := range opts {
		o(p)
	}
	if !p.cfgSet {
		cfg, err := LoadConfig()
		if err != nil {
			return nil, err
		}
		p.cfg = cfg
	}
	if p.healthInterval <= 0 {
		p.healthInterval = p.cfg.HealthCheckInterval
	}
	if p.healthInterval <= 0 {
		p.healthInterval = defaultHealthCheckInterval
	}

	liveMu.Lock()
	defer liveMu.Unlock()
	if live != nil {
		return nil, sdkerr.ErrAlreadyInitialized
	}
	live = p
	return p, nil
}

// InitNetworking dials the control-plane proxy and installs event routing.
// Call once, before ProcessReady.
func (p *ProcessState) InitNetworking(ctx context.Context) error {
	if p == nil {
		return sdkerr.ErrNotInitialized
	}
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return sdkerr.ErrNotInitialized
	}
	if p.sock == nil {
		p.sock = transport.NewWebSocketSocket(p.cfg.WebSocketURL, p.cfg.ProcessID, p.log)
	}
	if p.client == nil {
		p.client = transport.NewClient(p.sock, p, p.log)
	}
	client := p.client
	p.mu.Unlock()

	return client.Connect(ctx)
}

// Destroy drops readiness, closes the transport, and releases the
// live-instance slot so a later CreateInstance can succeed.
func (p *ProcessState) Destroy() error {
	if p == nil {
		return sdkerr.ErrNotInitialized
	}
	p.mu.Lock()
	if p.destroyed {
		p.mu.Unlock()
		return sdkerr.ErrNotInitialized
	}
	p.destroyed = true
	p.ready = false
	client := p.client
	p.mu.Unlock()

	liveMu.Lock()
	if live == p {
		live = nil
	}
	liveMu.Unlock()

	if client != nil {
		if err := client.Close("process state destroyed"); err != nil {
			return fmt.Errorf("closing transport: %w", err)
		}
	}
	return nil
}

// connectedClient gates every network operation: the instance must be live
// and the channel established.
func (p *ProcessState) connectedClient() (*transport.Client, error) {
	if p == nil {
		return nil, sdkerr.ErrNotInitialized
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return nil, sdkerr.ErrNotInitialized
	}
	if p.client == nil || !p.client.Connected() {
		return nil, sdkerr.ErrTransportNotInitialized
	}
	return p.client, nil
}

// readySessionID gates the session-bound operations: the process must be
// ready and a session must be assigned.
func (p *ProcessState) readySessionID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.ready {
		return "", sdkerr.ErrProcessNotReady
	}
	if p.gameSessionID == "" {
		return "", sdkerr.ErrNoGameSession
	}
	return p.gameSessionID, nil
}

// sessionID gates calls that tag the assigned session but do not require
// readiness.
func (p *ProcessState) sessionID() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.gameSessionID == "" {
		return "", sdkerr.ErrNoGameSession
	}
	return p.gameSessionID, nil
}

// ProcessReady declares this process able to host a game session. It records
// the callbacks, reports readiness with the port and log paths from params,
// and starts the health reporter.
func (p *ProcessState) ProcessReady(ctx context.Context, params ProcessParameters) error {
	client, err := p.connectedClient()
	if err != nil {
		return err
	}
	if params.OnStartGameSession == nil {
		return fmt.Errorf("ProcessParameters.OnStartGameSession is required")
	}

	onHealthCheck := params.OnHealthCheck
	if onHealthCheck == nil {
		onHealthCheck = func() bool { return true }
	}

	p.mu.Lock()
	p.onStartGameSession = params.OnStartGameSession
	p.onUpdateGameSession = params.OnUpdateGameSession
	p.onProcessTerminate = params.OnProcessTerminate
	p.onHealthCheck = onHealthCheck
	p.mu.Unlock()

	err = client.Call(ctx, message.ProcessReady{
		Port:             params.Port,
		LogPathsToUpload: params.LogParameters.LogPaths,
	}, nil)
	if err != nil {
		return fmt.Errorf("declaring process ready: %w", err)
	}

	p.mu.Lock()
	p.ready = true
	p.mu.Unlock()

	p.startHealthReporter()

	p.log.Infow("process ready", "Port", params.Port)
	return nil
}

// ProcessEnding tells the control plane this process is shutting down. It
// clears readiness first, so the health reporter stops on its next tick.
func (p *ProcessState) ProcessEnding(ctx context.Context) error {
	client, err := p.connectedClient()
	if err != nil {
		return err
	}

	p.mu.Lock()
	p.ready = false
	p.mu.Unlock()

	if err := client.Call(ctx, message.ProcessEnding{}, nil); err != nil {
		return fmt.Errorf("declaring process ending: %w", err)
	}
	return nil
}

// ActivateGameSession reports the assigned session as live and joinable.
func (p *ProcessState) ActivateGameSession(ctx context.Context) error {
	client, err := p.connectedClient()
	if err != nil {
		return err
	}
	id, err := p.readySessionID()
	if err != nil {
		return err
	}
	if err := client.Call(ctx, message.GameSessionActivate{GameSessionID: id}, nil); err != nil {
		return fmt.Errorf("activating game session: %w", err)
	}
	return nil
}

// TerminateGameSession reports the assigned session as finished. The session
// id stays recorded; the process becomes eligible for a new placement only
// through a fresh ProcessReady cycle.
func (p *ProcessState) TerminateGameSession(ctx context.Context) error {
	client, err := p.connectedClient()
	if err != nil {
		return err
	}
	id, err := p.readySessionID()
	if err != nil {
		return err
	}
	if err := client.Call(ctx, message.GameSessionTerminate{GameSessionID: id}, nil); err != nil {
		return fmt.Errorf("terminating game session: %w", err)
	}
	return nil
}

// AcceptPlayerSession validates a joining player's reservation with the
// control plane.
func (p *ProcessState) AcceptPlayerSession(ctx context.Context, playerSessionID string) error {
	client, err := p.connectedClient()
	if err != nil {
		return err
	}
	id, err := p.readySessionID()
	if err != nil {
		return err
	}
	err = client.Call(ctx, message.AcceptPlayerSession{
		GameSessionID:   id,
		PlayerSessionID: playerSessionID,
	}, nil)
	if err != nil {
		return fmt.Errorf("accepting player session: %w", err)
	}
	return nil
}

// RemovePlayerSession releases a player's slot back to the control plane.
func (p *ProcessState) RemovePlayerSession(ctx context.Context, playerSessionID string) error {
	client, err := p.connectedClient()
	if err != nil {
		return err
	}
	id, err := p.readySessionID()
	if err != nil {
		return err
	}
	err = client.Call(ctx, message.RemovePlayerSession{
		GameSessionID:   id,
		PlayerSessionID: playerSessionID,
	}, nil)
	if err != nil {
		return fmt.Errorf("removing player session: %w", err)
	}
	return nil
}

// DescribePlayerSessions queries player sessions matching the request's
// filters. Pagination is the caller's affair via NextToken.
func (p *ProcessState) DescribePlayerSessions(ctx context.Context, req *message.DescribePlayerSessionsRequest) (*message.DescribePlayerSessionsResponse, error) {
	client, err := p.connectedClient()
	if err != nil {
		return nil, err
	}
	if req == nil {
		req = &message.DescribePlayerSessionsRequest{}
	}
	var resp message.DescribePlayerSessionsResponse
	if err := client.Call(ctx, *req, &resp); err != nil {
		return nil, fmt.Errorf("describing player sessions: %w", err)
	}
	return &resp, nil
}

// UpdatePlayerSessionCreationPolicy changes whether the assigned session
// accepts new players.
func (p *ProcessState) UpdatePlayerSessionCreationPolicy(ctx context.Context, policy message.PlayerSessionCreationPolicy) error {
	client, err := p.connectedClient()
	if err != nil {
		return err
	}
	id, err := p.sessionID()
	if err != nil {
		return err
	}
	err = client.Call(ctx, message.UpdatePlayerSessionCreationPolicy{
		GameSessionID:                  id,
		NewPlayerSessionCreationPolicy: string(policy),
	}, nil)
	if err != nil {
		return fmt.Errorf("updating player session creation policy: %w", err)
	}
	return nil
}

// BackfillMatchmaking asks the matchmaker to fill open slots in the assigned
// session. The returned ticket id identifies the backfill request.
func (p *ProcessState) BackfillMatchmaking(ctx context.Context, req *message.BackfillMatchmakingRequest) (*message.BackfillMatchmakingResponse, error) {
	client, err := p.connectedClient()
	if err != nil {
		return nil, err
	}
	if req == nil {
		req = &message.BackfillMatchmakingRequest{}
	}
	var resp message.BackfillMatchmakingResponse
	if err := client.Call(ctx, *req, &resp); err != nil {
		return nil, fmt.Errorf("requesting matchmaking backfill: %w", err)
	}
	return &resp, nil
}

// StopMatchmaking cancels an in-flight backfill ticket.
func (p *ProcessState) StopMatchmaking(ctx context.Context, req *message.StopMatchmakingRequest) error {
	client, err := p.connectedClient()
	if err != nil {
		return err
	}
	if req == nil {
		req = &message.StopMatchmakingRequest{}
	}
	if err := client.Call(ctx, *req, nil); err != nil {
		return fmt.Errorf("stopping matchmaking: %w", err)
	}
	return nil
}

// GetInstanceCertificate reports where the instance's TLS credentials live
// on disk.
func (p *ProcessState) GetInstanceCertificate(ctx context.Context) (*message.GetInstanceCertificateResponse, error) {
	client, err := p.connectedClient()
	if err != nil {
		return nil, err
	}
	var resp message.GetInstanceCertificateResponse
	if err := client.Call(ctx, message.GetInstanceCertificate{}, &resp); err != nil {
		return nil, fmt.Errorf("getting instance certificate: %w", err)
	}
	return &resp, nil
}

// GameSessionID returns the id of the session assigned to this process.
func (p *ProcessState) GameSessionID() (string, error) {
	if p == nil {
		return "", sdkerr.ErrNotInitialized
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return "", sdkerr.ErrNotInitialized
	}
	if p.gameSessionID == "" {
		return "", sdkerr.ErrNoGameSession
	}
	return p.gameSessionID, nil
}

// TerminationTime returns the deadline from the last terminate order. The
// zero time means no order has arrived; that is not an error.
func (p *ProcessState) TerminationTime() (time.Time, error) {
	if p == nil {
		return time.Time{}, sdkerr.ErrNotInitialized
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return time.Time{}, sdkerr.ErrNotInitialized
	}
	return p.terminationTime, nil
}

// HandleStartGameSession implements transport.Handler.
//
// A placement that arrives before readiness is refused via ack(false), but
// the rest of the handling still runs: the session id is recorded, the user
// callback fires, and the closing ack(true) lands on the already-spent
// one-shot ack.
func (p *ProcessState) HandleStartGameSession(gs message.GameSession, ack transport.AckFunc) {
	p.mu.Lock()
	ready := p.ready
	p.gameSessionID = gs.GameSessionID
	onStart := p.onStartGameSession
	p.mu.Unlock()

	if !ready {
		p.log.Debugw("refusing game session, process not ready", "GameSessionID", gs.GameSessionID)
		ack(false)
	}

	p.log.Infow("game session assigned", "GameSessionID", gs.GameSessionID)
	if onStart != nil {
		onStart(gs)
	}
	ack(true)
}

// HandleUpdateGameSession implements transport.Handler. It carries the same
// not-ready behavior as HandleStartGameSession.
func (p *ProcessState) HandleUpdateGameSession(update message.UpdateGameSession, ack transport.AckFunc) {
	p.mu.Lock()
	ready := p.ready
	onUpdate := p.onUpdateGameSession
	p.mu.Unlock()

	if !ready {
		p.log.Debugw("refusing game session update, process not ready", "UpdateReason", update.UpdateReason)
		ack(false)
	}

	if onUpdate != nil {
		onUpdate(update)
	}
	ack(true)
}

// HandleTerminateProcess implements transport.Handler. A terminate order for
// a process that is not ready is ignored; there is nothing to wind down.
func (p *ProcessState) HandleTerminateProcess(terminationTime time.Time) {
	p.mu.Lock()
	if !p.ready {
		p.mu.Unlock()
		p.log.Debug("ignoring terminate order, process is not ready")
		return
	}
	p.terminationTime = terminationTime
	onTerminate := p.onProcessTerminate
	p.mu.Unlock()

	p.log.Infow("terminate ordered", "TerminationTime", terminationTime)
	if onTerminate != nil {
		onTerminate()
	}
}

func (p *ProcessState) startHealthReporter() {
	r := &healthReporter{
		log:      p.log.Named("health"),
		interval: p.healthInterval,
		ready: func() bool {
			p.mu.Lock()
			defer p.mu.Unlock()
			return p.ready && !p.destroyed
		},
		check: func() bool {
			p.mu.Lock()
			check := p.onHealthCheck
			p.mu.Unlock()
			return check()
		},
		report: func(ctx context.Context, healthy bool) error {
			client, err := p.connectedClient()
			if err != nil {
				return err
			}
			return client.Call(ctx, message.ReportHealth{HealthStatus: healthy}, nil)
		},
	}
	go r.run()
}
