package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openlift/serversdk/message"
	"github.com/openlift/serversdk/transport"
	"nhooyr.io/websocket/wsjson"
)

// PushStartGameSession places gs on the connected process and waits for its
// acknowledgment.
func (p *Proxy) PushStartGameSession(ctx context.Context, gs message.GameSession) (bool, error) {
	payload, err := json.Marshal(message.ActivateGameSession{GameSession: gs})
	if err != nil {
		return false, fmt.Errorf("encoding game session: %w", err)
	}
	return p.pushWithAck(ctx, message.EventStartGameSession, payload)
}

// PushUpdateGameSession delivers a session update to the connected process
// and waits for its acknowledgment.
func (p *Proxy) PushUpdateGameSession(ctx context.Context, update message.UpdateGameSession) (bool, error) {
	payload, err := json.Marshal(update)
	if err != nil {
		return false, fmt.Errorf("encoding game session update: %w", err)
	}
	return p.pushWithAck(ctx, message.EventUpdateGameSession, payload)
}

// PushTerminateProcess orders the connected process to end by the given
// deadline. The terminate event is fire-and-forget: no acknowledgment is
// requested.
func (p *Proxy) PushTerminateProcess(ctx context.Context, terminationTime time.Time) error {
	payload, err := json.Marshal(message.TerminateProcess{TerminationTime: terminationTime.Unix()})
	if err != nil {
		return fmt.Errorf("encoding terminate order: %w", err)
	}
	return p.push(ctx, message.EventTerminateProcess, payload)
}

// PushRaw sends payload verbatim under the named event without requesting an
// acknowledgment. It exists to exercise malformed-payload handling.
func (p *Proxy) PushRaw(ctx context.Context, event string, payload []byte) error {
	return p.push(ctx, event, payload)
}

func (p *Proxy) push(ctx context.Context, event string, payload []byte) error {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("no process connected")
	}
	err := wsjson.Write(ctx, conn, transport.Packet{Event: event, Data: payload})
	if err != nil {
		return fmt.Errorf("writing %s: %w", event, err)
	}
	return nil
}

func (p *Proxy) pushWithAck(ctx context.Context, event string, payload []byte) (bool, error) {
	p.mu.Lock()
	conn := p.conn
	if conn == nil {
		p.mu.Unlock()
		return false, fmt.Errorf("no process connected")
	}
	p.nextSeq++
	seq := p.nextSeq
	ackCh := make(chan ackResult, 1)
	p.pendingAcks[seq] = ackCh
	p.mu.Unlock()

	err := wsjson.Write(ctx, conn, transport.Packet{Event: event, Data: payload, Seq: seq})
	if err != nil {
		p.mu.Lock()
		delete(p.pendingAcks, seq)
		p.mu.Unlock()
		return false, fmt.Errorf("writing %s: %w", event, err)
	}

	select {
	case res := <-ackCh:
		return res.ok, res.err
	case <-ctx.Done():
		p.mu.Lock()
		delete(p.pendingAcks, seq)
		p.mu.Unlock()
		return false, ctx.Err()
	}
}

// installDefaultResponders scripts OK acknowledgments with usable payloads
// for the operations whose callers expect a response body.
func (p *Proxy) installDefaultResponders() {
	p.responders[message.DescribePlayerSessionsRequest{}.TypeName()] = func(payload json.RawMessage) (bool, interface{}) {
		return true, message.DescribePlayerSessionsResponse{PlayerSessions: []message.PlayerSession{}}
	}
	p.responders[message.BackfillMatchmakingRequest{}.TypeName()] = func(payload json.RawMessage) (bool, interface{}) {
		var req message.BackfillMatchmakingRequest
		if err := json.Unmarshal(payload, &req); err == nil && req.TicketID != "" {
			return true, message.BackfillMatchmakingResponse{TicketID: req.TicketID}
		}
		return true, message.BackfillMatchmakingResponse{TicketID: uuid.NewString()}
	}
	p.responders[message.GetInstanceCertificate{}.TypeName()] = func(payload json.RawMessage) (bool, interface{}) {
		return true, message.GetInstanceCertificateResponse{
			CertificatePath:      "/game/certs/cert.pem",
			CertificateChainPath: "/game/certs/chain.pem",
			PrivateKeyPath:       "/game/certs/key.pem",
			HostName:             "localhost",
			RootCertificatePath:  "/game/certs/root.pem",
		}
	}
}

// NewGameSession builds a joinable session descriptor with generated ids,
// for tests and the dev binary.
func NewGameSession() message.GameSession {
	return message.GameSession{
		GameSessionID: "gsess-" + uuid.NewString(),
		FleetID:       "fleet-" + uuid.NewString(),
		Name:          "local game session",
		IPAddress:     "127.0.0.1",
		MaxPlayers:    16,
		Joinable:      true,
	}
}
