package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/openlift/serversdk/message"
	"github.com/openlift/serversdk/sdkerr"
	"go.uber.org/zap"
)

// TerminationGracePeriod is the default window granted to a process when the
// control plane's terminate event arrives without a usable termination time.
const TerminationGracePeriod = 4*time.Minute + 30*time.Second

// Handler receives the control plane's server-initiated events. Callbacks run
// synchronously on the channel's read loop, in delivery order.
type Handler interface {
	// HandleStartGameSession receives a session placement. The handler
	// owns the ack: true claims the placement, false rejects it.
	HandleStartGameSession(gs message.GameSession, ack AckFunc)

	// HandleUpdateGameSession receives an update to the active session.
	HandleUpdateGameSession(update message.UpdateGameSession, ack AckFunc)

	// HandleTerminateProcess receives the deadline by which this process
	// must finish ending.
	HandleTerminateProcess(terminationTime time.Time)
}

// Client implements typed request/acknowledgment calls and inbound event
// routing on top of a Socket.
type Client struct {
	log     *zap.SugaredLogger
	sock    Socket
	handler Handler
}

// NewClient returns a Client that emits on sock and routes inbound events to
// handler.
func NewClient(sock Socket, handler Handler, log *zap.SugaredLogger) *Client {
	return &Client{
		log:     log.Named("client"),
		sock:    sock,
		handler: handler,
	}
}

// Connect subscribes to the control plane's three events and establishes the
// channel. Subscriptions are installed before dialing so no event can slip
// through between the two.
func (c *Client) Connect(ctx context.Context) error {
	c.sock.On(message.EventStartGameSession, c.onStartGameSession)
	c.sock.On(message.EventUpdateGameSession, c.onUpdateGameSession)
	c.sock.On(message.EventTerminateProcess, c.onTerminateProcess)

	if err := c.sock.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to control plane: %w", err)
	}
	return nil
}

// Connected reports whether the underlying channel is established.
func (c *Client) Connected() bool {
	return c.sock.Connected()
}

// Close tears down the underlying channel.
func (c *Client) Close(reason string) error {
	return c.sock.Close(reason)
}

type callResult struct {
	ok   bool
	data []byte
}

// Call emits msg under its type name and blocks until the control plane
// acknowledges or ctx ends. A failure acknowledgment becomes a
// *sdkerr.ServiceCallFailedError carrying the peer's error message, if it
// sent one. If out is non-nil the response payload is decoded into it; a
// missing or undecodable payload is a failed call.
func (c *Client) Call(ctx context.Context, msg message.Outbound, out interface{}) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", msg.TypeName(), err)
	}

	// Each call owns a private reply channel; the socket invokes the
	// closure exactly once, so the single buffer slot never blocks it.
	replyCh := make(chan callResult, 1)
	err = c.sock.Emit(ctx, msg.TypeName(), payload, func(ok bool, data []byte) {
		replyCh <- callResult{ok: ok, data: data}
	})
	if err != nil {
		return err
	}

	var res callResult
	select {
	case res = <-replyCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	if !res.ok {
		return failedCallError(res.data)
	}
	if out == nil {
		return nil
	}
	if len(res.data) == 0 {
		return sdkerr.ServiceCallFailed("no response received for %s", msg.TypeName())
	}
	if err := json.Unmarshal(res.data, out); err != nil {
		return sdkerr.ServiceCallFailed("decoding %s response: %s", msg.TypeName(), err)
	}
	return nil
}

// failedCallError surfaces the peer's error message when the failure
// acknowledgment carries a standard response envelope.
func failedCallError(data []byte) error {
	if len(data) > 0 {
		var envelope message.Response
		if err := json.Unmarshal(data, &envelope); err == nil && envelope.ErrorMessage != "" {
			return &sdkerr.ServiceCallFailedError{Message: envelope.ErrorMessage}
		}
	}
	return &sdkerr.ServiceCallFailedError{}
}

func (c *Client) onStartGameSession(payload []byte, ack AckFunc) {
	var activate message.ActivateGameSession
	if err := json.Unmarshal(payload, &activate); err != nil {
		c.log.Debugf("undecodable StartGameSession payload: %s", err)
		ack(false)
		return
	}
	c.handler.HandleStartGameSession(activate.GameSession, ack)
}

func (c *Client) onUpdateGameSession(payload []byte, ack AckFunc) {
	var update message.UpdateGameSession
	if err := json.Unmarshal(payload, &update); err != nil {
		c.log.Debugf("undecodable UpdateGameSession payload: %s", err)
		ack(false)
		return
	}
	c.handler.HandleUpdateGameSession(update, ack)
}

func (c *Client) onTerminateProcess(payload []byte, _ AckFunc) {
	var tp message.TerminateProcess
	terminationTime := time.Now().Add(TerminationGracePeriod)
	if err := json.Unmarshal(payload, &tp); err != nil || tp.TerminationTime == 0 {
		c.log.Debugf("terminate event carried no usable termination time, defaulting to %s from now", TerminationGracePeriod)
	} else {
		terminationTime = time.Unix(tp.TerminationTime, 0)
	}
	c.handler.HandleTerminateProcess(terminationTime)
}
