/*
Package transport bridges typed control-plane calls to a duplex,
acknowledgment-based WebSocket channel.

The channel contract is the Socket interface: connect once, emit messages
under named events with an optional one-shot reply callback, and subscribe to
named server-initiated events. WebSocketSocket is the production Socket; it
frames every message in a Packet envelope and correlates replies to emits with
a per-connection sequence number, so the layers above never see wire
correlation; each outbound call just hands the channel a private callback.

Client sits on top of a Socket and implements the RPC semantics: encode the
message, emit it under its type name, wait on the call's private reply
channel, and translate failure acknowledgments into the sdkerr taxonomy. It
also routes the three inbound events (StartGameSession, UpdateGameSession,
TerminateProcess) to a Handler.
*/
package transport
