/*
Package message defines the typed messages exchanged with the game-hosting
control plane through its local proxy.

Client-initiated operations are emitted under their fully qualified type name
(the upstream protocol keys messages by type name, not by route). Each
operation either expects no payload back, or expects a single typed response
delivered through the emit acknowledgment. Server-initiated events arrive
under the short event names StartGameSession, UpdateGameSession, and
TerminateProcess.

All payloads are JSON with the upstream protocol's camelCase field names. The
schema for these messages is described alongside each type.
*/
package message
