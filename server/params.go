package server

import "github.com/openlift/serversdk/message"

// LogParameters names the files the control plane collects when this process
// exits.
type LogParameters struct {
	LogPaths []string
}

// ProcessParameters is what ProcessReady declares about this process, plus
// the callbacks the control plane drives afterwards. Callbacks run
// synchronously on the transport's read loop, so they should hand off to the
// game's own scheduling rather than block.
type ProcessParameters struct {
	// Port is where the game server accepts player connections.
	Port int

	LogParameters LogParameters

	// OnStartGameSession receives the session placed on this process.
	// Required.
	OnStartGameSession func(message.GameSession)

	// OnUpdateGameSession receives updates to the active session, such as
	// matchmaker backfill outcomes. Optional.
	OnUpdateGameSession func(message.UpdateGameSession)

	// OnProcessTerminate fires when the control plane orders this process
	// to end; the deadline is available from TerminationTime. Optional.
	OnProcessTerminate func()

	// OnHealthCheck is polled on the health cadence. A nil check means
	// always healthy.
	OnHealthCheck func() bool
}
