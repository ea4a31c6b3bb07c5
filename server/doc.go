/*
Package server implements the game-server side of a managed hosting control
plane: the process-lifecycle state machine, the periodic health reporter, and
the environment-driven configuration.

A process obtains its ProcessState with CreateInstance (at most one live
instance per process), dials the local control-plane proxy with
InitNetworking, and then drives the lifecycle:

	state, err := server.CreateInstance()
	...
	err = state.InitNetworking(ctx)
	...
	err = state.ProcessReady(ctx, server.ProcessParameters{
		Port: 2020,
		OnStartGameSession: func(gs message.GameSession) {
			go func() {
				// start the match, then:
				state.ActivateGameSession(ctx)
			}()
		},
	})

From ProcessReady on, the control plane assigns a session (delivered through
OnStartGameSession), players join and leave (AcceptPlayerSession,
RemovePlayerSession), and health is reported on a fixed cadence until
ProcessEnding or a terminate order winds the process down.
*/
package server
