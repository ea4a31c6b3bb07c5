package message

// Server-initiated event names. These arrive over the same channel the client
// emits on; each carries one of the payloads below.
const (
	EventStartGameSession  = "StartGameSession"
	EventUpdateGameSession = "UpdateGameSession"
	EventTerminateProcess  = "TerminateProcess"
)

// ActivateGameSession is the StartGameSession payload: the session this
// process has been assigned to host.
type ActivateGameSession struct {
	GameSession GameSession `json:"gameSession"`
}

// Game-session update reasons.
const (
	UpdateReasonMatchmakingDataUpdated = "MATCHMAKING_DATA_UPDATED"
	UpdateReasonBackfillFailed         = "BACKFILL_FAILED"
	UpdateReasonBackfillTimedOut       = "BACKFILL_TIMED_OUT"
	UpdateReasonBackfillCancelled      = "BACKFILL_CANCELLED"
)

// UpdateGameSession is the UpdateGameSession payload: a refreshed session
// descriptor plus why it changed.
type UpdateGameSession struct {
	GameSession      GameSession `json:"gameSession"`
	UpdateReason     string      `json:"updateReason,omitempty"`
	BackfillTicketID string      `json:"backfillTicketId,omitempty"`
}

// TerminateProcess is the TerminateProcess payload. TerminationTime is epoch
// seconds; the transport substitutes a default when the payload is malformed.
type TerminateProcess struct {
	TerminationTime int64 `json:"terminationTime"`
}
