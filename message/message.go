package message

// typePrefix is the namespace the upstream protocol uses to key operation
// messages on the wire.
const typePrefix = "com.amazon.whitewater.auxproxy.pbuffer."

// Outbound is implemented by every client-initiated message. TypeName returns
// the wire event name the message is emitted under.
type Outbound interface {
	TypeName() string
}

// ProcessReady declares that this process is ready to host a game session.
type ProcessReady struct {
	Port             int      `json:"port"`
	LogPathsToUpload []string `json:"logPathsToUpload,omitempty"`
}

func (ProcessReady) TypeName() string { return typePrefix + "ProcessReady" }

// ProcessEnding notifies the control plane that this process is shutting down.
type ProcessEnding struct{}

func (ProcessEnding) TypeName() string { return typePrefix + "ProcessEnding" }

// ReportHealth carries one periodic health-check result.
type ReportHealth struct {
	HealthStatus bool `json:"healthStatus"`
}

func (ReportHealth) TypeName() string { return typePrefix + "ReportHealth" }

// GameSessionActivate reports that the assigned game session finished its
// startup and is accepting players.
type GameSessionActivate struct {
	GameSessionID string `json:"gameSessionId"`
}

func (GameSessionActivate) TypeName() string { return typePrefix + "GameSessionActivate" }

// GameSessionTerminate reports that the bound game session has ended.
type GameSessionTerminate struct {
	GameSessionID string `json:"gameSessionId"`
}

func (GameSessionTerminate) TypeName() string { return typePrefix + "GameSessionTerminate" }

// AcceptPlayerSession validates a player-session reservation against the
// bound game session.
type AcceptPlayerSession struct {
	GameSessionID   string `json:"gameSessionId"`
	PlayerSessionID string `json:"playerSessionId"`
}

func (AcceptPlayerSession) TypeName() string { return typePrefix + "AcceptPlayerSession" }

// RemovePlayerSession releases a player slot in the bound game session.
type RemovePlayerSession struct {
	GameSessionID   string `json:"gameSessionId"`
	PlayerSessionID string `json:"playerSessionId"`
}

func (RemovePlayerSession) TypeName() string { return typePrefix + "RemovePlayerSession" }

// DescribePlayerSessionsRequest queries player sessions by id, player, or
// status. Zero-valued filter fields are omitted from the query.
type DescribePlayerSessionsRequest struct {
	GameSessionID             string `json:"gameSessionId,omitempty"`
	PlayerID                  string `json:"playerId,omitempty"`
	PlayerSessionID           string `json:"playerSessionId,omitempty"`
	PlayerSessionStatusFilter string `json:"playerSessionStatusFilter,omitempty"`
	NextToken                 string `json:"nextToken,omitempty"`
	Limit                     int    `json:"limit,omitempty"`
}

func (DescribePlayerSessionsRequest) TypeName() string {
	return typePrefix + "DescribePlayerSessionsRequest"
}

// DescribePlayerSessionsResponse is one page of player-session records.
type DescribePlayerSessionsResponse struct {
	NextToken      string          `json:"nextToken,omitempty"`
	PlayerSessions []PlayerSession `json:"playerSessions"`
}

// UpdatePlayerSessionCreationPolicy changes whether the bound game session
// accepts new player sessions.
type UpdatePlayerSessionCreationPolicy struct {
	GameSessionID                  string `json:"gameSessionId"`
	NewPlayerSessionCreationPolicy string `json:"newPlayerSessionCreationPolicy"`
}

func (UpdatePlayerSessionCreationPolicy) TypeName() string {
	return typePrefix + "UpdatePlayerSessionCreationPolicy"
}

// BackfillMatchmakingRequest asks the matchmaker to fill open slots in the
// bound game session.
type BackfillMatchmakingRequest struct {
	TicketID                    string   `json:"ticketId,omitempty"`
	GameSessionARN              string   `json:"gameSessionArn"`
	MatchmakingConfigurationARN string   `json:"matchmakingConfigurationArn"`
	Players                     []Player `json:"players"`
}

func (BackfillMatchmakingRequest) TypeName() string {
	return typePrefix + "BackfillMatchmakingRequest"
}

// BackfillMatchmakingResponse acknowledges a backfill request with the ticket
// tracking it.
type BackfillMatchmakingResponse struct {
	TicketID string `json:"ticketId"`
}

// StopMatchmakingRequest cancels an in-flight backfill ticket.
type StopMatchmakingRequest struct {
	TicketID                    string `json:"ticketId"`
	GameSessionARN              string `json:"gameSessionArn"`
	MatchmakingConfigurationARN string `json:"matchmakingConfigurationArn"`
}

func (StopMatchmakingRequest) TypeName() string { return typePrefix + "StopMatchmakingRequest" }

// GetInstanceCertificate requests the file locations of the TLS certificate
// issued to this instance.
type GetInstanceCertificate struct{}

func (GetInstanceCertificate) TypeName() string { return typePrefix + "GetInstanceCertificate" }

// GetInstanceCertificateResponse lists the on-disk certificate material.
type GetInstanceCertificateResponse struct {
	CertificatePath      string `json:"certificatePath"`
	CertificateChainPath string `json:"certificateChainPath"`
	PrivateKeyPath       string `json:"privateKeyPath"`
	HostName             string `json:"hostName"`
	RootCertificatePath  string `json:"rootCertificatePath"`
}

// ResponseStatus is the outcome code in the control plane's error envelope.
type ResponseStatus string

const (
	StatusOK       ResponseStatus = "OK"
	StatusError400 ResponseStatus = "ERROR_400"
	StatusError500 ResponseStatus = "ERROR_500"
)

// Response is the control plane's generic reply envelope. It is decoded from
// failed acknowledgments to extract a human-readable error message.
type Response struct {
	Status       ResponseStatus `json:"status"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
}
