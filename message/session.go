package message

// PlayerSessionCreationPolicy controls whether a game session accepts new
// player sessions.
type PlayerSessionCreationPolicy string

const (
	PlayerSessionPolicyAcceptAll PlayerSessionCreationPolicy = "ACCEPT_ALL"
	PlayerSessionPolicyDenyAll   PlayerSessionCreationPolicy = "DENY_ALL"
)

// Player-session status filter values for DescribePlayerSessionsRequest.
const (
	PlayerSessionStatusReserved  = "RESERVED"
	PlayerSessionStatusActive    = "ACTIVE"
	PlayerSessionStatusCompleted = "COMPLETED"
	PlayerSessionStatusTimedOut  = "TIMEDOUT"
)

// GameSession describes one hosted session as assigned by the control plane.
type GameSession struct {
	GameSessionID   string         `json:"gameSessionId"`
	FleetID         string         `json:"fleetId,omitempty"`
	Name            string         `json:"name,omitempty"`
	IPAddress       string         `json:"ipAddress,omitempty"`
	DNSName         string         `json:"dnsName,omitempty"`
	GameSessionData string         `json:"gameSessionData,omitempty"`
	MatchmakerData  string         `json:"matchMakerData,omitempty"`
	MaxPlayers      int            `json:"maxPlayers,omitempty"`
	Port            int            `json:"port,omitempty"`
	Joinable        bool           `json:"joinable,omitempty"`
	GameProperties  []GameProperty `json:"gameProperties,omitempty"`
}

// GameProperty is one key/value pair of developer-defined session metadata.
type GameProperty struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// PlayerSession is a single player's reservation in a game session.
type PlayerSession struct {
	PlayerSessionID string `json:"playerSessionId"`
	PlayerID        string `json:"playerId,omitempty"`
	GameSessionID   string `json:"gameSessionId,omitempty"`
	FleetID         string `json:"fleetId,omitempty"`
	IPAddress       string `json:"ipAddress,omitempty"`
	DNSName         string `json:"dnsName,omitempty"`
	Status          string `json:"status,omitempty"`
	CreationTime    int64  `json:"creationTime,omitempty"`
	TerminationTime int64  `json:"terminationTime,omitempty"`
	Port            int    `json:"port,omitempty"`
	PlayerData      string `json:"playerData,omitempty"`
}

// Player describes one matched player in a backfill request.
type Player struct {
	PlayerID         string                    `json:"playerId"`
	Team             string                    `json:"team,omitempty"`
	LatencyInMS      map[string]int            `json:"latencyInMs,omitempty"`
	PlayerAttributes map[string]AttributeValue `json:"playerAttributes,omitempty"`
}

// Attribute value kinds, matching the upstream variant tags.
const (
	AttrTypeString          = 1
	AttrTypeDouble          = 2
	AttrTypeStringList      = 3
	AttrTypeStringDoubleMap = 4
)

// AttributeValue is a tagged union of the matchmaker attribute kinds. Exactly
// one of S, N, SL, SDM is meaningful, per Type.
type AttributeValue struct {
	Type int                `json:"type"`
	S    string             `json:"S,omitempty"`
	N    float64            `json:"N,omitempty"`
	SL   []string           `json:"SL,omitempty"`
	SDM  map[string]float64 `json:"SDM,omitempty"`
}
