package realtime

import (
	"encoding/json"

	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/model"
)

// Inbound events.
const (
	EventJoinApplication       = "joinApplication"
	EventDisconnectApplication = "disconnectApplication"
	EventInviteCollaborator    = "inviteCollaborator"
	EventJoinWhiteboard        = "joinWhiteboard"
	EventDrawStart             = "drawStart"
	EventDrawing               = "drawing"
	EventDrawEnd               = "drawEnd"
	EventLineDelete            = "lineDelete"
	EventLeftWhiteboard        = "leftWhiteboard"
)

// Outbound events.
const (
	EventJoinedApplication = "joinedApplication"
	EventReceiveInvite     = "receiveCollaborationInvite"
	EventAllConnectedUsers = "allConnectedUsers"
	EventUserConnected     = "user-connected"
	EventUserDisconnected  = "user-disconnected"
	EventDrawStartBC       = "drawStartBC"
	EventDrawingBC         = "drawingBC"
	EventDrawEndBC         = "drawEndBC"
	EventLineDeleteBC      = "lineDeleteBC"
	EventAck               = "ack"
)

// Ack statuses.
const (
	StatusOK = "ok"
	StatusKO = "ko"
)

// Envelope frames every message on the wire. Data holds the event-specific
// payload; AckID, when set on an inbound event, requests a single ack event
// carrying the same id.
type Envelope struct {
	Event string          `json:"event"`
	AckID string          `json:"ackId,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// CredentialPayload carries just an access token (joinApplication,
// disconnectApplication).
type CredentialPayload struct {
	AccessToken string `json:"accessToken"`
}

// InvitePayload asks the server to notify another online user.
type InvitePayload struct {
	AccessToken string `json:"accessToken"`
	Username    string `json:"username"`
}

// JoinWhiteboardPayload requests membership of a whiteboard room.
type JoinWhiteboardPayload struct {
	AccessToken  string `json:"accessToken"`
	WhiteboardID string `json:"whiteboardId"`
}

// DrawPayload carries a stroke event. LineID is empty on drawStart and
// Line is unused on lineDelete.
type DrawPayload struct {
	AccessToken  string     `json:"accessToken,omitempty"`
	WhiteboardID string     `json:"whiteboardId"`
	LineID       string     `json:"lineId,omitempty"`
	Line         model.Line `json:"line"`
}

// LeftWhiteboardPayload names the room to leave; empty means every room.
type LeftWhiteboardPayload struct {
	WhiteboardID string `json:"whiteboardId,omitempty"`
}

// AckPayload is the single-shot completion report for an inbound event.
type AckPayload struct {
	AckID  string `json:"ackId"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	NewID  string `json:"newId,omitempty"`
}

// UserPayload names a user in presence and invite events.
type UserPayload struct {
	Username string `json:"username"`
}

// StrokeBroadcast is the fan-out payload for draw events.
type StrokeBroadcast struct {
	Line   model.Line `json:"line"`
	LineID string     `json:"lineId"`
}

// LineDeleteBroadcast is the fan-out payload for stroke deletions.
type LineDeleteBroadcast struct {
	LineID string `json:"lineId"`
}
