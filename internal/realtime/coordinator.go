package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/rs/zerolog"

	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/auth"
	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/storage"
)

// Coordinator owns the realtime session lifecycle: application presence,
// whiteboard room membership, broadcast fan-out and the drawing protocol.
// All shared state lives in the registry; handlers re-read it after every
// authorization or storage call instead of caching snapshots.
type Coordinator struct {
	authorizer *auth.Authorizer
	store      storage.Store
	registry   *Registry
	log        zerolog.Logger

	writeTimeout time.Duration
}

// NewCoordinator creates a Coordinator over the given collaborators.
func NewCoordinator(authorizer *auth.Authorizer, store storage.Store, registry *Registry, writeTimeout time.Duration, logger zerolog.Logger) *Coordinator {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &Coordinator{
		authorizer:   authorizer,
		store:        store,
		registry:     registry,
		log:          logger.With().Str("component", "realtime").Logger(),
		writeTimeout: writeTimeout,
	}
}

// frameReader is the inbound half of the transport, satisfied by the
// websocket connection and by test doubles.
type frameReader interface {
	ReadMessage() (int, []byte, error)
}

// HandleConnection runs the read loop for an upgraded websocket
// connection until the transport closes. The access token must have been
// presented at connect time (placed in locals by the upgrade route).
func (co *Coordinator) HandleConnection(wsc *websocket.Conn) {
	token, _ := wsc.Locals("accessToken").(string)
	co.serve(newWSConn(wsc, co.writeTimeout), wsc, token)
}

// serve drives one connection until the transport closes. A connection
// that presented no token is logged and left inert: frames are drained
// but never dispatched, so it never transitions out of its initial state.
func (co *Coordinator) serve(conn Conn, frames frameReader, token string) {
	if token == "" {
		co.log.Error().Msg("missing access token in the connection query")
		for {
			if _, _, err := frames.ReadMessage(); err != nil {
				return
			}
		}
	}

	client := NewClient(conn)
	co.log.Info().Str("conn", client.ID).Msg("connected")
	defer co.handleClose(client)

	for {
		_, data, err := frames.ReadMessage()
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			co.log.Warn().Str("conn", client.ID).Err(err).Msg("malformed frame dropped")
			continue
		}
		co.Dispatch(context.Background(), client, env)
	}
}

// Dispatch routes one inbound event to its handler. Exported so tests can
// drive the protocol without a websocket transport.
func (co *Coordinator) Dispatch(ctx context.Context, client *Client, env Envelope) {
	switch env.Event {
	case EventJoinApplication:
		co.joinApplication(client, env)
	case EventDisconnectApplication:
		co.disconnectApplication(client, env)
	case EventInviteCollaborator:
		co.inviteCollaborator(client, env)
	case EventJoinWhiteboard:
		co.joinWhiteboard(ctx, client, env)
	case EventDrawStart:
		co.drawStart(ctx, client, env)
	case EventDrawing:
		co.drawing(ctx, client, env)
	case EventDrawEnd:
		co.drawEnd(ctx, client, env)
	case EventLineDelete:
		co.lineDelete(ctx, client, env)
	case EventLeftWhiteboard:
		co.leftWhiteboard(client, env)
	default:
		co.log.Warn().Str("conn", client.ID).Str("event", env.Event).Msg("unknown event")
	}
}

// ack reports the outcome of an inbound event exactly once. Events sent
// without an ackId get no reply; failures are still logged by the callers.
func (co *Coordinator) ack(client *Client, ackID string, payload AckPayload) {
	if ackID == "" {
		return
	}
	payload.AckID = ackID
	if err := client.Send(EventAck, payload); err != nil {
		co.log.Warn().Str("conn", client.ID).Err(err).Msg("ack delivery failed")
	}
}

func (co *Coordinator) ackOK(client *Client, ackID string) {
	co.ack(client, ackID, AckPayload{Status: StatusOK})
}

func (co *Coordinator) ackErr(client *Client, ackID string, err error) {
	co.ack(client, ackID, AckPayload{Status: StatusKO, Error: err.Error()})
}

func (co *Coordinator) joinApplication(client *Client, env Envelope) {
	var p CredentialPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		co.ackErr(client, env.AckID, err)
		return
	}

	claims, err := co.authorizer.CheckToken(p.AccessToken)
	if err != nil {
		co.log.Error().Str("conn", client.ID).Err(err).Msg("error joining application")
		co.ackErr(client, env.AckID, err)
		client.Close()
		return
	}

	client.setApplication(claims.Username)
	co.registry.RegisterApplication(claims.Username, client)
	co.log.Info().Str("conn", client.ID).Str("user", claims.Username).Msg("joined application")

	if err := client.Send(EventJoinedApplication, nil); err != nil {
		co.log.Warn().Str("conn", client.ID).Err(err).Msg("joinedApplication delivery failed")
	}
	co.ackOK(client, env.AckID)
}

func (co *Coordinator) disconnectApplication(client *Client, env Envelope) {
	var p CredentialPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return
	}
	claims, err := co.authorizer.CheckToken(p.AccessToken)
	if err != nil {
		co.log.Error().Str("conn", client.ID).Err(err).Msg("error disconnecting application")
		return
	}

	co.leaveAllRooms(client)
	co.registry.UnregisterApplication(claims.Username, client)
	client.clearApplication()
	co.log.Info().Str("user", claims.Username).Msg("left the application")
}

func (co *Coordinator) inviteCollaborator(client *Client, env Envelope) {
	if !client.AppJoined() {
		co.log.Warn().Str("conn", client.ID).Msg("invite before application join dropped")
		return
	}
	var p InvitePayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return
	}
	claims, err := co.authorizer.CheckToken(p.AccessToken)
	if err != nil {
		co.log.Error().Str("conn", client.ID).Err(err).Msg("error on invite")
		client.Close()
		return
	}

	co.log.Info().Str("from", claims.Username).Str("to", p.Username).Msg("collaboration invite")

	// Best effort: an offline target simply misses the live ping.
	if target, ok := co.registry.LookupApplication(p.Username); ok {
		if err := target.Send(EventReceiveInvite, UserPayload{Username: claims.Username}); err != nil {
			co.log.Warn().Str("to", p.Username).Err(err).Msg("invite delivery failed")
		}
	}
}

func (co *Coordinator) joinWhiteboard(ctx context.Context, client *Client, env Envelope) {
	if !client.AppJoined() {
		co.ack(client, env.AckID, AckPayload{Status: StatusKO, Error: "application join required"})
		return
	}
	var p JoinWhiteboardPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		co.ackErr(client, env.AckID, err)
		return
	}

	username, err := co.authorizer.AuthorizeMember(ctx, p.AccessToken, p.WhiteboardID)
	if err != nil {
		co.log.Error().Str("conn", client.ID).Str("whiteboard", p.WhiteboardID).Err(err).Msg("whiteboard join denied")
		co.ackErr(client, env.AckID, err)
		return
	}

	// Registry first, broadcasts after: peers and the join snapshot must
	// agree on membership.
	co.registry.RegisterRoom(p.WhiteboardID, username, client)
	client.addRoom(p.WhiteboardID)
	co.log.Info().Str("user", username).Str("whiteboard", p.WhiteboardID).Msg("joined whiteboard")

	members := co.registry.MembersOfExcept(p.WhiteboardID, client)
	if err := client.Send(EventAllConnectedUsers, members); err != nil {
		co.log.Warn().Str("conn", client.ID).Err(err).Msg("member list delivery failed")
	}
	co.broadcast(p.WhiteboardID, client, EventUserConnected, UserPayload{Username: username})
	co.ackOK(client, env.AckID)
}

func (co *Coordinator) leftWhiteboard(client *Client, env Envelope) {
	var p LeftWhiteboardPayload
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &p); err != nil {
			return
		}
	}
	if p.WhiteboardID == "" {
		co.leaveAllRooms(client)
		return
	}
	co.leaveRoom(client, p.WhiteboardID)
}

// leaveRoom is the single cleanup path shared by the explicit leave event,
// application-level disconnect and transport close. Idempotent: only the
// call that actually removes the connection broadcasts the departure.
func (co *Coordinator) leaveRoom(client *Client, room string) {
	client.removeRoom(room)
	if !co.registry.UnregisterRoom(room, client) {
		return
	}
	co.log.Info().Str("user", client.Username()).Str("whiteboard", room).Msg("left whiteboard")
	co.broadcast(room, client, EventUserDisconnected, UserPayload{Username: client.Username()})
}

func (co *Coordinator) leaveAllRooms(client *Client) {
	for _, room := range client.roomList() {
		co.leaveRoom(client, room)
	}
}

// handleClose converges transport disconnect onto the shared cleanup path.
func (co *Coordinator) handleClose(client *Client) {
	co.leaveAllRooms(client)
	if username := client.Username(); username != "" {
		co.registry.UnregisterApplication(username, client)
	}
	client.Close()
	co.log.Info().Str("conn", client.ID).Msg("disconnected")
}

// broadcast fans an event out to every current room member except the
// originator. Membership is read here, at send time, never from a snapshot
// taken before an authorization or storage call.
func (co *Coordinator) broadcast(room string, origin *Client, event string, payload interface{}) {
	for _, member := range co.registry.RoomClients(room) {
		if origin != nil && member.ID == origin.ID {
			continue
		}
		if err := member.Send(event, payload); err != nil {
			co.log.Warn().Str("conn", member.ID).Str("event", event).Err(err).Msg("broadcast delivery failed")
		}
	}
}
