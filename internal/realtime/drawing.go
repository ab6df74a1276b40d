package realtime

import (
	"context"
	"encoding/json"
)

// drawStart opens a stroke: authorize, mint a fresh stroke id, hand it back
// to the originator via the ack and announce the stroke to the room. The id
// is authoritative; whatever the client proposed is discarded.
func (co *Coordinator) drawStart(ctx context.Context, client *Client, env Envelope) {
	var p DrawPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		co.ackErr(client, env.AckID, err)
		return
	}

	if _, err := co.authorizer.AuthorizeStrokeStart(ctx, p.AccessToken, p.WhiteboardID); err != nil {
		co.log.Error().Str("conn", client.ID).Str("whiteboard", p.WhiteboardID).Err(err).Msg("drawStart denied")
		co.ackErr(client, env.AckID, err)
		return
	}

	strokeID, err := co.store.GenerateStrokeID(ctx, p.WhiteboardID)
	if err != nil {
		co.log.Error().Str("whiteboard", p.WhiteboardID).Err(err).Msg("stroke id generation failed")
		co.ackErr(client, env.AckID, err)
		return
	}

	co.ack(client, env.AckID, AckPayload{Status: StatusOK, NewID: strokeID})
	co.broadcast(p.WhiteboardID, client, EventDrawStartBC, StrokeBroadcast{Line: p.Line, LineID: strokeID})
}

// drawing relays intermediate stroke points. It carries no credential and
// is not authorized; moves from a connection that never passed joinWhiteboard
// reach nobody because the connection is in no room.
func (co *Coordinator) drawing(ctx context.Context, client *Client, env Envelope) {
	var p DrawPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		return
	}
	if !client.InRoom(p.WhiteboardID) {
		return
	}
	co.broadcast(p.WhiteboardID, client, EventDrawingBC, StrokeBroadcast{Line: p.Line, LineID: p.LineID})
}

// drawEnd finalizes a stroke: authorize, persist the full line under its id,
// then announce completion. A storage failure is logged and acked as an
// error, but the broadcast still goes out so peers converge on the live
// picture; the board reloads from storage on next open.
func (co *Coordinator) drawEnd(ctx context.Context, client *Client, env Envelope) {
	var p DrawPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		co.ackErr(client, env.AckID, err)
		return
	}

	if _, err := co.authorizer.AuthorizeStrokeEnd(ctx, p.AccessToken, p.LineID, p.WhiteboardID); err != nil {
		co.log.Error().Str("conn", client.ID).Str("whiteboard", p.WhiteboardID).Err(err).Msg("drawEnd denied")
		co.ackErr(client, env.AckID, err)
		return
	}

	if err := co.store.UpsertStroke(ctx, p.WhiteboardID, p.LineID, p.Line); err != nil {
		co.log.Error().Str("whiteboard", p.WhiteboardID).Str("line", p.LineID).Err(err).Msg("stroke persist failed")
		co.ackErr(client, env.AckID, err)
	} else {
		co.ackOK(client, env.AckID)
	}

	co.broadcast(p.WhiteboardID, client, EventDrawEndBC, StrokeBroadcast{Line: p.Line, LineID: p.LineID})
}

// lineDelete removes a stroke: authorize, delete from storage, announce.
// Same failure policy as drawEnd: the room hears about the deletion even if
// the write failed.
func (co *Coordinator) lineDelete(ctx context.Context, client *Client, env Envelope) {
	var p DrawPayload
	if err := json.Unmarshal(env.Data, &p); err != nil {
		co.ackErr(client, env.AckID, err)
		return
	}

	if _, err := co.authorizer.AuthorizeStrokeDelete(ctx, p.AccessToken, p.LineID, p.WhiteboardID); err != nil {
		co.log.Error().Str("conn", client.ID).Str("whiteboard", p.WhiteboardID).Err(err).Msg("lineDelete denied")
		co.ackErr(client, env.AckID, err)
		return
	}

	if err := co.store.RemoveStroke(ctx, p.WhiteboardID, p.LineID); err != nil {
		co.log.Error().Str("whiteboard", p.WhiteboardID).Str("line", p.LineID).Err(err).Msg("stroke delete failed")
		co.ackErr(client, env.AckID, err)
	} else {
		co.ackOK(client, env.AckID)
	}

	co.broadcast(p.WhiteboardID, client, EventLineDeleteBC, LineDeleteBroadcast{LineID: p.LineID})
}
