package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/auth"
	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/model"
	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/storage"
)

func testLine() model.Line {
	return model.Line{
		Points: []model.Point{{X: 1, Y: 2}, {X: 3, Y: 4}},
		Color:  "#112233",
		Stroke: 2.5,
	}
}

// drawingRoom seeds two members of one board, both connected and joined.
func drawingRoom(t *testing.T) (env *testEnv, board, aliceToken string, alice *Client, aliceConn *fakeConn, bobConn *fakeConn) {
	t.Helper()
	env = newTestEnv(t)
	aliceToken = env.addUser(t, "alice")
	bobToken := env.addUser(t, "bob")
	board = env.addWhiteboard(t, "alice")
	env.invite(t, "bob", board)

	alice, aliceConn = env.connect(t, aliceToken)
	env.joinBoard(t, alice, aliceToken, board)
	bob, bobConn := env.connect(t, bobToken)
	env.joinBoard(t, bob, bobToken, board)
	return env, board, aliceToken, alice, aliceConn, bobConn
}

func TestDrawStartAssignsIDAndBroadcasts(t *testing.T) {
	env, board, token, alice, aliceConn, bobConn := drawingRoom(t)

	env.dispatch(alice, EventDrawStart, "d1", DrawPayload{
		AccessToken:  token,
		WhiteboardID: board,
		Line:         testLine(),
	})

	ack := aliceConn.lastAck(t)
	assert.Equal(t, StatusOK, ack.Status)
	require.NotEmpty(t, ack.NewID, "originator must receive the server-assigned stroke id")

	broadcasts := bobConn.events(EventDrawStartBC)
	require.Len(t, broadcasts, 1)
	var stroke StrokeBroadcast
	require.NoError(t, json.Unmarshal(broadcasts[0].Data, &stroke))
	assert.Equal(t, ack.NewID, stroke.LineID)
	assert.Equal(t, testLine(), stroke.Line)

	// The originator never receives its own broadcast.
	assert.Empty(t, aliceConn.events(EventDrawStartBC))
}

func TestDrawingRelayedWithoutPersistence(t *testing.T) {
	env, board, _, alice, aliceConn, bobConn := drawingRoom(t)

	env.dispatch(alice, EventDrawing, "", DrawPayload{
		WhiteboardID: board,
		LineID:       "stroke-1",
		Line:         testLine(),
	})

	require.Len(t, bobConn.events(EventDrawingBC), 1)
	assert.Empty(t, aliceConn.events(EventDrawingBC))

	whiteboard, err := env.store.FindWhiteboard(context.Background(), board)
	require.NoError(t, err)
	assert.Empty(t, whiteboard.Traits, "move events must not touch storage")
}

func TestDrawingFromOutsideRoomReachesNobody(t *testing.T) {
	env, board, _, _, _, bobConn := drawingRoom(t)
	outsiderToken := env.addUser(t, "mallory")
	outsider, _ := env.connect(t, outsiderToken)

	env.dispatch(outsider, EventDrawing, "", DrawPayload{
		WhiteboardID: board,
		LineID:       "stroke-1",
		Line:         testLine(),
	})

	assert.Empty(t, bobConn.events(EventDrawingBC))
}

func TestDrawEndPersistsStroke(t *testing.T) {
	env, board, token, alice, aliceConn, bobConn := drawingRoom(t)

	env.dispatch(alice, EventDrawStart, "d1", DrawPayload{AccessToken: token, WhiteboardID: board, Line: testLine()})
	strokeID := aliceConn.lastAck(t).NewID

	env.dispatch(alice, EventDrawEnd, "d2", DrawPayload{
		AccessToken:  token,
		WhiteboardID: board,
		LineID:       strokeID,
		Line:         testLine(),
	})
	assert.Equal(t, StatusOK, aliceConn.lastAck(t).Status)

	whiteboard, err := env.store.FindWhiteboard(context.Background(), board)
	require.NoError(t, err)
	require.Len(t, whiteboard.Traits, 1)
	assert.Equal(t, testLine(), whiteboard.Traits[strokeID])

	broadcasts := bobConn.events(EventDrawEndBC)
	require.Len(t, broadcasts, 1)
	var stroke StrokeBroadcast
	require.NoError(t, json.Unmarshal(broadcasts[0].Data, &stroke))
	assert.Equal(t, strokeID, stroke.LineID)
}

func TestLineDeleteRemovesStroke(t *testing.T) {
	env, board, token, alice, aliceConn, bobConn := drawingRoom(t)

	env.dispatch(alice, EventDrawStart, "d1", DrawPayload{AccessToken: token, WhiteboardID: board, Line: testLine()})
	strokeID := aliceConn.lastAck(t).NewID
	env.dispatch(alice, EventDrawEnd, "d2", DrawPayload{AccessToken: token, WhiteboardID: board, LineID: strokeID, Line: testLine()})

	env.dispatch(alice, EventLineDelete, "d3", DrawPayload{
		AccessToken:  token,
		WhiteboardID: board,
		LineID:       strokeID,
	})
	assert.Equal(t, StatusOK, aliceConn.lastAck(t).Status)

	whiteboard, err := env.store.FindWhiteboard(context.Background(), board)
	require.NoError(t, err)
	assert.Empty(t, whiteboard.Traits)

	deletions := bobConn.events(EventLineDeleteBC)
	require.Len(t, deletions, 1)
	var deleted LineDeleteBroadcast
	require.NoError(t, json.Unmarshal(deletions[0].Data, &deleted))
	assert.Equal(t, strokeID, deleted.LineID)
}

func TestDrawStartDeniedReportsOnlyOriginator(t *testing.T) {
	env, board, _, _, _, bobConn := drawingRoom(t)
	outsiderToken := env.addUser(t, "mallory")
	outsider, outsiderConn := env.connect(t, outsiderToken)

	env.dispatch(outsider, EventDrawStart, "d1", DrawPayload{
		AccessToken:  outsiderToken,
		WhiteboardID: board,
		Line:         testLine(),
	})

	assert.Equal(t, StatusKO, outsiderConn.lastAck(t).Status)
	assert.Empty(t, bobConn.events(EventDrawStartBC), "a denied stroke must stay invisible to the room")
}

// brokenStore fails every stroke write while keeping reads intact.
type brokenStore struct {
	storage.Store
}

func (brokenStore) UpsertStroke(ctx context.Context, whiteboardID, strokeID string, line model.Line) error {
	return errors.New("write unavailable")
}

func (brokenStore) RemoveStroke(ctx context.Context, whiteboardID, strokeID string) error {
	return errors.New("write unavailable")
}

func TestDrawEndStorageFailureStillBroadcasts(t *testing.T) {
	env := newTestEnv(t)
	aliceToken := env.addUser(t, "alice")
	bobToken := env.addUser(t, "bob")
	board := env.addWhiteboard(t, "alice")
	env.invite(t, "bob", board)

	// Same registry and authorizer, but stroke writes fail.
	env.co = NewCoordinator(
		auth.NewAuthorizer(auth.NewJWTManager("test-secret", time.Minute, time.Hour), env.store),
		brokenStore{Store: env.store},
		env.registry,
		time.Second,
		zerolog.Nop(),
	)

	alice, aliceConn := env.connect(t, aliceToken)
	env.joinBoard(t, alice, aliceToken, board)
	bob, bobConn := env.connect(t, bobToken)
	env.joinBoard(t, bob, bobToken, board)

	env.dispatch(alice, EventDrawEnd, "d1", DrawPayload{
		AccessToken:  aliceToken,
		WhiteboardID: board,
		LineID:       "stroke-1",
		Line:         testLine(),
	})

	// The originator learns about the failure, the room still converges.
	assert.Equal(t, StatusKO, aliceConn.lastAck(t).Status)
	assert.Len(t, bobConn.events(EventDrawEndBC), 1)
}
