package realtime

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/auth"
	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/model"
	"github.com/FreshMag/CollaborativeRealTimeWhiteboard/internal/storage"
)

// fakeConn records everything written to it.
type fakeConn struct {
	mu     sync.Mutex
	frames []Envelope
	closed bool
}

func (f *fakeConn) WriteJSON(v interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, v.(Envelope))
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// events returns every received frame with the given event name.
func (f *fakeConn) events(event string) []Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Envelope
	for _, frame := range f.frames {
		if frame.Event == event {
			out = append(out, frame)
		}
	}
	return out
}

// lastAck decodes the most recent ack frame, failing if there is none.
func (f *fakeConn) lastAck(t *testing.T) AckPayload {
	t.Helper()
	acks := f.events(EventAck)
	require.NotEmpty(t, acks, "expected an ack frame")
	var payload AckPayload
	require.NoError(t, json.Unmarshal(acks[len(acks)-1].Data, &payload))
	return payload
}

type testEnv struct {
	store      *storage.MemoryStore
	jwtManager *auth.JWTManager
	registry   *Registry
	co         *Coordinator
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := storage.NewMemoryStore()
	jwtManager := auth.NewJWTManager("test-secret", time.Minute, time.Hour)
	registry := NewRegistry()
	co := NewCoordinator(auth.NewAuthorizer(jwtManager, store), store, registry, time.Second, zerolog.Nop())
	return &testEnv{store: store, jwtManager: jwtManager, registry: registry, co: co}
}

// addUser registers an account and returns a valid access token for it.
func (e *testEnv) addUser(t *testing.T, username string) string {
	t.Helper()
	user, err := e.store.CreateUser(context.Background(), &model.User{Username: username, Password: "x"})
	require.NoError(t, err)
	token, err := e.jwtManager.GenerateAccessToken(user.ID, username)
	require.NoError(t, err)
	return token
}

func (e *testEnv) addWhiteboard(t *testing.T, owner string) string {
	t.Helper()
	whiteboard, err := e.store.CreateWhiteboard(context.Background(), "board", owner)
	require.NoError(t, err)
	return whiteboard.ID
}

func (e *testEnv) invite(t *testing.T, username, whiteboardID string) {
	t.Helper()
	require.NoError(t, e.store.InviteUserToWhiteboard(context.Background(), username, whiteboardID))
}

func (e *testEnv) dispatch(client *Client, event, ackID string, payload interface{}) {
	data, _ := json.Marshal(payload)
	e.co.Dispatch(context.Background(), client, Envelope{Event: event, AckID: ackID, Data: data})
}

// connect runs the full joinApplication handshake for a fresh connection.
func (e *testEnv) connect(t *testing.T, token string) (*Client, *fakeConn) {
	t.Helper()
	conn := &fakeConn{}
	client := NewClient(conn)
	e.dispatch(client, EventJoinApplication, "", CredentialPayload{AccessToken: token})
	require.True(t, client.AppJoined())
	return client, conn
}

func (e *testEnv) joinBoard(t *testing.T, client *Client, token, whiteboardID string) {
	t.Helper()
	e.dispatch(client, EventJoinWhiteboard, "", JoinWhiteboardPayload{AccessToken: token, WhiteboardID: whiteboardID})
	require.True(t, client.InRoom(whiteboardID))
}

func TestJoinApplication(t *testing.T) {
	env := newTestEnv(t)
	token := env.addUser(t, "alice")

	conn := &fakeConn{}
	client := NewClient(conn)
	env.dispatch(client, EventJoinApplication, "a1", CredentialPayload{AccessToken: token})

	assert.True(t, client.AppJoined())
	assert.Len(t, conn.events(EventJoinedApplication), 1)
	assert.Equal(t, StatusOK, conn.lastAck(t).Status)

	registered, ok := env.registry.LookupApplication("alice")
	require.True(t, ok)
	assert.Equal(t, client.ID, registered.ID)
}

func TestJoinApplicationBadTokenClosesConnection(t *testing.T) {
	env := newTestEnv(t)

	conn := &fakeConn{}
	client := NewClient(conn)
	env.dispatch(client, EventJoinApplication, "a1", CredentialPayload{AccessToken: "garbage"})

	assert.False(t, client.AppJoined())
	assert.True(t, conn.isClosed())
	assert.Equal(t, StatusKO, conn.lastAck(t).Status)
	_, ok := env.registry.LookupApplication("alice")
	assert.False(t, ok)
}

func TestJoinWhiteboardSendsPeersAndSnapshot(t *testing.T) {
	env := newTestEnv(t)
	aliceToken := env.addUser(t, "alice")
	bobToken := env.addUser(t, "bob")
	board := env.addWhiteboard(t, "alice")
	env.invite(t, "bob", board)

	alice, aliceConn := env.connect(t, aliceToken)
	env.joinBoard(t, alice, aliceToken, board)

	// Alice joined an empty room: her snapshot holds nobody.
	snapshots := aliceConn.events(EventAllConnectedUsers)
	require.Len(t, snapshots, 1)
	var members []string
	require.NoError(t, json.Unmarshal(snapshots[0].Data, &members))
	assert.Empty(t, members)

	bob, bobConn := env.connect(t, bobToken)
	env.joinBoard(t, bob, bobToken, board)

	// Bob sees alice but not himself.
	snapshots = bobConn.events(EventAllConnectedUsers)
	require.Len(t, snapshots, 1)
	require.NoError(t, json.Unmarshal(snapshots[0].Data, &members))
	assert.Equal(t, []string{"alice"}, members)

	// Alice hears about bob; bob never hears about himself.
	connected := aliceConn.events(EventUserConnected)
	require.Len(t, connected, 1)
	var user UserPayload
	require.NoError(t, json.Unmarshal(connected[0].Data, &user))
	assert.Equal(t, "bob", user.Username)
	assert.Empty(t, bobConn.events(EventUserConnected))
}

func TestJoinWhiteboardUnauthorizedNeverRegistered(t *testing.T) {
	env := newTestEnv(t)
	aliceToken := env.addUser(t, "alice")
	malloryToken := env.addUser(t, "mallory")
	board := env.addWhiteboard(t, "alice")

	alice, aliceConn := env.connect(t, aliceToken)
	env.joinBoard(t, alice, aliceToken, board)

	mallory, malloryConn := env.connect(t, malloryToken)
	env.dispatch(mallory, EventJoinWhiteboard, "j1", JoinWhiteboardPayload{AccessToken: malloryToken, WhiteboardID: board})

	assert.False(t, mallory.InRoom(board))
	assert.Equal(t, StatusKO, malloryConn.lastAck(t).Status)
	assert.Empty(t, malloryConn.events(EventAllConnectedUsers))
	assert.Empty(t, aliceConn.events(EventUserConnected), "peers must not learn about a denied join")
	assert.Equal(t, []string{"alice"}, env.registry.MembersOf(board))
	// A denied room join does not cost the application session.
	assert.False(t, malloryConn.isClosed())
}

func TestJoinWhiteboardBeforeApplicationJoin(t *testing.T) {
	env := newTestEnv(t)
	token := env.addUser(t, "alice")
	board := env.addWhiteboard(t, "alice")

	conn := &fakeConn{}
	client := NewClient(conn)
	env.dispatch(client, EventJoinWhiteboard, "j1", JoinWhiteboardPayload{AccessToken: token, WhiteboardID: board})

	assert.False(t, client.InRoom(board))
	assert.Equal(t, StatusKO, conn.lastAck(t).Status)
}

func TestLeaveWhiteboardIdempotent(t *testing.T) {
	env := newTestEnv(t)
	aliceToken := env.addUser(t, "alice")
	bobToken := env.addUser(t, "bob")
	board := env.addWhiteboard(t, "alice")
	env.invite(t, "bob", board)

	alice, aliceConn := env.connect(t, aliceToken)
	env.joinBoard(t, alice, aliceToken, board)
	bob, _ := env.connect(t, bobToken)
	env.joinBoard(t, bob, bobToken, board)

	// Explicit leave, then the transport close for the same connection.
	env.dispatch(bob, EventLeftWhiteboard, "", LeftWhiteboardPayload{WhiteboardID: board})
	env.co.handleClose(bob)

	// Exactly one departure reaches the peers.
	assert.Len(t, aliceConn.events(EventUserDisconnected), 1)
	assert.Equal(t, []string{"alice"}, env.registry.MembersOf(board))
}

func TestDisconnectApplicationLeavesRooms(t *testing.T) {
	env := newTestEnv(t)
	aliceToken := env.addUser(t, "alice")
	bobToken := env.addUser(t, "bob")
	board := env.addWhiteboard(t, "alice")
	env.invite(t, "bob", board)

	alice, aliceConn := env.connect(t, aliceToken)
	env.joinBoard(t, alice, aliceToken, board)
	bob, _ := env.connect(t, bobToken)
	env.joinBoard(t, bob, bobToken, board)

	env.dispatch(bob, EventDisconnectApplication, "", CredentialPayload{AccessToken: bobToken})

	assert.Len(t, aliceConn.events(EventUserDisconnected), 1)
	_, ok := env.registry.LookupApplication("bob")
	assert.False(t, ok)
	assert.False(t, bob.AppJoined())
}

func TestInviteDeliveredOnlyWhenOnline(t *testing.T) {
	env := newTestEnv(t)
	aliceToken := env.addUser(t, "alice")
	bobToken := env.addUser(t, "bob")
	env.addUser(t, "carol")

	alice, _ := env.connect(t, aliceToken)
	_, bobConn := env.connect(t, bobToken)

	env.dispatch(alice, EventInviteCollaborator, "", InvitePayload{AccessToken: aliceToken, Username: "bob"})
	env.dispatch(alice, EventInviteCollaborator, "", InvitePayload{AccessToken: aliceToken, Username: "carol"})

	invites := bobConn.events(EventReceiveInvite)
	require.Len(t, invites, 1)
	var from UserPayload
	require.NoError(t, json.Unmarshal(invites[0].Data, &from))
	assert.Equal(t, "alice", from.Username)
}

// scriptedFrames replays a fixed frame sequence, then reports EOF.
type scriptedFrames struct {
	frames [][]byte
}

func (s *scriptedFrames) ReadMessage() (int, []byte, error) {
	if len(s.frames) == 0 {
		return 0, nil, io.EOF
	}
	frame := s.frames[0]
	s.frames = s.frames[1:]
	return 1, frame, nil
}

func frameFor(t *testing.T, event string, payload interface{}) []byte {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	require.NoError(t, err)
	return frame
}

func TestConnectionWithoutTokenStaysInert(t *testing.T) {
	env := newTestEnv(t)
	token := env.addUser(t, "alice")

	// A valid credential inside a frame must not rescue a connection that
	// presented none at connect time.
	conn := &fakeConn{}
	env.co.serve(conn, &scriptedFrames{frames: [][]byte{
		frameFor(t, EventJoinApplication, CredentialPayload{AccessToken: token}),
	}}, "")

	assert.Empty(t, conn.frames, "an inert connection receives no events")
	_, ok := env.registry.LookupApplication("alice")
	assert.False(t, ok)
	assert.False(t, conn.isClosed())
}

func TestServeDispatchesWithToken(t *testing.T) {
	env := newTestEnv(t)
	token := env.addUser(t, "alice")

	conn := &fakeConn{}
	env.co.serve(conn, &scriptedFrames{frames: [][]byte{
		frameFor(t, EventJoinApplication, CredentialPayload{AccessToken: token}),
	}}, token)

	assert.Len(t, conn.events(EventJoinedApplication), 1)
	// Transport EOF ran the shared cleanup path.
	_, ok := env.registry.LookupApplication("alice")
	assert.False(t, ok)
	assert.True(t, conn.isClosed())
}

func TestJoinAfterInviteSucceeds(t *testing.T) {
	env := newTestEnv(t)
	aliceToken := env.addUser(t, "alice")
	bobToken := env.addUser(t, "bob")
	board := env.addWhiteboard(t, "alice")

	alice, aliceConn := env.connect(t, aliceToken)
	env.joinBoard(t, alice, aliceToken, board)

	bob, bobConn := env.connect(t, bobToken)
	env.dispatch(bob, EventJoinWhiteboard, "j1", JoinWhiteboardPayload{AccessToken: bobToken, WhiteboardID: board})
	assert.Equal(t, StatusKO, bobConn.lastAck(t).Status)
	assert.False(t, bob.InRoom(board))

	env.invite(t, "bob", board)

	env.dispatch(bob, EventJoinWhiteboard, "j2", JoinWhiteboardPayload{AccessToken: bobToken, WhiteboardID: board})
	assert.Equal(t, StatusOK, bobConn.lastAck(t).Status)
	assert.True(t, bob.InRoom(board))

	connected := aliceConn.events(EventUserConnected)
	require.Len(t, connected, 1)
	var user UserPayload
	require.NoError(t, json.Unmarshal(connected[0].Data, &user))
	assert.Equal(t, "bob", user.Username)
}

func TestUnknownEventIgnored(t *testing.T) {
	env := newTestEnv(t)
	token := env.addUser(t, "alice")
	client, conn := env.connect(t, token)

	frames := len(conn.frames)
	env.co.Dispatch(context.Background(), client, Envelope{Event: "bogus"})
	assert.Len(t, conn.frames, frames, "unknown events produce no output")
}
