package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/makebelieve-sk/Messenger-sub000/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCallStore records store calls without touching a database.
type fakeCallStore struct {
	mu       sync.Mutex
	created  []*models.Call
	started  []string
	ended    []string
	joined   map[string][]string
	left     map[string][]string
	createFn func(*models.Call) error
}

func newFakeCallStore() *fakeCallStore {
	return &fakeCallStore{
		joined: make(map[string][]string),
		left:   make(map[string][]string),
	}
}

func (f *fakeCallStore) Create(_ context.Context, call *models.Call) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createFn != nil {
		return f.createFn(call)
	}
	f.created = append(f.created, call)
	return nil
}

func (f *fakeCallStore) MarkStarted(_ context.Context, roomID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, roomID)
	return nil
}

func (f *fakeCallStore) MarkEnded(_ context.Context, roomID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, roomID)
	return nil
}

func (f *fakeCallStore) AddParticipant(_ context.Context, roomID, userID string, _ *time.Time) error {
	return nil
}

func (f *fakeCallStore) MarkJoined(_ context.Context, roomID, userID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joined[roomID] = append(f.joined[roomID], userID)
	return nil
}

func (f *fakeCallStore) MarkLeft(_ context.Context, roomID, userID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.left[roomID] = append(f.left[roomID], userID)
	return nil
}

func (f *fakeCallStore) GetByRoom(_ context.Context, roomID string) (*models.Call, error) {
	return &models.Call{RoomID: roomID}, nil
}

func (f *fakeCallStore) HistoryForUser(_ context.Context, userID string, limit int) ([]models.Call, error) {
	return nil, nil
}

// callEnv is a hub with signaling wired and three registered clients.
type callEnv struct {
	hub    *Hub
	router *CallRouter
	store  *fakeCallStore
	alice  *Client
	bob    *Client
	carol  *Client
}

func newCallEnv(t *testing.T) *callEnv {
	t.Helper()
	hub := newTestHub()
	store := newFakeCallStore()
	router := NewCallRouter(hub.relay, store)
	router.RegisterHandlers(hub)

	env := &callEnv{
		hub:    hub,
		router: router,
		store:  store,
		alice:  newTestClient(hub, "alice"),
		bob:    newTestClient(hub, "bob"),
		carol:  newTestClient(hub, "carol"),
	}
	hub.registry.Register(env.alice.Connected())
	hub.registry.Register(env.bob.Connected())
	hub.registry.Register(env.carol.Connected())
	return env
}

func TestCallInitiateRingsCallee(t *testing.T) {
	env := newCallEnv(t)

	env.router.Initiate(env.alice, &CallInitiatePayload{RoomID: "room-1", CalleeID: "bob", Video: true})

	ring := recvOfType(t, env.bob, EventNotifyCall)
	var payload NotifyCallPayload
	require.NoError(t, ring.ParsePayload(&payload))
	assert.Equal(t, "room-1", payload.RoomID)
	assert.Equal(t, "alice", payload.Caller.ID)
	assert.True(t, payload.Video)

	// The session record was persisted with both participants
	require.Len(t, env.store.created, 1)
	call := env.store.created[0]
	assert.Equal(t, "alice", call.InitiatorID)
	assert.Len(t, call.Participants, 2)
	assert.Equal(t, 1, env.router.ActiveRooms())
}

func TestCallInitiateOfflineCallee(t *testing.T) {
	env := newCallEnv(t)

	env.router.Initiate(env.alice, &CallInitiatePayload{RoomID: "room-1", CalleeID: "ghost"})

	errMsg := recvOfType(t, env.alice, EventChannelError)
	var payload ChannelErrorPayload
	require.NoError(t, errMsg.ParsePayload(&payload))
	assert.Contains(t, payload.Message, "not reachable")

	// No room, nothing persisted, nothing sent to anyone
	assert.Equal(t, 0, env.router.ActiveRooms())
	assert.Empty(t, env.store.created)
}

func TestCallInitiateDuplicateRoom(t *testing.T) {
	env := newCallEnv(t)

	env.router.Initiate(env.alice, &CallInitiatePayload{RoomID: "room-1", CalleeID: "bob"})
	env.router.Initiate(env.carol, &CallInitiatePayload{RoomID: "room-1", CalleeID: "bob"})

	errMsg := recvOfType(t, env.carol, EventChannelError)
	var payload ChannelErrorPayload
	require.NoError(t, errMsg.ParsePayload(&payload))
	assert.Contains(t, payload.Message, "already exists")
}

func TestCallInitiateWhileAlreadyInCall(t *testing.T) {
	env := newCallEnv(t)

	env.router.Initiate(env.alice, &CallInitiatePayload{RoomID: "room-1", CalleeID: "bob"})
	env.router.Initiate(env.alice, &CallInitiatePayload{RoomID: "room-2", CalleeID: "carol"})

	errMsg := recvOfType(t, env.alice, EventChannelError)
	var payload ChannelErrorPayload
	require.NoError(t, errMsg.ParsePayload(&payload))
	assert.Contains(t, payload.Message, "already in a call")
	assert.Equal(t, 1, env.router.ActiveRooms())
}

func TestCallAcceptFansOutAddPeer(t *testing.T) {
	env := newCallEnv(t)

	env.router.Initiate(env.alice, &CallInitiatePayload{RoomID: "room-1", CalleeID: "bob"})
	recvOfType(t, env.bob, EventNotifyCall)

	env.router.Accept(env.bob, &CallAcceptPayload{RoomID: "room-1"})

	// Existing member learns about the joiner, without the offer flag
	toAlice := recvOfType(t, env.alice, EventAddPeer)
	var ap AddPeerPayload
	require.NoError(t, toAlice.ParsePayload(&ap))
	assert.Equal(t, "bob", ap.Peer.ID)
	assert.False(t, ap.Offer)

	// The joiner is told to offer toward the existing member
	toBob := recvOfType(t, env.bob, EventAddPeer)
	require.NoError(t, toBob.ParsePayload(&ap))
	assert.Equal(t, "alice", ap.Peer.ID)
	assert.True(t, ap.Offer)

	assert.Equal(t, []string{"bob"}, env.store.joined["room-1"])
	assert.Equal(t, []string{"room-1"}, env.store.started)
}

func TestCallAcceptUnknownRoom(t *testing.T) {
	env := newCallEnv(t)

	env.router.Accept(env.bob, &CallAcceptPayload{RoomID: "nope"})

	errMsg := recvOfType(t, env.bob, EventChannelError)
	var payload ChannelErrorPayload
	require.NoError(t, errMsg.ParsePayload(&payload))
	assert.Contains(t, payload.Message, "no such call")
}

func TestThreeWayJoinPairwiseFanOut(t *testing.T) {
	env := newCallEnv(t)

	env.router.Initiate(env.alice, &CallInitiatePayload{RoomID: "room-1", CalleeID: "bob"})
	recvOfType(t, env.bob, EventNotifyCall)
	env.router.Accept(env.bob, &CallAcceptPayload{RoomID: "room-1"})
	recvOfType(t, env.alice, EventAddPeer)
	recvOfType(t, env.bob, EventAddPeer)

	// A third participant joins the established room
	env.router.rooms["room-1"].invited["carol"] = struct{}{}
	env.router.Accept(env.carol, &CallAcceptPayload{RoomID: "room-1"})

	// Carol offers toward each of the two existing members
	var carolPeers []string
	for i := 0; i < 2; i++ {
		msg := recvOfType(t, env.carol, EventAddPeer)
		var ap AddPeerPayload
		require.NoError(t, msg.ParsePayload(&ap))
		assert.True(t, ap.Offer)
		carolPeers = append(carolPeers, ap.Peer.ID)
	}
	assert.ElementsMatch(t, []string{"alice", "bob"}, carolPeers)

	// Each existing member hears about carol exactly once
	for _, member := range []*Client{env.alice, env.bob} {
		msg := recvOfType(t, member, EventAddPeer)
		var ap AddPeerPayload
		require.NoError(t, msg.ParsePayload(&ap))
		assert.Equal(t, "carol", ap.Peer.ID)
		assert.False(t, ap.Offer)
	}
}

func TestIceCandidateRelayedVerbatim(t *testing.T) {
	env := newCallEnv(t)
	env.router.Initiate(env.alice, &CallInitiatePayload{RoomID: "room-1", CalleeID: "bob"})
	recvOfType(t, env.bob, EventNotifyCall)
	env.router.Accept(env.bob, &CallAcceptPayload{RoomID: "room-1"})

	candidate := json.RawMessage(`{"candidate":"candidate:0 1 UDP 2122","sdpMLineIndex":0}`)
	env.router.RelayICECandidate(env.alice, &IceCandidatePayload{
		RoomID:    "room-1",
		PeerID:    "bob",
		Candidate: candidate,
	})

	msg := recvOfType(t, env.bob, EventIceCandidate)
	var ice IceCandidatePayload
	require.NoError(t, msg.ParsePayload(&ice))

	// Peer id now names the origin; the candidate blob is untouched
	assert.Equal(t, "alice", ice.PeerID)
	assert.JSONEq(t, string(candidate), string(ice.Candidate))
}

func TestIceCandidateOutsideRoomRejected(t *testing.T) {
	env := newCallEnv(t)
	env.router.Initiate(env.alice, &CallInitiatePayload{RoomID: "room-1", CalleeID: "bob"})

	// Bob was only invited, never joined
	env.router.RelayICECandidate(env.alice, &IceCandidatePayload{
		RoomID:    "room-1",
		PeerID:    "bob",
		Candidate: json.RawMessage(`{}`),
	})

	errMsg := recvOfType(t, env.alice, EventChannelError)
	var payload ChannelErrorPayload
	require.NoError(t, errMsg.ParsePayload(&payload))
	assert.Contains(t, payload.Message, "not in call room")
}

func TestSessionDescriptionRelayedVerbatim(t *testing.T) {
	env := newCallEnv(t)
	env.router.Initiate(env.alice, &CallInitiatePayload{RoomID: "room-1", CalleeID: "bob"})
	recvOfType(t, env.bob, EventNotifyCall)
	env.router.Accept(env.bob, &CallAcceptPayload{RoomID: "room-1"})

	sdp := json.RawMessage(`{"type":"offer","sdp":"v=0\r\no=- 46117 2 IN IP4 127.0.0.1"}`)
	env.router.RelaySessionDescription(env.bob, &SessionDescriptionPayload{
		RoomID:      "room-1",
		PeerID:      "alice",
		Description: sdp,
	})

	msg := recvOfType(t, env.alice, EventSessionDescription)
	var desc SessionDescriptionPayload
	require.NoError(t, msg.ParsePayload(&desc))
	assert.Equal(t, "bob", desc.PeerID)
	assert.JSONEq(t, string(sdp), string(desc.Description))
}

func TestMediaChangeBroadcastToRoom(t *testing.T) {
	env := newCallEnv(t)
	env.router.Initiate(env.alice, &CallInitiatePayload{RoomID: "room-1", CalleeID: "bob"})
	recvOfType(t, env.bob, EventNotifyCall)
	env.router.Accept(env.bob, &CallAcceptPayload{RoomID: "room-1"})

	env.router.BroadcastMediaChange(env.alice, &ChangeMediaPayload{
		RoomID: "room-1", Kind: "video", Enabled: false,
	})

	msg := recvOfType(t, env.bob, EventChangeMediaStream)
	var mc ChangeMediaPayload
	require.NoError(t, msg.ParsePayload(&mc))
	assert.Equal(t, "alice", mc.UserID)
	assert.Equal(t, "video", mc.Kind)
	assert.False(t, mc.Enabled)
}

func TestLeaveNotifiesRemainingAndEndsCall(t *testing.T) {
	env := newCallEnv(t)
	env.router.Initiate(env.alice, &CallInitiatePayload{RoomID: "room-1", CalleeID: "bob"})
	recvOfType(t, env.bob, EventNotifyCall)
	env.router.Accept(env.bob, &CallAcceptPayload{RoomID: "room-1"})

	env.router.Leave(env.alice, "room-1")

	// Bob tears down the peer connection
	msg := recvOfType(t, env.bob, EventRemovePeer)
	var rp RemovePeerPayload
	require.NoError(t, msg.ParsePayload(&rp))
	assert.Equal(t, "alice", rp.PeerID)

	// One member left: the session is over
	assert.Equal(t, 0, env.router.ActiveRooms())
	assert.Equal(t, []string{"alice"}, env.store.left["room-1"])
	assert.Equal(t, []string{"room-1"}, env.store.ended)
}

func TestLeaveWhileRingingCancelsInvitee(t *testing.T) {
	env := newCallEnv(t)
	env.router.Initiate(env.alice, &CallInitiatePayload{RoomID: "room-1", CalleeID: "bob"})
	recvOfType(t, env.bob, EventNotifyCall)

	// Caller hangs up before the callee answers
	env.router.Leave(env.alice, "room-1")

	cancelled := recvOfType(t, env.bob, EventCallCancelled)
	var cc CallCancelledPayload
	require.NoError(t, cancelled.ParsePayload(&cc))
	assert.Equal(t, "room-1", cc.RoomID)
	assert.Equal(t, 0, env.router.ActiveRooms())
}

func TestLeaveNonMemberIsNoOp(t *testing.T) {
	env := newCallEnv(t)
	env.router.Initiate(env.alice, &CallInitiatePayload{RoomID: "room-1", CalleeID: "bob"})

	env.router.Leave(env.carol, "room-1")

	assert.Equal(t, 1, env.router.ActiveRooms())
	assert.Empty(t, env.store.left["room-1"])
}

func TestDisconnectEndsCallParticipation(t *testing.T) {
	env := newCallEnv(t)
	env.router.Initiate(env.alice, &CallInitiatePayload{RoomID: "room-1", CalleeID: "bob"})
	recvOfType(t, env.bob, EventNotifyCall)
	env.router.Accept(env.bob, &CallAcceptPayload{RoomID: "room-1"})

	// Alice's socket drops; the hub's disconnect hook fires
	env.router.OnClientDisconnect(env.alice)

	msg := recvOfType(t, env.bob, EventRemovePeer)
	var rp RemovePeerPayload
	require.NoError(t, msg.ParsePayload(&rp))
	assert.Equal(t, "alice", rp.PeerID)
	assert.Equal(t, 0, env.router.ActiveRooms())
}

func TestPersistFailureReportedButSignalingStands(t *testing.T) {
	env := newCallEnv(t)
	env.store.createFn = func(*models.Call) error {
		return assert.AnError
	}

	env.router.Initiate(env.alice, &CallInitiatePayload{RoomID: "room-1", CalleeID: "bob"})

	// The caller hears about the failed write
	errMsg := recvOfType(t, env.alice, EventChannelError)
	var payload ChannelErrorPayload
	require.NoError(t, errMsg.ParsePayload(&payload))
	assert.Contains(t, payload.Message, "history")

	// But the callee still rings and the room exists
	ring := recvOfType(t, env.bob, EventNotifyCall)
	assert.Equal(t, EventNotifyCall, ring.Type)
	assert.Equal(t, 1, env.router.ActiveRooms())
}
