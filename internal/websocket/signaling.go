package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/makebelieve-sk/Messenger-sub000/internal/logger"
	"github.com/makebelieve-sk/Messenger-sub000/internal/metrics"
	"github.com/makebelieve-sk/Messenger-sub000/internal/models"
	"github.com/makebelieve-sk/Messenger-sub000/internal/store"
	"go.uber.org/zap"
)

// callRoom is the in-process state of one signaling session.
type callRoom struct {
	roomID      string
	initiatorID string

	// members have joined the room; invited users were rung but have
	// not accepted yet
	members map[string]models.SafeUser
	invited map[string]struct{}

	status models.CallStatus
}

// CallRouter drives call setup and teardown. The server stays a blind
// relay for the actual signaling payloads: ICE candidates and session
// descriptions pass through verbatim, addressed by peer id, without
// interpretation. Session records are persisted best-effort; a failed
// write becomes a channel error to the operation's sender and the
// already-relayed signaling stands.
type CallRouter struct {
	relay *Relay
	calls store.CallStore

	mu    sync.Mutex
	rooms map[string]*callRoom

	prom *metrics.Metrics
}

// NewCallRouter creates the signaling router.
func NewCallRouter(relay *Relay, calls store.CallStore) *CallRouter {
	return &CallRouter{
		relay: relay,
		calls: calls,
		rooms: make(map[string]*callRoom),
		prom:  metrics.Get(),
	}
}

// RegisterHandlers wires the signaling events into the hub's dispatch
// table and hooks room cleanup to disconnects.
func (cr *CallRouter) RegisterHandlers(hub *Hub) {
	hub.RegisterHandler(EventCallInitiate, func(c *Client, m *Message, p Payload) error {
		cr.Initiate(c, p.(*CallInitiatePayload))
		return nil
	})
	hub.RegisterHandler(EventCallAccept, func(c *Client, m *Message, p Payload) error {
		cr.Accept(c, p.(*CallAcceptPayload))
		return nil
	})
	hub.RegisterHandler(EventIceCandidate, func(c *Client, m *Message, p Payload) error {
		cr.RelayICECandidate(c, p.(*IceCandidatePayload))
		return nil
	})
	hub.RegisterHandler(EventSessionDescription, func(c *Client, m *Message, p Payload) error {
		cr.RelaySessionDescription(c, p.(*SessionDescriptionPayload))
		return nil
	})
	hub.RegisterHandler(EventChangeMediaStream, func(c *Client, m *Message, p Payload) error {
		cr.BroadcastMediaChange(c, p.(*ChangeMediaPayload))
		return nil
	})
	hub.RegisterHandler(EventIsTalking, func(c *Client, m *Message, p Payload) error {
		cr.BroadcastTalking(c, p.(*IsTalkingPayload))
		return nil
	})
	hub.RegisterHandler(EventEndCall, func(c *Client, m *Message, p Payload) error {
		cr.Leave(c, p.(*EndCallPayload).RoomID)
		return nil
	})
	hub.OnDisconnect(cr.OnClientDisconnect)
}

// Initiate starts a call. The caller picked the room id; if the callee
// is offline the caller gets a channel error and no room is created.
func (cr *CallRouter) Initiate(caller *Client, p *CallInitiatePayload) {
	cr.mu.Lock()
	if _, exists := cr.rooms[p.RoomID]; exists {
		cr.mu.Unlock()
		caller.SendChannelError("call room already exists: " + p.RoomID)
		return
	}
	if cr.roomOfLocked(caller.UserID) != nil {
		cr.mu.Unlock()
		caller.SendChannelError("already in a call")
		return
	}

	callee, online := cr.relay.registry.Lookup(p.CalleeID)
	if !online {
		cr.mu.Unlock()
		caller.SendChannelError("callee not reachable")
		return
	}

	room := &callRoom{
		roomID:      p.RoomID,
		initiatorID: caller.UserID,
		members:     map[string]models.SafeUser{caller.UserID: caller.Profile},
		invited:     map[string]struct{}{p.CalleeID: {}},
		status:      models.CallStatusRinging,
	}
	cr.rooms[p.RoomID] = room
	cr.mu.Unlock()

	cr.prom.CallsInitiatedTotal.Inc()
	cr.prom.CallsActive.Inc()

	// Persist the session record; signaling proceeds regardless
	now := time.Now().UTC()
	if err := cr.calls.Create(context.Background(), &models.Call{
		RoomID:      p.RoomID,
		InitiatorID: caller.UserID,
		Status:      models.CallStatusRinging,
		Participants: []models.CallParticipant{
			{UserID: caller.UserID, JoinedAt: &now},
			{UserID: p.CalleeID},
		},
	}); err != nil {
		logger.Log.Error("Failed to persist call session",
			logger.WithRoomID(p.RoomID), zap.Error(err))
		caller.SendChannelError("call started but history could not be saved")
	}

	_ = cr.relay.SendToUser(caller, callee.UserID, NewMessage(EventNotifyCall, &NotifyCallPayload{
		RoomID: p.RoomID,
		Caller: caller.Profile,
		Video:  p.Video,
	}))

	logger.Log.Info("Call initiated",
		logger.WithRoomID(p.RoomID),
		logger.WithUserID(caller.UserID),
		zap.String("callee_id", p.CalleeID))
}

// Accept joins the signaling room. For a room with N existing members
// the joiner receives N add_peer events with the offer flag set (it
// initiates the peer connections) and every existing member receives
// one add_peer event about the joiner without it: 2N events total, and
// the mesh assembles without the server touching media. The same
// pairwise fan-out covers an N-way join.
func (cr *CallRouter) Accept(joiner *Client, p *CallAcceptPayload) {
	cr.mu.Lock()
	room, ok := cr.rooms[p.RoomID]
	if !ok {
		cr.mu.Unlock()
		joiner.SendChannelError("no such call: " + p.RoomID)
		return
	}
	if _, already := room.members[joiner.UserID]; already {
		cr.mu.Unlock()
		joiner.SendChannelError("already joined call: " + p.RoomID)
		return
	}

	existing := make([]models.SafeUser, 0, len(room.members))
	for _, profile := range room.members {
		existing = append(existing, profile)
	}

	delete(room.invited, joiner.UserID)
	room.members[joiner.UserID] = joiner.Profile
	firstJoin := room.status == models.CallStatusRinging
	room.status = models.CallStatusActive
	cr.mu.Unlock()

	for _, member := range existing {
		// Existing member learns about the joiner; the joiner is told
		// to offer toward each existing member
		_ = cr.relay.SendToUser(joiner, member.ID, NewMessage(EventAddPeer, &AddPeerPayload{
			RoomID: p.RoomID,
			Peer:   joiner.Profile,
			Offer:  false,
		}))
		_ = cr.relay.SendToUser(joiner, joiner.UserID, NewMessage(EventAddPeer, &AddPeerPayload{
			RoomID: p.RoomID,
			Peer:   member,
			Offer:  true,
		}))
	}

	now := time.Now().UTC()
	if err := cr.calls.MarkJoined(context.Background(), p.RoomID, joiner.UserID, now); err != nil {
		logger.Log.Error("Failed to record call join",
			logger.WithRoomID(p.RoomID), zap.Error(err))
		joiner.SendChannelError("joined call but history could not be updated")
	}
	if firstJoin {
		if err := cr.calls.MarkStarted(context.Background(), p.RoomID, now); err != nil {
			logger.Log.Error("Failed to record call start",
				logger.WithRoomID(p.RoomID), zap.Error(err))
		}
	}

	logger.Log.Info("Call accepted",
		logger.WithRoomID(p.RoomID),
		logger.WithUserID(joiner.UserID),
		zap.Int("peers", len(existing)))
}

// RelayICECandidate forwards a candidate verbatim to the addressed peer,
// rewriting the peer id to the sender so the recipient knows its origin.
func (cr *CallRouter) RelayICECandidate(sender *Client, p *IceCandidatePayload) {
	if !cr.inSameRoom(p.RoomID, sender.UserID, p.PeerID) {
		sender.SendChannelError("peer is not in call room " + p.RoomID)
		return
	}
	_ = cr.relay.SendToUser(sender, p.PeerID, NewMessage(EventIceCandidate, &IceCandidatePayload{
		RoomID:    p.RoomID,
		PeerID:    sender.UserID,
		Candidate: p.Candidate,
	}))
}

// RelaySessionDescription forwards an SDP offer or answer verbatim.
func (cr *CallRouter) RelaySessionDescription(sender *Client, p *SessionDescriptionPayload) {
	if !cr.inSameRoom(p.RoomID, sender.UserID, p.PeerID) {
		sender.SendChannelError("peer is not in call room " + p.RoomID)
		return
	}
	_ = cr.relay.SendToUser(sender, p.PeerID, NewMessage(EventSessionDescription, &SessionDescriptionPayload{
		RoomID:      p.RoomID,
		PeerID:      sender.UserID,
		Description: p.Description,
	}))
}

// BroadcastMediaChange tells the other room members a track was toggled.
func (cr *CallRouter) BroadcastMediaChange(sender *Client, p *ChangeMediaPayload) {
	out := &ChangeMediaPayload{
		RoomID:  p.RoomID,
		UserID:  sender.UserID,
		Kind:    p.Kind,
		Enabled: p.Enabled,
	}
	cr.broadcastToRoom(sender, p.RoomID, EventChangeMediaStream, out)
}

// BroadcastTalking tells the other room members about voice activity.
func (cr *CallRouter) BroadcastTalking(sender *Client, p *IsTalkingPayload) {
	out := &IsTalkingPayload{
		RoomID:  p.RoomID,
		UserID:  sender.UserID,
		Talking: p.Talking,
	}
	cr.broadcastToRoom(sender, p.RoomID, EventIsTalking, out)
}

// Leave takes the client out of the room: remaining members get a
// remove_peer event each, invitees that never joined get call_cancelled,
// and once fewer than two members remain the session is closed and its
// end time recorded.
func (cr *CallRouter) Leave(leaver *Client, roomID string) {
	cr.mu.Lock()
	room, ok := cr.rooms[roomID]
	if !ok {
		cr.mu.Unlock()
		return
	}
	if _, member := room.members[leaver.UserID]; !member {
		cr.mu.Unlock()
		return
	}

	delete(room.members, leaver.UserID)

	remaining := make([]string, 0, len(room.members))
	for id := range room.members {
		remaining = append(remaining, id)
	}
	pending := make([]string, 0, len(room.invited))
	for id := range room.invited {
		pending = append(pending, id)
	}

	ended := len(room.members) < 2
	if ended {
		room.status = models.CallStatusEnded
		delete(cr.rooms, roomID)
	}
	cr.mu.Unlock()

	for _, id := range remaining {
		_ = cr.relay.SendToUser(leaver, id, NewMessage(EventRemovePeer, &RemovePeerPayload{
			RoomID: roomID,
			PeerID: leaver.UserID,
		}))
	}

	if ended {
		for _, id := range pending {
			_ = cr.relay.SendToUser(leaver, id, NewMessage(EventCallCancelled, &CallCancelledPayload{
				RoomID: roomID,
			}))
		}
		cr.prom.CallsActive.Dec()
	}

	now := time.Now().UTC()
	if err := cr.calls.MarkLeft(context.Background(), roomID, leaver.UserID, now); err != nil {
		logger.Log.Error("Failed to record call leave",
			logger.WithRoomID(roomID), zap.Error(err))
	}
	if ended {
		if err := cr.calls.MarkEnded(context.Background(), roomID, now); err != nil {
			logger.Log.Error("Failed to record call end",
				logger.WithRoomID(roomID), zap.Error(err))
			leaver.SendChannelError("call ended but history could not be updated")
		}
	}

	logger.Log.Info("Left call",
		logger.WithRoomID(roomID),
		logger.WithUserID(leaver.UserID),
		zap.Bool("ended", ended))
}

// OnClientDisconnect ends call participation for a dropped connection.
// Best-effort: any participant's disconnect can end the session.
func (cr *CallRouter) OnClientDisconnect(client *Client) {
	cr.mu.Lock()
	var roomIDs []string
	for id, room := range cr.rooms {
		if _, ok := room.members[client.UserID]; ok {
			roomIDs = append(roomIDs, id)
		}
	}
	cr.mu.Unlock()

	for _, id := range roomIDs {
		cr.Leave(client, id)
	}
}

// ActiveRooms returns the number of live signaling rooms.
func (cr *CallRouter) ActiveRooms() int {
	cr.mu.Lock()
	defer cr.mu.Unlock()
	return len(cr.rooms)
}

// broadcastToRoom relays an event to every room member except the
// sender.
func (cr *CallRouter) broadcastToRoom(sender *Client, roomID, eventType string, payload Payload) {
	cr.mu.Lock()
	room, ok := cr.rooms[roomID]
	if !ok {
		cr.mu.Unlock()
		sender.SendChannelError("no such call: " + roomID)
		return
	}
	targets := make([]string, 0, len(room.members))
	for id := range room.members {
		if id == sender.UserID {
			continue
		}
		targets = append(targets, id)
	}
	cr.mu.Unlock()

	for _, id := range targets {
		_ = cr.relay.SendToUser(sender, id, NewMessage(eventType, payload))
	}
}

// inSameRoom reports whether both users are members of the room.
func (cr *CallRouter) inSameRoom(roomID, a, b string) bool {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	room, ok := cr.rooms[roomID]
	if !ok {
		return false
	}
	_, aIn := room.members[a]
	_, bIn := room.members[b]
	return aIn && bIn
}

// roomOfLocked returns the room the user is a member of. Caller holds
// cr.mu.
func (cr *CallRouter) roomOfLocked(userID string) *callRoom {
	for _, room := range cr.rooms {
		if _, ok := room.members[userID]; ok {
			return room
		}
	}
	return nil
}
