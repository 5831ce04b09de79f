package websocket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/makebelieve-sk/Messenger-sub000/internal/models"
)

// FlexibleTime handles both Unix millisecond timestamps and RFC3339 strings
type FlexibleTime struct {
	time.Time
}

// UnmarshalJSON implements custom unmarshaling for timestamps
func (ft *FlexibleTime) UnmarshalJSON(b []byte) error {
	// Try to unmarshal as Unix milliseconds (integer)
	var ms int64
	if err := json.Unmarshal(b, &ms); err == nil {
		ft.Time = time.UnixMilli(ms)
		return nil
	}

	// Fall back to RFC3339 string format
	var str string
	if err := json.Unmarshal(b, &str); err != nil {
		return fmt.Errorf("timestamp must be Unix milliseconds (integer) or RFC3339 string")
	}

	t, err := time.Parse(time.RFC3339, str)
	if err != nil {
		return err
	}
	ft.Time = t
	return nil
}

// MarshalJSON implements custom marshaling (always output as RFC3339)
func (ft FlexibleTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(ft.Time)
}

// Event types carried over the socket
const (
	// System events
	EventSystem       = "system"
	EventPing         = "ping"
	EventPong         = "pong"
	EventAck          = "ack"
	EventChannelError = "channel_error"

	// Presence events
	EventRoster      = "roster"
	EventUserOnline  = "user_online"
	EventUserOffline = "user_offline"

	// Friend events
	EventFriendRequest = "friend_request"

	// Dialog events
	EventMessageSent       = "message_sent"
	EventMessageEdited     = "message_edited"
	EventMessageDeleted    = "message_deleted"
	EventChatDeleted       = "chat_deleted"
	EventReadStatusChanged = "read_status_changed"
	EventTyping            = "typing"

	// Call signaling events
	EventCallInitiate       = "call_initiate"
	EventNotifyCall         = "notify_call"
	EventCallAccept         = "call_accept"
	EventAddPeer            = "add_peer"
	EventRemovePeer         = "remove_peer"
	EventIceCandidate       = "ice_candidate"
	EventSessionDescription = "session_description"
	EventChangeMediaStream  = "change_media_stream"
	EventIsTalking          = "is_talking"
	EventEndCall            = "end_call"
	EventCallCancelled      = "call_cancelled"
)

// Message is the envelope for every event crossing the socket.
type Message struct {
	// Type identifies the event for routing
	Type string `json:"type"`

	// Payload contains the event-specific data
	Payload interface{} `json:"payload,omitempty"`

	// ID is a unique message identifier for acknowledgment correlation
	ID string `json:"id,omitempty"`

	// ReplyTo references the original message ID for acks and replies
	ReplyTo string `json:"reply_to,omitempty"`

	// Timestamp when the message was created (accepts Unix ms or RFC3339)
	Timestamp FlexibleTime `json:"timestamp"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType string, payload interface{}) *Message {
	return &Message{
		Type:      msgType,
		Payload:   payload,
		Timestamp: FlexibleTime{Time: time.Now().UTC()},
	}
}

// NewChannelError creates a channel_error event. Channel errors carry a
// human-readable message only; the socket layer does not distinguish
// failures by machine-readable code.
func NewChannelError(text string) *Message {
	return NewMessage(EventChannelError, ChannelErrorPayload{Message: text})
}

// NewAck creates an acknowledgement for the given message id.
func NewAck(replyTo string, ok bool, reason string) *Message {
	m := NewMessage(EventAck, AckPayload{
		OK:        ok,
		Reason:    reason,
		Timestamp: time.Now().UTC().UnixMilli(),
	})
	m.ReplyTo = replyTo
	return m
}

// ParsePayload unmarshals the payload into a specific type
func (m *Message) ParsePayload(target interface{}) error {
	if m.Payload == nil {
		return nil
	}

	// Re-marshal and unmarshal to properly type the payload
	data, err := json.Marshal(m.Payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// Payload is implemented by every event payload. Validation happens at
// the boundary, before dispatch for inbound events and before
// transmission for outbound ones.
type Payload interface {
	Validate() error
}

// payloadFactories maps each event type to its expected payload shape.
var payloadFactories = map[string]func() Payload{
	EventSystem:             func() Payload { return &SystemPayload{} },
	EventPing:               func() Payload { return &PingPayload{} },
	EventPong:               func() Payload { return &PongPayload{} },
	EventAck:                func() Payload { return &AckPayload{} },
	EventChannelError:       func() Payload { return &ChannelErrorPayload{} },
	EventRoster:             func() Payload { return &RosterPayload{} },
	EventUserOnline:         func() Payload { return &PresencePayload{} },
	EventUserOffline:        func() Payload { return &PresencePayload{} },
	EventFriendRequest:      func() Payload { return &FriendRequestPayload{} },
	EventMessageSent:        func() Payload { return &MessageEventPayload{} },
	EventMessageEdited:      func() Payload { return &MessageEventPayload{} },
	EventMessageDeleted:     func() Payload { return &MessageEventPayload{} },
	EventChatDeleted:        func() Payload { return &ChatEventPayload{} },
	EventReadStatusChanged:  func() Payload { return &ReadStatusPayload{} },
	EventTyping:             func() Payload { return &TypingPayload{} },
	EventCallInitiate:       func() Payload { return &CallInitiatePayload{} },
	EventNotifyCall:         func() Payload { return &NotifyCallPayload{} },
	EventCallAccept:         func() Payload { return &CallAcceptPayload{} },
	EventAddPeer:            func() Payload { return &AddPeerPayload{} },
	EventRemovePeer:         func() Payload { return &RemovePeerPayload{} },
	EventIceCandidate:       func() Payload { return &IceCandidatePayload{} },
	EventSessionDescription: func() Payload { return &SessionDescriptionPayload{} },
	EventChangeMediaStream:  func() Payload { return &ChangeMediaPayload{} },
	EventIsTalking:          func() Payload { return &IsTalkingPayload{} },
	EventEndCall:            func() Payload { return &EndCallPayload{} },
	EventCallCancelled:      func() Payload { return &CallCancelledPayload{} },
}

// DecodePayload returns the validated, typed payload for the message.
// Unknown event types and payloads that do not match the expected shape
// are rejected here, so nothing malformed ever reaches a handler or the
// transport.
func (m *Message) DecodePayload() (Payload, error) {
	factory, ok := payloadFactories[m.Type]
	if !ok {
		return nil, fmt.Errorf("unknown event type %q", m.Type)
	}

	target := factory()

	data, err := json.Marshal(m.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", m.Type, err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return nil, fmt.Errorf("%s payload shape: %w", m.Type, err)
	}

	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("%s payload: %w", m.Type, err)
	}
	return target, nil
}

// SystemPayload represents system event payloads
type SystemPayload struct {
	Event   string                 `json:"event"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

func (p *SystemPayload) Validate() error {
	if p.Event == "" {
		return fmt.Errorf("event is required")
	}
	return nil
}

// PingPayload represents a ping message payload
type PingPayload struct {
	ClientTime int64 `json:"client_time,omitempty"`
}

func (p *PingPayload) Validate() error { return nil }

// PongPayload represents a pong message payload
type PongPayload struct {
	ClientTime int64 `json:"client_time"`
	ServerTime int64 `json:"server_time"`
	Latency    int64 `json:"latency_ms"`
}

func (p *PongPayload) Validate() error { return nil }

// AckPayload confirms (or refuses) delivery of a previously sent event.
type AckPayload struct {
	OK        bool   `json:"ok"`
	Reason    string `json:"reason,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

func (p *AckPayload) Validate() error { return nil }

// ChannelErrorPayload carries a delivery or validation failure back to
// the sender of the operation that caused it.
type ChannelErrorPayload struct {
	Message string `json:"message"`
}

func (p *ChannelErrorPayload) Validate() error {
	if p.Message == "" {
		return fmt.Errorf("message is required")
	}
	return nil
}

// RosterPayload is the full list of connected users, sent to a client
// right after it registers.
type RosterPayload struct {
	Users []models.SafeUser `json:"users"`
}

func (p *RosterPayload) Validate() error { return nil }

// PresencePayload announces a single user going online or offline.
type PresencePayload struct {
	User models.SafeUser `json:"user"`
}

func (p *PresencePayload) Validate() error {
	if p.User.ID == "" {
		return fmt.Errorf("user id is required")
	}
	return nil
}

// Friend request actions
const (
	FriendActionSent      = "sent"
	FriendActionAccepted  = "accepted"
	FriendActionRejected  = "rejected"
	FriendActionWithdrawn = "withdrawn"
)

// FriendRequestPayload notifies the other party of a friendship change.
type FriendRequestPayload struct {
	Action     string            `json:"action"`
	FromUserID string            `json:"from_user_id"`
	ToUserID   string            `json:"to_user_id"`
	From       *models.SafeUser  `json:"from,omitempty"`
	Recipients []string          `json:"recipients,omitempty"`
}

func (p *FriendRequestPayload) Validate() error {
	switch p.Action {
	case FriendActionSent, FriendActionAccepted, FriendActionRejected, FriendActionWithdrawn:
	default:
		return fmt.Errorf("unknown friend request action %q", p.Action)
	}
	if p.FromUserID == "" || p.ToUserID == "" {
		return fmt.Errorf("from_user_id and to_user_id are required")
	}
	return nil
}

// MessageEventPayload covers message_sent, message_edited and
// message_deleted. Recipients carries the userIds of everyone in the
// chat besides the sender; the gateway does not own chat membership.
type MessageEventPayload struct {
	ChatID     string          `json:"chat_id"`
	MessageID  string          `json:"message_id"`
	SenderID   string          `json:"sender_id"`
	Recipients []string        `json:"recipients"`
	Body       json.RawMessage `json:"body,omitempty"`
}

func (p *MessageEventPayload) Validate() error {
	if p.ChatID == "" {
		return fmt.Errorf("chat_id is required")
	}
	if p.MessageID == "" {
		return fmt.Errorf("message_id is required")
	}
	if p.SenderID == "" {
		return fmt.Errorf("sender_id is required")
	}
	return nil
}

// ChatEventPayload covers chat-level events such as chat_deleted.
type ChatEventPayload struct {
	ChatID     string   `json:"chat_id"`
	SenderID   string   `json:"sender_id"`
	Recipients []string `json:"recipients"`
}

func (p *ChatEventPayload) Validate() error {
	if p.ChatID == "" {
		return fmt.Errorf("chat_id is required")
	}
	return nil
}

// ReadStatusPayload announces messages marked read in a chat.
type ReadStatusPayload struct {
	ChatID     string   `json:"chat_id"`
	ReaderID   string   `json:"reader_id"`
	MessageIDs []string `json:"message_ids"`
	Recipients []string `json:"recipients"`
}

func (p *ReadStatusPayload) Validate() error {
	if p.ChatID == "" {
		return fmt.Errorf("chat_id is required")
	}
	if p.ReaderID == "" {
		return fmt.Errorf("reader_id is required")
	}
	return nil
}

// TypingPayload is the typing indicator for a chat.
type TypingPayload struct {
	ChatID     string   `json:"chat_id"`
	UserID     string   `json:"user_id"`
	IsTyping   bool     `json:"is_typing"`
	Recipients []string `json:"recipients"`
}

func (p *TypingPayload) Validate() error {
	if p.ChatID == "" {
		return fmt.Errorf("chat_id is required")
	}
	if p.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	return nil
}

// CallInitiatePayload starts a call: the caller picks the room id and
// names the callee.
type CallInitiatePayload struct {
	RoomID   string `json:"room_id"`
	CalleeID string `json:"callee_id"`
	Video    bool   `json:"video"`
}

func (p *CallInitiatePayload) Validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("room_id is required")
	}
	if p.CalleeID == "" {
		return fmt.Errorf("callee_id is required")
	}
	return nil
}

// NotifyCallPayload rings the callee.
type NotifyCallPayload struct {
	RoomID string          `json:"room_id"`
	Caller models.SafeUser `json:"caller"`
	Video  bool            `json:"video"`
}

func (p *NotifyCallPayload) Validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("room_id is required")
	}
	if p.Caller.ID == "" {
		return fmt.Errorf("caller is required")
	}
	return nil
}

// CallAcceptPayload joins the signaling room.
type CallAcceptPayload struct {
	RoomID string `json:"room_id"`
}

func (p *CallAcceptPayload) Validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("room_id is required")
	}
	return nil
}

// AddPeerPayload tells a room member to open a peer connection. The
// joiner receives one per existing member with Offer set; existing
// members receive one about the joiner without it.
type AddPeerPayload struct {
	RoomID string          `json:"room_id"`
	Peer   models.SafeUser `json:"peer"`
	Offer  bool            `json:"offer"`
}

func (p *AddPeerPayload) Validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("room_id is required")
	}
	if p.Peer.ID == "" {
		return fmt.Errorf("peer is required")
	}
	return nil
}

// RemovePeerPayload tells remaining members to tear down one connection.
type RemovePeerPayload struct {
	RoomID string `json:"room_id"`
	PeerID string `json:"peer_id"`
}

func (p *RemovePeerPayload) Validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("room_id is required")
	}
	if p.PeerID == "" {
		return fmt.Errorf("peer_id is required")
	}
	return nil
}

// IceCandidatePayload relays one ICE candidate verbatim. PeerID names the
// target on the way in and is rewritten to the sender on the way out.
type IceCandidatePayload struct {
	RoomID    string          `json:"room_id"`
	PeerID    string          `json:"peer_id"`
	Candidate json.RawMessage `json:"candidate"`
}

func (p *IceCandidatePayload) Validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("room_id is required")
	}
	if p.PeerID == "" {
		return fmt.Errorf("peer_id is required")
	}
	if len(p.Candidate) == 0 {
		return fmt.Errorf("candidate is required")
	}
	return nil
}

// SessionDescriptionPayload relays an SDP offer or answer verbatim.
type SessionDescriptionPayload struct {
	RoomID      string          `json:"room_id"`
	PeerID      string          `json:"peer_id"`
	Description json.RawMessage `json:"description"`
}

func (p *SessionDescriptionPayload) Validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("room_id is required")
	}
	if p.PeerID == "" {
		return fmt.Errorf("peer_id is required")
	}
	if len(p.Description) == 0 {
		return fmt.Errorf("description is required")
	}
	return nil
}

// ChangeMediaPayload announces a media track being enabled or disabled.
type ChangeMediaPayload struct {
	RoomID  string `json:"room_id"`
	UserID  string `json:"user_id,omitempty"`
	Kind    string `json:"kind"`
	Enabled bool   `json:"enabled"`
}

func (p *ChangeMediaPayload) Validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("room_id is required")
	}
	if p.Kind != "audio" && p.Kind != "video" {
		return fmt.Errorf("kind must be audio or video")
	}
	return nil
}

// IsTalkingPayload announces voice activity to the room.
type IsTalkingPayload struct {
	RoomID  string `json:"room_id"`
	UserID  string `json:"user_id,omitempty"`
	Talking bool   `json:"talking"`
}

func (p *IsTalkingPayload) Validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("room_id is required")
	}
	return nil
}

// EndCallPayload leaves (and for the last members, ends) the call.
type EndCallPayload struct {
	RoomID string `json:"room_id"`
}

func (p *EndCallPayload) Validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("room_id is required")
	}
	return nil
}

// CallCancelledPayload tells a still-ringing invitee the call is gone.
type CallCancelledPayload struct {
	RoomID string `json:"room_id"`
}

func (p *CallCancelledPayload) Validate() error {
	if p.RoomID == "" {
		return fmt.Errorf("room_id is required")
	}
	return nil
}
