package websocket

import (
	"github.com/makebelieve-sk/Messenger-sub000/internal/logger"
)

// Notifier translates business events - a message sent over HTTP, a
// friend request accepted, a chat removed - into relay deliveries
// addressed to the affected userIds. The affected ids always travel in
// the payload; the gateway does not own chat membership or the friend
// graph.
type Notifier struct {
	relay *Relay
}

// NewNotifier creates the fan-out component.
func NewNotifier(relay *Relay) *Notifier {
	return &Notifier{relay: relay}
}

// RegisterHandlers wires the socket-originated business events into the
// hub's dispatch table. Each simply fans the event out to the listed
// recipients.
func (n *Notifier) RegisterHandlers(hub *Hub) {
	hub.RegisterHandler(EventMessageSent, n.relayMessageEvent(EventMessageSent))
	hub.RegisterHandler(EventMessageEdited, n.relayMessageEvent(EventMessageEdited))
	hub.RegisterHandler(EventMessageDeleted, n.relayMessageEvent(EventMessageDeleted))

	hub.RegisterHandler(EventChatDeleted, func(c *Client, m *Message, p Payload) error {
		payload := p.(*ChatEventPayload)
		n.FanOut(c, payload.Recipients, EventChatDeleted, &ChatEventPayload{
			ChatID:   payload.ChatID,
			SenderID: c.UserID,
		})
		return nil
	})

	hub.RegisterHandler(EventReadStatusChanged, func(c *Client, m *Message, p Payload) error {
		payload := p.(*ReadStatusPayload)
		n.FanOut(c, payload.Recipients, EventReadStatusChanged, &ReadStatusPayload{
			ChatID:     payload.ChatID,
			ReaderID:   c.UserID,
			MessageIDs: payload.MessageIDs,
		})
		return nil
	})

	hub.RegisterHandler(EventTyping, func(c *Client, m *Message, p Payload) error {
		payload := p.(*TypingPayload)
		n.FanOut(c, payload.Recipients, EventTyping, &TypingPayload{
			ChatID:   payload.ChatID,
			UserID:   c.UserID,
			IsTyping: payload.IsTyping,
		})
		return nil
	})

	hub.RegisterHandler(EventFriendRequest, func(c *Client, m *Message, p Payload) error {
		payload := p.(*FriendRequestPayload)
		n.NotifyFriendRequest(c, payload)
		return nil
	})
}

// relayMessageEvent builds the handler for one of the message_* events.
func (n *Notifier) relayMessageEvent(eventType string) EventHandler {
	return func(c *Client, m *Message, p Payload) error {
		payload := p.(*MessageEventPayload)
		n.FanOut(c, payload.Recipients, eventType, &MessageEventPayload{
			ChatID:    payload.ChatID,
			MessageID: payload.MessageID,
			SenderID:  c.UserID,
			Body:      payload.Body,
		})
		return nil
	}
}

// NotifyFriendRequest delivers a friendship change to the other party.
func (n *Notifier) NotifyFriendRequest(sender *Client, p *FriendRequestPayload) {
	out := &FriendRequestPayload{
		Action:     p.Action,
		FromUserID: p.FromUserID,
		ToUserID:   p.ToUserID,
		From:       p.From,
	}
	if sender != nil {
		out.FromUserID = sender.UserID
		out.From = &sender.Profile
	}
	_ = n.relay.SendToUser(sender, p.ToUserID, NewMessage(EventFriendRequest, out))
}

// FanOut delivers one event independently to every recipient, skipping
// the sender. Offline recipients are dropped silently; unconfirmed
// deliveries surface to the sender per the relay's ack contract.
func (n *Notifier) FanOut(sender *Client, recipients []string, eventType string, payload Payload) {
	senderID := ""
	if sender != nil {
		senderID = sender.UserID
	}
	for _, userID := range recipients {
		if userID == "" || userID == senderID {
			continue
		}
		_ = n.relay.SendToUser(sender, userID, NewMessage(eventType, payload))
	}
	if len(recipients) == 0 {
		logger.Log.Debug("Fan-out with no recipients: " + eventType)
	}
}
