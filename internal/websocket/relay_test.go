package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelayRejectsInvalidOutbound(t *testing.T) {
	hub := newTestHub()
	sender := newTestClient(hub, "u1")

	// Missing peer: fails shape validation before anything is sent
	err := hub.relay.SendToUser(sender, "u2", NewMessage(EventAddPeer, &AddPeerPayload{
		RoomID: "room-1",
	}))
	require.Error(t, err)

	msg := recvMessage(t, sender)
	assert.Equal(t, EventChannelError, msg.Type)
}

func TestRelayOfflineTargetIsSoftFailure(t *testing.T) {
	hub := newTestHub()
	sender := newTestClient(hub, "u1")

	err := hub.relay.SendToUser(sender, "ghost", NewMessage(EventTyping, &TypingPayload{
		ChatID: "c1", UserID: "u1",
	}))
	assert.NoError(t, err)

	// Nothing comes back to the sender: the event is simply dropped
	assert.Nil(t, tryRecv(sender, 100*time.Millisecond))
}

func TestRelayDeliveryConfirmed(t *testing.T) {
	hub := newTestHub()
	sender := newTestClient(hub, "u1")
	target := newTestClient(hub, "u2")
	hub.registry.Register(target.Connected())

	require.NoError(t, hub.relay.SendToUser(sender, "u2", NewMessage(EventTyping, &TypingPayload{
		ChatID: "c1", UserID: "u1",
	})))

	delivered := recvMessage(t, target)
	assert.Equal(t, EventTyping, delivered.Type)
	require.NotEmpty(t, delivered.ID)

	// Target confirms within the window
	hub.relay.resolveAck(delivered.ID, AckResult{OK: true, At: time.Now()})

	// No channel error reaches the sender
	assert.Nil(t, tryRecv(sender, 120*time.Millisecond))
}

func TestRelayAckTimeoutNotifiesSender(t *testing.T) {
	hub := newTestHub()
	sender := newTestClient(hub, "u1")
	target := newTestClient(hub, "u2")
	hub.registry.Register(target.Connected())

	require.NoError(t, hub.relay.SendToUser(sender, "u2", NewMessage(EventTyping, &TypingPayload{
		ChatID: "c1", UserID: "u1",
	})))

	// Target got the event but never acks
	delivered := recvMessage(t, target)
	assert.NotEmpty(t, delivered.ID)

	// After the ack window the sender hears about it, once
	errMsg := recvOfType(t, sender, EventChannelError)
	var payload ChannelErrorPayload
	require.NoError(t, errMsg.ParsePayload(&payload))
	assert.Contains(t, payload.Message, "not confirmed")
}

func TestRelayNackNotifiesSender(t *testing.T) {
	hub := newTestHub()
	sender := newTestClient(hub, "u1")
	target := newTestClient(hub, "u2")
	hub.registry.Register(target.Connected())

	require.NoError(t, hub.relay.SendToUser(sender, "u2", NewMessage(EventTyping, &TypingPayload{
		ChatID: "c1", UserID: "u1",
	})))

	delivered := recvMessage(t, target)
	hub.relay.resolveAck(delivered.ID, AckResult{OK: false, Reason: "recipient busy", At: time.Now()})

	errMsg := recvOfType(t, sender, EventChannelError)
	var payload ChannelErrorPayload
	require.NoError(t, errMsg.ParsePayload(&payload))
	assert.Contains(t, payload.Message, "recipient busy")
}

func TestRelayLateAckIsIgnored(t *testing.T) {
	hub := newTestHub()
	sender := newTestClient(hub, "u1")
	target := newTestClient(hub, "u2")
	hub.registry.Register(target.Connected())

	require.NoError(t, hub.relay.SendToUser(sender, "u2", NewMessage(EventTyping, &TypingPayload{
		ChatID: "c1", UserID: "u1",
	})))
	delivered := recvMessage(t, target)

	// Wait out the window, then ack
	recvOfType(t, sender, EventChannelError)
	hub.relay.resolveAck(delivered.ID, AckResult{OK: true, At: time.Now()})

	// The late ack resolves nothing and produces nothing
	assert.Nil(t, tryRecv(sender, 80*time.Millisecond))
}

func TestRelayBroadcastIndependentPerRecipient(t *testing.T) {
	hub := newTestHub()
	a := newTestClient(hub, "a")
	b := newTestClient(hub, "b")
	c := newTestClient(hub, "c")
	hub.registry.Register(a.Connected())
	hub.registry.Register(b.Connected())
	hub.registry.Register(c.Connected())

	require.NoError(t, hub.relay.SendToAllExcept("a", NewMessage(EventUserOnline, &PresencePayload{
		User: a.Profile,
	})))

	gotB := recvMessage(t, b)
	gotC := recvMessage(t, c)
	assert.Equal(t, EventUserOnline, gotB.Type)
	assert.Equal(t, EventUserOnline, gotC.Type)

	// Fresh envelope per recipient: ack correlation stays per-delivery
	assert.NotEqual(t, gotB.ID, gotC.ID)

	// The excluded user hears nothing
	assert.Nil(t, tryRecv(a, 80*time.Millisecond))
}

func TestClientAckResolvesRelayDelivery(t *testing.T) {
	hub := newTestHub()
	sender := newTestClient(hub, "u1")
	target := newTestClient(hub, "u2")
	hub.registry.Register(target.Connected())

	require.NoError(t, hub.relay.SendToUser(sender, "u2", NewMessage(EventTyping, &TypingPayload{
		ChatID: "c1", UserID: "u1",
	})))
	delivered := recvMessage(t, target)

	// The ack arrives as a normal inbound message on the target's socket
	target.handleMessage(&Message{
		Type:    EventAck,
		ReplyTo: delivered.ID,
		Payload: map[string]interface{}{"ok": true, "timestamp": float64(time.Now().UnixMilli())},
	})

	assert.Nil(t, tryRecv(sender, 120*time.Millisecond))
}
