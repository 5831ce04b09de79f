package websocket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubRegisterSendsRosterAndAnnounces(t *testing.T) {
	hub := newTestHub()
	first := newTestClient(hub, "u1")
	hub.handleRegister(first)

	roster := recvOfType(t, first, EventRoster)
	var rp RosterPayload
	require.NoError(t, roster.ParsePayload(&rp))
	assert.Len(t, rp.Users, 1)

	second := newTestClient(hub, "u2")
	hub.handleRegister(second)

	// The newcomer's roster includes both users
	roster = recvOfType(t, second, EventRoster)
	require.NoError(t, roster.ParsePayload(&rp))
	assert.Len(t, rp.Users, 2)

	// The earlier client hears about the newcomer
	online := recvOfType(t, first, EventUserOnline)
	var pp PresencePayload
	require.NoError(t, online.ParsePayload(&pp))
	assert.Equal(t, "u2", pp.User.ID)
}

func TestHubRegisterSupersedesPreviousConnection(t *testing.T) {
	hub := newTestHub()
	old := newTestClient(hub, "u1")
	hub.handleRegister(old)

	fresh := NewClient(hub, nil, "sock-u1-new", old.Profile)
	hub.handleRegister(fresh)

	// Old connection is closed; the fresh one owns the registry entry
	assert.True(t, old.IsClosed())
	cu, ok := hub.registry.Lookup("u1")
	require.True(t, ok)
	assert.Equal(t, "sock-u1-new", cu.SocketID)
	assert.Equal(t, 1, hub.registry.Len())
}

func TestHubStaleUnregisterKeepsSuccessor(t *testing.T) {
	hub := newTestHub()
	watcher := newTestClient(hub, "w")
	hub.handleRegister(watcher)

	old := newTestClient(hub, "u1")
	hub.handleRegister(old)
	recvOfType(t, watcher, EventUserOnline)

	fresh := NewClient(hub, nil, "sock-u1-new", old.Profile)
	hub.handleRegister(fresh)
	recvOfType(t, watcher, EventUserOnline)

	// The superseded connection finally reports its disconnect
	hub.handleUnregister(old)

	// Successor stays registered and no offline broadcast goes out
	assert.True(t, hub.IsUserOnline("u1"))
	msg := tryRecv(watcher, 100*time.Millisecond)
	if msg != nil {
		assert.NotEqual(t, EventUserOffline, msg.Type)
	}
}

func TestHubUnregisterBroadcastsOfflineOnce(t *testing.T) {
	hub := newTestHub()
	watcher := newTestClient(hub, "w")
	hub.handleRegister(watcher)

	leaver := newTestClient(hub, "u1")
	hub.handleRegister(leaver)
	recvOfType(t, watcher, EventUserOnline)

	hub.handleUnregister(leaver)

	offline := recvOfType(t, watcher, EventUserOffline)
	var pp PresencePayload
	require.NoError(t, offline.ParsePayload(&pp))
	assert.Equal(t, "u1", pp.User.ID)

	// Double unregister is a guarded no-op
	hub.handleUnregister(leaver)
	msg := tryRecv(watcher, 100*time.Millisecond)
	if msg != nil {
		assert.NotEqual(t, EventUserOffline, msg.Type)
	}
}

func TestHubDisconnectHooksRun(t *testing.T) {
	hub := newTestHub()

	var connected, disconnected []string
	hub.OnConnect(func(c *Client) { connected = append(connected, c.UserID) })
	hub.OnDisconnect(func(c *Client) { disconnected = append(disconnected, c.UserID) })

	c := newTestClient(hub, "u1")
	hub.handleRegister(c)
	hub.handleUnregister(c)

	assert.Equal(t, []string{"u1"}, connected)
	assert.Equal(t, []string{"u1"}, disconnected)
}

func TestHubOnlineUsers(t *testing.T) {
	hub := newTestHub()
	hub.handleRegister(newTestClient(hub, "u1"))
	hub.handleRegister(newTestClient(hub, "u2"))

	assert.True(t, hub.IsUserOnline("u1"))
	assert.False(t, hub.IsUserOnline("u3"))
	assert.ElementsMatch(t, []string{"u1", "u2"}, hub.GetOnlineUsers())
}

func TestHubMetricsSnapshot(t *testing.T) {
	hub := newTestHub()
	c := newTestClient(hub, "u1")
	hub.handleRegister(c)

	m := hub.GetMetrics()
	assert.Equal(t, int64(1), m.TotalConnections)
	assert.Equal(t, int64(1), m.ActiveConnections)

	hub.handleUnregister(c)
	m = hub.GetMetrics()
	assert.Equal(t, int64(1), m.TotalConnections)
	assert.Equal(t, int64(0), m.ActiveConnections)

	assert.Contains(t, m.String(), "connections=0/1")
}
