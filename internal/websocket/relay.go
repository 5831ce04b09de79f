package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/makebelieve-sk/Messenger-sub000/internal/logger"
	"github.com/makebelieve-sk/Messenger-sub000/internal/metrics"
	"go.uber.org/zap"
)

// AckResult is the outcome of one delivery attempt.
type AckResult struct {
	OK     bool
	Reason string
	At     time.Time
}

// RelayConfig holds delivery settings.
type RelayConfig struct {
	// AckTimeout bounds the wait for a delivery confirmation. There is
	// no retry: one attempt, one bounded wait.
	AckTimeout time.Duration
}

// DefaultRelayConfig returns sensible defaults.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{AckTimeout: 5 * time.Second}
}

// Relay delivers typed events from one connection to one or many
// targets. Unicast deliveries carry an acknowledgement contract: the
// recipient confirms within AckTimeout or the sender is told delivery
// could not be confirmed via a channel_error event. Broadcast
// deliveries are independent per recipient; their failures are logged,
// never aggregated.
type Relay struct {
	registry *Registry
	config   RelayConfig

	mu      sync.Mutex
	pending map[string]chan AckResult

	prom *metrics.Metrics
}

// NewRelay creates a relay over the given registry.
func NewRelay(registry *Registry, config RelayConfig) *Relay {
	if config.AckTimeout <= 0 {
		config.AckTimeout = DefaultRelayConfig().AckTimeout
	}
	return &Relay{
		registry: registry,
		config:   config,
		pending:  make(map[string]chan AckResult),
		prom:     metrics.Get(),
	}
}

// SendToSelf emits directly to the caller's own connection.
func (r *Relay) SendToSelf(client *Client, msg *Message) error {
	if err := r.validate(msg); err != nil {
		client.SendChannelError(err.Error())
		return err
	}
	return client.Send(msg)
}

// SendToUser resolves the target through the registry and delivers with
// an acknowledgement wait. An offline target is a soft failure: the
// event is dropped without error and nothing is emitted. Delivery
// failures are reported to the sender (when there is one) as a
// channel_error event; the target is never retried.
//
// sender may be nil for events originating from the HTTP surface, in
// which case failures are only logged.
func (r *Relay) SendToUser(sender *Client, targetUserID string, msg *Message) error {
	if err := r.validate(msg); err != nil {
		r.reportToSender(sender, err.Error())
		return err
	}

	target, ok := r.registry.Lookup(targetUserID)
	if !ok || target.client == nil {
		// Target offline: drop, do not retry
		return nil
	}

	r.deliver(sender, target.client, msg, true)
	return nil
}

// SendToAllExcept emits to every registry entry but the given user.
// Each recipient is handled independently: one failed or unconfirmed
// delivery does not block or fail the others.
func (r *Relay) SendToAllExcept(selfUserID string, msg *Message) error {
	if err := r.validate(msg); err != nil {
		return err
	}

	for _, cu := range r.registry.SnapshotExcept(selfUserID) {
		if cu.client == nil {
			continue
		}
		// Fresh envelope per recipient so ack correlation stays
		// per-delivery
		out := &Message{
			Type:      msg.Type,
			Payload:   msg.Payload,
			Timestamp: msg.Timestamp,
		}
		r.deliver(nil, cu.client, out, false)
	}
	return nil
}

// deliver enqueues one message and tracks its acknowledgement.
// notifySender controls whether an unconfirmed delivery is surfaced to
// the sender or only logged.
func (r *Relay) deliver(sender *Client, target *Client, msg *Message, notifySender bool) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	ch := make(chan AckResult, 1)
	r.mu.Lock()
	r.pending[msg.ID] = ch
	r.mu.Unlock()

	if err := target.Send(msg); err != nil {
		r.dropPending(msg.ID)
		target.hub.metrics.DroppedDeliveries.Add(1)
		r.prom.SendErrorsTotal.WithLabelValues("enqueue").Inc()
		logger.Log.Warn("Failed to enqueue event",
			logger.WithUserID(target.UserID),
			logger.WithEventType(msg.Type),
			zap.Error(err))
		if notifySender {
			r.reportToSender(sender, "could not deliver "+msg.Type+": recipient unavailable")
		}
		return
	}

	go r.awaitAck(sender, target, msg, ch, notifySender)
}

// awaitAck waits out the acknowledgement window for one delivery.
func (r *Relay) awaitAck(sender *Client, target *Client, msg *Message, ch chan AckResult, notifySender bool) {
	timer := time.NewTimer(r.config.AckTimeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		if res.OK {
			return
		}
		r.prom.SendErrorsTotal.WithLabelValues("nack").Inc()
		logger.Log.Warn("Delivery refused by recipient",
			logger.WithUserID(target.UserID),
			logger.WithEventType(msg.Type),
			zap.String("reason", res.Reason))
		if notifySender {
			r.reportToSender(sender, "delivery of "+msg.Type+" failed: "+res.Reason)
		}

	case <-timer.C:
		r.dropPending(msg.ID)
		r.prom.AckTimeoutsTotal.Inc()
		logger.Log.Warn("Delivery not confirmed within ack window",
			logger.WithUserID(target.UserID),
			logger.WithEventType(msg.Type),
			zap.Duration("timeout", r.config.AckTimeout))
		if notifySender {
			r.reportToSender(sender, "delivery of "+msg.Type+" was not confirmed")
		}
	}
}

// resolveAck completes a pending delivery, if it is still tracked.
func (r *Relay) resolveAck(messageID string, res AckResult) {
	r.mu.Lock()
	ch, ok := r.pending[messageID]
	if ok {
		delete(r.pending, messageID)
	}
	r.mu.Unlock()

	if ok {
		ch <- res
	}
}

// dropPending removes a tracked delivery without resolving it.
func (r *Relay) dropPending(messageID string) {
	r.mu.Lock()
	delete(r.pending, messageID)
	r.mu.Unlock()
}

// reportToSender surfaces a delivery problem to the originating
// connection. HTTP-originated events have no socket sender; those
// failures live in the logs only.
func (r *Relay) reportToSender(sender *Client, text string) {
	if sender == nil {
		return
	}
	sender.SendChannelError(text)
}

// validate rejects outbound messages whose payload does not match the
// expected shape for their event type. Invalid payloads are never
// transmitted.
func (r *Relay) validate(msg *Message) error {
	_, err := msg.DecodePayload()
	return err
}
