package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go"

	"fleet-tracking/internal/logging"
)

// DefaultSubjectPrefix is the NATS subject prefix for hub events.
const DefaultSubjectPrefix = "fleet.events"

var ErrBridgeNotStarted = errors.New("nats bridge not started")

// NATSBridge publishes events through NATS so that every process running a
// hub delivers them to its own connections. Each process delivers only what
// it receives from NATS, including its own publications, so an event reaches
// a local subscriber exactly once per publish.
type NATSBridge struct {
	nc     *nats.Conn
	hub    *Hub
	prefix string
	logger logging.Logger

	mu  sync.Mutex
	sub *nats.Subscription
}

var _ Publisher = (*NATSBridge)(nil)

func NewNATSBridge(nc *nats.Conn, hub *Hub, prefix string, logger logging.Logger) *NATSBridge {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &NATSBridge{nc: nc, hub: hub, prefix: prefix, logger: logger}
}

func (b *NATSBridge) subject(scope Scope) string {
	if scope.IsGlobal() {
		return b.prefix + ".global"
	}
	// room names may contain characters NATS subjects cannot; the room travels in the envelope
	return b.prefix + ".room"
}

// Start subscribes to the bridge subjects. It returns once the subscription
// is registered with the server.
func (b *NATSBridge) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sub != nil {
		return nil
	}

	sub, err := b.nc.Subscribe(b.prefix+".*", b.handle)
	if err != nil {
		return fmt.Errorf("subscribe %s.*: %w", b.prefix, err)
	}
	if err := b.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("flush subscription: %w", err)
	}

	b.sub = sub
	b.logger.Info("nats bridge started", "subject", b.prefix+".*")
	return nil
}

func (b *NATSBridge) handle(m *nats.Msg) {
	var env Envelope
	if err := json.Unmarshal(m.Data, &env); err != nil {
		b.logger.Warn("dropping malformed hub event", "subject", m.Subject, "error", err)
		return
	}

	scope := Global
	if env.Room != "" {
		scope = Room(env.Room)
	}
	b.hub.Deliver(scope, env.Event, m.Data)
}

// Publish sends the event to NATS. It does not wait for delivery.
func (b *NATSBridge) Publish(_ context.Context, scope Scope, event string, payload any) error {
	b.mu.Lock()
	started := b.sub != nil
	b.mu.Unlock()
	if !started {
		return ErrBridgeNotStarted
	}

	msg, err := Encode(scope, event, payload)
	if err != nil {
		return err
	}
	if err := b.nc.Publish(b.subject(scope), msg); err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	return nil
}

// Close removes the subscription. The NATS connection stays open.
func (b *NATSBridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sub == nil {
		return nil
	}
	err := b.sub.Unsubscribe()
	b.sub = nil
	return err
}
