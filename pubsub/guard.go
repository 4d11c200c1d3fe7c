package pubsub

import "sync/atomic"

// SubscriptionGuard unsubscribes on Close unless released first. It replaces
// manual Unsubscribe bookkeeping in scope-bound code:
//
//	g := pubsub.SubscribeGuarded(r, "sensor.imu", handleIMU)
//	defer g.Close()
type SubscriptionGuard struct {
	router *Router
	topic  string
	id     uint64
	done   atomic.Bool
}

// Guard wraps an existing subscription id in a guard.
func Guard(r *Router, topic string, id uint64) *SubscriptionGuard {
	return &SubscriptionGuard{router: r, topic: topic, id: id}
}

// SubscribeGuarded subscribes fn and returns a guard for the new
// subscription. Returns nil when the subscription was rejected.
func SubscribeGuarded[T any](r *Router, topic string, fn func(msg *Message, payload T)) *SubscriptionGuard {
	id := Subscribe(r, topic, fn)
	if id == 0 {
		return nil
	}
	return Guard(r, topic, id)
}

// Close unsubscribes exactly once. Subsequent calls return nil. If the
// subscription was already removed elsewhere, ErrSubscriptionNotFound is
// returned.
func (g *SubscriptionGuard) Close() error {
	if g.done.Swap(true) {
		return nil
	}
	if !g.router.Unsubscribe(g.topic, g.id) {
		return ErrSubscriptionNotFound
	}
	return nil
}

// Release detaches the guard without unsubscribing; Close becomes a no-op.
func (g *SubscriptionGuard) Release() {
	g.done.Store(true)
}

// ID returns the guarded subscription id.
func (g *SubscriptionGuard) ID() uint64 { return g.id }

// Topic returns the topic the subscription was created under.
func (g *SubscriptionGuard) Topic() string { return g.topic }
