package pubsub

import "reflect"

// Dispatcher safely invokes a typed callback against an untyped message.
// A dispatcher is built for exactly one payload type; messages carrying a
// different payload type are skipped, not failed. This lets one topic carry
// mixed payload types while each subscriber sees only its own.
type Dispatcher interface {
	// Call delivers msg to the wrapped callback. It returns false when the
	// payload type does not match or when the callback itself fails; a
	// callback failure never propagates to the caller.
	Call(msg *Message) bool

	// PayloadType exposes the erased payload type for diagnostics.
	PayloadType() reflect.Type
}

type callback[T any] struct {
	fn func(msg *Message, payload T)
}

// NewCallback wraps fn in a dispatcher for payload type T.
// Returns nil for a nil fn.
//
// Example:
//
//	d := pubsub.NewCallback(func(msg *pubsub.Message, r SensorReading) {
//		process(r)
//	})
func NewCallback[T any](fn func(msg *Message, payload T)) Dispatcher {
	if fn == nil {
		return nil
	}
	return &callback[T]{fn: fn}
}

func (c *callback[T]) Call(msg *Message) (ok bool) {
	if msg == nil {
		return false
	}
	payload, match := msg.Payload.(T)
	if !match {
		// Wrong payload type: silent filtering, not an error.
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	c.fn(msg, payload)
	return true
}

func (c *callback[T]) PayloadType() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// Chain invokes a set of dispatchers in registration order on a single
// message. A failing member does not block subsequent members.
type Chain struct {
	dispatchers []Dispatcher
}

// Add appends d to the chain. Nil dispatchers are ignored.
func (c *Chain) Add(d Dispatcher) {
	if d != nil {
		c.dispatchers = append(c.dispatchers, d)
	}
}

// Call delivers msg to every member in order and returns how many handled it.
func (c *Chain) Call(msg *Message) int {
	handled := 0
	for _, d := range c.dispatchers {
		if d.Call(msg) {
			handled++
		}
	}
	return handled
}

// Len returns the number of dispatchers in the chain.
func (c *Chain) Len() int { return len(c.dispatchers) }

// Clear removes all dispatchers.
func (c *Chain) Clear() { c.dispatchers = nil }
