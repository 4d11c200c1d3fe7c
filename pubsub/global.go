package pubsub

import "sync"

// The default router is a convenience facade for applications that want one
// process-wide instance. The core never depends on it; tests construct their
// own routers for isolation, and composition roots that prefer explicit
// wiring can ignore this file entirely.

var (
	defaultMu     sync.Mutex
	defaultRouter *Router
)

// Default returns the process-wide router, constructing a stopped one with
// default configuration on first use.
func Default() *Router {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultRouter == nil {
		defaultRouter = NewRouter()
	}
	return defaultRouter
}

// SetDefault replaces the process-wide router. Pass nil to reset so the next
// Default call constructs a fresh instance.
func SetDefault(r *Router) {
	defaultMu.Lock()
	defaultRouter = r
	defaultMu.Unlock()
}

// Publish publishes through the default router.
func Publish(topic string, payload any, priority int) bool {
	return Default().Publish(topic, payload, priority)
}

// Unsubscribe removes a subscription from the default router.
func Unsubscribe(topic string, id uint64) bool {
	return Default().Unsubscribe(topic, id)
}
