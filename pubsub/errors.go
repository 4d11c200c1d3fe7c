package pubsub

import "errors"

// The core signals expected conditions (full queue, timeout, type mismatch)
// through boolean and count returns; errors are reserved for the guard and
// facade surfaces.
var (
	// ErrSubscriptionNotFound is returned by a guard whose subscription was
	// already removed through another path.
	ErrSubscriptionNotFound = errors.New("subscription not found")
)
