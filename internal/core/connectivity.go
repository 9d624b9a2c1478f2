package core

import "context"

// ConnectivitySignal reports whether the process currently has network
// connectivity. Implementations may probe a remote endpoint, watch a
// platform signal, or be driven manually (tests, hosts that already know
// their own state).
type ConnectivitySignal interface {
	// Online reports the current connectivity state. The context bounds
	// any probe the implementation performs.
	Online(ctx context.Context) bool
}

// GatePolicy answers whether offline sync is permitted for the current
// user. Implementations combine a local feature toggle with a remotely
// fetched subscription-tier check. Callers must fail closed: when
// SyncEnabled returns an error, treat sync as disabled.
type GatePolicy interface {
	SyncEnabled(ctx context.Context) (bool, error)
}
