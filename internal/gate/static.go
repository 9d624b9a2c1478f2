package gate

import "context"

// Static is a gate policy backed by a local toggle function, with no
// remote check. Used when subscription gating is handled elsewhere or not
// applicable (self-hosted deployments, tests).
type Static struct {
	local func() bool
}

// NewStatic creates a static gate over the given toggle function.
func NewStatic(local func() bool) *Static {
	return &Static{local: local}
}

// SyncEnabled returns the toggle's current value.
func (s *Static) SyncEnabled(_ context.Context) (bool, error) {
	if s.local == nil {
		return false, nil
	}
	return s.local(), nil
}
