package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// HTTP is a gate policy that combines a local feature toggle with a
// remotely fetched subscription-tier check. The remote answer is cached
// for a short TTL so that every queued write does not cost a round trip.
//
// Lookup failures propagate as errors; callers fail closed and treat the
// user as ineligible rather than queuing writes that can never sync.
type HTTP struct {
	url    string
	local  func() bool
	client *http.Client

	mu        sync.Mutex
	cached    bool
	cachedAt  time.Time
	cacheTTL  time.Duration
	haveCache bool
}

// eligibilityResponse is the wire shape of the subscription-tier check.
type eligibilityResponse struct {
	SyncEnabled bool `json:"syncEnabled"`
}

// NewHTTP creates an HTTP-backed gate. url is the eligibility endpoint,
// local is the feature toggle consulted before any remote call, cacheTTL
// controls how long a remote answer is reused (default 1 minute).
func NewHTTP(url string, local func() bool, client *http.Client, cacheTTL time.Duration) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	return &HTTP{
		url:      url,
		local:    local,
		client:   client,
		cacheTTL: cacheTTL,
	}
}

// SyncEnabled reports whether offline sync is permitted. The local toggle
// short-circuits: when it is off, no remote call is made.
func (g *HTTP) SyncEnabled(ctx context.Context) (bool, error) {
	if g.local != nil && !g.local() {
		return false, nil
	}

	g.mu.Lock()
	if g.haveCache && time.Since(g.cachedAt) < g.cacheTTL {
		enabled := g.cached
		g.mu.Unlock()
		return enabled, nil
	}
	g.mu.Unlock()

	enabled, err := g.fetch(ctx)
	if err != nil {
		return false, err
	}

	g.mu.Lock()
	g.cached = enabled
	g.cachedAt = time.Now()
	g.haveCache = true
	g.mu.Unlock()

	return enabled, nil
}

// fetch performs the remote eligibility lookup.
func (g *HTTP) fetch(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url, nil)
	if err != nil {
		return false, fmt.Errorf("failed to build eligibility request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("eligibility lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("eligibility lookup returned status %d", resp.StatusCode)
	}

	var body eligibilityResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return false, fmt.Errorf("failed to decode eligibility response: %w", err)
	}
	return body.SyncEnabled, nil
}
