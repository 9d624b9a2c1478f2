package netmon

import (
	"context"
	"net/http"
	"time"
)

// ProbeSignal reports connectivity by issuing a lightweight HEAD request
// against a probe URL, typically the sync server's health endpoint. Any
// response, including an error status, counts as online; only a transport
// failure counts as offline.
type ProbeSignal struct {
	url    string
	client *http.Client
}

// NewProbeSignal creates a probe against the given URL. timeout bounds
// each probe request and defaults to 3 seconds.
func NewProbeSignal(url string, timeout time.Duration) *ProbeSignal {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &ProbeSignal{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Online issues the probe request.
func (p *ProbeSignal) Online(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return true
}
