package market

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"mstock-trader/internal/broker"
)

// Monitor probes a stable URL on a fixed cadence and toggles the offline
// latch. Any HTTP response counts as reachable, including 4xx: the probe
// tests the network path, not the endpoint's opinion of the request.
type Monitor struct {
	probeURL string
	interval time.Duration
	client   *http.Client
	latch    *broker.OfflineLatch
	logger   zerolog.Logger
}

// NewMonitor creates a connectivity monitor for the given probe URL.
func NewMonitor(probeURL string, interval time.Duration, latch *broker.OfflineLatch, logger zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Monitor{
		probeURL: probeURL,
		interval: interval,
		client:   &http.Client{Timeout: 5 * time.Second},
		latch:    latch,
		logger:   logger,
	}
}

// Run probes until ctx is cancelled. The cadence is fixed; there is no
// backoff, the latch itself dampens downstream work while offline.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.probe(ctx)
		}
	}
}

// Probe runs a single connectivity check and updates the latch.
func (m *Monitor) Probe(ctx context.Context) bool {
	return m.probe(ctx)
}

func (m *Monitor) probe(ctx context.Context) bool {
	if m.reachable(ctx, http.MethodHead) || m.reachable(ctx, http.MethodGet) {
		if m.latch.Active() {
			m.logger.Info().
				Dur("offline_for", time.Since(m.latch.Since())).
				Msg("Connectivity restored")
		}
		m.latch.Clear()
		return true
	}

	if !m.latch.Active() {
		m.logger.Warn().Str("probe_url", m.probeURL).Msg("Connectivity lost, raising offline latch")
	}
	m.latch.Set()
	return false
}

func (m *Monitor) reachable(ctx context.Context, method string) bool {
	req, err := http.NewRequestWithContext(ctx, method, m.probeURL, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}
