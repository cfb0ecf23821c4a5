package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/astrikos/mapstream/internal/data"
	"github.com/astrikos/mapstream/internal/metrics"
)

// Poller repeatedly fetches one data source's URL on a fixed period and
// hands each decoded payload to its owner. It is bound to a snapshot of
// the source taken at subscribe time; later edits to the source do not
// affect a running poller.
type Poller struct {
	source   data.DataSource
	interval time.Duration
	client   *http.Client
	deliver  func(payload interface{})
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

// New creates a poller. deliver is invoked once per completed fetch
// with either the decoded JSON body or an error payload of the shape
// {"error": message}.
func New(source data.DataSource, interval, timeout time.Duration, logger *zap.Logger, deliver func(interface{})) *Poller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Poller{
		source:   source,
		interval: interval,
		client:   &http.Client{Timeout: timeout},
		deliver:  deliver,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins the recurring fetch loop.
func (p *Poller) Start() {
	go p.run()
}

// Stop cancels the loop. No new tick starts after Stop returns, and an
// in-flight fetch's result is discarded instead of delivered. Safe to
// call more than once.
func (p *Poller) Stop() {
	p.cancel()
}

func (p *Poller) run() {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if p.ctx.Err() != nil {
				return
			}
			// Each cycle is independent: a slow response must not
			// delay the next tick, so overlapping fetches are accepted.
			go p.poll()
		}
	}
}

func (p *Poller) poll() {
	payload := p.fetch()
	metrics.PollCyclesTotal.Inc()

	// The subscription may have been torn down while the fetch was in
	// flight; results for a dead subscription are dropped, not delivered.
	if p.ctx.Err() != nil {
		return
	}

	p.deliver(payload)
}

func (p *Poller) fetch() interface{} {
	req, err := http.NewRequestWithContext(p.ctx, http.MethodGet, p.source.URL, nil)
	if err != nil {
		return p.errorPayload(err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return p.errorPayload(err)
	}
	defer resp.Body.Close()

	var payload interface{}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return p.errorPayload(err)
	}

	return payload
}

func (p *Poller) errorPayload(err error) interface{} {
	metrics.PollFailuresTotal.Inc()
	p.logger.Warn("fetch failed",
		zap.String("source_id", p.source.ID),
		zap.String("url", p.source.URL),
		zap.Error(err))

	return map[string]interface{}{
		"error": fmt.Sprintf("Failed to fetch data from %s", p.source.Name),
	}
}
