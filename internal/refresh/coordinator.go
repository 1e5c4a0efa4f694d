// Package refresh drives the live analytics pipeline: it schedules snapshot
// fetches, guarantees that classification and baseline tracking complete
// against the same snapshot before the scorer and projector run, and
// discards late responses after a symbol switch (last-request-wins).
package refresh

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/scmhub/calendar"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexboard/internal/analytics"
	"github.com/dgnsrekt/gexboard/internal/intraday"
	"github.com/dgnsrekt/gexboard/internal/market"
	"github.com/dgnsrekt/gexboard/internal/metrics"
	"github.com/dgnsrekt/gexboard/internal/notify"
	"github.com/dgnsrekt/gexboard/internal/session"
)

const (
	jobLiveRefresh  = "live-refresh"
	jobMarketStatus = "market-status"

	marketCloseHour = 16
)

// SnapshotFetcher is the upstream boundary the coordinator pulls from.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context, symbol string) (*market.Snapshot, error)
}

// Result is one fully computed analytics cycle, handed to the rendering
// consumers as plain structured data.
type Result struct {
	Snapshot    *market.Snapshot         `json:"snapshot"`
	Structure   analytics.Structure      `json:"structure"`
	Deltas      market.Deltas            `json:"deltas"`
	Pressure    analytics.PressureResult `json:"pressure"`
	Projection  analytics.Projection     `json:"projection"`
	MarketOpen  bool                     `json:"market_open"`
	Source      string                   `json:"source"`
	GeneratedAt time.Time                `json:"generated_at"`
}

// Coordinator owns the latest result, the view state, and the fetch
// generation token.
type Coordinator struct {
	fetcher    SnapshotFetcher
	classifier *analytics.Classifier
	tracker    *intraday.Tracker
	scheduler  *Scheduler
	metrics    *metrics.Metrics
	notifier   notify.Notifier
	publish    func(Result)
	logger     *zap.Logger

	nyse     *calendar.Calendar
	location *time.Location

	mu          sync.Mutex
	view        session.Session
	generation  string
	latest      *Result
	lastDeltas  market.Deltas
	lastWarning string
	marketOpen  bool
	runCtx      context.Context
}

// NewCoordinator wires the pipeline. publish may be nil when no push
// consumer is attached.
func NewCoordinator(
	fetcher SnapshotFetcher,
	classifier *analytics.Classifier,
	tracker *intraday.Tracker,
	scheduler *Scheduler,
	m *metrics.Metrics,
	notifier notify.Notifier,
	publish func(Result),
	view session.Session,
	timezone string,
	logger *zap.Logger,
) *Coordinator {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	return &Coordinator{
		fetcher:    fetcher,
		classifier: classifier,
		tracker:    tracker,
		scheduler:  scheduler,
		metrics:    m,
		notifier:   notifier,
		publish:    publish,
		logger:     logger,
		nyse:       calendar.XNYS(),
		location:   loc,
		view:       view,
		generation: uuid.NewString(),
	}
}

// Run starts the periodic jobs and performs one immediate refresh so the
// dashboard has data before the first tick.
func (c *Coordinator) Run(ctx context.Context) {
	c.mu.Lock()
	c.runCtx = ctx
	interval := time.Duration(c.view.RefreshSec) * time.Second
	c.mu.Unlock()

	c.pollMarketStatus(ctx)
	c.scheduler.Start(ctx, jobLiveRefresh, interval, c.refreshOnce)
	c.scheduler.Start(ctx, jobMarketStatus, time.Minute, c.pollMarketStatus)
	go c.refreshOnce(ctx)
}

// refreshOnce fetches one snapshot for the active symbol and applies it.
func (c *Coordinator) refreshOnce(ctx context.Context) {
	c.mu.Lock()
	gen := c.generation
	symbol := c.view.Symbol
	c.mu.Unlock()

	start := time.Now()
	snap, err := c.fetcher.FetchSnapshot(ctx, symbol)
	if err != nil {
		c.metrics.FetchErrors.Inc()
		c.logger.Warn("snapshot fetch failed", zap.String("symbol", symbol), zap.Error(err))
		return
	}

	c.Apply(gen, snap, "live")
	c.metrics.RefreshCycles.Inc()
	c.metrics.RefreshDuration.Observe(time.Since(start).Seconds())
}

// Apply runs the full pipeline for a fetched snapshot. A response whose
// generation token no longer matches (the symbol changed while the fetch
// was in flight) is discarded, never partially applied.
func (c *Coordinator) Apply(gen string, snap *market.Snapshot, source string) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.metrics.StaleDiscards.Inc()
		c.logger.Debug("discarding stale snapshot", zap.String("symbol", snap.Symbol))
		return
	}
	view := c.view
	c.mu.Unlock()

	// Classification and baseline tracking both complete against this same
	// snapshot before the scorer or projector see any of it.
	structure := c.classifier.Classify(snap, view.Metric)
	deltas := c.tracker.Observe(snap)
	dexHistory := c.tracker.DexHistory()

	res := c.compute(snap, structure, deltas, dexHistory, view, source)
	c.store(gen, res)
}

// ApplyPlayback runs a historical frame through the same pipeline. The
// intraday tracker is left untouched: replayed days must not corrupt the
// live baseline, so the frame's own recorded deltas stand in.
func (c *Coordinator) ApplyPlayback(snap market.Snapshot) {
	c.mu.Lock()
	view := c.view
	c.mu.Unlock()

	structure := c.classifier.Classify(&snap, view.Metric)
	var deltas market.Deltas
	if snap.IntradayDeltas != nil {
		deltas = *snap.IntradayDeltas
	}

	res := c.compute(&snap, structure, deltas, nil, view, "playback")

	c.mu.Lock()
	c.latest = &res
	c.mu.Unlock()
	if c.publish != nil {
		c.publish(res)
	}
}

// compute is the fetch-free tail of the pipeline: scorer, projector, and
// result assembly.
func (c *Coordinator) compute(
	snap *market.Snapshot,
	structure analytics.Structure,
	deltas market.Deltas,
	dexHistory []float64,
	view session.Session,
	source string,
) Result {
	input := analytics.PressureInput{
		Spot:      snap.SpotPrice,
		NetDex:    snap.NetDex(),
		NetGex:    snap.NetGex(),
		ZeroGamma: snap.ZeroGamma,
	}
	if structure.King != nil {
		input.KingStrike = structure.King.Strike
	}
	pressure := analytics.ScorePressure(input, dexHistory)

	zoneDeltas := make(map[float64]float64, len(snap.Zones))
	intradayPct := make(map[float64]float64)
	for _, z := range snap.Zones {
		zoneDeltas[z.Strike] = z.DeltaGex
		if prior := z.Exposure - z.DeltaGex; prior != 0 {
			intradayPct[z.Strike] = z.DeltaGex / prior * 100
		}
	}

	projection := analytics.Project(analytics.ProjectionInput{
		Matrix:      snap.Exposure.Matrix(view.Metric),
		Spot:        snap.SpotPrice,
		Mode:        view.ExpirationMode,
		Filter:      view.TrendFilter,
		ZoneDeltas:  zoneDeltas,
		IntradayPct: intradayPct,
		Structure:   structure,
		Now:         time.Now().In(c.location),
	})

	c.mu.Lock()
	open := c.marketOpen
	c.mu.Unlock()

	return Result{
		Snapshot:    snap,
		Structure:   structure,
		Deltas:      deltas,
		Pressure:    pressure,
		Projection:  projection,
		MarketOpen:  open,
		Source:      source,
		GeneratedAt: time.Now(),
	}
}

// store publishes a live result if its generation still matches, and fires
// a notification the first time a warning appears.
func (c *Coordinator) store(gen string, res Result) {
	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.metrics.StaleDiscards.Inc()
		return
	}
	c.latest = &res
	c.lastDeltas = res.Deltas
	warningChanged := res.Pressure.Warning != "" && res.Pressure.Warning != c.lastWarning
	c.lastWarning = res.Pressure.Warning
	ctx := c.runCtx
	c.mu.Unlock()

	c.metrics.PressureScore.Set(float64(res.Pressure.Score))
	if c.publish != nil {
		c.publish(res)
	}
	if warningChanged && ctx != nil {
		symbol := res.Snapshot.Symbol
		warning := res.Pressure.Warning
		go func() {
			if err := c.notifier.SendFlipRisk(ctx, symbol, warning); err != nil {
				c.logger.Warn("flip-risk notification failed", zap.Error(err))
			}
		}()
	}
}

// SetSymbol switches the active symbol. The generation token rotates so any
// in-flight fetch for the old symbol is discarded on arrival, the intraday
// state resets, and an immediate fetch for the new symbol begins.
func (c *Coordinator) SetSymbol(symbol string) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	c.mu.Lock()
	if symbol == "" || symbol == c.view.Symbol {
		c.mu.Unlock()
		return
	}
	c.view.Symbol = symbol
	c.generation = uuid.NewString()
	c.latest = nil
	c.lastWarning = ""
	ctx := c.runCtx
	c.mu.Unlock()

	c.tracker.Reset()
	c.logger.Info("symbol switched", zap.String("symbol", symbol))
	if ctx != nil {
		go c.refreshOnce(ctx)
	}
}

// SetView changes metric, expiration mode, or trend filter, and recomputes
// the projection from the latest snapshot without refetching.
func (c *Coordinator) SetView(metric market.Metric, mode analytics.ExpirationMode, filter analytics.TrendFilter) {
	c.mu.Lock()
	c.view.Metric = metric
	c.view.ExpirationMode = mode
	c.view.TrendFilter = filter
	view := c.view
	gen := c.generation
	var snap *market.Snapshot
	deltas := c.lastDeltas
	if c.latest != nil {
		snap = c.latest.Snapshot
	}
	c.mu.Unlock()

	if snap == nil {
		return
	}
	structure := c.classifier.Classify(snap, view.Metric)
	res := c.compute(snap, structure, deltas, c.tracker.DexHistory(), view, "live")
	c.store(gen, res)
}

// SetRefreshInterval reschedules the live-refresh job.
func (c *Coordinator) SetRefreshInterval(seconds int) {
	c.mu.Lock()
	c.view.RefreshSec = seconds
	ctx := c.runCtx
	c.mu.Unlock()
	if ctx != nil {
		c.scheduler.Reschedule(ctx, jobLiveRefresh, time.Duration(seconds)*time.Second)
	}
}

// Suspend stops the live-refresh job while playback owns the display.
func (c *Coordinator) Suspend() {
	c.scheduler.Stop(jobLiveRefresh)
	c.logger.Info("live refresh suspended")
}

// Resume restarts the live-refresh job and forces one immediate fetch.
func (c *Coordinator) Resume() {
	c.mu.Lock()
	ctx := c.runCtx
	interval := time.Duration(c.view.RefreshSec) * time.Second
	c.mu.Unlock()
	if ctx == nil {
		return
	}
	c.scheduler.Start(ctx, jobLiveRefresh, interval, c.refreshOnce)
	go c.refreshOnce(ctx)
	c.logger.Info("live refresh resumed")
}

// pollMarketStatus refreshes the open/closed flag once a minute.
func (c *Coordinator) pollMarketStatus(_ context.Context) {
	now := time.Now().In(c.location)
	open := c.nyse.IsBusinessDay(now) &&
		!now.Before(time.Date(now.Year(), now.Month(), now.Day(), 9, 30, 0, 0, c.location)) &&
		now.Before(time.Date(now.Year(), now.Month(), now.Day(), marketCloseHour, 0, 0, 0, c.location))

	c.mu.Lock()
	c.marketOpen = open
	c.mu.Unlock()
}

// Latest returns the most recent result, nil before the first cycle.
func (c *Coordinator) Latest() *Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest
}

// View returns the current session view state.
func (c *Coordinator) View() session.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Generation returns the current fetch generation token.
func (c *Coordinator) Generation() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}
