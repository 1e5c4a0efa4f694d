// Package intraday maintains the reset-on-open exposure baseline and the
// trailing net-DEX window for one symbol.
package intraday

import (
	"sync"
	"time"

	"github.com/scmhub/calendar"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexboard/internal/market"
)

const (
	dexHistoryCap = 5

	marketOpenHour   = 9
	marketOpenMinute = 30
)

// Baseline is the net exposure captured on the first snapshot at/after a
// market open. Exactly one baseline is live at a time.
type Baseline struct {
	Gex        float64   `json:"gex"`
	Vex        float64   `json:"vex"`
	Dex        float64   `json:"dex"`
	CapturedAt time.Time `json:"captured_at"`
}

// Tracker owns the intraday baseline and the dex history. All mutation goes
// through Observe; readers get copies.
type Tracker struct {
	mu         sync.Mutex
	baseline   *Baseline
	dexHistory []float64

	location *time.Location
	nyse     *calendar.Calendar
	now      func() time.Time
	logger   *zap.Logger
}

// NewTracker creates a tracker anchored to the given exchange timezone.
// An unloadable timezone falls back to UTC, matching how the rest of the
// service degrades rather than fails.
func NewTracker(timezone string, logger *zap.Logger) *Tracker {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	return &Tracker{
		location: loc,
		nyse:     calendar.XNYS(),
		now:      time.Now,
		logger:   logger,
	}
}

// Observe processes one snapshot: it captures or resets the baseline,
// appends net DEX to the trailing window, and returns the since-open deltas.
//
// The reset is idempotent within a trading day: it fires only when the wall
// clock has crossed today's 09:30 open and the live baseline predates that
// open, so a sequence of snapshots spanning two opens yields exactly two
// baselines.
func (t *Tracker) Observe(snap *market.Snapshot) market.Deltas {
	netGex := snap.NetGex()
	netVex := snap.NetVex()
	netDex := snap.NetDex()

	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now().In(t.location)
	open := time.Date(now.Year(), now.Month(), now.Day(), marketOpenHour, marketOpenMinute, 0, 0, t.location)

	capture := false
	switch {
	case t.baseline == nil:
		capture = true
	case !now.Before(open) && t.baseline.CapturedAt.Before(open) && t.nyse.IsBusinessDay(now):
		capture = true
	}

	if capture {
		t.baseline = &Baseline{Gex: netGex, Vex: netVex, Dex: netDex, CapturedAt: now}
		t.logger.Info("intraday baseline captured",
			zap.String("symbol", snap.Symbol),
			zap.Float64("net_gex", netGex),
			zap.Float64("net_dex", netDex),
			zap.Time("at", now),
		)
	}

	t.dexHistory = append(t.dexHistory, netDex)
	if len(t.dexHistory) > dexHistoryCap {
		t.dexHistory = t.dexHistory[len(t.dexHistory)-dexHistoryCap:]
	}

	return market.Deltas{
		NetGex: netGex - t.baseline.Gex,
		NetVex: netVex - t.baseline.Vex,
		NetDex: netDex - t.baseline.Dex,
	}
}

// Baseline returns a copy of the live baseline, nil before the first snapshot.
func (t *Tracker) Baseline() *Baseline {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.baseline == nil {
		return nil
	}
	b := *t.baseline
	return &b
}

// DexHistory returns a copy of the trailing net-DEX window, oldest first.
func (t *Tracker) DexHistory() []float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]float64, len(t.dexHistory))
	copy(out, t.dexHistory)
	return out
}

// Reset clears the baseline and history. Called on symbol switches; the
// next snapshot for the new symbol captures a fresh baseline.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.baseline = nil
	t.dexHistory = nil
}
