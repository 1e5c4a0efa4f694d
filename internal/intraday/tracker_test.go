package intraday

import (
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gexboard/internal/market"
)

func snapshotWithNets(gex, vex, dex float64) *market.Snapshot {
	matrix := func(v float64) *market.ExposureMatrix {
		return &market.ExposureMatrix{
			Strikes:     []float64{100},
			Expirations: []string{"2025-06-20"},
			Values:      [][]float64{{v}},
		}
	}
	return &market.Snapshot{
		Symbol: "SPX",
		Exposure: market.ExposureSet{
			Gex: matrix(gex),
			Vex: matrix(vex),
			Dex: matrix(dex),
		},
	}
}

// fixedClock returns a tracker whose wall clock the test controls.
func fixedClock(t *testing.T, tr *Tracker, at time.Time) func(time.Time) {
	t.Helper()
	current := at
	tr.now = func() time.Time { return current }
	return func(next time.Time) { current = next }
}

func TestFirstSnapshotCapturesBaseline(t *testing.T) {
	tr := NewTracker("America/New_York", zap.NewNop())
	// Tuesday 2025-01-07, pre-open.
	setClock := fixedClock(t, tr, time.Date(2025, 1, 7, 8, 0, 0, 0, tr.location))
	_ = setClock

	deltas := tr.Observe(snapshotWithNets(1e9, 2e8, -5e8))

	b := tr.Baseline()
	if b == nil {
		t.Fatal("expected baseline after first snapshot")
	}
	if b.Gex != 1e9 || b.Vex != 2e8 || b.Dex != -5e8 {
		t.Errorf("baseline mismatch: %+v", b)
	}
	if deltas.NetGex != 0 || deltas.NetVex != 0 || deltas.NetDex != 0 {
		t.Errorf("first snapshot deltas should be zero, got %+v", deltas)
	}
}

func TestResetOncePerTradingDay(t *testing.T) {
	tr := NewTracker("America/New_York", zap.NewNop())
	// Tuesday 2025-01-07 at 09:45, after the open.
	setClock := fixedClock(t, tr, time.Date(2025, 1, 7, 9, 45, 0, 0, tr.location))

	tr.Observe(snapshotWithNets(1e9, 0, 0))
	first := tr.Baseline()

	// Later the same day: no reset, baseline unchanged.
	setClock(time.Date(2025, 1, 7, 14, 0, 0, 0, tr.location))
	deltas := tr.Observe(snapshotWithNets(3e9, 0, 0))
	if got := tr.Baseline().CapturedAt; !got.Equal(first.CapturedAt) {
		t.Errorf("baseline reset within the same day: %v vs %v", got, first.CapturedAt)
	}
	if deltas.NetGex != 2e9 {
		t.Errorf("expected since-open delta 2e9, got %v", deltas.NetGex)
	}

	// Wednesday 2025-01-08 after the open: exactly one reset, the new
	// baseline equals the first snapshot of the new day.
	setClock(time.Date(2025, 1, 8, 9, 31, 0, 0, tr.location))
	deltas = tr.Observe(snapshotWithNets(5e9, 0, 0))
	second := tr.Baseline()
	if second.Gex != 5e9 {
		t.Errorf("expected new baseline 5e9, got %v", second.Gex)
	}
	if deltas.NetGex != 0 {
		t.Errorf("first post-open snapshot deltas should be zero, got %v", deltas.NetGex)
	}

	// Repeated calls within the new day are idempotent.
	setClock(time.Date(2025, 1, 8, 10, 0, 0, 0, tr.location))
	tr.Observe(snapshotWithNets(6e9, 0, 0))
	if got := tr.Baseline().CapturedAt; !got.Equal(second.CapturedAt) {
		t.Error("baseline reset more than once per trading day")
	}
}

func TestNoResetBeforeOpen(t *testing.T) {
	tr := NewTracker("America/New_York", zap.NewNop())
	// Captured pre-open Tuesday; still pre-open later the same morning.
	setClock := fixedClock(t, tr, time.Date(2025, 1, 7, 8, 0, 0, 0, tr.location))
	tr.Observe(snapshotWithNets(1e9, 0, 0))
	first := tr.Baseline()

	setClock(time.Date(2025, 1, 7, 9, 0, 0, 0, tr.location))
	tr.Observe(snapshotWithNets(2e9, 0, 0))
	if got := tr.Baseline().CapturedAt; !got.Equal(first.CapturedAt) {
		t.Error("baseline reset before the market open")
	}

	// Crossing 09:30 resets, because the live baseline predates the open.
	setClock(time.Date(2025, 1, 7, 9, 30, 0, 0, tr.location))
	tr.Observe(snapshotWithNets(3e9, 0, 0))
	if tr.Baseline().Gex != 3e9 {
		t.Error("expected reset at the open crossing")
	}
}

func TestDexHistoryWindow(t *testing.T) {
	tr := NewTracker("America/New_York", zap.NewNop())
	fixedClock(t, tr, time.Date(2025, 1, 7, 10, 0, 0, 0, tr.location))

	for i := 1; i <= 7; i++ {
		tr.Observe(snapshotWithNets(0, 0, float64(i)*1e8))
	}

	hist := tr.DexHistory()
	if len(hist) != 5 {
		t.Fatalf("expected history length 5, got %d", len(hist))
	}
	for i, want := range []float64{3e8, 4e8, 5e8, 6e8, 7e8} {
		if hist[i] != want {
			t.Errorf("hist[%d] = %v, want %v", i, hist[i], want)
		}
	}
}

func TestResetClearsState(t *testing.T) {
	tr := NewTracker("America/New_York", zap.NewNop())
	fixedClock(t, tr, time.Date(2025, 1, 7, 10, 0, 0, 0, tr.location))

	tr.Observe(snapshotWithNets(1e9, 0, 1e8))
	tr.Reset()

	if tr.Baseline() != nil {
		t.Error("baseline should be nil after reset")
	}
	if len(tr.DexHistory()) != 0 {
		t.Error("dex history should be empty after reset")
	}
}
