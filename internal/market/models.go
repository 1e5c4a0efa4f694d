package market

import (
	"fmt"
	"math"
)

// Metric selects which exposure surface is active.
type Metric string

const (
	MetricGex Metric = "gex"
	MetricVex Metric = "vex"
	MetricDex Metric = "dex"
)

// ZoneKind is the sign of a zone's aggregate exposure.
type ZoneKind string

const (
	KindPositive ZoneKind = "positive"
	KindNegative ZoneKind = "negative"
)

// Role is a classified market-structure label for a strike.
type Role string

const (
	RoleKing        Role = "king"
	RoleGatekeeper  Role = "gatekeeper"
	RoleMagnet      Role = "magnet"
	RoleAccelerator Role = "accelerator"
	RoleResistance  Role = "resistance"
	RoleSupport     Role = "support"
	RoleNeutral     Role = "neutral"
)

// ExposureMatrix is a per-metric exposure surface.
// Strikes are ordered descending, expirations ascending; Values is indexed
// [strikeIndex][expirationIndex]. A cell of exactly 0 means no open interest,
// which is distinct from a small nonzero exposure.
type ExposureMatrix struct {
	Strikes     []float64   `json:"strikes"`
	Expirations []string    `json:"expirations"`
	Values      [][]float64 `json:"values"`
}

// Validate checks the row/column counts against the strike and expiration axes.
func (m *ExposureMatrix) Validate() error {
	if m == nil {
		return fmt.Errorf("nil matrix")
	}
	if len(m.Values) != len(m.Strikes) {
		return fmt.Errorf("row count %d != strike count %d", len(m.Values), len(m.Strikes))
	}
	for i, row := range m.Values {
		if len(row) != len(m.Expirations) {
			return fmt.Errorf("row %d: column count %d != expiration count %d", i, len(row), len(m.Expirations))
		}
	}
	return nil
}

// Net sums every cell of the matrix. Nil matrices net to zero so partial
// snapshots degrade instead of erroring.
func (m *ExposureMatrix) Net() float64 {
	if m == nil {
		return 0
	}
	var total float64
	for _, row := range m.Values {
		for _, v := range row {
			total += v
		}
	}
	return total
}

// Zone is one strike-level exposure cluster supplied by the upstream feed.
// Role is computed downstream except for king/gatekeeper, which may arrive
// pre-tagged and are treated as authoritative anchors.
type Zone struct {
	Strike            float64  `json:"strike"`
	Kind              ZoneKind `json:"kind"`
	Role              Role     `json:"role"`
	Strength          float64  `json:"strength"`
	Exposure          float64  `json:"exposure"`
	ExposureFormatted string   `json:"exposure_formatted"`
	DeltaGex          float64  `json:"delta_gex"`
}

// ExposureSet holds the three metric surfaces of one snapshot.
type ExposureSet struct {
	Gex *ExposureMatrix `json:"gex"`
	Vex *ExposureMatrix `json:"vex"`
	Dex *ExposureMatrix `json:"dex"`
}

// Matrix returns the surface for the given metric, nil when absent.
func (s ExposureSet) Matrix(metric Metric) *ExposureMatrix {
	switch metric {
	case MetricVex:
		return s.Vex
	case MetricDex:
		return s.Dex
	default:
		return s.Gex
	}
}

// Deltas are since-open net exposure changes.
type Deltas struct {
	NetGex float64 `json:"net_gex"`
	NetVex float64 `json:"net_vex"`
	NetDex float64 `json:"net_dex"`
}

// Snapshot is one refresh cycle's worth of upstream data. Snapshots are
// immutable once constructed; each cycle produces a new one.
type Snapshot struct {
	Symbol         string      `json:"symbol"`
	Timestamp      int64       `json:"timestamp"`
	Time           string      `json:"time,omitempty"`
	SpotPrice      float64     `json:"spot"`
	ZeroGamma      float64     `json:"zero_gamma"`
	Exposure       ExposureSet `json:"exposure"`
	Zones          []Zone      `json:"zones"`
	KingNode       *Zone       `json:"king_node,omitempty"`
	GatekeeperNode *Zone       `json:"gatekeeper_node,omitempty"`
	Regime         string      `json:"regime,omitempty"`
	IntradayDeltas *Deltas     `json:"intraday_deltas,omitempty"`
}

// NetGex is the snapshot's net gamma exposure across all strikes and expirations.
func (s *Snapshot) NetGex() float64 { return s.Exposure.Gex.Net() }

// NetVex is the snapshot's net vega exposure.
func (s *Snapshot) NetVex() float64 { return s.Exposure.Vex.Net() }

// NetDex is the snapshot's net delta exposure.
func (s *Snapshot) NetDex() float64 { return s.Exposure.Dex.Net() }

// FormatExposure renders a signed exposure value with a magnitude suffix,
// e.g. +1.25B or -340.00M.
func FormatExposure(v float64) string {
	abs := math.Abs(v)
	sign := "+"
	if v < 0 {
		sign = "-"
	}
	switch {
	case abs >= 1e9:
		return fmt.Sprintf("%s%.2fB", sign, abs/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%s%.2fM", sign, abs/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%s%.2fK", sign, abs/1e3)
	default:
		return fmt.Sprintf("%s%.2f", sign, abs)
	}
}
