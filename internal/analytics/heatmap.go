package analytics

import (
	"math"
	"time"

	"github.com/dgnsrekt/gexboard/internal/market"
)

// ExpirationMode selects which expiration columns the projection keeps.
type ExpirationMode string

const (
	ExpirationAll  ExpirationMode = "all"
	Expiration0DTE ExpirationMode = "0dte"
)

// TrendFilter restricts projected rows by the sign of the strike's
// intraday delta-GEX.
type TrendFilter string

const (
	TrendAll        TrendFilter = "all"
	TrendIncreasing TrendFilter = "increasing"
	TrendDecreasing TrendFilter = "decreasing"
)

const (
	opacityFloor   = 0.2
	opacityCeiling = 1.0
)

// Cell is one projected matrix cell with its display weight and column roles.
type Cell struct {
	Expiration  string  `json:"expiration"`
	Value       float64 `json:"value"`
	Opacity     float64 `json:"opacity"`
	Magnet      bool    `json:"magnet,omitempty"`
	Accelerator bool    `json:"accelerator,omitempty"`
}

// Row is one projected strike with its anchor flags and optional intraday
// percent change.
type Row struct {
	Strike      float64  `json:"strike"`
	King        bool     `json:"king,omitempty"`
	Gatekeeper  bool     `json:"gatekeeper,omitempty"`
	Spot        bool     `json:"spot,omitempty"`
	IntradayPct *float64 `json:"intraday_pct,omitempty"`
	Cells       []Cell   `json:"cells"`
}

// Projection is the display-ready reshaping of an exposure matrix. Color is
// the renderer's concern; the projection carries only annotated numbers.
type Projection struct {
	Rows         []Row    `json:"rows"`
	Expirations  []string `json:"expirations"`
	DaysToExpiry int      `json:"days_to_expiry,omitempty"`
	Fallback     bool     `json:"fallback,omitempty"`
}

// ProjectionInput bundles the projector arguments. ZoneDeltas and
// IntradayPct are keyed by strike; either may be nil.
type ProjectionInput struct {
	Matrix      *market.ExposureMatrix
	Spot        float64
	Mode        ExpirationMode
	Filter      TrendFilter
	ZoneDeltas  map[float64]float64
	IntradayPct map[float64]float64
	Structure   Structure
	Now         time.Time
}

// Project filters and reshapes the matrix for display. The current-spot row
// and the global king row survive the trend filter regardless, so the view
// keeps its orientation anchors.
func Project(in ProjectionInput) Projection {
	m := in.Matrix
	if m == nil || len(m.Strikes) == 0 || len(m.Expirations) == 0 {
		return Projection{}
	}

	cols, days, fallback := selectColumns(m, in.Mode, in.Now)
	rows := selectRows(m, in)

	maxAbs := 0.0
	for _, i := range rows {
		for _, j := range cols {
			if a := math.Abs(m.Values[i][j]); a > maxAbs {
				maxAbs = a
			}
		}
	}

	spotRow := nearestStrikeRow(m.Strikes, in.Spot)

	out := Projection{DaysToExpiry: days, Fallback: fallback}
	out.Expirations = make([]string, len(cols))
	for n, j := range cols {
		out.Expirations[n] = m.Expirations[j]
	}

	for _, i := range rows {
		strike := m.Strikes[i]
		row := Row{
			Strike:     strike,
			King:       in.Structure.King != nil && in.Structure.King.Strike == strike,
			Gatekeeper: in.Structure.Gatekeeper != nil && in.Structure.Gatekeeper.Strike == strike,
			Spot:       i == spotRow,
		}
		if pct, ok := in.IntradayPct[strike]; ok {
			p := pct
			row.IntradayPct = &p
		}
		row.Cells = make([]Cell, 0, len(cols))
		for _, j := range cols {
			v := m.Values[i][j]
			cell := Cell{
				Expiration: m.Expirations[j],
				Value:      v,
				Opacity:    opacity(v, maxAbs),
			}
			if j < len(in.Structure.Columns) {
				cr := in.Structure.Columns[j]
				cell.Magnet = cr.MagnetRow == i
				cell.Accelerator = cr.AcceleratorRow == i
			}
			row.Cells = append(row.Cells, cell)
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

// selectColumns resolves the expiration mode to concrete column indexes.
// In 0DTE mode with no same-day expiration, the nearest (first) expiration
// stands in and its days-to-expiry label is reported.
func selectColumns(m *market.ExposureMatrix, mode ExpirationMode, now time.Time) (cols []int, days int, fallback bool) {
	if mode != Expiration0DTE {
		cols = make([]int, len(m.Expirations))
		for j := range cols {
			cols[j] = j
		}
		return cols, 0, false
	}

	today := now.Format("2006-01-02")
	for j, exp := range m.Expirations {
		if exp == today {
			cols = append(cols, j)
		}
	}
	if len(cols) > 0 {
		return cols, 0, false
	}

	// Expirations are time-ordered ascending, so index 0 is the nearest.
	return []int{0}, daysToExpiry(m.Expirations[0], now), true
}

// daysToExpiry is ceil((expiration - today) / 1 day), compared on calendar
// dates in the caller's local timezone.
func daysToExpiry(expiration string, now time.Time) int {
	exp, err := time.ParseInLocation("2006-01-02", expiration, now.Location())
	if err != nil {
		return 0
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return int(math.Ceil(exp.Sub(today).Hours() / 24))
}

// selectRows applies the trend filter. Rows with no recorded zone delta are
// dropped by a directional filter; the spot and king rows always survive.
func selectRows(m *market.ExposureMatrix, in ProjectionInput) []int {
	spotRow := nearestStrikeRow(m.Strikes, in.Spot)
	rows := make([]int, 0, len(m.Strikes))
	for i, strike := range m.Strikes {
		if i == spotRow {
			rows = append(rows, i)
			continue
		}
		if in.Structure.King != nil && in.Structure.King.Strike == strike {
			rows = append(rows, i)
			continue
		}
		delta, ok := in.ZoneDeltas[strike]
		switch in.Filter {
		case TrendIncreasing:
			if ok && delta > 0 {
				rows = append(rows, i)
			}
		case TrendDecreasing:
			if ok && delta < 0 {
				rows = append(rows, i)
			}
		default:
			rows = append(rows, i)
		}
	}
	return rows
}

// nearestStrikeRow returns the row whose strike is closest to spot. Strikes
// are descending; the first match wins on equidistant strikes.
func nearestStrikeRow(strikes []float64, spot float64) int {
	best := -1
	bestDist := math.Inf(1)
	for i, s := range strikes {
		if d := math.Abs(s - spot); d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}

// opacity maps |value|/max onto [floor, ceiling]. A zero max (all cells
// empty) pins every cell at the floor.
func opacity(v, maxAbs float64) float64 {
	if maxAbs == 0 {
		return opacityFloor
	}
	ratio := math.Abs(v) / maxAbs
	return clamp(ratio, opacityFloor, opacityCeiling)
}
