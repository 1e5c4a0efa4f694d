package analytics

import (
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexboard/internal/market"
)

// NoRole is the sentinel row index for a column with no qualifying cell.
const NoRole = -1

// Level is a classified strike with its exposure and matrix coordinates.
type Level struct {
	Strike   float64 `json:"strike"`
	Exposure float64 `json:"exposure"`
	Row      int     `json:"row"`
	Col      int     `json:"col"`
}

// ColumnRoles holds the per-expiration local extrema of one matrix column.
// Row indexes reference the matrix strike axis; NoRole means absent.
type ColumnRoles struct {
	Expiration     string `json:"expiration"`
	MagnetRow      int    `json:"magnet_row"`
	AcceleratorRow int    `json:"accelerator_row"`
}

// Structure is the full classification of one snapshot: the global anchors,
// per-column roles, the walls relative to spot, and the role-annotated zones.
type Structure struct {
	King             *Level        `json:"king,omitempty"`
	Gatekeeper       *market.Zone  `json:"gatekeeper,omitempty"`
	GatekeeperAtKing bool          `json:"gatekeeper_at_king,omitempty"`
	Columns          []ColumnRoles `json:"columns"`
	Resistance       *market.Zone  `json:"resistance,omitempty"`
	Support          *market.Zone  `json:"support,omitempty"`
	Zones            []market.Zone `json:"zones"`
}

// Classifier derives market-structure roles from an exposure matrix and
// the upstream zone list.
type Classifier struct {
	logger *zap.Logger
}

func NewClassifier(logger *zap.Logger) *Classifier {
	return &Classifier{logger: logger}
}

// Classify computes the structure for one snapshot's active matrix.
// The matrix may be nil or empty; the result then carries no anchors and
// every column role is absent.
//
// The upstream king node is treated as a hint only: the king is always the
// max-positive cell of the whole matrix, and a disagreeing upstream value is
// logged and overridden. The gatekeeper is upstream-authoritative and is
// passed through untouched.
func (c *Classifier) Classify(snap *market.Snapshot, metric market.Metric) Structure {
	st := Structure{}
	if snap == nil {
		return st
	}

	matrix := snap.Exposure.Matrix(metric)
	st.King = findKing(matrix)
	st.Columns = columnRoles(matrix)

	if snap.KingNode != nil && st.King != nil && snap.KingNode.Strike != st.King.Strike {
		c.logger.Warn("upstream king disagrees with max-positive cell",
			zap.String("symbol", snap.Symbol),
			zap.Float64("upstream", snap.KingNode.Strike),
			zap.Float64("computed", st.King.Strike),
		)
	}

	st.Gatekeeper = snap.GatekeeperNode
	if st.King != nil && st.Gatekeeper != nil && st.Gatekeeper.Strike == st.King.Strike {
		// Upstream intent for a shared king/gatekeeper strike is ambiguous;
		// flag it instead of collapsing one role into the other.
		st.GatekeeperAtKing = true
	}

	st.Resistance, st.Support = findWalls(snap.Zones, snap.SpotPrice)
	st.Zones = annotateZones(snap.Zones, matrix, st)
	return st
}

// findKing scans the whole matrix for the maximum strictly positive cell.
// Strict comparison keeps the first-encountered candidate on equal values,
// i.e. the highest strike and earliest expiration.
func findKing(m *market.ExposureMatrix) *Level {
	if m == nil {
		return nil
	}
	var king *Level
	for i, row := range m.Values {
		for j, v := range row {
			if v <= 0 {
				continue
			}
			if king == nil || v > king.Exposure {
				king = &Level{Strike: m.Strikes[i], Exposure: v, Row: i, Col: j}
			}
		}
	}
	return king
}

// columnRoles finds the magnet (max strictly positive) and accelerator
// (min strictly negative) row for every expiration column.
func columnRoles(m *market.ExposureMatrix) []ColumnRoles {
	if m == nil {
		return nil
	}
	cols := make([]ColumnRoles, len(m.Expirations))
	for j, exp := range m.Expirations {
		col := ColumnRoles{Expiration: exp, MagnetRow: NoRole, AcceleratorRow: NoRole}
		var maxPos, minNeg float64
		for i := range m.Values {
			v := m.Values[i][j]
			if v > 0 && (col.MagnetRow == NoRole || v > maxPos) {
				col.MagnetRow = i
				maxPos = v
			}
			if v < 0 && (col.AcceleratorRow == NoRole || v < minNeg) {
				col.AcceleratorRow = i
				minNeg = v
			}
		}
		cols[j] = col
	}
	return cols
}

// findWalls selects the resistance wall (largest-magnitude positive zone
// strictly above spot) and support wall (strictly below spot). Strict
// comparisons keep the first-encountered zone on ties.
func findWalls(zones []market.Zone, spot float64) (resistance, support *market.Zone) {
	for i := range zones {
		z := &zones[i]
		if z.Kind != market.KindPositive {
			continue
		}
		mag := z.Exposure
		if mag < 0 {
			mag = -mag
		}
		switch {
		case z.Strike > spot:
			if resistance == nil || mag > absExposure(resistance) {
				resistance = z
			}
		case z.Strike < spot:
			if support == nil || mag > absExposure(support) {
				support = z
			}
		}
	}
	return resistance, support
}

func absExposure(z *market.Zone) float64 {
	if z.Exposure < 0 {
		return -z.Exposure
	}
	return z.Exposure
}

// annotateZones assigns display roles to a copy of the zone list. A strike
// qualifying for several roles gets exactly one label, in fixed precedence:
// king, then magnet, then accelerator, then the wall roles. Upstream
// gatekeeper tags survive unless the strike is also the king.
func annotateZones(zones []market.Zone, m *market.ExposureMatrix, st Structure) []market.Zone {
	out := make([]market.Zone, len(zones))
	copy(out, zones)

	magnets := make(map[float64]bool)
	accelerators := make(map[float64]bool)
	if m != nil {
		for _, col := range st.Columns {
			if col.MagnetRow != NoRole {
				magnets[m.Strikes[col.MagnetRow]] = true
			}
			if col.AcceleratorRow != NoRole {
				accelerators[m.Strikes[col.AcceleratorRow]] = true
			}
		}
	}

	for i := range out {
		z := &out[i]
		switch {
		case st.King != nil && z.Strike == st.King.Strike:
			z.Role = market.RoleKing
		case z.Role == market.RoleGatekeeper:
			// upstream-authoritative, keep
		case magnets[z.Strike]:
			z.Role = market.RoleMagnet
		case accelerators[z.Strike]:
			z.Role = market.RoleAccelerator
		case st.Resistance != nil && z.Strike == st.Resistance.Strike:
			z.Role = market.RoleResistance
		case st.Support != nil && z.Strike == st.Support.Strike:
			z.Role = market.RoleSupport
		default:
			if z.Role == "" {
				z.Role = market.RoleNeutral
			}
		}
	}
	return out
}
