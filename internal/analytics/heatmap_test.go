package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgnsrekt/gexboard/internal/market"
)

func heatmapMatrix() *market.ExposureMatrix {
	return &market.ExposureMatrix{
		Strikes:     []float64{110, 105, 100, 95},
		Expirations: []string{"2025-06-20", "2025-06-27"},
		Values: [][]float64{
			{-1e6, 2e6},
			{4e6, 0},
			{2e6, -3e6},
			{1e6, 1e6},
		},
	}
}

func TestProjectAllMode(t *testing.T) {
	p := Project(ProjectionInput{
		Matrix: heatmapMatrix(),
		Spot:   101,
		Mode:   ExpirationAll,
		Filter: TrendAll,
		Now:    time.Date(2025, 6, 20, 10, 0, 0, 0, time.UTC),
	})

	require.Len(t, p.Rows, 4)
	assert.Equal(t, []string{"2025-06-20", "2025-06-27"}, p.Expirations)
	assert.False(t, p.Fallback)

	// Row closest to spot is flagged.
	assert.True(t, p.Rows[2].Spot, "100 strike is nearest to spot 101")
}

func TestProject0DTEMatchesToday(t *testing.T) {
	p := Project(ProjectionInput{
		Matrix: heatmapMatrix(),
		Spot:   101,
		Mode:   Expiration0DTE,
		Filter: TrendAll,
		Now:    time.Date(2025, 6, 20, 10, 0, 0, 0, time.UTC),
	})

	assert.Equal(t, []string{"2025-06-20"}, p.Expirations)
	assert.False(t, p.Fallback)
	assert.Equal(t, 0, p.DaysToExpiry)
	require.Len(t, p.Rows[0].Cells, 1)
}

func TestProject0DTEFallsBackToNearest(t *testing.T) {
	p := Project(ProjectionInput{
		Matrix: heatmapMatrix(),
		Spot:   101,
		Mode:   Expiration0DTE,
		Filter: TrendAll,
		Now:    time.Date(2025, 6, 18, 10, 0, 0, 0, time.UTC),
	})

	assert.Equal(t, []string{"2025-06-20"}, p.Expirations)
	assert.True(t, p.Fallback)
	assert.Equal(t, 2, p.DaysToExpiry)
}

func TestProjectTrendFilterKeepsAnchors(t *testing.T) {
	st := Structure{King: &Level{Strike: 105, Exposure: 4e6, Row: 1, Col: 0}}
	p := Project(ProjectionInput{
		Matrix: heatmapMatrix(),
		Spot:   101,
		Mode:   ExpirationAll,
		Filter: TrendIncreasing,
		ZoneDeltas: map[float64]float64{
			110: -5e5, // decreasing, dropped
			105: -5e5, // decreasing, but king row survives
			100: 3e5,  // increasing, kept
			95:  -1e5, // decreasing, dropped
		},
		Structure: st,
		Now:       time.Date(2025, 6, 20, 10, 0, 0, 0, time.UTC),
	})

	strikes := make([]float64, 0, len(p.Rows))
	for _, row := range p.Rows {
		strikes = append(strikes, row.Strike)
	}
	// 100 passes the filter; 105 is the king anchor and 100 is also the
	// spot row, so the set is {105, 100}.
	assert.Equal(t, []float64{105, 100}, strikes)
	assert.True(t, p.Rows[0].King)
}

func TestProjectOpacityBounds(t *testing.T) {
	p := Project(ProjectionInput{
		Matrix: heatmapMatrix(),
		Spot:   101,
		Mode:   ExpirationAll,
		Filter: TrendAll,
		Now:    time.Date(2025, 6, 20, 10, 0, 0, 0, time.UTC),
	})

	var sawFloor, sawCeiling bool
	for _, row := range p.Rows {
		for _, cell := range row.Cells {
			assert.GreaterOrEqual(t, cell.Opacity, 0.2)
			assert.LessOrEqual(t, cell.Opacity, 1.0)
			if cell.Opacity == 0.2 {
				sawFloor = true
			}
			if cell.Opacity == 1.0 {
				sawCeiling = true
			}
		}
	}
	assert.True(t, sawFloor, "zero cell should sit at the floor")
	assert.True(t, sawCeiling, "max-magnitude cell should reach the ceiling")
}

func TestProjectEmptyMatrixOpacityFloor(t *testing.T) {
	m := &market.ExposureMatrix{
		Strikes:     []float64{100},
		Expirations: []string{"2025-06-20"},
		Values:      [][]float64{{0}},
	}
	p := Project(ProjectionInput{
		Matrix: m,
		Spot:   100,
		Mode:   ExpirationAll,
		Filter: TrendAll,
		Now:    time.Date(2025, 6, 20, 10, 0, 0, 0, time.UTC),
	})
	require.Len(t, p.Rows, 1)
	assert.Equal(t, 0.2, p.Rows[0].Cells[0].Opacity)
}

func TestProjectRoleAnnotations(t *testing.T) {
	st := Structure{
		King: &Level{Strike: 105, Exposure: 4e6, Row: 1, Col: 0},
		Columns: []ColumnRoles{
			{Expiration: "2025-06-20", MagnetRow: 1, AcceleratorRow: 0},
			{Expiration: "2025-06-27", MagnetRow: 0, AcceleratorRow: 2},
		},
		Gatekeeper: &market.Zone{Strike: 95},
	}
	p := Project(ProjectionInput{
		Matrix:    heatmapMatrix(),
		Spot:      101,
		Mode:      ExpirationAll,
		Filter:    TrendAll,
		Structure: st,
		IntradayPct: map[float64]float64{
			105: 12.5,
		},
		Now: time.Date(2025, 6, 20, 10, 0, 0, 0, time.UTC),
	})

	assert.True(t, p.Rows[1].King)
	assert.True(t, p.Rows[3].Gatekeeper)
	assert.True(t, p.Rows[1].Cells[0].Magnet)
	assert.True(t, p.Rows[0].Cells[0].Accelerator)
	assert.True(t, p.Rows[2].Cells[1].Accelerator)
	require.NotNil(t, p.Rows[1].IntradayPct)
	assert.InDelta(t, 12.5, *p.Rows[1].IntradayPct, 1e-9)
	assert.Nil(t, p.Rows[0].IntradayPct)
}

func TestProjectNilMatrix(t *testing.T) {
	p := Project(ProjectionInput{Spot: 100, Now: time.Now()})
	assert.Empty(t, p.Rows)
}
