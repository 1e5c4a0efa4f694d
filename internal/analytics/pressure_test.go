package analytics

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScorePressureAllZeroIsNeutral(t *testing.T) {
	res := ScorePressure(PressureInput{}, nil)

	assert.Equal(t, 50, res.Score)
	assert.Equal(t, "neutral", res.Label)
	assert.Equal(t, "flat", res.Regime)
	assert.Empty(t, res.Warning)
}

func TestDexFactorEtfScale(t *testing.T) {
	// Net DEX 2e8 at ETF scale (base 500e6): normalized 0.4, inverted
	// swing 50 - 16 = 34.
	in := PressureInput{Spot: 500, NetDex: 2e8}
	assert.InDelta(t, 34.0, dexFactor(in), 1e-9)
}

func TestDexFactorIndexScaleAndClamp(t *testing.T) {
	in := PressureInput{Spot: 5000, NetDex: 2e8}
	// Index base is 5e9: 2e8 normalizes to 0.04.
	assert.InDelta(t, 48.4, dexFactor(in), 1e-9)

	// Saturation at the clamp.
	in.NetDex = 1e12
	assert.InDelta(t, 10.0, dexFactor(in), 1e-9)
	in.NetDex = -1e12
	assert.InDelta(t, 90.0, dexFactor(in), 1e-9)
}

func TestGexFactor(t *testing.T) {
	in := PressureInput{Spot: 5000, NetGex: 10e9}
	assert.InDelta(t, 75.0, gexFactor(in), 1e-9)

	in.NetGex = -20e9
	assert.InDelta(t, 25.0, gexFactor(in), 1e-9)
}

func TestZeroGammaFactor(t *testing.T) {
	// 1% above zero-gamma: 50 + 15.
	in := PressureInput{Spot: 101, ZeroGamma: 100}
	assert.InDelta(t, 65.0, zeroGammaFactor(in), 1e-9)

	// Saturates at +/-2%.
	in.Spot = 110
	assert.InDelta(t, 80.0, zeroGammaFactor(in), 1e-9)

	// Missing level degrades to neutral.
	in.ZeroGamma = 0
	assert.InDelta(t, 50.0, zeroGammaFactor(in), 1e-9)
}

func TestKingFactorAsymmetry(t *testing.T) {
	// 1% below the king: magnet pull up at 1.5x slope.
	below := PressureInput{Spot: 99, KingStrike: 100}
	assert.InDelta(t, 72.5, kingFactor(below), 1e-9)

	// 1% above the king: plain slope down.
	above := PressureInput{Spot: 101, KingStrike: 100}
	assert.InDelta(t, 35.0, kingFactor(above), 1e-9)
}

func TestScorePressureIsBoundedInteger(t *testing.T) {
	extreme := PressureInput{
		Spot:       500,
		NetDex:     -1e12,
		NetGex:     1e12,
		ZeroGamma:  400,
		KingStrike: 600,
	}
	res := ScorePressure(extreme, nil)
	assert.GreaterOrEqual(t, res.Score, 0)
	assert.LessOrEqual(t, res.Score, 100)
	assert.Len(t, res.Drivers, 4)
}

func TestLabelBands(t *testing.T) {
	cases := []struct {
		score int
		label string
	}{
		{100, "strong bullish"},
		{81, "strong bullish"},
		{80, "bullish"},
		{61, "bullish"},
		{60, "neutral"},
		{41, "neutral"},
		{40, "bearish"},
		{21, "bearish"},
		{20, "strong bearish"},
		{0, "strong bearish"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.label, labelFor(tc.score), "score %d", tc.score)
	}
}

func TestRegimeBands(t *testing.T) {
	zg := 100.0
	assert.Equal(t, "positive-gamma", regimeFor(PressureInput{Spot: 100.5, ZeroGamma: zg}))
	assert.Equal(t, "negative-gamma", regimeFor(PressureInput{Spot: 99.5, ZeroGamma: zg}))
	assert.Equal(t, "flat", regimeFor(PressureInput{Spot: 100.2, ZeroGamma: zg}))
	assert.Equal(t, "flat", regimeFor(PressureInput{Spot: 100}))
}

func TestFlipWarningSignReversal(t *testing.T) {
	// Zero-gamma is far away; the trailing window alone triggers.
	in := PressureInput{Spot: 110, ZeroGamma: 100}
	res := ScorePressure(in, []float64{1e8, 2e8, -1e8})

	assert.Contains(t, res.Warning, "flipped sign")
	// Window swung by -2e8, beyond the slope threshold.
	assert.Contains(t, res.Warning, "selling pressure building")
}

func TestFlipWarningZeroGammaPrecedence(t *testing.T) {
	// Both conditions hold; the zero-gamma message wins.
	in := PressureInput{Spot: 100.2, ZeroGamma: 100}
	res := ScorePressure(in, []float64{-1e8, 5e7, 2e8})

	assert.True(t, strings.HasPrefix(res.Warning, "spot within 0.5% of zero-gamma"))
	assert.Contains(t, res.Warning, "buying pressure building")
}

func TestFlipWarningQuietWindow(t *testing.T) {
	in := PressureInput{Spot: 110, ZeroGamma: 100}
	res := ScorePressure(in, []float64{1e8, 2e8, 3e8})
	assert.Empty(t, res.Warning, "same-sign window, spot far from zero-gamma")
}

func TestSignReversalWindow(t *testing.T) {
	// Only the last three entries count.
	assert.False(t, signReversal([]float64{-1e8, 1e8, 2e8, 3e8}))
	assert.True(t, signReversal([]float64{5e8, -1e8, 1e8, 2e8}))
	assert.False(t, signReversal(nil))
	assert.False(t, signReversal([]float64{0, 0, 0}))
}
