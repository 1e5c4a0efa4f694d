package analytics

import (
	"fmt"
	"math"
)

// Factor weights. They sum to 1 so an all-neutral input lands exactly on 50.
const (
	weightDex  = 0.40
	weightGex  = 0.25
	weightZero = 0.20
	weightKing = 0.15
)

// Normalization bases, instrument-scaled: index products (spot > 1000) carry
// an order of magnitude more notional exposure than ETFs.
const (
	indexDexBase = 5e9
	etfDexBase   = 500e6
	indexGexBase = 10e9
	etfGexBase   = 1e9
)

const (
	regimeBandPct    = 0.3 // percent distance from zero-gamma separating regimes
	flipProximityPct = 0.5 // percent distance from zero-gamma that arms the flip warning
	slopeThreshold   = 1e8 // dex-history swing that qualifies as pressure building

	// Below-king proximity pulls the score up at 1.5x the rate the
	// above-king side pulls it down.
	kingSlope      = 15.0
	kingPullFactor = 1.5
)

// PressureInput is the slice of a snapshot the scorer needs. Zero values for
// ZeroGamma or KingStrike mean "unavailable" and degrade that factor to
// neutral rather than erroring.
type PressureInput struct {
	Spot       float64
	NetDex     float64
	NetGex     float64
	ZeroGamma  float64
	KingStrike float64
}

// PressureResult is the scorer output: a 0-100 integer, its label band, the
// volatility regime, per-factor driver notes, and an optional flip warning.
type PressureResult struct {
	Score   int      `json:"score"`
	Label   string   `json:"label"`
	Regime  string   `json:"regime"`
	Drivers []string `json:"drivers"`
	Warning string   `json:"warning,omitempty"`
}

// ScorePressure combines four independently normalized factors into a single
// directional pressure reading. dexHistory is the trailing window of net DEX
// values, oldest first; it feeds only the flip warning, never the score.
func ScorePressure(in PressureInput, dexHistory []float64) PressureResult {
	dexScore := dexFactor(in)
	gexScore := gexFactor(in)
	zeroScore := zeroGammaFactor(in)
	kingScore := kingFactor(in)

	raw := weightDex*dexScore + weightGex*gexScore + weightZero*zeroScore + weightKing*kingScore
	score := int(math.Round(clamp(raw, 0, 100)))

	return PressureResult{
		Score:  score,
		Label:  labelFor(score),
		Regime: regimeFor(in),
		Drivers: []string{
			fmt.Sprintf("net dex %.2fB -> %.1f", in.NetDex/1e9, dexScore),
			fmt.Sprintf("net gex %.2fB -> %.1f", in.NetGex/1e9, gexScore),
			fmt.Sprintf("zero-gamma position -> %.1f", zeroScore),
			fmt.Sprintf("king proximity -> %.1f", kingScore),
		},
		Warning: flipWarning(in, dexHistory),
	}
}

// dexFactor is inverted: positive dealer delta is bearish for price.
func dexFactor(in PressureInput) float64 {
	base := etfDexBase
	if in.Spot > 1000 {
		base = indexDexBase
	}
	return 50 - clamp(in.NetDex/base, -1, 1)*40
}

func gexFactor(in PressureInput) float64 {
	base := etfGexBase
	if in.Spot > 1000 {
		base = indexGexBase
	}
	return 50 + clamp(in.NetGex/base, -1, 1)*25
}

// zeroGammaFactor scores the spot's position relative to the zero-gamma
// level: above is bullish, below bearish, saturating at 2 percent away.
func zeroGammaFactor(in PressureInput) float64 {
	if in.ZeroGamma <= 0 {
		return 50
	}
	pct := clamp((in.Spot-in.ZeroGamma)/in.ZeroGamma*100, -2, 2)
	return 50 + pct*15
}

// kingFactor scores the spot's distance to the king strike. Below the king
// the magnet effect pulls the score up; above it the pull down is weaker.
func kingFactor(in PressureInput) float64 {
	if in.KingStrike <= 0 {
		return 50
	}
	pct := clamp((in.Spot-in.KingStrike)/in.KingStrike*100, -2, 2)
	if pct < 0 {
		return 50 + (-pct)*kingSlope*kingPullFactor
	}
	return 50 - pct*kingSlope
}

func labelFor(score int) string {
	switch {
	case score >= 81:
		return "strong bullish"
	case score >= 61:
		return "bullish"
	case score >= 41:
		return "neutral"
	case score >= 21:
		return "bearish"
	default:
		return "strong bearish"
	}
}

// regimeFor reports volatility character, not direction: positive gamma
// dampens moves, negative gamma amplifies them.
func regimeFor(in PressureInput) string {
	if in.ZeroGamma <= 0 {
		return "flat"
	}
	pct := (in.Spot - in.ZeroGamma) / in.ZeroGamma * 100
	switch {
	case pct > regimeBandPct:
		return "positive-gamma"
	case pct < -regimeBandPct:
		return "negative-gamma"
	default:
		return "flat"
	}
}

// flipWarning fires when spot sits within 0.5% of the zero-gamma level, or
// when the last three dex-history entries contain both signs. The zero-gamma
// message wins when both hold, and a slope qualifier is appended when the
// full window swung by more than 1e8.
func flipWarning(in PressureInput, dexHistory []float64) string {
	nearZero := in.ZeroGamma > 0 && math.Abs(in.Spot-in.ZeroGamma)/in.ZeroGamma*100 <= flipProximityPct

	var msg string
	switch {
	case nearZero:
		msg = "spot within 0.5% of zero-gamma flip level"
	case signReversal(dexHistory):
		msg = "dealer delta flipped sign in trailing window"
	default:
		return ""
	}

	if len(dexHistory) >= 2 {
		delta := dexHistory[len(dexHistory)-1] - dexHistory[0]
		if math.Abs(delta) > slopeThreshold {
			if delta > 0 {
				msg += "; buying pressure building"
			} else {
				msg += "; selling pressure building"
			}
		}
	}
	return msg
}

// signReversal reports whether the last three history entries hold both a
// positive and a negative value.
func signReversal(dexHistory []float64) bool {
	start := len(dexHistory) - 3
	if start < 0 {
		start = 0
	}
	var pos, neg bool
	for _, v := range dexHistory[start:] {
		if v > 0 {
			pos = true
		}
		if v < 0 {
			neg = true
		}
	}
	return pos && neg
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
