// Package risk sizes positions from an account balance, a risk budget and a
// stop distance. Results are unrounded; callers round to instrument precision
// before building orders.
package risk

import (
	"math"

	"github.com/shopspring/decimal"

	"spotgate/apierr"
)

// Plan is the output of a sizing decision.
type Plan struct {
	PositionSize    float64
	TakeProfitPrice float64
	StopLossPrice   float64
}

// PositionSize computes size = (accountSize*riskPct/100) / |entry-stopLoss| and
// places the take profit takeProfitRatio stop distances away from entry.
func PositionSize(accountSize, riskPct, entry, stopLoss, takeProfitRatio float64, isLong bool) (Plan, error) {
	if err := validate(accountSize, riskPct, entry, stopLoss, takeProfitRatio); err != nil {
		return Plan{}, err
	}

	riskAmount := accountSize * riskPct / 100
	stopDistance := math.Abs(entry - stopLoss)
	size := riskAmount / stopDistance

	takeProfitDistance := stopDistance * takeProfitRatio
	takeProfit := entry - takeProfitDistance
	if isLong {
		takeProfit = entry + takeProfitDistance
	}
	if !finite(size) {
		return Plan{}, apierr.Invalid("positionSize", "is not representable for these inputs, got %v", size)
	}
	if !finite(takeProfit) {
		return Plan{}, apierr.Invalid("takeProfitPrice", "is not representable for these inputs, got %v", takeProfit)
	}

	return Plan{
		PositionSize:    size,
		TakeProfitPrice: takeProfit,
		StopLossPrice:   stopLoss,
	}, nil
}

// PositionSizeFromPercent resolves the stop loss as a percentage below (long)
// or above (short) entry and delegates to PositionSize.
func PositionSizeFromPercent(accountSize, riskPct, entry, stopLossPct, takeProfitRatio float64, isLong bool) (Plan, error) {
	if !finite(stopLossPct) || stopLossPct <= 0 {
		return Plan{}, apierr.Invalid("stopLossPct", "must be greater than 0, got %v", stopLossPct)
	}
	return PositionSize(accountSize, riskPct, entry, StopFromPercent(entry, stopLossPct, isLong), takeProfitRatio, isLong)
}

// StopFromPercent returns entry*(1-pct/100) for longs and entry*(1+pct/100)
// for shorts.
func StopFromPercent(entry, pct float64, isLong bool) float64 {
	if isLong {
		return entry * (1 - pct/100)
	}
	return entry * (1 + pct/100)
}

// PositionSizeInBase expresses the risk-bounded size in base asset units.
func PositionSizeInBase(accountSize, riskPct, entry, stopLoss float64) (float64, error) {
	if err := validate(accountSize, riskPct, entry, stopLoss, 1); err != nil {
		return 0, err
	}
	riskAmount := accountSize * riskPct / 100
	size := riskAmount / math.Abs(entry-stopLoss) / entry
	if !finite(size) {
		return 0, apierr.Invalid("positionSize", "is not representable for these inputs, got %v", size)
	}
	return size, nil
}

// TickBracket places the stop stopTicks ticks against the position and the
// target takeProfitTicks ticks in its favour.
func TickBracket(entry, tickSize float64, stopTicks, takeProfitTicks int, isLong bool) (stopLoss, takeProfit float64, err error) {
	if !finite(entry) || entry <= 0 {
		return 0, 0, apierr.Invalid("entryPrice", "must be greater than 0, got %v", entry)
	}
	if !finite(tickSize) || tickSize <= 0 {
		return 0, 0, apierr.Invalid("tickSize", "must be greater than 0, got %v", tickSize)
	}
	if stopTicks < 0 || takeProfitTicks < 0 {
		return 0, 0, apierr.Invalid("ticks", "must not be negative")
	}

	stopAdjust := tickSize * float64(stopTicks)
	takeProfitAdjust := tickSize * float64(takeProfitTicks)
	if isLong {
		return entry - stopAdjust, entry + takeProfitAdjust, nil
	}
	return entry + stopAdjust, entry - takeProfitAdjust, nil
}

func validate(accountSize, riskPct, entry, stopLoss, takeProfitRatio float64) error {
	switch {
	case !finite(accountSize) || accountSize <= 0:
		return apierr.Invalid("accountSize", "must be greater than 0, got %v", accountSize)
	case !finite(riskPct) || riskPct <= 0 || riskPct > 100:
		return apierr.Invalid("riskPct", "must be in (0, 100], got %v", riskPct)
	case !finite(entry) || entry <= 0:
		return apierr.Invalid("entryPrice", "must be greater than 0, got %v", entry)
	case !finite(stopLoss) || stopLoss <= 0:
		return apierr.Invalid("stopLossPrice", "must be greater than 0, got %v", stopLoss)
	case stopLoss == entry:
		return apierr.Invalid("stopLossPrice", "must differ from the entry price")
	case !finite(takeProfitRatio) || takeProfitRatio <= 0:
		return apierr.Invalid("takeProfitRatio", "must be greater than 0, got %v", takeProfitRatio)
	}
	return nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

// Round rounds half away from zero to the given number of decimals.
// Non-finite input is returned unchanged.
func Round(x float64, decimals int) float64 {
	if !finite(x) {
		return x
	}
	f, _ := decimal.NewFromFloat(x).Round(int32(decimals)).Float64()
	return f
}

// RoundToStep floors x to a multiple of step, as required by the venue's
// tick size and lot step filters. A non-positive step or a non-finite value
// returns x unchanged.
func RoundToStep(x, step float64) float64 {
	if !finite(x) || !finite(step) || step <= 0 {
		return x
	}
	s := decimal.NewFromFloat(step)
	f, _ := decimal.NewFromFloat(x).Div(s).Floor().Mul(s).Float64()
	return f
}
