package risk

import (
	"fmt"
	"math"

	"aiTraderBot/internal/ports"
)

// SizeRequest carries the inputs to position sizing. All percentage fields
// are fractions (0.02 = 2%).
type SizeRequest struct {
	Equity             float64
	PerTradeRiskPct    float64
	MaxPositionSizePct float64
	Confidence         float64
	StopLossPct        float64 // Stop distance as a fraction of entry price
	Price              float64
}

// SizePosition computes an admissible whole-unit quantity for a proposed
// trade. It is a pure function with no stored state.
//
// The risk-based quantity is the dollar amount the trader is willing to lose
// on this trade divided by the per-unit loss if stopped out; it is then
// capped by the maximum position size and scaled down by confidence. A zero
// result is not an error: the caller must treat it as an effective HOLD.
func SizePosition(req SizeRequest) (float64, error) {
	if req.StopLossPct <= 0 {
		return 0, fmt.Errorf("%w: got %f", ports.ErrInvalidStopLoss, req.StopLossPct)
	}
	if req.Price <= 0 {
		return 0, fmt.Errorf("%w: price must be positive", ports.ErrInvalidRequest)
	}
	if req.Equity <= 0 {
		return 0, nil
	}

	// Confidence outside [0,1] is untrusted input, clamped rather than
	// rejected; a structurally invalid stop-loss above is rejected outright.
	confidence := math.Min(math.Max(req.Confidence, 0), 1)

	riskBasedQty := math.Floor((req.Equity * req.PerTradeRiskPct) / (req.Price * req.StopLossPct))
	maxQty := math.Floor((req.Equity * req.MaxPositionSizePct) / req.Price)
	confidenceAdjustedQty := math.Floor(riskBasedQty * confidence)

	qty := math.Min(riskBasedQty, math.Min(maxQty, confidenceAdjustedQty))
	if qty < 0 {
		qty = 0
	}
	return qty, nil
}
