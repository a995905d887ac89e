package domain

import (
	"fmt"
	"math"
)

// Recommendation is a proposed trade from an external decision source.
// It is untrusted input: percentage fields are fractions (0.02 = 2%) and
// every numeric field must be range-checked before use.
type Recommendation struct {
	Action          Action  `json:"action"`
	Symbol          string  `json:"symbol"`
	Confidence      float64 `json:"confidence"` // [0,1]
	StopLossPct     float64 `json:"stopLossPct"`
	TakeProfitPct   float64 `json:"takeProfitPct"`
	PositionSizePct float64 `json:"positionSizePct"` // Target size as fraction of equity
	Rationale       string  `json:"rationale"`
}

// Validate checks the recommendation for structural defects. A failing
// recommendation must be discarded, not repaired; out-of-range confidence
// is the one tolerated defect (clamped later, during sizing).
func (r *Recommendation) Validate() error {
	switch r.Action {
	case Buy, Sell, Hold:
	default:
		return fmt.Errorf("unknown action %q", r.Action)
	}
	if r.Action.IsActionable() && r.Symbol == "" {
		return fmt.Errorf("%s recommendation without a symbol", r.Action)
	}
	for name, v := range map[string]float64{
		"confidence":      r.Confidence,
		"stopLossPct":     r.StopLossPct,
		"takeProfitPct":   r.TakeProfitPct,
		"positionSizePct": r.PositionSizePct,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s is not a finite number", name)
		}
	}
	return nil
}

// ClampedConfidence returns the confidence clamped into [0,1].
func (r *Recommendation) ClampedConfidence() float64 {
	return math.Min(math.Max(r.Confidence, 0), 1)
}

// HoldRecommendation returns the safe default substituted when the decision
// source is unavailable or returns something unusable.
func HoldRecommendation(reason string) *Recommendation {
	return &Recommendation{Action: Hold, Rationale: reason}
}
