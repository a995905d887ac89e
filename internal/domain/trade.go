package domain

import "time"

// TradeRecord is an immutable historical fact: one executed open or close.
// Opening trades carry nil PnL fields; closing trades always set them.
// Analytics over trade history must only consider closing records.
type TradeRecord struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Action    Action      `json:"action"`
	Symbol    string      `json:"symbol"`
	Quantity  float64     `json:"quantity"`
	Price     float64     `json:"price"`
	PnL       *float64    `json:"pnl,omitempty"`    // Realized P&L, closes only
	PnLPct    *float64    `json:"pnlPct,omitempty"` // Percentage return, closes only
	Reason    CloseReason `json:"reason,omitempty"` // Why the position was closed
	Rationale string      `json:"rationale,omitempty"`
}

// IsClose reports whether this record closed (or reduced) a position.
func (t *TradeRecord) IsClose() bool {
	return t.PnL != nil
}

// DailyValueSample is one point in the portfolio equity curve.
// At most one sample exists per calendar day.
type DailyValueSample struct {
	Date      string  `json:"date"` // YYYY-MM-DD
	Value     float64 `json:"value"`
	ReturnPct float64 `json:"returnPct"` // Versus the prior sample
}
