package domain

import "time"

// Position represents one open exposure in one instrument.
// A Position only exists while its quantity is non-zero; fully closed
// positions are removed from the ledger and live on as TradeRecords.
type Position struct {
	Symbol       string    `json:"symbol"`
	Quantity     float64   `json:"quantity"` // Signed; positive = long
	EntryPrice   float64   `json:"entryPrice"`
	CurrentPrice float64   `json:"currentPrice"`
	StopLoss     float64   `json:"stopLoss"`
	TakeProfit   float64   `json:"takeProfit"`
	EntryTime    time.Time `json:"entryTime"`
	Rationale    string    `json:"rationale,omitempty"` // Free-form text from the advisor
}

// IsLong reports whether the position is a long exposure.
func (p *Position) IsLong() bool {
	return p.Quantity > 0
}

// MarketValue returns the mark-to-market value of the position.
func (p *Position) MarketValue() float64 {
	return p.Quantity * p.CurrentPrice
}

// UnrealizedPnL returns the open profit or loss at the current mark price.
func (p *Position) UnrealizedPnL() float64 {
	return (p.CurrentPrice - p.EntryPrice) * p.Quantity
}

// StopLossHit reports whether the current price has crossed the stop-loss level.
func (p *Position) StopLossHit(price float64) bool {
	if p.StopLoss <= 0 {
		return false
	}
	if p.IsLong() {
		return price <= p.StopLoss
	}
	return price >= p.StopLoss
}

// TakeProfitHit reports whether the current price has crossed the take-profit level.
func (p *Position) TakeProfitHit(price float64) bool {
	if p.TakeProfit <= 0 {
		return false
	}
	if p.IsLong() {
		return price >= p.TakeProfit
	}
	return price <= p.TakeProfit
}
