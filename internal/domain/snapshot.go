package domain

import "time"

// SymbolSnapshot holds the price and indicator set for one instrument at one
// point in time.
type SymbolSnapshot struct {
	Symbol    string
	Price     float64
	Change1D  float64 // Fractional price change over one day
	Change5D  float64 // Fractional price change over five days
	RSI       float64
	SMA20     float64
	SMA50     float64
}

// MarketSnapshot is the observed market state handed to the decision source.
type MarketSnapshot struct {
	Timestamp time.Time
	Regime    string // Coarse sentiment: "risk-on", "risk-off" or "mixed"
	Symbols   []SymbolSnapshot
}

// PortfolioSummary is a read-only view of ledger state handed to the decision
// source alongside the market snapshot.
type PortfolioSummary struct {
	Cash        float64
	TotalValue  float64
	DailyPnLPct float64
	Positions   []Position
}
