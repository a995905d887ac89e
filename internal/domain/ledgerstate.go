package domain

import "time"

// LedgerState is the durable form of the portfolio ledger. It must
// round-trip exactly: load, no mutation, save must produce equivalent
// content, value for value.
type LedgerState struct {
	Cash           float64             `json:"cash"`
	InitialCapital float64             `json:"initialCapital"`
	Positions      map[string]Position `json:"positions"`
	TradeHistory   []TradeRecord       `json:"tradeHistory"`
	DailyValues    []DailyValueSample  `json:"dailyValues"`
	PeakEquity     float64             `json:"peakEquity"`
	CreatedAt      time.Time           `json:"createdAt"`
	LastUpdated    time.Time           `json:"lastUpdated"`
}
