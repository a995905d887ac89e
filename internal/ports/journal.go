package ports

import (
	"context"

	"aiTraderBot/internal/domain"
)

// TradeJournal is the append-only audit trail of executed trades, kept in
// durable storage alongside (not instead of) the ledger's own history so
// that reporting tools can query it without loading the ledger.
type TradeJournal interface {
	// Append records one executed trade. Records are never mutated.
	Append(ctx context.Context, rec *domain.TradeRecord) error
	// RecentBySymbol retrieves the most recent trades for a symbol, newest first.
	RecentBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.TradeRecord, error)
	// CountToday counts trades recorded on the current calendar day.
	CountToday(ctx context.Context) (int, error)
	// TotalRealizedPnL sums realized P&L over all closing records.
	TotalRealizedPnL(ctx context.Context) (float64, error)
	// Close releases the underlying storage.
	Close() error
}
