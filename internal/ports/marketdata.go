package ports

import (
	"context"

	"aiTraderBot/internal/domain"
)

// MarketDataProvider supplies fresh prices and indicator snapshots.
// GetPrices may omit symbols it cannot price right now; it must never return
// stale prices as fresh.
type MarketDataProvider interface {
	GetPrices(ctx context.Context, symbols []string) (map[string]float64, error)
	GetSnapshot(ctx context.Context, symbols []string) (*domain.MarketSnapshot, error)
}
