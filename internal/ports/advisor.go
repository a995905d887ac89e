package ports

import (
	"context"

	"aiTraderBot/internal/domain"
)

// Advisor is the external decision source that turns a market snapshot into a
// proposed action. Implementations must return either a structurally valid
// Recommendation or an error; the engine treats schema violations exactly
// like transport failures and substitutes a HOLD.
type Advisor interface {
	Recommend(ctx context.Context, snapshot *domain.MarketSnapshot, portfolio *domain.PortfolioSummary) (*domain.Recommendation, error)
}
