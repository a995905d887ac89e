package ports

import (
	"context"

	"aiTraderBot/internal/domain"
)

// LedgerStore persists the portfolio ledger after every mutation and loads
// it back at process start. A Save failure is fatal for the trading loop:
// the process must stop rather than keep trading against unconfirmed
// on-disk state.
type LedgerStore interface {
	// Load returns the persisted state, or nil if none exists yet.
	Load(ctx context.Context) (*domain.LedgerState, error)
	// Save durably writes the state, atomically replacing the previous one.
	Save(ctx context.Context, state *domain.LedgerState) error
}
