package ports

import (
	"context"
	"time"

	"aiTraderBot/internal/domain"
)

// Fill is a broker's confirmation of an executed (possibly partial) order.
// Quantity is the filled quantity, which may be less than requested; the
// ledger must only ever be mutated with the filled quantity.
type Fill struct {
	OrderID   string
	Symbol    string
	Side      domain.Action
	Quantity  float64
	Price     float64 // Average fill price
	Timestamp time.Time
}

// AccountInfo holds the broker-side view of the account.
type AccountInfo struct {
	Cash        float64
	Equity      float64
	BuyingPower float64
}

// BrokerPosition is the broker-side view of one holding, used for
// reconciliation and status reporting.
type BrokerPosition struct {
	Symbol       string
	Quantity     float64
	EntryPrice   float64
	CurrentPrice float64
}

// Broker is the single capability interface for order execution backends.
// The engine depends only on this interface; one implementation exists per
// backend (paper, binance).
type Broker interface {
	// GetAccountInfo retrieves the broker's view of the account.
	GetAccountInfo(ctx context.Context) (*AccountInfo, error)

	// GetCurrentPrice retrieves the last traded price for a symbol.
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)

	// SubmitOrder places a market order and waits for its fill.
	// A rejection is reported as an error wrapping ErrOrderRejected;
	// any other error means the order state is unknown to the caller.
	SubmitOrder(ctx context.Context, symbol string, side domain.Action, quantity float64) (*Fill, error)

	// GetPositions retrieves all holdings the broker knows about.
	GetPositions(ctx context.Context) ([]BrokerPosition, error)

	// CloseAll liquidates every holding at market. Operator escape hatch;
	// never called by the trading cycle itself.
	CloseAll(ctx context.Context) error
}
