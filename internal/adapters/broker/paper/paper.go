// Package paper implements the broker port as an in-process simulation.
// No network calls are made; fills are generated locally with a small
// random slippage so the rest of the system exercises the same code paths
// it would against a real backend.
package paper

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"aiTraderBot/internal/domain"
	"aiTraderBot/internal/ports"

	"github.com/oklog/ulid/v2"
)

// Broker simulates order execution against a randomly drifting price book.
type Broker struct {
	logger ports.Logger

	mu        sync.Mutex
	cash      float64
	positions map[string]*ports.BrokerPosition
	prices    map[string]float64
	rng       *rand.Rand
}

// Config holds configuration for the paper broker.
type Config struct {
	InitialCash float64
	SeedPrices  map[string]float64 // Starting prices; unknown symbols get a random one
	Logger      ports.Logger
	RandSeed    int64 // Zero means time-based
}

// New creates a paper broker.
func New(cfg Config) (*Broker, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for paper broker")
	}
	if cfg.InitialCash <= 0 {
		return nil, fmt.Errorf("%w: paper broker needs positive initial cash", ports.ErrConfigurationError)
	}
	seed := cfg.RandSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	prices := make(map[string]float64, len(cfg.SeedPrices))
	for sym, p := range cfg.SeedPrices {
		prices[sym] = p
	}
	b := &Broker{
		logger:    cfg.Logger,
		cash:      cfg.InitialCash,
		positions: make(map[string]*ports.BrokerPosition),
		prices:    prices,
		rng:       rand.New(rand.NewSource(seed)),
	}
	cfg.Logger.Info(context.Background(), "Paper broker ready", map[string]interface{}{"cash": cfg.InitialCash, "symbols": len(prices)})
	return b, nil
}

// GetAccountInfo returns the simulated account state.
func (b *Broker) GetAccountInfo(ctx context.Context) (*ports.AccountInfo, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	equity := b.cash
	for sym, pos := range b.positions {
		equity += pos.Quantity * b.priceLocked(sym)
	}
	return &ports.AccountInfo{Cash: b.cash, Equity: equity, BuyingPower: b.cash}, nil
}

// GetCurrentPrice returns the simulated price, drifting it by up to ±1%.
func (b *Broker) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.priceLocked(symbol), nil
}

func (b *Broker) priceLocked(symbol string) float64 {
	base, ok := b.prices[symbol]
	if !ok {
		base = 1 + b.rng.Float64()*999
	}
	price := base * (1 + (b.rng.Float64()*2-1)*0.01)
	b.prices[symbol] = price
	return price
}

// SubmitOrder fills a market order immediately at the current simulated
// price plus up to five basis points of slippage against the taker.
func (b *Broker) SubmitOrder(ctx context.Context, symbol string, side domain.Action, quantity float64) (*ports.Fill, error) {
	if !side.IsActionable() {
		return nil, fmt.Errorf("%w: side %s", ports.ErrInvalidRequest, side)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ports.ErrInvalidRequest)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	price := b.priceLocked(symbol)
	slip := price * b.rng.Float64() * 0.0005
	switch side {
	case domain.Buy:
		price += slip
		cost := quantity * price
		if cost > b.cash {
			return nil, fmt.Errorf("%w: cost %.2f exceeds cash %.2f", ports.ErrOrderRejected, cost, b.cash)
		}
		b.cash -= cost
		if pos, ok := b.positions[symbol]; ok {
			total := pos.Quantity + quantity
			pos.EntryPrice = (pos.EntryPrice*pos.Quantity + price*quantity) / total
			pos.Quantity = total
		} else {
			b.positions[symbol] = &ports.BrokerPosition{Symbol: symbol, Quantity: quantity, EntryPrice: price}
		}
	case domain.Sell:
		price -= slip
		pos, ok := b.positions[symbol]
		if !ok || pos.Quantity < quantity {
			return nil, fmt.Errorf("%w: insufficient holding in %s", ports.ErrOrderRejected, symbol)
		}
		b.cash += quantity * price
		pos.Quantity -= quantity
		if pos.Quantity == 0 {
			delete(b.positions, symbol)
		}
	}

	fill := &ports.Fill{
		OrderID:   ulid.Make().String(),
		Symbol:    symbol,
		Side:      side,
		Quantity:  quantity,
		Price:     price,
		Timestamp: time.Now().UTC(),
	}
	b.logger.Info(ctx, "Paper order filled", map[string]interface{}{
		"orderID": fill.OrderID, "symbol": symbol, "side": side, "quantity": quantity, "price": price,
	})
	return fill, nil
}

// GetPositions returns copies of the simulated holdings.
func (b *Broker) GetPositions(ctx context.Context) ([]ports.BrokerPosition, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]ports.BrokerPosition, 0, len(b.positions))
	for sym, pos := range b.positions {
		p := *pos
		p.CurrentPrice = b.priceLocked(sym)
		out = append(out, p)
	}
	return out, nil
}

// CloseAll liquidates every simulated holding at market.
func (b *Broker) CloseAll(ctx context.Context) error {
	b.mu.Lock()
	symbols := make([]string, 0, len(b.positions))
	quantities := make(map[string]float64, len(b.positions))
	for sym, pos := range b.positions {
		symbols = append(symbols, sym)
		quantities[sym] = pos.Quantity
	}
	b.mu.Unlock()

	for _, sym := range symbols {
		if _, err := b.SubmitOrder(ctx, sym, domain.Sell, quantities[sym]); err != nil {
			return fmt.Errorf("close all: %s: %w", sym, err)
		}
	}
	return nil
}
