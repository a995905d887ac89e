package marketdata

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"aiTraderBot/internal/domain"
	"aiTraderBot/internal/ports"
)

// PriceSource is the slice of the broker port the simulated provider needs.
type PriceSource interface {
	GetCurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// SimProvider implements MarketDataProvider for paper trading. It reads live
// prices from the paper broker and keeps a rolling close series per symbol,
// backfilled with a synthetic walk so the indicators have history from the
// first cycle.
type SimProvider struct {
	source PriceSource
	logger ports.Logger

	mu      sync.Mutex
	history map[string][]float64
	rng     *rand.Rand
}

// NewSimProvider creates a simulated market data provider. Seed zero means
// time-based.
func NewSimProvider(source PriceSource, logger ports.Logger, seed int64) (*SimProvider, error) {
	if source == nil {
		return nil, fmt.Errorf("price source is required for sim provider")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for sim provider")
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &SimProvider{
		source:  source,
		logger:  logger,
		history: make(map[string][]float64),
		rng:     rand.New(rand.NewSource(seed)),
	}, nil
}

// GetPrices reads the current simulated price for each symbol.
func (p *SimProvider) GetPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	out := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		price, err := p.source.GetCurrentPrice(ctx, sym)
		if err != nil {
			return nil, fmt.Errorf("sim price %s: %w", sym, err)
		}
		out[sym] = price
	}
	return out, nil
}

// GetSnapshot appends the latest price to each symbol's series and computes
// indicators over it.
func (p *SimProvider) GetSnapshot(ctx context.Context, symbols []string) (*domain.MarketSnapshot, error) {
	prices, err := p.GetPrices(ctx, symbols)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	snap := &domain.MarketSnapshot{Timestamp: time.Now().UTC()}
	for _, sym := range symbols {
		closes := p.observeLocked(sym, prices[sym])
		symSnap, err := buildSymbolSnapshot(sym, closes)
		if err != nil {
			p.logger.Warn(ctx, "Skipping symbol in sim snapshot", map[string]interface{}{
				"symbol": sym, "error": err.Error(),
			})
			continue
		}
		snap.Symbols = append(snap.Symbols, symSnap)
	}
	if len(snap.Symbols) == 0 {
		return nil, fmt.Errorf("sim snapshot: no symbol could be priced")
	}
	snap.Regime = ClassifyRegime(snap.Symbols)
	return snap, nil
}

// observeLocked records the latest close for a symbol, backfilling synthetic
// history on first sight so the 50-bar indicators are computable immediately.
func (p *SimProvider) observeLocked(symbol string, price float64) []float64 {
	closes, ok := p.history[symbol]
	if !ok {
		closes = make([]float64, 0, klineLimit)
		back := price
		for i := 0; i < klineLimit-1; i++ {
			back /= 1 + (p.rng.Float64()*2-1)*0.01
			closes = append(closes, back)
		}
		// Reverse into oldest-first order.
		for i, j := 0, len(closes)-1; i < j; i, j = i+1, j-1 {
			closes[i], closes[j] = closes[j], closes[i]
		}
	}
	closes = append(closes, price)
	if len(closes) > klineLimit {
		closes = closes[len(closes)-klineLimit:]
	}
	p.history[symbol] = closes
	return closes
}
