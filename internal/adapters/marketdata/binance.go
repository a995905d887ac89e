// Package marketdata supplies prices and indicator snapshots to the engine.
package marketdata

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"aiTraderBot/internal/domain"
	"aiTraderBot/internal/indicators"
	"aiTraderBot/internal/ports"

	"github.com/adshao/go-binance/v2"
)

const (
	klineInterval = "1d"
	klineLimit    = 60 // Enough history for SMA50 plus RSI warmup
	rsiPeriod     = 14
)

// BinanceProvider implements MarketDataProvider on Binance spot market data.
// Only public endpoints are used; no API key is required.
type BinanceProvider struct {
	client *binance.Client
	logger ports.Logger
}

// NewBinanceProvider creates a market data provider backed by Binance.
func NewBinanceProvider(useTestnet bool, logger ports.Logger) (*BinanceProvider, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for market data provider")
	}
	binance.UseTestnet = useTestnet
	return &BinanceProvider{client: binance.NewClient("", ""), logger: logger}, nil
}

// GetPrices returns last traded prices for the requested symbols. Symbols the
// exchange cannot price right now are omitted rather than reported stale.
func (p *BinanceProvider) GetPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	if len(symbols) == 0 {
		return map[string]float64{}, nil
	}
	tickers, err := p.client.NewListPricesService().Symbols(symbols).Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("list prices: %w: %v", ports.ErrBrokerUnavailable, err)
	}

	out := make(map[string]float64, len(tickers))
	for _, t := range tickers {
		price, err := strconv.ParseFloat(t.Price, 64)
		if err != nil {
			p.logger.Warn(ctx, "Unparseable ticker price", map[string]interface{}{"symbol": t.Symbol, "raw": t.Price})
			continue
		}
		out[t.Symbol] = price
	}
	return out, nil
}

// GetSnapshot builds a MarketSnapshot with indicators from daily klines.
// A symbol with insufficient history is skipped with a warning; the snapshot
// fails only when every symbol is unavailable.
func (p *BinanceProvider) GetSnapshot(ctx context.Context, symbols []string) (*domain.MarketSnapshot, error) {
	snap := &domain.MarketSnapshot{Timestamp: time.Now().UTC()}

	for _, symbol := range symbols {
		closes, err := p.dailyCloses(ctx, symbol)
		if err != nil {
			p.logger.Warn(ctx, "Skipping symbol in snapshot", map[string]interface{}{
				"symbol": symbol, "error": err.Error(),
			})
			continue
		}
		sym, err := buildSymbolSnapshot(symbol, closes)
		if err != nil {
			p.logger.Warn(ctx, "Insufficient history for snapshot", map[string]interface{}{
				"symbol": symbol, "bars": len(closes), "error": err.Error(),
			})
			continue
		}
		snap.Symbols = append(snap.Symbols, sym)
	}

	if len(snap.Symbols) == 0 {
		return nil, fmt.Errorf("snapshot: %w: no symbol could be priced", ports.ErrBrokerUnavailable)
	}
	snap.Regime = ClassifyRegime(snap.Symbols)
	return snap, nil
}

func (p *BinanceProvider) dailyCloses(ctx context.Context, symbol string) ([]float64, error) {
	klines, err := p.client.NewKlinesService().
		Symbol(symbol).
		Interval(klineInterval).
		Limit(klineLimit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("klines %s: %w: %v", symbol, ports.ErrBrokerUnavailable, err)
	}
	closes := make([]float64, 0, len(klines))
	for _, k := range klines {
		c, err := strconv.ParseFloat(k.Close, 64)
		if err != nil {
			return nil, fmt.Errorf("klines %s: parse close %q: %w", symbol, k.Close, err)
		}
		closes = append(closes, c)
	}
	return closes, nil
}

// buildSymbolSnapshot computes the indicator set for one symbol from its
// close series, oldest first. The last close is the snapshot price.
func buildSymbolSnapshot(symbol string, closes []float64) (domain.SymbolSnapshot, error) {
	sma50, err := indicators.SMA(closes, 50)
	if err != nil {
		return domain.SymbolSnapshot{}, err
	}
	sma20, err := indicators.SMA(closes, 20)
	if err != nil {
		return domain.SymbolSnapshot{}, err
	}
	rsi, err := indicators.RSI(closes, rsiPeriod)
	if err != nil {
		return domain.SymbolSnapshot{}, err
	}
	change1d, err := indicators.Change(closes, 1)
	if err != nil {
		return domain.SymbolSnapshot{}, err
	}
	change5d, err := indicators.Change(closes, 5)
	if err != nil {
		return domain.SymbolSnapshot{}, err
	}
	return domain.SymbolSnapshot{
		Symbol:   symbol,
		Price:    closes[len(closes)-1],
		Change1D: change1d,
		Change5D: change5d,
		RSI:      rsi,
		SMA20:    sma20,
		SMA50:    sma50,
	}, nil
}

// ClassifyRegime derives a coarse sentiment label from breadth: the share of
// symbols trading above their 20-day average.
func ClassifyRegime(symbols []domain.SymbolSnapshot) string {
	if len(symbols) == 0 {
		return "mixed"
	}
	above := 0
	for _, s := range symbols {
		if s.SMA20 > 0 && s.Price > s.SMA20 {
			above++
		}
	}
	ratio := float64(above) / float64(len(symbols))
	switch {
	case ratio >= 0.7:
		return "risk-on"
	case ratio <= 0.3:
		return "risk-off"
	default:
		return "mixed"
	}
}
