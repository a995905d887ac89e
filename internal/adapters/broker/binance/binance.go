// Package binance implements the broker port on Binance spot via the
// go-binance client.
package binance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"aiTraderBot/internal/domain"
	"aiTraderBot/internal/ports"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
)

// Broker implements the ports.Broker interface using the go-binance library.
type Broker struct {
	client     *binance.Client
	logger     ports.Logger
	quoteAsset string
}

// Config holds configuration specific to the Binance broker adapter.
type Config struct {
	APIKey     string
	SecretKey  string
	UseTestnet bool
	QuoteAsset string // e.g. "USDT"; symbols are asset+quote
	Logger     ports.Logger
}

// New creates a new Binance broker adapter.
func New(cfg Config) (*Broker, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance broker")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: Binance API credentials are required", ports.ErrConfigurationError)
	}
	quote := cfg.QuoteAsset
	if quote == "" {
		quote = "USDT"
	}

	binance.UseTestnet = cfg.UseTestnet
	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	cfg.Logger.Info(context.Background(), "Binance broker configured", map[string]interface{}{
		"testnet": cfg.UseTestnet, "quoteAsset": quote,
	})
	return &Broker{client: client, logger: cfg.Logger, quoteAsset: quote}, nil
}

// handleError translates Binance API errors into standardized ports errors.
func (b *Broker) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}
	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		var mapped error
		switch apiErr.Code {
		case -1003:
			mapped = ports.ErrRateLimited
		case -2010, -2011:
			mapped = ports.ErrOrderRejected
		case -2014, -2015:
			mapped = ports.ErrAuthenticationFailed
		default:
			mapped = ports.ErrBrokerUnavailable
		}
		b.logger.Error(ctx, err, "Binance API error", fields)
		return fmt.Errorf("%s: %w: %s", operation, mapped, apiErr.Message)
	}

	b.logger.Error(ctx, err, "Binance transport error", fields)
	return fmt.Errorf("%s: %w: %v", operation, ports.ErrBrokerUnavailable, err)
}

// GetAccountInfo retrieves the spot account and reports quote-asset cash and
// mark-to-market equity over all non-zero balances.
func (b *Broker) GetAccountInfo(ctx context.Context) (*ports.AccountInfo, error) {
	acct, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, b.handleError(ctx, err, "GetAccountInfo")
	}

	info := &ports.AccountInfo{}
	for _, bal := range acct.Balances {
		free, _ := strconv.ParseFloat(bal.Free, 64)
		locked, _ := strconv.ParseFloat(bal.Locked, 64)
		total := free + locked
		if total == 0 {
			continue
		}
		if bal.Asset == b.quoteAsset {
			info.Cash = free
			info.BuyingPower = free
			info.Equity += total
			continue
		}
		price, err := b.GetCurrentPrice(ctx, bal.Asset+b.quoteAsset)
		if err != nil {
			b.logger.Warn(ctx, "Skipping unpriceable balance in equity", map[string]interface{}{"asset": bal.Asset})
			continue
		}
		info.Equity += total * price
	}
	return info, nil
}

// GetCurrentPrice retrieves the last traded price for a symbol.
func (b *Broker) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	prices, err := b.client.NewListPricesService().Symbol(symbol).Do(ctx)
	if err != nil {
		return 0, b.handleError(ctx, err, "GetCurrentPrice")
	}
	if len(prices) == 0 {
		return 0, fmt.Errorf("GetCurrentPrice: %w: %s", ports.ErrNotFound, symbol)
	}
	price, err := strconv.ParseFloat(prices[0].Price, 64)
	if err != nil {
		return 0, fmt.Errorf("GetCurrentPrice: parse %q: %w", prices[0].Price, err)
	}
	return price, nil
}

// SubmitOrder places a spot market order and reports the averaged fill.
// Binance may fill less than requested; the returned Fill carries the
// executed quantity, never the requested one.
func (b *Broker) SubmitOrder(ctx context.Context, symbol string, side domain.Action, quantity float64) (*ports.Fill, error) {
	var binSide binance.SideType
	switch side {
	case domain.Buy:
		binSide = binance.SideTypeBuy
	case domain.Sell:
		binSide = binance.SideTypeSell
	default:
		return nil, fmt.Errorf("%w: side %s", ports.ErrInvalidRequest, side)
	}
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity must be positive", ports.ErrInvalidRequest)
	}

	order, err := b.client.NewCreateOrderService().
		Symbol(symbol).
		Side(binSide).
		Type(binance.OrderTypeMarket).
		Quantity(strconv.FormatFloat(quantity, 'f', -1, 64)).
		Do(ctx)
	if err != nil {
		return nil, b.handleError(ctx, err, "SubmitOrder")
	}

	executed, _ := strconv.ParseFloat(order.ExecutedQuantity, 64)
	if executed == 0 {
		return nil, fmt.Errorf("SubmitOrder: %w: nothing executed for %s", ports.ErrOrderRejected, symbol)
	}
	quoteSpent, _ := strconv.ParseFloat(order.CummulativeQuoteQuantity, 64)
	avgPrice := 0.0
	if executed > 0 && quoteSpent > 0 {
		avgPrice = quoteSpent / executed
	}

	fill := &ports.Fill{
		OrderID:   strconv.FormatInt(order.OrderID, 10),
		Symbol:    symbol,
		Side:      side,
		Quantity:  executed,
		Price:     avgPrice,
		Timestamp: time.UnixMilli(order.TransactTime).UTC(),
	}
	b.logger.Info(ctx, "Binance order filled", map[string]interface{}{
		"orderID": fill.OrderID, "symbol": symbol, "side": side,
		"requested": quantity, "executed": executed, "avgPrice": avgPrice,
	})
	return fill, nil
}

// GetPositions reports every non-zero, non-quote balance as a holding.
// Spot accounts carry no entry price; callers needing cost basis must take
// it from the ledger, not the broker.
func (b *Broker) GetPositions(ctx context.Context) ([]ports.BrokerPosition, error) {
	acct, err := b.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, b.handleError(ctx, err, "GetPositions")
	}

	var out []ports.BrokerPosition
	for _, bal := range acct.Balances {
		if bal.Asset == b.quoteAsset {
			continue
		}
		free, _ := strconv.ParseFloat(bal.Free, 64)
		if free == 0 {
			continue
		}
		symbol := bal.Asset + b.quoteAsset
		price, err := b.GetCurrentPrice(ctx, symbol)
		if err != nil {
			b.logger.Warn(ctx, "Skipping unpriceable holding", map[string]interface{}{"asset": bal.Asset})
			continue
		}
		out = append(out, ports.BrokerPosition{Symbol: symbol, Quantity: free, CurrentPrice: price})
	}
	return out, nil
}

// CloseAll market-sells every holding.
func (b *Broker) CloseAll(ctx context.Context) error {
	positions, err := b.GetPositions(ctx)
	if err != nil {
		return err
	}
	for _, pos := range positions {
		if _, err := b.SubmitOrder(ctx, pos.Symbol, domain.Sell, pos.Quantity); err != nil {
			return fmt.Errorf("close all: %s: %w", pos.Symbol, err)
		}
	}
	return nil
}
