package paper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aiTraderBot/internal/domain"
	"aiTraderBot/internal/ports"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestBroker(t *testing.T) *Broker {
	t.Helper()
	b, err := New(Config{
		InitialCash: 10000,
		SeedPrices:  map[string]float64{"BTCUSDT": 100},
		Logger:      &mockLogger{},
		RandSeed:    42,
	})
	require.NoError(t, err)
	return b
}

func TestNewValidation(t *testing.T) {
	_, err := New(Config{InitialCash: 10000})
	require.Error(t, err, "logger is required")

	_, err = New(Config{InitialCash: 0, Logger: &mockLogger{}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrConfigurationError)
}

func TestPricesDriftWithinBounds(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()

	prev, err := b.GetCurrentPrice(ctx, "BTCUSDT")
	require.NoError(t, err)
	for i := 0; i < 50; i++ {
		price, err := b.GetCurrentPrice(ctx, "BTCUSDT")
		require.NoError(t, err)
		assert.Greater(t, price, 0.0)
		assert.InDelta(t, prev, price, prev*0.011, "one step moves at most about 1%%")
		prev = price
	}
}

func TestBuyThenSellRoundTrip(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()

	fill, err := b.SubmitOrder(ctx, "BTCUSDT", domain.Buy, 10)
	require.NoError(t, err)
	assert.Equal(t, 10.0, fill.Quantity)
	assert.Greater(t, fill.Price, 0.0)
	assert.NotEmpty(t, fill.OrderID)

	info, err := b.GetAccountInfo(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 10000-10*fill.Price, info.Cash, 1e-9)

	positions, err := b.GetPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, 10.0, positions[0].Quantity)

	sell, err := b.SubmitOrder(ctx, "BTCUSDT", domain.Sell, 10)
	require.NoError(t, err)
	assert.Equal(t, 10.0, sell.Quantity)

	positions, err = b.GetPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestBuyMergesAtWeightedAverage(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()

	first, err := b.SubmitOrder(ctx, "BTCUSDT", domain.Buy, 10)
	require.NoError(t, err)
	second, err := b.SubmitOrder(ctx, "BTCUSDT", domain.Buy, 10)
	require.NoError(t, err)

	positions, err := b.GetPositions(ctx)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, 20.0, positions[0].Quantity)
	expected := (first.Price*10 + second.Price*10) / 20
	assert.InDelta(t, expected, positions[0].EntryPrice, 1e-9)
}

func TestOrderRejections(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()

	t.Run("buy beyond cash", func(t *testing.T) {
		_, err := b.SubmitOrder(ctx, "BTCUSDT", domain.Buy, 1e6)
		require.Error(t, err)
		assert.ErrorIs(t, err, ports.ErrOrderRejected)
	})

	t.Run("sell without holding", func(t *testing.T) {
		_, err := b.SubmitOrder(ctx, "ETHUSDT", domain.Sell, 1)
		require.Error(t, err)
		assert.ErrorIs(t, err, ports.ErrOrderRejected)
	})

	t.Run("invalid side", func(t *testing.T) {
		_, err := b.SubmitOrder(ctx, "BTCUSDT", domain.Hold, 1)
		require.Error(t, err)
		assert.ErrorIs(t, err, ports.ErrInvalidRequest)
	})

	t.Run("non-positive quantity", func(t *testing.T) {
		_, err := b.SubmitOrder(ctx, "BTCUSDT", domain.Buy, 0)
		require.Error(t, err)
		assert.ErrorIs(t, err, ports.ErrInvalidRequest)
	})
}

func TestCloseAll(t *testing.T) {
	b := newTestBroker(t)
	ctx := context.Background()

	_, err := b.SubmitOrder(ctx, "BTCUSDT", domain.Buy, 5)
	require.NoError(t, err)
	_, err = b.SubmitOrder(ctx, "ETHUSDT", domain.Buy, 2)
	require.NoError(t, err)

	require.NoError(t, b.CloseAll(ctx))

	positions, err := b.GetPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, positions)

	info, err := b.GetAccountInfo(ctx)
	require.NoError(t, err)
	assert.InDelta(t, info.Cash, info.Equity, 1e-9, "all equity is back in cash")
}

func TestDeterministicWithSeed(t *testing.T) {
	mk := func() float64 {
		b, err := New(Config{
			InitialCash: 10000,
			SeedPrices:  map[string]float64{"BTCUSDT": 100},
			Logger:      &mockLogger{},
			RandSeed:    7,
		})
		require.NoError(t, err)
		price, err := b.GetCurrentPrice(context.Background(), "BTCUSDT")
		require.NoError(t, err)
		return price
	}
	assert.Equal(t, mk(), mk())
}
