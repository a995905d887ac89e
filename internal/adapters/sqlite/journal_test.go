package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aiTraderBot/internal/domain"

	"github.com/oklog/ulid/v2"
)

type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := NewJournal(Config{
		DBPath: filepath.Join(t.TempDir(), "journal.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j
}

func openRecord(symbol string, ts time.Time) *domain.TradeRecord {
	return &domain.TradeRecord{
		ID:        ulid.Make().String(),
		Timestamp: ts,
		Action:    domain.Buy,
		Symbol:    symbol,
		Quantity:  2,
		Price:     100,
		Rationale: "entry",
	}
}

func closeRecord(symbol string, ts time.Time, pnl float64) *domain.TradeRecord {
	pct := pnl / 2
	return &domain.TradeRecord{
		ID:        ulid.Make().String(),
		Timestamp: ts,
		Action:    domain.Sell,
		Symbol:    symbol,
		Quantity:  2,
		Price:     110,
		PnL:       &pnl,
		PnLPct:    &pct,
		Reason:    domain.CloseReasonTakeProfit,
	}
}

func TestAppendAndRecentBySymbol(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	require.NoError(t, j.Append(ctx, openRecord("BTCUSDT", base)))
	require.NoError(t, j.Append(ctx, closeRecord("BTCUSDT", base.Add(time.Hour), 20)))
	require.NoError(t, j.Append(ctx, openRecord("ETHUSDT", base.Add(2*time.Hour))))

	recent, err := j.RecentBySymbol(ctx, "BTCUSDT", 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, domain.Sell, recent[0].Action, "newest first")
	assert.Equal(t, domain.Buy, recent[1].Action)

	// The open round-trips with nil P&L, the close with values.
	assert.Nil(t, recent[1].PnL)
	assert.Empty(t, recent[1].Reason)
	require.NotNil(t, recent[0].PnL)
	assert.InDelta(t, 20.0, *recent[0].PnL, 1e-9)
	assert.Equal(t, domain.CloseReasonTakeProfit, recent[0].Reason)
}

func TestRecentBySymbolHonorsLimit(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, j.Append(ctx, openRecord("BTCUSDT", base.Add(time.Duration(i)*time.Minute))))
	}
	recent, err := j.RecentBySymbol(ctx, "BTCUSDT", 3)
	require.NoError(t, err)
	assert.Len(t, recent, 3)
}

func TestAllReturnsOldestFirst(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

	require.NoError(t, j.Append(ctx, closeRecord("BTCUSDT", base.Add(time.Hour), 5)))
	require.NoError(t, j.Append(ctx, openRecord("BTCUSDT", base)))

	all, err := j.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, domain.Buy, all[0].Action)
	assert.Equal(t, domain.Sell, all[1].Action)
}

func TestDuplicateIDIsRejected(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	rec := openRecord("BTCUSDT", time.Now().UTC())
	require.NoError(t, j.Append(ctx, rec))
	require.Error(t, j.Append(ctx, rec), "records are immutable, re-insertion must fail")
}

func TestTotalRealizedPnL(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()
	base := time.Now().UTC()

	total, err := j.TotalRealizedPnL(ctx)
	require.NoError(t, err)
	assert.Zero(t, total)

	require.NoError(t, j.Append(ctx, openRecord("BTCUSDT", base)))
	require.NoError(t, j.Append(ctx, closeRecord("BTCUSDT", base.Add(time.Minute), 20)))
	require.NoError(t, j.Append(ctx, closeRecord("BTCUSDT", base.Add(2*time.Minute), -5)))

	total, err = j.TotalRealizedPnL(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 15.0, total, 1e-9, "opens must not contribute to realized P&L")
}

func TestCountToday(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	require.NoError(t, j.Append(ctx, openRecord("BTCUSDT", time.Now())))
	require.NoError(t, j.Append(ctx, openRecord("ETHUSDT", time.Now().AddDate(0, 0, -3))))

	count, err := j.CountToday(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
