package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aiTraderBot/config"
	"aiTraderBot/internal/domain"
	"aiTraderBot/internal/portfolio"
	"aiTraderBot/internal/ports"
	"aiTraderBot/internal/risk"

	"github.com/oklog/ulid/v2"
)

// Mock implementations
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type submittedOrder struct {
	symbol   string
	side     domain.Action
	quantity float64
}

type mockBroker struct {
	orders    []submittedOrder
	fillPrice float64
	fillRatio float64 // 1.0 fills fully, 0.5 fills half
	submitErr error
}

func (m *mockBroker) GetAccountInfo(ctx context.Context) (*ports.AccountInfo, error) {
	return &ports.AccountInfo{}, nil
}

func (m *mockBroker) GetCurrentPrice(ctx context.Context, symbol string) (float64, error) {
	return m.fillPrice, nil
}

func (m *mockBroker) SubmitOrder(ctx context.Context, symbol string, side domain.Action, quantity float64) (*ports.Fill, error) {
	m.orders = append(m.orders, submittedOrder{symbol: symbol, side: side, quantity: quantity})
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	ratio := m.fillRatio
	if ratio == 0 {
		ratio = 1
	}
	return &ports.Fill{
		OrderID:   ulid.Make().String(),
		Symbol:    symbol,
		Side:      side,
		Quantity:  quantity * ratio,
		Price:     m.fillPrice,
		Timestamp: time.Now().UTC(),
	}, nil
}

func (m *mockBroker) GetPositions(ctx context.Context) ([]ports.BrokerPosition, error) {
	return nil, nil
}

func (m *mockBroker) CloseAll(ctx context.Context) error { return nil }

type mockMarketData struct {
	prices      map[string]float64
	pricesErr   error
	snapshot    *domain.MarketSnapshot
	snapshotErr error
}

func (m *mockMarketData) GetPrices(ctx context.Context, symbols []string) (map[string]float64, error) {
	if m.pricesErr != nil {
		return nil, m.pricesErr
	}
	return m.prices, nil
}

func (m *mockMarketData) GetSnapshot(ctx context.Context, symbols []string) (*domain.MarketSnapshot, error) {
	if m.snapshotErr != nil {
		return nil, m.snapshotErr
	}
	if m.snapshot != nil {
		return m.snapshot, nil
	}
	return &domain.MarketSnapshot{Timestamp: time.Now().UTC(), Regime: "mixed"}, nil
}

type mockAdvisor struct {
	rec *domain.Recommendation
	err error
}

func (m *mockAdvisor) Recommend(ctx context.Context, snapshot *domain.MarketSnapshot, pf *domain.PortfolioSummary) (*domain.Recommendation, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.rec, nil
}

type mockStore struct {
	saved   []*domain.LedgerState
	saveErr error
}

func (m *mockStore) Load(ctx context.Context) (*domain.LedgerState, error) { return nil, nil }

func (m *mockStore) Save(ctx context.Context, st *domain.LedgerState) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved = append(m.saved, st)
	return nil
}

type mockJournal struct {
	appended []*domain.TradeRecord
}

func (m *mockJournal) Append(ctx context.Context, rec *domain.TradeRecord) error {
	m.appended = append(m.appended, rec)
	return nil
}

func (m *mockJournal) RecentBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.TradeRecord, error) {
	return nil, nil
}

func (m *mockJournal) CountToday(ctx context.Context) (int, error)           { return 0, nil }
func (m *mockJournal) TotalRealizedPnL(ctx context.Context) (float64, error) { return 0, nil }
func (m *mockJournal) Close() error                                          { return nil }

type serviceFixture struct {
	service *TradingService
	broker  *mockBroker
	market  *mockMarketData
	advisor *mockAdvisor
	store   *mockStore
	journal *mockJournal
	policy  *risk.Engine
}

func testServiceConfig() *config.Config {
	return &config.Config{
		InitialCapital:        10000,
		TradingInterval:       time.Minute,
		Watchlist:             []string{"BTCUSDT"},
		MaxPositionSizePct:    0.20,
		PerTradeRiskPct:       0.02,
		DailyLossLimitPct:     0.03,
		MaxDrawdownPct:        0.10,
		ConcentrationLimitPct: 0.25,
		MinConfidence:         0.60,
		RetryMinWait:          time.Millisecond,
		RetryMaxWait:          2 * time.Millisecond,
		RetryLimit:            1,
	}
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	cfg := testServiceConfig()
	logger := &mockLogger{}

	policy, err := risk.NewEngine(risk.Config{
		MaxPositionSizePct:    cfg.MaxPositionSizePct,
		PerTradeRiskPct:       cfg.PerTradeRiskPct,
		DailyLossLimitPct:     cfg.DailyLossLimitPct,
		MaxDrawdownPct:        cfg.MaxDrawdownPct,
		ConcentrationLimitPct: cfg.ConcentrationLimitPct,
		MinConfidence:         cfg.MinConfidence,
	}, logger)
	require.NoError(t, err)

	f := &serviceFixture{
		broker:  &mockBroker{fillPrice: 100},
		market:  &mockMarketData{prices: map[string]float64{"BTCUSDT": 100}},
		advisor: &mockAdvisor{rec: domain.HoldRecommendation("test default")},
		store:   &mockStore{},
		journal: &mockJournal{},
		policy:  policy,
	}
	f.service, err = NewTradingService(cfg, logger, f.broker, f.market, f.advisor, f.store, f.journal, policy)
	require.NoError(t, err)

	f.service.ledger, err = portfolio.NewLedger(cfg.InitialCapital)
	require.NoError(t, err)
	return f
}

func buyRecommendation(confidence float64) *domain.Recommendation {
	return &domain.Recommendation{
		Action:      domain.Buy,
		Symbol:      "BTCUSDT",
		Confidence:  confidence,
		StopLossPct: 0.05,
	}
}

func TestRunCycleExecutesApprovedBuy(t *testing.T) {
	f := newServiceFixture(t)
	f.advisor.rec = buyRecommendation(0.8)

	outcome, err := f.service.runCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, outcomeTraded, outcome)

	require.Len(t, f.broker.orders, 1)
	order := f.broker.orders[0]
	assert.Equal(t, "BTCUSDT", order.symbol)
	assert.Equal(t, domain.Buy, order.side)
	// min(riskQty=floor(10000*0.02/(100*0.05))=40, maxQty=20, confQty=32)
	assert.Equal(t, 20.0, order.quantity)

	pos, ok := f.service.ledger.Position("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 20.0, pos.Quantity)
	assert.InDelta(t, 95.0, pos.StopLoss, 1e-9)

	require.Len(t, f.journal.appended, 1)
	assert.False(t, f.journal.appended[0].IsClose())
	require.NotEmpty(t, f.store.saved, "every cycle persists the ledger")
}

func TestRunCyclePartialFillAppliesFilledQuantity(t *testing.T) {
	f := newServiceFixture(t)
	f.advisor.rec = buyRecommendation(0.8)
	f.broker.fillRatio = 0.5

	outcome, err := f.service.runCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, outcomeTraded, outcome)

	pos, ok := f.service.ledger.Position("BTCUSDT")
	require.True(t, ok)
	assert.Equal(t, 10.0, pos.Quantity, "the ledger must reflect the filled, not the requested, quantity")
	assert.Equal(t, 10000.0-10*100, f.service.ledger.Cash())
}

func TestRunCycleLowConfidenceIsRejected(t *testing.T) {
	f := newServiceFixture(t)
	f.advisor.rec = buyRecommendation(0.4)

	outcome, err := f.service.runCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, outcomeRejected, outcome)
	assert.Empty(t, f.broker.orders, "no order may reach the broker after a policy rejection")
}

func TestRunCycleAdvisorFailureHolds(t *testing.T) {
	f := newServiceFixture(t)
	f.advisor.err = fmt.Errorf("%w: connection refused", ports.ErrAdvisorUnavailable)

	outcome, err := f.service.runCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, outcomeHold, outcome)
	assert.Empty(t, f.broker.orders)
	require.NotEmpty(t, f.store.saved, "a degraded cycle still persists state")
}

func TestRunCyclePausedBreakerBlocksEntries(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	// Open a position, then arm the daily-loss tracker at full equity and
	// crater the mark so the cycle evaluates a 5% intraday loss.
	_, err := f.service.ledger.OpenPosition("BTCUSDT", 10, 100, 0, 0, "")
	require.NoError(t, err)
	f.policy.EvaluateBreakers(ctx, time.Now().UTC(), f.service.ledger.Equity(), f.service.ledger.PeakEquity())

	f.market.prices = map[string]float64{"BTCUSDT": 50}
	f.advisor.rec = buyRecommendation(0.9)

	outcome, err := f.service.runCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, outcomePaused, outcome)
	assert.Empty(t, f.broker.orders, "no entry may be attempted while paused")
	require.NotEmpty(t, f.store.saved, "a paused cycle still persists state")
}

func TestRunCycleStopLossExitRunsWhileHalted(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	// Sticky drawdown halt: 20% below peak.
	f.policy.EvaluateBreakers(ctx, time.Now().UTC(), 8000, 10000)
	require.True(t, f.policy.DrawdownHalted())

	_, err := f.service.ledger.OpenPosition("BTCUSDT", 10, 100, 95, 0, "")
	require.NoError(t, err)

	f.market.prices = map[string]float64{"BTCUSDT": 90}
	f.broker.fillPrice = 90
	f.advisor.rec = buyRecommendation(0.9)

	outcome, err := f.service.runCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, outcomePaused, outcome)

	// The protective exit executed despite the halt; no entry followed it.
	require.Len(t, f.broker.orders, 1)
	assert.Equal(t, domain.Sell, f.broker.orders[0].side)
	_, held := f.service.ledger.Position("BTCUSDT")
	assert.False(t, held)

	require.Len(t, f.journal.appended, 1)
	assert.Equal(t, domain.CloseReasonStopLoss, f.journal.appended[0].Reason)
}

func TestRunCycleTakeProfitExit(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.service.ledger.OpenPosition("BTCUSDT", 5, 100, 90, 110, "")
	require.NoError(t, err)

	f.market.prices = map[string]float64{"BTCUSDT": 115}
	f.broker.fillPrice = 115

	outcome, err := f.service.runCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, outcomeHold, outcome)

	require.Len(t, f.journal.appended, 1)
	rec := f.journal.appended[0]
	assert.Equal(t, domain.CloseReasonTakeProfit, rec.Reason)
	require.NotNil(t, rec.PnL)
	assert.InDelta(t, 75.0, *rec.PnL, 1e-9)
}

func TestRunCycleStalePositionSkipsExitCheck(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.service.ledger.OpenPosition("ETHUSDT", 5, 100, 95, 0, "")
	require.NoError(t, err)

	// Price feed knows nothing about ETHUSDT this cycle.
	f.market.prices = map[string]float64{"BTCUSDT": 100}

	_, err = f.service.runCycle(ctx)
	require.NoError(t, err)
	assert.Empty(t, f.broker.orders, "a stale mark must never trigger an exit")
	_, held := f.service.ledger.Position("ETHUSDT")
	assert.True(t, held)
}

func TestRunCyclePriceFetchFailureSkips(t *testing.T) {
	f := newServiceFixture(t)
	f.market.pricesErr = fmt.Errorf("%w: 503", ports.ErrBrokerUnavailable)
	f.advisor.rec = buyRecommendation(0.9)

	outcome, err := f.service.runCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, outcomeSkipped, outcome)
	assert.Empty(t, f.broker.orders)
	assert.Empty(t, f.store.saved, "a skipped cycle leaves the persisted state alone")
}

func TestRunCyclePersistFailureIsFatal(t *testing.T) {
	f := newServiceFixture(t)
	f.store.saveErr = fmt.Errorf("%w: disk full", ports.ErrPersistenceFailed)

	_, err := f.service.runCycle(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ports.ErrPersistenceFailed)
}

func TestRunCycleOrderFailureDoesNotMutateLedger(t *testing.T) {
	f := newServiceFixture(t)
	f.advisor.rec = buyRecommendation(0.8)
	f.broker.submitErr = fmt.Errorf("%w: insufficient margin", ports.ErrOrderRejected)

	outcome, err := f.service.runCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, outcomeRejected, outcome)
	assert.Equal(t, 10000.0, f.service.ledger.Cash())
	assert.Empty(t, f.service.ledger.Positions())
	assert.Empty(t, f.journal.appended)
}

func TestRunCycleSellClosesThroughAdvisor(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.service.ledger.OpenPosition("BTCUSDT", 8, 100, 0, 0, "")
	require.NoError(t, err)

	f.market.prices = map[string]float64{"BTCUSDT": 105}
	f.broker.fillPrice = 105
	f.advisor.rec = &domain.Recommendation{Action: domain.Sell, Symbol: "BTCUSDT", Confidence: 0.9}

	outcome, err := f.service.runCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, outcomeTraded, outcome)

	_, held := f.service.ledger.Position("BTCUSDT")
	assert.False(t, held)
	require.Len(t, f.journal.appended, 1)
	assert.Equal(t, domain.CloseReasonAdvisor, f.journal.appended[0].Reason)
}

func TestLoadLedgerStartsFreshWithoutState(t *testing.T) {
	f := newServiceFixture(t)
	f.service.ledger = nil

	require.NoError(t, f.service.loadLedger(context.Background()))
	require.NotNil(t, f.service.ledger)
	assert.Equal(t, 10000.0, f.service.ledger.Cash())
}
