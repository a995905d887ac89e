package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"aiTraderBot/config"
	"aiTraderBot/internal/domain"
	"aiTraderBot/internal/metrics"
	"aiTraderBot/internal/portfolio"
	"aiTraderBot/internal/ports"
	"aiTraderBot/internal/risk"

	"github.com/jpillora/backoff"
)

// Cycle outcomes, used for the per-cycle summary log and metrics.
const (
	outcomeTraded   = "traded"
	outcomeHold     = "hold"
	outcomeRejected = "rejected"
	outcomePaused   = "paused"
	outcomeSkipped  = "skipped"
	outcomeError    = "error"
)

// TradingService orchestrates the trading cycle: mark-to-market, exit
// checks, circuit breakers, advisor consultation, sizing, validation,
// execution and persistence, in that order every cycle.
type TradingService struct {
	cfg        *config.Config
	logger     ports.Logger
	broker     ports.Broker
	marketData ports.MarketDataProvider
	advisor    ports.Advisor
	store      ports.LedgerStore
	journal    ports.TradeJournal
	policy     *risk.Engine

	ledger *portfolio.Ledger
}

// NewTradingService creates the application service instance.
func NewTradingService(
	cfg *config.Config,
	logger ports.Logger,
	broker ports.Broker,
	marketData ports.MarketDataProvider,
	advisor ports.Advisor,
	store ports.LedgerStore,
	journal ports.TradeJournal,
	policy *risk.Engine,
) (*TradingService, error) {
	if cfg == nil || logger == nil || broker == nil || marketData == nil || advisor == nil || store == nil || journal == nil || policy == nil {
		return nil, fmt.Errorf("missing required dependencies for TradingService")
	}
	return &TradingService{
		cfg:        cfg,
		logger:     logger,
		broker:     broker,
		marketData: marketData,
		advisor:    advisor,
		store:      store,
		journal:    journal,
		policy:     policy,
	}, nil
}

// Start begins the trading loop. It returns when the context is cancelled,
// a shutdown signal arrives, or persistence fails.
func (s *TradingService) Start(ctx context.Context) error {
	s.logger.Info(ctx, "Starting Trading Service...")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := s.loadLedger(ctx); err != nil {
		return err
	}

	// First cycle runs immediately; the ticker paces the rest.
	if err := s.cycle(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(s.cfg.TradingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logShutdownSummary(context.Background())
			s.logger.Info(context.Background(), "Trading Service stopped.")
			return nil
		case <-ticker.C:
			if err := s.cycle(ctx); err != nil {
				return err
			}
		}
	}
}

// loadLedger restores the persisted ledger, or funds a fresh one.
func (s *TradingService) loadLedger(ctx context.Context) error {
	state, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load ledger state: %w", err)
	}
	if state == nil {
		s.ledger, err = portfolio.NewLedger(s.cfg.InitialCapital)
		if err != nil {
			return err
		}
		s.logger.Info(ctx, "No persisted state found, starting fresh ledger", map[string]interface{}{
			"initialCapital": s.cfg.InitialCapital,
		})
		return nil
	}
	s.ledger, err = portfolio.FromState(state)
	if err != nil {
		return fmt.Errorf("failed to restore ledger state: %w", err)
	}
	s.logger.Info(ctx, "Restored persisted ledger", map[string]interface{}{
		"cash":      s.ledger.Cash(),
		"equity":    s.ledger.Equity(),
		"positions": len(s.ledger.Positions()),
	})
	return nil
}

// cycle runs one trading cycle and records its outcome. Only a persistence
// failure propagates as an error; any other failure degrades to a safe
// outcome and lets the next cycle retry.
func (s *TradingService) cycle(ctx context.Context) error {
	start := time.Now()
	outcome, err := s.runCycle(ctx)
	if err != nil {
		outcome = outcomeError
	}
	elapsed := time.Since(start)
	metrics.RecordCycle(outcome, elapsed)
	s.logger.Info(ctx, "Cycle complete", map[string]interface{}{
		"outcome":  outcome,
		"elapsed":  elapsed.String(),
		"equity":   s.ledger.Equity(),
		"cash":     s.ledger.Cash(),
		"openPos":  len(s.ledger.Positions()),
	})
	return err
}

func (s *TradingService) runCycle(ctx context.Context) (string, error) {
	op := "runCycle"
	now := time.Now().UTC()

	// 1. Fresh prices for the watchlist and everything held.
	prices, err := s.fetchPrices(ctx)
	if err != nil {
		s.logger.Warn(ctx, op+": Price fetch failed, skipping cycle", map[string]interface{}{"error": err.Error()})
		return outcomeSkipped, nil
	}
	stale := s.ledger.MarkToMarket(prices)
	if len(stale) > 0 {
		s.logger.Warn(ctx, op+": Some positions could not be marked", map[string]interface{}{"symbols": stale})
	}

	// 2. Stop-loss/take-profit exits run before anything else, breakers
	// included: protective exits reduce risk and must never be blocked.
	s.checkExits(ctx, stale)

	// 3. Circuit breakers, evaluated on freshly marked equity.
	equity := s.ledger.Equity()
	breakers := s.policy.EvaluateBreakers(ctx, now, equity, s.ledger.PeakEquity())
	metrics.SetBreaker("daily_loss", breakers.DailyLossPaused)
	metrics.SetBreaker("drawdown", breakers.DrawdownHalted)

	outcome := outcomeHold
	if breakers.Active() {
		s.logger.Warn(ctx, op+": Trading paused, no new entries this cycle", map[string]interface{}{"reason": breakers.Reason})
		outcome = outcomePaused
	} else {
		rec := s.consultAdvisor(ctx, equity)
		outcome = s.executeRecommendation(ctx, rec, prices, breakers)
	}

	// 4. Persist. A failed save is fatal: trading must not continue against
	// unconfirmed on-disk state.
	equity = s.ledger.Equity()
	s.ledger.SnapshotDailyValue(now, equity)
	metrics.SetEquity(equity)
	if err := s.store.Save(ctx, s.ledger.State()); err != nil {
		s.logger.Error(ctx, err, op+": Failed to persist ledger state, stopping")
		return outcomeError, fmt.Errorf("persist ledger: %w", err)
	}
	return outcome, nil
}

// fetchPrices retrieves prices for the watchlist plus all held symbols,
// retrying transient failures with jittered exponential backoff.
func (s *TradingService) fetchPrices(ctx context.Context) (map[string]float64, error) {
	symbols := append([]string(nil), s.cfg.Watchlist...)
	seen := make(map[string]bool, len(symbols))
	for _, sym := range symbols {
		seen[sym] = true
	}
	for _, pos := range s.ledger.Positions() {
		if !seen[pos.Symbol] {
			symbols = append(symbols, pos.Symbol)
		}
	}

	b := &backoff.Backoff{
		Min:    s.cfg.RetryMinWait,
		Max:    s.cfg.RetryMaxWait,
		Jitter: true,
	}
	var lastErr error
	for attempt := 0; attempt <= s.cfg.RetryLimit; attempt++ {
		prices, err := s.marketData.GetPrices(ctx, symbols)
		if err == nil {
			return prices, nil
		}
		lastErr = err
		wait := b.Duration()
		s.logger.Warn(ctx, "Price fetch attempt failed", map[string]interface{}{
			"attempt": attempt + 1, "retryIn": wait.String(), "error": err.Error(),
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, lastErr
}

// checkExits closes any position whose stop-loss or take-profit level was
// crossed by the fresh mark. Positions with stale marks are skipped: exiting
// on an old price is worse than waiting one cycle.
func (s *TradingService) checkExits(ctx context.Context, stale []string) {
	op := "checkExits"
	staleSet := make(map[string]bool, len(stale))
	for _, sym := range stale {
		staleSet[sym] = true
	}

	for _, pos := range s.ledger.Positions() {
		if staleSet[pos.Symbol] {
			continue
		}
		price := pos.CurrentPrice
		var reason domain.CloseReason
		switch {
		case pos.StopLossHit(price):
			reason = domain.CloseReasonStopLoss
		case pos.TakeProfitHit(price):
			reason = domain.CloseReasonTakeProfit
		default:
			continue
		}

		s.logger.Info(ctx, op+": Exit level crossed", map[string]interface{}{
			"symbol": pos.Symbol, "reason": reason, "price": price,
			"stopLoss": pos.StopLoss, "takeProfit": pos.TakeProfit,
		})
		fill, err := s.broker.SubmitOrder(ctx, pos.Symbol, domain.Sell, pos.Quantity)
		if err != nil {
			metrics.RecordOrder(pos.Symbol, string(domain.Sell), "failed")
			s.logger.Error(ctx, err, op+": Exit order failed, will retry next cycle", map[string]interface{}{"symbol": pos.Symbol})
			continue
		}
		metrics.RecordOrder(pos.Symbol, string(domain.Sell), "filled")
		s.settleClose(ctx, fill, reason)
	}
}

// settleClose applies a confirmed closing fill to the ledger and journal.
// The ledger is mutated with the filled quantity and price, never the
// requested ones.
func (s *TradingService) settleClose(ctx context.Context, fill *ports.Fill, reason domain.CloseReason) {
	rec, err := s.ledger.ClosePosition(fill.Symbol, fill.Quantity, fill.Price, reason)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to apply closing fill to ledger", map[string]interface{}{
			"symbol": fill.Symbol, "quantity": fill.Quantity, "price": fill.Price,
		})
		return
	}
	if rec.PnL != nil {
		metrics.AddRealizedPnL(*rec.PnL)
		s.logger.Info(ctx, "Position closed", map[string]interface{}{
			"symbol": fill.Symbol, "quantity": fill.Quantity, "price": fill.Price,
			"pnl": *rec.PnL, "reason": reason,
		})
	}
	if err := s.journal.Append(ctx, rec); err != nil {
		// The ledger already holds the record; a journal miss degrades
		// reporting, not correctness.
		s.logger.Warn(ctx, "Failed to journal closing trade", map[string]interface{}{"tradeID": rec.ID, "error": err.Error()})
	}
}

// consultAdvisor builds the snapshot and portfolio views and asks the
// decision source for a recommendation. Any failure, transport or schema,
// degrades to HOLD.
func (s *TradingService) consultAdvisor(ctx context.Context, equity float64) *domain.Recommendation {
	op := "consultAdvisor"
	snapshot, err := s.marketData.GetSnapshot(ctx, s.cfg.Watchlist)
	if err != nil {
		s.logger.Warn(ctx, op+": Snapshot unavailable, holding", map[string]interface{}{"error": err.Error()})
		return domain.HoldRecommendation("market snapshot unavailable")
	}

	summary := s.ledger.Summary(s.policy.DailyPnLPct(equity))
	rec, err := s.advisor.Recommend(ctx, snapshot, summary)
	if err != nil {
		s.logger.Warn(ctx, op+": Advisor unavailable, holding", map[string]interface{}{"error": err.Error()})
		return domain.HoldRecommendation("advisor unavailable")
	}
	s.logger.Info(ctx, op+": Recommendation received", map[string]interface{}{
		"action": rec.Action, "symbol": rec.Symbol, "confidence": rec.Confidence,
		"rationale": truncate(rec.Rationale, 120),
	})
	return rec
}

// executeRecommendation sizes, validates and executes one recommendation.
// It returns the cycle outcome; every rejection path is a logged HOLD, never
// a propagated error.
func (s *TradingService) executeRecommendation(ctx context.Context, rec *domain.Recommendation, prices map[string]float64, breakers risk.BreakerState) string {
	op := "executeRecommendation"
	if !rec.Action.IsActionable() {
		return outcomeHold
	}

	price, ok := prices[rec.Symbol]
	if !ok || price <= 0 {
		current, err := s.broker.GetCurrentPrice(ctx, rec.Symbol)
		if err != nil || current <= 0 {
			s.logger.Warn(ctx, op+": No price for recommended symbol, holding", map[string]interface{}{"symbol": rec.Symbol})
			return outcomeHold
		}
		price = current
	}

	qty, outcome := s.proposedQuantity(ctx, rec, price)
	if outcome != "" {
		return outcome
	}

	approved, err := s.policy.ValidateTrade(rec, qty, price, breakers, s.ledger)
	if err != nil {
		s.logger.Info(ctx, op+": Trade rejected by risk policy", map[string]interface{}{
			"action": rec.Action, "symbol": rec.Symbol, "quantity": qty, "reason": err.Error(),
		})
		return outcomeRejected
	}

	fill, err := s.broker.SubmitOrder(ctx, rec.Symbol, rec.Action, approved)
	if err != nil {
		metrics.RecordOrder(rec.Symbol, string(rec.Action), "failed")
		s.logger.Error(ctx, err, op+": Order failed", map[string]interface{}{
			"symbol": rec.Symbol, "side": rec.Action, "quantity": approved,
		})
		return outcomeRejected
	}
	metrics.RecordOrder(rec.Symbol, string(rec.Action), "filled")

	switch rec.Action {
	case domain.Buy:
		s.settleOpen(ctx, fill, rec)
	case domain.Sell:
		s.settleClose(ctx, fill, domain.CloseReasonAdvisor)
	}
	return outcomeTraded
}

// proposedQuantity computes the pre-validation quantity for a recommendation.
// A non-empty outcome short-circuits execution.
func (s *TradingService) proposedQuantity(ctx context.Context, rec *domain.Recommendation, price float64) (float64, string) {
	op := "proposedQuantity"
	switch rec.Action {
	case domain.Buy:
		qty, err := risk.SizePosition(risk.SizeRequest{
			Equity:             s.ledger.Equity(),
			PerTradeRiskPct:    s.cfg.PerTradeRiskPct,
			MaxPositionSizePct: s.cfg.MaxPositionSizePct,
			Confidence:         rec.ClampedConfidence(),
			StopLossPct:        rec.StopLossPct,
			Price:              price,
		})
		if err != nil {
			s.logger.Info(ctx, op+": Unsizeable recommendation, holding", map[string]interface{}{
				"symbol": rec.Symbol, "reason": err.Error(),
			})
			return 0, outcomeRejected
		}
		if qty == 0 {
			s.logger.Info(ctx, op+": Sized to zero, holding", map[string]interface{}{"symbol": rec.Symbol})
			return 0, outcomeHold
		}
		return qty, ""
	case domain.Sell:
		pos, ok := s.ledger.Position(rec.Symbol)
		if !ok {
			s.logger.Info(ctx, op+": SELL for unheld symbol, holding", map[string]interface{}{"symbol": rec.Symbol})
			return 0, outcomeRejected
		}
		return pos.Quantity, ""
	default:
		return 0, outcomeHold
	}
}

// settleOpen applies a confirmed opening fill to the ledger and journal.
// Stop and target levels come from the recommendation's fractional distances
// applied to the actual fill price.
func (s *TradingService) settleOpen(ctx context.Context, fill *ports.Fill, rec *domain.Recommendation) {
	stopLoss := fill.Price * (1 - rec.StopLossPct)
	takeProfit := 0.0
	if rec.TakeProfitPct > 0 {
		takeProfit = fill.Price * (1 + rec.TakeProfitPct)
	}

	trade, err := s.ledger.OpenPosition(fill.Symbol, fill.Quantity, fill.Price, stopLoss, takeProfit, rec.Rationale)
	if err != nil {
		// The broker holds the asset but the ledger refused it. This should
		// be unreachable after validation; surface it loudly.
		s.logger.Error(ctx, err, "LEDGER DESYNC: fill could not be applied", map[string]interface{}{
			"symbol": fill.Symbol, "quantity": fill.Quantity, "price": fill.Price,
		})
		return
	}
	s.logger.Info(ctx, "Position opened", map[string]interface{}{
		"symbol": fill.Symbol, "quantity": fill.Quantity, "price": fill.Price,
		"stopLoss": stopLoss, "takeProfit": takeProfit,
	})
	if err := s.journal.Append(ctx, trade); err != nil {
		s.logger.Warn(ctx, "Failed to journal opening trade", map[string]interface{}{"tradeID": trade.ID, "error": err.Error()})
	}
}

// logShutdownSummary reports final performance on the way out.
func (s *TradingService) logShutdownSummary(ctx context.Context) {
	perf := s.ledger.Performance()
	equity := s.ledger.Equity()
	fields := map[string]interface{}{
		"equity":       equity,
		"cash":         s.ledger.Cash(),
		"peakEquity":   s.ledger.PeakEquity(),
		"totalTrades":  perf.TotalTrades,
		"winRate":      perf.WinRate,
		"totalPnL":     perf.TotalPnL,
		"profitFactor": perf.ProfitFactor,
	}
	if total, err := s.journal.TotalRealizedPnL(ctx); err == nil {
		fields["journalPnL"] = total
	}
	if s.policy.DrawdownHalted() {
		fields["drawdownHalted"] = true
	}
	s.logger.Info(ctx, "Final performance summary", fields)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
