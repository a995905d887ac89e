package risk

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"aiTraderBot/internal/domain"
	"aiTraderBot/internal/ports"
)

// Config holds risk policy limits. Percentage fields are fractions
// (0.2 = 20%).
type Config struct {
	MaxPositionSizePct    float64
	PerTradeRiskPct       float64
	DailyLossLimitPct     float64
	MaxDrawdownPct        float64
	ConcentrationLimitPct float64
	MinConfidence         float64
}

func (c Config) validate() error {
	var errs []string
	if c.MaxPositionSizePct <= 0 || c.MaxPositionSizePct > 1 {
		errs = append(errs, "MaxPositionSizePct must be in (0,1]")
	}
	if c.PerTradeRiskPct <= 0 || c.PerTradeRiskPct > 1 {
		errs = append(errs, "PerTradeRiskPct must be in (0,1]")
	}
	if c.DailyLossLimitPct <= 0 || c.DailyLossLimitPct > 1 {
		errs = append(errs, "DailyLossLimitPct must be in (0,1]")
	}
	if c.MaxDrawdownPct <= 0 || c.MaxDrawdownPct > 1 {
		errs = append(errs, "MaxDrawdownPct must be in (0,1]")
	}
	if c.ConcentrationLimitPct < c.MaxPositionSizePct {
		errs = append(errs, "ConcentrationLimitPct must be at least MaxPositionSizePct")
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		errs = append(errs, "MinConfidence must be in [0,1]")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ports.ErrConfigurationError, strings.Join(errs, "; "))
	}
	return nil
}

// BreakerState is the circuit-breaker evaluation for one cycle, derived
// fresh from ledger state rather than carried as ambient globals.
type BreakerState struct {
	DailyLossPaused bool
	DrawdownHalted  bool
	Reason          string
}

// Active reports whether either breaker currently forbids new entries.
func (b BreakerState) Active() bool {
	return b.DailyLossPaused || b.DrawdownHalted
}

// LedgerView is the read-only slice of ledger state the policy engine needs.
// The engine never mutates the ledger; it only reads a consistent snapshot.
type LedgerView interface {
	Equity() float64
	Cash() float64
	Position(symbol string) (domain.Position, bool)
}

// Engine evaluates proposed trades and ledger state against configured
// limits and owns the circuit-breaker state machine. The only sticky state
// is the drawdown halt: once tripped it survives any equity recovery until
// an operator acknowledges it explicitly.
type Engine struct {
	cfg    Config
	logger ports.Logger

	day            string // Calendar day the daily-loss breaker is tracking
	dayStartEquity float64
	drawdownHalted bool
	haltReason     string
}

// NewEngine creates a risk policy engine.
func NewEngine(cfg Config, logger ports.Logger) (*Engine, error) {
	if logger == nil {
		return nil, fmt.Errorf("%w: logger is required", ports.ErrConfigurationError)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, logger: logger}, nil
}

// EvaluateBreakers derives the breaker state for this cycle from freshly
// marked-to-market equity. The daily-loss breaker re-arms automatically on
// the first cycle of a new calendar day; the drawdown breaker does not.
func (e *Engine) EvaluateBreakers(ctx context.Context, now time.Time, equity, peakEquity float64) BreakerState {
	day := now.UTC().Format("2006-01-02")
	if e.day != day {
		e.day = day
		e.dayStartEquity = equity
	}

	state := BreakerState{DrawdownHalted: e.drawdownHalted, Reason: e.haltReason}

	if !e.drawdownHalted && peakEquity > 0 {
		drawdown := (peakEquity - equity) / peakEquity
		if drawdown >= e.cfg.MaxDrawdownPct {
			e.drawdownHalted = true
			e.haltReason = fmt.Sprintf("max drawdown hit: %.2f%% (limit %.2f%%)", drawdown*100, e.cfg.MaxDrawdownPct*100)
			state.DrawdownHalted = true
			state.Reason = e.haltReason
			e.logger.Warn(ctx, "CIRCUIT BREAKER: drawdown halt", map[string]interface{}{
				"drawdownPct": drawdown * 100,
				"limitPct":    e.cfg.MaxDrawdownPct * 100,
				"peakEquity":  peakEquity,
				"equity":      equity,
			})
		}
	}

	if e.dayStartEquity > 0 {
		dailyLoss := (e.dayStartEquity - equity) / e.dayStartEquity
		if dailyLoss >= e.cfg.DailyLossLimitPct {
			state.DailyLossPaused = true
			if state.Reason == "" {
				state.Reason = fmt.Sprintf("daily loss limit hit: %.2f%% (limit %.2f%%)", dailyLoss*100, e.cfg.DailyLossLimitPct*100)
			}
			e.logger.Warn(ctx, "CIRCUIT BREAKER: daily loss pause", map[string]interface{}{
				"dailyLossPct":   dailyLoss * 100,
				"limitPct":       e.cfg.DailyLossLimitPct * 100,
				"dayStartEquity": e.dayStartEquity,
				"equity":         equity,
			})
		}
	}

	return state
}

// DailyPnLPct returns today's equity change as a percentage of the day's
// opening equity. Zero before the first evaluation of the day.
func (e *Engine) DailyPnLPct(equity float64) float64 {
	if e.dayStartEquity <= 0 {
		return 0
	}
	return (equity - e.dayStartEquity) / e.dayStartEquity * 100
}

// AcknowledgeDrawdownHalt clears the sticky drawdown halt. Exposed for an
// operator interface; never called by the trading cycle itself.
func (e *Engine) AcknowledgeDrawdownHalt() {
	e.drawdownHalted = false
	e.haltReason = ""
}

// DrawdownHalted reports whether the sticky drawdown halt is in effect.
func (e *Engine) DrawdownHalted() bool {
	return e.drawdownHalted
}

// ValidateTrade is the hard gate between sizing and execution. It returns
// the approved quantity, which may be clipped below the requested one; no
// caller may execute a trade for any quantity other than the approved one.
// The breakers argument must come from EvaluateBreakers on this same cycle,
// and price is the price the order would execute at.
func (e *Engine) ValidateTrade(rec *domain.Recommendation, qty, price float64, breakers BreakerState, ledger LedgerView) (float64, error) {
	if breakers.Active() {
		return 0, fmt.Errorf("%w: %s", ports.ErrTradingPaused, breakers.Reason)
	}
	if rec.ClampedConfidence() < e.cfg.MinConfidence {
		return 0, fmt.Errorf("%w: %.2f < %.2f", ports.ErrLowConfidence, rec.ClampedConfidence(), e.cfg.MinConfidence)
	}
	if qty <= 0 {
		return 0, fmt.Errorf("%w: non-positive quantity", ports.ErrInvalidRequest)
	}

	if price <= 0 {
		return 0, fmt.Errorf("%w: no price for %s", ports.ErrInvalidRequest, rec.Symbol)
	}

	switch rec.Action {
	case domain.Buy:
		return e.validateBuy(rec, qty, price, ledger)
	case domain.Sell:
		return e.validateSell(rec, qty, ledger)
	default:
		return 0, fmt.Errorf("%w: action %s is not executable", ports.ErrInvalidRequest, rec.Action)
	}
}

func (e *Engine) validateBuy(rec *domain.Recommendation, qty, price float64, ledger LedgerView) (float64, error) {
	if rec.StopLossPct <= 0 {
		return 0, fmt.Errorf("%w: BUY %s", ports.ErrMissingStopLoss, rec.Symbol)
	}

	equity := ledger.Equity()
	if equity <= 0 {
		return 0, fmt.Errorf("%w: no equity", ports.ErrInsufficientCash)
	}

	// Clip rather than reject when the trade alone would breach the
	// per-position cap; reject only when nothing admissible remains.
	maxQty := math.Floor(equity * e.cfg.MaxPositionSizePct / price)
	approved := math.Min(qty, maxQty)
	if approved <= 0 {
		return 0, fmt.Errorf("%w: %.1f%% cap leaves no admissible quantity at price %.2f",
			ports.ErrPositionTooLarge, e.cfg.MaxPositionSizePct*100, price)
	}

	var existingValue float64
	if pos, ok := ledger.Position(rec.Symbol); ok {
		existingValue = math.Abs(pos.MarketValue())
	}
	if (existingValue+approved*price)/equity > e.cfg.ConcentrationLimitPct {
		return 0, fmt.Errorf("%w: %s exposure would exceed %.1f%% of equity",
			ports.ErrConcentrationLimit, rec.Symbol, e.cfg.ConcentrationLimitPct*100)
	}

	if cost := approved * price; cost > ledger.Cash() {
		return 0, fmt.Errorf("%w: need %.2f, have %.2f", ports.ErrInsufficientCash, cost, ledger.Cash())
	}
	return approved, nil
}

func (e *Engine) validateSell(rec *domain.Recommendation, qty float64, ledger LedgerView) (float64, error) {
	pos, ok := ledger.Position(rec.Symbol)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ports.ErrNoSuchPosition, rec.Symbol)
	}
	// A SELL closes at most the held quantity.
	return math.Min(qty, pos.Quantity), nil
}
