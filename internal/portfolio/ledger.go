package portfolio

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"aiTraderBot/internal/domain"
	"aiTraderBot/internal/ports"

	"github.com/oklog/ulid/v2"
)

// Ledger is the single source of truth for financial state: cash, open
// positions, trade history and the daily equity curve. It is owned by the
// trading engine; concurrent readers (status queries, metrics) must go
// through the copy-on-read accessors, never the internal maps.
//
// Every mutating operation validates all preconditions before touching any
// field, so a failed call leaves the ledger exactly as it was.
type Ledger struct {
	mu             sync.RWMutex
	cash           float64
	initialCapital float64
	positions      map[string]*domain.Position
	history        []domain.TradeRecord
	dailyValues    []domain.DailyValueSample
	peakEquity     float64
	createdAt      time.Time
	lastUpdated    time.Time
}

// NewLedger creates an empty ledger funded with the given capital.
func NewLedger(initialCapital float64) (*Ledger, error) {
	if initialCapital <= 0 {
		return nil, fmt.Errorf("initial capital must be positive, got %f", initialCapital)
	}
	now := time.Now().UTC()
	return &Ledger{
		cash:           initialCapital,
		initialCapital: initialCapital,
		positions:      make(map[string]*domain.Position),
		peakEquity:     initialCapital,
		createdAt:      now,
		lastUpdated:    now,
	}, nil
}

// FromState reconstructs a ledger from its persisted form. A missing
// peak-equity watermark is rebuilt from the daily value history.
func FromState(st *domain.LedgerState) (*Ledger, error) {
	if st == nil {
		return nil, fmt.Errorf("nil ledger state")
	}
	if st.Cash < 0 {
		return nil, fmt.Errorf("persisted cash is negative: %f", st.Cash)
	}
	l := &Ledger{
		cash:           st.Cash,
		initialCapital: st.InitialCapital,
		positions:      make(map[string]*domain.Position, len(st.Positions)),
		history:        append([]domain.TradeRecord(nil), st.TradeHistory...),
		dailyValues:    append([]domain.DailyValueSample(nil), st.DailyValues...),
		peakEquity:     st.PeakEquity,
		createdAt:      st.CreatedAt,
		lastUpdated:    st.LastUpdated,
	}
	for sym, pos := range st.Positions {
		if pos.Quantity == 0 {
			return nil, fmt.Errorf("persisted position %s has zero quantity", sym)
		}
		p := pos
		l.positions[sym] = &p
	}
	if l.peakEquity <= 0 {
		l.peakEquity = l.initialCapital
		for _, dv := range l.dailyValues {
			if dv.Value > l.peakEquity {
				l.peakEquity = dv.Value
			}
		}
	}
	return l, nil
}

// State returns a deep copy of the ledger suitable for persistence.
func (l *Ledger) State() *domain.LedgerState {
	l.mu.RLock()
	defer l.mu.RUnlock()

	st := &domain.LedgerState{
		Cash:           l.cash,
		InitialCapital: l.initialCapital,
		Positions:      make(map[string]domain.Position, len(l.positions)),
		TradeHistory:   append([]domain.TradeRecord(nil), l.history...),
		DailyValues:    append([]domain.DailyValueSample(nil), l.dailyValues...),
		PeakEquity:     l.peakEquity,
		CreatedAt:      l.createdAt,
		LastUpdated:    l.lastUpdated,
	}
	for sym, pos := range l.positions {
		st.Positions[sym] = *pos
	}
	return st
}

// OpenPosition debits cash and inserts or merges a position. Opening is
// recorded as a TradeRecord with nil P&L fields for audit continuity.
// Merging with an existing same-symbol position recomputes a
// weighted-average entry price; the new stop-loss and take-profit replace
// the old ones.
func (l *Ledger) OpenPosition(symbol string, quantity, price, stopLoss, takeProfit float64, rationale string) (*domain.TradeRecord, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ports.ErrInvalidRequest)
	}
	if quantity <= 0 || price <= 0 {
		return nil, fmt.Errorf("%w: quantity and price must be positive", ports.ErrInvalidRequest)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	cost := quantity * price
	if cost > l.cash {
		return nil, fmt.Errorf("%w: need %.2f, have %.2f", ports.ErrInsufficientCash, cost, l.cash)
	}

	now := time.Now().UTC()
	if existing, ok := l.positions[symbol]; ok {
		totalQty := existing.Quantity + quantity
		existing.EntryPrice = (existing.EntryPrice*existing.Quantity + price*quantity) / totalQty
		existing.Quantity = totalQty
		existing.CurrentPrice = price
		existing.StopLoss = stopLoss
		existing.TakeProfit = takeProfit
		existing.Rationale = rationale
	} else {
		l.positions[symbol] = &domain.Position{
			Symbol:       symbol,
			Quantity:     quantity,
			EntryPrice:   price,
			CurrentPrice: price,
			StopLoss:     stopLoss,
			TakeProfit:   takeProfit,
			EntryTime:    now,
			Rationale:    rationale,
		}
	}
	l.cash -= cost

	rec := domain.TradeRecord{
		ID:        ulid.Make().String(),
		Timestamp: now,
		Action:    domain.Buy,
		Symbol:    symbol,
		Quantity:  quantity,
		Price:     price,
		Rationale: rationale,
	}
	l.history = append(l.history, rec)
	l.lastUpdated = now
	return &rec, nil
}

// ClosePosition credits cash, realizes P&L and appends a closing
// TradeRecord. The position is removed when fully closed, reduced otherwise.
func (l *Ledger) ClosePosition(symbol string, quantity, price float64, reason domain.CloseReason) (*domain.TradeRecord, error) {
	if quantity <= 0 || price <= 0 {
		return nil, fmt.Errorf("%w: quantity and price must be positive", ports.ErrInvalidRequest)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	pos, ok := l.positions[symbol]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ports.ErrNoSuchPosition, symbol)
	}
	if quantity > pos.Quantity {
		return nil, fmt.Errorf("%w: held %f, closing %f", ports.ErrOverClose, pos.Quantity, quantity)
	}

	now := time.Now().UTC()
	proceeds := quantity * price
	pnl := (price - pos.EntryPrice) * quantity
	pnlPct := 0.0
	if cost := pos.EntryPrice * quantity; cost != 0 {
		pnlPct = pnl / cost * 100
	}

	l.cash += proceeds
	if quantity == pos.Quantity {
		delete(l.positions, symbol)
	} else {
		pos.Quantity -= quantity
		pos.CurrentPrice = price
	}

	rec := domain.TradeRecord{
		ID:        ulid.Make().String(),
		Timestamp: now,
		Action:    domain.Sell,
		Symbol:    symbol,
		Quantity:  quantity,
		Price:     price,
		PnL:       &pnl,
		PnLPct:    &pnlPct,
		Reason:    reason,
	}
	l.history = append(l.history, rec)
	l.lastUpdated = now
	return &rec, nil
}

// MarkToMarket refreshes the current price of every held position from the
// given price map. Cash and quantities are untouched. Positions whose symbol
// is absent from the map keep their previous mark; the returned slice names
// them so the caller can skip exit checks for those only.
func (l *Ledger) MarkToMarket(prices map[string]float64) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var stale []string
	for sym, pos := range l.positions {
		if price, ok := prices[sym]; ok && price > 0 {
			pos.CurrentPrice = price
		} else {
			stale = append(stale, sym)
		}
	}
	sort.Strings(stale)
	return stale
}

// Equity returns cash plus the mark-to-market value of every position.
func (l *Ledger) Equity() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.equityLocked()
}

func (l *Ledger) equityLocked() float64 {
	total := l.cash
	for _, pos := range l.positions {
		total += pos.MarketValue()
	}
	return total
}

// SnapshotDailyValue upserts the daily value sample for the given date and
// raises the peak-equity watermark if exceeded. Later same-day writes
// overwrite the earlier sample.
func (l *Ledger) SnapshotDailyValue(date time.Time, totalValue float64) {
	l.mu.Lock()
	defer l.mu.Unlock()

	day := date.UTC().Format("2006-01-02")
	returnPct := 0.0
	n := len(l.dailyValues)
	prevIdx := n - 1
	if n > 0 && l.dailyValues[n-1].Date == day {
		prevIdx = n - 2
	}
	if prevIdx >= 0 && l.dailyValues[prevIdx].Value > 0 {
		returnPct = (totalValue - l.dailyValues[prevIdx].Value) / l.dailyValues[prevIdx].Value * 100
	}

	sample := domain.DailyValueSample{Date: day, Value: totalValue, ReturnPct: returnPct}
	if n > 0 && l.dailyValues[n-1].Date == day {
		l.dailyValues[n-1] = sample
	} else {
		l.dailyValues = append(l.dailyValues, sample)
	}

	if totalValue > l.peakEquity {
		l.peakEquity = totalValue
	}
	l.lastUpdated = time.Now().UTC()
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cash
}

// PeakEquity returns the all-time-high equity watermark.
func (l *Ledger) PeakEquity() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.peakEquity
}

// Position returns a copy of the position held in symbol, if any.
func (l *Ledger) Position(symbol string) (domain.Position, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	pos, ok := l.positions[symbol]
	if !ok {
		return domain.Position{}, false
	}
	return *pos, true
}

// Positions returns copies of all open positions, sorted by symbol.
func (l *Ledger) Positions() []domain.Position {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// TradeHistory returns a copy of the full trade history, oldest first.
func (l *Ledger) TradeHistory() []domain.TradeRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.TradeRecord(nil), l.history...)
}

// DailyValues returns a copy of the equity curve samples, oldest first.
func (l *Ledger) DailyValues() []domain.DailyValueSample {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]domain.DailyValueSample(nil), l.dailyValues...)
}

// Summary builds the read-only view handed to the decision source.
func (l *Ledger) Summary(dailyPnLPct float64) *domain.PortfolioSummary {
	l.mu.RLock()
	defer l.mu.RUnlock()
	positions := make([]domain.Position, 0, len(l.positions))
	for _, pos := range l.positions {
		positions = append(positions, *pos)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Symbol < positions[j].Symbol })
	return &domain.PortfolioSummary{
		Cash:        l.cash,
		TotalValue:  l.equityLocked(),
		DailyPnLPct: dailyPnLPct,
		Positions:   positions,
	}
}
