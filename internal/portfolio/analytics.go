package portfolio

import "aiTraderBot/internal/domain"

// PerformanceMetrics summarizes realized trading performance. All figures
// are computed over closing trade records only; opening records exist for
// audit continuity and must never skew win rates or P&L sums.
type PerformanceMetrics struct {
	TotalTrades   int
	ClosedTrades  int
	WinningTrades int
	LosingTrades  int
	WinRate       float64
	AverageWin    float64
	AverageLoss   float64
	ProfitFactor  float64
	TotalPnL      float64
	BestTrade     float64
	WorstTrade    float64
}

// Performance computes realized performance metrics from the trade history.
func (l *Ledger) Performance() PerformanceMetrics {
	return ComputePerformance(l.TradeHistory())
}

// ComputePerformance derives performance metrics from a trade history slice.
func ComputePerformance(history []domain.TradeRecord) PerformanceMetrics {
	m := PerformanceMetrics{TotalTrades: len(history)}

	var sumWins, sumLosses float64
	first := true
	for i := range history {
		rec := &history[i]
		if !rec.IsClose() {
			continue
		}
		pnl := *rec.PnL
		m.ClosedTrades++
		m.TotalPnL += pnl
		if pnl > 0 {
			m.WinningTrades++
			sumWins += pnl
		} else if pnl < 0 {
			m.LosingTrades++
			sumLosses += pnl
		}
		if first || pnl > m.BestTrade {
			m.BestTrade = pnl
		}
		if first || pnl < m.WorstTrade {
			m.WorstTrade = pnl
		}
		first = false
	}

	if m.ClosedTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.ClosedTrades)
	}
	if m.WinningTrades > 0 {
		m.AverageWin = sumWins / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = sumLosses / float64(m.LosingTrades)
	}
	if m.AverageLoss != 0 {
		m.ProfitFactor = m.AverageWin / -m.AverageLoss
	}
	return m
}
