// Package indicators computes the technical indicators included in market
// snapshots. All functions operate on close-price series ordered oldest
// first.
package indicators

import "fmt"

// SMA computes the Simple Moving Average of the last period closes.
func SMA(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("SMA period must be positive, got %d", period)
	}
	if len(closes) < period {
		return 0, fmt.Errorf("not enough data (%d) to calculate SMA for period %d", len(closes), period)
	}
	total := 0.0
	for i := len(closes) - period; i < len(closes); i++ {
		total += closes[i]
	}
	return total / float64(period), nil
}

// EMA computes the Exponential Moving Average over the whole series, seeded
// with the SMA of the first period closes.
func EMA(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("EMA period must be positive, got %d", period)
	}
	if len(closes) < period {
		return 0, fmt.Errorf("not enough data (%d) to calculate EMA for period %d", len(closes), period)
	}
	ema, err := SMA(closes[:period], period)
	if err != nil {
		return 0, err
	}
	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(closes); i++ {
		ema = (closes[i]-ema)*multiplier + ema
	}
	return ema, nil
}

// RSI computes the Relative Strength Index using Wilder's smoothing.
func RSI(closes []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("RSI period must be positive, got %d", period)
	}
	if len(closes) <= period {
		return 0, fmt.Errorf("not enough data (%d) to calculate RSI for period %d", len(closes), period)
	}

	changes := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		changes = append(changes, closes[i]-closes[i-1])
	}

	var avgGain, avgLoss float64
	for i := 0; i < period; i++ {
		if changes[i] > 0 {
			avgGain += changes[i]
		} else {
			avgLoss -= changes[i]
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period; i < len(changes); i++ {
		if changes[i] > 0 {
			avgGain = (avgGain*float64(period-1) + changes[i]) / float64(period)
			avgLoss = (avgLoss * float64(period-1)) / float64(period)
		} else {
			avgGain = (avgGain * float64(period-1)) / float64(period)
			avgLoss = (avgLoss*float64(period-1) - changes[i]) / float64(period)
		}
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, nil // Neutral if no change
		}
		return 100, nil
	}

	rs := avgGain / avgLoss
	rsi := 100 - (100 / (1 + rs))
	if rsi > 100 {
		rsi = 100
	} else if rsi < 0 {
		rsi = 0
	}
	return rsi, nil
}

// Change returns the fractional price change over the last n steps of the
// series, e.g. Change(closes, 1) is the one-bar return.
func Change(closes []float64, n int) (float64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("change lookback must be positive, got %d", n)
	}
	if len(closes) <= n {
		return 0, fmt.Errorf("not enough data (%d) for a %d-step change", len(closes), n)
	}
	prev := closes[len(closes)-1-n]
	if prev == 0 {
		return 0, fmt.Errorf("reference close is zero")
	}
	return (closes[len(closes)-1] - prev) / prev, nil
}
