package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMA(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6}

	t.Run("averages last period closes", func(t *testing.T) {
		sma, err := SMA(closes, 3)
		require.NoError(t, err)
		assert.InDelta(t, 5.0, sma, 1e-9)
	})

	t.Run("full window", func(t *testing.T) {
		sma, err := SMA(closes, 6)
		require.NoError(t, err)
		assert.InDelta(t, 3.5, sma, 1e-9)
	})

	t.Run("insufficient data", func(t *testing.T) {
		_, err := SMA(closes, 7)
		require.Error(t, err)
	})

	t.Run("non-positive period", func(t *testing.T) {
		_, err := SMA(closes, 0)
		require.Error(t, err)
	})
}

func TestEMA(t *testing.T) {
	t.Run("equals SMA when series length equals period", func(t *testing.T) {
		closes := []float64{10, 20, 30}
		ema, err := EMA(closes, 3)
		require.NoError(t, err)
		assert.InDelta(t, 20.0, ema, 1e-9)
	})

	t.Run("weights recent closes more than SMA", func(t *testing.T) {
		closes := []float64{10, 10, 10, 10, 10, 20, 30, 40}
		ema, err := EMA(closes, 5)
		require.NoError(t, err)
		sma, err := SMA(closes, 5)
		require.NoError(t, err)
		assert.Greater(t, ema, sma, "EMA reacts faster to the late ramp than the window average")
	})

	t.Run("known hand-computed value", func(t *testing.T) {
		// Seed SMA([2,4,6],3)=4, multiplier 0.5.
		// 8 -> 6, 10 -> 8.
		closes := []float64{2, 4, 6, 8, 10}
		ema, err := EMA(closes, 3)
		require.NoError(t, err)
		assert.InDelta(t, 8.0, ema, 1e-9)
	})

	t.Run("insufficient data", func(t *testing.T) {
		_, err := EMA([]float64{1, 2}, 3)
		require.Error(t, err)
	})
}

func TestRSI(t *testing.T) {
	t.Run("all gains reads 100", func(t *testing.T) {
		closes := []float64{1, 2, 3, 4, 5, 6}
		rsi, err := RSI(closes, 5)
		require.NoError(t, err)
		assert.InDelta(t, 100.0, rsi, 1e-9)
	})

	t.Run("all losses reads 0", func(t *testing.T) {
		closes := []float64{6, 5, 4, 3, 2, 1}
		rsi, err := RSI(closes, 5)
		require.NoError(t, err)
		assert.InDelta(t, 0.0, rsi, 1e-9)
	})

	t.Run("flat series is neutral", func(t *testing.T) {
		closes := []float64{5, 5, 5, 5, 5, 5}
		rsi, err := RSI(closes, 5)
		require.NoError(t, err)
		assert.InDelta(t, 50.0, rsi, 1e-9)
	})

	t.Run("alternating gains and losses", func(t *testing.T) {
		// Gains of 2 against losses of 1 give RS=2, RSI=66.67.
		closes := []float64{10, 12, 11, 13, 12}
		rsi, err := RSI(closes, 4)
		require.NoError(t, err)
		assert.InDelta(t, 100-100.0/3.0, rsi, 1e-9)
	})

	t.Run("bounded between 0 and 100", func(t *testing.T) {
		closes := []float64{50, 80, 20, 95, 5, 60, 40, 70, 30, 65, 45, 55, 48, 52, 49, 51}
		rsi, err := RSI(closes, 14)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, rsi, 0.0)
		assert.LessOrEqual(t, rsi, 100.0)
	})

	t.Run("needs more closes than the period", func(t *testing.T) {
		closes := []float64{1, 2, 3, 4, 5}
		_, err := RSI(closes, 5)
		require.Error(t, err)
	})
}

func TestChange(t *testing.T) {
	closes := []float64{100, 110, 99, 105}

	t.Run("one step", func(t *testing.T) {
		c, err := Change(closes, 1)
		require.NoError(t, err)
		assert.InDelta(t, (105.0-99.0)/99.0, c, 1e-9)
	})

	t.Run("three steps", func(t *testing.T) {
		c, err := Change(closes, 3)
		require.NoError(t, err)
		assert.InDelta(t, 0.05, c, 1e-9)
	})

	t.Run("lookback beyond history", func(t *testing.T) {
		_, err := Change(closes, 4)
		require.Error(t, err)
	})

	t.Run("zero reference close", func(t *testing.T) {
		_, err := Change([]float64{0, 10}, 1)
		require.Error(t, err)
	})
}
