package utils

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"aiTraderBot/internal/domain"
)

// WriteTradesToCSV exports trade records for spreadsheet analysis. PnL
// columns are left empty on opening records.
func WriteTradesToCSV(trades []domain.TradeRecord, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	writer.Write([]string{"id", "timestamp", "action", "symbol", "quantity", "price", "pnl", "pnl_pct", "reason", "rationale"})

	for i := range trades {
		t := &trades[i]
		pnl, pnlPct := "", ""
		if t.PnL != nil {
			pnl = strconv.FormatFloat(*t.PnL, 'f', -1, 64)
		}
		if t.PnLPct != nil {
			pnlPct = strconv.FormatFloat(*t.PnLPct, 'f', -1, 64)
		}
		writer.Write([]string{
			t.ID,
			t.Timestamp.Format(time.RFC3339),
			string(t.Action),
			t.Symbol,
			strconv.FormatFloat(t.Quantity, 'f', -1, 64),
			strconv.FormatFloat(t.Price, 'f', -1, 64),
			pnl,
			pnlPct,
			string(t.Reason),
			t.Rationale,
		})
	}
	return writer.Error()
}
