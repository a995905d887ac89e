// Command report prints a realized-performance summary from the trade
// journal and the persisted ledger state.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"aiTraderBot/internal/adapters/jsonstore"
	"aiTraderBot/internal/adapters/logger"
	"aiTraderBot/internal/adapters/sqlite"
	"aiTraderBot/internal/domain"
	"aiTraderBot/internal/portfolio"
	"aiTraderBot/internal/utils"
)

func main() {
	dbPath := flag.String("db", "./data/trade_journal.db", "path to the trade journal database")
	statePath := flag.String("state", "./data/portfolio_state.json", "path to the persisted ledger state")
	recent := flag.Int("recent", 10, "number of recent trades to list per symbol")
	csvPath := flag.String("csv", "", "optional path to export the full trade history as CSV")
	flag.Parse()

	ctx := context.Background()
	appLogger := logger.NewStdLogger(logger.LevelWarn)

	journal, err := sqlite.NewJournal(sqlite.Config{DBPath: *dbPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("Error opening trade journal: %v", err)
	}
	defer journal.Close()

	records, err := journal.All(ctx)
	if err != nil {
		log.Fatalf("Error reading trade journal: %v", err)
	}
	if len(records) == 0 {
		log.Println("No trades recorded yet.")
		return
	}

	history := make([]domain.TradeRecord, 0, len(records))
	for _, rec := range records {
		history = append(history, *rec)
	}
	stats := portfolio.ComputePerformance(history)

	fmt.Println("## Realized Performance")
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Trades\tClosed\tWinRate\tAvgWin\tAvgLoss\tProfitFactor\tTotalPnL\tBest\tWorst\t")
	fmt.Fprintf(w, "%d\t%d\t%.1f%%\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
		stats.TotalTrades,
		stats.ClosedTrades,
		stats.WinRate*100,
		stats.AverageWin,
		stats.AverageLoss,
		stats.ProfitFactor,
		stats.TotalPnL,
		stats.BestTrade,
		stats.WorstTrade,
	)
	w.Flush()

	printLedgerSummary(ctx, *statePath, appLogger)
	printRecentBySymbol(ctx, journal, history, *recent)

	if *csvPath != "" {
		if err := utils.WriteTradesToCSV(history, *csvPath); err != nil {
			log.Fatalf("Error exporting trades to CSV: %v", err)
		}
		fmt.Printf("\nExported %d trades to %s\n", len(history), *csvPath)
	}
}

// printLedgerSummary adds the live portfolio view when a state file exists.
func printLedgerSummary(ctx context.Context, statePath string, appLogger *logger.StdLogger) {
	store, err := jsonstore.New(jsonstore.Config{Path: statePath, Logger: appLogger})
	if err != nil {
		log.Printf("Error opening ledger state: %v", err)
		return
	}
	state, err := store.Load(ctx)
	if err != nil {
		log.Printf("Error loading ledger state: %v", err)
		return
	}
	if state == nil {
		return
	}
	ledger, err := portfolio.FromState(state)
	if err != nil {
		log.Printf("Error restoring ledger: %v", err)
		return
	}

	fmt.Println("\n## Portfolio")
	fmt.Printf("Cash: %.2f   Equity: %.2f   Peak: %.2f   Initial: %.2f\n",
		ledger.Cash(), ledger.Equity(), ledger.PeakEquity(), state.InitialCapital)

	positions := ledger.Positions()
	if len(positions) == 0 {
		fmt.Println("No open positions.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Symbol\tQty\tEntry\tMark\tUnrealized\tStop\tTarget\t")
	for i := range positions {
		pos := &positions[i]
		fmt.Fprintf(w, "%s\t%.4f\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
			pos.Symbol, pos.Quantity, pos.EntryPrice, pos.CurrentPrice,
			pos.UnrealizedPnL(), pos.StopLoss, pos.TakeProfit)
	}
	w.Flush()
}

// printRecentBySymbol lists the latest journal entries per traded symbol.
func printRecentBySymbol(ctx context.Context, journal *sqlite.Journal, history []domain.TradeRecord, limit int) {
	seen := make(map[string]bool)
	var symbols []string
	for i := range history {
		if !seen[history[i].Symbol] {
			seen[history[i].Symbol] = true
			symbols = append(symbols, history[i].Symbol)
		}
	}

	for _, symbol := range symbols {
		recent, err := journal.RecentBySymbol(ctx, symbol, limit)
		if err != nil {
			log.Printf("Error reading recent trades for %s: %v", symbol, err)
			continue
		}
		fmt.Printf("\n## Recent Trades: %s\n", symbol)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
		fmt.Fprintln(w, "Time\tAction\tQty\tPrice\tPnL\tReason\t")
		for _, rec := range recent {
			pnl := "-"
			if rec.PnL != nil {
				pnl = fmt.Sprintf("%.2f", *rec.PnL)
			}
			fmt.Fprintf(w, "%s\t%s\t%.4f\t%.2f\t%s\t%s\t\n",
				rec.Timestamp.Format("2006-01-02 15:04"), rec.Action, rec.Quantity, rec.Price, pnl, rec.Reason)
		}
		w.Flush()
	}
}
