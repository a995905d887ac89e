// Command snapshot fetches a live market snapshot for a watchlist and prints
// the indicator set per symbol. Useful for eyeballing what the decision
// source will see without running a trading cycle.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"aiTraderBot/internal/adapters/logger"
	"aiTraderBot/internal/adapters/marketdata"
)

func main() {
	watchlist := flag.String("symbols", "BTCUSDT,ETHUSDT", "comma-separated symbols to snapshot")
	testnet := flag.Bool("testnet", true, "use the exchange testnet")
	flag.Parse()

	var symbols []string
	for _, sym := range strings.Split(*watchlist, ",") {
		if sym = strings.TrimSpace(sym); sym != "" {
			symbols = append(symbols, strings.ToUpper(sym))
		}
	}
	if len(symbols) == 0 {
		log.Fatal("No symbols given.")
	}

	appLogger := logger.NewStdLogger(logger.LevelWarn)
	provider, err := marketdata.NewBinanceProvider(*testnet, appLogger)
	if err != nil {
		log.Fatalf("Error initializing market data provider: %v", err)
	}

	snap, err := provider.GetSnapshot(context.Background(), symbols)
	if err != nil {
		log.Fatalf("Error fetching snapshot: %v", err)
	}

	fmt.Printf("## Market Snapshot  %s  regime=%s\n", snap.Timestamp.Format("2006-01-02 15:04 MST"), snap.Regime)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Symbol\tPrice\t1D\t5D\tRSI\tSMA20\tSMA50\t")
	for _, s := range snap.Symbols {
		fmt.Fprintf(w, "%s\t%.2f\t%+.2f%%\t%+.2f%%\t%.1f\t%.2f\t%.2f\t\n",
			s.Symbol, s.Price, s.Change1D*100, s.Change5D*100, s.RSI, s.SMA20, s.SMA50)
	}
	w.Flush()
}
