package main

import (
	"context"
	"fmt"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"net/http"

	"aiTraderBot/config"
	"aiTraderBot/internal/adapters/advisor"
	binancebroker "aiTraderBot/internal/adapters/broker/binance"
	"aiTraderBot/internal/adapters/broker/paper"
	"aiTraderBot/internal/adapters/jsonstore"
	"aiTraderBot/internal/adapters/logger"
	"aiTraderBot/internal/adapters/marketdata"
	"aiTraderBot/internal/adapters/sqlite"
	"aiTraderBot/internal/app"
	"aiTraderBot/internal/ports"
	"aiTraderBot/internal/risk"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	appLogger.Info(context.Background(), "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Persistence (ledger store + trade journal)
	store, err := jsonstore.New(jsonstore.Config{
		Path:   cfg.StatePath,
		Logger: appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize ledger store: %v", err)
	}
	journal, err := sqlite.NewJournal(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize trade journal: %v", err)
	}
	defer func() {
		if err := journal.Close(); err != nil {
			appLogger.Error(context.Background(), err, "Error closing trade journal")
		}
	}()
	appLogger.Info(context.Background(), "Persistence initialized", map[string]interface{}{
		"statePath": cfg.StatePath, "dbPath": cfg.DBPath,
	})

	// 4. Initialize Broker and Market Data
	broker, marketData, err := buildBrokerAndMarketData(cfg, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize broker")
		log.Fatalf("FATAL: Failed to initialize broker: %v", err)
	}
	appLogger.Info(context.Background(), "Broker initialized", map[string]interface{}{"backend": cfg.Broker})

	// 5. Initialize Advisor
	advisorClient, err := advisor.New(advisor.Config{
		APIKey:      cfg.AIAPIKey,
		BaseURL:     cfg.AIBaseURL,
		Model:       cfg.AIModel,
		Temperature: cfg.AITemperature,
		MaxTokens:   cfg.AIMaxTokens,
		Timeout:     cfg.AITimeout,
		Logger:      appLogger,
	})
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize advisor")
		log.Fatalf("FATAL: Failed to initialize advisor: %v", err)
	}
	appLogger.Info(context.Background(), "Advisor initialized", map[string]interface{}{"model": cfg.AIModel})

	// 6. Initialize Risk Policy Engine
	policy, err := risk.NewEngine(risk.Config{
		MaxPositionSizePct:    cfg.MaxPositionSizePct,
		PerTradeRiskPct:       cfg.PerTradeRiskPct,
		DailyLossLimitPct:     cfg.DailyLossLimitPct,
		MaxDrawdownPct:        cfg.MaxDrawdownPct,
		ConcentrationLimitPct: cfg.ConcentrationLimitPct,
		MinConfidence:         cfg.MinConfidence,
	}, appLogger)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize risk policy")
		log.Fatalf("FATAL: Failed to initialize risk policy: %v", err)
	}

	// 7. Metrics endpoint
	if cfg.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			appLogger.Info(context.Background(), "Metrics endpoint listening", map[string]interface{}{"addr": cfg.MetricsAddr})
			if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
				appLogger.Error(context.Background(), err, "Metrics endpoint stopped")
			}
		}()
	}

	// 8. Initialize Application Service
	tradingService, err := app.NewTradingService(
		cfg,
		appLogger,
		broker,
		marketData,
		advisorClient,
		store,
		journal,
		policy,
	)
	if err != nil {
		appLogger.Error(context.Background(), err, "FATAL: Failed to initialize trading service")
		log.Fatalf("FATAL: Failed to initialize trading service: %v", err)
	}
	appLogger.Info(context.Background(), "Trading service initialized")

	// 9. Start the Service
	if err := tradingService.Start(context.Background()); err != nil {
		appLogger.Error(context.Background(), err, "Trading service exited with error")
		log.Fatalf("FATAL: Trading service exited with error: %v", err)
	}

	appLogger.Info(context.Background(), "Application finished gracefully.")
}

// buildBrokerAndMarketData wires the broker backend selected by config and a
// market data provider matching it: simulated prices for the paper broker,
// live exchange data for Binance.
func buildBrokerAndMarketData(cfg *config.Config, appLogger ports.Logger) (ports.Broker, ports.MarketDataProvider, error) {
	switch cfg.Broker {
	case config.BrokerPaper:
		broker, err := paper.New(paper.Config{
			InitialCash: cfg.InitialCapital,
			Logger:      appLogger,
			RandSeed:    cfg.PaperSeed,
		})
		if err != nil {
			return nil, nil, err
		}
		marketData, err := marketdata.NewSimProvider(broker, appLogger, cfg.PaperSeed)
		if err != nil {
			return nil, nil, err
		}
		return broker, marketData, nil
	case config.BrokerBinance:
		broker, err := binancebroker.New(binancebroker.Config{
			APIKey:     cfg.BinanceAPIKey,
			SecretKey:  cfg.BinanceSecret,
			UseTestnet: cfg.BinanceTestnet,
			QuoteAsset: cfg.QuoteAsset,
			Logger:     appLogger,
		})
		if err != nil {
			return nil, nil, err
		}
		marketData, err := marketdata.NewBinanceProvider(cfg.BinanceTestnet, appLogger)
		if err != nil {
			return nil, nil, err
		}
		return broker, marketData, nil
	default:
		return nil, nil, fmt.Errorf("unknown broker backend %q", cfg.Broker)
	}
}
