package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rsiscalper/config"
	"rsiscalper/internal/scanner"
	"rsiscalper/logger"
	"rsiscalper/pkg/alpaca"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "config file or directory (default: config/ next to the binary)")
	output := pflag.StringP("output", "o", "", "selection file (overrides scanner.output)")
	pflag.Parse()

	// viper config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	if *output != "" {
		cfg.Scanner.Output = *output
	}

	// zap logger
	log, err := logger.New(cfg.Log, "scanner")
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	key, secret, err := cfg.Broker.Credentials(ctx, cfg.Log.Environment)
	if err != nil {
		log.Fatal("failed to resolve broker credentials", zap.Error(err))
	}
	data := alpaca.NewRESTClient(cfg.Broker.Data.BaseURL, key, secret, cfg.Broker.Data.Timeout)
	fetcher, err := alpaca.NewBarFetcher(data, 24*time.Hour)
	if err != nil {
		log.Fatal("failed to create bar fetcher", zap.Error(err))
	}

	candidates := cfg.Scanner.Candidates
	if len(candidates) == 0 {
		candidates = cfg.Symbols
	}

	s := scanner.New(scanner.Config{
		RSIPeriod:     cfg.Strategy.RSIPeriod,
		BuyThreshold:  cfg.Strategy.BuyThreshold,
		SellThreshold: cfg.Strategy.SellThreshold,
		Lookback:      cfg.Scanner.Lookback,
	}, fetcher, log)

	selected := scanner.Selected(s.Scan(ctx, candidates))
	if err := scanner.WriteSelection(cfg.Scanner.Output, selected); err != nil {
		log.Fatal("failed to write selection", zap.Error(err))
	}
	log.Info("selected cryptos", zap.Strings("symbols", selected), zap.String("output", cfg.Scanner.Output))
}
