package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"rsiscalper/config"
	"rsiscalper/internal/trader"
	"rsiscalper/logger"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "config file or directory (default: config/ next to the binary)")
	once := pflag.Bool("once", false, "run a single pull cycle over the configured symbols and exit")
	pflag.Parse()

	// viper config
	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// zap logger
	log, err := logger.New(cfg.Log, "scalper")
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	t, err := trader.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to start trader", zap.Error(err))
	}
	defer t.Close()

	if *once {
		err = t.RunOnce(ctx)
	} else {
		err = t.Run(ctx)
	}
	if err != nil {
		_ = t.Close()
		log.Fatal("trader stopped", zap.Error(err))
	}
	log.Info("trader stopped")
}
