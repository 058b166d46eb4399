package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/S0me0neR0man/simbook/internal/app"
	"github.com/S0me0neR0man/simbook/internal/config"
	"github.com/S0me0neR0man/simbook/internal/logging"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	defer stop()

	logger.Info("simbook start", zap.String("grpc", cfg.GRPCAddr), zap.String("card", cfg.Card.Backend))
	if err := app.Run(ctx, cfg, logger); err != nil {
		logger.Fatal("simbook", zap.Error(err))
	}
	logger.Info("simbook stopped")
}
