package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/price-escrow-platform/internal/api-gateway/gateway"
	"github.com/radieske/price-escrow-platform/internal/shared/config"
	"github.com/radieske/price-escrow-platform/internal/shared/logger"
	"github.com/radieske/price-escrow-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("api-gateway", cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// targets
	handler, err := gateway.NewRouter(gateway.Targets{
		Escrow: cfg.EscrowServiceURL,
		Wallet: cfg.WalletServiceURL,
		Price:  cfg.PriceServiceURL,
	}, log)
	if err != nil {
		log.Fatal("gateway routes", zap.Error(err))
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, nil)
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info("api-gateway listening", zap.String("addr", srv.Addr),
		zap.String("escrow", cfg.EscrowServiceURL),
		zap.String("wallet", cfg.WalletServiceURL),
		zap.String("price", cfg.PriceServiceURL),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("gateway failed", zap.Error(err))
	}
}
