package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/price-escrow-platform/internal/settlement-keeper/client"
	"github.com/radieske/price-escrow-platform/internal/settlement-keeper/keeper"
	"github.com/radieske/price-escrow-platform/internal/shared/config"
	"github.com/radieske/price-escrow-platform/internal/shared/kafka"
	"github.com/radieske/price-escrow-platform/internal/shared/logger"
	"github.com/radieske/price-escrow-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("settlement-keeper", cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Kafka consumer: eventos de escrow para descobrir quais foram aceitos
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicEscrowEvents, "settlement-keeper")
	defer reader.Close()

	dlqWriter := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicEscrowEventsDLQ)
	defer dlqWriter.Close()

	tracked := prometheus.NewCounter(prometheus.CounterOpts{Name: "keeper_escrows_tracked_total", Help: "escrows aceitos passados a acompanhar"})
	settled := prometheus.NewCounter(prometheus.CounterOpts{Name: "keeper_escrows_settled_total", Help: "escrows liquidados pelo keeper"})
	pending := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "keeper_settle_pending_total", Help: "tentativas sem liquidação por código"}, []string{"code"})
	dropped := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "keeper_escrows_dropped_total", Help: "escrows abandonados por código"}, []string{"code"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "keeper_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(tracked, settled, pending, dropped, errorsBy)

	k := &keeper.Keeper{
		Log:       log,
		Reader:    reader,
		DLQ:       dlqWriter,
		Settler:   client.New(cfg.EscrowServiceURL, cfg.KeeperCallerID),
		Interval:  cfg.KeeperInterval,
		OnTracked: tracked.Inc,
		OnSettled: settled.Inc,
		OnPending: func(code string) { pending.WithLabelValues(code).Inc() },
		OnDropped: func(code string) { dropped.WithLabelValues(code).Inc() },
		OnError:   func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// Servidor HTTP para métricas Prometheus e healthcheck
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, nil)
	log.Info("metrics/health", zap.String("addr", metricsSrv.Addr))

	log.Info("settlement-keeper started",
		zap.String("consume", cfg.TopicEscrowEvents),
		zap.String("escrow_service", cfg.EscrowServiceURL),
		zap.Duration("interval", cfg.KeeperInterval),
	)

	if err := k.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("keeper stopped with error", zap.Error(err))
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("settlement-keeper stopped")
}
