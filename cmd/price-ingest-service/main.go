package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/price-escrow-platform/internal/price-ingest/publisher"
	"github.com/radieske/price-escrow-platform/internal/price-ingest/service"
	"github.com/radieske/price-escrow-platform/internal/shared/config"
	"github.com/radieske/price-escrow-platform/internal/shared/kafka"
	"github.com/radieske/price-escrow-platform/internal/shared/logger"
	"github.com/radieske/price-escrow-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("price-ingest-service", cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	log.Info("Kafka brokers", zap.String("brokers", cfg.KafkaBrokers))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Kafka Publisher
	pub, err := publisher.NewKafkaPublisher(kafka.Brokers(cfg.KafkaBrokers), cfg.TopicPriceUpdates, cfg.Env, log)
	if err != nil {
		log.Fatal("kafka publisher", zap.Error(err))
	}
	defer pub.Close()

	received := prometheus.NewCounter(prometheus.CounterOpts{Name: "price_ingest_messages_received_total", Help: "mensagens recebidas do oráculo"})
	published := prometheus.NewCounter(prometheus.CounterOpts{Name: "price_ingest_messages_published_total", Help: "atualizações publicadas no Kafka"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "price_ingest_rejected_total", Help: "mensagens descartadas por motivo"}, []string{"reason"})
	prometheus.MustRegister(received, published, rejected)

	// WS Client
	wsClient := &service.WSClient{
		URL:         cfg.OracleWSURL,
		Log:         log,
		Publisher:   pub,
		OnReceived:  received.Inc,
		OnPublished: published.Inc,
		OnRejected:  func(r string) { rejected.WithLabelValues(r).Inc() },
	}

	// Metrics e health
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, nil)
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	wsClient.Start(ctx)

	log.Info("shutdown signal received")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	_ = metricsSrv.Shutdown(shutdownCtx)
}
