package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/price-escrow-platform/internal/price-processor/cache"
	"github.com/radieske/price-escrow-platform/internal/price-processor/consumer"
	"github.com/radieske/price-escrow-platform/internal/price-processor/pubsub"
	"github.com/radieske/price-escrow-platform/internal/price-processor/repository"
	sharedcache "github.com/radieske/price-escrow-platform/internal/shared/cache"
	"github.com/radieske/price-escrow-platform/internal/shared/config"
	"github.com/radieske/price-escrow-platform/internal/shared/db"
	"github.com/radieske/price-escrow-platform/internal/shared/kafka"
	"github.com/radieske/price-escrow-platform/internal/shared/logger"
	"github.com/radieske/price-escrow-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("price-processor-worker", cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Inicializa dependências: Postgres e Redis
	pg, err := db.ConnectPostgres(cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	if _, err := db.Migrate(ctx, pg); err != nil {
		log.Fatal("migrations", zap.Error(err))
	}

	redisClient, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	// Consumer group price-processor e DLQ para mensagens inválidas
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicPriceUpdates, "price-processor")
	defer reader.Close()
	dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicPriceUpdatesDLQ)
	defer dlq.Close()

	// Métricas Prometheus para monitoramento do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "price_proc_messages_consumed_total", Help: "mensagens consumidas"})
	cached := prometheus.NewCounter(prometheus.CounterOpts{Name: "price_proc_cache_sets_total", Help: "sets no cache"})
	persist := prometheus.NewCounter(prometheus.CounterOpts{Name: "price_proc_db_writes_total", Help: "escritas no banco (upsert+history)"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "price_proc_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, cached, persist, errorsBy)

	proc := &consumer.Processor{
		Log:         log,
		Reader:      reader,
		DLQ:         dlq,
		Repo:        repository.NewPostgresRepo(pg),
		Cache:       cache.NewRedisCache(redisClient, cfg.PriceCacheTTL),
		Broadcaster: pubsub.NewRedisBroadcaster(redisClient),
		Channel:     cfg.RedisPubSubChannel,
		OnConsumed:  consumed.Inc,
		OnCached:    cached.Inc,
		OnPersist:   persist.Inc,
		OnError:     func(stage string) { errorsBy.WithLabelValues(stage).Inc() },
	}

	// Servidor HTTP para métricas e health check
	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, metrics.All(
		metrics.Named("pg", pg.PingContext),
		metrics.Named("redis", func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }),
	))
	log.Info("metrics/health listening", zap.String("addr", metricsSrv.Addr))

	log.Info("price-processor started", zap.String("topic", cfg.TopicPriceUpdates))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
	defer stop()
	_ = metricsSrv.Shutdown(shutdownCtx)
	log.Info("price-processor stopped")
}
