package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/price-escrow-platform/internal/escrow-service/engine"
	httpapi "github.com/radieske/price-escrow-platform/internal/escrow-service/http"
	"github.com/radieske/price-escrow-platform/internal/escrow-service/lock"
	"github.com/radieske/price-escrow-platform/internal/escrow-service/pricefeed"
	kpub "github.com/radieske/price-escrow-platform/internal/escrow-service/producer"
	"github.com/radieske/price-escrow-platform/internal/escrow-service/repo"
	sharedcache "github.com/radieske/price-escrow-platform/internal/shared/cache"
	"github.com/radieske/price-escrow-platform/internal/shared/config"
	"github.com/radieske/price-escrow-platform/internal/shared/db"
	"github.com/radieske/price-escrow-platform/internal/shared/kafka"
	"github.com/radieske/price-escrow-platform/internal/shared/logger"
	"github.com/radieske/price-escrow-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("escrow-service", cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	pol, err := config.LoadEscrowPolicy(cfg.PolicyFile)
	if err != nil {
		log.Fatal("escrow policy", zap.Error(err))
	}
	durations, err := pol.Durations()
	if err != nil {
		log.Fatal("escrow policy durations", zap.Error(err))
	}
	settlePolicy, err := engine.SettlePolicyByName(pol.SettlePolicy)
	if err != nil {
		log.Fatal("settle policy", zap.Error(err))
	}
	enginePolicy := engine.Policy{
		AcceptToleranceBps: pol.AcceptToleranceBps,
		CloseThresholdBps:  pol.CloseThresholdBps,
		DefaultPriceSource: pol.DefaultPriceSource,
	}
	if err := enginePolicy.Validate(); err != nil {
		log.Fatal("escrow policy", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Redis: feed de preço e, opcionalmente, lock distribuído
	rdb, err := sharedcache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer rdb.Close()

	health := []metrics.HealthFunc{
		metrics.Named("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
	}

	// Store: Postgres (padrão) ou memória para desenvolvimento
	var tx engine.Transactor
	switch cfg.StoreMode {
	case "memory":
		mem := repo.NewMemory()
		balances, err := config.ParseBalances(cfg.SeedWallets)
		if err != nil {
			log.Fatal("seed wallets", zap.Error(err))
		}
		for party, amount := range balances {
			mem.Deposit(party, amount, "seed")
		}
		tx = mem
		log.Warn("using in-memory escrow store; state is lost on restart", zap.Int("seeded_wallets", len(balances)))
	default:
		pg, err := db.ConnectPostgres(cfg.PostgresDSN)
		if err != nil {
			log.Fatal("postgres connect", zap.Error(err))
		}
		defer pg.Close()
		applied, err := db.Migrate(ctx, pg)
		if err != nil {
			log.Fatal("migrations", zap.Error(err))
		}
		log.Info("migrations applied", zap.Strings("files", applied))
		tx = repo.NewPostgres(pg)
		health = append(health, metrics.Named("postgres", pg.PingContext))
	}

	// Lock por id: em processo sempre; Redis quando há várias réplicas
	var locker engine.Locker = engine.NewKeyedMutex()
	if cfg.LockMode == "redis" {
		locker = lock.Chain{locker, lock.NewRedisLocker(rdb, durations.LockTTL, durations.LockWait)}
	}

	// Eventos de domínio no Kafka
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicEscrowEvents)
	defer writer.Close()
	publisher := kpub.NewKafkaPublisher(writer, cfg.TopicEscrowEvents)

	// Métricas Prometheus das transições
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "escrow_transitions_total", Help: "transições confirmadas por operação"}, []string{"op"})
	rejections := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "escrow_rejections_total", Help: "transições recusadas por operação e código"}, []string{"op", "code"})
	prometheus.MustRegister(transitions, rejections)

	eng := engine.New(log, tx, pricefeed.NewRedisFeed(rdb, durations.FeedMaxAge),
		engine.WithPolicy(enginePolicy),
		engine.WithSettlePolicy(settlePolicy),
		engine.WithLocker(locker),
		engine.WithEmitter(publisher),
		engine.WithHooks(engine.Hooks{
			OnTransition: func(op string) { transitions.WithLabelValues(op).Inc() },
			OnRejected:   func(op, code string) { rejections.WithLabelValues(op, code).Inc() },
		}),
	)

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, metrics.All(health...))
	apiSrv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.HTTPPort),
		Handler:           httpapi.NewServer(log, eng).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("escrow-service listening",
			zap.String("addr", apiSrv.Addr),
			zap.String("store", cfg.StoreMode),
			zap.String("lock", cfg.LockMode),
			zap.Int64("accept_tolerance_bps", enginePolicy.AcceptToleranceBps),
			zap.Int64("close_threshold_bps", enginePolicy.CloseThresholdBps),
			zap.String("settle_policy", pol.SettlePolicy),
		)
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
		return apiSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("escrow-service stopped with error", zap.Error(err))
	}
	log.Info("escrow-service stopped")
}
