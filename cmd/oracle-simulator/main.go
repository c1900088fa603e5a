package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/price-escrow-platform/internal/oracle-simulator/oracle"
	"github.com/radieske/price-escrow-platform/internal/shared/config"
	"github.com/radieske/price-escrow-platform/internal/shared/logger"
	"github.com/radieske/price-escrow-platform/internal/shared/metrics"
)

func main() {
	cfg := config.Load()
	log, err := logger.New("oracle-simulator", cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Métricas Prometheus para monitoramento de conexões e mensagens
	wsConnections := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "oracle_ws_connections",
		Help: "Clientes WebSocket conectados",
	})
	wsMessagesSent := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "oracle_ws_messages_sent_total",
		Help: "Total de mensagens WS enviadas",
	})
	prometheus.MustRegister(wsConnections, wsMessagesSent)

	hub := oracle.NewHub(log)
	hub.OnConnect = wsConnections.Inc
	hub.OnDisconnect = wsConnections.Dec
	hub.OnSent = wsMessagesSent.Inc

	s := oracle.NewServer(log, oracle.New(oracle.DefaultCatalog, time.Now().UnixNano(), 0.005), hub)

	// Gera e envia preços simulados a cada 3 segundos
	go s.Run(ctx, 3*time.Second)

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, nil)
	log.Info("oracle simulator (metrics) running", zap.String("addr", metricsSrv.Addr), zap.String("paths", "/healthz,/metrics"))

	// Servidor público (WS + controle de preço)
	publicSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
		_ = publicSrv.Shutdown(shutdownCtx)
	}()

	log.Info("oracle simulator (public) running", zap.String("addr", publicSrv.Addr), zap.String("paths", "/ws,/oracle/price"))
	if err := publicSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("public server error", zap.Error(err))
	}
}
