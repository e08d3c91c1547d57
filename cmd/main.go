package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marketline/orders-service/internal/application"
	"github.com/marketline/orders-service/internal/config"
	"github.com/marketline/orders-service/internal/gateway"
	"github.com/marketline/orders-service/internal/kafka"
	"github.com/marketline/orders-service/internal/logger"
	"github.com/marketline/orders-service/internal/metrics"
	"github.com/marketline/orders-service/internal/migrate"
	"github.com/marketline/orders-service/internal/presentation"
	"github.com/marketline/orders-service/internal/repository"
)

func main() {
	logger.Init()
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Warn("config load failed", "err", err)
		os.Exit(1)
	}

	// DB pool
	pool, err := pgxpool.New(context.Background(), cfg.DB_STRING)
	if err != nil {
		logger.Warn("pgxpool new failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(context.Background()); err != nil {
		logger.Warn("db ping failed", "err", err)
		os.Exit(1)
	}
	logger.Info("db connected")

	if err := migrate.Up(cfg.DB_STRING); err != nil {
		logger.Warn("migrations failed", "err", err)
		os.Exit(1)
	}

	// Wiring
	orderRepo := repository.NewOrderRepository(pool)
	paymentRepo := repository.NewPaymentRepository(pool)
	notifRepo := repository.NewNotificationRepository(pool)

	gw := gateway.NewClient(gateway.Config{
		PartnerCode: cfg.GATEWAY_PARTNER_CODE,
		AccessKey:   cfg.GATEWAY_ACCESS_KEY,
		SecretKey:   cfg.GATEWAY_SECRET_KEY,
		CreateURL:   cfg.GATEWAY_CREATE_URL,
		RedirectURL: cfg.GATEWAY_REDIRECT_URL,
		IPNURL:      cfg.GATEWAY_IPN_URL,
		Timeout:     cfg.GatewayTimeout,
	})

	prod := kafka.NewProducer(cfg.KAFKA_BROKERS, cfg.KAFKA_TOPIC)
	defer prod.Close()

	ordersSvc := application.NewOrdersService(orderRepo, prod, cfg.ShippingFee)
	paymentsSvc := application.NewPaymentsService(orderRepo, paymentRepo, gw, prod)

	// Notifications consumer (turns lifecycle events into notification rows)
	_, _ = kafka.StartConsumer(
		context.Background(),
		notifRepo,
		kafka.ConsumerConfig{
			Brokers: cfg.KAFKA_BROKERS,
			Topic:   cfg.KAFKA_TOPIC,
			GroupID: cfg.KAFKA_GROUP,
		},
	)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(metrics.Middleware)

	// API
	h := presentation.NewHandler(ordersSvc, paymentsSvc)
	h.Register(r)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	addr := ":" + cfg.HTTP_PORT
	logger.Info("starting http", "addr", addr)
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Warn("http server crashed", "err", err)
		os.Exit(1)
	}
}
