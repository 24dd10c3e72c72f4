package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/safar/farm-market/internal/cache"
	"github.com/safar/farm-market/internal/config"
	"github.com/safar/farm-market/internal/database"
	"github.com/safar/farm-market/internal/events"
	"github.com/safar/farm-market/internal/httpx"
	"github.com/safar/farm-market/internal/logger"
	"github.com/safar/farm-market/internal/market"
	"github.com/safar/farm-market/internal/store"
	"github.com/safar/farm-market/migrations"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("load config: " + err.Error())
	}

	log := logger.New(cfg.App.Env).With(zap.String("service", cfg.App.ServiceName))
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatal("Connect to database", zap.Error(err))
	}
	defer db.Close()
	log.Info("Connected to database")

	if cfg.App.AutoMigrate {
		applied, err := migrations.Run(ctx, db, migrations.Up)
		if err != nil {
			log.Fatal("Run migrations", zap.Error(err))
		}
		log.Info("Migrations applied", zap.Strings("files", applied))
	}

	st := store.New(db, store.WithReserveOnOrder(cfg.Market.ReserveOnOrder))

	var items market.ItemStore = st
	if cfg.Redis.Addr != "" {
		rdb := cache.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("Redis unreachable, listing cache will fall through", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		items = cache.NewListings(st, rdb, cfg.Redis.TTL, log)
		log.Info("Listing cache enabled", zap.String("addr", cfg.Redis.Addr), zap.Duration("ttl", cfg.Redis.TTL))
	}

	var publisher events.Publisher = events.Nop{}
	var producer *events.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer = events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Buffer, log)
		producer.Start(ctx)
		publisher = producer
		log.Info("Event publishing enabled", zap.Strings("brokers", cfg.Kafka.Brokers))
	}

	h := &httpx.Handler{
		Market: market.NewService(items, st, publisher, cfg.App.ServiceName, log),
		Orders: st,
		Logger: log,
	}
	router := httpx.NewRouter(log)
	h.Register(router)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("Server starting", zap.String("port", cfg.Server.Port), zap.Bool("reserve_on_order", cfg.Market.ReserveOnOrder))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown", zap.Error(err))
	}

	if producer != nil {
		producer.Close()
		producer.WaitClosed()
	}
}
