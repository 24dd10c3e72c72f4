package main

import (
	"context"
	"os"

	"github.com/safar/farm-market/internal/config"
	"github.com/safar/farm-market/internal/database"
	"github.com/safar/farm-market/internal/logger"
	"github.com/safar/farm-market/migrations"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("load config: " + err.Error())
	}

	log := logger.New(cfg.App.Env)
	defer func() { _ = log.Sync() }()

	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate [up|down]")
	}

	direction, err := migrations.ParseDirection(os.Args[1])
	if err != nil {
		log.Fatal("Invalid direction", zap.Error(err))
	}

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		log.Fatal("Connect to database", zap.Error(err))
	}
	defer db.Close()

	applied, err := migrations.Run(context.Background(), db, direction)
	if err != nil {
		log.Fatal("Run migrations", zap.Error(err))
	}

	for _, name := range applied {
		log.Info("Ran migration", zap.String("file", name))
	}
	log.Info("Migrations complete", zap.Int("count", len(applied)), zap.String("direction", string(direction)))
}
