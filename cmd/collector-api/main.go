// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

// Speech collector ingestion service. Serves the phrase lists and accepts
// recording batches into the dataset directory.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	collector_routers "github.com/rapidaai/speech-collector/api/collector-api/router"
	"github.com/rapidaai/speech-collector/config"
	"github.com/rapidaai/speech-collector/pkg/commons"
	"github.com/rapidaai/speech-collector/pkg/connectors"
)

const shutdownTimeout = 15 * time.Second

func main() {
	v, err := config.InitConfig()
	if err != nil {
		log.Fatalf("unable to initialize config: %v", err)
	}
	cfg, err := config.GetApplicationConfig(v)
	if err != nil {
		log.Fatalf("invalid application config: %v", err)
	}

	logger, err := commons.NewApplicationLogger(
		commons.Name(cfg.Name),
		commons.Path(cfg.LogPath),
		commons.Level(cfg.LogLevel),
	)
	if err != nil {
		log.Fatalf("unable to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Errorf("collector stopped with error: %v", err)
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.AppConfig, logger commons.Logger) error {
	var (
		db    connectors.DatabaseConnector
		redis connectors.RedisConnector
	)
	if cfg.LedgerConfig.Driver != "" {
		db = connectors.NewDatabaseConnector(cfg.LedgerConfig, logger)
		if err := db.Connect(ctx); err != nil {
			return fmt.Errorf("unable to connect submission ledger: %w", err)
		}
		defer db.Disconnect(context.Background())
		if err := collector_routers.MigrateLedger(ctx, db, logger); err != nil {
			return fmt.Errorf("unable to migrate submission ledger: %w", err)
		}
	}
	if cfg.RedisConfig.Enabled() {
		redis = connectors.NewRedisConnector(cfg.RedisConfig, logger)
		if err := redis.Connect(ctx); err != nil {
			return fmt.Errorf("unable to connect redis: %w", err)
		}
		defer redis.Disconnect(context.Background())
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      collector_routers.NewEngine(cfg, logger, db, redis),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("%s %s listening on %s, dataset at %s", cfg.Name, cfg.Version, server.Addr, cfg.DatasetDir)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down collector")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
