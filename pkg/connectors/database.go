// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package connectors

import (
	"context"
	"fmt"

	"github.com/rapidaai/speech-collector/config"
	"github.com/rapidaai/speech-collector/pkg/commons"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"
)

// DatabaseConnector hands out request scoped gorm sessions.
type DatabaseConnector interface {
	Connect(ctx context.Context) error
	DB(ctx context.Context) *gorm.DB
	IsConnected(ctx context.Context) bool
	Disconnect(ctx context.Context) error
}

type databaseConnector struct {
	cfg    config.LedgerConfig
	logger commons.Logger
	db     *gorm.DB
}

func NewDatabaseConnector(cfg config.LedgerConfig, logger commons.Logger) DatabaseConnector {
	return &databaseConnector{cfg: cfg, logger: logger}
}

// NewDatabaseConnectorFromDB wraps an already opened gorm handle.
func NewDatabaseConnectorFromDB(db *gorm.DB, logger commons.Logger) DatabaseConnector {
	return &databaseConnector{db: db, logger: logger}
}

func (c *databaseConnector) dialector() (gorm.Dialector, error) {
	switch c.cfg.Driver {
	case "sqlite":
		return sqlite.Open(c.cfg.Dsn), nil
	case "postgres":
		return postgres.Open(c.cfg.Dsn), nil
	}
	return nil, fmt.Errorf("unsupported ledger driver %q", c.cfg.Driver)
}

func (c *databaseConnector) Connect(ctx context.Context) error {
	dialector, err := c.dialector()
	if err != nil {
		return err
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gorm_logger.Default.LogMode(gorm_logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open %s ledger: %w", c.cfg.Driver, err)
	}
	c.db = db
	c.logger.Infof("connected to %s ledger", c.cfg.Driver)
	return nil
}

func (c *databaseConnector) DB(ctx context.Context) *gorm.DB {
	return c.db.WithContext(ctx)
}

func (c *databaseConnector) IsConnected(ctx context.Context) bool {
	if c.db == nil {
		return false
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return false
	}
	return sqlDB.PingContext(ctx) == nil
}

func (c *databaseConnector) Disconnect(ctx context.Context) error {
	if c.db == nil {
		return nil
	}
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
