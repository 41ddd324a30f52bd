// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package connectors

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rapidaai/speech-collector/config"
	"github.com/rapidaai/speech-collector/pkg/commons"
)

type RedisConnector interface {
	Connect(ctx context.Context) error
	GetConnection() *redis.Client
	IsConnected(ctx context.Context) bool
	Disconnect(ctx context.Context) error
}

type redisConnector struct {
	cfg    config.RedisConfig
	logger commons.Logger
	client *redis.Client
}

func NewRedisConnector(cfg config.RedisConfig, logger commons.Logger) RedisConnector {
	return &redisConnector{cfg: cfg, logger: logger}
}

func (r *redisConnector) Connect(ctx context.Context) error {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", r.cfg.Host, r.cfg.Port),
		Password: r.cfg.Password,
		DB:       r.cfg.Db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("failed to connect to redis %s:%d: %w", r.cfg.Host, r.cfg.Port, err)
	}
	r.client = client
	r.logger.Infof("connected to redis %s:%d", r.cfg.Host, r.cfg.Port)
	return nil
}

func (r *redisConnector) GetConnection() *redis.Client {
	return r.client
}

func (r *redisConnector) IsConnected(ctx context.Context) bool {
	return r.client != nil && r.client.Ping(ctx).Err() == nil
}

func (r *redisConnector) Disconnect(ctx context.Context) error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
