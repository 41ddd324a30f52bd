// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_idempotency

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rapidaai/speech-collector/pkg/commons"
)

const (
	// hash tag keeps every submission key in one Redis Cluster slot
	submissionKeyPrefix = "{speech:submission}:"

	DefaultTTL = 24 * time.Hour
)

var ErrDuplicateSubmission = errors.New("submission already accepted")

// Guard rejects a submission id that was already accepted.
type Guard interface {
	// Acquire claims the id. An empty id always succeeds.
	Acquire(ctx context.Context, submissionID string) error
	// Release drops a claim so that a failed submission can be retried.
	Release(ctx context.Context, submissionID string)
}

type redisGuard struct {
	client     *redis.Client
	logger     commons.Logger
	ttl        time.Duration
	instanceID string
}

// NewGuard returns a redis backed guard, or a no-op guard when client is nil.
func NewGuard(client *redis.Client, logger commons.Logger, ttl time.Duration) Guard {
	if client == nil {
		return noopGuard{}
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	hostname, _ := os.Hostname()
	return &redisGuard{
		client:     client,
		logger:     logger,
		ttl:        ttl,
		instanceID: fmt.Sprintf("%s:%d", hostname, os.Getpid()),
	}
}

func submissionKey(id string) string {
	return submissionKeyPrefix + id
}

func (g *redisGuard) Acquire(ctx context.Context, submissionID string) error {
	if submissionID == "" {
		return nil
	}
	ok, err := g.client.SetNX(ctx, submissionKey(submissionID), g.instanceID, g.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to claim submission %s: %w", submissionID, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrDuplicateSubmission, submissionID)
	}
	g.logger.Debugw("claimed submission", "submissionId", submissionID)
	return nil
}

func (g *redisGuard) Release(ctx context.Context, submissionID string) {
	if submissionID == "" {
		return
	}
	if err := g.client.Del(ctx, submissionKey(submissionID)).Err(); err != nil {
		g.logger.Warnw("failed to release submission claim", "submissionId", submissionID, "error", err)
	}
}

type noopGuard struct{}

func (noopGuard) Acquire(context.Context, string) error { return nil }
func (noopGuard) Release(context.Context, string)       {}
