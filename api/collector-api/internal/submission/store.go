// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_submission

import (
	"context"
	"fmt"

	"github.com/rapidaai/speech-collector/pkg/commons"
	"github.com/rapidaai/speech-collector/pkg/connectors"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// Store records accepted submissions.
type Store interface {
	// Migrate creates or updates the submissions table.
	Migrate(ctx context.Context) error
	Save(ctx context.Context, s *Submission) error
	// List returns the most recent submissions first.
	List(ctx context.Context, limit int) ([]*Submission, error)
}

type gormStore struct {
	db     connectors.DatabaseConnector
	logger commons.Logger
}

func NewStore(db connectors.DatabaseConnector, logger commons.Logger) Store {
	return &gormStore{db: db, logger: logger}
}

func (s *gormStore) Migrate(ctx context.Context) error {
	if err := s.db.DB(ctx).AutoMigrate(&Submission{}); err != nil {
		return fmt.Errorf("failed to migrate submissions: %w", err)
	}
	return nil
}

func (s *gormStore) Save(ctx context.Context, sub *Submission) error {
	if err := s.db.DB(ctx).Create(sub).Error; err != nil {
		return fmt.Errorf("failed to save submission for speaker %s: %w", sub.SpeakerID, err)
	}
	s.logger.Debugf("saved submission: id=%s, speaker=%s, takes=%d", sub.Id, sub.SpeakerID, sub.TakeCount)
	return nil
}

func (s *gormStore) List(ctx context.Context, limit int) ([]*Submission, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	var out []*Submission
	if err := s.db.DB(ctx).Order("created_date desc").Limit(limit).Find(&out).Error; err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	return out, nil
}
