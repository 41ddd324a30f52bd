// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package internal_submission

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Submission is the ledger row for one accepted upload. The dataset directory
// stays the source of truth; the ledger only makes batches queryable.
type Submission struct {
	Id          string    `json:"id" gorm:"type:varchar(36);primaryKey;<-:create"`
	SpeakerID   string    `json:"speakerId" gorm:"column:speaker_id;type:varchar(100);not null;default:'';index"`
	TakeCount   int       `json:"takeCount" gorm:"column:take_count;type:integer;not null;default:0"`
	LineCount   int       `json:"lineCount" gorm:"column:line_count;type:integer;not null;default:0"`
	Gender      string    `json:"gender" gorm:"column:gender;type:varchar(50);not null;default:''"`
	AgeGroup    string    `json:"ageGroup" gorm:"column:age_group;type:varchar(50);not null;default:''"`
	Region      string    `json:"region" gorm:"column:region;type:varchar(200);not null;default:''"`
	CreatedDate time.Time `json:"createdDate" gorm:"type:timestamp;not null;<-:create"`
}

func (Submission) TableName() string {
	return "submissions"
}

func (s *Submission) BeforeCreate(tx *gorm.DB) (err error) {
	if s.Id == "" {
		s.Id = uuid.New().String()
	}
	if s.CreatedDate.IsZero() {
		s.CreatedDate = time.Now()
	}
	return nil
}
