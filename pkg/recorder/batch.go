// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package recorder

import (
	"context"
	"fmt"
	"strings"

	"github.com/rapidaai/speech-collector/pkg/types"
)

// Uploader delivers a finished batch to the ingestion endpoint.
type Uploader interface {
	Upload(ctx context.Context, batch *types.Batch) error
}

var transcriptReplacer = strings.NewReplacer("|", " ", "\r", " ", "\n", " ")

// TakeFileName is the upload name of the take recorded for phrase index.
func TakeFileName(speakerID string, index int) string {
	return fmt.Sprintf("%s_%d.wav", speakerID, index)
}

// BuildBatch packages the recorded takes in phrase order. takes is indexed by
// phrase; nil entries are skipped so file names keep the phrase index.
func BuildBatch(speakerID string, phrases []string, takes [][]byte, demographics types.Demographics) *types.Batch {
	batch := &types.Batch{
		SpeakerID:    speakerID,
		Demographics: demographics,
	}
	lines := make([]string, 0, len(takes))
	for i, audio := range takes {
		if audio == nil || i >= len(phrases) {
			continue
		}
		name := TakeFileName(speakerID, i)
		phrase := transcriptReplacer.Replace(phrases[i])
		batch.Takes = append(batch.Takes, types.AudioTake{FileName: name, Audio: audio})
		lines = append(lines, name+"|"+phrase+"|"+phrase)
	}
	batch.Metadata = strings.Join(lines, "\n")
	return batch
}
