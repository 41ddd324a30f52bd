// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package types

// AudioTake is one recorded take as it travels in an upload.
type AudioTake struct {
	FileName string
	Audio    []byte
}

// Batch is everything a single submission sends to the ingestion endpoint.
type Batch struct {
	SpeakerID    string
	SubmissionID string
	Takes        []AudioTake
	// Metadata holds one "file.wav|phrase|phrase" line per take.
	Metadata     string
	Demographics Demographics
}
