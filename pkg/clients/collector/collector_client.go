// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package collector_client

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rapidaai/speech-collector/pkg/commons"
	"github.com/rapidaai/speech-collector/pkg/types"
	"github.com/rapidaai/speech-collector/pkg/utils"
)

const DefaultTimeout = 2 * time.Minute

type CollectorServiceClient interface {
	Phrases(ctx context.Context) ([]string, error)
	Regions(ctx context.Context) ([]string, error)
	Upload(ctx context.Context, batch *types.Batch) error
}

type collectorServiceClient struct {
	logger commons.Logger
	client *resty.Client
}

type errorResponse struct {
	Error string `json:"error"`
}

func NewCollectorServiceClient(baseURL string, logger commons.Logger) CollectorServiceClient {
	return &collectorServiceClient{
		logger: logger,
		client: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(DefaultTimeout),
	}
}

func (c *collectorServiceClient) Phrases(ctx context.Context) ([]string, error) {
	return c.lines(ctx, "/api/phrases")
}

func (c *collectorServiceClient) Regions(ctx context.Context) ([]string, error) {
	return c.lines(ctx, "/api/regions")
}

func (c *collectorServiceClient) lines(ctx context.Context, path string) ([]string, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		SetError(&errorResponse{}).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("request %s failed: %w", path, err)
	}
	if resp.IsError() {
		return nil, responseError(path, resp)
	}
	return ParseLines(resp.String()), nil
}

// Upload sends the batch as one multipart request.
func (c *collectorServiceClient) Upload(ctx context.Context, batch *types.Batch) error {
	fields := make([]*resty.MultipartField, 0, len(batch.Takes)+1)
	for _, take := range batch.Takes {
		fields = append(fields, &resty.MultipartField{
			Param:       "audio_files",
			FileName:    take.FileName,
			ContentType: "audio/wav",
			Reader:      bytes.NewReader(take.Audio),
		})
	}
	fields = append(fields, &resty.MultipartField{
		Param:       "metadata",
		FileName:    "metadata.txt",
		ContentType: "text/plain",
		Reader:      strings.NewReader(batch.Metadata),
	})

	form := map[string]string{
		"speaker_id":   batch.SpeakerID,
		"demographics": batch.Demographics.JSON(),
	}
	if batch.SubmissionID != "" {
		form["submission_id"] = batch.SubmissionID
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetMultipartFields(fields...).
		SetMultipartFormData(form).
		SetError(&errorResponse{}).
		Post("/api/upload-recordings")
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	if resp.IsError() {
		return responseError("/api/upload-recordings", resp)
	}
	c.logger.Infow("submission uploaded",
		"speakerId", batch.SpeakerID,
		"takes", len(batch.Takes))
	return nil
}

func responseError(path string, resp *resty.Response) error {
	if e, ok := resp.Error().(*errorResponse); ok && e.Error != "" {
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode(), e.Error)
	}
	return fmt.Errorf("%s returned %d", path, resp.StatusCode())
}

// ParseLines splits a text asset into trimmed, non-blank lines.
func ParseLines(text string) []string {
	return utils.SplitList(text, "\n")
}
