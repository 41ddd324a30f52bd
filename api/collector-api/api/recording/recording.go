// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.

package recording_api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	internal_idempotency "github.com/rapidaai/speech-collector/api/collector-api/internal/idempotency"
	internal_ingest "github.com/rapidaai/speech-collector/api/collector-api/internal/ingest"
	internal_submission "github.com/rapidaai/speech-collector/api/collector-api/internal/submission"
	"github.com/rapidaai/speech-collector/config"
	"github.com/rapidaai/speech-collector/pkg/commons"
	"github.com/rapidaai/speech-collector/pkg/connectors"
	"github.com/rapidaai/speech-collector/pkg/types"
)

// multipart field names
const (
	FieldAudioFiles   = "audio_files"
	FieldMetadata     = "metadata"
	FieldSpeakerID    = "speaker_id"
	FieldDemographics = "demographics"
	FieldSubmissionID = "submission_id"
)

type recordingApi struct {
	cfg      *config.AppConfig
	logger   commons.Logger
	ingestor internal_ingest.Ingestor
	ledger   internal_submission.Store
	guard    internal_idempotency.Guard
}

// NewRecordingApi wires the upload handler. db and redis are optional; a nil
// connector disables the submission ledger or the duplicate guard.
func NewRecordingApi(cfg *config.AppConfig, logger commons.Logger,
	db connectors.DatabaseConnector,
	redis connectors.RedisConnector,
) *recordingApi {
	api := &recordingApi{
		cfg:    cfg,
		logger: logger,
		ingestor: internal_ingest.NewIngestor(logger, cfg.DatasetDir,
			internal_ingest.WithExtensions(cfg.Extensions()...),
			internal_ingest.WithConcurrency(cfg.WriteConcurrency),
		),
		guard: internal_idempotency.NewGuard(nil, logger, cfg.SubmissionTTL),
	}
	if db != nil {
		api.ledger = internal_submission.NewStore(db, logger)
	}
	if redis != nil {
		api.guard = internal_idempotency.NewGuard(redis.GetConnection(), logger, cfg.SubmissionTTL)
	}
	return api
}

func jsonError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

// MethodNotAllowed answers every non-POST request to the upload route.
func MethodNotAllowed(c *gin.Context) {
	jsonError(c, http.StatusMethodNotAllowed, "Method not allowed")
}

// UploadRecordings ingests one submission batch.
//
// @Router /api/upload-recordings [post]
// @Accept multipart/form-data
// @Produce json
// @Success 200 {object} map[string]interface{}
func (api *recordingApi) UploadRecordings(c *gin.Context) {
	ctx := c.Request.Context()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, api.cfg.MaxUploadBytes)

	form, err := c.MultipartForm()
	if err != nil {
		api.logger.Errorf("unable to parse upload form: %v", err)
		jsonError(c, http.StatusBadRequest, "Failed to parse form")
		return
	}
	defer func() {
		if err := form.RemoveAll(); err != nil {
			api.logger.Warnf("unable to remove temporary upload files: %v", err)
		}
	}()

	metadata, err := api.readMetadata(form)
	if err != nil {
		api.logger.Errorf("rejecting upload: %v", err)
		jsonError(c, http.StatusBadRequest, "Missing metadata")
		return
	}
	demographics, err := types.ParseDemographics(firstValue(form, FieldDemographics))
	if err != nil {
		api.logger.Errorf("rejecting upload: %v", err)
		jsonError(c, http.StatusBadRequest, "Invalid demographics")
		return
	}

	speakerID := firstValue(form, FieldSpeakerID)
	submissionID := firstValue(form, FieldSubmissionID)
	if err := api.guard.Acquire(ctx, submissionID); err != nil {
		if errors.Is(err, internal_idempotency.ErrDuplicateSubmission) {
			jsonError(c, http.StatusConflict, "Duplicate submission")
			return
		}
		api.logger.Errorf("upload failed: %v", err)
		jsonError(c, http.StatusInternalServerError, "Upload failed")
		return
	}

	upload := &internal_ingest.Upload{
		SpeakerID:    speakerID,
		Metadata:     metadata,
		Demographics: demographics,
	}
	for _, fh := range form.File[FieldAudioFiles] {
		upload.Audio = append(upload.Audio, filePart(fh))
	}

	result, err := api.ingestor.Ingest(ctx, upload)
	if err != nil {
		api.guard.Release(ctx, submissionID)
		api.logger.Errorf("upload failed for speaker %s: %v", speakerID, err)
		if errors.Is(err, internal_ingest.ErrInvalidFilename) {
			jsonError(c, http.StatusBadRequest, "Invalid audio filename")
			return
		}
		jsonError(c, http.StatusInternalServerError, "Upload failed")
		return
	}

	api.record(c, speakerID, demographics, result)
	c.JSON(http.StatusOK, gin.H{
		"message":       "Upload successful",
		"audioFiles":    len(result.AudioFiles),
		"metadataLines": len(result.MetadataLines),
	})
}

// record writes the ledger row; a ledger failure never fails the upload.
func (api *recordingApi) record(c *gin.Context, speakerID string, d types.Demographics, result *internal_ingest.Result) {
	if api.ledger == nil {
		return
	}
	err := api.ledger.Save(c.Request.Context(), &internal_submission.Submission{
		SpeakerID: speakerID,
		TakeCount: len(result.AudioFiles),
		LineCount: len(result.MetadataLines),
		Gender:    d.Gender,
		AgeGroup:  d.AgeGroup,
		Region:    d.Region,
	})
	if err != nil {
		api.logger.Warnf("submission accepted but not recorded in ledger: %v", err)
	}
}

// ListSubmissions returns recent ledger rows.
//
// @Router /api/submissions [get]
// @Param limit query int false "maximum rows"
// @Produce json
func (api *recordingApi) ListSubmissions(c *gin.Context) {
	if api.ledger == nil {
		jsonError(c, http.StatusNotFound, "Submission ledger is disabled")
		return
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(internal_submission.DefaultListLimit)))
	if err != nil {
		jsonError(c, http.StatusBadRequest, "Invalid limit")
		return
	}
	submissions, err := api.ledger.List(c.Request.Context(), limit)
	if err != nil {
		api.logger.Errorf("unable to list submissions: %v", err)
		jsonError(c, http.StatusInternalServerError, "Unable to list submissions")
		return
	}
	c.JSON(http.StatusOK, gin.H{"submissions": submissions})
}

// readMetadata accepts the metadata either as a file part or a plain value.
func (api *recordingApi) readMetadata(form *multipart.Form) (string, error) {
	if files := form.File[FieldMetadata]; len(files) > 0 {
		f, err := files[0].Open()
		if err != nil {
			return "", fmt.Errorf("failed to open metadata part: %w", err)
		}
		defer f.Close()
		data, err := io.ReadAll(f)
		if err != nil {
			return "", fmt.Errorf("failed to read metadata part: %w", err)
		}
		return string(data), nil
	}
	if values := form.Value[FieldMetadata]; len(values) > 0 {
		return values[0], nil
	}
	return "", internal_ingest.ErrMissingMetadata
}

func firstValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

func filePart(fh *multipart.FileHeader) internal_ingest.Part {
	return internal_ingest.Part{
		FileName: fh.Filename,
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}
