package collector_routers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	internal_submission "github.com/rapidaai/speech-collector/api/collector-api/internal/submission"
	"github.com/rapidaai/speech-collector/config"
	"github.com/rapidaai/speech-collector/pkg/commons"
	"github.com/rapidaai/speech-collector/pkg/connectors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"
)

const testDemographics = `{"gender":"male","ageGroup":"18-30","region":"X"}`

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestConfig(t *testing.T) *config.AppConfig {
	t.Helper()
	public := t.TempDir()
	return &config.AppConfig{
		Name:             "collector-test",
		Version:          "0.0.1",
		PublicDir:        public,
		DatasetDir:       filepath.Join(public, "dataset"),
		PhrasesFile:      "phrases.txt",
		RegionsFile:      "regions.txt",
		MaxUploadBytes:   50 << 20,
		AudioExtensions:  ".wav",
		WriteConcurrency: 2,
		CorsOrigins:      "*",
		SubmissionTTL:    time.Hour,
	}
}

func newTestLogger(t *testing.T) commons.Logger {
	t.Helper()
	logger, err := commons.NewApplicationLogger(commons.Name("test-router"), commons.Path(t.TempDir()), commons.Console(false))
	require.NoError(t, err)
	return logger
}

type uploadForm struct {
	audio        map[string]string
	audioOrder   []string
	metadata     *string
	speakerID    string
	demographics string
	submissionID string
}

func (f uploadForm) encode(t *testing.T) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for _, name := range f.audioOrder {
		part, err := w.CreateFormFile("audio_files", name)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.audio[name]))
		require.NoError(t, err)
	}
	if f.metadata != nil {
		part, err := w.CreateFormFile("metadata", "blob")
		require.NoError(t, err)
		_, err = part.Write([]byte(*f.metadata))
		require.NoError(t, err)
	}
	require.NoError(t, w.WriteField("speaker_id", f.speakerID))
	if f.demographics != "" {
		require.NoError(t, w.WriteField("demographics", f.demographics))
	}
	if f.submissionID != "" {
		require.NoError(t, w.WriteField("submission_id", f.submissionID))
	}
	require.NoError(t, w.Close())
	return body, w.FormDataContentType()
}

func post(t *testing.T, engine *gin.Engine, f uploadForm) *httptest.ResponseRecorder {
	t.Helper()
	body, contentType := f.encode(t)
	req := httptest.NewRequest(http.MethodPost, "/api/upload-recordings", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func strPtr(s string) *string { return &s }

func metadataFile(cfg *config.AppConfig) string {
	return filepath.Join(cfg.DatasetDir, "metadata.txt")
}

func TestUpload_PersistsTakesAndRewrittenMetadata(t *testing.T) {
	cfg := newTestConfig(t)
	engine := NewEngine(cfg, newTestLogger(t), nil, nil)

	rec := post(t, engine, uploadForm{
		audio:        map[string]string{"speaker1_0.wav": "RIFF0", "speaker1_2.wav": "RIFF2"},
		audioOrder:   []string{"speaker1_0.wav", "speaker1_2.wav"},
		metadata:     strPtr("speaker1_0.wav|hello there|hello there\nspeaker1_2.wav|good bye|good bye"),
		speakerID:    "speaker1",
		demographics: testDemographics,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Upload successful", resp["message"])
	assert.EqualValues(t, 2, resp["audioFiles"])
	assert.EqualValues(t, 2, resp["metadataLines"])

	take, err := os.ReadFile(filepath.Join(cfg.DatasetDir, "wavs", "speaker1_2.wav"))
	require.NoError(t, err)
	assert.Equal(t, "RIFF2", string(take))

	meta, err := os.ReadFile(metadataFile(cfg))
	require.NoError(t, err)
	assert.Equal(t,
		"speaker1_0|hello there|hello there|male|18-30|X\nspeaker1_2|good bye|good bye|male|18-30|X\n",
		string(meta))
}

func TestUpload_BareFileNames(t *testing.T) {
	cfg := newTestConfig(t)
	engine := NewEngine(cfg, newTestLogger(t), nil, nil)

	rec := post(t, engine, uploadForm{
		metadata:     strPtr("a.wav\nb.wav"),
		demographics: testDemographics,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	meta, err := os.ReadFile(metadataFile(cfg))
	require.NoError(t, err)
	assert.Equal(t, "a|male|18-30|X\nb|male|18-30|X\n", string(meta))
}

func TestUpload_MetadataAsPlainField(t *testing.T) {
	cfg := newTestConfig(t)
	engine := NewEngine(cfg, newTestLogger(t), nil, nil)

	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	require.NoError(t, w.WriteField("metadata", "a.wav|x|x"))
	require.NoError(t, w.WriteField("demographics", testDemographics))
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/upload-recordings", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	meta, err := os.ReadFile(metadataFile(cfg))
	require.NoError(t, err)
	assert.Equal(t, "a|x|x|male|18-30|X\n", string(meta))
}

func TestUpload_RejectsOtherMethods(t *testing.T) {
	cfg := newTestConfig(t)
	engine := NewEngine(cfg, newTestLogger(t), nil, nil)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		t.Run(method, func(t *testing.T) {
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, httptest.NewRequest(method, "/api/upload-recordings", nil))
			assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
			assert.JSONEq(t, `{"error":"Method not allowed"}`, rec.Body.String())
		})
	}
}

func TestUpload_MissingMetadataWritesNothing(t *testing.T) {
	cfg := newTestConfig(t)
	engine := NewEngine(cfg, newTestLogger(t), nil, nil)

	rec := post(t, engine, uploadForm{
		audio:        map[string]string{"a.wav": "x"},
		audioOrder:   []string{"a.wav"},
		demographics: testDemographics,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")

	_, err := os.Stat(metadataFile(cfg))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(cfg.DatasetDir, "wavs", "a.wav"))
	assert.True(t, os.IsNotExist(err))
}

func TestUpload_FilesystemFailureReturns500(t *testing.T) {
	cfg := newTestConfig(t)
	blocker := filepath.Join(cfg.PublicDir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	cfg.DatasetDir = filepath.Join(blocker, "dataset")
	engine := NewEngine(cfg, newTestLogger(t), nil, nil)

	rec := post(t, engine, uploadForm{
		audio:        map[string]string{"a.wav": "x"},
		audioOrder:   []string{"a.wav"},
		metadata:     strPtr("a.wav|hi|hi"),
		speakerID:    "s",
		demographics: testDemographics,
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Upload failed"}`, rec.Body.String())
	assert.NoFileExists(t, metadataFile(cfg))
}

func TestUpload_InvalidDemographicsWritesNothing(t *testing.T) {
	for name, demographics := range map[string]string{
		"not json":      "{gender:male}",
		"missing field": `{"gender":"male","ageGroup":"18-30"}`,
		"absent":        "",
	} {
		t.Run(name, func(t *testing.T) {
			cfg := newTestConfig(t)
			engine := NewEngine(cfg, newTestLogger(t), nil, nil)

			rec := post(t, engine, uploadForm{
				audio:        map[string]string{"a.wav": "x"},
				audioOrder:   []string{"a.wav"},
				metadata:     strPtr("a.wav|hi|hi"),
				demographics: demographics,
			})
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			_, err := os.Stat(cfg.DatasetDir)
			assert.True(t, os.IsNotExist(err))
		})
	}
}

func TestUpload_MalformedForm(t *testing.T) {
	cfg := newTestConfig(t)
	engine := NewEngine(cfg, newTestLogger(t), nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/upload-recordings", bytes.NewBufferString("not multipart"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=nope")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpload_TooLarge(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.MaxUploadBytes = 64
	engine := NewEngine(cfg, newTestLogger(t), nil, nil)

	rec := post(t, engine, uploadForm{
		audio:        map[string]string{"a.wav": string(bytes.Repeat([]byte{1}, 1024))},
		audioOrder:   []string{"a.wav"},
		metadata:     strPtr("a.wav"),
		demographics: testDemographics,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPhrases_ServesFileAndFailsWhenMissing(t *testing.T) {
	cfg := newTestConfig(t)
	require.NoError(t, os.WriteFile(filepath.Join(cfg.PublicDir, "phrases.txt"), []byte("one\ntwo\n"), 0o644))
	engine := NewEngine(cfg, newTestLogger(t), nil, nil)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/phrases", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "one\ntwo\n", rec.Body.String())

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/phrases.txt", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/regions", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Failed to read regions file"}`, rec.Body.String())
}

func TestHealthz(t *testing.T) {
	engine := NewEngine(newTestConfig(t), newTestLogger(t), nil, nil)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readiness/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSubmissions_DisabledLedger(t *testing.T) {
	engine := NewEngine(newTestConfig(t), newTestLogger(t), nil, nil)

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/submissions", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMigrateLedger_DisabledIsNoop(t *testing.T) {
	assert.NoError(t, MigrateLedger(context.Background(), nil, newTestLogger(t)))
}

func TestSubmissions_LedgerRecordsUploads(t *testing.T) {
	cfg := newTestConfig(t)
	logger := newTestLogger(t)
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{
		Logger: gorm_logger.Default.LogMode(gorm_logger.Silent),
	})
	require.NoError(t, err)
	connector := connectors.NewDatabaseConnectorFromDB(db, logger)
	require.NoError(t, MigrateLedger(context.Background(), connector, logger))

	engine := NewEngine(cfg, logger, connector, nil)
	rec := post(t, engine, uploadForm{
		audio:        map[string]string{"s_0.wav": "x"},
		audioOrder:   []string{"s_0.wav"},
		metadata:     strPtr("s_0.wav|hi|hi"),
		speakerID:    "s",
		demographics: testDemographics,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/submissions?limit=5", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Submissions []internal_submission.Submission `json:"submissions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Submissions, 1)
	assert.Equal(t, "s", resp.Submissions[0].SpeakerID)
	assert.Equal(t, 1, resp.Submissions[0].TakeCount)
	assert.Equal(t, "X", resp.Submissions[0].Region)

	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/submissions?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type mockRedisConnector struct {
	connectors.RedisConnector
	client *redis.Client
}

func (m *mockRedisConnector) GetConnection() *redis.Client { return m.client }

func TestUpload_DuplicateSubmissionRejected(t *testing.T) {
	cfg := newTestConfig(t)
	client, mock := redismock.NewClientMock()
	hostname, _ := os.Hostname()
	owner := fmt.Sprintf("%s:%d", hostname, os.Getpid())
	mock.ExpectSetNX("{speech:submission}:sub-1", owner, time.Hour).SetVal(true)
	mock.ExpectSetNX("{speech:submission}:sub-1", owner, time.Hour).SetVal(false)

	engine := NewEngine(cfg, newTestLogger(t), nil, &mockRedisConnector{client: client})
	form := uploadForm{
		metadata:     strPtr("a.wav|hi|hi"),
		demographics: testDemographics,
		submissionID: "sub-1",
	}
	assert.Equal(t, http.StatusOK, post(t, engine, form).Code)
	assert.Equal(t, http.StatusConflict, post(t, engine, form).Code)
	assert.NoError(t, mock.ExpectationsWereMet())

	meta, err := os.ReadFile(metadataFile(cfg))
	require.NoError(t, err)
	assert.Equal(t, "a|hi|hi|male|18-30|X\n", string(meta), "duplicate must not append lines")
}
