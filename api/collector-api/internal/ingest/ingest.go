// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package internal_ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rapidaai/speech-collector/pkg/commons"
	"github.com/rapidaai/speech-collector/pkg/types"
	"github.com/rapidaai/speech-collector/pkg/utils"
	"golang.org/x/sync/errgroup"
)

const (
	WavsDirName      = "wavs"
	MetadataFileName = "metadata.txt"

	DefaultConcurrency = 4
)

var (
	ErrMissingMetadata = errors.New("metadata part is missing")
	ErrInvalidFilename = errors.New("invalid audio filename")
)

// Part is one uploaded audio take. Open is called once, when the take is
// copied into the dataset.
type Part struct {
	FileName string
	Open     func() (io.ReadCloser, error)
}

// Upload is a parsed submission batch.
type Upload struct {
	SpeakerID    string
	Audio        []Part
	Metadata     string
	Demographics types.Demographics
}

type Result struct {
	AudioFiles    []string
	MetadataLines []string
}

// Ingestor writes submission batches into the dataset directory.
type Ingestor interface {
	// EnsureLayout creates the dataset root and its wavs directory.
	EnsureLayout() error
	// Ingest persists every audio part and appends the rewritten metadata
	// lines. Audio already written is not rolled back when a later step fails.
	Ingest(ctx context.Context, upload *Upload) (*Result, error)
	DatasetDir() string
}

type Option func(*datasetIngestor)

// WithExtensions sets the audio extensions stripped from metadata lines.
func WithExtensions(extensions ...string) Option {
	return func(i *datasetIngestor) { i.extensions = extensions }
}

// WithConcurrency bounds how many audio parts are written at once.
func WithConcurrency(n int) Option {
	return func(i *datasetIngestor) {
		if n > 0 {
			i.concurrency = n
		}
	}
}

type datasetIngestor struct {
	logger      commons.Logger
	datasetDir  string
	extensions  []string
	concurrency int
}

func NewIngestor(logger commons.Logger, datasetDir string, opts ...Option) Ingestor {
	i := &datasetIngestor{
		logger:      logger,
		datasetDir:  datasetDir,
		extensions:  []string{".wav"},
		concurrency: DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *datasetIngestor) DatasetDir() string {
	return i.datasetDir
}

func (i *datasetIngestor) wavsDir() string {
	return filepath.Join(i.datasetDir, WavsDirName)
}

func (i *datasetIngestor) EnsureLayout() error {
	if err := os.MkdirAll(i.wavsDir(), 0o755); err != nil {
		return fmt.Errorf("failed to create dataset layout under %s: %w", i.datasetDir, err)
	}
	return nil
}

func (i *datasetIngestor) Ingest(ctx context.Context, upload *Upload) (*Result, error) {
	names := make([]string, len(upload.Audio))
	for idx, part := range upload.Audio {
		name, err := SanitizeFileName(part.FileName)
		if err != nil {
			return nil, err
		}
		names[idx] = name
	}
	// parts reducing to the same name are written once, the last one wins
	last := make(map[string]int, len(names))
	for idx, name := range names {
		last[name] = idx
	}
	lines := RewriteMetadata(upload.Metadata, i.extensions, upload.Demographics)

	if err := i.EnsureLayout(); err != nil {
		return nil, err
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(i.concurrency)
	var written []string
	for idx, part := range upload.Audio {
		name := names[idx]
		if last[name] != idx {
			i.logger.Warnf("dropping duplicate audio part %s from speaker %s", part.FileName, upload.SpeakerID)
			continue
		}
		written = append(written, name)
		part := part
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			return i.persistTake(name, part)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := i.appendMetadata(lines); err != nil {
		return nil, err
	}

	i.logger.Infow("ingested submission",
		"speakerId", upload.SpeakerID,
		"audioFiles", len(written),
		"metadataLines", len(lines))
	return &Result{AudioFiles: written, MetadataLines: lines}, nil
}

func (i *datasetIngestor) persistTake(name string, part Part) error {
	src, err := part.Open()
	if err != nil {
		return fmt.Errorf("failed to open upload part %s: %w", name, err)
	}
	defer src.Close()

	target := filepath.Join(i.wavsDir(), name)
	dst, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", target, err)
	}
	n, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	i.logger.Debugf("persisted take %s (%d bytes)", name, n)
	return nil
}

// appendMetadata issues a single O_APPEND write so lines of one request are
// never split by another writer on local filesystems.
func (i *datasetIngestor) appendMetadata(lines []string) error {
	if len(lines) == 0 {
		return nil
	}
	path := filepath.Join(i.datasetDir, MetadataFileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	_, err = f.WriteString(strings.Join(lines, "\n") + "\n")
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed to append to %s: %w", path, err)
	}
	return nil
}

// RewriteMetadata strips every audio extension occurrence from the client's
// transcript text and appends the demographics suffix to each non-blank line.
func RewriteMetadata(content string, extensions []string, d types.Demographics) []string {
	for _, ext := range extensions {
		if ext != "" {
			content = strings.ReplaceAll(content, ext, "")
		}
	}
	suffix := d.Suffix()
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		if utils.IsEmpty(line) {
			continue
		}
		lines = append(lines, line+suffix)
	}
	return lines
}

// SanitizeFileName reduces a client supplied filename to its base name.
func SanitizeFileName(name string) (string, error) {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	switch base {
	case "", ".", "..", "/":
		return "", fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	return base, nil
}
