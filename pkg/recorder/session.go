// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rapidaai/speech-collector/pkg/commons"
	"github.com/rapidaai/speech-collector/pkg/types"
)

var (
	ErrNoPhrases            = errors.New("no phrases to record")
	ErrAlreadyRecording     = errors.New("a recording is already in progress")
	ErrRecordingInProgress  = errors.New("stop the current recording first")
	ErrSubmissionInFlight   = errors.New("a submission is already in flight")
	ErrNotConfirmed         = errors.New("submission has not been requested")
	ErrNothingToSubmit      = errors.New("no recorded takes to submit")
	ErrDemographicsRequired = errors.New("demographics are required before submitting")
	ErrNoTake               = errors.New("no take recorded for this phrase")
)

type TakeStatus int

const (
	Unrecorded TakeStatus = iota
	Recording
	Recorded
)

func (s TakeStatus) String() string {
	switch s {
	case Recording:
		return "recording"
	case Recorded:
		return "recorded"
	default:
		return "unrecorded"
	}
}

type Option func(*Session)

// WithShuffle randomizes the phrase order once at session start.
func WithShuffle(r *rand.Rand) Option {
	return func(s *Session) { s.shuffle = r }
}

func WithSpeakerIDGenerator(fn func() string) Option {
	return func(s *Session) { s.newSpeakerID = fn }
}

// WithTempDir sets where playback files are materialized.
func WithTempDir(dir string) Option {
	return func(s *Session) { s.tempDir = dir }
}

// NewSpeakerID returns a random "speaker" label with 8 hex characters.
func NewSpeakerID() string {
	return "speaker" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// Session sequences one speaker through the phrase list. All methods are
// safe for concurrent use.
type Session struct {
	mu       sync.Mutex
	logger   commons.Logger
	mic      Microphone
	uploader Uploader

	phrases  []string
	takes    [][]byte
	playback map[int]string
	index    int

	capture      Capture
	captureIndex int

	speakerID    string
	demographics *types.Demographics
	confirming   bool
	inFlight     bool
	// submissionID survives failed uploads so a retry is recognised server side.
	submissionID string

	shuffle      *rand.Rand
	newSpeakerID func() string
	tempDir      string
}

func NewSession(logger commons.Logger, phrases []string, mic Microphone, uploader Uploader, opts ...Option) (*Session, error) {
	s := &Session{
		logger:       logger,
		mic:          mic,
		uploader:     uploader,
		playback:     make(map[int]string),
		newSpeakerID: NewSpeakerID,
		tempDir:      os.TempDir(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, p := range phrases {
		if p = strings.TrimSpace(p); p != "" {
			s.phrases = append(s.phrases, p)
		}
	}
	if len(s.phrases) == 0 {
		return nil, ErrNoPhrases
	}
	if s.shuffle != nil {
		s.shuffle.Shuffle(len(s.phrases), func(i, j int) {
			s.phrases[i], s.phrases[j] = s.phrases[j], s.phrases[i]
		})
	}
	s.takes = make([][]byte, len(s.phrases))
	s.speakerID = s.newSpeakerID()
	return s, nil
}

// Start opens the microphone for the current phrase. State is left untouched
// when the device cannot be acquired.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capture != nil {
		return ErrAlreadyRecording
	}
	if s.inFlight {
		return ErrSubmissionInFlight
	}
	capture, err := s.mic.Open(ctx)
	if err != nil {
		s.logger.Errorf("unable to open microphone: %v", err)
		return err
	}
	s.capture = capture
	s.captureIndex = s.index
	s.confirming = false
	return nil
}

// Stop finalizes the capture into the phrase that was current when it began.
// It is a no-op while idle.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capture == nil {
		return nil
	}
	capture, idx := s.capture, s.captureIndex
	s.capture = nil
	audio, err := capture.Stop()
	if err != nil {
		s.logger.Errorf("recording for phrase %d failed: %v", idx, err)
		return err
	}
	s.releasePlayback(idx)
	s.takes[idx] = audio
	return nil
}

// Redo discards the take of the current phrase.
func (s *Session) Redo() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capture != nil {
		return ErrRecordingInProgress
	}
	if s.inFlight {
		return ErrSubmissionInFlight
	}
	if s.takes[s.index] == nil {
		return nil
	}
	s.releasePlayback(s.index)
	s.takes[s.index] = nil
	return nil
}

func (s *Session) Next() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index < len(s.phrases)-1 {
		s.index++
	}
	return s.index
}

func (s *Session) Previous() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index > 0 {
		s.index--
	}
	return s.index
}

func (s *Session) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

func (s *Session) Len() int {
	return len(s.phrases)
}

// Current returns the current index and its phrase.
func (s *Session) Current() (int, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index, s.phrases[s.index]
}

// Progress renders "<index+1>/<total>".
func (s *Session) Progress() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("%d/%d", s.index+1, len(s.phrases))
}

func (s *Session) Status(i int) TakeStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status(i)
}

func (s *Session) status(i int) TakeStatus {
	if i < 0 || i >= len(s.takes) {
		return Unrecorded
	}
	if s.capture != nil && s.captureIndex == i {
		return Recording
	}
	if s.takes[i] != nil {
		return Recorded
	}
	return Unrecorded
}

func (s *Session) IsRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capture != nil
}

func (s *Session) RecordedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordedCount()
}

func (s *Session) recordedCount() int {
	n := 0
	for _, t := range s.takes {
		if t != nil {
			n++
		}
	}
	return n
}

func (s *Session) SpeakerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speakerID
}

// Playback materializes take i as a temp WAV file and returns its path. The
// file lives until the take is redone, submitted or the session closes.
func (s *Session) Playback(i int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i < 0 || i >= len(s.takes) || s.takes[i] == nil {
		return "", ErrNoTake
	}
	if path, ok := s.playback[i]; ok {
		return path, nil
	}
	f, err := os.CreateTemp(s.tempDir, fmt.Sprintf("%s_%d-*.wav", s.speakerID, i))
	if err != nil {
		return "", fmt.Errorf("unable to create playback file: %w", err)
	}
	if _, err := f.Write(s.takes[i]); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("unable to write playback file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("unable to write playback file: %w", err)
	}
	s.playback[i] = f.Name()
	return f.Name(), nil
}

func (s *Session) releasePlayback(i int) {
	path, ok := s.playback[i]
	if !ok {
		return
	}
	delete(s.playback, i)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warnf("unable to remove playback file %s: %v", path, err)
	}
}

func (s *Session) SetDemographics(d types.Demographics) error {
	if err := d.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrDemographicsRequired, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.demographics = &d
	return nil
}

func (s *Session) Demographics() (types.Demographics, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.demographics == nil {
		return types.Demographics{}, false
	}
	return *s.demographics, true
}

func (s *Session) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitBlocker() == nil
}

func (s *Session) submitBlocker() error {
	switch {
	case s.inFlight:
		return ErrSubmissionInFlight
	case s.capture != nil:
		return ErrRecordingInProgress
	case s.recordedCount() == 0:
		return ErrNothingToSubmit
	case s.demographics == nil:
		return ErrDemographicsRequired
	}
	return nil
}

// RequestSubmit opens the confirmation step.
func (s *Session) RequestSubmit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.submitBlocker(); err != nil {
		return err
	}
	s.confirming = true
	return nil
}

func (s *Session) CancelSubmit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirming = false
}

// ConfirmSubmit uploads every recorded take. On success takes are cleared,
// the speaker id is regenerated and the index returns to 0. On failure the
// local state is kept so the speaker can try again.
func (s *Session) ConfirmSubmit(ctx context.Context) error {
	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return ErrSubmissionInFlight
	}
	if !s.confirming {
		s.mu.Unlock()
		return ErrNotConfirmed
	}
	s.confirming = false
	if err := s.submitBlocker(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.submissionID == "" {
		s.submissionID = uuid.NewString()
	}
	batch := BuildBatch(s.speakerID, s.phrases, s.takes, *s.demographics)
	batch.SubmissionID = s.submissionID
	s.inFlight = true
	s.mu.Unlock()

	err := s.uploader.Upload(ctx, batch)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	if err != nil {
		s.logger.Errorf("submission %s for %s failed: %v", batch.SubmissionID, batch.SpeakerID, err)
		return fmt.Errorf("submission failed: %w", err)
	}
	s.logger.Infow("submission accepted",
		"submissionId", batch.SubmissionID,
		"speakerId", batch.SpeakerID,
		"takes", len(batch.Takes))
	for i := range s.takes {
		s.releasePlayback(i)
		s.takes[i] = nil
	}
	s.speakerID = s.newSpeakerID()
	s.submissionID = ""
	s.demographics = nil
	s.index = 0
	return nil
}

// Close stops an active capture and removes playback files.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	if s.capture != nil {
		_, err = s.capture.Stop()
		s.capture = nil
	}
	for i := range s.playback {
		s.releasePlayback(i)
	}
	return err
}
