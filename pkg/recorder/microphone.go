package recorder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rapidaai/speech-collector/pkg/commons"
)

var ErrMicrophoneUnavailable = errors.New("microphone unavailable")

// Microphone acquires an input stream. Each Open starts a new capture.
type Microphone interface {
	Open(ctx context.Context) (Capture, error)
}

// Capture is an active stream; Stop releases it and returns a WAV encoded take.
type Capture interface {
	Stop() ([]byte, error)
}

// DefaultStartTimeout bounds how long Open waits for the device to deliver
// its first audio before handing the capture back.
const DefaultStartTimeout = 500 * time.Millisecond

const firstChunkSize = 4096

// ArecordMicrophone captures raw LINEAR16 from ALSA's arecord.
type ArecordMicrophone struct {
	logger       commons.Logger
	config       AudioConfig
	device       string
	binary       string
	startTimeout time.Duration
}

func NewArecordMicrophone(logger commons.Logger, device string, cfg AudioConfig) *ArecordMicrophone {
	return &ArecordMicrophone{
		logger:       logger,
		config:       cfg,
		device:       device,
		binary:       "arecord",
		startTimeout: DefaultStartTimeout,
	}
}

func (m *ArecordMicrophone) args() []string {
	args := []string{
		"-q",
		"-t", "raw",
		"-f", "S16_LE",
		"-r", strconv.FormatUint(uint64(m.config.SampleRate), 10),
		"-c", strconv.FormatUint(uint64(m.config.Channels), 10),
	}
	if m.device != "" {
		args = append(args, "-D", m.device)
	}
	return args
}

// Open starts arecord and waits until the first audio arrives or the process
// exits. arecord opens the ALSA device only after it is running, so a busy or
// missing device surfaces here as an exit without audio.
func (m *ArecordMicrophone) Open(ctx context.Context) (Capture, error) {
	path, err := exec.LookPath(m.binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMicrophoneUnavailable, err)
	}
	cmd := exec.CommandContext(ctx, path, m.args()...)
	// arecord flushes its buffer on SIGINT; a hard kill would lose the tail.
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMicrophoneUnavailable, err)
	}
	capture := &arecordCapture{
		logger: m.logger,
		config: m.config,
		cmd:    cmd,
		done:   make(chan struct{}),
	}
	cmd.Stderr = &capture.stderr
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMicrophoneUnavailable, err)
	}

	// first carries the size of the first read; zero means arecord exited
	// without producing audio.
	first := make(chan int, 1)
	go func() {
		defer close(capture.done)
		buf := make([]byte, firstChunkSize)
		n, err := stdout.Read(buf)
		first <- n
		pcm := buf[:n]
		if err == nil {
			var rest []byte
			rest, err = io.ReadAll(stdout)
			pcm = append(pcm, rest...)
		}
		if err != nil && !errors.Is(err, io.EOF) {
			capture.readErr = err
		}
		capture.pcm = pcm
	}()

	timer := time.NewTimer(m.startTimeout)
	defer timer.Stop()
	select {
	case n := <-first:
		if n == 0 {
			<-capture.done
			_ = cmd.Wait()
			return nil, fmt.Errorf("%w: %s", ErrMicrophoneUnavailable, capture.stderrText())
		}
	case <-timer.C:
		m.logger.Debugf("no audio from %s after %s, keeping the capture open", path, m.startTimeout)
	case <-ctx.Done():
		capture.Stop()
		return nil, ctx.Err()
	}
	m.logger.Debugf("microphone opened with %s %s", path, strings.Join(m.args(), " "))
	return capture, nil
}

type arecordCapture struct {
	logger  commons.Logger
	config  AudioConfig
	cmd     *exec.Cmd
	stderr  bytes.Buffer
	done    chan struct{}
	pcm     []byte
	readErr error

	once sync.Once
	wav  []byte
	err  error
}

func (c *arecordCapture) Stop() ([]byte, error) {
	c.once.Do(func() {
		if err := c.cmd.Process.Signal(os.Interrupt); err != nil {
			_ = c.cmd.Process.Kill()
		}
		<-c.done
		// arecord exits non-zero when interrupted, that is the normal stop path.
		var exitErr *exec.ExitError
		if err := c.cmd.Wait(); err != nil && !errors.As(err, &exitErr) {
			c.logger.Warnf("arecord did not exit cleanly: %v", err)
		}
		if c.readErr != nil {
			c.err = fmt.Errorf("unable to read captured audio: %w", c.readErr)
			return
		}
		pcm := c.config.alignFrames(c.pcm)
		if len(pcm) == 0 {
			c.err = fmt.Errorf("%w: no audio captured: %s", ErrMicrophoneUnavailable, c.stderrText())
			return
		}
		c.logger.Debugf("captured %d bytes (%.2fs)", len(pcm), c.config.Duration(len(pcm)).Seconds())
		c.wav = EncodeWAV(c.config, pcm)
	})
	return c.wav, c.err
}

// stderrText is only safe to call once the process has been waited for.
func (c *arecordCapture) stderrText() string {
	text := strings.TrimSpace(c.stderr.String())
	if text == "" {
		return "arecord exited without audio"
	}
	return text
}
