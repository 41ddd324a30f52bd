// Copyright (c) 2023-2025 RapidaAI
// Author: Prashant Srivastav <prashant@rapida.ai>
//
// Licensed under GPL-2.0 with Rapida Additional Terms.
// See LICENSE.md or contact sales@rapida.ai for commercial usage.
package recorder

import (
	"bytes"
	"encoding/binary"
	"time"
)

const (
	AudioBytesPerSample = 2  // LINEAR16 → 2 bytes per sample
	AudioBitsPerSample  = 16 // LINEAR16 → 16 bits per sample
	AudioPCMFormat      = 1  // WAV PCM format tag
	wavHeaderSize       = 44
)

// AudioConfig describes the raw PCM captured from the microphone.
type AudioConfig struct {
	SampleRate uint32
	Channels   uint16
}

// DefaultAudioConfig is 16kHz mono LINEAR16, the usual format for speech corpora.
var DefaultAudioConfig = AudioConfig{SampleRate: 16000, Channels: 1}

func (c AudioConfig) frameSize() int {
	return AudioBytesPerSample * int(c.Channels)
}

func (c AudioConfig) bytesPerSecond() int {
	return int(c.SampleRate) * c.frameSize()
}

// Duration is the playback length of pcm bytes in this format.
func (c AudioConfig) Duration(pcm int) time.Duration {
	if c.bytesPerSecond() == 0 {
		return 0
	}
	return time.Duration(float64(pcm) / float64(c.bytesPerSecond()) * float64(time.Second))
}

// alignFrames drops a trailing partial frame left by an interrupted capture.
func (c AudioConfig) alignFrames(pcm []byte) []byte {
	frame := c.frameSize()
	if frame == 0 {
		return pcm
	}
	return pcm[:(len(pcm)/frame)*frame]
}

// EncodeWAV wraps raw PCM in a canonical 44 byte RIFF/WAVE header.
func EncodeWAV(cfg AudioConfig, pcm []byte) []byte {
	pcm = cfg.alignFrames(pcm)
	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(pcm))

	buf.WriteString("RIFF")
	binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(&buf, binary.LittleEndian, uint32(16))
	binary.Write(&buf, binary.LittleEndian, uint16(AudioPCMFormat))
	binary.Write(&buf, binary.LittleEndian, cfg.Channels)
	binary.Write(&buf, binary.LittleEndian, cfg.SampleRate)
	binary.Write(&buf, binary.LittleEndian, uint32(cfg.bytesPerSecond()))
	binary.Write(&buf, binary.LittleEndian, uint16(cfg.frameSize()))
	binary.Write(&buf, binary.LittleEndian, uint16(AudioBitsPerSample))

	buf.WriteString("data")
	binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}
