package recorder

import (
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeWAV_Header(t *testing.T) {
	pcm := make([]byte, 3200)
	wav := EncodeWAV(DefaultAudioConfig, pcm)

	require.Len(t, wav, wavHeaderSize+len(pcm))
	assert.Equal(t, "RIFF", string(wav[0:4]))
	assert.Equal(t, uint32(36+len(pcm)), binary.LittleEndian.Uint32(wav[4:8]))
	assert.Equal(t, "WAVE", string(wav[8:12]))
	assert.Equal(t, "fmt ", string(wav[12:16]))
	assert.Equal(t, uint16(AudioPCMFormat), binary.LittleEndian.Uint16(wav[20:22]))
	assert.Equal(t, uint16(1), binary.LittleEndian.Uint16(wav[22:24]))
	assert.Equal(t, uint32(16000), binary.LittleEndian.Uint32(wav[24:28]))
	assert.Equal(t, uint32(32000), binary.LittleEndian.Uint32(wav[28:32]))
	assert.Equal(t, uint16(2), binary.LittleEndian.Uint16(wav[32:34]))
	assert.Equal(t, uint16(16), binary.LittleEndian.Uint16(wav[34:36]))
	assert.Equal(t, "data", string(wav[36:40]))
	assert.Equal(t, uint32(len(pcm)), binary.LittleEndian.Uint32(wav[40:44]))
}

func TestEncodeWAV_DropsPartialFrame(t *testing.T) {
	stereo := AudioConfig{SampleRate: 8000, Channels: 2}
	wav := EncodeWAV(stereo, make([]byte, 10))

	assert.Equal(t, uint32(8), binary.LittleEndian.Uint32(wav[40:44]))
	assert.Equal(t, uint16(4), binary.LittleEndian.Uint16(wav[32:34]))
	assert.Len(t, wav, wavHeaderSize+8)
}

func TestAudioConfig_Duration(t *testing.T) {
	assert.Equal(t, time.Second, DefaultAudioConfig.Duration(32000))
	assert.Equal(t, 500*time.Millisecond, DefaultAudioConfig.Duration(16000))
	assert.Equal(t, time.Duration(0), AudioConfig{}.Duration(100))
}
