// ABOUTME: Tests for output backends
// ABOUTME: Uses the mock device; hardware backends are probed only
package output

import (
	"errors"
	"math"
	"testing"

	"github.com/Resonate-Protocol/linkaudio/pkg/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackends(t *testing.T) {
	tests := []struct {
		backend string
		name    string
	}{
		{"", "malgo"},
		{"malgo", "malgo"},
		{"oto", "oto"},
		{"portaudio", "portaudio"},
		{"mock", "mock"},
	}

	for _, tt := range tests {
		t.Run(tt.backend, func(t *testing.T) {
			dev, err := New(tt.backend)
			require.NoError(t, err)
			assert.Equal(t, tt.name, dev.Name())
		})
	}

	_, err := New("alsa-direct")
	assert.Error(t, err)
}

func TestMockTick(t *testing.T) {
	dev := NewMock()
	var frames []int
	s, err := dev.Open(StreamParams{Format: audio.DefaultFormat(), FramesPerBuffer: 64}, func(out []float32) {
		frames = append(frames, len(out))
		for i := range out {
			out[i] = 0.25
		}
	})
	require.NoError(t, err)

	ms := dev.Stream()
	require.NotNil(t, ms)
	assert.Nil(t, ms.Tick(), "not started")

	require.NoError(t, s.Start())
	buf := ms.Tick()
	require.Len(t, buf, 128)
	assert.Equal(t, float32(0.25), buf[0])
	assert.Equal(t, []int{128}, frames)

	require.NoError(t, s.Close())
	assert.Nil(t, ms.Tick())
	assert.ErrorIs(t, s.Start(), ErrStreamClosed)
	assert.Equal(t, 1, dev.Opened())
}

func TestMockTickExposesUnwrittenSamples(t *testing.T) {
	dev := NewMock()
	s, err := dev.Open(StreamParams{Format: audio.DefaultFormat(), FramesPerBuffer: 8}, func(out []float32) {
		out[0] = 0
	})
	require.NoError(t, err)
	require.NoError(t, s.Start())

	buf := dev.Stream().Tick()
	assert.Equal(t, float32(0), buf[0])
	assert.True(t, math.IsNaN(float64(buf[1])))
}

func TestMockFramesOverride(t *testing.T) {
	dev := &Mock{FramesPerBuffer: 192}
	s, err := dev.Open(StreamParams{Format: audio.DefaultFormat(), FramesPerBuffer: 256}, func([]float32) {})
	require.NoError(t, err)
	assert.Equal(t, 192, s.FramesPerBuffer())
}

func TestMockUnavailable(t *testing.T) {
	dev := &Mock{Unavailable: true}
	assert.ErrorIs(t, dev.Probe(), ErrUnavailable)

	_, err := dev.Open(StreamParams{Format: audio.DefaultFormat(), FramesPerBuffer: 256}, func([]float32) {})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestMockFailReportsError(t *testing.T) {
	dev := NewMock()
	var got error
	_, err := dev.Open(StreamParams{
		Format:          audio.DefaultFormat(),
		FramesPerBuffer: 16,
		OnError:         func(err error) { got = err },
	}, func([]float32) {})
	require.NoError(t, err)

	dev.Stream().Fail(ErrDeviceStopped)
	assert.True(t, errors.Is(got, ErrDeviceStopped))
}

func TestOpenRejectsBadParams(t *testing.T) {
	dev := NewMock()
	_, err := dev.Open(StreamParams{Format: audio.Format{SampleRate: 48000, Channels: 0}, FramesPerBuffer: 16}, func([]float32) {})
	assert.Error(t, err)

	_, err = dev.Open(StreamParams{Format: audio.DefaultFormat(), FramesPerBuffer: 0}, func([]float32) {})
	assert.Error(t, err)
}

func TestPortAudioStubWithoutTag(t *testing.T) {
	dev := NewPortAudio()
	if dev.Probe() == nil {
		t.Skip("built with portaudio support")
	}
	assert.ErrorIs(t, dev.Probe(), ErrUnavailable)
}
