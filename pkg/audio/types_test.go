// ABOUTME: Tests for audio types
// ABOUTME: Tests format math and sample helpers
package audio

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatValidate(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		wantErr bool
	}{
		{"default", DefaultFormat(), false},
		{"mono", Format{SampleRate: 44100, Channels: 1}, false},
		{"zero rate", Format{SampleRate: 0, Channels: 2}, true},
		{"zero channels", Format{SampleRate: 48000, Channels: 0}, true},
		{"too many channels", Format{SampleRate: 48000, Channels: MaxChannels + 1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.format.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFormatFrameMath(t *testing.T) {
	f := Format{SampleRate: 48000, Channels: 2}

	assert.Equal(t, 512, f.Samples(256))
	assert.Equal(t, 256, f.Frames(513))
	assert.Equal(t, 480, f.FramesIn(10*time.Millisecond))
	assert.Equal(t, 10*time.Millisecond, f.Duration(480))
	assert.InDelta(t, 20.8333, f.MicrosPerFrame(), 0.001)
	assert.Equal(t, "48000Hz/2ch/f32", f.String())
}

func TestClamp(t *testing.T) {
	assert.Equal(t, float32(1), Clamp(1.5))
	assert.Equal(t, float32(-1), Clamp(-3))
	assert.Equal(t, float32(0.25), Clamp(0.25))
}

func TestFloat32View(t *testing.T) {
	buf := make([]byte, 4*3+2)
	view := Float32View(buf)
	require.Len(t, view, 3)

	view[1] = 0.5
	bits := binary.NativeEndian.Uint32(buf[4:8])
	assert.Equal(t, float32(0.5), math.Float32frombits(bits))

	assert.Nil(t, Float32View(make([]byte, 3)))
}
