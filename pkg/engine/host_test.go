// ABOUTME: Tests for the single-handle host
// ABOUTME: Covers idempotent create and no-ops before create
package engine

import (
	"testing"

	"github.com/Resonate-Protocol/linkaudio/pkg/audio/output"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostCreateIsIdempotent(t *testing.T) {
	dev := output.NewMock()
	h := NewHost(mockConfig(dev))
	defer h.Delete()

	require.True(t, h.Create())
	first := h.Handle()
	require.True(t, h.Create())

	assert.Equal(t, first, h.Handle())
	assert.Equal(t, 1, h.registry.Len())

	h.CreateStream()
	h.CreateStream()
	assert.Equal(t, 1, dev.Opened(), "one device stream")
}

func TestHostCreateDeletePlay(t *testing.T) {
	dev := output.NewMock()
	h := NewHost(mockConfig(dev))

	require.True(t, h.Create())
	h.Delete()
	h.Play(true)

	assert.Zero(t, h.Handle())
	assert.Nil(t, h.Engine())
	assert.Equal(t, 0, dev.Opened(), "no stream, no output")
}

func TestHostOperationsBeforeCreate(t *testing.T) {
	dev := output.NewMock()
	h := NewHost(mockConfig(dev))

	h.CreateStream()
	h.EnableLink(true)
	h.Play(true)
	h.Delete()

	assert.Zero(t, h.Handle())
	assert.Equal(t, 0, dev.Opened())
}

func TestHostCreateFailure(t *testing.T) {
	h := NewHost(mockConfig(&output.Mock{Unavailable: true}))
	assert.False(t, h.Create())
	assert.Zero(t, h.Handle())
}

func TestHostRecreateAfterDelete(t *testing.T) {
	dev := output.NewMock()
	h := NewHost(mockConfig(dev))
	defer h.Delete()

	require.True(t, h.Create())
	first := h.Handle()
	h.Delete()

	require.True(t, h.Create())
	assert.NotEqual(t, first, h.Handle())

	h.CreateStream()
	h.EnableLink(true)
	h.Play(true)
	e := h.Engine()
	require.NotNil(t, e)
	assert.True(t, e.IsPlaying())
	assert.True(t, e.LinkEnabled())
}
