// ABOUTME: Tests for the callback gate
// ABOUTME: Close must wait for in-flight callbacks
package output

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGateRunsCallback(t *testing.T) {
	var g gate
	out := []float32{1, 1}
	g.run(out, func(o []float32) {
		o[0] = 0.5
	})
	assert.Equal(t, float32(0.5), out[0])
}

func TestGateSilencesAfterClose(t *testing.T) {
	var g gate
	require.True(t, g.close())
	assert.False(t, g.close(), "second close reports already closed")

	called := false
	out := []float32{1, 1}
	g.run(out, func([]float32) { called = true })

	assert.False(t, called)
	assert.Equal(t, []float32{0, 0}, out)
}

func TestGateCloseWaitsForInflightCallback(t *testing.T) {
	var g gate
	entered := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool

	go g.run(make([]float32, 2), func([]float32) {
		close(entered)
		<-release
		finished.Store(true)
	})
	<-entered

	closed := make(chan struct{})
	go func() {
		g.close()
		close(closed)
	}()

	select {
	case <-closed:
		t.Fatal("close returned while callback was running")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("close did not return after callback finished")
	}
	assert.True(t, finished.Load())
}

func TestGateNoCallbackAfterClose(t *testing.T) {
	var g gate
	var calls atomic.Int64
	var afterClose atomic.Bool
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make([]float32, 4)
		for {
			select {
			case <-stop:
				return
			default:
			}
			g.run(buf, func([]float32) {
				if g.isClosed() {
					// Entered before close flipped; still allowed to finish
					return
				}
				calls.Add(1)
			})
		}
	}()

	time.Sleep(5 * time.Millisecond)
	g.close()
	before := calls.Load()
	time.Sleep(5 * time.Millisecond)
	afterClose.Store(calls.Load() != before)
	close(stop)
	wg.Wait()

	assert.False(t, afterClose.Load(), "callback ran after close returned")
}
