// ABOUTME: Lock-free single-producer/single-consumer frame ring
// ABOUTME: Hands audio from the generator goroutine to the realtime callback
package ring

import (
	"math"
	"sync/atomic"
)

// Buffer is a fixed-capacity ring of interleaved float32 frames.
//
// Exactly one goroutine may call Write and exactly one may call Read.
// Neither side blocks or allocates. Indices are monotonically increasing
// sample counters; slots hold float bit patterns accessed atomically so a
// slot recycled by an overflow is never observed as a torn value.
type Buffer struct {
	channels uint64
	capacity uint64 // in samples, multiple of channels
	data     []uint32

	read  atomic.Uint64
	write atomic.Uint64

	overflows  atomic.Uint64 // frames dropped by Write
	underflows atomic.Uint64 // frames zero-filled by Read
}

// New creates a ring holding the given number of frames
func New(frames, channels int) *Buffer {
	if channels < 1 {
		channels = 1
	}
	if frames < 1 {
		frames = 1
	}
	capacity := uint64(frames) * uint64(channels)
	return &Buffer{
		channels: uint64(channels),
		capacity: capacity,
		data:     make([]uint32, capacity),
	}
}

// Write appends frames, dropping the oldest unread frames when there is no
// room. A trailing partial frame in src is ignored. Returns frames written.
func (b *Buffer) Write(src []float32) int {
	n := uint64(len(src))
	n -= n % b.channels
	if n == 0 {
		return 0
	}

	// More than the whole ring: only the newest capacity survives
	if n > b.capacity {
		drop := n - b.capacity
		b.overflows.Add(drop / b.channels)
		src = src[drop:]
		n = b.capacity
	}

	w := b.write.Load()
	for {
		r := b.read.Load()
		free := b.capacity - (w - r)
		if n <= free {
			break
		}
		need := n - free
		if b.read.CompareAndSwap(r, r+need) {
			b.overflows.Add(need / b.channels)
			break
		}
	}

	for i := uint64(0); i < n; i++ {
		atomic.StoreUint32(&b.data[(w+i)%b.capacity], math.Float32bits(src[i]))
	}
	b.write.Store(w + n)

	return int(n / b.channels)
}

// Read fills dst with the oldest unread frames and zero-fills whatever the
// producer has not supplied yet. Returns the number of real frames read.
func (b *Buffer) Read(dst []float32) int {
	want := uint64(len(dst))
	want -= want % b.channels

	for {
		r := b.read.Load()
		w := b.write.Load()

		n := w - r
		if n > want {
			n = want
		}
		for i := uint64(0); i < n; i++ {
			dst[i] = math.Float32frombits(atomic.LoadUint32(&b.data[(r+i)%b.capacity]))
		}

		// Fails only if the producer dropped frames under us
		if !b.read.CompareAndSwap(r, r+n) {
			continue
		}

		clear(dst[n:])
		if missing := want - n; missing > 0 {
			b.underflows.Add(missing / b.channels)
		}
		return int(n / b.channels)
	}
}

// Available returns the number of unread frames
func (b *Buffer) Available() int {
	used := b.write.Load() - b.read.Load()
	if used > b.capacity {
		used = b.capacity
	}
	return int(used / b.channels)
}

// Free returns the number of frames that can be written without dropping
func (b *Buffer) Free() int {
	return b.Capacity() - b.Available()
}

// Capacity returns the ring size in frames
func (b *Buffer) Capacity() int {
	return int(b.capacity / b.channels)
}

// Channels returns the frame width
func (b *Buffer) Channels() int {
	return int(b.channels)
}

// Overflows returns the total number of frames dropped by Write
func (b *Buffer) Overflows() uint64 {
	return b.overflows.Load()
}

// Underflows returns the total number of frames Read had to zero-fill
func (b *Buffer) Underflows() uint64 {
	return b.underflows.Load()
}
