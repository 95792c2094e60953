// ABOUTME: Package documentation for the ring buffer
// ABOUTME: Single producer, single consumer, no locks on either side
// Package ring provides the wait-free handoff between a frame producer and
// the realtime audio callback.
//
// Overflow (producer ahead of consumer) drops the oldest unread frames;
// underflow (consumer ahead of producer) yields silence. Both are counted
// and neither is an error.
//
// Example:
//
//	rb := ring.New(1024, 2)
//	rb.Write(frames)      // generator goroutine
//	rb.Read(deviceBuffer) // realtime callback
package ring
