// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format and float sample helpers shared by the engine
// Package audio provides fundamental audio types shared by the engine,
// the device backends and the frame sources.
//
// Everything inside the engine is interleaved float32 in [-1, 1]:
//   - Format: sample rate and channel count of the rendered stream
//   - Float32View: zero-copy view of an f32 device buffer
//
// Example:
//
//	format := audio.Format{SampleRate: 48000, Channels: 2}
//	frames := format.FramesIn(10 * time.Millisecond) // 480
package audio
