// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides pull-model Device and Stream backends (malgo, oto, PortAudio, mock)
// Package output opens audio output streams that pull interleaved float32
// frames from a realtime callback.
//
// malgo (miniaudio) is the default backend. Oto is a pure-Go fallback and
// PortAudio is available when built with -tags portaudio.
//
// Example:
//
//	dev, err := output.New("malgo")
//	s, err := dev.Open(output.StreamParams{
//		Format:          audio.DefaultFormat(),
//		FramesPerBuffer: 256,
//	}, func(out []float32) {
//		clear(out)
//	})
//	err = s.Start()
//	defer s.Close()
package output
