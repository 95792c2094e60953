// ABOUTME: Audio engine package
// ABOUTME: Lifecycle, realtime render callback and integer-handle boundary
// Package engine produces a continuous audio output stream that can follow
// a link tempo session.
//
// An Engine is driven by five control operations: New (create), Close
// (delete), EnableLink, CreateStream and Play. Registry and Host expose the
// same operations behind integer handles for callers that cannot hold Go
// values.
//
// Example:
//
//	e, err := engine.New(engine.Config{Backend: "malgo"})
//	if err != nil {
//		return err
//	}
//	defer e.Close()
//
//	err = e.CreateStream()
//	e.EnableLink(true)
//	e.Play(true)
package engine
