// Package mock provides test doubles for the stt package interfaces.
//
// Use Engine to hand out scripted Streams and inspect how many streams the
// pipeline opened. Use Stream to control the transcript returned by
// FinalResult and to inspect exactly which samples were fed.
package mock

import (
	"sync"

	"github.com/voxscribe/voxscribe/pkg/stt"
)

// Compile-time interface assertions.
var (
	_ stt.Engine = (*Engine)(nil)
	_ stt.Stream = (*Stream)(nil)
)

// Engine is a mock implementation of stt.Engine.
type Engine struct {
	mu sync.Mutex

	// Result is the transcript returned by FinalResult on streams this engine
	// creates, unless the test replaces a stream's Result directly.
	Result stt.Transcript

	// Err, if non-nil, is returned by FinalResult on created streams.
	Err error

	// Streams records every stream handed out by NewStream, in order.
	Streams []*Stream
}

// NewStream returns a fresh mock stream and records it.
func (e *Engine) NewStream() stt.Stream {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := &Stream{Result: e.Result, Err: e.Err}
	e.Streams = append(e.Streams, s)
	return s
}

// Created returns the number of streams handed out so far. Thread-safe.
func (e *Engine) Created() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Streams)
}

// Stream is a mock implementation of stt.Stream.
type Stream struct {
	mu sync.Mutex

	// Result is returned by FinalResult when Err is nil and at least one
	// sample was fed. An unfed stream reports an empty transcript, matching
	// the real engine's behaviour for silent streams.
	Result stt.Transcript

	// Err, if non-nil, is returned by FinalResult.
	Err error

	// Block, if non-nil, is closed-upon by FinalResult: the call waits until
	// the channel is closed before returning. Lets tests hold a finalize job
	// in flight.
	Block chan struct{}

	// Fed accumulates every sample passed to Feed.
	Fed []float32

	// Finalized counts FinalResult invocations.
	Finalized int
}

// Feed records the samples.
func (s *Stream) Feed(samples []float32) {
	s.mu.Lock()
	s.Fed = append(s.Fed, samples...)
	s.mu.Unlock()
}

// FinalResult returns the scripted result, optionally blocking first.
func (s *Stream) FinalResult() (stt.Transcript, error) {
	if s.Block != nil {
		<-s.Block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Finalized++
	if s.Err != nil {
		return stt.Transcript{}, s.Err
	}
	if len(s.Fed) == 0 {
		return stt.Transcript{}, nil
	}
	return s.Result, nil
}

// FedSamples returns a copy of everything fed so far. Thread-safe.
func (s *Stream) FedSamples() []float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]float32, len(s.Fed))
	copy(out, s.Fed)
	return out
}
