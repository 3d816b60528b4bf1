// Package stt defines the inference-engine boundary for the transcription
// pipeline.
//
// An Engine produces Streams: one Stream per speaker utterance. A Stream is an
// opaque, stateful decode buffer — the pipeline feeds it normalised PCM as
// packets arrive and calls FinalResult exactly once when the speaker's turn
// ends. FinalResult is blocking and CPU-bound; callers must run it on the
// inference worker pool, never on the event-processing path.
//
// A Stream is owned by exactly one speaker session at a time and is NOT safe
// for concurrent use. The capture layer serialises all access to a stream on
// the owning session's execution lane; feeding a stream from two goroutines
// at once silently corrupts its decode state.
package stt

// TargetSampleRate is the sample rate in Hz the engine consumes. All audio
// must be normalised to mono at this rate before feeding.
const TargetSampleRate = 16000

// Transcript is the result of finalizing a stream.
type Transcript struct {
	// Text is the transcribed speech. Empty when the utterance contained no
	// recognisable speech.
	Text string

	// Confidence is the mean token confidence (0.0–1.0) across the whole
	// utterance. Zero when the engine does not report token probabilities.
	Confidence float64
}

// Stream accumulates one speaker's utterance until finalized.
type Stream interface {
	// Feed appends normalised mono PCM samples to the stream. It must be fast
	// and never block; heavy work is deferred to FinalResult.
	Feed(samples []float32)

	// FinalResult runs inference over everything fed so far and returns the
	// transcript. Blocking and CPU-bound — run it on the worker pool. A stream
	// with no audio returns an empty Transcript and no error.
	FinalResult() (Transcript, error)
}

// Engine creates transcription streams. Implementations must be safe for
// concurrent use; many streams may be open at once (one per active speaker).
type Engine interface {
	NewStream() Stream
}
