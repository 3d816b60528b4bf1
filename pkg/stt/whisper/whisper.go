// Package whisper implements the stt.Engine interface on top of the
// whisper.cpp CGO bindings. The whisper.cpp static library (libwhisper.a)
// and headers (whisper.h) must be available at link time via LIBRARY_PATH
// and C_INCLUDE_PATH environment variables.
//
// The model is loaded once at startup and shared across all streams. Each
// FinalResult call creates a fresh whisper context — contexts are not
// thread-safe, but the model is, so any number of finalize jobs may run
// concurrently on the worker pool.
package whisper

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/voxscribe/voxscribe/pkg/stt"
)

// Compile-time assertion that Engine satisfies stt.Engine.
var _ stt.Engine = (*Engine)(nil)

const defaultLanguage = "en"

// minSamples is the shortest utterance worth running inference on. Anything
// below 100 ms is either a stray frame or pure silence; whisper.cpp tends to
// hallucinate on such inputs.
const minSamples = stt.TargetSampleRate / 10

// Option is a functional option for configuring an Engine.
type Option func(*Engine)

// WithLanguage sets the BCP-47 language code for transcription
// (e.g., "en", "de", "fr"). Defaults to "en".
func WithLanguage(lang string) Option {
	return func(e *Engine) { e.language = lang }
}

// Engine implements stt.Engine using whisper.cpp Go bindings (CGO).
type Engine struct {
	model    whisperlib.Model
	language string
}

// New creates an Engine that loads the whisper.cpp model from the given file
// path. The caller must call Close when the engine is no longer needed.
func New(modelPath string, opts ...Option) (*Engine, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	e := &Engine{
		model:    model,
		language: defaultLanguage,
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// Close releases the whisper model. Streams created by this engine must not
// be finalized after Close.
func (e *Engine) Close() error {
	if e.model != nil {
		return e.model.Close()
	}
	return nil
}

// NewStream returns a fresh, empty transcription stream backed by the shared
// model. The returned stream is not safe for concurrent use; the caller is
// responsible for serialising access.
func (e *Engine) NewStream() stt.Stream {
	return &stream{engine: e}
}

// stream accumulates float32 mono PCM until FinalResult is called. Access is
// serialised by the owning speaker session's lane, but a mutex guards the
// buffer anyway so that a misbehaving caller corrupts a transcript rather
// than the process.
type stream struct {
	engine *Engine

	mu  sync.Mutex
	buf []float32
}

// Feed appends samples to the internal buffer. Cheap: a single append.
func (s *stream) Feed(samples []float32) {
	s.mu.Lock()
	s.buf = append(s.buf, samples...)
	s.mu.Unlock()
}

// FinalResult runs whisper.cpp inference over the buffered audio. Blocking
// and CPU-bound; run it on the worker pool.
func (s *stream) FinalResult() (stt.Transcript, error) {
	s.mu.Lock()
	buf := s.buf
	s.buf = nil
	s.mu.Unlock()

	if len(buf) < minSamples {
		return stt.Transcript{}, nil
	}

	// Each inference gets its own context; the model itself is shared.
	wctx, err := s.engine.model.NewContext()
	if err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: create context: %w", err)
	}

	if err := wctx.SetLanguage(s.engine.language); err != nil {
		slog.Warn("whisper: failed to set language, using default",
			"language", s.engine.language, "error", err)
	}

	if err := wctx.Process(buf, nil, nil, nil); err != nil {
		return stt.Transcript{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var (
		parts      []string
		confSum    float64
		tokenCount int
	)
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stt.Transcript{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
		for _, tok := range segment.Tokens {
			confSum += float64(tok.P)
			tokenCount++
		}
	}

	t := stt.Transcript{Text: strings.Join(parts, " ")}
	if tokenCount > 0 {
		t.Confidence = confSum / float64(tokenCount)
	}
	return t, nil
}
