package deliver

import (
	"context"
	"log/slog"
)

// Compile-time interface assertion.
var _ Sink = (*LogSink)(nil)

// LogSink writes transcripts to the process log. Used as the delivery
// fallback when no webhook is configured.
type LogSink struct{}

// NewLogSink creates a LogSink.
func NewLogSink() *LogSink {
	return &LogSink{}
}

func (*LogSink) Transcript(_ context.Context, t Transcript) error {
	slog.Info("transcript", "ssrc", t.SSRC, "username", t.Username, "text", t.Text)
	return nil
}

func (*LogSink) Diagnostic(_ context.Context, ssrc uint32, msg string) error {
	slog.Warn("transcription diagnostic", "ssrc", ssrc, "msg", msg)
	return nil
}
