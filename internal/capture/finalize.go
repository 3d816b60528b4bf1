package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/voxscribe/voxscribe/internal/deliver"
	"github.com/voxscribe/voxscribe/internal/ingest"
	"github.com/voxscribe/voxscribe/internal/pool"
	"github.com/voxscribe/voxscribe/pkg/stt"
)

// finalResult pairs a transcript with its inference error so the whole
// outcome travels over one pool result channel.
type finalResult struct {
	transcript stt.Transcript
	err        error
}

// finalize ends the current speaking turn for an SSRC: it atomically swaps
// in a fresh stream on the session's lane, runs inference on the retired
// stream via the worker pool, and delivers the transcript. The swap makes
// finalization at-most-once per accumulated turn; a concurrent duplicate
// retires an empty stream and falls out at the empty-transcript check.
func (h *Handler) finalize(ctx context.Context, ssrc uint32) {
	s, ok := h.registry.Get(ssrc)
	if !ok {
		slog.Warn("finalize requested for unknown stream", "ssrc", ssrc)
		return
	}

	var old stt.Stream
	s.do(func() {
		s.clearSequencing()
		old = s.swapStream(h.engine.NewStream())
	})
	if old == nil {
		// Idle turn: speaking stopped before any packet was admitted.
		slog.Warn("no stream to finalize", "ssrc", ssrc)
		return
	}

	userID, username, avatarURL := s.identity()
	if userID == "" {
		slog.Warn("dropping transcript for unidentified speaker", "ssrc", ssrc)
		return
	}
	if username == "" {
		username = userID
	}

	start := time.Now()
	result, err := pool.Await(pool.Submit(h.pool, func() finalResult {
		t, err := old.FinalResult()
		return finalResult{transcript: t, err: err}
	}))
	h.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds())

	if errors.Is(err, pool.ErrJobLost) {
		slog.Warn("worker pool shut down before transcription ran", "ssrc", ssrc, "user_id", userID)
		return
	}
	if result.err != nil {
		h.metrics.TranscriptionErrors.Add(ctx, 1)
		slog.Error("transcription failed", "ssrc", ssrc, "user_id", userID, "error", result.err)
		if err := h.sink.Diagnostic(ctx, ssrc, "internal error while transcribing audio"); err != nil {
			slog.Warn("failed to deliver diagnostic", "ssrc", ssrc, "error", err)
		}
		return
	}

	text := strings.TrimSpace(result.transcript.Text)
	if text == "" {
		return
	}

	h.rotateIngest(ctx, s, userID, text)

	if h.verbose.Load() {
		text = fmt.Sprintf("%s *(confidence %.0f%%)*", text, result.transcript.Confidence*100)
	}

	if err := h.sink.Transcript(ctx, deliver.Transcript{
		SSRC:      ssrc,
		Username:  username,
		AvatarURL: avatarURL,
		Text:      text,
	}); err != nil {
		slog.Error("failed to deliver transcript", "ssrc", ssrc, "user_id", userID, "error", err)
		return
	}
	h.metrics.Transcripts.Add(ctx, 1)
}

// rotateIngest finalizes the open archival record with the turn's transcript
// and opens a fresh one for the next turn. A nil store or an opted-out
// speaker makes this a no-op.
func (h *Handler) rotateIngest(ctx context.Context, s *SpeakerSession, userID, text string) {
	if h.ingest == nil || !s.ingestEnabled() {
		return
	}
	var next ingest.Record
	next, err := h.ingest.Open(ctx, userID, h.language)
	if err != nil {
		slog.Warn("failed to open next ingest record", "user_id", userID, "error", err)
	}
	prev := s.swapRecord(next)
	if prev == nil {
		return
	}
	if err := prev.Finalize(ctx, text); err != nil {
		slog.Warn("failed to finalize ingest record", "user_id", userID, "error", err)
		return
	}
	h.metrics.IngestRecords.Add(ctx, 1)
}
