package capture

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"

	"github.com/voxscribe/voxscribe/internal/deliver"
	"github.com/voxscribe/voxscribe/internal/ingest"
	"github.com/voxscribe/voxscribe/internal/observe"
	"github.com/voxscribe/voxscribe/internal/pool"
	"github.com/voxscribe/voxscribe/pkg/audio"
	"github.com/voxscribe/voxscribe/pkg/stt"
)

// silentFrameThreshold is how many consecutive near-silent admitted frames
// end a speaking turn without waiting for a speaking-stop event. At 20 ms
// per Discord frame this is roughly two seconds of silence.
const silentFrameThreshold = 100

// rmsSilenceThreshold is the root-mean-square energy (in 16-bit PCM units)
// below which a frame counts as silent. 32 767 is full scale; 300 is
// near-silence.
const rmsSilenceThreshold = 300.0

// defaultMaxTranscribers is the concurrent-transcriber cap before any guild
// settings are applied.
const defaultMaxTranscribers = 5

// Identity is a speaker's resolved display identity and policy flags.
type Identity struct {
	Username    string
	AvatarURL   string
	Bot         bool
	IngestOptIn bool
}

// Resolver maps a platform user ID to a display identity. Implemented by
// the transport layer.
type Resolver interface {
	Resolve(ctx context.Context, userID string) (Identity, error)
}

// Config holds the collaborators a Handler needs. Engine, Pool, Sink, and
// Resolver are required; Ingest and Metrics are optional.
type Config struct {
	Engine   stt.Engine
	Pool     *pool.Pool
	Sink     deliver.Sink
	Resolver Resolver

	// Ingest enables opt-in voice archival when non-nil.
	Ingest ingest.Store

	// Metrics defaults to observe.DefaultMetrics() when nil.
	Metrics *observe.Metrics

	// Language is the transcription language recorded with ingest entries.
	// Defaults to "en".
	Language string
}

// Handler is the event dispatch bridge: it maps inbound transport events to
// registry, sequencer, and finalizer operations, scheduling each event as an
// independent unit of concurrent work while keeping all same-SSRC stream
// operations on that session's lane.
type Handler struct {
	registry *Registry
	engine   stt.Engine
	pool     *pool.Pool
	sink     deliver.Sink
	resolver Resolver
	ingest   ingest.Store
	metrics  *observe.Metrics
	language string

	verbose        atomic.Bool
	maxTranscriber atomic.Int64

	activeMu sync.Mutex
	active   map[string]struct{}
	waiting  *ActiveSpeakerWindow

	sessMu      sync.Mutex
	sessionSSRC map[string]uint32
}

// New creates a Handler. It returns an error if a required collaborator is
// missing.
func New(cfg Config) (*Handler, error) {
	if cfg.Engine == nil || cfg.Pool == nil || cfg.Sink == nil || cfg.Resolver == nil {
		return nil, errors.New("capture: Engine, Pool, Sink, and Resolver are required")
	}
	m := cfg.Metrics
	if m == nil {
		m = observe.DefaultMetrics()
	}
	lang := cfg.Language
	if lang == "" {
		lang = "en"
	}
	h := &Handler{
		registry:    NewRegistry(),
		engine:      cfg.Engine,
		pool:        cfg.Pool,
		sink:        cfg.Sink,
		resolver:    cfg.Resolver,
		ingest:      cfg.Ingest,
		metrics:     m,
		language:    lang,
		active:      make(map[string]struct{}),
		waiting:     NewActiveSpeakerWindow(windowCapacity),
		sessionSSRC: make(map[string]uint32),
	}
	h.maxTranscriber.Store(defaultMaxTranscribers)
	return h, nil
}

// SetPolicy applies guild-level settings: transcript verbosity and the
// concurrent-transcriber cap. Safe to call while events are flowing.
func (h *Handler) SetPolicy(verbose bool, maxTranscribers int) {
	if maxTranscribers < 1 {
		maxTranscribers = 1
	}
	h.verbose.Store(verbose)
	h.maxTranscriber.Store(int64(maxTranscribers))
}

// Registry exposes the speaker registry, mainly for tests and stats.
func (h *Handler) Registry() *Registry { return h.registry }

// Close tears down all speaker sessions. In-flight finalize jobs complete on
// the pool; their results are discarded if delivery has become impossible.
func (h *Handler) Close() {
	h.registry.Clear()
}

// HandlePacket processes one voice packet arrival. The admission, resampling
// and feed work runs on the SSRC's lane; packets for ignored speakers are
// dropped up front. Never blocks the caller: if the lane is saturated the
// packet is dropped.
func (h *Handler) HandlePacket(ssrc uint32, sequence uint16, payloadType uint8, pcm []int16) {
	s, created := h.registry.GetOrCreate(ssrc)
	if created {
		h.metrics.ActiveSpeakers.Add(context.Background(), 1)
	}
	if s.Ignored() {
		h.metrics.PacketsDropped.Add(context.Background(), 1,
			metric.WithAttributes(observe.Attr("reason", "ignored")))
		return
	}
	if !s.post(func() { h.processPacket(s, sequence, payloadType, pcm) }) {
		h.metrics.PacketsDropped.Add(context.Background(), 1,
			metric.WithAttributes(observe.Attr("reason", "lane_full")))
	}
}

// processPacket runs on the session's lane: sequencing, normalization, feed,
// and silent-frame end-of-speech detection.
func (h *Handler) processPacket(s *SpeakerSession, sequence uint16, payloadType uint8, pcm []int16) {
	ctx := context.Background()

	if !s.admit(sequence) {
		slog.Warn("got out of order audio packet, resynchronising",
			"ssrc", s.ssrc, "sequence", sequence)
		h.metrics.SequenceGaps.Add(ctx, 1)
		h.metrics.PacketsDropped.Add(ctx, 1,
			metric.WithAttributes(observe.Attr("reason", "gap")))
		return
	}
	if len(pcm) == 0 {
		h.metrics.PacketsDropped.Add(ctx, 1,
			metric.WithAttributes(observe.Attr("reason", "no_audio")))
		return
	}

	// First admitted audio after a reset starts a new accumulation.
	if s.stream == nil {
		s.stream = h.engine.NewStream()
	}

	rate, stereo := audio.PayloadFormat(payloadType)
	s.stream.Feed(audio.Process(pcm, rate, stereo, stt.TargetSampleRate))
	h.metrics.PacketsAdmitted.Add(ctx, 1)

	if frameRMS(pcm) < rmsSilenceThreshold {
		s.silent++
		if s.silent >= silentFrameThreshold {
			s.silent = 0
			go h.finalize(context.Background(), s.ssrc)
		}
	} else {
		s.silent = 0
	}
}

// HandleSpeaking processes a speaking-state change. Speaking start is a
// logged no-op reserved for future enrichment (identity association aside);
// speaking stop triggers finalization. Runs as its own unit of work.
func (h *Handler) HandleSpeaking(ssrc uint32, userID string, speaking bool) {
	go h.handleSpeaking(context.Background(), ssrc, userID, speaking)
}

func (h *Handler) handleSpeaking(ctx context.Context, ssrc uint32, userID string, speaking bool) {
	s, created := h.registry.GetOrCreate(ssrc)
	if created {
		h.metrics.ActiveSpeakers.Add(ctx, 1)
	}
	if userID != "" && s.UserID() == "" {
		h.adoptUser(ctx, s, userID)
	}
	if speaking {
		slog.Debug("speaker started talking", "ssrc", ssrc, "user_id", userID)
		return
	}
	h.finalize(ctx, ssrc)
}

// adoptUser associates a freshly seen user with the session: resolves the
// display identity, applies the bot/ignore and transcriber-cap policy, and
// opens the first archival ingest record for opted-in speakers.
func (h *Handler) adoptUser(ctx context.Context, s *SpeakerSession, userID string) {
	ident, err := h.resolver.Resolve(ctx, userID)
	if err != nil {
		slog.Warn("failed to resolve speaker identity", "ssrc", s.ssrc, "user_id", userID, "error", err)
		s.setIdentity(userID, "", "")
		return
	}
	s.setIdentity(userID, ident.Username, ident.AvatarURL)

	if ident.Bot {
		s.SetIgnored(true)
		slog.Debug("ignoring bot speaker", "ssrc", s.ssrc, "user_id", userID)
		return
	}

	h.activeMu.Lock()
	_, held := h.active[userID]
	capReached := !held && len(h.active) >= int(h.maxTranscriber.Load())
	if !held && !capReached {
		h.active[userID] = struct{}{}
	}
	h.activeMu.Unlock()

	if capReached {
		s.SetIgnored(true)
		if evicted, ok := h.waiting.Add(userID); ok {
			slog.Debug("speaker queue full, evicted oldest", "evicted_user_id", evicted)
		}
		slog.Info("transcriber cap reached, speaker queued",
			"ssrc", s.ssrc, "user_id", userID, "cap", h.maxTranscriber.Load())
		return
	}

	if h.ingest != nil && ident.IngestOptIn {
		rec, err := h.ingest.Open(ctx, userID, h.language)
		if err != nil {
			slog.Warn("failed to open ingest record", "user_id", userID, "error", err)
			return
		}
		s.enableIngest(rec)
	}
}

// HandleDisconnect tears down all state for a departed speaker and promotes
// the oldest queued speaker into the freed transcriber slot. Runs as its own
// unit of work.
func (h *Handler) HandleDisconnect(userID string) {
	go h.handleDisconnect(context.Background(), userID)
}

func (h *Handler) handleDisconnect(ctx context.Context, userID string) {
	for _, s := range h.registry.ByUser(userID) {
		if _, ok := h.registry.Remove(s.ssrc); ok {
			h.metrics.ActiveSpeakers.Add(ctx, -1)
		}
		if rec := s.swapRecord(nil); rec != nil {
			if err := rec.Discard(ctx); err != nil {
				slog.Warn("failed to discard open ingest record", "user_id", userID, "error", err)
			}
		}
		slog.Debug("removed speaker session", "ssrc", s.ssrc, "user_id", userID)
	}

	h.activeMu.Lock()
	_, held := h.active[userID]
	delete(h.active, userID)
	h.activeMu.Unlock()
	h.waiting.Remove(userID)

	if !held {
		return
	}
	next, ok := h.waiting.PopOldest()
	if !ok {
		return
	}
	h.activeMu.Lock()
	h.active[next] = struct{}{}
	h.activeMu.Unlock()
	for _, s := range h.registry.ByUser(next) {
		s.SetIgnored(false)
	}
	slog.Info("promoted queued speaker into freed transcriber slot", "user_id", next)
}

// HandleSessionConnect processes a connection-level connect/reconnect event.
// When a known session reappears under a different SSRC, the stale ignored
// bookkeeping is reset, independent of speaker-level state. Runs as its own
// unit of work.
func (h *Handler) HandleSessionConnect(sessionID string, ssrc uint32) {
	go h.handleSessionConnect(context.Background(), sessionID, ssrc)
}

func (h *Handler) handleSessionConnect(ctx context.Context, sessionID string, ssrc uint32) {
	h.sessMu.Lock()
	prev, seen := h.sessionSSRC[sessionID]
	h.sessionSSRC[sessionID] = ssrc
	h.sessMu.Unlock()

	if seen && prev == ssrc {
		return
	}
	if seen {
		// Reconnect under a new SSRC: the old flag no longer applies.
		if old, ok := h.registry.Get(prev); ok {
			old.SetIgnored(false)
		}
	}
	s, created := h.registry.GetOrCreate(ssrc)
	if created {
		h.metrics.ActiveSpeakers.Add(ctx, 1)
	}
	// Only a reconnect clears the flag. On first sight of a session the
	// concurrently running adoption may have just marked the speaker
	// ignored (bot, over cap), and that decision must stand.
	if seen {
		s.SetIgnored(false)
	}
	slog.Debug("voice session connected", "session_id", sessionID, "ssrc", ssrc)
}

// frameRMS computes the root-mean-square energy of a PCM frame.
func frameRMS(pcm []int16) float64 {
	if len(pcm) == 0 {
		return 0
	}
	var sum float64
	for _, s := range pcm {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(pcm)))
}
