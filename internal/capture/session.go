// Package capture is the real-time heart of voxscribe: it demultiplexes
// per-speaker voice packet streams, validates their ordering, normalises the
// audio, feeds it incrementally to the inference engine, and finalizes each
// speaking turn into exactly one transcript.
//
// Every speaker (keyed by SSRC) owns a SpeakerSession with a single-consumer
// execution lane: all operations that touch the session's decode stream or
// sequencing state run on that lane, serialized in submission order. This is
// the central correctness invariant of the pipeline — a stream fed from two
// logically concurrent operations corrupts its decode state silently — and
// the lane enforces it structurally instead of relying on scheduling luck.
package capture

import (
	"sync"
	"sync/atomic"

	"github.com/voxscribe/voxscribe/internal/ingest"
	"github.com/voxscribe/voxscribe/pkg/stt"
)

// laneBuffer bounds how many pending operations a session's lane can hold.
// At Discord's 50 packets/s this is several seconds of backlog; a lane this
// far behind means the process is drowning and dropping is the right call.
const laneBuffer = 256

// maxTrackedMissing caps how many skipped sequence numbers a single gap
// records, so a resync across a huge discontinuity stays bounded.
const maxTrackedMissing = 64

// SpeakerSession holds all per-SSRC state: the live decode stream, packet
// sequencing bookkeeping, speaker identity, and the optional archival ingest
// handle.
//
// The stream, sequencing, and silent-frame fields are touched only from the
// session's lane. Identity and policy fields are guarded by mu because other
// events (speaking updates, reconnects) set them concurrently.
type SpeakerSession struct {
	ssrc uint32

	lane     chan func()
	stopped  chan struct{}
	stopOnce sync.Once

	// Lane-confined state.
	stream  stt.Stream
	lastSeq uint16
	haveSeq bool
	missing map[uint16]struct{}
	silent  int

	ignored atomic.Bool

	mu        sync.Mutex
	userID    string
	username  string
	avatarURL string
	record    ingest.Record
	ingestOn  bool
}

func newSpeakerSession(ssrc uint32) *SpeakerSession {
	s := &SpeakerSession{
		ssrc:    ssrc,
		lane:    make(chan func(), laneBuffer),
		stopped: make(chan struct{}),
		missing: make(map[uint16]struct{}),
	}
	go s.run()
	return s
}

// SSRC returns the stream source identifier this session is keyed by.
func (s *SpeakerSession) SSRC() uint32 { return s.ssrc }

// run is the session's exclusive execution lane.
func (s *SpeakerSession) run() {
	for {
		select {
		case fn := <-s.lane:
			fn()
		case <-s.stopped:
			return
		}
	}
}

// post schedules fn on the session's lane without waiting for it. Returns
// false if the session has been stopped or the lane is full; the operation
// is dropped in either case.
func (s *SpeakerSession) post(fn func()) bool {
	select {
	case <-s.stopped:
		return false
	default:
	}
	select {
	case s.lane <- fn:
		return true
	case <-s.stopped:
		return false
	default:
		return false
	}
}

// do runs fn on the lane and waits for it to complete. Unlike post it blocks
// until the lane accepts the operation. Returns false if the session stopped
// before fn could run to completion.
func (s *SpeakerSession) do(fn func()) bool {
	done := make(chan struct{})
	wrapped := func() {
		fn()
		close(done)
	}
	select {
	case s.lane <- wrapped:
	case <-s.stopped:
		return false
	}
	select {
	case <-done:
		return true
	case <-s.stopped:
		return false
	}
}

// stop shuts the lane down. Pending operations are discarded.
func (s *SpeakerSession) stop() {
	s.stopOnce.Do(func() { close(s.stopped) })
}

// swapStream installs fresh as the session's live stream and returns the
// previous one (nil if no audio ever arrived). Must run on the lane so the
// swap is atomic with respect to feeds: there is never a window with zero or
// two streams receiving audio.
func (s *SpeakerSession) swapStream(fresh stt.Stream) stt.Stream {
	old := s.stream
	s.stream = fresh
	return old
}

// SetIgnored marks the session's audio as not worth transcribing (bots,
// speakers beyond the transcriber cap). Ignored sessions drop packets before
// sequencing.
func (s *SpeakerSession) SetIgnored(v bool) { s.ignored.Store(v) }

// Ignored reports whether the session is currently ignored.
func (s *SpeakerSession) Ignored() bool { return s.ignored.Load() }

// setIdentity records the speaker's resolved identity. Identity may arrive
// after audio has already been flowing.
func (s *SpeakerSession) setIdentity(userID, username, avatarURL string) {
	s.mu.Lock()
	s.userID = userID
	s.username = username
	s.avatarURL = avatarURL
	s.mu.Unlock()
}

// identity returns the associated user and display identity. userID is ""
// until a speaking-state event has associated a user with this SSRC.
func (s *SpeakerSession) identity() (userID, username, avatarURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID, s.username, s.avatarURL
}

// UserID returns the associated user ID, or "" if identity has not arrived.
func (s *SpeakerSession) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// enableIngest attaches the session's first open archival record.
func (s *SpeakerSession) enableIngest(r ingest.Record) {
	s.mu.Lock()
	s.record = r
	s.ingestOn = true
	s.mu.Unlock()
}

// ingestEnabled reports whether this speaker opted into archival ingest.
func (s *SpeakerSession) ingestEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ingestOn
}

// swapRecord installs r as the session's open archival record and returns
// the previous one.
func (s *SpeakerSession) swapRecord(r ingest.Record) ingest.Record {
	s.mu.Lock()
	old := s.record
	s.record = r
	s.mu.Unlock()
	return old
}
