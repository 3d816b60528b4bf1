package capture

// admit decides whether a packet with the given sequence number is fed to
// the stream. The first packet for a session is always admitted. After that
// only the exact successor of the last admitted packet passes; anything else
// is a gap/out-of-order event: the skipped range is recorded for diagnostics,
// the sequencer resynchronises forward to the observed number, and the
// current packet is dropped. No reordering buffer is kept — the lost audio
// is the price of bounded latency and bounded memory.
//
// Sequence arithmetic wraps naturally at the uint16 boundary. Must run on
// the session's lane.
func (s *SpeakerSession) admit(seq uint16) bool {
	if !s.haveSeq {
		s.haveSeq = true
		s.lastSeq = seq
		return true
	}
	expected := s.lastSeq + 1
	if seq == expected {
		s.lastSeq = seq
		return true
	}
	for m, n := expected, 0; m != seq && n < maxTrackedMissing; m, n = m+1, n+1 {
		s.missing[m] = struct{}{}
	}
	s.lastSeq = seq
	return false
}

// clearSequencing resets all per-turn bookkeeping: sequencing state, the
// missing-packet set, and the silent-frame counter. Called on every finalize
// so the next turn starts clean. Must run on the session's lane.
func (s *SpeakerSession) clearSequencing() {
	s.haveSeq = false
	s.silent = 0
	clear(s.missing)
}
