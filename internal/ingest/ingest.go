// Package ingest implements the optional voice-sample archival collaborator.
//
// Speakers who opt in get one open ingest record per utterance, keyed by a
// salted hash of their user ID and the transcription language — never the
// raw ID. When the utterance finalizes, the record is completed with the
// transcript text and a fresh record is opened for the next utterance.
// Records still open at disconnect are discarded.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// Record is one open archival record awaiting its transcript.
type Record interface {
	// Finalize completes the record with the utterance's transcript text.
	Finalize(ctx context.Context, transcript string) error

	// Discard deletes the record. Used when the speaker disconnects before
	// the utterance finalizes.
	Discard(ctx context.Context) error
}

// Store opens archival records for opted-in speakers.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Open creates a new record for (userID, language). Any previously open
	// record for the same key is unaffected; callers swap records themselves
	// so the finalize path never loses an utterance.
	Open(ctx context.Context, userID, language string) (Record, error)
}

// HashUserID returns the hex-encoded SHA-256 digest of the raw user ID.
// Archival storage only ever sees this hash.
func HashUserID(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])
}
