// Package deliver defines the boundary to the text-delivery collaborator:
// the component that posts finalized transcripts (and inference-failure
// diagnostics) somewhere a human can read them.
//
// The capture core only ever talks to the [Sink] interface; the Discord
// webhook implementation lives alongside it in this package.
package deliver

import "context"

// Transcript is one finalized speaking turn ready for delivery.
type Transcript struct {
	// SSRC identifies the speaker's packet stream, for log correlation.
	SSRC uint32

	// Username is the speaker's display name.
	Username string

	// AvatarURL is the speaker's avatar, when the platform supports
	// impersonated posting.
	AvatarURL string

	// Text is the non-empty transcript.
	Text string
}

// Sink receives finalized transcripts and user-visible diagnostics.
//
// Implementations must be safe for concurrent use: many speakers finalize
// independently. Errors returned by Sink methods are logged by the caller
// and never propagate past the speaker's turn.
type Sink interface {
	// Transcript posts a finalized transcript.
	Transcript(ctx context.Context, t Transcript) error

	// Diagnostic posts a user-visible failure notice for the given SSRC,
	// e.g. when inference fails during finalize.
	Diagnostic(ctx context.Context, ssrc uint32, msg string) error
}
