package ingest

import "testing"

func TestHashUserID_StableAndOpaque(t *testing.T) {
	const id = "123456789012345678"

	h1 := HashUserID(id)
	h2 := HashUserID(id)
	if h1 != h2 {
		t.Errorf("hash not stable: %q vs %q", h1, h2)
	}
	if h1 == id {
		t.Error("hash must not equal the raw user ID")
	}
	// SHA-256 hex digest.
	if len(h1) != 64 {
		t.Errorf("unexpected digest length %d", len(h1))
	}
}

func TestHashUserID_DistinctUsers(t *testing.T) {
	if HashUserID("alice") == HashUserID("bob") {
		t.Error("distinct users must not collide")
	}
}
