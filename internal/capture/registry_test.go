package capture

import (
	"sync"
	"testing"
)

func TestRegistryGetOrCreate(t *testing.T) {
	r := NewRegistry()
	defer r.Clear()

	s1, created := r.GetOrCreate(7)
	if !created {
		t.Fatal("first GetOrCreate reported created = false")
	}
	s2, created := r.GetOrCreate(7)
	if created {
		t.Error("second GetOrCreate reported created = true")
	}
	if s1 != s2 {
		t.Error("GetOrCreate returned a different session for the same SSRC")
	}
	if got, ok := r.Get(7); !ok || got != s1 {
		t.Error("Get did not return the created session")
	}
	if _, ok := r.Get(8); ok {
		t.Error("Get returned a session for an unknown SSRC")
	}
}

func TestRegistryGetOrCreateConcurrent(t *testing.T) {
	r := NewRegistry()
	defer r.Clear()

	const goroutines = 16
	sessions := make([]*SpeakerSession, goroutines)
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := range goroutines {
		go func() {
			defer wg.Done()
			sessions[i], _ = r.GetOrCreate(99)
		}()
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		if sessions[i] != sessions[0] {
			t.Fatal("concurrent GetOrCreate produced distinct sessions")
		}
	}
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
}

func TestRegistryRemoveStopsLane(t *testing.T) {
	r := NewRegistry()
	s, _ := r.GetOrCreate(3)

	removed, ok := r.Remove(3)
	if !ok || removed != s {
		t.Fatal("Remove did not return the session")
	}
	if s.post(func() {}) {
		t.Error("post on a removed session succeeded")
	}
	if _, ok := r.Remove(3); ok {
		t.Error("second Remove reported ok")
	}
}

func TestRegistryByUser(t *testing.T) {
	r := NewRegistry()
	defer r.Clear()

	a, _ := r.GetOrCreate(1)
	b, _ := r.GetOrCreate(2)
	r.GetOrCreate(3)
	a.setIdentity("u1", "alice", "")
	b.setIdentity("u1", "alice", "")

	if got := r.ByUser("u1"); len(got) != 2 {
		t.Errorf("ByUser(u1) returned %d sessions, want 2", len(got))
	}
	if got := r.ByUser("u2"); got != nil {
		t.Errorf("ByUser(u2) = %v, want nil", got)
	}
	if got := r.ByUser(""); got != nil {
		t.Errorf("ByUser(\"\") = %v, want nil", got)
	}
}

func TestRegistryClear(t *testing.T) {
	r := NewRegistry()
	r.GetOrCreate(1)
	r.GetOrCreate(2)

	cleared := r.Clear()
	if len(cleared) != 2 {
		t.Fatalf("Clear returned %d sessions, want 2", len(cleared))
	}
	if r.Len() != 0 {
		t.Errorf("Len() after Clear = %d, want 0", r.Len())
	}
	for _, s := range cleared {
		if s.post(func() {}) {
			t.Error("post on a cleared session succeeded")
		}
	}
}
