package capture

import "testing"

func TestWindowAddAndPopOrder(t *testing.T) {
	w := NewActiveSpeakerWindow(5)
	for _, u := range []string{"a", "b", "c"} {
		if _, evicted := w.Add(u); evicted {
			t.Errorf("Add(%q) evicted below capacity", u)
		}
	}
	if w.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", w.Len())
	}
	for _, want := range []string{"a", "b", "c"} {
		got, ok := w.PopOldest()
		if !ok || got != want {
			t.Errorf("PopOldest() = %q, %v, want %q, true", got, ok, want)
		}
	}
	if _, ok := w.PopOldest(); ok {
		t.Error("PopOldest on empty window reported ok")
	}
}

func TestWindowAddDedupes(t *testing.T) {
	w := NewActiveSpeakerWindow(5)
	w.Add("a")
	w.Add("a")
	if w.Len() != 1 {
		t.Errorf("Len() = %d, want 1", w.Len())
	}
}

func TestWindowEvictsOldestWhenFull(t *testing.T) {
	w := NewActiveSpeakerWindow(2)
	w.Add("a")
	w.Add("b")
	evicted, ok := w.Add("c")
	if !ok || evicted != "a" {
		t.Fatalf("Add(c) evicted %q, %v, want %q, true", evicted, ok, "a")
	}
	got, _ := w.PopOldest()
	if got != "b" {
		t.Errorf("PopOldest() = %q, want %q", got, "b")
	}
}

func TestWindowRemove(t *testing.T) {
	w := NewActiveSpeakerWindow(5)
	w.Add("a")
	w.Add("b")
	w.Add("c")

	if !w.Remove("b") {
		t.Fatal("Remove(b) = false")
	}
	if w.Remove("b") {
		t.Error("second Remove(b) = true")
	}
	got, _ := w.PopOldest()
	next, _ := w.PopOldest()
	if got != "a" || next != "c" {
		t.Errorf("pop order after Remove = %q, %q, want a, c", got, next)
	}
}
