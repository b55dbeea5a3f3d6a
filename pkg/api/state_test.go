package api

import "testing"

func TestStateCloneIsIndependent(t *testing.T) {
	orig := State{"count": 1, "name": "a"}
	copied := orig.Clone()

	copied["count"] = 2
	copied["extra"] = true

	if orig["count"] != 1 {
		t.Fatalf("clone mutated the original: %v", orig)
	}
	if _, ok := orig["extra"]; ok {
		t.Fatalf("clone added a key to the original: %v", orig)
	}
}

func TestStateCloneOfNil(t *testing.T) {
	var s State
	copied := s.Clone()
	if copied == nil {
		t.Fatalf("expected non-nil clone")
	}
}

func TestLookupTopLevel(t *testing.T) {
	s := State{"count": 3}

	v, ok := s.Lookup("count")
	if !ok || v != 3 {
		t.Fatalf("Lookup(count) = %v, %v", v, ok)
	}

	if _, ok := s.Lookup("missing"); ok {
		t.Fatalf("expected missing key to report false")
	}
}

func TestLookupDottedPath(t *testing.T) {
	s := State{
		"profile": map[string]any{
			"row_count": 5,
			"nested":    State{"deep": "x"},
		},
	}

	v, ok := s.Lookup("profile.row_count")
	if !ok || v != 5 {
		t.Fatalf("Lookup(profile.row_count) = %v, %v", v, ok)
	}

	v, ok = s.Lookup("profile.nested.deep")
	if !ok || v != "x" {
		t.Fatalf("Lookup(profile.nested.deep) = %v, %v", v, ok)
	}

	if _, ok := s.Lookup("profile.row_count.deeper"); ok {
		t.Fatalf("expected traversal through a scalar to report false")
	}
	if _, ok := s.Lookup(""); ok {
		t.Fatalf("expected empty key to report false")
	}
}
