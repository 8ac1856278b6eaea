package tagindex

import (
	"errors"
	"testing"
)

func TestRegistryExactMatchLeftTrim(t *testing.T) {
	reg := NewRegistry(1)
	if _, err := reg.AddTag(TagRecord{
		Name:      "bc1",
		Sequences: []string{"ACGT"},
		Trim:      Trim{Dir: TrimLeft},
	}); err != nil {
		t.Fatal(err)
	}
	if err := reg.Close(); err != nil {
		t.Fatal(err)
	}

	s := NewScanner(reg)
	res := s.Scan([][]byte{[]byte("ACGTTTTTTT")})
	if res.Unassigned {
		t.Fatal("expected read to be assigned")
	}
	if len(res.Hits) != 1 || res.Hits[0].TagID != 0 {
		t.Fatalf("got hits %v, want exactly one hit on tag 0", res.Hits)
	}
	if res.Keep[0].Start != 4 {
		t.Errorf("got left-trim start %d, want 4", res.Keep[0].Start)
	}
}

func TestRegistryOneMismatch(t *testing.T) {
	reg := NewRegistry(1)
	if _, err := reg.AddTag(TagRecord{
		Name:      "bc1",
		Sequences: []string{"ACGT"},
		Mismatch:  1,
	}); err != nil {
		t.Fatal(err)
	}
	if err := reg.Close(); err != nil {
		t.Fatal(err)
	}

	s := NewScanner(reg)
	res := s.Scan([][]byte{[]byte("ACGA")}) // one substitution from ACGT
	if res.Unassigned {
		t.Fatal("expected read to be assigned")
	}
	if len(res.Hits) != 1 || res.Hits[0].Dist != 1 {
		t.Fatalf("got hits %v, want one hit at distance 1", res.Hits)
	}
}

func TestRegistryCanonicalCollision(t *testing.T) {
	reg := NewRegistry(1)
	if _, err := reg.AddTag(TagRecord{Name: "bc1", Sequences: []string{"ACGT"}}); err != nil {
		t.Fatal(err)
	}
	_, err := reg.AddTag(TagRecord{Name: "bc2", Sequences: []string{"ACGT"}})
	if err == nil {
		t.Fatal("expected a canonical collision error")
	}
	var terr *Error
	if !errors.As(err, &terr) || terr.Kind != CanonicalCollision {
		t.Errorf("got %v, want a CanonicalCollision error", err)
	}
	if reg.NumTags() != 1 {
		t.Errorf("got %d tags after failed AddTag, want 1 (rollback)", reg.NumTags())
	}
}

func TestRegistryGeneratedCollisionIsLazilyRemoved(t *testing.T) {
	reg := NewRegistry(1)
	// AAAA and AATT are two substitutions apart, so both tags register
	// successfully; AAAT and AATA are one-mismatch neighbors of both, and
	// those colliding generated variants should be dropped from both by
	// Close, not preserved for either.
	if _, err := reg.AddTag(TagRecord{Name: "a", Sequences: []string{"AAAA"}, Mismatch: 1}); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.AddTag(TagRecord{Name: "b", Sequences: []string{"AATT"}, Mismatch: 1}); err != nil {
		t.Fatal(err)
	}
	if err := reg.Close(); err != nil {
		t.Fatal(err)
	}
	for _, e := range reg.Lookup("AAAT") {
		if e.TagID == 0 {
			t.Error("expected tag 0's colliding generated variant AAAT to have been removed")
		}
	}
	for _, e := range reg.Lookup("AATA") {
		if e.TagID == 1 {
			t.Error("expected tag 1's colliding generated variant AATA to have been removed")
		}
	}
}

func TestRegistryMaxFindsCap(t *testing.T) {
	reg := NewRegistry(1)
	if _, err := reg.AddTag(TagRecord{Name: "bc1", Sequences: []string{"AC"}, MaxFinds: 1}); err != nil {
		t.Fatal(err)
	}
	if err := reg.Close(); err != nil {
		t.Fatal(err)
	}
	s := NewScanner(reg)
	res := s.Scan([][]byte{[]byte("ACAC")})
	if len(res.Hits) != 1 {
		t.Fatalf("got %d hits, want 1 (max_finds=1 cap)", len(res.Hits))
	}
}

func TestRegistryMinFindsUnassigned(t *testing.T) {
	reg := NewRegistry(1)
	if _, err := reg.AddTag(TagRecord{Name: "bc1", Sequences: []string{"AC"}, MinFinds: 2}); err != nil {
		t.Fatal(err)
	}
	if err := reg.Close(); err != nil {
		t.Fatal(err)
	}
	s := NewScanner(reg)
	res := s.Scan([][]byte{[]byte("ACGT")}) // only one occurrence of AC
	if !res.Unassigned {
		t.Error("expected read to be unassigned, min_finds=2 not satisfied")
	}
}

func TestRegistryCloseRequiresPositiveNFiles(t *testing.T) {
	reg := NewRegistry(0)
	err := reg.Close()
	if err == nil {
		t.Fatal("expected ConfigError when nFiles == 0")
	}
	var terr *Error
	if !errors.As(err, &terr) || terr.Kind != ConfigError {
		t.Errorf("got %v, want a ConfigError", err)
	}
}

func TestRegistryAddTagAfterCloseFails(t *testing.T) {
	reg := NewRegistry(1)
	if err := reg.Close(); err != nil {
		t.Fatal(err)
	}
	_, err := reg.AddTag(TagRecord{Name: "late", Sequences: []string{"AC"}})
	var terr *Error
	if !errors.As(err, &terr) || terr.Kind != IndexClosed {
		t.Errorf("got %v, want an IndexClosed error", err)
	}
}
