package tagindex

import (
	"errors"
	"strings"
	"testing"
)

func TestParseDistance(t *testing.T) {
	for _, tc := range []struct {
		s                      string
		mismatch, indel, total int
	}{
		{"", 0, 0, 0},
		{"2", 2, 0, 2},
		{"1:1", 1, 1, 2},
		{"1:1:1", 1, 1, 1},
		{"2::2", 2, 0, 2},
	} {
		m, i, tot, err := ParseDistance(tc.s)
		if err != nil {
			t.Errorf("ParseDistance(%q): unexpected error %v", tc.s, err)
			continue
		}
		if m != tc.mismatch || i != tc.indel || tot != tc.total {
			t.Errorf("ParseDistance(%q) = (%d,%d,%d), want (%d,%d,%d)", tc.s, m, i, tot, tc.mismatch, tc.indel, tc.total)
		}
	}
}

func TestParseDistanceErrors(t *testing.T) {
	for _, s := range []string{"-1", "x", "1:2:3:4", "3:0:1", "2::3"} {
		if _, _, _, err := ParseDistance(s); err == nil {
			t.Errorf("ParseDistance(%q): expected error", s)
		}
	}
}

func TestParseLocation(t *testing.T) {
	for _, tc := range []struct {
		s                     string
		file, start, end int
	}{
		{"", -1, 0, 0},
		{"0", 0, 0, 0},
		{"1:5:10", 1, 5, 10},
		{"1,5,10", 1, 5, 10},
	} {
		file, start, end, err := ParseLocation(tc.s, 2)
		if err != nil {
			t.Errorf("ParseLocation(%q): unexpected error %v", tc.s, err)
			continue
		}
		if file != tc.file || start != tc.start || end != tc.end {
			t.Errorf("ParseLocation(%q) = (%d,%d,%d), want (%d,%d,%d)", tc.s, file, start, end, tc.file, tc.start, tc.end)
		}
	}
}

func TestParseLocationRejectsOutOfRangeFile(t *testing.T) {
	if _, _, _, err := ParseLocation("5", 2); err == nil {
		t.Error("expected error for file index beyond nFiles")
	}
}

func TestLoadConfigBasic(t *testing.T) {
	const table = `BARCODES	DISTANCES	LOCATIONS	MINFINDS
ACGT	1	0:0:4	1
TTTT
`
	reg := NewRegistry(1)
	if err := reg.LoadConfig(strings.NewReader(table)); err != nil {
		t.Fatal(err)
	}
	if reg.NumTags() != 2 {
		t.Fatalf("got %d tags, want 2", reg.NumTags())
	}
	if !reg.Closed() {
		t.Error("expected LoadConfig to close the registry")
	}
}

func TestLoadConfigRequiresBarcodesColumn(t *testing.T) {
	const table = `IDS
foo
`
	reg := NewRegistry(1)
	err := reg.LoadConfig(strings.NewReader(table))
	if err == nil {
		t.Fatal("expected error for missing BARCODES column")
	}
	var terr *Error
	if !errors.As(err, &terr) || terr.Kind != ConfigError {
		t.Errorf("got %v, want a ConfigError", err)
	}
}

func TestLoadConfigRejectsUnrecognizedColumn(t *testing.T) {
	const table = `BARCODES	BOGUS
ACGT	x
`
	reg := NewRegistry(1)
	if err := reg.LoadConfig(strings.NewReader(table)); err == nil {
		t.Fatal("expected error for unrecognized column")
	}
}

func TestLoadConfigRejectsBothLeftAndRight(t *testing.T) {
	const table = `BARCODES	LEFT	RIGHT
ACGT	0	0
`
	reg := NewRegistry(1)
	err := reg.LoadConfig(strings.NewReader(table))
	if err == nil {
		t.Fatal("expected error when both LEFT and RIGHT are set")
	}
	var terr *Error
	if !errors.As(err, &terr) || terr.Kind != InvalidTrim {
		t.Errorf("got %v, want an InvalidTrim error", err)
	}
}

func TestLoadConfigDefaultsNameToBarcodes(t *testing.T) {
	const table = `BARCODES
ACGT
`
	reg := NewRegistry(1)
	if err := reg.LoadConfig(strings.NewReader(table)); err != nil {
		t.Fatal(err)
	}
	if got := reg.Tag(0).Name; got != "ACGT" {
		t.Errorf("got name %q, want %q", got, "ACGT")
	}
}
