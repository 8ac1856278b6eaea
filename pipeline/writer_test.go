package pipeline

import (
	"bytes"
	"testing"

	"github.com/grailbio/splitcode/encoding/fastq"
	"github.com/grailbio/splitcode/tagindex"
)

func TestWriterPreservesBatchOrder(t *testing.T) {
	reg := NewRegistryWithTags(t, "bc1")
	var out bytes.Buffer
	classWriter := fastq.NewWriter(&out)
	dest := func(bucketID int, classification []int) ([]*fastq.Writer, error) {
		return []*fastq.Writer{classWriter}, nil
	}
	mapping := NewMapping()
	w := NewWriter(8, dest, nil, nil, func(id int) string { return reg.Tag(id).Name }, mapping, false)

	read := func(id string) fastq.Read {
		return fastq.Read{ID: id, Seq: "ACGT", Unk: "+", Qual: "IIII"}
	}
	resultFor := func(id string) Result {
		return Result{
			Reads: []fastq.Read{read(id)},
			Scan:  tagindex.Result{Classification: []int{0}, Keep: []tagindex.TrimRange{{Start: 0, End: 4}}},
		}
	}

	// Insert batch 1 before batch 0; the writer must still emit batch 0's
	// reads first.
	if err := w.Write(1, []Result{resultFor("@second")}); err != nil {
		t.Fatal(err)
	}
	if err := w.Write(0, []Result{resultFor("@first")}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	want := "@first\nACGT\n+\nIIII\n@second\nACGT\n+\nIIII\n"
	if got := out.String(); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestWriterDropsUnassignedWhenNotConfigured(t *testing.T) {
	reg := NewRegistryWithTags(t, "bc1")
	var out bytes.Buffer
	classWriter := fastq.NewWriter(&out)
	dest := func(bucketID int, classification []int) ([]*fastq.Writer, error) {
		return []*fastq.Writer{classWriter}, nil
	}
	mapping := NewMapping()
	w := NewWriter(4, dest, nil, nil, func(id int) string { return reg.Tag(id).Name }, mapping, false)

	res := Result{
		Reads: []fastq.Read{{ID: "@u", Seq: "ACGT", Unk: "+", Qual: "IIII"}},
		Scan:  tagindex.Result{Unassigned: true},
	}
	if err := w.Write(0, []Result{res}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if out.Len() != 0 {
		t.Errorf("expected no output for an unassigned read with no unassigned destination, got %q", out.String())
	}
}

// TestWriterRoutesByClassification exercises the bucket-keyed dest
// callback's core contract: two reads with distinct classification
// vectors must land in two distinct destinations, and a read with a
// previously-seen vector must be routed back to the same destination
// rather than opening a new one.
func TestWriterRoutesByClassification(t *testing.T) {
	reg := NewRegistryWithTags(t, "bc1", "bc2")
	var bucketA, bucketB bytes.Buffer
	writerA := fastq.NewWriter(&bucketA)
	writerB := fastq.NewWriter(&bucketB)

	seen := map[int][]*fastq.Writer{}
	opens := 0
	dest := func(bucketID int, classification []int) ([]*fastq.Writer, error) {
		if ws, ok := seen[bucketID]; ok {
			return ws, nil
		}
		opens++
		var ws []*fastq.Writer
		switch {
		case len(classification) == 1 && classification[0] == 0:
			ws = []*fastq.Writer{writerA}
		case len(classification) == 1 && classification[0] == 1:
			ws = []*fastq.Writer{writerB}
		default:
			t.Fatalf("unexpected classification %v", classification)
		}
		seen[bucketID] = ws
		return ws, nil
	}
	mapping := NewMapping()
	w := NewWriter(4, dest, nil, nil, func(id int) string { return reg.Tag(id).Name }, mapping, false)

	read := func(id string) fastq.Read {
		return fastq.Read{ID: id, Seq: "ACGT", Unk: "+", Qual: "IIII"}
	}
	resultFor := func(id string, classID int) Result {
		return Result{
			Reads: []fastq.Read{read(id)},
			Scan:  tagindex.Result{Classification: []int{classID}, Keep: []tagindex.TrimRange{{Start: 0, End: 4}}},
		}
	}

	if err := w.Write(0, []Result{
		resultFor("@a1", 0),
		resultFor("@b1", 1),
		resultFor("@a2", 0),
	}); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	if opens != 2 {
		t.Errorf("got %d distinct bucket destinations opened, want 2", opens)
	}
	if got, want := bucketA.String(), "@a1\nACGT\n+\nIIII\n@a2\nACGT\n+\nIIII\n"; got != want {
		t.Errorf("bucket A got %q, want %q", got, want)
	}
	if got, want := bucketB.String(), "@b1\nACGT\n+\nIIII\n"; got != want {
		t.Errorf("bucket B got %q, want %q", got, want)
	}
}
