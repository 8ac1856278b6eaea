package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
)

func writeLocalFile(t *testing.T, path, contents string) {
	t.Helper()
	ctx := vcontext.Background()
	out, err := file.Create(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := out.Writer(ctx).Write([]byte(contents)); err != nil {
		t.Fatal(err)
	}
	if err := out.Close(ctx); err != nil {
		t.Fatal(err)
	}
}

func readLocalFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

// TestEndToEndSingleTag drives run() directly against local files, the
// same way fusion_e2e_test.go drives DetectFusion directly rather than
// shelling out to a built binary.
func TestEndToEndSingleTag(t *testing.T) {
	dir := t.TempDir()
	r1 := filepath.Join(dir, "r1.fastq")
	out1 := filepath.Join(dir, "out1.fastq")
	unassigned1 := filepath.Join(dir, "unassigned1.fastq")
	mappingPath := filepath.Join(dir, "mapping.tsv")

	writeLocalFile(t, r1,
		"@hit1\nACGTTTTT\n+\nIIIIIIII\n"+
			"@miss1\nGGGGGGGG\n+\nIIIIIIII\n"+
			"@hit2\nACGTAAAA\n+\nIIIIIIII\n")

	f := &cliFlags{
		threads:   2,
		nFiles:    1,
		barcodes:  "ACGT",
		distances: "0",
		locations: "0:0:4",
		// A read with no hit is unassigned only when it fails min_finds;
		// otherwise it lands in the "none" bucket.
		minFinds:  1,
		r1:        r1,
		output:    out1,
		unassigned: unassigned1,
		mapping:   mappingPath,
	}
	f.haveLeft = true
	f.left = 0

	if err := f.validate(); err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if err := run(ctx, f); err != nil {
		t.Fatal(err)
	}

	// Assigned output is routed per-bucket: the base -output path gets
	// the classification's tag names spliced in before its extension.
	bucketPath := withBucketLabel(out1, "ACGT")
	assigned := readLocalFile(t, bucketPath)
	if n := bytes.Count([]byte(assigned), []byte("\n@")); n+1 != 2 {
		t.Errorf("assigned output has wrong record count: %q", assigned)
	}
	if bytes.Contains([]byte(assigned), []byte("ACGT")) {
		t.Error("left-trim should have removed the tag from assigned reads")
	}
	if _, err := os.Stat(out1); err == nil {
		t.Errorf("expected no file at the unbucketed base path %q", out1)
	}

	missed := readLocalFile(t, unassigned1)
	if !bytes.Contains([]byte(missed), []byte("miss1")) {
		t.Errorf("expected the non-matching read in the unassigned stream, got %q", missed)
	}

	mapping := readLocalFile(t, mappingPath)
	if mapping == "" {
		t.Error("expected a non-empty mapping file")
	}
}
