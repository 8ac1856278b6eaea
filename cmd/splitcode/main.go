// Command splitcode demultiplexes and trims barcoded FASTQ reads
// against a declared tag table, writing one output stream per
// classification bucket plus an optional mapping file recording the
// bucket assignments.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/splitcode/encoding/fastq"
	"github.com/grailbio/splitcode/ioutil"
	"github.com/grailbio/splitcode/pipeline"
	"github.com/grailbio/splitcode/tagindex"
)

func usage() {
	fmt.Fprint(os.Stderr, `splitcode: demultiplex and trim barcoded FASTQ reads

Usage:
  splitcode -r1 R1.fastq.gz [-r2 R2.fastq.gz] \
            {-config tags.tsv | -barcodes ACGT [...]} \
            -output out_1.fastq.gz[,out_2.fastq.gz...] [options]

`)
	flag.PrintDefaults()
	os.Exit(1)
}

func main() {
	flag.Usage = usage

	f := &cliFlags{}
	flag.IntVar(&f.threads, "threads", runtime.NumCPU(), "number of worker goroutines")
	flag.IntVar(&f.nFiles, "nfiles", 1, "number of input streams per logical read")
	flag.StringVar(&f.config, "config", "", "path to a tag config table (TSV)")
	flag.StringVar(&f.barcodes, "barcodes", "", "single tag's BARCODES field, when not using -config")
	flag.StringVar(&f.distances, "distances", "", "single tag's DISTANCES field (mismatch[:indel[:total]])")
	flag.StringVar(&f.locations, "locations", "", "single tag's LOCATIONS field (file[:start[:end]])")
	flag.StringVar(&f.ids, "ids", "", "single tag's name, defaults to -barcodes")
	flag.IntVar(&f.minFinds, "minfinds", 0, "single tag's MINFINDS")
	flag.IntVar(&f.maxFinds, "maxfinds", 0, "single tag's MAXFINDS")
	flag.BoolVar(&f.exclude, "exclude", false, "exclude the single tag from the classification vector")
	left := flag.Int("left", 0, "single tag's LEFT trim offset")
	right := flag.Int("right", 0, "single tag's RIGHT trim offset")

	flag.StringVar(&f.r1, "r1", "", "stream-0 input file (exactly one path)")
	flag.StringVar(&f.r2, "r2", "", "stream-1 input file (exactly one path)")
	flag.IntVar(&f.interleaveNFiles, "interleave-nfiles", 0, "if nonzero, -r1 carries this many interleaved reads per logical unit instead of separate -r1/-r2/... streams")

	flag.StringVar(&f.output, "output", "", "comma-separated per-stream output paths for assigned reads")
	flag.StringVar(&f.outb, "outb", "", "path to write the assembled classification string per assigned read")
	flag.StringVar(&f.unassigned, "unassigned", "", "comma-separated per-stream output paths for unassigned reads")
	flag.StringVar(&f.mapping, "mapping", "", "mapping file path; loaded if it exists, always (re)written at shutdown")

	flag.BoolVar(&f.keep, "keep", true, "preserve existing bucket assignments found in -mapping")
	flag.BoolVar(&f.remove, "remove", false, "discard existing bucket assignments found in -mapping")
	flag.BoolVar(&f.appendOut, "append", false, "accepted but has no effect: output files are always truncated")
	flag.BoolVar(&f.empty, "empty", false, "accepted but has no effect: a bucket's files are created only when a read is routed to it")
	flag.BoolVar(&f.pipe, "pipe", false, "accepted but has no effect: inputs and outputs are always the named paths")
	flag.BoolVar(&f.trimOnly, "trim-only", false, "rejected together with -unassigned; has no other effect: reads are still classified and split by bucket")
	flag.BoolVar(&f.gzip, "gzip", false, "gzip-compress output regardless of output path extension")
	flag.BoolVar(&f.noOutput, "no-output", false, "scan and report but do not write read output")
	flag.BoolVar(&f.modNames, "mod-names", false, "append the classification string to each output read's name")
	flag.Parse()

	f.left, f.haveLeft = *left, isFlagSet("left")
	f.right, f.haveRight = *right, isFlagSet("right")
	if f.remove && !isFlagSet("keep") {
		f.keep = false
	}

	if err := f.validate(); err != nil {
		log.Fatal(err)
	}

	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})

	shutdown := grail.Init()
	defer shutdown()

	ctx := vcontext.Background()
	if err := run(ctx, f); err != nil {
		log.Fatal(err)
	}
}

func isFlagSet(name string) bool {
	found := false
	flag.Visit(func(fl *flag.Flag) {
		if fl.Name == name {
			found = true
		}
	})
	return found
}

func run(ctx context.Context, f *cliFlags) error {
	reg, err := buildRegistry(ctx, f)
	if err != nil {
		return err
	}

	streamPaths := [][]string{splitLocalList(f.r1)}
	if f.r2 != "" {
		streamPaths = append(streamPaths, splitLocalList(f.r2))
	}
	reader, closeInputs, err := openReader(ctx, streamPaths, f)
	if err != nil {
		return err
	}
	defer closeInputs()

	outPaths := splitLocalList(f.output)
	if !f.noOutput && len(outPaths) != 0 && len(outPaths) != f.nFiles {
		return &tagindex.Error{Kind: tagindex.ConfigError, Msg: "-output must name exactly -nfiles paths"}
	}

	var unassignedWriters []*fastq.Writer
	var closeUnassigned func() error = func() error { return nil }
	if f.unassigned != "" && !f.noOutput {
		unassignedWriters, closeUnassigned, err = openOutputs(ctx, splitLocalList(f.unassigned), f)
		if err != nil {
			return err
		}
	}
	defer closeUnassigned()

	var barcodeOnly io.Writer
	var closeBarcodeOnly = func() error { return nil }
	if f.outb != "" && !f.noOutput {
		w, closeFn, err := ioutil.CreateStream(ctx, f.outb)
		if err != nil {
			return err
		}
		barcodeOnly, closeBarcodeOnly = w, closeFn
	}
	defer closeBarcodeOnly()

	mapping, err := loadOrCreateMapping(ctx, f, reg)
	if err != nil {
		return err
	}

	names := func(id int) string { return reg.Tag(id).Name }

	bw := newBucketWriters(ctx, outPaths, f, names)
	dest := bw.dest
	if f.noOutput {
		discard := make([]*fastq.Writer, f.nFiles)
		for i := range discard {
			discard[i] = fastq.NewWriter(io.Discard)
		}
		dest = func(int, []int) ([]*fastq.Writer, error) { return discard, nil }
	}

	writer := pipeline.NewWriter(f.threads*2, dest, unassignedWriters, barcodeOnly, names, mapping, f.modNames)

	var errOnce errors.Once
	errOnce.Set(pipeline.Run(reader, reg, writer, f.threads))
	errOnce.Set(writer.Close())
	errOnce.Set(bw.Close())

	if f.mapping != "" {
		w, closeFn, err := ioutil.CreateStream(ctx, f.mapping)
		if err != nil {
			return err
		}
		errOnce.Set(mapping.WriteTo(w, names))
		errOnce.Set(closeFn())
	}
	return errOnce.Err()
}

func loadOrCreateMapping(ctx context.Context, f *cliFlags, reg *tagindex.Registry) (*pipeline.Mapping, error) {
	if f.mapping == "" || f.remove {
		return pipeline.NewMapping(), nil
	}
	r, closeFn, err := ioutil.OpenStream(ctx, f.mapping)
	if err != nil {
		if os.IsNotExist(err) || errors.Is(errors.NotExist, err) {
			return pipeline.NewMapping(), nil
		}
		return nil, err
	}
	defer closeFn()
	return pipeline.LoadMapping(r, reg)
}

// openReader builds the batching pipeline.Reader over either N separate
// per-stream files (-r1/-r2/...) or, when -interleave-nfiles is set, a
// single file carrying that many reads round-robin per logical unit.
func openReader(ctx context.Context, streamPaths [][]string, f *cliFlags) (*pipeline.Reader, func() error, error) {
	if f.interleaveNFiles > 0 {
		r, closeFn, err := ioutil.OpenStream(ctx, f.r1)
		if err != nil {
			return nil, nil, err
		}
		scanner := pipeline.NewInterleavedScanner(r, f.interleaveNFiles, fastq.All)
		return pipeline.NewReader(scanner, pipeline.DefaultBatchBytes), closeFn, nil
	}

	var readers []io.Reader
	var closers []func() error
	for _, paths := range streamPaths {
		if len(paths) != 1 {
			return nil, nil, &tagindex.Error{Kind: tagindex.ConfigError, Msg: "multi-file concatenated streams are not yet supported; pass exactly one path per -r1/-r2"}
		}
		r, closeFn, err := ioutil.OpenStream(ctx, paths[0])
		if err != nil {
			for _, c := range closers {
				_ = c()
			}
			return nil, nil, err
		}
		readers = append(readers, r)
		closers = append(closers, closeFn)
	}
	closeAll := func() error {
		var first error
		for _, c := range closers {
			if err := c(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
	scanner := fastq.NewMultiScanner(readers, fastq.All)
	return pipeline.NewReader(scanner, pipeline.DefaultBatchBytes), closeAll, nil
}

func outputPath(p string, f *cliFlags) string {
	if f.gzip && !strings.HasSuffix(p, ".gz") {
		p += ".gz"
	}
	return p
}

func openOutputs(ctx context.Context, paths []string, f *cliFlags) ([]*fastq.Writer, func() error, error) {
	writers := make([]*fastq.Writer, len(paths))
	var closers []func() error
	for i, p := range paths {
		w, closeFn, err := ioutil.CreateStream(ctx, outputPath(p, f))
		if err != nil {
			for _, c := range closers {
				_ = c()
			}
			return nil, nil, err
		}
		writers[i] = fastq.NewWriter(w)
		closers = append(closers, closeFn)
	}
	closeAll := func() error {
		var first error
		for _, c := range closers {
			if err := c(); err != nil && first == nil {
				first = err
			}
		}
		return first
	}
	return writers, closeAll, nil
}

// bucketWriters lazily opens one set of per-stream output files per
// distinct classification bucket, the first time that bucket is seen,
// naming each file after the base -output path with the bucket's
// tag names spliced in before the extension (e.g. "out_1.fastq.gz" for
// classification [bc1,bc2] becomes "out_1.bc1_bc2.fastq.gz"). This is
// splitcode's per-class routing: spec.md's "per-class assigned buckets,
// one file per stream."
type bucketWriters struct {
	ctx       context.Context
	basePaths []string
	f         *cliFlags
	names     func(int) string
	writers   map[int][]*fastq.Writer
	closers   []func() error
}

func newBucketWriters(ctx context.Context, basePaths []string, f *cliFlags, names func(int) string) *bucketWriters {
	return &bucketWriters{ctx: ctx, basePaths: basePaths, f: f, names: names, writers: map[int][]*fastq.Writer{}}
}

// dest implements pipeline.DestinationFunc. The writer drains batches
// from a single goroutine, so this needs no locking of its own.
func (b *bucketWriters) dest(bucketID int, classification []int) ([]*fastq.Writer, error) {
	if ws, ok := b.writers[bucketID]; ok {
		return ws, nil
	}
	label := bucketLabel(classification, b.names)
	ws := make([]*fastq.Writer, len(b.basePaths))
	for i, base := range b.basePaths {
		w, closeFn, err := ioutil.CreateStream(b.ctx, outputPath(withBucketLabel(base, label), b.f))
		if err != nil {
			return nil, err
		}
		ws[i] = fastq.NewWriter(w)
		b.closers = append(b.closers, closeFn)
	}
	b.writers[bucketID] = ws
	return ws, nil
}

func (b *bucketWriters) Close() error {
	var first error
	for _, c := range b.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// bucketLabel turns a classification vector's tag names into a
// filename-safe label. An empty vector (every include_in_barcode tag
// missed) labels as "none".
func bucketLabel(classification []int, names func(int) string) string {
	if len(classification) == 0 {
		return "none"
	}
	parts := make([]string, len(classification))
	for i, id := range classification {
		parts[i] = strings.ReplaceAll(names(id), "/", "_")
	}
	return strings.Join(parts, "_")
}

// withBucketLabel splices label into path just before its first "."
// (its extension chain, e.g. ".fastq.gz"), or appends it if path has
// no extension. Manual string splicing, not filepath.Join, so this
// stays correct for "s3://..." paths too.
func withBucketLabel(path, label string) string {
	dir, base := path, ""
	if idx := strings.LastIndex(path, "/"); idx >= 0 {
		dir, base = path[:idx+1], path[idx+1:]
	} else {
		dir, base = "", path
	}
	if idx := strings.Index(base, "."); idx >= 0 {
		return dir + base[:idx] + "." + label + base[idx:]
	}
	return dir + base + "." + label
}
