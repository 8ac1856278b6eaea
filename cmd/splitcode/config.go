package main

import (
	"context"
	"strings"

	"github.com/grailbio/splitcode/ioutil"
	"github.com/grailbio/splitcode/tagindex"
)

// cliFlags mirrors the config table's per-tag columns for the common
// case of a single tag declared entirely on the command line, plus the
// pipeline-wide options. Naming follows spec.md §6's indicative flag
// list.
type cliFlags struct {
	threads  int
	nFiles   int
	config   string // path to a config table; mutually exclusive with the single-tag flags below
	barcodes string
	distances string
	locations string
	ids      string
	minFinds int
	maxFinds int
	exclude  bool
	left     int
	right    int
	haveLeft bool
	haveRight bool

	r1, r2   string // input paths for streams 0 and 1 (exactly one path each)
	interleaveNFiles int

	output      string // comma-separated output paths, one per stream
	outb        string // barcode-only output path
	unassigned  string // comma-separated unassigned output paths, one per stream
	mapping     string // mapping file path (read if present, always (re)written at shutdown)

	keep     bool // keep the mapping file's existing bucket assignments (default true; --remove inverts)
	remove   bool
	appendOut bool
	empty    bool
	pipe     bool
	trimOnly bool
	gzip     bool
	noOutput bool
	modNames bool
}

// buildRegistry constructs and closes a tag registry from the parsed
// flags: either by loading --config, or by registering the single tag
// described by the other flags.
func buildRegistry(ctx context.Context, f *cliFlags) (*tagindex.Registry, error) {
	reg := tagindex.NewRegistry(f.nFiles)

	if f.config != "" {
		r, closeFn, err := ioutil.OpenStream(ctx, f.config)
		if err != nil {
			return nil, err
		}
		defer closeFn()
		if err := reg.LoadConfig(r); err != nil {
			return nil, err
		}
		return reg, nil
	}

	mismatch, indel, total, err := tagindex.ParseDistance(f.distances)
	if err != nil {
		return nil, err
	}
	fileIdx, posStart, posEnd, err := tagindex.ParseLocation(f.locations, f.nFiles)
	if err != nil {
		return nil, err
	}
	if f.haveLeft && f.haveRight {
		return nil, &tagindex.Error{Kind: tagindex.InvalidTrim, Msg: "a tag cannot carry both left and right trim"}
	}
	trim := tagindex.Trim{}
	if f.haveLeft {
		trim = tagindex.Trim{Dir: tagindex.TrimLeft, ExtraOffset: f.left}
	} else if f.haveRight {
		trim = tagindex.Trim{Dir: tagindex.TrimRight, ExtraOffset: f.right}
	}

	name := f.ids
	if name == "" {
		name = f.barcodes
	}
	seqs, initiator, terminator := tagindex.SplitSequences(f.barcodes)
	if _, err := reg.AddTag(tagindex.TagRecord{
		Name:             name,
		Sequences:        seqs,
		Initiator:        initiator,
		Terminator:       terminator,
		Mismatch:         mismatch,
		Indel:            indel,
		Total:            total,
		File:             fileIdx,
		PosStart:         posStart,
		PosEnd:           posEnd,
		MinFinds:         f.minFinds,
		MaxFinds:         f.maxFinds,
		IncludeInBarcode: !f.exclude,
		Trim:             trim,
	}); err != nil {
		return nil, err
	}
	if err := reg.Close(); err != nil {
		return nil, err
	}
	return reg, nil
}

// validate enforces the config-level invariants spec.md §7 calls out
// (e.g. --trim-only together with --unassigned is rejected).
func (f *cliFlags) validate() error {
	if f.trimOnly && f.unassigned != "" {
		return &tagindex.Error{Kind: tagindex.ConfigError, Msg: "--trim-only is incompatible with --unassigned"}
	}
	if f.modNames && f.noOutput {
		return &tagindex.Error{Kind: tagindex.ConfigError, Msg: "--mod-names cannot be used with --no-output"}
	}
	if f.keep && f.remove {
		return &tagindex.Error{Kind: tagindex.ConfigError, Msg: "--keep and --remove are mutually exclusive"}
	}
	if f.config == "" && f.barcodes == "" {
		return &tagindex.Error{Kind: tagindex.ConfigError, Msg: "one of --config or --barcodes is required"}
	}
	if f.nFiles <= 0 {
		return &tagindex.Error{Kind: tagindex.ConfigError, Msg: "--nfiles must be a positive integer"}
	}
	return nil
}

func splitLocalList(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}
