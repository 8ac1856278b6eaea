package tagindex

import (
	"sort"

	"github.com/grailbio/base/log"
)

// Hit is one (tag, position, length, error-distance) match found while
// scanning a read.
type Hit struct {
	TagID  int
	File   int
	Offset int
	Len    int
	Dist   int
}

// Result is the outcome of scanning one read (all of its per-stream
// sequences together).
type Result struct {
	// Hits holds the accepted hits (after min/max-find filtering) in
	// classification order: ascending file, then ascending offset, then
	// ascending tag id to break position ties deterministically.
	Hits []Hit

	// Classification is the ordered tag-id vector that keys the read's
	// output bucket; it contains exactly the accepted hits whose tag has
	// IncludeInBarcode set.
	Classification []int

	// Unassigned is true when the read failed a min_finds requirement or
	// violated an initiator/terminator placement constraint.
	Unassigned bool

	// Keep holds, for each input stream, the half-open [start,end) range
	// of the read that survives trimming. Absent any trim-tagged hit,
	// Keep[f] spans the whole read.
	Keep []TrimRange
}

// TrimRange is the half-open range of a read's bytes that survives
// trimming.
type TrimRange struct {
	Start, End int
}

// Scanner scans reads against a closed Registry's variant dictionary and
// scan plan.
type Scanner struct {
	reg *Registry
}

// NewScanner creates a Scanner over a closed registry. Scanning against
// an unclosed registry produces an empty scan plan and therefore no
// hits.
func NewScanner(reg *Registry) *Scanner {
	return &Scanner{reg: reg}
}

// Scan scans one read, given as one byte slice per input stream, and
// returns its hits, classification vector, and trim ranges.
func (s *Scanner) Scan(streams [][]byte) Result {
	var hits []Hit
	perTagCount := map[int]int{}

	for file, seq := range streams {
		plan := s.reg.ScanPlan(file)
		var lastStart int
		for i, probe := range plan {
			if probe.Start == advanceToEnd {
				if i == 0 {
					continue
				}
				for o := lastStart + 1; o+probe.KLen <= len(seq); o++ {
					s.probe(seq, file, probe.KLen, o, perTagCount, &hits)
				}
				continue
			}
			lastStart = probe.Start
			if probe.Start+probe.KLen > len(seq) {
				continue
			}
			s.probe(seq, file, probe.KLen, probe.Start, perTagCount, &hits)
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].File != hits[j].File {
			return hits[i].File < hits[j].File
		}
		if hits[i].Offset != hits[j].Offset {
			return hits[i].Offset < hits[j].Offset
		}
		return hits[i].TagID < hits[j].TagID
	})

	unassigned := s.checkMinFinds(perTagCount) || s.checkAnchors(hits)

	var classification []int
	for _, h := range hits {
		if s.reg.Tag(h.TagID).IncludeInBarcode {
			classification = append(classification, h.TagID)
		}
	}

	return Result{
		Hits:           hits,
		Classification: classification,
		Unassigned:     unassigned,
		Keep:           s.trimRanges(streams, hits),
	}
}

// probe looks up the k-mer at (file, offset) in the variant dictionary,
// and for each matching tag appends a Hit once its max_finds cap (if
// any) has not yet been exceeded. A k-mer containing a base outside
// {A,C,G,T} simply yields no dictionary hit; it is not an error (spec
// §7: malformed individual reads are tolerated).
func (s *Scanner) probe(seq []byte, file, k, offset int, perTagCount map[int]int, hits *[]Hit) {
	kmer := string(seq[offset : offset+k])
	for _, e := range s.reg.Lookup(kmer) {
		tag := s.reg.Tag(e.TagID)
		if tag.File != -1 && tag.File != file {
			continue
		}
		if !tag.contains(offset) {
			continue
		}
		if tag.MaxFinds != 0 && perTagCount[e.TagID] >= tag.MaxFinds {
			log.Debug.Printf("tag %q: dropping hit at file %d offset %d, max_finds exceeded", tag.Name, file, offset)
			continue
		}
		perTagCount[e.TagID]++
		*hits = append(*hits, Hit{TagID: e.TagID, File: file, Offset: offset, Len: k, Dist: e.Dist})
	}
}

func (s *Scanner) checkMinFinds(counts map[int]int) bool {
	for i := 0; i < s.reg.NumTags(); i++ {
		if tag := s.reg.Tag(i); tag.MinFinds > 0 && counts[i] < tag.MinFinds {
			return true
		}
	}
	return false
}

// checkAnchors enforces that, among hits, any initiator-flagged tag's
// hit occupies the overall leftmost position and any terminator-flagged
// tag's hit occupies the overall rightmost position.
func (s *Scanner) checkAnchors(hits []Hit) bool {
	if len(hits) == 0 {
		return false
	}
	first, last := hits[0], hits[len(hits)-1]
	for _, h := range hits {
		tag := s.reg.Tag(h.TagID)
		if tag.Initiator && (h.File != first.File || h.Offset != first.Offset) {
			return true
		}
		if tag.Terminator && (h.File != last.File || h.Offset != last.Offset) {
			return true
		}
	}
	return false
}

// trimRanges computes, per stream, the surviving [start,end) range after
// applying every trim-tagged hit: left-trim hits push the start forward,
// right-trim hits pull the end back.
func (s *Scanner) trimRanges(streams [][]byte, hits []Hit) []TrimRange {
	ranges := make([]TrimRange, len(streams))
	for f, seq := range streams {
		ranges[f] = TrimRange{Start: 0, End: len(seq)}
	}
	for _, h := range hits {
		tag := s.reg.Tag(h.TagID)
		switch tag.Trim.Dir {
		case TrimLeft:
			cut := h.Offset + h.Len + tag.Trim.ExtraOffset
			if cut > ranges[h.File].Start {
				ranges[h.File].Start = cut
			}
		case TrimRight:
			cut := h.Offset - tag.Trim.ExtraOffset
			if cut < ranges[h.File].End {
				ranges[h.File].End = cut
			}
		}
	}
	for f := range ranges {
		if ranges[f].Start > ranges[f].End {
			ranges[f].Start = ranges[f].End
		}
		if ranges[f].Start < 0 {
			ranges[f].Start = 0
		}
	}
	return ranges
}
