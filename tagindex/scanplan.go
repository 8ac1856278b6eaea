package tagindex

import "sort"

// advanceToEnd is the sentinel Start value meaning "continue the
// previous probe of this k-mer length through the end of the read,
// advancing one base at a time."
const advanceToEnd = -1

// Probe is one (k-mer length, start offset) point the read scanner must
// examine.
type Probe struct {
	KLen  int
	Start int
}

type window struct {
	start, end int // end == 0 means open-ended
}

// buildScanPlans computes, for each input stream, the minimal set of
// probe points implied by the registered tags' windows. lengths maps
// each tag id to the set of distinct sequence lengths its dictionary
// entries actually have -- canonical sequences plus any indel-shifted
// neighbors, since those can be one base shorter or longer than the
// tag's canonical sequences.
func buildScanPlans(tags []*TagRecord, lengths map[int]map[int]bool, nFiles int) map[int][]Probe {
	// byFile[file][kmerLen] = unmerged windows.
	byFile := map[int]map[int][]window{}
	addWindow := func(file, k, start, end int) {
		if byFile[file] == nil {
			byFile[file] = map[int][]window{}
		}
		byFile[file][k] = append(byFile[file][k], window{start: start, end: end})
	}

	for _, t := range tags {
		ls := lengths[t.ID]
		if len(ls) == 0 {
			continue
		}
		files := []int{t.File}
		if t.File == -1 {
			files = make([]int, nFiles)
			for i := range files {
				files[i] = i
			}
		}
		for k := range ls {
			for _, f := range files {
				addWindow(f, k, t.PosStart, t.PosEnd)
			}
		}
	}

	plans := map[int][]Probe{}
	for file, byK := range byFile {
		var probes []Probe
		// Deterministic stream order: ascending k-mer length, then
		// ascending start offset within each length's merged intervals.
		ks := make([]int, 0, len(byK))
		for k := range byK {
			ks = append(ks, k)
		}
		sort.Ints(ks)
		for _, k := range ks {
			merged := mergeWindows(byK[k])
			for _, w := range merged {
				if w.end == 0 {
					probes = append(probes, Probe{KLen: k, Start: w.start})
					probes = append(probes, Probe{KLen: k, Start: advanceToEnd})
					continue
				}
				for p := w.start; p+k <= w.end; p++ {
					probes = append(probes, Probe{KLen: k, Start: p})
				}
			}
		}
		plans[file] = probes
	}
	return plans
}

// mergeWindows sorts windows by start and coalesces [a,b) with [c,d) when
// c <= b (touching or overlapping intervals merge; an end of 0 is treated
// as positive infinity and is sticky once absorbed into a merged run).
func mergeWindows(ws []window) []window {
	if len(ws) == 0 {
		return nil
	}
	sorted := append([]window(nil), ws...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start < sorted[j].start })

	var out []window
	cur := sorted[0]
	for _, w := range sorted[1:] {
		curEnd := cur.end
		if cur.end == 0 {
			curEnd = w.start // open-ended interval absorbs everything after it
		}
		if w.start <= curEnd || cur.end == 0 {
			if cur.end == 0 {
				continue // already open-ended, nothing can extend it further
			}
			if w.end == 0 || w.end > cur.end {
				cur.end = w.end
			}
			continue
		}
		out = append(out, cur)
		cur = w
	}
	out = append(out, cur)
	return out
}
