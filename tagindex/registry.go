package tagindex

import "github.com/grailbio/base/log"

// Registry owns the canonical list of tag records, the variant
// dictionary derived from them, and (after Close) the per-stream scan
// plans. It is open for insertion until Close; afterwards it is
// read-only and safe for concurrent readers.
type Registry struct {
	nFiles int
	tags   []*TagRecord
	dict   *dictionary
	closed bool
	plans  map[int][]Probe // built at Close, keyed by file index
}

// NewRegistry creates a registry for a pipeline with the given number of
// input streams.
func NewRegistry(nFiles int) *Registry {
	return &Registry{nFiles: nFiles, dict: newDictionary()}
}

// NumTags returns the number of tags registered so far.
func (r *Registry) NumTags() int { return len(r.tags) }

// Tag returns the tag record with the given id.
func (r *Registry) Tag(id int) *TagRecord { return r.tags[id] }

// AddTag validates and registers one tag record. rec.Sequences is
// expected to already be split (see SplitSequences for the '*'-stripping,
// '/'-splitting step used by config loading). AddTag fails with
// InvalidTag on syntax errors, or CanonicalCollision on a fatal
// collision; on error the registry is left unmodified, and the failed
// tag's id is given to the next tag added.
func (r *Registry) AddTag(rec TagRecord) (*TagRecord, error) {
	if r.closed {
		return nil, &Error{Kind: IndexClosed, Msg: "AddTag called after Close"}
	}
	if err := rec.validate(); err != nil {
		return nil, err
	}
	rec.ID = len(r.tags)
	t := rec
	r.tags = append(r.tags, &t)

	for _, seq := range t.Sequences {
		if err := r.registerVariant(seq, t.ID, 0); err != nil {
			r.tags = r.tags[:len(r.tags)-1]
			return nil, err
		}
		neighbors := generateNeighbors(seq, rec.Mismatch, rec.Indel, rec.Total)
		for variant, dist := range neighbors {
			if err := r.registerVariant(variant, t.ID, dist); err != nil {
				r.tags = r.tags[:len(r.tags)-1]
				return nil, err
			}
		}
	}
	return r.tags[t.ID], nil
}

// registerVariant applies the collision policy (spec.md §3) for
// inserting (seq, tagID, dist) into the variant dictionary.
func (r *Registry) registerVariant(seq string, tagID, dist int) error {
	newTag := r.tags[tagID]
	for _, e := range r.dict.get(seq) {
		if e.TagID == tagID {
			continue
		}
		existing := r.tags[e.TagID]
		if !overlaps(newTag, existing) {
			continue
		}
		switch {
		case dist == 0, e.Dist == 0:
			// Canonical-vs-canonical or canonical-vs-generated: fatal.
			return newError(CanonicalCollision,
				"tag %q sequence %q collides with tag %q", newTag.Name, seq, existing.Name)
		default:
			// Generated-vs-generated: mark both for lazy removal.
			log.Debug.Printf("marking %q for removal: collision between tag %q and tag %q", seq, newTag.Name, existing.Name)
			r.dict.markRemoved(seq, tagID)
			r.dict.markRemoved(seq, e.TagID)
		}
	}
	r.dict.insert(seq, tagID, dist)
	return nil
}

// overlaps reports whether two tags' (file, window) pairs can ever apply
// to the same position of the same stream: equal file indices (or
// either is the "any stream" wildcard -1), with intersecting half-open
// windows (PosEnd == 0 meaning "open ended").
func overlaps(a, b *TagRecord) bool {
	if a.File != b.File && a.File != -1 && b.File != -1 {
		return false
	}
	if a.PosStart < b.PosStart && a.PosEnd <= b.PosStart && a.PosEnd != 0 {
		return false
	}
	if b.PosStart < a.PosStart && b.PosEnd <= a.PosStart && b.PosEnd != 0 {
		return false
	}
	return true
}

// Close applies pending removals, drops any variant whose list becomes
// empty, and builds the scan plans. Close is idempotent.
func (r *Registry) Close() error {
	if r.closed {
		return nil
	}
	if r.nFiles <= 0 {
		return newError(ConfigError, "nFiles must be a positive integer")
	}
	r.dict.applyRemovals()
	r.plans = buildScanPlans(r.tags, r.tagLengths(), r.nFiles)
	r.closed = true
	return nil
}

// tagLengths reports, for each tag id, the set of distinct sequence
// lengths present among that tag's surviving dictionary entries. Indel
// neighbors can be one base shorter or longer than the tag's canonical
// sequences, so this can differ from the set of canonical lengths.
func (r *Registry) tagLengths() map[int]map[int]bool {
	out := map[int]map[int]bool{}
	for seq, entries := range r.dict.entries {
		l := len(seq)
		for _, e := range entries {
			if out[e.TagID] == nil {
				out[e.TagID] = map[int]bool{}
			}
			out[e.TagID][l] = true
		}
	}
	return out
}

// Closed reports whether the registry has been closed.
func (r *Registry) Closed() bool { return r.closed }

// Lookup returns the variant entries for seq. Valid at any time; entries
// pending removal are still returned until Close applies the removals.
func (r *Registry) Lookup(seq string) []variantEntry { return r.dict.get(seq) }

// ScanPlan returns the probe list for the given stream. Only valid after
// Close.
func (r *Registry) ScanPlan(file int) []Probe { return r.plans[file] }

// Update is an intentional no-op. The reference implementation's
// update(counts, ids) entry point performs no work beyond re-running
// initialization; its semantics beyond that were never specified, so no
// speculative behavior is implemented here.
func (r *Registry) Update(counts []int, ids [][]int) error {
	return nil
}
