package tagindex

// variantEntry is one (tag, error distance) pair attached to a sequence
// literal in the variant dictionary.
type variantEntry struct {
	TagID int
	Dist  int
}

// dictionary maps a sequence literal (canonical or generated neighbor) to
// the tags that accept it. Lookup is expected O(1), backed directly by a
// Go map as the teacher's unordered_map-backed analogue.
type dictionary struct {
	entries map[string][]variantEntry
	removed map[string]map[int]bool // pending removals, applied at close
}

func newDictionary() *dictionary {
	return &dictionary{entries: map[string][]variantEntry{}}
}

// get returns the entries for seq, or nil if there are none.
func (d *dictionary) get(seq string) []variantEntry {
	return d.entries[seq]
}

// insert adds (tagID, dist) to seq's entry list. A tagID already present
// for seq is a no-op, matching addToMap's de-duplication.
func (d *dictionary) insert(seq string, tagID, dist int) {
	for _, e := range d.entries[seq] {
		if e.TagID == tagID {
			return
		}
	}
	d.entries[seq] = append(d.entries[seq], variantEntry{TagID: tagID, Dist: dist})
}

// markRemoved schedules (seq, tagID) for removal at close. Removals are
// lazy: collecting them here, rather than deleting eagerly, lets a later
// add_tag call still fail cleanly against a variant that is pending
// removal but not yet gone.
func (d *dictionary) markRemoved(seq string, tagID int) {
	if d.removed == nil {
		d.removed = map[string]map[int]bool{}
	}
	if d.removed[seq] == nil {
		d.removed[seq] = map[int]bool{}
	}
	d.removed[seq][tagID] = true
}

// isPendingRemoval reports whether (seq, tagID) has been scheduled for
// removal but not yet applied.
func (d *dictionary) isPendingRemoval(seq string, tagID int) bool {
	return d.removed[seq] != nil && d.removed[seq][tagID]
}

// applyRemovals drops every (seq, tagID) pair scheduled by markRemoved,
// and deletes any sequence whose entry list becomes empty as a result.
func (d *dictionary) applyRemovals() {
	for seq, tagIDs := range d.removed {
		entries := d.entries[seq]
		kept := entries[:0]
		for _, e := range entries {
			if !tagIDs[e.TagID] {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(d.entries, seq)
		} else {
			d.entries[seq] = kept
		}
	}
	d.removed = nil
}
