package pipeline

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"

	farm "github.com/dgryski/go-farm"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/splitcode/tagindex"
)

// mappingEntry is one interned classification vector: its dense bucket
// id, the vector itself (tag ids in hit order), and how many reads have
// classified to it so far.
type mappingEntry struct {
	vector []int
	id     int
	count  int64
}

// Mapping interns classification vectors (tag-id slices in hit order) into
// a dense bucket-id space, the Go analogue of the reference engine's
// idmap/idmapinv pair keyed by a vector hash. Safe for concurrent use.
type Mapping struct {
	mu      sync.Mutex
	buckets map[uint64][]mappingEntry
	nextID  int
}

// NewMapping creates an empty mapping table.
func NewMapping() *Mapping {
	return &Mapping{buckets: map[uint64][]mappingEntry{}}
}

func vectorKey(vector []int) []byte {
	buf := make([]byte, 8*len(vector))
	for i, id := range vector {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(id))
	}
	return buf
}

func vectorsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Observe interns vector, allocating a new bucket id on first sight, and
// increments its read count. It returns the vector's bucket id.
func (m *Mapping) Observe(vector []int) int {
	h := farm.Hash64(vectorKey(vector))
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.buckets[h] {
		if vectorsEqual(e.vector, vector) {
			m.buckets[h][i].count++
			return e.id
		}
	}
	id := m.nextID
	m.nextID++
	m.buckets[h] = append(m.buckets[h], mappingEntry{vector: append([]int(nil), vector...), id: id, count: 1})
	return id
}

// WriteTo writes the mapping table as the "(bucket_id, classification
// vector as names, count)" text table described in spec.md §6, sorted by
// bucket id. names resolves a tag id to its declared name.
func (m *Mapping) WriteTo(w io.Writer, names func(int) string) error {
	m.mu.Lock()
	var entries []mappingEntry
	for _, es := range m.buckets {
		entries = append(entries, es...)
	}
	m.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })
	bw := bufio.NewWriter(w)
	for _, e := range entries {
		parts := make([]string, len(e.vector))
		for i, id := range e.vector {
			parts[i] = names(id)
		}
		if _, err := fmt.Fprintf(bw, "%d\t%s\t%d\n", e.id, strings.Join(parts, ","), e.count); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// LoadMapping parses a mapping file written by a prior run, resolving
// tag names back to this run's registry's ids. Existing (vector -> id)
// assignments are preserved verbatim; the next Observe of an unseen
// vector allocates an id past the highest one loaded, so the mapping
// file is append-compatible across runs (spec.md §6).
func LoadMapping(rd io.Reader, reg *tagindex.Registry) (*Mapping, error) {
	nameToID := map[string]int{}
	for i := 0; i < reg.NumTags(); i++ {
		nameToID[reg.Tag(i).Name] = i
	}

	m := NewMapping()
	maxID := -1
	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n")
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 3 {
			return nil, errors.Errorf("pipeline: malformed mapping row: %q", line)
		}
		id, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, errors.Errorf("pipeline: malformed bucket id in mapping row: %q", line)
		}
		var vector []int
		if fields[1] != "" {
			for _, name := range strings.Split(fields[1], ",") {
				tagID, ok := nameToID[name]
				if !ok {
					return nil, errors.Errorf("pipeline: mapping file references unknown tag %q", name)
				}
				vector = append(vector, tagID)
			}
		}
		count, err := strconv.ParseInt(fields[2], 10, 64)
		if err != nil {
			return nil, errors.Errorf("pipeline: malformed count in mapping row: %q", line)
		}
		h := farm.Hash64(vectorKey(vector))
		m.buckets[h] = append(m.buckets[h], mappingEntry{vector: vector, id: id, count: count})
		if id > maxID {
			maxID = id
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	m.nextID = maxID + 1
	return m, nil
}
