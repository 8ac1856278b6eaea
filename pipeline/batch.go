// Package pipeline batches reads off one or more FASTQ streams, scans
// each batch against a closed tag registry with a fixed worker pool, and
// writes outputs back out in input order.
package pipeline

import (
	"io"
	"sync"

	"github.com/grailbio/splitcode/encoding/fastq"
)

// DefaultBatchBytes is the recommended raw-byte capacity bound for a
// single batch.
const DefaultBatchBytes = 8 << 20

// ReadRecord is one logical read: one fastq.Read per input stream.
type ReadRecord struct {
	Reads []fastq.Read
}

// Batch is a contiguous, ordered run of records pulled off the input
// streams in one reader turn.
type Batch struct {
	ID      int
	Records []ReadRecord
}

// multiScanner is satisfied by both fastq.MultiScanner (one reader per
// stream) and InterleavedScanner (nFiles reads round-robin out of a
// single reader).
type multiScanner interface {
	NumStreams() int
	Scan([]fastq.Read) bool
	Err() error
}

// InterleavedScanner adapts a single fastq.Scanner that carries n
// interleaved reads per logical unit to the multiScanner interface, so
// Reader does not need to special-case interleaved input.
type InterleavedScanner struct {
	scanner *fastq.Scanner
	n       int
}

// NewInterleavedScanner wraps r, reading n consecutive FASTQ records per
// call to Scan as the n streams of one logical read.
func NewInterleavedScanner(r io.Reader, n int, fields fastq.Field) *InterleavedScanner {
	return &InterleavedScanner{scanner: fastq.NewScanner(r, fields), n: n}
}

func (s *InterleavedScanner) NumStreams() int { return s.n }

func (s *InterleavedScanner) Scan(reads []fastq.Read) bool {
	for i := 0; i < s.n; i++ {
		if !s.scanner.Scan(&reads[i]) {
			return false
		}
	}
	return true
}

func (s *InterleavedScanner) Err() error { return s.scanner.Err() }

// Reader is the single batching coordinator. Its Next method is the
// reader-mutex critical section described by the pipeline's batching
// design: callers (worker goroutines) serialize on it to pull the next
// batch, then scan outside the lock.
type Reader struct {
	mu       sync.Mutex
	scanner  multiScanner
	maxBytes int
	nextID   int
	pending  *ReadRecord
	err      error
}

// NewReader creates a batching Reader over scanner. maxBytes <= 0 uses
// DefaultBatchBytes.
func NewReader(scanner multiScanner, maxBytes int) *Reader {
	if maxBytes <= 0 {
		maxBytes = DefaultBatchBytes
	}
	return &Reader{scanner: scanner, maxBytes: maxBytes}
}

func recordBytes(rec ReadRecord) int {
	n := 0
	for _, r := range rec.Reads {
		n += len(r.ID) + len(r.Seq) + len(r.Unk) + len(r.Qual)
	}
	return n
}

// Next pulls the next batch, filling it to the byte-capacity bound with
// complete records only; a record that would overflow the bound rolls
// over to become the first record of the next batch. Next returns
// (Batch{}, false) once the underlying streams are exhausted or errored;
// callers must check Err afterward.
func (r *Reader) Next() (Batch, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var records []ReadRecord
	size := 0
	if r.pending != nil {
		records = append(records, *r.pending)
		size += recordBytes(*r.pending)
		r.pending = nil
	}
	if r.err == nil {
		for size < r.maxBytes {
			reads := make([]fastq.Read, r.scanner.NumStreams())
			if !r.scanner.Scan(reads) {
				r.err = r.scanner.Err()
				break
			}
			rec := ReadRecord{Reads: reads}
			sz := recordBytes(rec)
			if size > 0 && size+sz > r.maxBytes {
				r.pending = &rec
				break
			}
			records = append(records, rec)
			size += sz
		}
	}
	if len(records) == 0 {
		return Batch{}, false
	}
	b := Batch{ID: r.nextID, Records: records}
	r.nextID++
	return b, true
}

// Err returns the error (if any) that ended the stream. nil after a
// clean EOF.
func (r *Reader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}
