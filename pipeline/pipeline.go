package pipeline

import (
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/splitcode/encoding/fastq"
	"github.com/grailbio/splitcode/tagindex"
)

// Result is one read's scan outcome, carried alongside the reads it came
// from so the writer can trim and emit them.
type Result struct {
	Reads []fastq.Read
	Scan  tagindex.Result
}

// Run drives the batched pipeline to completion: nWorkers goroutines
// each repeatedly pull the next batch from reader, scan every record
// with a private tagindex.Scanner (the registry itself is read-only and
// shared without synchronization once closed), and hand the batch's
// results to writer, which enforces batch-id ordering on the way out.
// Run returns the first error encountered, from either reading or
// writing; once one occurs, workers finish their in-flight batch and
// stop pulling new ones.
func Run(reader *Reader, reg *tagindex.Registry, writer *Writer, nWorkers int) error {
	var errOnce errors.Once
	var mu sync.Mutex
	shutdown := false

	shouldStop := func() bool {
		mu.Lock()
		defer mu.Unlock()
		return shutdown
	}
	stop := func() {
		mu.Lock()
		defer mu.Unlock()
		shutdown = true
	}

	_ = traverse.Each(nWorkers, func(int) error {
		scanner := tagindex.NewScanner(reg)
		for !shouldStop() {
			batch, ok := reader.Next()
			if !ok {
				if err := reader.Err(); err != nil {
					errOnce.Set(err)
					stop()
				}
				return nil
			}
			results := make([]Result, len(batch.Records))
			for i, rec := range batch.Records {
				results[i] = Result{Reads: rec.Reads, Scan: scanner.Scan(seqBytes(rec.Reads))}
			}
			if err := writer.Write(batch.ID, results); err != nil {
				errOnce.Set(err)
				stop()
				return nil
			}
		}
		return nil
	})
	return errOnce.Err()
}

func seqBytes(reads []fastq.Read) [][]byte {
	out := make([][]byte, len(reads))
	for i, r := range reads {
		out[i] = []byte(r.Seq)
	}
	return out
}
