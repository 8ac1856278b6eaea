package pipeline

import (
	"io"
	"strings"
	"sync"

	"github.com/grailbio/base/syncqueue"
	"github.com/grailbio/splitcode/encoding/fastq"
)

// DestinationFunc resolves a read's interned bucket id (see
// Mapping.Observe) and classification vector (tag ids in hit order) to the
// per-stream writers its reads should be written to, opening new output
// files on first use of a bucket.
type DestinationFunc func(bucketID int, classification []int) ([]*fastq.Writer, error)

// Writer is the pipeline's ordered output gate: batches may arrive out
// of order across worker goroutines, but Writer serializes them back
// into ascending batch-id order before touching any output file handle,
// exactly as encoding/bam's ShardedBAMWriter does for BAM shards.
type Writer struct {
	dest        DestinationFunc
	unassigned  []*fastq.Writer // nil if unassigned output is not configured
	barcodeOnly io.Writer       // nil if not configured
	names       func(int) string
	mapping     *Mapping
	modNames    bool // append the classification string to each assigned read's name

	queue *syncqueue.OrderedQueue
	wg    sync.WaitGroup
	err   error
}

// NewWriter creates a Writer. queueSize bounds how many out-of-order
// batches may be buffered before a worker blocks inserting another.
func NewWriter(queueSize int, dest DestinationFunc, unassigned []*fastq.Writer, barcodeOnly io.Writer, names func(int) string, mapping *Mapping, modNames bool) *Writer {
	w := &Writer{
		dest:        dest,
		unassigned:  unassigned,
		barcodeOnly: barcodeOnly,
		names:       names,
		mapping:     mapping,
		modNames:    modNames,
		queue:       syncqueue.NewOrderedQueue(queueSize),
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.drain()
	}()
	return w
}

// Write hands one scanned batch to the writer under its batch id. It may
// block until batchID is the next batch due to be written.
func (w *Writer) Write(batchID int, results []Result) error {
	return w.queue.Insert(batchID, results)
}

func (w *Writer) drain() {
	for {
		entry, ok, err := w.queue.Next()
		if err != nil {
			w.err = err
			return
		}
		if !ok {
			return
		}
		for _, res := range entry.([]Result) {
			if err := w.writeOne(res); err != nil {
				w.err = err
				_ = w.queue.Close(err)
				return
			}
		}
	}
}

func (w *Writer) writeOne(res Result) error {
	if res.Scan.Unassigned {
		if w.unassigned == nil {
			return nil
		}
		return writeTrimmed(w.unassigned, res)
	}

	bucketID := w.mapping.Observe(res.Scan.Classification)

	writers, err := w.dest(bucketID, res.Scan.Classification)
	if err != nil {
		return err
	}
	if w.modNames {
		res = res.withModifiedNames(w.names)
	}
	if err := writeTrimmed(writers, res); err != nil {
		return err
	}
	if w.barcodeOnly != nil {
		return writeBarcodeLine(w.barcodeOnly, res, w.names)
	}
	return nil
}

// withModifiedNames returns a copy of res whose reads carry the
// classification string appended to their name, the --mod-names
// behavior.
func (res Result) withModifiedNames(names func(int) string) Result {
	suffix := classificationString(res.Scan.Classification, names)
	out := Result{Scan: res.Scan, Reads: make([]fastq.Read, len(res.Reads))}
	for i, rd := range res.Reads {
		rd.ID = rd.ID + " " + suffix
		out.Reads[i] = rd
	}
	return out
}

func classificationString(classification []int, names func(int) string) string {
	parts := make([]string, len(classification))
	for i, id := range classification {
		parts[i] = names(id)
	}
	return strings.Join(parts, ",")
}

func writeTrimmed(writers []*fastq.Writer, res Result) error {
	for i := range res.Reads {
		rd := res.Reads[i]
		if i < len(res.Scan.Keep) {
			rd.Trim(res.Scan.Keep[i].Start, res.Scan.Keep[i].End)
		}
		if err := writers[i].Write(&rd); err != nil {
			return err
		}
	}
	return nil
}

func writeBarcodeLine(w io.Writer, res Result, names func(int) string) error {
	var sb strings.Builder
	if len(res.Reads) > 0 {
		sb.WriteString(res.Reads[0].ID)
	}
	sb.WriteByte('\t')
	sb.WriteString(classificationString(res.Scan.Classification, names))
	sb.WriteByte('\n')
	_, err := io.WriteString(w, sb.String())
	return err
}

// Close waits for all queued batches to drain and reports the first
// write error encountered, if any.
func (w *Writer) Close() error {
	closeErr := w.queue.Close(nil)
	w.wg.Wait()
	if w.err != nil {
		return w.err
	}
	return closeErr
}
