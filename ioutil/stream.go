// Package ioutil opens input and output read streams uniformly across
// local paths and the storage backends grailbio/base/file supports,
// transparently handling gzip compression by file extension.
package ioutil

import (
	"context"
	"io"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
)

// OpenStream opens path for reading. A ".gz" suffix selects a gzip
// decompressing reader; anything else is read as plain text. The
// returned closer closes both the gzip reader (if any) and the
// underlying file.
func OpenStream(ctx context.Context, path string) (io.Reader, func() error, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, nil, errors.E(err, "open", path)
	}
	r := f.Reader(ctx)
	if !strings.HasSuffix(path, ".gz") {
		return r, func() error { return f.Close(ctx) }, nil
	}
	gz, err := gzip.NewReader(r)
	if err != nil {
		_ = f.Close(ctx)
		return nil, nil, errors.E(err, "gzip open", path)
	}
	closer := func() error {
		gzErr := gz.Close()
		fErr := f.Close(ctx)
		if gzErr != nil {
			return gzErr
		}
		return fErr
	}
	return gz, closer, nil
}

// CreateStream creates path for writing, gzip-compressing the stream
// when path ends in ".gz".
func CreateStream(ctx context.Context, path string) (io.Writer, func() error, error) {
	f, err := file.Create(ctx, path)
	if err != nil {
		return nil, nil, errors.E(err, "create", path)
	}
	w := f.Writer(ctx)
	if !strings.HasSuffix(path, ".gz") {
		return w, func() error { return f.Close(ctx) }, nil
	}
	gz := gzip.NewWriter(w)
	closer := func() error {
		gzErr := gz.Close()
		fErr := f.Close(ctx)
		if gzErr != nil {
			return gzErr
		}
		return fErr
	}
	return gz, closer, nil
}
