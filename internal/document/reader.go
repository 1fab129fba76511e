// internal/document/reader.go
package document

import (
	"context"
	"errors"
	"io"

	"loan-origination/internal/storage"
)

// rangeReader adapts a storage.RawFile to io.ReadSeeker so HTTP range
// requests can be served without buffering the object. A ranged read is
// opened lazily at the current offset and reopened after each seek.
type rangeReader struct {
	ctx  context.Context
	file storage.RawFile
	off  int64
	rc   io.ReadCloser
}

func newRangeReader(ctx context.Context, f storage.RawFile) *rangeReader {
	return &rangeReader{ctx: ctx, file: f}
}

func (r *rangeReader) Read(p []byte) (int, error) {
	if r.off >= r.file.Size() {
		return 0, io.EOF
	}
	if r.rc == nil {
		rc, err := r.file.NewRangeReader(r.ctx, r.off, -1)
		if err != nil {
			return 0, err
		}
		r.rc = rc
	}
	n, err := r.rc.Read(p)
	r.off += int64(n)
	return n, err
}

func (r *rangeReader) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = r.off + offset
	case io.SeekEnd:
		next = r.file.Size() + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if next < 0 {
		return 0, errors.New("negative position")
	}
	if next != r.off {
		r.closeReader()
		r.off = next
	}
	return next, nil
}

func (r *rangeReader) Close() error {
	return r.closeReader()
}

func (r *rangeReader) closeReader() error {
	if r.rc == nil {
		return nil
	}
	err := r.rc.Close()
	r.rc = nil
	return err
}
