package file

import (
	"io"

	"github.com/meigma/trfs/internal/sizing"
	"github.com/meigma/trfs/internal/trfstype"
)

// CountingReader tracks how many bytes have passed through R. The table
// decoder uses N as the start of the data section.
type CountingReader struct {
	R io.Reader
	N uint64
}

func (cr *CountingReader) Read(p []byte) (int, error) {
	n, err := cr.R.Read(p)
	if n > 0 && !advance(&cr.N, n) {
		return n, trfstype.ErrSizeOverflow
	}
	return n, err
}

// CountingWriter tracks how many bytes have been written to W.
type CountingWriter struct {
	W io.Writer
	N uint64
}

func (cw *CountingWriter) Write(p []byte) (int, error) {
	n, err := cw.W.Write(p)
	if n > 0 && !advance(&cw.N, n) {
		return n, trfstype.ErrSizeOverflow
	}
	return n, err
}

// advance adds n to *total, leaving it unchanged on overflow.
func advance(total *uint64, n int) bool {
	sum, ok := sizing.AddUint64(*total, uint64(n)) //nolint:gosec // io contracts keep n non-negative
	if !ok {
		return false
	}
	*total = sum
	return true
}
