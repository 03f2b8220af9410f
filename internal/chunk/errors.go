package chunk

import (
	"errors"
	"fmt"
)

// ErrResourceExhausted is the sentinel an op wraps (or returns) to signal the
// accelerator ran out of memory while processing a chunk. It is the only
// condition the processor retries.
var ErrResourceExhausted = errors.New("resource exhausted")

// processingFailureError is fatal: the operation failed even after the
// retry with halved chunk size.
type processingFailureError struct {
	totalElements int
	chunkCount    int
	err           error
}

func (e processingFailureError) Error() string {
	return fmt.Sprintf("chunk processing failed for %d elements at chunk count %d: %v", e.totalElements, e.chunkCount, e.err)
}

func (e processingFailureError) Unwrap() error { return e.err }

// IsProcessingFailure reports whether err is a fatal chunk processing failure.
func IsProcessingFailure(err error) bool {
	var pf processingFailureError
	return errors.As(err, &pf)
}
