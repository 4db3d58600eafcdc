package exc14n

import (
	"errors"
	"fmt"
)

// ErrUnsupportedInputKind is returned by Transform.Process and
// Transform.ProcessAndDigest when the input is neither a TokenReader nor a
// CanonicalWriterTo. This is an integration error, not a document error.
var ErrUnsupportedInputKind = errors.New("exc14n: input must be a TokenReader or a CanonicalWriterTo")

// ErrSinkFinalized is returned when a HashSink is written to after Finalize.
var ErrSinkFinalized = errors.New("exc14n: write to finalized hash sink")

// errReaderConsumed guards the native fast path: a reader that has already
// handed out tokens cannot restart canonicalization from the top.
var errReaderConsumed = errors.New("exc14n: reader already consumed")

// UnrecognizedAlgorithmError reports an Algorithm URI that this package does
// not implement. It is distinct from malformed-XML errors so callers can tell
// a bad document from an unsupported crypto suite.
type UnrecognizedAlgorithmError struct {
	Algorithm string
}

func (e *UnrecognizedAlgorithmError) Error() string {
	return fmt.Sprintf("exc14n: unrecognized algorithm %q", e.Algorithm)
}
