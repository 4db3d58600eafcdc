package exc14n

import "hash"

// HashSink adapts a hash primitive into an append-only byte sink. Canonical
// bytes are streamed into the sink so arbitrarily large documents never need
// to be buffered in full.
//
// Finalize is one-shot: once the digest has been read, further writes fail
// with ErrSinkFinalized until the sink is Reset.
type HashSink struct {
	h         hash.Hash
	algorithm string
	finalized bool
}

// Reset binds the sink to a hash primitive for the named digest algorithm
// and clears any finalized state. The primitive itself is reset too.
func (s *HashSink) Reset(h hash.Hash, algorithm string) {
	h.Reset()
	s.h = h
	s.algorithm = algorithm
	s.finalized = false
}

// Algorithm returns the digest algorithm URI the sink was bound to.
func (s *HashSink) Algorithm() string {
	return s.algorithm
}

// Write feeds the hash primitive incrementally.
func (s *HashSink) Write(p []byte) (int, error) {
	if s.finalized {
		return 0, ErrSinkFinalized
	}
	return s.h.Write(p)
}

// Finalize returns the accumulated digest and seals the sink.
func (s *HashSink) Finalize() ([]byte, error) {
	if s.finalized {
		return nil, ErrSinkFinalized
	}
	s.finalized = true
	return s.h.Sum(nil), nil
}
