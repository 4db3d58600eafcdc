package exc14n

import (
	"hash"
	"sync"

	"go.uber.org/zap"
)

// ResourcePool lends the reusable pieces of the verification hot path:
// canonicalization drivers, canonical writers, hash primitives, and hash
// sinks. Borrowed instances are reset on loan, so a borrower always receives
// a clean instance; the borrower must not retain an instance across
// concurrent calls.
//
// A single pool is safe for concurrent use from multiple goroutines.
type ResourcePool struct {
	canonicalizers sync.Pool
	writers        sync.Pool
	sinks          sync.Pool

	mu     sync.Mutex
	hashes map[string]*sync.Pool

	log *zap.Logger
}

// PoolOption configures a ResourcePool.
type PoolOption func(*ResourcePool)

// WithLogger attaches a logger for borrow/return debug tracing.
func WithLogger(log *zap.Logger) PoolOption {
	return func(p *ResourcePool) {
		p.log = log
	}
}

// NewResourcePool returns an empty pool. Pools are typically process- or
// listener-scoped and shared across verifications.
func NewResourcePool(opts ...PoolOption) *ResourcePool {
	p := &ResourcePool{
		hashes: make(map[string]*sync.Pool),
		log:    zap.NewNop(),
	}
	p.canonicalizers.New = func() interface{} { return new(Canonicalizer) }
	p.writers.New = func() interface{} { return new(CanonicalWriter) }
	p.sinks.New = func() interface{} { return new(HashSink) }
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// TakeCanonicalizer lends a driver. The borrower configures it with Reset
// and must return it with PutCanonicalizer when the call completes.
func (p *ResourcePool) TakeCanonicalizer() *Canonicalizer {
	c := p.canonicalizers.Get().(*Canonicalizer)
	c.Reset(false, nil)
	p.log.Debug("lending canonicalizer")
	return c
}

// PutCanonicalizer returns a driver to the pool.
func (p *ResourcePool) PutCanonicalizer(c *Canonicalizer) {
	if c == nil {
		return
	}
	p.canonicalizers.Put(c)
}

// TakeCanonicalWriter lends a canonical writer. The borrower binds it to a
// sink with Reset.
func (p *ResourcePool) TakeCanonicalWriter() *CanonicalWriter {
	w := p.writers.Get().(*CanonicalWriter)
	p.log.Debug("lending canonical writer")
	return w
}

// PutCanonicalWriter returns a writer to the pool.
func (p *ResourcePool) PutCanonicalWriter(w *CanonicalWriter) {
	if w == nil {
		return
	}
	p.writers.Put(w)
}

// TakeHash lends a hash primitive for the given digest algorithm URI. The
// primitive is reset before it is handed out. Unknown or unlinked
// algorithms fail with UnrecognizedAlgorithmError.
func (p *ResourcePool) TakeHash(algorithm string) (hash.Hash, error) {
	ch, ok := DigestAlgorithms[algorithm]
	if !ok || !ch.Available() {
		return nil, &UnrecognizedAlgorithmError{Algorithm: algorithm}
	}

	p.mu.Lock()
	hp, ok := p.hashes[algorithm]
	if !ok {
		hp = &sync.Pool{New: func() interface{} { return ch.New() }}
		p.hashes[algorithm] = hp
	}
	p.mu.Unlock()

	h := hp.Get().(hash.Hash)
	h.Reset()
	p.log.Debug("lending hash", zap.String("algorithm", algorithm))
	return h, nil
}

// PutHash returns a hash primitive to the pool it was borrowed from.
func (p *ResourcePool) PutHash(algorithm string, h hash.Hash) {
	if h == nil {
		return
	}
	p.mu.Lock()
	hp, ok := p.hashes[algorithm]
	p.mu.Unlock()
	if ok {
		hp.Put(h)
	}
}

// TakeHashSink lends a HashSink bound to a fresh hash primitive for the
// given digest algorithm URI.
func (p *ResourcePool) TakeHashSink(algorithm string) (*HashSink, error) {
	h, err := p.TakeHash(algorithm)
	if err != nil {
		return nil, err
	}
	s := p.sinks.Get().(*HashSink)
	s.Reset(h, algorithm)
	return s, nil
}

// PutHashSink returns a sink and its underlying hash primitive to the pool.
func (p *ResourcePool) PutHashSink(s *HashSink) {
	if s == nil {
		return
	}
	p.PutHash(s.algorithm, s.h)
	s.h = nil
	p.sinks.Put(s)
}
