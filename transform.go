package exc14n

import (
	"bytes"
	"fmt"

	"github.com/beevik/etree"
)

// inclusiveNamespaces carries the InclusiveNamespaces child configuration.
// The element's own prefix and the raw PrefixList value are preserved so
// WriteTo reproduces the element exactly as it was read, including an empty
// child with no PrefixList attribute.
type inclusiveNamespaces struct {
	prefix        string
	prefixList    string
	hasPrefixList bool
}

// Transform is the exclusive canonicalization transform of an XML signature
// reference. It owns the algorithm identity, the inclusive-prefix
// configuration, and its own XML round-trip, and dispatches canonicalization
// to the driver or the self-serializing path depending on input shape.
//
// A Transform represents either a generic Transform element or the
// CanonicalizationMethod element of SignedInfo; the distinction only affects
// which element name it reads and writes.
type Transform struct {
	algorithm                string
	includeComments          bool
	isCanonicalizationMethod bool
	prefix                   string
	inclusiveNS              *inclusiveNamespaces
	inclusivePrefixes        []string
}

// NewTransform returns a Transform for a Reference Transforms entry.
func NewTransform(includeComments bool) *Transform {
	return newTransform(false, includeComments)
}

// NewCanonicalizationMethod returns a Transform representing the SignedInfo
// CanonicalizationMethod element, the implied single-transform case.
func NewCanonicalizationMethod(includeComments bool) *Transform {
	return newTransform(true, includeComments)
}

func newTransform(canonicalizationMethod, includeComments bool) *Transform {
	algorithm := AlgorithmExclusiveC14N
	if includeComments {
		algorithm = AlgorithmExclusiveC14NWithComments
	}
	return &Transform{
		algorithm:                algorithm,
		includeComments:          includeComments,
		isCanonicalizationMethod: canonicalizationMethod,
	}
}

// Algorithm returns the transform's algorithm URI.
func (t *Transform) Algorithm() string {
	return t.algorithm
}

// IncludeComments reports whether comments survive canonicalization.
func (t *Transform) IncludeComments() bool {
	return t.includeComments
}

// InclusiveNamespacesPrefixList returns the raw configured PrefixList value.
func (t *Transform) InclusiveNamespacesPrefixList() string {
	if t.inclusiveNS == nil {
		return ""
	}
	return t.inclusiveNS.prefixList
}

// InclusivePrefixes returns the tokenized prefix list, nil when none is
// configured.
func (t *Transform) InclusivePrefixes() []string {
	return t.inclusivePrefixes
}

// SetInclusiveNamespacesPrefixList configures the inclusive-prefix carve-out.
// The tokenized form is recomputed eagerly on every set.
func (t *Transform) SetInclusiveNamespacesPrefixList(raw string) {
	if t.inclusiveNS == nil {
		t.inclusiveNS = &inclusiveNamespaces{}
	}
	t.inclusiveNS.prefixList = raw
	t.inclusiveNS.hasPrefixList = true
	t.inclusivePrefixes = TokenizePrefixList(raw)
}

func (t *Transform) elementName() string {
	if t.isCanonicalizationMethod {
		return "CanonicalizationMethod"
	}
	return "Transform"
}

// Process canonicalizes input into a byte buffer, the path used when this
// transform is one of several chained transforms. The input must be a
// TokenReader or a CanonicalWriterTo.
func (t *Transform) Process(input interface{}, pool *ResourcePool) ([]byte, error) {
	switch in := input.(type) {
	case TokenReader:
		c := pool.TakeCanonicalizer()
		defer pool.PutCanonicalizer(c)
		c.Reset(t.includeComments, t.inclusivePrefixes)
		return c.CanonicalizeToBuffer(in)
	case CanonicalWriterTo:
		w := pool.TakeCanonicalWriter()
		defer pool.PutCanonicalWriter(w)
		var buf bytes.Buffer
		w.Reset(&buf, t.includeComments, t.inclusivePrefixes)
		if err := in.WriteCanonicalXML(w); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, ErrUnsupportedInputKind
	}
}

// ProcessAndDigest canonicalizes input straight into a hash primitive for
// the given digest algorithm URI and returns the finished digest. Canonical
// bytes are never buffered in full. Used when this is the sole transform of
// a reference.
//
// Readers that implement CanonicalTokenReader canonicalize natively; the
// general driver is the fallback. Both paths produce identical bytes.
func (t *Transform) ProcessAndDigest(input interface{}, pool *ResourcePool, digestAlgorithm string) ([]byte, error) {
	sink, err := pool.TakeHashSink(digestAlgorithm)
	if err != nil {
		return nil, err
	}
	defer pool.PutHashSink(sink)

	switch in := input.(type) {
	case TokenReader:
		if native, ok := in.(CanonicalTokenReader); ok {
			w := pool.TakeCanonicalWriter()
			defer pool.PutCanonicalWriter(w)
			w.Reset(sink, t.includeComments, t.inclusivePrefixes)
			if err := native.WriteCanonicalTo(w); err != nil {
				return nil, err
			}
			if err := w.Close(); err != nil {
				return nil, err
			}
		} else {
			c := pool.TakeCanonicalizer()
			defer pool.PutCanonicalizer(c)
			c.Reset(t.includeComments, t.inclusivePrefixes)
			if err := c.Canonicalize(in, sink); err != nil {
				return nil, err
			}
		}
	case CanonicalWriterTo:
		w := pool.TakeCanonicalWriter()
		defer pool.PutCanonicalWriter(w)
		w.Reset(sink, t.includeComments, t.inclusivePrefixes)
		if err := in.WriteCanonicalXML(w); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	default:
		return nil, ErrUnsupportedInputKind
	}

	return sink.Finalize()
}

// ReadFrom populates the transform from a parsed Transform or
// CanonicalizationMethod element. The Algorithm attribute is required and
// must be one of the two exclusive canonicalization URIs. Comments are
// honored only when the URI is the WithComments variant and the enclosing
// reference context preserves comments.
func (t *Transform) ReadFrom(el *etree.Element, preserveComments bool) error {
	if el == nil {
		return fmt.Errorf("exc14n: unable to find %s element", t.elementName())
	}
	attr := el.SelectAttr("Algorithm")
	if attr == nil {
		return fmt.Errorf("exc14n: unable to find Algorithm in %s element", t.elementName())
	}
	switch attr.Value {
	case AlgorithmExclusiveC14N:
		t.includeComments = false
	case AlgorithmExclusiveC14NWithComments:
		t.includeComments = preserveComments
	default:
		return &UnrecognizedAlgorithmError{Algorithm: attr.Value}
	}
	t.algorithm = attr.Value
	t.prefix = el.Space

	t.inclusiveNS = nil
	t.inclusivePrefixes = nil
	if child := el.SelectElement("InclusiveNamespaces"); child != nil {
		t.inclusiveNS = &inclusiveNamespaces{prefix: child.Space}
		if pl := child.SelectAttr("PrefixList"); pl != nil {
			t.inclusiveNS.prefixList = pl.Value
			t.inclusiveNS.hasPrefixList = true
			t.inclusivePrefixes = TokenizePrefixList(pl.Value)
		}
	}
	return nil
}

// WriteTo serializes the transform under parent, or as a detached element
// when parent is nil. An InclusiveNamespaces child is emitted whenever one
// was configured, even if its prefix list tokenizes to nothing.
func (t *Transform) WriteTo(parent *etree.Element) *etree.Element {
	var el *etree.Element
	if parent != nil {
		el = parent.CreateElement(t.elementName())
	} else {
		// Detached elements carry their own binding; under a parent the
		// prefix is bound by the enclosing Signature.
		el = etree.NewElement(t.elementName())
		if t.prefix == "" {
			el.CreateAttr("xmlns", NamespaceXMLDSig)
		} else {
			el.CreateAttr("xmlns:"+t.prefix, NamespaceXMLDSig)
		}
	}
	el.Space = t.prefix
	el.CreateAttr("Algorithm", t.algorithm)
	if t.inclusiveNS != nil {
		child := el.CreateElement("InclusiveNamespaces")
		child.Space = t.inclusiveNS.prefix
		if t.inclusiveNS.prefix == "" {
			child.CreateAttr("xmlns", NamespaceExclusiveC14N)
		} else {
			child.CreateAttr("xmlns:"+t.inclusiveNS.prefix, NamespaceExclusiveC14N)
		}
		if t.inclusiveNS.hasPrefixList {
			child.CreateAttr("PrefixList", t.inclusiveNS.prefixList)
		}
	}
	return el
}

// WriteCanonicalXML writes the transform's own element through a canonical
// writer, making Transform itself a self-serializing signature substructure.
func (t *Transform) WriteCanonicalXML(w *CanonicalWriter) error {
	decls := []Namespace{{Prefix: t.prefix, URI: NamespaceXMLDSig}}
	attrs := []Attr{{Local: "Algorithm", Value: t.algorithm}}
	if err := w.StartElement(t.prefix, t.elementName(), decls, attrs); err != nil {
		return err
	}
	if t.inclusiveNS != nil {
		childDecls := []Namespace{{Prefix: t.inclusiveNS.prefix, URI: NamespaceExclusiveC14N}}
		var childAttrs []Attr
		if t.inclusiveNS.hasPrefixList {
			childAttrs = append(childAttrs, Attr{Local: "PrefixList", Value: t.inclusiveNS.prefixList})
		}
		if err := w.StartElement(t.inclusiveNS.prefix, "InclusiveNamespaces", childDecls, childAttrs); err != nil {
			return err
		}
		if err := w.EndElement(); err != nil {
			return err
		}
	}
	return w.EndElement()
}
