package exc14n

import (
	"bytes"
	"io"
)

// Canonicalizer is the general-purpose exclusive canonicalization driver. It
// consumes any TokenReader and emits canonical bytes to an arbitrary sink,
// so output is never materialized unless the caller asks for a buffer.
//
// A Canonicalizer must be Reset before each use and is not safe for
// concurrent use; borrow one from a ResourcePool per call.
type Canonicalizer struct {
	writer            CanonicalWriter
	includeComments   bool
	inclusivePrefixes []string
}

// Reset configures the driver for the next canonicalization.
func (c *Canonicalizer) Reset(includeComments bool, inclusivePrefixes []string) {
	c.includeComments = includeComments
	c.inclusivePrefixes = inclusivePrefixes
}

// Canonicalize drains r and writes its canonical form to sink. A reader
// error other than io.EOF aborts with that error; canonical output written
// so far is unspecified in that case.
func (c *Canonicalizer) Canonicalize(r TokenReader, sink io.Writer) error {
	w := &c.writer
	w.Reset(sink, c.includeComments, c.inclusivePrefixes)
	for {
		tok, err := r.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case StartElement:
			err = w.StartElement(t.Prefix, t.Local, t.Declarations, t.Attrs)
		case EndElement:
			err = w.EndElement()
		case CharData:
			err = w.Text(string(t))
		case Comment:
			err = w.Comment(string(t))
		case ProcInst:
			err = w.ProcInst(t.Target, t.Data)
		}
		if err != nil {
			return err
		}
	}
	return w.Close()
}

// CanonicalizeToBuffer is Canonicalize materialized into memory, for the
// chained-transform case.
func (c *Canonicalizer) CanonicalizeToBuffer(r TokenReader) ([]byte, error) {
	var buf bytes.Buffer
	if err := c.Canonicalize(r, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
