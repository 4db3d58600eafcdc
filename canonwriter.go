package exc14n

import (
	"bufio"
	"fmt"
	"io"
	"sort"
)

// CanonicalWriterTo is implemented by in-memory elements that can write
// their own canonical XML form. Parsed signature substructures use it to
// skip re-parsing through a generic reader.
type CanonicalWriterTo interface {
	WriteCanonicalXML(w *CanonicalWriter) error
}

// CanonicalWriter emits Exclusive C14N bytes. All output paths (the general
// driver, native-canonicalizing readers, and self-serializing elements)
// funnel through it, which is what makes their byte output identical.
//
// The writer owns the namespace visibility rules: an element renders exactly
// the declarations it visibly utilizes, in prefix order, suppressing
// bindings an ancestor in the canonical output already rendered identically.
// Inclusive prefixes, when configured, are forced onto the outermost
// element.
//
// A CanonicalWriter must be Reset before each use and is not safe for
// concurrent use.
type CanonicalWriter struct {
	out               *bufio.Writer
	includeComments   bool
	inclusivePrefixes []string

	// scope and rendered are append-only binding stacks; frames record
	// truncation points. Lookup searches from the end so the nearest
	// declaration wins.
	scope    []Namespace
	rendered []Namespace
	frames   []writerFrame
}

type writerFrame struct {
	prefix       string
	local        string
	scopeBase    int
	renderedBase int
}

// Reset binds the writer to a sink and clears all element state. The xml
// prefix is pre-bound and pre-rendered so it is never declared in output.
func (w *CanonicalWriter) Reset(sink io.Writer, includeComments bool, inclusivePrefixes []string) {
	if w.out == nil {
		w.out = bufio.NewWriter(sink)
	} else {
		w.out.Reset(sink)
	}
	w.includeComments = includeComments
	w.inclusivePrefixes = inclusivePrefixes
	w.scope = append(w.scope[:0], Namespace{Prefix: "xml", URI: NamespaceXML})
	w.rendered = append(w.rendered[:0], Namespace{Prefix: "xml", URI: NamespaceXML})
	w.frames = w.frames[:0]
}

func (w *CanonicalWriter) lookupScope(prefix string) (string, bool) {
	for i := len(w.scope) - 1; i >= 0; i-- {
		if w.scope[i].Prefix == prefix {
			return w.scope[i].URI, true
		}
	}
	return "", false
}

func (w *CanonicalWriter) lookupRendered(prefix string) (string, bool) {
	for i := len(w.rendered) - 1; i >= 0; i-- {
		if w.rendered[i].Prefix == prefix {
			return w.rendered[i].URI, true
		}
	}
	return "", false
}

// StartElement opens an element, rendering its visibly utilized namespace
// declarations and its attributes in canonical order.
func (w *CanonicalWriter) StartElement(prefix, local string, decls []Namespace, attrs []Attr) error {
	outermost := len(w.frames) == 0
	frame := writerFrame{
		prefix:       prefix,
		local:        local,
		scopeBase:    len(w.scope),
		renderedBase: len(w.rendered),
	}
	w.scope = append(w.scope, decls...)

	// Visibly utilized prefixes: the element's own, those of its prefixed
	// attributes, and on the outermost element any configured inclusive
	// prefix that is bound in scope.
	utilized := []string{prefix}
	for _, a := range attrs {
		if a.Prefix != "" {
			utilized = append(utilized, a.Prefix)
		}
	}
	if outermost {
		for _, p := range w.inclusivePrefixes {
			if _, ok := w.lookupScope(p); ok {
				utilized = append(utilized, p)
			}
		}
	}
	sort.Strings(utilized)

	w.out.WriteByte('<')
	writeQName(w.out, prefix, local)

	prev := "\x00"
	for _, p := range utilized {
		if p == prev {
			continue
		}
		prev = p
		uri, ok := w.lookupScope(p)
		if !ok {
			if p != "" {
				return fmt.Errorf("exc14n: undeclared namespace prefix %q", p)
			}
			uri = ""
		}
		cur, rendered := w.lookupRendered(p)
		if p == "" && !rendered {
			cur, rendered = "", true
		}
		if rendered && cur == uri {
			continue
		}
		w.out.WriteString(" xmlns")
		if p != "" {
			w.out.WriteByte(':')
			w.out.WriteString(p)
		}
		w.out.WriteString(`="`)
		writeEscapedAttr(w.out, uri)
		w.out.WriteByte('"')
		w.rendered = append(w.rendered, Namespace{Prefix: p, URI: uri})
	}

	sorted, err := w.sortAttrs(attrs)
	if err != nil {
		return err
	}
	for _, a := range sorted {
		w.out.WriteByte(' ')
		writeQName(w.out, a.Prefix, a.Local)
		w.out.WriteString(`="`)
		writeEscapedAttr(w.out, a.Value)
		w.out.WriteByte('"')
	}
	w.out.WriteByte('>')

	w.frames = append(w.frames, frame)
	return nil
}

// sortAttrs orders attributes by expanded name: namespace URI first, local
// name second. Unprefixed attributes are in no namespace.
func (w *CanonicalWriter) sortAttrs(attrs []Attr) ([]Attr, error) {
	if len(attrs) == 0 {
		return nil, nil
	}
	type resolved struct {
		uri string
		a   Attr
	}
	rs := make([]resolved, 0, len(attrs))
	for _, a := range attrs {
		var uri string
		if a.Prefix != "" {
			u, ok := w.lookupScope(a.Prefix)
			if !ok {
				return nil, fmt.Errorf("exc14n: undeclared namespace prefix %q", a.Prefix)
			}
			uri = u
		}
		rs = append(rs, resolved{uri: uri, a: a})
	}
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].uri != rs[j].uri {
			return rs[i].uri < rs[j].uri
		}
		return rs[i].a.Local < rs[j].a.Local
	})
	out := make([]Attr, len(rs))
	for i, r := range rs {
		out[i] = r.a
	}
	return out, nil
}

// EndElement closes the current element and drops its bindings from scope.
func (w *CanonicalWriter) EndElement() error {
	if len(w.frames) == 0 {
		return fmt.Errorf("exc14n: end element without matching start")
	}
	frame := w.frames[len(w.frames)-1]
	w.frames = w.frames[:len(w.frames)-1]
	w.out.WriteString("</")
	writeQName(w.out, frame.prefix, frame.local)
	w.out.WriteByte('>')
	w.scope = w.scope[:frame.scopeBase]
	w.rendered = w.rendered[:frame.renderedBase]
	return nil
}

// Text writes character data with canonical escaping.
func (w *CanonicalWriter) Text(s string) error {
	writeEscapedText(w.out, s)
	return nil
}

// Comment writes a comment, or nothing when comments are excluded.
func (w *CanonicalWriter) Comment(s string) error {
	if !w.includeComments {
		return nil
	}
	w.out.WriteString("<!--")
	w.out.WriteString(s)
	w.out.WriteString("-->")
	return nil
}

// ProcInst writes a processing instruction.
func (w *CanonicalWriter) ProcInst(target, data string) error {
	w.out.WriteString("<?")
	w.out.WriteString(target)
	if data != "" {
		w.out.WriteByte(' ')
		w.out.WriteString(data)
	}
	w.out.WriteString("?>")
	return nil
}

// Close verifies every element was closed and flushes buffered output to
// the sink.
func (w *CanonicalWriter) Close() error {
	if len(w.frames) != 0 {
		return fmt.Errorf("exc14n: %d unclosed element(s)", len(w.frames))
	}
	return w.out.Flush()
}

func writeQName(out *bufio.Writer, prefix, local string) {
	if prefix != "" {
		out.WriteString(prefix)
		out.WriteByte(':')
	}
	out.WriteString(local)
}

// writeEscapedText applies the canonical text escaping rules: ampersand,
// both angle brackets, and carriage return.
func writeEscapedText(out *bufio.Writer, s string) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '&':
			out.WriteString("&amp;")
		case '<':
			out.WriteString("&lt;")
		case '>':
			out.WriteString("&gt;")
		case '\r':
			out.WriteString("&#xD;")
		default:
			out.WriteByte(s[i])
		}
	}
}

// writeEscapedAttr applies the canonical attribute escaping rules: ampersand,
// left angle bracket, double quote, and the three whitespace control chars.
// The right angle bracket stays literal in attribute values.
func writeEscapedAttr(out *bufio.Writer, s string) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '&':
			out.WriteString("&amp;")
		case '<':
			out.WriteString("&lt;")
		case '"':
			out.WriteString("&quot;")
		case '\t':
			out.WriteString("&#x9;")
		case '\n':
			out.WriteString("&#xA;")
		case '\r':
			out.WriteString("&#xD;")
		default:
			out.WriteByte(s[i])
		}
	}
}
