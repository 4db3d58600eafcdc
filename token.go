package exc14n

import (
	"io"

	"github.com/beevik/etree"
)

// Token is one event of a streaming XML content reader. The concrete types
// are StartElement, EndElement, CharData, Comment, and ProcInst.
//
// Unlike encoding/xml tokens, these preserve the original namespace prefixes,
// which canonicalization must reproduce exactly.
type Token interface{}

// Namespace is a single prefix-to-URI binding. The empty prefix names the
// default namespace.
type Namespace struct {
	Prefix string
	URI    string
}

// Attr is a non-namespace attribute with its original prefix.
type Attr struct {
	Prefix string
	Local  string
	Value  string
}

// StartElement opens an element. Declarations holds the xmlns declarations
// appearing on the element; for the outermost element of a canonicalized
// subtree it also carries the bindings inherited from ancestors outside the
// subtree, so visibility can be decided without the enclosing document.
type StartElement struct {
	Prefix       string
	Local        string
	Declarations []Namespace
	Attrs        []Attr
}

// EndElement closes the most recently opened element.
type EndElement struct{}

// CharData is text content, with entities already resolved.
type CharData string

// Comment is a comment body, without the surrounding markers.
type Comment string

// ProcInst is a processing instruction.
type ProcInst struct {
	Target string
	Data   string
}

// TokenReader is a positioned streaming XML content reader. Token returns
// io.EOF when the content being canonicalized is exhausted; any other error
// is a fatal parse error and must abort canonicalization.
type TokenReader interface {
	Token() (Token, error)
}

// CanonicalTokenReader is implemented by readers that can canonicalize their
// content natively, writing straight through a CanonicalWriter instead of
// being driven token by token. Transform.ProcessAndDigest probes for this
// capability once per call and uses it in preference to the general driver.
type CanonicalTokenReader interface {
	TokenReader
	WriteCanonicalTo(w *CanonicalWriter) error
}

// ElementReader adapts an etree element subtree into a token stream. The
// outermost StartElement includes the namespace bindings in scope at the
// element, gathered from its ancestors, so a fragment deep inside a document
// canonicalizes the same as it would in place.
//
// ElementReader also implements CanonicalTokenReader.
type ElementReader struct {
	root    *etree.Element
	started bool
	done    bool
	stack   []elementFrame
}

type elementFrame struct {
	el  *etree.Element
	idx int
}

// NewElementReader returns a reader positioned at el.
func NewElementReader(el *etree.Element) *ElementReader {
	return &ElementReader{root: el}
}

// Token implements TokenReader.
func (r *ElementReader) Token() (Token, error) {
	if r.done {
		return nil, io.EOF
	}
	if !r.started {
		r.started = true
		r.stack = append(r.stack, elementFrame{el: r.root})
		return startElementToken(r.root, inScopeDeclarations(r.root)), nil
	}
	for {
		if len(r.stack) == 0 {
			r.done = true
			return nil, io.EOF
		}
		frame := &r.stack[len(r.stack)-1]
		if frame.idx >= len(frame.el.Child) {
			r.stack = r.stack[:len(r.stack)-1]
			return EndElement{}, nil
		}
		child := frame.el.Child[frame.idx]
		frame.idx++
		switch c := child.(type) {
		case *etree.Element:
			r.stack = append(r.stack, elementFrame{el: c})
			return startElementToken(c, nil), nil
		case *etree.CharData:
			return CharData(c.Data), nil
		case *etree.Comment:
			return Comment(c.Data), nil
		case *etree.ProcInst:
			return ProcInst{Target: c.Target, Data: c.Inst}, nil
		default:
			// Directives (DOCTYPE etc.) have no canonical form.
			continue
		}
	}
}

// WriteCanonicalTo implements CanonicalTokenReader by walking the subtree
// directly, skipping token dispatch.
func (r *ElementReader) WriteCanonicalTo(w *CanonicalWriter) error {
	if r.started || r.done {
		return errReaderConsumed
	}
	r.done = true
	return writeElementCanonical(w, r.root, true)
}

// startElementToken splits an element's etree attributes into namespace
// declarations and ordinary attributes. Extra bindings, if any, are merged in
// front so the element's own declarations win.
func startElementToken(el *etree.Element, inherited []Namespace) StartElement {
	start := StartElement{
		Prefix:       el.Space,
		Local:        el.Tag,
		Declarations: inherited,
	}
	for _, a := range el.Attr {
		switch {
		case a.Space == "xmlns":
			start.Declarations = append(start.Declarations, Namespace{Prefix: a.Key, URI: a.Value})
		case a.Space == "" && a.Key == "xmlns":
			start.Declarations = append(start.Declarations, Namespace{URI: a.Value})
		default:
			start.Attrs = append(start.Attrs, Attr{Prefix: a.Space, Local: a.Key, Value: a.Value})
		}
	}
	return start
}

// inScopeDeclarations gathers the namespace bindings inherited from the
// ancestors of el, nearest declaration winning. Bindings declared on el
// itself are not included; startElementToken appends those afterwards, so
// they override inherited ones.
func inScopeDeclarations(el *etree.Element) []Namespace {
	var decls []Namespace
	seen := map[string]bool{}
	for p := el.Parent(); p != nil; p = p.Parent() {
		for _, a := range p.Attr {
			var prefix string
			switch {
			case a.Space == "xmlns":
				prefix = a.Key
			case a.Space == "" && a.Key == "xmlns":
				prefix = ""
			default:
				continue
			}
			if seen[prefix] {
				continue
			}
			seen[prefix] = true
			decls = append(decls, Namespace{Prefix: prefix, URI: a.Value})
		}
	}
	return decls
}

// writeElementCanonical streams el through w. When root is true the
// element's in-scope ancestor bindings are included so namespace visibility
// resolves correctly for fragments.
func writeElementCanonical(w *CanonicalWriter, el *etree.Element, root bool) error {
	var inherited []Namespace
	if root {
		inherited = inScopeDeclarations(el)
	}
	start := startElementToken(el, inherited)
	if err := w.StartElement(start.Prefix, start.Local, start.Declarations, start.Attrs); err != nil {
		return err
	}
	for _, child := range el.Child {
		var err error
		switch c := child.(type) {
		case *etree.Element:
			err = writeElementCanonical(w, c, false)
		case *etree.CharData:
			err = w.Text(c.Data)
		case *etree.Comment:
			err = w.Comment(c.Data)
		case *etree.ProcInst:
			err = w.ProcInst(c.Target, c.Inst)
		}
		if err != nil {
			return err
		}
	}
	return w.EndElement()
}

// CanonicalElement wraps an etree element as a self-serializing input for
// Transform.Process and Transform.ProcessAndDigest.
type CanonicalElement struct {
	el *etree.Element
}

// NewCanonicalElement returns a self-serializing view of el.
func NewCanonicalElement(el *etree.Element) CanonicalElement {
	return CanonicalElement{el: el}
}

// WriteCanonicalXML implements CanonicalWriterTo.
func (c CanonicalElement) WriteCanonicalXML(w *CanonicalWriter) error {
	return writeElementCanonical(w, c.el, true)
}
