package xmltree

import (
	"strings"

	"github.com/beevik/etree"
)

const (
	hrefLocal = "#"
	hrefURN   = "urn:uuid:"
)

// Normalize replaces the value of all identifier attributes and the text of
// all identifier elements with the structural path of the identified
// element. Cross-references to a replaced identifier ("#id" or
// "urn:uuid:id") are rewritten to the new value. Identifier elements
// identify their parent element.
//
// Normalize returns the number of rewritten identifiers and references.
// References to unknown identifiers are left untouched.
func Normalize(doc *etree.Document, conf *Config) (ids, refs int) {
	root := doc.Root()
	if root == nil {
		return 0, 0
	}

	type idAttr struct {
		attr  *etree.Attr
		value string
	}
	var attrs []idAttr
	var hrefs []*etree.Attr
	mapping := map[string]string{}
	record := func(old, new string) {
		if _, ok := mapping[old]; !ok && old != "" {
			mapping[old] = new
		}
	}

	paths := structuralPaths(root)
	walk(root, func(e *etree.Element) {
		if conf.isIDName(ElementName(e)) {
			owner := e
			if p := e.Parent(); p != nil && p.Parent() != nil {
				owner = p
			}
			record(text(e), paths[owner])
			setText(e, paths[owner])
			ids++
		}
		for i := range e.Attr {
			a := &e.Attr[i]
			if isNamespaceDecl(a) {
				continue
			}
			n := AttrName(e, a)
			switch {
			case conf.isIDName(n):
				attrs = append(attrs, idAttr{attr: a, value: paths[e]})
			case conf.isHref(n):
				hrefs = append(hrefs, a)
			}
		}
	})

	for _, a := range attrs {
		record(a.attr.Value, a.value)
		a.attr.Value = a.value
	}
	ids += len(attrs)

	for _, a := range hrefs {
		if v, ok := rewriteRef(a.Value, mapping); ok {
			a.Value = v
			refs++
		}
	}
	return ids, refs
}

func rewriteRef(ref string, mapping map[string]string) (string, bool) {
	for _, prefix := range []string{hrefLocal, hrefURN} {
		if strings.HasPrefix(ref, prefix) {
			if v, ok := mapping[ref[len(prefix):]]; ok {
				return prefix + v, true
			}
		}
	}
	return "", false
}

// refKey returns the identifier referenced by ref.
func refKey(ref string) (string, bool) {
	for _, prefix := range []string{hrefLocal, hrefURN} {
		if strings.HasPrefix(ref, prefix) {
			return ref[len(prefix):], true
		}
	}
	return "", false
}

func setText(e *etree.Element, s string) {
	var remove []etree.Token
	for _, t := range e.Child {
		if _, ok := t.(*etree.CharData); ok {
			remove = append(remove, t)
		}
	}
	for _, t := range remove {
		e.RemoveChild(t)
	}
	e.AddChild(etree.NewText(s))
}

// Index maps identifiers to the elements they identify.
type Index struct {
	ids map[string]*etree.Element
}

// NewIndex indexes all identifier attributes and elements below root.
func NewIndex(root *etree.Element, conf *Config) *Index {
	idx := &Index{ids: map[string]*etree.Element{}}
	add := func(id string, e *etree.Element) {
		if _, ok := idx.ids[id]; !ok && id != "" {
			idx.ids[id] = e
		}
	}
	walk(root, func(e *etree.Element) {
		if conf.isIDName(ElementName(e)) {
			if p := e.Parent(); p != nil && p.Parent() != nil {
				add(text(e), p)
			} else {
				add(text(e), e)
			}
		}
		for i := range e.Attr {
			a := &e.Attr[i]
			if !isNamespaceDecl(a) && conf.isIDName(AttrName(e, a)) {
				add(a.Value, e)
			}
		}
	})
	return idx
}

// Resolve returns the element referenced by ref, or nil.
func (idx *Index) Resolve(ref string) *etree.Element {
	key, ok := refKey(ref)
	if !ok {
		return nil
	}
	return idx.ids[key]
}

// Len returns the number of indexed identifiers.
func (idx *Index) Len() int {
	return len(idx.ids)
}
