// Package xmltree compares generic namespaced document trees.
//
// Documents are first canonicalized (all namespace declarations on the
// root element, caller defined prefixes) and identifiers are replaced by
// structural paths, so that two independent exports of the same data use
// the same identifiers. A Differ then compares two elements and classifies
// them as identical, similar (differences only in identifiers or other
// recoverable details) or different.
package xmltree

import (
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// Name is a namespace qualified name.
type Name struct {
	Space string
	Local string
}

func (n Name) String() string {
	if n.Space == "" {
		return n.Local
	}
	return "{" + n.Space + "}" + n.Local
}

// Namespaces maps prefixes to namespace URIs.
type Namespaces map[string]string

// lookupNamespace returns the URI bound to prefix in the scope of e.
// The empty prefix looks up the default namespace.
func lookupNamespace(e *etree.Element, prefix string) string {
	if prefix == "xml" {
		return xmlNamespace
	}
	for ; e != nil; e = e.Parent() {
		for _, a := range e.Attr {
			if prefix == "" && a.Space == "" && a.Key == "xmlns" {
				return a.Value
			}
			if prefix != "" && a.Space == "xmlns" && a.Key == prefix {
				return a.Value
			}
		}
	}
	return ""
}

// ElementName returns the qualified name of e.
func ElementName(e *etree.Element) Name {
	return Name{Space: lookupNamespace(e, e.Space), Local: e.Tag}
}

// AttrName returns the qualified name of attribute a of element e.
// Attributes without prefix are not in any namespace.
func AttrName(e *etree.Element, a *etree.Attr) Name {
	if a.Space == "" {
		return Name{Local: a.Key}
	}
	return Name{Space: lookupNamespace(e, a.Space), Local: a.Key}
}

func isNamespaceDecl(a *etree.Attr) bool {
	return a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns")
}

func fullTag(e *etree.Element) string {
	if e.Space == "" {
		return e.Tag
	}
	return e.Space + ":" + e.Tag
}

func fullKey(a *etree.Attr) string {
	if a.Space == "" {
		return a.Key
	}
	return a.Space + ":" + a.Key
}

// Path returns the structural path of e, for example
// "/message:AIXMBasicMessage[1]/message:hasMember[3]/aixm:Runway[1]". Each
// step is qualified with the index among the siblings with the same tag.
func Path(e *etree.Element) string {
	steps := []string{}
	for ; e != nil; e = e.Parent() {
		if e.Tag == "" && e.Parent() == nil {
			// document node
			break
		}
		steps = append(steps, fullTag(e)+"["+strconv.Itoa(siblingIndex(e))+"]")
	}
	for i, j := 0, len(steps)-1; i < j; i, j = i+1, j-1 {
		steps[i], steps[j] = steps[j], steps[i]
	}
	return "/" + strings.Join(steps, "/")
}

// siblingIndex returns the 1-based position of e among the siblings with
// the same tag.
func siblingIndex(e *etree.Element) int {
	p := e.Parent()
	if p == nil {
		return 1
	}
	idx := 0
	for _, c := range p.ChildElements() {
		if c.Space == e.Space && c.Tag == e.Tag {
			idx++
		}
		if c == e {
			return idx
		}
	}
	return idx
}

// text returns the trimmed character data directly contained in e.
func text(e *etree.Element) string {
	var b strings.Builder
	for _, t := range e.Child {
		if cd, ok := t.(*etree.CharData); ok {
			b.WriteString(cd.Data)
		}
	}
	return strings.TrimSpace(b.String())
}

func rootOf(e *etree.Element) *etree.Element {
	for e.Parent() != nil && e.Parent().Parent() != nil {
		e = e.Parent()
	}
	return e
}

// structuralPaths returns the Path of root and all its descendants.
func structuralPaths(root *etree.Element) map[*etree.Element]string {
	paths := map[*etree.Element]string{root: Path(root)}
	var visit func(e *etree.Element)
	visit = func(e *etree.Element) {
		counts := map[string]int{}
		for _, c := range e.ChildElements() {
			tag := fullTag(c)
			counts[tag]++
			paths[c] = paths[e] + "/" + tag + "[" + strconv.Itoa(counts[tag]) + "]"
			visit(c)
		}
	}
	visit(root)
	return paths
}
