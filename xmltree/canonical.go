package xmltree

import (
	"sort"
	"strconv"

	"github.com/beevik/etree"
)

// Canonicalize rewrites doc so that all namespace declarations are on the
// root element. Namespaces contained in prefs use the given prefix, all
// other namespaces get a generated prefix (ns1, ns2, ...) in the order of
// their URI. The prefixes of doc itself are never reused, so two documents
// that only differ in their prefixes are canonicalized to the same result.
// Attributes are sorted by name, comments and whitespace-only text between
// elements are removed.
//
// Prefixes inside attribute values or text (e.g. xsi:type="ns:T") are not
// rewritten.
func Canonicalize(doc *etree.Document, prefs Namespaces) {
	root := doc.Root()
	if root == nil {
		return
	}

	type attrNames struct {
		elem  Name
		attrs []Name
	}
	// resolve all names before any declaration is removed
	names := map[*etree.Element]attrNames{}
	walk(root, func(e *etree.Element) {
		n := attrNames{elem: ElementName(e), attrs: make([]Name, len(e.Attr))}
		for i := range e.Attr {
			if isNamespaceDecl(&e.Attr[i]) {
				continue
			}
			n.attrs[i] = AttrName(e, &e.Attr[i])
		}
		names[e] = n
	})

	uris := NamespaceURIs(doc)
	prefixes := assignPrefixes(uris, prefs)

	walk(root, func(e *etree.Element) {
		n := names[e]
		e.Space = prefixes[n.elem.Space]
		attrs := e.Attr[:0]
		for i, a := range e.Attr {
			if isNamespaceDecl(&a) {
				continue
			}
			if a.Space != "" {
				a.Space = prefixes[n.attrs[i].Space]
			}
			attrs = append(attrs, a)
		}
		e.Attr = attrs
		sort.SliceStable(e.Attr, func(i, j int) bool {
			return fullKey(&e.Attr[i]) < fullKey(&e.Attr[j])
		})
		stripIgnorable(e)
	})

	decls := make([]etree.Attr, 0, len(uris))
	for _, uri := range uris {
		decls = append(decls, etree.Attr{Space: "xmlns", Key: prefixes[uri], Value: uri})
	}
	sort.Slice(decls, func(i, j int) bool { return decls[i].Key < decls[j].Key })
	root.Attr = append(decls, root.Attr...)
}

// NamespaceURIs returns the sorted URIs of all namespaces that are used by
// element or attribute names of docs.
func NamespaceURIs(docs ...*etree.Document) []string {
	seen := map[string]bool{"": true, xmlNamespace: true}
	var uris []string
	add := func(uri string) {
		if !seen[uri] {
			seen[uri] = true
			uris = append(uris, uri)
		}
	}
	for _, doc := range docs {
		if doc.Root() == nil {
			continue
		}
		walk(doc.Root(), func(e *etree.Element) {
			add(ElementName(e).Space)
			for i := range e.Attr {
				if isNamespaceDecl(&e.Attr[i]) || e.Attr[i].Space == "" {
					continue
				}
				add(AttrName(e, &e.Attr[i]).Space)
			}
		})
	}
	sort.Strings(uris)
	return uris
}

// Declarations returns the prefixes declared in doc. The first declaration
// in document order wins for prefixes that are bound more than once.
func Declarations(doc *etree.Document) Namespaces {
	ns := Namespaces{}
	if doc.Root() == nil {
		return ns
	}
	walk(doc.Root(), func(e *etree.Element) {
		for _, a := range e.Attr {
			if a.Space == "xmlns" {
				if _, ok := ns[a.Key]; !ok {
					ns[a.Key] = a.Value
				}
			}
		}
	})
	return ns
}

// AssignPrefixes returns the prefixes that Canonicalize uses for the
// namespaces uris. Passing the result as prefs to Canonicalize gives the
// same prefixes to all documents that only use namespaces of uris.
func AssignPrefixes(uris []string, prefs Namespaces) Namespaces {
	ns := Namespaces{}
	for uri, prefix := range assignPrefixes(uris, prefs) {
		if uri != "" && uri != xmlNamespace {
			ns[prefix] = uri
		}
	}
	return ns
}

// assignPrefixes returns a unique prefix for each namespace URI.
func assignPrefixes(uris []string, prefs Namespaces) map[string]string {
	prefixes := map[string]string{xmlNamespace: "xml", "": ""}
	used := map[string]bool{"xml": true, "xmlns": true, "": true}

	preferred := map[string]string{}
	for prefix, uri := range prefs {
		// lowest prefix wins for namespaces with multiple prefixes
		if p, ok := preferred[uri]; !ok || prefix < p {
			preferred[uri] = prefix
		}
	}
	for _, uri := range uris {
		if p, ok := preferred[uri]; ok {
			prefixes[uri] = p
		}
	}
	// reserve all preferred prefixes, even for unused namespaces
	for prefix := range prefs {
		used[prefix] = true
	}

	unmapped := []string{}
	for _, uri := range uris {
		if _, ok := prefixes[uri]; !ok {
			unmapped = append(unmapped, uri)
		}
	}
	sort.Strings(unmapped)
	n := 0
	for _, uri := range unmapped {
		p := ""
		for used[p] {
			n++
			p = "ns" + strconv.Itoa(n)
		}
		prefixes[uri] = p
		used[p] = true
	}
	return prefixes
}

// stripIgnorable removes comments and whitespace-only text from elements
// with element children.
func stripIgnorable(e *etree.Element) {
	hasElements := false
	for _, t := range e.Child {
		if _, ok := t.(*etree.Element); ok {
			hasElements = true
			break
		}
	}
	var remove []etree.Token
	for _, t := range e.Child {
		switch t := t.(type) {
		case *etree.Comment:
			remove = append(remove, t)
		case *etree.CharData:
			if hasElements && t.IsWhitespace() {
				remove = append(remove, t)
			}
		}
	}
	for _, t := range remove {
		e.RemoveChild(t)
	}
}

// walk calls fn for e and all descendant elements in document order.
func walk(e *etree.Element, fn func(*etree.Element)) {
	fn(e)
	for _, c := range e.ChildElements() {
		walk(c, fn)
	}
}
