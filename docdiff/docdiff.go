// Package docdiff classifies the top-level features of two namespaced
// documents into added, deleted, changed and unchanged features.
//
// Features are matched by a business key that is selected with a path
// expression relative to each feature. Matched features are compared with
// the xmltree Differ after both documents were canonicalized and their
// identifiers normalized.
package docdiff

import (
	"fmt"
	"sort"
	"strings"

	"github.com/beevik/etree"
	"github.com/pkg/errors"

	"github.com/omniscale/aixmdiff/log"
	"github.com/omniscale/aixmdiff/xmltree"
)

const DefaultBoundingElement = "boundedBy"

const xmlNamespace = "http://www.w3.org/XML/1998/namespace"

type Partition int

const (
	Unchanged Partition = iota
	Changed
	Added
	Deleted
)

var partitionNames = map[Partition]string{
	Unchanged: "unchanged",
	Changed:   "changed",
	Added:     "added",
	Deleted:   "deleted",
}

func (p Partition) String() string {
	return partitionNames[p]
}

// Skipped counts features without a business key.
type Skipped struct {
	Base      int
	Candidate int
}

// FeatureError is recorded for features that are excluded because their
// key is not unique.
type FeatureError struct {
	Key  string
	Path string
	Err  error
}

func (e *FeatureError) Error() string {
	return fmt.Sprintf("feature %s (%s): %v", e.Path, e.Key, e.Err)
}

func (e *FeatureError) Cause() error {
	return e.Err
}

type Result struct {
	Added     *etree.Document
	Deleted   *etree.Document
	Changed   *etree.Document
	Unchanged *etree.Document

	// Keys maps each classified business key to its partition.
	Keys map[string]Partition
	// Verdicts contains the verdict of all features present in both
	// documents.
	Verdicts map[string]xmltree.Verdict
	// Explanations describes the differences of all changed features.
	Explanations map[string]string
	Skipped      Skipped
	Errors       []error
}

// Document returns the output document of partition p.
func (r *Result) Document(p Partition) *etree.Document {
	switch p {
	case Added:
		return r.Added
	case Deleted:
		return r.Deleted
	case Changed:
		return r.Changed
	default:
		return r.Unchanged
	}
}

// KeysOf returns the sorted keys classified as p.
func (r *Result) KeysOf(p Partition) []string {
	keys := []string{}
	for k, kp := range r.Keys {
		if kp == p {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

type Differ struct {
	Namespaces xmltree.Namespaces
	Config     *xmltree.Config
	// BoundingElement is the local name of the top-level element that is
	// copied into all outputs instead of being classified.
	BoundingElement string
}

func New(ns xmltree.Namespaces) *Differ {
	return &Differ{
		Namespaces:      ns,
		Config:          xmltree.DefaultConfig(),
		BoundingElement: DefaultBoundingElement,
	}
}

// Compare classifies the features of base and candidate by keyPath.
// Both documents are canonicalized and normalized in place.
func Compare(base, candidate *etree.Document, keyPath string, ns xmltree.Namespaces) (*Result, error) {
	return New(ns).Compare(base, candidate, keyPath)
}

type keyedFeature struct {
	key  string
	elem *etree.Element
}

func (d *Differ) Compare(base, candidate *etree.Document, keyPath string) (*Result, error) {
	if _, err := compileKeyPath(keyPath); err != nil {
		return nil, err
	}
	if base.Root() == nil || candidate.Root() == nil {
		return nil, errors.New("document without root element")
	}

	// both documents share one prefix for each namespace
	ns := xmltree.AssignPrefixes(xmltree.NamespaceURIs(base, candidate), d.Namespaces)
	canonicalKeyPath, err := resolveKeyPath(keyPath, ns,
		d.Namespaces, xmltree.Declarations(base), xmltree.Declarations(candidate))
	if err != nil {
		return nil, err
	}
	key, err := compileKeyPath(canonicalKeyPath)
	if err != nil {
		return nil, err
	}

	for _, doc := range []*etree.Document{base, candidate} {
		xmltree.Canonicalize(doc, ns)
		ids, refs := xmltree.Normalize(doc, d.Config)
		log.Printf("[debug] normalized %s identifiers and %s references",
			log.Count(ids), log.Count(refs))
	}

	r := &Result{
		Keys:         make(map[string]Partition),
		Verdicts:     make(map[string]xmltree.Verdict),
		Explanations: make(map[string]string),
	}

	baseFeatures, skipped := d.index(base, key, r)
	r.Skipped.Base = skipped
	candFeatures, skipped := d.index(candidate, key, r)
	r.Skipped.Candidate = skipped

	outputs := map[Partition]*etree.Element{}
	for _, p := range []Partition{Unchanged, Changed, Added, Deleted} {
		outputs[p] = d.newOutput(base, p, r)
	}

	baseIdx := xmltree.NewIndex(base.Root(), d.Config)
	candIdx := xmltree.NewIndex(candidate.Root(), d.Config)

	for _, k := range sortedKeys(baseFeatures) {
		b := baseFeatures[k]
		c, ok := candFeatures[k]
		if !ok {
			outputs[Deleted].AddChild(detach(b))
			r.Keys[k] = Deleted
			continue
		}
		differ := xmltree.NewIndexedDiffer(b, c, d.Config, baseIdx, candIdx)
		r.Verdicts[k] = differ.Verdict()
		if differ.Identical() {
			outputs[Unchanged].AddChild(detach(c))
			r.Keys[k] = Unchanged
		} else {
			outputs[Changed].AddChild(detach(c))
			r.Keys[k] = Changed
			r.Explanations[k] = differ.Explain()
		}
	}
	for _, k := range sortedKeys(candFeatures) {
		if _, ok := baseFeatures[k]; ok {
			continue
		}
		outputs[Added].AddChild(detach(candFeatures[k]))
		r.Keys[k] = Added
	}

	for _, p := range []Partition{Unchanged, Changed, Added, Deleted} {
		doc := r.Document(p)
		xmltree.Canonicalize(doc, ns)
		xmltree.Normalize(doc, d.Config)
	}

	log.Printf("[info] %s added, %s changed, %s deleted, %s unchanged features",
		log.Count(len(r.KeysOf(Added))), log.Count(len(r.KeysOf(Changed))),
		log.Count(len(r.KeysOf(Deleted))), log.Count(len(r.KeysOf(Unchanged))),
	)
	if r.Skipped.Base > 0 || r.Skipped.Candidate > 0 {
		log.Printf("[warn] skipped features without key: %s in base, %s in candidate",
			log.Count(r.Skipped.Base), log.Count(r.Skipped.Candidate))
	}
	return r, nil
}

// index returns the top-level features of doc by key. Features without
// key are counted, features with a duplicate key are recorded as errors.
func (d *Differ) index(doc *etree.Document, key *keyPath, r *Result) (map[string]*etree.Element, int) {
	features := make(map[string]*etree.Element)
	skipped := 0
	for _, e := range doc.Root().ChildElements() {
		if d.isBounding(e) {
			continue
		}
		k, ok := key.eval(e)
		if !ok {
			log.Printf("[debug] skipping feature %s without key", xmltree.Path(e))
			skipped++
			continue
		}
		if _, ok := features[k]; ok {
			r.Errors = append(r.Errors, &FeatureError{
				Key: k, Path: xmltree.Path(e),
				Err: errors.New("duplicate key"),
			})
			continue
		}
		features[k] = e
	}
	return features, skipped
}

func (d *Differ) isBounding(e *etree.Element) bool {
	return d.BoundingElement != "" && e.Tag == d.BoundingElement
}

// newOutput creates the document of partition p with a copy of the base
// root element and the bounding element of base.
func (d *Differ) newOutput(base *etree.Document, p Partition, r *Result) *etree.Element {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	src := base.Root()
	root := doc.CreateElement(src.Tag)
	root.Space = src.Space
	for _, a := range src.Attr {
		if a.Space != "" {
			root.CreateAttr(a.Space+":"+a.Key, a.Value)
		} else {
			root.CreateAttr(a.Key, a.Value)
		}
	}
	for _, e := range src.ChildElements() {
		if d.isBounding(e) {
			root.AddChild(detach(e))
			break
		}
	}

	switch p {
	case Added:
		r.Added = doc
	case Deleted:
		r.Deleted = doc
	case Changed:
		r.Changed = doc
	default:
		r.Unchanged = doc
	}
	return root
}

// detach returns a deep copy of e that declares all namespaces that are
// in scope of e.
func detach(e *etree.Element) *etree.Element {
	c := e.Copy()
	declared := map[string]bool{}
	for _, a := range c.Attr {
		if a.Space == "xmlns" {
			declared[a.Key] = true
		} else if a.Space == "" && a.Key == "xmlns" {
			declared[""] = true
		}
	}
	for p := e.Parent(); p != nil; p = p.Parent() {
		for _, a := range p.Attr {
			switch {
			case a.Space == "xmlns" && !declared[a.Key]:
				declared[a.Key] = true
				c.CreateAttr("xmlns:"+a.Key, a.Value)
			case a.Space == "" && a.Key == "xmlns" && !declared[""]:
				declared[""] = true
				c.CreateAttr("xmlns", a.Value)
			}
		}
	}
	return c
}

func sortedKeys(m map[string]*etree.Element) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// keyPath selects the business key of a feature: the text of the first
// element matching path or, if attr is set, the value of this attribute.
type keyPath struct {
	path etree.Path
	self bool
	attr string
}

func compileKeyPath(expr string) (*keyPath, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, errors.New("empty key path")
	}
	k := &keyPath{}
	step := expr[strings.LastIndex(expr, "/")+1:]
	if strings.HasPrefix(step, "@") {
		k.attr = step[1:]
		if k.attr == "" || strings.ContainsAny(k.attr, "[]=' ") {
			return nil, errors.Errorf("invalid key path %q: invalid attribute", expr)
		}
		expr = strings.TrimSuffix(expr[:len(expr)-len(step)], "/")
	}
	if expr == "" || expr == "." {
		if k.attr == "" {
			return nil, errors.Errorf("invalid key path %q", expr)
		}
		k.self = true
		return k, nil
	}
	p, err := etree.CompilePath(expr)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid key path %q", expr)
	}
	k.path = p
	return k, nil
}

// resolveKeyPath replaces the prefixes of expr with the prefixes of
// canonical. A prefix is looked up in each of scopes in turn. Prefixes of
// namespaces that are not used by the documents are kept.
func resolveKeyPath(expr string, canonical xmltree.Namespaces, scopes ...xmltree.Namespaces) (string, error) {
	prefixOf := map[string]string{}
	for prefix, uri := range canonical {
		prefixOf[uri] = prefix
	}
	var b strings.Builder
	var quote byte
	for i := 0; i < len(expr); {
		c := expr[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case isNameStart(c) && (i == 0 || !isNameChar(expr[i-1])):
			j := i + 1
			for j < len(expr) && isNameChar(expr[j]) {
				j++
			}
			if j+1 < len(expr) && expr[j] == ':' && (isNameStart(expr[j+1]) || expr[j+1] == '*') {
				prefix := expr[i:j]
				uri := ""
				if prefix == "xml" {
					uri = xmlNamespace
				}
				for _, scope := range scopes {
					if uri != "" {
						break
					}
					if u, ok := scope[prefix]; ok {
						uri = u
						break
					}
				}
				if uri == "" {
					return "", errors.Errorf("invalid key path %q: undeclared prefix %q", expr, prefix)
				}
				if p, ok := prefixOf[uri]; ok {
					prefix = p
				}
				b.WriteString(prefix)
				b.WriteByte(':')
				i = j + 1
				continue
			}
			b.WriteString(expr[i:j])
			i = j
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String(), nil
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isNameChar(c byte) bool {
	return isNameStart(c) || c == '-' || c == '.' || (c >= '0' && c <= '9')
}

func (k *keyPath) eval(feature *etree.Element) (string, bool) {
	e := feature
	if !k.self {
		e = feature.FindElementPath(k.path)
		if e == nil {
			return "", false
		}
	}
	var v string
	if k.attr != "" {
		a := e.SelectAttr(k.attr)
		if a == nil {
			return "", false
		}
		v = a.Value
	} else {
		v = e.Text()
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}
