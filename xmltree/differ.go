package xmltree

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// Verdict classifies the result of a comparison. Verdicts are ordered,
// higher verdicts dominate lower ones.
type Verdict int

const (
	Identical Verdict = iota
	// SimilarIgnorable differences only concern identifiers or cycles.
	SimilarIgnorable
	// Accepted differences are recoverable, like namespace prefixes or the
	// order of child elements.
	Accepted
	HardDifferent
)

func (v Verdict) String() string {
	switch v {
	case Identical:
		return "identical"
	case SimilarIgnorable:
		return "similar"
	case Accepted:
		return "accepted"
	case HardDifferent:
		return "different"
	}
	return fmt.Sprintf("verdict(%d)", int(v))
}

// Reduce combines the verdict of a comparison with an additional finding.
// The stronger of both wins.
func Reduce(prior, finding Verdict) Verdict {
	if finding > prior {
		return finding
	}
	return prior
}

// Kind is the kind of a single difference.
type Kind int

const (
	ElementNameDiff Kind = iota
	PrefixDiff
	AttrMissingDiff
	AttrValueDiff
	TextDiff
	ChildMissingDiff
	ChildOrderDiff
)

var kindNames = map[Kind]string{
	ElementNameDiff:  "element name",
	PrefixDiff:       "namespace prefix",
	AttrMissingDiff:  "attribute missing",
	AttrValueDiff:    "attribute value",
	TextDiff:         "text value",
	ChildMissingDiff: "child element missing",
	ChildOrderDiff:   "child element order",
}

func (k Kind) String() string {
	return kindNames[k]
}

// Difference is a single difference found during a comparison.
type Difference struct {
	Kind        Kind
	ControlPath string
	TestPath    string
	Control     string
	Test        string
	Verdict     Verdict
	// Nested contains the differences of resolved cross-references.
	Nested []Difference
}

func (d Difference) String() string {
	return fmt.Sprintf("%s (%s): expected %q at %s, got %q at %s",
		d.Kind, d.Verdict, d.Control, d.ControlPath, d.Test, d.TestPath)
}

// refChain is the list of reference pairs that are currently resolved.
type refChain struct {
	control, test *etree.Element
	parent        *refChain
}

func (c *refChain) contains(control, test *etree.Element) bool {
	for ; c != nil; c = c.parent {
		if c.control == control && c.test == test {
			return true
		}
	}
	return false
}

// Differ compares a control element with a test element. The comparison
// is performed once on the first call of any of the result methods.
type Differ struct {
	control *etree.Element
	test    *etree.Element
	conf    *Config

	controlIdx *Index
	testIdx    *Index
	depth      int
	chain      *refChain

	done        bool
	verdict     Verdict
	differences []Difference
}

// NewDiffer returns a Differ for the given elements. Cross-references are
// resolved in the documents of control and test.
func NewDiffer(control, test *etree.Element, conf *Config) *Differ {
	return &Differ{control: control, test: test, conf: conf}
}

// NewIndexedDiffer returns a Differ that resolves cross-references with
// prebuilt indexes. Use it when many elements of the same documents are
// compared.
func NewIndexedDiffer(control, test *etree.Element, conf *Config, controlIdx, testIdx *Index) *Differ {
	return &Differ{control: control, test: test, conf: conf, controlIdx: controlIdx, testIdx: testIdx}
}

// Identical returns true if both elements have no differences.
func (d *Differ) Identical() bool {
	return d.Verdict() == Identical
}

// Similar returns true if all differences are ignorable or recoverable.
func (d *Differ) Similar() bool {
	return d.Verdict() < HardDifferent
}

// Verdict returns the combined verdict of all differences.
func (d *Differ) Verdict() Verdict {
	d.compute()
	return d.verdict
}

// Differences returns all differences that were found. The comparison
// stops at the first hard difference, so not all differences are listed
// for different elements.
func (d *Differ) Differences() []Difference {
	d.compute()
	return d.differences
}

// Explain returns a human readable description of all differences.
func (d *Differ) Explain() string {
	b := &strings.Builder{}
	explain(b, d.Differences(), "")
	return b.String()
}

func explain(b *strings.Builder, diffs []Difference, indent string) {
	for _, d := range diffs {
		b.WriteString(indent)
		b.WriteString(d.String())
		b.WriteString("\n")
		explain(b, d.Nested, indent+"  ")
	}
}

func (d *Differ) compute() {
	if d.done {
		return
	}
	d.done = true
	d.compareElements(d.control, d.test)
}

func (d *Differ) halted() bool {
	return d.verdict == HardDifferent
}

func (d *Differ) add(diff Difference) {
	d.differences = append(d.differences, diff)
	d.verdict = Reduce(d.verdict, diff.Verdict)
}

func (d *Differ) compareElements(c, t *etree.Element) {
	cName, tName := ElementName(c), ElementName(t)
	if cName != tName {
		d.add(Difference{
			Kind:        ElementNameDiff,
			ControlPath: Path(c), TestPath: Path(t),
			Control: cName.String(), Test: tName.String(),
			Verdict: HardDifferent,
		})
		return
	}
	if c.Space != t.Space {
		d.add(Difference{
			Kind:        PrefixDiff,
			ControlPath: Path(c), TestPath: Path(t),
			Control: c.Space, Test: t.Space,
			Verdict: Accepted,
		})
	}

	d.compareAttrs(c, t)
	if d.halted() {
		return
	}

	if ct, tt := text(c), text(t); ct != tt {
		v := HardDifferent
		if d.conf.isIDName(cName) {
			v = SimilarIgnorable
		}
		d.add(Difference{
			Kind:        TextDiff,
			ControlPath: Path(c), TestPath: Path(t),
			Control: ct, Test: tt,
			Verdict: v,
		})
		if d.halted() {
			return
		}
	}

	d.compareChildren(c, t)
}

type attrEntry struct {
	attr *etree.Attr
	name Name
}

func attrMap(e *etree.Element) (map[Name]attrEntry, []Name) {
	m := map[Name]attrEntry{}
	var order []Name
	for i := range e.Attr {
		a := &e.Attr[i]
		if isNamespaceDecl(a) {
			continue
		}
		n := AttrName(e, a)
		m[n] = attrEntry{attr: a, name: n}
		order = append(order, n)
	}
	return m, order
}

func (d *Differ) compareAttrs(c, t *etree.Element) {
	cAttrs, cOrder := attrMap(c)
	tAttrs, tOrder := attrMap(t)

	for _, n := range cOrder {
		ca := cAttrs[n]
		ta, ok := tAttrs[n]
		if !ok {
			d.add(Difference{
				Kind:        AttrMissingDiff,
				ControlPath: Path(c) + "/@" + fullKey(ca.attr), TestPath: Path(t),
				Control: ca.attr.Value,
				Verdict: HardDifferent,
			})
			return
		}
		if ca.attr.Value == ta.attr.Value {
			continue
		}
		diff := Difference{
			Kind:        AttrValueDiff,
			ControlPath: Path(c) + "/@" + fullKey(ca.attr),
			TestPath:    Path(t) + "/@" + fullKey(ta.attr),
			Control:     ca.attr.Value, Test: ta.attr.Value,
			Verdict: HardDifferent,
		}
		switch {
		case d.conf.isIDName(n):
			diff.Verdict = SimilarIgnorable
		case d.conf.isHref(n):
			diff.Verdict, diff.Nested = d.compareRefs(ca.attr.Value, ta.attr.Value)
		}
		d.add(diff)
		if d.halted() {
			return
		}
	}
	for _, n := range tOrder {
		if _, ok := cAttrs[n]; !ok {
			ta := tAttrs[n]
			d.add(Difference{
				Kind:        AttrMissingDiff,
				ControlPath: Path(c), TestPath: Path(t) + "/@" + fullKey(ta.attr),
				Test:    ta.attr.Value,
				Verdict: HardDifferent,
			})
			return
		}
	}
}

// compareRefs resolves both references and compares the referenced
// elements with a new Differ. Pairs that are already being compared count
// as similar.
func (d *Differ) compareRefs(cRef, tRef string) (Verdict, []Difference) {
	if d.controlIdx == nil {
		d.controlIdx = NewIndex(rootOf(d.control), d.conf)
	}
	if d.testIdx == nil {
		d.testIdx = NewIndex(rootOf(d.test), d.conf)
	}
	cTarget := d.controlIdx.Resolve(cRef)
	tTarget := d.testIdx.Resolve(tRef)
	if cTarget == nil || tTarget == nil {
		return HardDifferent, nil
	}
	if cTarget == d.control && tTarget == d.test || d.chain.contains(cTarget, tTarget) {
		return SimilarIgnorable, nil
	}
	if d.depth >= d.conf.maxDepth() {
		return HardDifferent, nil
	}

	sub := &Differ{
		control:    cTarget,
		test:       tTarget,
		conf:       d.conf,
		controlIdx: d.controlIdx,
		testIdx:    d.testIdx,
		depth:      d.depth + 1,
		chain:      &refChain{control: d.control, test: d.test, parent: d.chain},
	}
	return sub.Verdict(), sub.Differences()
}

// compareChildren matches child elements by name and position among the
// siblings with the same name. Matched children at different positions
// are recoverable differences.
func (d *Differ) compareChildren(c, t *etree.Element) {
	cChildren := c.ChildElements()
	tChildren := t.ChildElements()

	type pos struct {
		elem  *etree.Element
		index int
	}
	tGroups := map[Name][]pos{}
	for i, e := range tChildren {
		n := ElementName(e)
		tGroups[n] = append(tGroups[n], pos{e, i})
	}

	cCount := map[Name]int{}
	for i, ce := range cChildren {
		n := ElementName(ce)
		k := cCount[n]
		cCount[n]++
		if k >= len(tGroups[n]) {
			d.add(Difference{
				Kind:        ChildMissingDiff,
				ControlPath: Path(ce), TestPath: Path(t),
				Control: n.String(),
				Verdict: HardDifferent,
			})
			return
		}
		te := tGroups[n][k]
		if te.index != i {
			d.add(Difference{
				Kind:        ChildOrderDiff,
				ControlPath: Path(ce), TestPath: Path(te.elem),
				Control: fmt.Sprint(i + 1), Test: fmt.Sprint(te.index + 1),
				Verdict: Accepted,
			})
		}
		d.compareElements(ce, te.elem)
		if d.halted() {
			return
		}
	}

	// report the first unmatched test child in document order
	tCount := map[Name]int{}
	for _, te := range tChildren {
		n := ElementName(te)
		tCount[n]++
		if tCount[n] > cCount[n] {
			d.add(Difference{
				Kind:        ChildMissingDiff,
				ControlPath: Path(c), TestPath: Path(te),
				Test:    n.String(),
				Verdict: HardDifferent,
			})
			return
		}
	}
}
