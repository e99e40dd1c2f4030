package graphdiff

import (
	"math"

	"github.com/omniscale/aixmdiff/element"
)

// DefaultTolerance is the maximum difference in degrees for two coordinates
// to be considered equal.
const DefaultTolerance = 1e-9

// Comparator decides whether two ways describe the same feature. Way and
// node ids are ignored, as they are minted anew on every export.
type Comparator struct {
	Tolerance float64
	// IgnoreTags are excluded from the tag comparison.
	IgnoreTags map[string]struct{}
}

func NewComparator() *Comparator {
	return &Comparator{Tolerance: DefaultTolerance}
}

// Equal returns true if both ways have the same tags and the same sequence
// of coordinates. Refs that do not resolve in their node map make the ways
// unequal.
func (c *Comparator) Equal(a *element.Way, aNodes map[int64]*element.Node, b *element.Way, bNodes map[int64]*element.Node) bool {
	if !c.tagsEqual(a.Tags, b.Tags) {
		return false
	}
	if len(a.Refs) != len(b.Refs) {
		return false
	}
	for i := range a.Refs {
		na, ok := aNodes[a.Refs[i]]
		if !ok {
			return false
		}
		nb, ok := bNodes[b.Refs[i]]
		if !ok {
			return false
		}
		if !c.coordEqual(na.Lat, nb.Lat) || !c.coordEqual(na.Long, nb.Long) {
			return false
		}
	}
	return true
}

func (c *Comparator) coordEqual(a, b float64) bool {
	return math.Abs(a-b) <= c.Tolerance
}

func (c *Comparator) tagsEqual(a, b element.Tags) bool {
	n := 0
	for k, va := range a {
		if _, ok := c.IgnoreTags[k]; ok {
			continue
		}
		vb, ok := b[k]
		if !ok || va != vb {
			return false
		}
		n++
	}
	for k := range b {
		if _, ok := c.IgnoreTags[k]; ok {
			continue
		}
		n--
	}
	return n == 0
}
