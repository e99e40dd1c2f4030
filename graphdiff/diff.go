// Package graphdiff classifies the keyed ways of two entity graphs into
// added, deleted, changed and unchanged ways.
//
// Ways are matched by the value of a business key tag, as the element ids of
// two independent exports of the same data are unrelated. The output graphs
// follow the id convention of editing clients: pending elements carry
// negative ids, persisted elements positive ids.
package graphdiff

import (
	"fmt"
	"sort"

	"github.com/omniscale/aixmdiff/element"
	"github.com/omniscale/aixmdiff/log"
)

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

// PartitionValues maps partition names to Partitions.
var PartitionValues = map[string]Partition{
	"unchanged": Unchanged,
	"changed":   Changed,
	"added":     Added,
	"deleted":   Deleted,
}

func (p Partition) String() string {
	return partitionNames[p]
}

// Skipped counts ways that were excluded from the diff because they have no
// business key.
type Skipped struct {
	Base      int
	Candidate int
}

type Result struct {
	Added     *element.Graph
	Deleted   *element.Graph
	Changed   *element.Graph
	Unchanged *element.Graph

	// Keys maps each classified business key to its partition.
	Keys    map[string]Partition
	Skipped Skipped
	// Errors contains one *element.EntityError for each way that was
	// excluded because of invalid references or a duplicate key.
	Errors []error
}

// Graph returns the output graph of partition p.
func (r *Result) Graph(p Partition) *element.Graph {
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
	KeyTag     string
	Comparator *Comparator
}

func New(keyTag string) *Differ {
	return &Differ{KeyTag: keyTag, Comparator: NewComparator()}
}

// Compare classifies the ways of base and candidate by KeyTag.
func Compare(base, candidate *element.Graph, keyTag string) *Result {
	return New(keyTag).Compare(base, candidate)
}

type keyedWay struct {
	way   *element.Way
	nodes []*element.Node
}

func (d *Differ) Compare(base, candidate *element.Graph) *Result {
	r := &Result{
		Added:     element.NewGraph(),
		Deleted:   element.NewGraph(),
		Changed:   element.NewGraph(),
		Unchanged: element.NewGraph(),
		Keys:      make(map[string]Partition),
	}

	baseWays, skipped := d.index(base, r)
	r.Skipped.Base = skipped
	candWays, skipped := d.index(candidate, r)
	r.Skipped.Candidate = skipped

	for _, key := range sortedKeys(baseWays) {
		b := baseWays[key]
		c, ok := candWays[key]
		switch {
		case !ok:
			markDeleted(b, r.Deleted)
			r.Keys[key] = Deleted
		case d.Comparator.Equal(b.way, base.Nodes, c.way, candidate.Nodes):
			copyWay(b, r.Unchanged)
			r.Keys[key] = Unchanged
		default:
			markChanged(b, c, r.Changed)
			r.Keys[key] = Changed
		}
	}

	for _, key := range sortedKeys(candWays) {
		if _, ok := baseWays[key]; ok {
			continue
		}
		markAdded(candWays[key], r.Added)
		r.Keys[key] = Added
	}

	if r.Skipped.Base > 0 || r.Skipped.Candidate > 0 {
		log.Printf("[warn] ways without %s tag: %s in base, %s in candidate",
			d.KeyTag, log.Count(r.Skipped.Base), log.Count(r.Skipped.Candidate))
	}
	log.Printf("[info] %s ways added, %s changed, %s deleted, %s unchanged",
		log.Count(len(r.KeysOf(Added))), log.Count(len(r.KeysOf(Changed))),
		log.Count(len(r.KeysOf(Deleted))), log.Count(len(r.KeysOf(Unchanged))),
	)
	return r
}

// index returns all ways of g by their key. Ways without key are only
// counted, ways with missing nodes or duplicate keys are recorded as errors.
func (d *Differ) index(g *element.Graph, r *Result) (map[string]keyedWay, int) {
	ways := make(map[string]keyedWay)
	skipped := 0
	for _, id := range g.WayIDs() {
		w := g.Ways[id]
		key := w.Tags[d.KeyTag]
		if key == "" {
			log.Printf("[debug] skipping way %d without %s", w.ID, d.KeyTag)
			skipped++
			continue
		}
		nodes, err := g.WayNodes(w)
		if err != nil {
			r.Errors = append(r.Errors, err)
			continue
		}
		if other, ok := ways[key]; ok {
			r.Errors = append(r.Errors, &element.EntityError{
				Kind: element.KeyError, Type: "way", ID: w.ID,
				Err: fmt.Errorf("duplicate %s=%s, already used by way %d", d.KeyTag, key, other.way.ID),
			})
			continue
		}
		ways[key] = keyedWay{way: w, nodes: nodes}
	}
	return ways, skipped
}

func sortedKeys(ways map[string]keyedWay) []string {
	keys := make([]string, 0, len(ways))
	for k := range ways {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyWay(kw keyedWay, target *element.Graph) {
	target.AddWay(kw.way.Copy())
	for _, n := range kw.nodes {
		if _, ok := target.Nodes[n.ID]; !ok {
			target.AddNode(n.Copy())
		}
	}
}

func markDeleted(b keyedWay, target *element.Graph) {
	w := b.way.Copy()
	w.ID = element.PersistedID(w.ID).Value()
	w.Action = element.Delete
	markNodes(w, b.nodes, target, element.Delete, element.Persisted)
	target.AddWay(w)
}

func markAdded(c keyedWay, target *element.Graph) {
	w := c.way.Copy()
	w.ID = element.PendingID(w.ID).Value()
	w.Action = element.Create
	markNodes(w, c.nodes, target, element.Create, element.Pending)
	target.AddWay(w)
}

// markChanged adds the candidate shape and tags under the id and version
// of the base way. The base nodes are deleted and the candidate nodes are
// added as pending nodes, so both can live in the same graph.
func markChanged(b, c keyedWay, target *element.Graph) {
	w := c.way.Copy()
	w.ID = element.PersistedID(b.way.ID).Value()
	w.Metadata = element.CopyMetadata(b.way.Metadata)
	w.Action = element.Modify
	markNodes(w, c.nodes, target, element.Modify, element.Pending)
	target.AddWay(w)
	addNodes(b.nodes, target, element.Delete, element.Persisted)
}

// markNodes renumbers all refs of way to state and adds copies of the
// referenced nodes with action to target. way is modified in place. The
// closing ref of a ring is renumbered like any other ref.
func markNodes(way *element.Way, nodes []*element.Node, target *element.Graph, action element.Action, state element.IDState) {
	mapping := renumber(way.Refs, state)
	for i, ref := range way.Refs {
		way.Refs[i] = mapping[ref]
	}
	addNodes(nodes, target, action, state)
}

func addNodes(nodes []*element.Node, target *element.Graph, action element.Action, state element.IDState) {
	for _, n := range nodes {
		id := element.ParseID(n.ID).As(state).Value()
		if _, ok := target.Nodes[id]; ok {
			continue
		}
		c := n.Copy()
		c.ID = id
		c.Action = action
		target.AddNode(c)
	}
}

// renumber returns the mapping from the given wire ids to ids in state.
func renumber(ids []int64, state element.IDState) map[int64]int64 {
	mapping := make(map[int64]int64, len(ids))
	for _, id := range ids {
		mapping[id] = element.ParseID(id).As(state).Value()
	}
	return mapping
}
