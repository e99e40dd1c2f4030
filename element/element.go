package element

import (
	"fmt"
	"sort"

	osm "github.com/omniscale/go-osm"
)

type Tags = osm.Tags

// Action marks the edit an element carries in a changeset. Elements read from
// a plain export have no action.
type Action int

const (
	None Action = iota
	Create
	Modify
	Delete
)

var actionNames = map[Action]string{
	None:   "",
	Create: "create",
	Modify: "modify",
	Delete: "delete",
}

// ActionValues maps the action attribute of the graph text form to Actions.
var ActionValues = map[string]Action{
	"":       None,
	"create": Create,
	"modify": Modify,
	"delete": Delete,
}

func (a Action) String() string {
	return actionNames[a]
}

type Node struct {
	osm.Node
	Action Action
}

type Way struct {
	osm.Way
	Action Action
}

// IsClosed returns whether the first and last references are the same node.
func (w *Way) IsClosed() bool {
	return len(w.Refs) >= 4 && w.Refs[0] == w.Refs[len(w.Refs)-1]
}

type Relation struct {
	osm.Relation
	Action Action
}

var MemberTypeValues = map[string]osm.MemberType{
	"node":     osm.NodeMember,
	"way":      osm.WayMember,
	"relation": osm.RelationMember,
}

var MemberTypeNames = map[osm.MemberType]string{
	osm.NodeMember:     "node",
	osm.WayMember:      "way",
	osm.RelationMember: "relation",
}

// Graph is a complete set of nodes, ways and relations. All references
// of a graph read from a file resolve within the same graph.
type Graph struct {
	Nodes     map[int64]*Node
	Ways      map[int64]*Way
	Relations map[int64]*Relation
}

func NewGraph() *Graph {
	return &Graph{
		Nodes:     make(map[int64]*Node),
		Ways:      make(map[int64]*Way),
		Relations: make(map[int64]*Relation),
	}
}

func (g *Graph) AddNode(n *Node) {
	g.Nodes[n.ID] = n
}

func (g *Graph) AddWay(w *Way) {
	g.Ways[w.ID] = w
}

func (g *Graph) AddRelation(r *Relation) {
	g.Relations[r.ID] = r
}

// Len returns the total number of elements.
func (g *Graph) Len() int {
	return len(g.Nodes) + len(g.Ways) + len(g.Relations)
}

func (g *Graph) String() string {
	return fmt.Sprintf("Graph{nodes: %d, ways: %d, relations: %d}",
		len(g.Nodes), len(g.Ways), len(g.Relations))
}

// WayNodes returns the nodes referenced by way in reference order,
// including the repeated node of closed rings.
func (g *Graph) WayNodes(way *Way) ([]*Node, error) {
	nodes := make([]*Node, 0, len(way.Refs))
	for _, ref := range way.Refs {
		n, ok := g.Nodes[ref]
		if !ok {
			return nil, &EntityError{Kind: ReferenceError, Type: "way", ID: way.ID,
				Err: fmt.Errorf("missing node %d", ref)}
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

// CheckRelation verifies that all node and way members of rel are present.
func (g *Graph) CheckRelation(rel *Relation) error {
	for _, m := range rel.Members {
		found := true
		switch m.Type {
		case osm.NodeMember:
			_, found = g.Nodes[m.ID]
		case osm.WayMember:
			_, found = g.Ways[m.ID]
		}
		if !found {
			return &EntityError{Kind: ReferenceError, Type: "relation", ID: rel.ID,
				Err: fmt.Errorf("missing %s member %d", MemberTypeNames[m.Type], m.ID)}
		}
	}
	return nil
}

// RemoveInvalid removes ways and relations with references to elements
// that are not part of g and returns an EntityError for each. Relations are
// checked after ways, so that relations referencing a removed way are
// removed as well.
func (g *Graph) RemoveInvalid() []error {
	var errs []error
	for _, id := range g.WayIDs() {
		if _, err := g.WayNodes(g.Ways[id]); err != nil {
			errs = append(errs, err)
			delete(g.Ways, id)
		}
	}
	for _, id := range g.RelationIDs() {
		if err := g.CheckRelation(g.Relations[id]); err != nil {
			errs = append(errs, err)
			delete(g.Relations, id)
		}
	}
	return errs
}

// Merge adds all elements of other that are not already present in g.
func (g *Graph) Merge(other *Graph) {
	for id, n := range other.Nodes {
		if _, ok := g.Nodes[id]; !ok {
			g.Nodes[id] = n
		}
	}
	for id, w := range other.Ways {
		if _, ok := g.Ways[id]; !ok {
			g.Ways[id] = w
		}
	}
	for id, r := range other.Relations {
		if _, ok := g.Relations[id]; !ok {
			g.Relations[id] = r
		}
	}
}

func (g *Graph) NodeIDs() []int64 {
	ids := make([]int64, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

func (g *Graph) WayIDs() []int64 {
	ids := make([]int64, 0, len(g.Ways))
	for id := range g.Ways {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

func (g *Graph) RelationIDs() []int64 {
	ids := make([]int64, 0, len(g.Relations))
	for id := range g.Relations {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// sortIDs orders negative (pending) ids before positive ids, each
// by magnitude, the way editors list them.
func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool {
		a, b := ids[i], ids[j]
		if (a < 0) != (b < 0) {
			return a < 0
		}
		if a < 0 {
			return a > b
		}
		return a < b
	})
}

// CopyTags returns an independent copy of tags.
func CopyTags(tags Tags) Tags {
	if tags == nil {
		return nil
	}
	result := make(Tags, len(tags))
	for k, v := range tags {
		result[k] = v
	}
	return result
}

func CopyMetadata(m *osm.Metadata) *osm.Metadata {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

func (n *Node) Copy() *Node {
	c := *n
	c.Tags = CopyTags(n.Tags)
	c.Metadata = CopyMetadata(n.Metadata)
	return &c
}

func (w *Way) Copy() *Way {
	c := *w
	c.Tags = CopyTags(w.Tags)
	c.Metadata = CopyMetadata(w.Metadata)
	c.Refs = append([]int64(nil), w.Refs...)
	c.Nodes = nil
	return &c
}

func (r *Relation) Copy() *Relation {
	c := *r
	c.Tags = CopyTags(r.Tags)
	c.Metadata = CopyMetadata(r.Metadata)
	c.Members = make([]osm.Member, len(r.Members))
	for i, m := range r.Members {
		c.Members[i] = osm.Member{ID: m.ID, Type: m.Type, Role: m.Role}
	}
	return &c
}
