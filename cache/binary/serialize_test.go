package binary

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	osm "github.com/omniscale/go-osm"

	"github.com/omniscale/aixmdiff/element"
)

func TestMarshalNode(t *testing.T) {
	node := &element.Node{Action: element.Modify}
	node.ID = -12345
	node.Lat = 47.43869
	node.Long = 19.25235
	node.Tags = element.Tags{"name": "ARP", "aeroway": "aerodrome", "source": "AIP"}
	node.Metadata = &osm.Metadata{
		Version:   3,
		Timestamp: time.Date(2019, 5, 2, 12, 0, 0, 0, time.UTC),
		UserID:    42,
		UserName:  "ais",
		Changeset: 99,
	}

	data, err := MarshalNode(node)
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalNode(data)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(node, got); diff != "" {
		t.Errorf("node mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshalNodeWithoutTagsAndMetadata(t *testing.T) {
	node := &element.Node{}
	node.ID = 1
	node.Lat = -33.5
	node.Long = 151.25

	data, err := MarshalNode(node)
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalNode(data)
	if err != nil {
		t.Fatal(err)
	}
	if got.Tags != nil || got.Metadata != nil || got.Action != element.None {
		t.Errorf("unexpected node %#v", got)
	}
	if got.Lat != -33.5 || got.Long != 151.25 {
		t.Errorf("coordinates do not match %#v", got)
	}
}

func TestMarshalWay(t *testing.T) {
	way := &element.Way{Action: element.Create}
	way.ID = 12345
	way.Tags = element.Tags{"icao": "LHBP", "aeroway": "runway"}
	way.Refs = []int64{-1, -2, 3, 1000, -1}

	data, err := MarshalWay(way)
	if err != nil {
		t.Fatal(err)
	}
	if way.Refs[1] != -2 || way.Refs[3] != 1000 {
		t.Fatal("marshal modified refs", way.Refs)
	}
	got, err := UnmarshalWay(data)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(way, got); diff != "" {
		t.Errorf("way mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshalRelation(t *testing.T) {
	rel := &element.Relation{Action: element.Delete}
	rel.ID = 7
	rel.Tags = element.Tags{"type": "multipolygon"}
	rel.Members = []osm.Member{
		{ID: -5, Type: osm.WayMember, Role: "outer"},
		{ID: 3, Type: osm.NodeMember, Role: "label"},
	}

	data, err := MarshalRelation(rel)
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalRelation(data)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(rel, got); diff != "" {
		t.Errorf("relation mismatch (-want +got):\n%s", diff)
	}
}

func TestMarshalRevision(t *testing.T) {
	rev := &Revision{Name: "2019-05", Source: "lhbp.osm", Created: 1556798400, Nodes: 3, Ways: 1}
	data, err := MarshalRevision(rev)
	if err != nil {
		t.Fatal(err)
	}
	got, err := UnmarshalRevision(data)
	if err != nil {
		t.Fatal(err)
	}
	if *got != *rev {
		t.Errorf("expected %v, got %v", rev, got)
	}
}

func TestDeltaPack(t *testing.T) {
	refs := []int64{10, 12, 11, -3, 10}
	packed := deltaPack(refs)
	if diff := cmp.Diff([]int64{10, 2, -1, -14, 13}, packed); diff != "" {
		t.Error(diff)
	}
	deltaUnpack(packed)
	if diff := cmp.Diff(refs, packed); diff != "" {
		t.Error(diff)
	}
}

func BenchmarkMarshalWay(b *testing.B) {
	b.ReportAllocs()
	way := &element.Way{}
	way.ID = 12345
	way.Tags = element.Tags{"icao": "LHBP", "aeroway": "runway"}
	way.Refs = []int64{1, 2, 3, 4, 1}

	for i := 0; i < b.N; i++ {
		if _, err := MarshalWay(way); err != nil {
			b.Fatal(err)
		}
	}
}
