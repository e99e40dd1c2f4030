package reader

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	osm "github.com/omniscale/go-osm"
	"github.com/pkg/errors"

	"github.com/omniscale/aixmdiff/cache"
	"github.com/omniscale/aixmdiff/element"
)

func TestDetectFormat(t *testing.T) {
	for _, tt := range []struct {
		source string
		format Format
		err    bool
	}{
		{"base.osm", OSM, false},
		{"base.osm.gz", OSM, false},
		{"/tmp/changes.osc", OsmChange, false},
		{"changes.osc.gz", OsmChange, false},
		{"europe.pbf", PBF, false},
		{"cache:2019-05", Cache, false},
		{"base.xml", 0, true},
		{"", 0, true},
	} {
		t.Run(tt.source, func(t *testing.T) {
			f, err := DetectFormat(tt.source)
			if tt.err {
				if err == nil {
					t.Errorf("expected error for %q, got format %s", tt.source, f)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if f != tt.format {
				t.Errorf("unexpected format %s, expected %s", f, tt.format)
			}
		})
	}
}

const changeDoc = `<?xml version="1.0" encoding="UTF-8"?>
<osmChange version="0.6">
<create>
  <node id="-1" lat="47.43" lon="19.26" version="1"/>
  <node id="-2" lat="47.44" lon="19.27" version="1"/>
  <way id="-10" version="1">
    <nd ref="-1"/>
    <nd ref="-2"/>
    <tag k="aeroway" v="runway"/>
    <tag k="designator" v="13L"/>
  </way>
</create>
<modify>
  <node id="5" lat="47.45" lon="19.28" version="3"/>
  <way id="20" version="2">
    <nd ref="5"/>
    <nd ref="6"/>
    <tag k="designator" v="31R"/>
  </way>
</modify>
<delete>
  <node id="7" lat="0" lon="0" version="4"/>
</delete>
</osmChange>
`

func TestReadChange(t *testing.T) {
	g, errs, err := ReadChange(context.Background(), strings.NewReader(changeDoc), false, Options{})
	if err != nil {
		t.Fatal(err)
	}

	if len(g.Nodes) != 3 {
		t.Errorf("expected 3 nodes, got %d", len(g.Nodes))
	}
	if _, ok := g.Nodes[7]; ok {
		t.Error("deleted node 7 was loaded")
	}
	if n := g.Nodes[-1]; n == nil || n.Action != element.Create {
		t.Errorf("expected created node -1, got %#v", n)
	}
	if n := g.Nodes[5]; n == nil || n.Action != element.Modify || n.Lat != 47.45 {
		t.Errorf("expected modified node 5, got %#v", n)
	}

	w := g.Ways[-10]
	if w == nil {
		t.Fatal("missing way -10")
	}
	if w.Action != element.Create || w.Tags["designator"] != "13L" || len(w.Refs) != 2 {
		t.Errorf("unexpected way -10 %#v", w)
	}

	// way 20 references node 6 which is not part of the change
	if _, ok := g.Ways[20]; ok {
		t.Error("way 20 with missing node was not removed")
	}
	if len(errs) != 1 {
		t.Fatalf("expected one entity error, got %v", errs)
	}
	if e, ok := errs[0].(*element.EntityError); !ok || e.ID != 20 || e.Kind != element.ReferenceError {
		t.Errorf("unexpected error %#v", errs[0])
	}
}

func TestReadChangeInvalid(t *testing.T) {
	_, _, err := ReadChange(context.Background(), strings.NewReader("<osmChange><create><node"), false, Options{})
	if err == nil {
		t.Error("expected error for truncated document")
	}
}

func TestReadCache(t *testing.T) {
	dir, err := ioutil.TempDir("", "aixmdiff_reader_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	cacheDir := filepath.Join(dir, "cache")

	g := element.NewGraph()
	g.AddNode(&element.Node{Node: osm.Node{Element: osm.Element{ID: 1}, Lat: 47, Long: 19}})
	g.AddNode(&element.Node{Node: osm.Node{Element: osm.Element{ID: 2}, Lat: 48, Long: 20}})
	g.AddWay(&element.Way{Way: osm.Way{
		Element: osm.Element{ID: 3, Tags: element.Tags{"designator": "04"}},
		Refs:    []int64{1, 2},
	}})

	store, err := cache.Open(cacheDir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Put("2019-05", "base.osm", g); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}

	loaded, errs, err := Read(CachePrefix+"2019-05", Options{CacheDir: cacheDir})
	if err != nil {
		t.Fatal(err)
	}
	if len(errs) != 0 {
		t.Errorf("unexpected errors %v", errs)
	}
	if len(loaded.Nodes) != 2 || len(loaded.Ways) != 1 {
		t.Errorf("unexpected graph %s", loaded)
	}
	if loaded.Ways[3].Tags["designator"] != "04" {
		t.Errorf("unexpected way %#v", loaded.Ways[3])
	}

	if _, _, err := Read(CachePrefix+"2019-06", Options{CacheDir: cacheDir}); errors.Cause(err) != cache.NotFound {
		t.Errorf("expected NotFound, got %v", err)
	}
	if _, _, err := Read(CachePrefix+"2019-05", Options{}); err == nil {
		t.Error("expected error without cache dir")
	}
}
