package report

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/beevik/etree"
	osm "github.com/omniscale/go-osm"
	"github.com/pkg/errors"

	"github.com/omniscale/aixmdiff/docdiff"
	"github.com/omniscale/aixmdiff/element"
	"github.com/omniscale/aixmdiff/graphdiff"
	"github.com/omniscale/aixmdiff/xmltree"
)

func runway(g *element.Graph, id int64, designator string, lat float64) {
	g.AddNode(&element.Node{Node: osm.Node{Element: osm.Element{ID: id * 10}, Lat: lat, Long: 19}})
	g.AddNode(&element.Node{Node: osm.Node{Element: osm.Element{ID: id*10 + 1}, Lat: lat, Long: 20}})
	g.AddWay(&element.Way{Way: osm.Way{
		Element: osm.Element{ID: id, Tags: element.Tags{"designator": designator}},
		Refs:    []int64{id * 10, id*10 + 1},
	}})
}

func TestGraphs(t *testing.T) {
	base := element.NewGraph()
	runway(base, 1, "13L", 47)
	runway(base, 2, "31R", 47.1)
	cand := element.NewGraph()
	runway(cand, 5, "13L", 47)
	runway(cand, 6, "04", 47.2)

	r := graphdiff.Compare(base, cand, "designator")
	rep := Graphs(Source{Base: "a.osm", Candidate: "b.osm", Key: "designator"}, r,
		[]error{errors.New("missing node 7")})

	for name, count := range map[string]int{"added": 1, "changed": 0, "deleted": 1, "unchanged": 1} {
		if c := rep.Count(name); c != count {
			t.Errorf("unexpected count for %s: %d != %d", name, c, count)
		}
	}
	if rep.Errors() != 1 {
		t.Errorf("expected one error, got %d", rep.Errors())
	}

	// counts survive a round trip through JSON
	parsed, err := Parse(rep.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if parsed.Count("added") != 1 || parsed.Errors() != 1 {
		t.Errorf("unexpected parsed report %s", parsed)
	}
	if !strings.Contains(rep.String(), `"04"`) {
		t.Errorf("added key missing in %s", rep)
	}
}

const docTmpl = `<msg:Message xmlns:msg="urn:msg" xmlns:aixm="urn:aixm" xmlns:gml="http://www.opengis.net/gml/3.2">
<msg:member><aixm:Runway gml:id="r1"><aixm:designator>13L</aixm:designator><aixm:length>%s</aixm:length></aixm:Runway></msg:member>
</msg:Message>`

func readDoc(t *testing.T, length string) *etree.Document {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(strings.Replace(docTmpl, "%s", length, 1)); err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestDocuments(t *testing.T) {
	r, err := docdiff.Compare(readDoc(t, "3010"), readDoc(t, "3200"), "*/aixm:designator", xmltree.Namespaces{"aixm": "urn:aixm"})
	if err != nil {
		t.Fatal(err)
	}
	rep := Documents(Source{Key: "*/aixm:designator"}, r, nil)
	if rep.Count("changed") != 1 {
		t.Errorf("expected one changed feature, got %s", rep)
	}
	if v, ok := rep.c.Search("changes", "13L", "verdict").Data().(string); !ok || v != "different" {
		t.Errorf("unexpected verdict %v", rep.c.Search("changes", "13L", "verdict").Data())
	}
	if rep.Errors() != 0 {
		t.Errorf("unexpected errors in %s", rep)
	}
}

func TestWriteFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "aixmdiff_report_test")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	r := graphdiff.Compare(element.NewGraph(), element.NewGraph(), "designator")
	rep := Graphs(Source{}, r, nil)
	fname := filepath.Join(dir, "report.json")
	if err := rep.WriteFile(fname); err != nil {
		t.Fatal(err)
	}
	data, err := ioutil.ReadFile(fname)
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := Parse(data)
	if err != nil {
		t.Fatal(err)
	}
	if parsed.Count("unchanged") != 0 || parsed.Errors() != 0 {
		t.Errorf("unexpected report %s", parsed)
	}
}
