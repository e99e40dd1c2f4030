package changeset

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/beevik/etree"
	osm "github.com/omniscale/go-osm"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniscale/aixmdiff/cache"
	"github.com/omniscale/aixmdiff/docdiff"
	"github.com/omniscale/aixmdiff/element"
	"github.com/omniscale/aixmdiff/graphdiff"
	"github.com/omniscale/aixmdiff/osmxml"
	"github.com/omniscale/aixmdiff/reader"
	"github.com/omniscale/aixmdiff/xmltree"
)

func tempDir(t *testing.T) (string, func()) {
	dir, err := ioutil.TempDir("", "aixmdiff_changeset_test")
	require.NoError(t, err)
	return dir, func() { os.RemoveAll(dir) }
}

func addRunway(g *element.Graph, id int64, designator string, lat float64) {
	g.AddNode(&element.Node{Node: osm.Node{Element: osm.Element{ID: id * 10}, Lat: lat, Long: 19.25}})
	g.AddNode(&element.Node{Node: osm.Node{Element: osm.Element{ID: id*10 + 1}, Lat: lat + 0.02, Long: 19.27}})
	g.AddWay(&element.Way{Way: osm.Way{
		Element: osm.Element{ID: id, Tags: element.Tags{"aeroway": "runway", "designator": designator}},
		Refs:    []int64{id * 10, id*10 + 1},
	}})
}

// writeGraphs writes a base graph with 13L, 31R and 04 and a candidate with
// a moved 31R, an unchanged 13L and a new 22.
func writeGraphs(t *testing.T, dir string) (string, string) {
	base := element.NewGraph()
	addRunway(base, 1, "13L", 47.42)
	addRunway(base, 2, "31R", 47.43)
	addRunway(base, 3, "04", 47.44)
	// way without key
	base.AddWay(&element.Way{Way: osm.Way{
		Element: osm.Element{ID: 4, Tags: element.Tags{"aeroway": "taxiway"}},
		Refs:    []int64{10, 11},
	}})

	cand := element.NewGraph()
	addRunway(cand, 7, "13L", 47.42)
	addRunway(cand, 8, "31R", 47.53)
	addRunway(cand, 9, "22", 47.45)

	baseFile := filepath.Join(dir, "base.osm")
	candFile := filepath.Join(dir, "candidate.osm")
	require.NoError(t, osmxml.WriteFile(baseFile, base))
	require.NoError(t, osmxml.WriteFile(candFile, cand))
	return baseFile, candFile
}

func TestDiffGraphsMerged(t *testing.T) {
	dir, cleanup := tempDir(t)
	defer cleanup()
	baseFile, candFile := writeGraphs(t, dir)

	out := filepath.Join(dir, "changes.osm")
	s, err := DiffGraphs(GraphOptions{
		Base:      baseFile,
		Candidate: candFile,
		KeyTag:    "designator",
		Output:    out,
		Report:    filepath.Join(dir, "report.json"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{out, filepath.Join(dir, "report.json")}, s.Files)
	assert.Equal(t, []string{"22"}, s.Result.KeysOf(graphdiff.Added))
	assert.Equal(t, []string{"31R"}, s.Result.KeysOf(graphdiff.Changed))
	assert.Equal(t, []string{"04"}, s.Result.KeysOf(graphdiff.Deleted))
	assert.Equal(t, []string{"13L"}, s.Result.KeysOf(graphdiff.Unchanged))
	assert.Equal(t, 1, s.Result.Skipped.Base)
	assert.Empty(t, s.Errors)
	assert.Equal(t, 1, s.Report.Count("added"))

	g, errs, err := osmxml.ReadFile(out)
	require.NoError(t, err)
	assert.Empty(t, errs)

	// added, changed and deleted, but not the unchanged 13L
	assert.Len(t, g.Ways, 3)
	assert.NotContains(t, g.Ways, int64(1))
	assert.Equal(t, element.Delete, g.Ways[3].Action)
	assert.Equal(t, element.Modify, g.Ways[2].Action)
	added := g.Ways[-9]
	require.NotNil(t, added)
	assert.Equal(t, element.Create, added.Action)
	for _, ref := range added.Refs {
		assert.True(t, ref < 0, "added way references persisted node %d", ref)
	}
}

func TestDiffGraphsSplit(t *testing.T) {
	dir, cleanup := tempDir(t)
	defer cleanup()
	baseFile, candFile := writeGraphs(t, dir)

	out := filepath.Join(dir, "changes.osm.gz")
	s, err := DiffGraphs(GraphOptions{
		Base:      baseFile,
		Candidate: candFile,
		KeyTag:    "designator",
		Select:    []graphdiff.Partition{graphdiff.Unchanged, graphdiff.Added},
		Output:    out,
		Split:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "changes-unchanged.osm.gz"),
		filepath.Join(dir, "changes-added.osm.gz"),
	}, s.Files)

	g, _, err := osmxml.ReadFile(s.Files[0])
	require.NoError(t, err)
	assert.Len(t, g.Ways, 1)
	assert.Equal(t, "13L", g.Ways[1].Tags["designator"])
}

func TestDiffGraphsErrors(t *testing.T) {
	dir, cleanup := tempDir(t)
	defer cleanup()
	baseFile, candFile := writeGraphs(t, dir)

	_, err := DiffGraphs(GraphOptions{Base: baseFile, Candidate: candFile, Output: "x.osm"})
	assert.Error(t, err, "missing key tag")

	_, err = DiffGraphs(GraphOptions{
		Base: filepath.Join(dir, "missing.osm"), Candidate: candFile,
		KeyTag: "designator", Output: filepath.Join(dir, "out.osm"),
	})
	assert.Error(t, err)
}

func TestParseSelect(t *testing.T) {
	sel, err := ParseSelect("added, deleted")
	require.NoError(t, err)
	assert.Equal(t, []graphdiff.Partition{graphdiff.Added, graphdiff.Deleted}, sel)

	sel, err = ParseSelect("")
	require.NoError(t, err)
	assert.Nil(t, sel)

	_, err = ParseSelect("added,moved")
	assert.Error(t, err)
}

func TestPartitionFilename(t *testing.T) {
	for fname, expected := range map[string]string{
		"out.osm":          "out-added.osm",
		"/tmp/out.osm.gz":  "/tmp/out-added.osm.gz",
		"out.xml":          "out-added.xml",
		"out":              "out-added",
		"dir.v1/changeset": "dir.v1/changeset-added",
	} {
		assert.Equal(t, expected, PartitionFilename(fname, "added"), fname)
	}
}

const messageDoc = `<?xml version="1.0" encoding="UTF-8"?>
<message:AIXMBasicMessage xmlns:message="http://www.aixm.aero/schema/5.1/message" xmlns:aixm="http://www.aixm.aero/schema/5.1" xmlns:gml="http://www.opengis.net/gml/3.2" gml:id="msg">
  <gml:boundedBy><gml:Envelope srsName="urn:ogc:def:crs:EPSG::4326"/></gml:boundedBy>
  <message:hasMember>
    <aixm:Runway gml:id="%[1]s">
      <aixm:designator>13L</aixm:designator>
      <aixm:length>%[2]s</aixm:length>
    </aixm:Runway>
  </message:hasMember>
  <message:hasMember>
    <aixm:Runway gml:id="%[3]s">
      <aixm:designator>%[4]s</aixm:designator>
      <aixm:length>2500</aixm:length>
    </aixm:Runway>
  </message:hasMember>
</message:AIXMBasicMessage>
`

func readDocString(tmpl string, args ...interface{}) (*etree.Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(fmt.Sprintf(tmpl, args...)); err != nil {
		return nil, err
	}
	return doc, nil
}

func TestDiffDocuments(t *testing.T) {
	dir, cleanup := tempDir(t)
	defer cleanup()

	baseFile := filepath.Join(dir, "base.xml")
	candFile := filepath.Join(dir, "candidate.xml.gz")
	base, err := readDocString(messageDoc, "uuid.a", "3010", "uuid.b", "31R")
	require.NoError(t, err)
	cand, err := readDocString(messageDoc, "uuid.c", "3200", "uuid.d", "04")
	require.NoError(t, err)
	require.NoError(t, WriteDocument(baseFile, base, 0))
	require.NoError(t, WriteDocument(candFile, cand, 2))

	outputs := map[docdiff.Partition]string{
		docdiff.Added:   filepath.Join(dir, "added.xml"),
		docdiff.Changed: filepath.Join(dir, "changed.xml"),
		docdiff.Deleted: filepath.Join(dir, "deleted.xml"),
	}
	s, err := DiffDocuments(DocumentOptions{
		Base:       baseFile,
		Candidate:  candFile,
		KeyPath:    "*/aixm:designator",
		Namespaces: aixmNamespaces,
		Outputs:    outputs,
	})
	require.NoError(t, err)
	assert.Len(t, s.Files, 3)
	assert.Empty(t, s.Errors)
	assert.Equal(t, []string{"13L"}, s.Result.KeysOf(docdiff.Changed))
	assert.Equal(t, []string{"04"}, s.Result.KeysOf(docdiff.Added))
	assert.Equal(t, []string{"31R"}, s.Result.KeysOf(docdiff.Deleted))

	changed, err := ReadDocument(outputs[docdiff.Changed])
	require.NoError(t, err)
	require.NotNil(t, changed.Root())
	assert.Equal(t, "AIXMBasicMessage", changed.Root().Tag)
	// bounding element and one feature
	assert.Len(t, changed.Root().ChildElements(), 2)
	length := changed.FindElement("//aixm:length")
	require.NotNil(t, length)
	assert.Equal(t, "3200", length.Text())

	_, err = os.Stat(filepath.Join(dir, "unchanged.xml"))
	assert.True(t, os.IsNotExist(err))
}

var aixmNamespaces = xmltree.Namespaces{
	"message": "http://www.aixm.aero/schema/5.1/message",
	"aixm":    "http://www.aixm.aero/schema/5.1",
	"gml":     xmltree.GMLNamespace,
}

func TestDiffDocumentsInvalid(t *testing.T) {
	dir, cleanup := tempDir(t)
	defer cleanup()

	broken := filepath.Join(dir, "broken.xml")
	require.NoError(t, ioutil.WriteFile(broken, []byte("<a><b></a>"), 0644))
	_, err := DiffDocuments(DocumentOptions{
		Base: broken, Candidate: broken, KeyPath: "*/x",
		Outputs: map[docdiff.Partition]string{docdiff.Added: filepath.Join(dir, "added.xml")},
	})
	assert.Error(t, err)
}

func TestStoreRevision(t *testing.T) {
	dir, cleanup := tempDir(t)
	defer cleanup()
	baseFile, candFile := writeGraphs(t, dir)
	opts := reader.Options{CacheDir: filepath.Join(dir, "cache")}

	rev, errs, err := StoreRevision(baseFile, "2019-05", opts)
	require.NoError(t, err)
	assert.Empty(t, errs)
	assert.Equal(t, 4, rev.Ways)

	s, err := DiffGraphs(GraphOptions{
		Base:      reader.CachePrefix + "2019-05",
		Candidate: candFile,
		KeyTag:    "designator",
		Output:    filepath.Join(dir, "changes.osm"),
		Reader:    opts,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"31R"}, s.Result.KeysOf(graphdiff.Changed))

	revs, err := Revisions(opts.CacheDir)
	require.NoError(t, err)
	require.Len(t, revs, 1)
	assert.Equal(t, baseFile, revs[0].Source)

	require.NoError(t, RemoveRevision(opts.CacheDir, "2019-05"))
	err = RemoveRevision(opts.CacheDir, "2019-05")
	assert.Equal(t, cache.NotFound, errors.Cause(err))
}
