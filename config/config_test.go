package config

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omniscale/aixmdiff/docdiff"
	"github.com/omniscale/aixmdiff/graphdiff"
	"github.com/omniscale/aixmdiff/log"
	"github.com/omniscale/aixmdiff/xmltree"
)

const testConfig = `
cachedir: /var/cache/aixmdiff
graphs:
  key: designator
  select: [added, deleted]
  tolerance: 0.000001
  ignore_tags: [source, note]
documents:
  key: "*/aixm:designator"
  bounding_element: boundedBy
  namespaces:
    aixm: http://www.aixm.aero/schema/5.1
  id_names: [id]
  max_depth: 8
  indent: 2
`

func writeConfig(t *testing.T, content string) (string, func()) {
	dir, err := ioutil.TempDir("", "aixmdiff_config_test")
	require.NoError(t, err)
	fname := filepath.Join(dir, "config.yml")
	require.NoError(t, ioutil.WriteFile(fname, []byte(content), 0644))
	return fname, func() { os.RemoveAll(dir) }
}

func TestLoad(t *testing.T) {
	fname, cleanup := writeConfig(t, testConfig)
	defer cleanup()

	conf, err := Load(fname)
	require.NoError(t, err)
	assert.Equal(t, "/var/cache/aixmdiff", conf.CacheDir)
	assert.Equal(t, "designator", conf.Graphs.KeyTag)
	assert.Equal(t, []string{"source", "note"}, conf.Graphs.IgnoreTags)
	assert.Equal(t, "http://www.aixm.aero/schema/5.1", conf.Documents.Namespaces["aixm"])
	assert.Equal(t, 8, conf.Documents.MaxDepth)
}

func TestLoadUnknownKey(t *testing.T) {
	fname, cleanup := writeConfig(t, "graphs:\n  keytag: designator\n")
	defer cleanup()

	_, err := Load(fname)
	assert.Error(t, err)
}

func TestParseGraphs(t *testing.T) {
	opts, err := ParseGraphs([]string{"-key", "ref", "-output", "out.osm", "-select", "changed,unchanged", "-split", "a.osm", "cache:2019-05"})
	require.NoError(t, err)
	cs := opts.Changeset
	assert.Equal(t, "a.osm", cs.Base)
	assert.Equal(t, "cache:2019-05", cs.Candidate)
	assert.Equal(t, "ref", cs.KeyTag)
	assert.True(t, cs.Split)
	assert.Equal(t, []graphdiff.Partition{graphdiff.Changed, graphdiff.Unchanged}, cs.Select)
	assert.Equal(t, defaultCacheDir, cs.Reader.CacheDir)
	assert.Equal(t, log.LProgress, opts.Base.LogLevel)
}

func TestParseGraphsWithConfig(t *testing.T) {
	fname, cleanup := writeConfig(t, testConfig)
	defer cleanup()

	opts, err := ParseGraphs([]string{"-config", fname, "-output", "out.osm", "-ignoretags", "fixme", "a.osm", "b.osm"})
	require.NoError(t, err)
	cs := opts.Changeset
	assert.Equal(t, "designator", cs.KeyTag)
	assert.Equal(t, 0.000001, cs.Tolerance)
	assert.Equal(t, []graphdiff.Partition{graphdiff.Added, graphdiff.Deleted}, cs.Select)
	// flags take precedence
	assert.Equal(t, []string{"fixme"}, cs.IgnoreTags)
	assert.Equal(t, "/var/cache/aixmdiff", cs.Reader.CacheDir)

	opts, err = ParseGraphs([]string{"-config", fname, "-cachedir", "/tmp/c", "-output", "out.osm", "a.osm", "b.osm"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/c", opts.Changeset.Reader.CacheDir)
}

func TestParseGraphsErrors(t *testing.T) {
	for _, args := range [][]string{
		{"a.osm", "b.osm"},
		{"-key", "ref", "a.osm", "b.osm"},
		{"-key", "ref", "-output", "o.osm", "a.osm"},
		{"-key", "ref", "-output", "o.osm", "-select", "moved", "a.osm", "b.osm"},
		{"-key", "ref", "-output", "o.osm", "-tolerance", "-1", "a.osm", "b.osm"},
		{"-unknown", "a.osm", "b.osm"},
		{"-key", "ref", "-output", "o.osm", "-loglevel", "verbose", "a.osm", "b.osm"},
	} {
		_, err := ParseGraphs(args)
		assert.Error(t, err, "%v", args)
	}
}

func TestParseDocuments(t *testing.T) {
	fname, cleanup := writeConfig(t, testConfig)
	defer cleanup()

	opts, err := ParseDocuments([]string{
		"-config", fname,
		"-added", "added.xml", "-changed", "changed.xml",
		"-namespaces", "msg=urn:msg, aixm=urn:aixm",
		"-maxdepth", "4",
		"a.xml", "b.xml",
	})
	require.NoError(t, err)
	cs := opts.Changeset
	assert.Equal(t, "*/aixm:designator", cs.KeyPath)
	assert.Equal(t, "boundedBy", cs.BoundingElement)
	assert.Equal(t, 2, cs.Indent)
	assert.Equal(t, xmltree.Namespaces{
		"msg":     "urn:msg",
		"aixm":    "urn:aixm",
		"message": "http://www.aixm.aero/schema/5.1/message",
		"gml":     xmltree.GMLNamespace,
		"xlink":   xmltree.XLinkNamespace,
	}, cs.Namespaces)

	opts, err = ParseDocuments([]string{"-key", "*/aixm:designator", "-added", "added.xml", "a.xml", "b.xml"})
	require.NoError(t, err)
	assert.Equal(t, defaultNamespaces, opts.Changeset.Namespaces)
	assert.Equal(t, []string{"id"}, cs.Config.IDNames)
	assert.Equal(t, xmltree.GMLNamespace, cs.Config.IDNamespace)
	assert.Equal(t, 4, cs.Config.MaxDepth)
	assert.Equal(t, map[docdiff.Partition]string{
		docdiff.Added:   "added.xml",
		docdiff.Changed: "changed.xml",
	}, cs.Outputs)
}

func TestParseDocumentsErrors(t *testing.T) {
	for _, args := range [][]string{
		{"-added", "a.xml", "a.xml", "b.xml"},
		{"-key", "*/x", "a.xml", "b.xml"},
		{"-key", "*/x", "-added", "o.xml", "-namespaces", "aixm", "a.xml", "b.xml"},
		{"-key", "*/x", "-added", "o.xml", "a.xml"},
	} {
		_, err := ParseDocuments(args)
		assert.Error(t, err, "%v", args)
	}
}

func TestParseStore(t *testing.T) {
	opts, err := ParseStore([]string{"-cachedir", "/tmp/c", "-metadata", "base.osm.gz", "2019-05"})
	require.NoError(t, err)
	assert.Equal(t, "base.osm.gz", opts.Source)
	assert.Equal(t, "2019-05", opts.Name)
	assert.Equal(t, "/tmp/c", opts.Reader.CacheDir)
	assert.True(t, opts.Reader.IncludeMetadata)

	_, err = ParseStore([]string{"base.osm"})
	assert.Error(t, err)
}

func TestParseRevisions(t *testing.T) {
	opts, err := ParseRevisions([]string{"-remove", "2019-05", "-loglevel", "warn"})
	require.NoError(t, err)
	assert.Equal(t, log.LWarn, opts.Base.LogLevel)
	assert.Equal(t, "2019-05", opts.Remove)
	assert.Equal(t, defaultCacheDir, opts.Base.CacheDir)
}
