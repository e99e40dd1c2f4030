// Package reader loads entity graphs from all supported input formats.
package reader

import (
	"context"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	osm "github.com/omniscale/go-osm"
	"github.com/omniscale/go-osm/parser/diff"
	"github.com/omniscale/go-osm/parser/pbf"
	"github.com/pkg/errors"

	"github.com/omniscale/aixmdiff/cache"
	"github.com/omniscale/aixmdiff/element"
	"github.com/omniscale/aixmdiff/log"
	"github.com/omniscale/aixmdiff/osmxml"
	"github.com/omniscale/aixmdiff/stats"
)

type Format int

const (
	OSM Format = iota
	OsmChange
	PBF
	Cache
)

var formatNames = map[Format]string{
	OSM:       "osm",
	OsmChange: "osc",
	PBF:       "pbf",
	Cache:     "cache",
}

func (f Format) String() string {
	return formatNames[f]
}

const progressInterval = time.Second

// CachePrefix selects a revision from the cache instead of a file, e.g.
// cache:2019-05.
const CachePrefix = "cache:"

// DetectFormat returns the format of source.
func DetectFormat(source string) (Format, error) {
	switch {
	case strings.HasPrefix(source, CachePrefix):
		return Cache, nil
	case strings.HasSuffix(source, ".osm"), strings.HasSuffix(source, ".osm.gz"):
		return OSM, nil
	case strings.HasSuffix(source, ".osc"), strings.HasSuffix(source, ".osc.gz"):
		return OsmChange, nil
	case strings.HasSuffix(source, ".pbf"):
		return PBF, nil
	}
	return 0, errors.Errorf("unknown format of %s", source)
}

type Options struct {
	// CacheDir is the revision cache for cache: sources.
	CacheDir string
	// Concurrency is the number of PBF parsers. Defaults to the number of
	// CPUs.
	Concurrency int
	// IncludeMetadata enables the parsing of versions, timestamps and user
	// names for PBF and osmChange inputs.
	IncludeMetadata bool
}

// Read loads the graph from source. It returns entity errors for elements
// that were skipped because of invalid values or references.
func Read(source string, opts Options) (*element.Graph, []error, error) {
	format, err := DetectFormat(source)
	if err != nil {
		return nil, nil, err
	}

	step := log.Step("Reading " + source)
	defer step()

	switch format {
	case Cache:
		return readCache(strings.TrimPrefix(source, CachePrefix), opts)
	case OsmChange:
		f, err := os.Open(source)
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening change file")
		}
		defer f.Close()
		return ReadChange(context.Background(), f, strings.HasSuffix(source, ".gz"), opts)
	case PBF:
		f, err := os.Open(source)
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening PBF file")
		}
		defer f.Close()
		return ReadPBF(context.Background(), f, opts)
	default:
		return osmxml.ReadFile(source)
	}
}

func readCache(name string, opts Options) (*element.Graph, []error, error) {
	if opts.CacheDir == "" {
		return nil, nil, errors.New("missing cache dir")
	}
	store, err := cache.Open(opts.CacheDir)
	if err != nil {
		return nil, nil, err
	}
	defer store.Close()
	g, _, err := store.Load(name)
	if err != nil {
		return nil, nil, err
	}
	return g, nil, nil
}

// ReadChange loads the created and modified elements of an osmChange
// document. Deleted elements are ignored.
func ReadChange(ctx context.Context, r io.Reader, gzip bool, opts Options) (*element.Graph, []error, error) {
	diffs := make(chan osm.Diff)
	config := diff.Config{
		Diffs:           diffs,
		IncludeMetadata: opts.IncludeMetadata,
	}

	var parser *diff.Parser
	if gzip {
		var err error
		parser, err = diff.NewGZIP(r, config)
		if err != nil {
			return nil, nil, errors.Wrap(err, "initializing diff parser")
		}
	} else {
		parser = diff.New(r, config)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel() // make sure parser is stopped if we return early

	parseError := make(chan error, 1)
	go func() {
		parseError <- parser.Parse(ctx)
	}()

	progress := stats.NewReporter("osmChange", progressInterval)
	g := element.NewGraph()
	deleted := 0
	for elem := range diffs {
		if elem.Delete {
			deleted++
			continue
		}
		action := element.Modify
		if elem.Create {
			action = element.Create
		}
		switch {
		case elem.Node != nil:
			g.AddNode(&element.Node{Node: *elem.Node, Action: action})
			progress.AddNodes(1)
		case elem.Way != nil:
			g.AddWay(&element.Way{Way: *elem.Way, Action: action})
			progress.AddWays(1)
		case elem.Rel != nil:
			g.AddRelation(&element.Relation{Relation: *elem.Rel, Action: action})
			progress.AddRelations(1)
		}
	}
	progress.Stop()
	if err := <-parseError; err != nil {
		return nil, nil, errors.Wrap(err, "parsing change file")
	}
	if deleted > 0 {
		log.Printf("[info] ignored %s deleted elements", log.Count(deleted))
	}

	errs := g.RemoveInvalid()
	return g, errs, nil
}

// ReadPBF loads all elements of a PBF file.
func ReadPBF(ctx context.Context, r io.Reader, opts Options) (*element.Graph, []error, error) {
	nodes := make(chan []osm.Node, 4)
	ways := make(chan []osm.Way, 4)
	relations := make(chan []osm.Relation, 4)

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	parser := pbf.New(r, pbf.Config{
		Nodes:           nodes,
		Ways:            ways,
		Relations:       relations,
		IncludeMetadata: opts.IncludeMetadata,
		Concurrency:     concurrency,
		KeepOpen:        true,
	})

	if header, err := parser.Header(); err != nil {
		return nil, nil, errors.Wrap(err, "parsing PBF header")
	} else if !header.Time.IsZero() {
		log.Printf("[info] reading PBF with data till %v", header.Time.Local())
	}

	progress := stats.NewReporter("PBF", progressInterval)
	g := element.NewGraph()
	waitWriter := sync.WaitGroup{}

	// each goroutine only writes into the map of its element type
	waitWriter.Add(3)
	go func() {
		for nds := range nodes {
			for i := range nds {
				g.AddNode(&element.Node{Node: nds[i]})
			}
			progress.AddNodes(len(nds))
		}
		waitWriter.Done()
	}()
	go func() {
		for ws := range ways {
			for i := range ws {
				g.AddWay(&element.Way{Way: ws[i]})
			}
			progress.AddWays(len(ws))
		}
		waitWriter.Done()
	}()
	go func() {
		for rels := range relations {
			for i := range rels {
				g.AddRelation(&element.Relation{Relation: rels[i]})
			}
			progress.AddRelations(len(rels))
		}
		waitWriter.Done()
	}()

	err := parser.Parse(ctx)
	close(nodes)
	close(ways)
	close(relations)
	waitWriter.Wait()
	counts := progress.Stop()
	if err != nil {
		return nil, nil, errors.Wrap(err, "parsing PBF")
	}
	log.Printf("[info] read %s nodes, %s ways and %s relations",
		log.Count(int(counts.Nodes)), log.Count(int(counts.Ways)), log.Count(int(counts.Relations)))

	errs := g.RemoveInvalid()
	return g, errs, nil
}
