// Package changeset loads two revisions of aeronautical data, classifies
// their differences and writes the classified outputs.
package changeset

import (
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/omniscale/aixmdiff/element"
	"github.com/omniscale/aixmdiff/graphdiff"
	"github.com/omniscale/aixmdiff/log"
	"github.com/omniscale/aixmdiff/osmxml"
	"github.com/omniscale/aixmdiff/reader"
	"github.com/omniscale/aixmdiff/report"
)

// DefaultSelect are the partitions written by DiffGraphs if no selection is
// given: everything an editor needs to apply the changeset.
var DefaultSelect = []graphdiff.Partition{graphdiff.Added, graphdiff.Changed, graphdiff.Deleted}

type GraphOptions struct {
	Base      string
	Candidate string
	KeyTag    string
	// Select lists the partitions that are written to Output.
	Select []graphdiff.Partition
	// Output receives all selected partitions merged into one graph. With
	// Split, each partition is written to its own file, named after Output
	// with the partition inserted before the extension (out-added.osm).
	Output string
	Split  bool

	Tolerance  float64
	IgnoreTags []string
	Reader     reader.Options

	// Report is an optional file for the JSON summary.
	Report string
}

type GraphSummary struct {
	Result *graphdiff.Result
	Report *report.Report
	// Files are the written output files.
	Files []string
	// Errors contains all non-fatal errors of loading and comparing both
	// graphs.
	Errors []error
}

// DiffGraphs compares the ways of the base and candidate graph by key tag
// and writes the selected partitions. Invalid elements are skipped and
// returned as non-fatal errors.
func DiffGraphs(opts GraphOptions) (*GraphSummary, error) {
	if opts.KeyTag == "" {
		return nil, errors.New("missing key tag")
	}
	if opts.Output == "" {
		return nil, errors.New("missing output")
	}
	sel := opts.Select
	if len(sel) == 0 {
		sel = DefaultSelect
	}

	s := &GraphSummary{}
	base, errs, err := reader.Read(opts.Base, opts.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "reading base")
	}
	s.Errors = append(s.Errors, errs...)
	candidate, errs, err := reader.Read(opts.Candidate, opts.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "reading candidate")
	}
	s.Errors = append(s.Errors, errs...)

	differ := graphdiff.New(opts.KeyTag)
	if opts.Tolerance > 0 {
		differ.Comparator.Tolerance = opts.Tolerance
	}
	if len(opts.IgnoreTags) > 0 {
		differ.Comparator.IgnoreTags = make(map[string]struct{}, len(opts.IgnoreTags))
		for _, k := range opts.IgnoreTags {
			differ.Comparator.IgnoreTags[k] = struct{}{}
		}
	}

	step := log.Step("Comparing graphs")
	s.Result = differ.Compare(base, candidate)
	step()
	loadErrs := s.Errors
	s.Errors = append(s.Errors, s.Result.Errors...)

	if opts.Split {
		for _, p := range sel {
			fname := PartitionFilename(opts.Output, p.String())
			if err := osmxml.WriteFile(fname, s.Result.Graph(p)); err != nil {
				return nil, err
			}
			s.Files = append(s.Files, fname)
		}
	} else {
		merged := element.NewGraph()
		for _, p := range sel {
			merged.Merge(s.Result.Graph(p))
		}
		if err := osmxml.WriteFile(opts.Output, merged); err != nil {
			return nil, err
		}
		s.Files = append(s.Files, opts.Output)
	}

	s.Report = report.Graphs(report.Source{
		Base: opts.Base, Candidate: opts.Candidate, Key: opts.KeyTag,
	}, s.Result, loadErrs)
	if opts.Report != "" {
		if err := s.Report.WriteFile(opts.Report); err != nil {
			return nil, err
		}
		s.Files = append(s.Files, opts.Report)
	}
	logErrors(s.Errors)
	return s, nil
}

// ParseSelect parses a comma separated list of partition names.
func ParseSelect(s string) ([]graphdiff.Partition, error) {
	if s == "" {
		return nil, nil
	}
	var sel []graphdiff.Partition
	for _, name := range strings.Split(s, ",") {
		p, ok := graphdiff.PartitionValues[strings.TrimSpace(name)]
		if !ok {
			return nil, errors.Errorf("unknown partition %q", name)
		}
		sel = append(sel, p)
	}
	return sel, nil
}

var multiExts = []string{".osm.gz", ".osc.gz", ".xml.gz"}

// PartitionFilename inserts partition before the extension of filename.
func PartitionFilename(filename, partition string) string {
	ext := filepath.Ext(filename)
	for _, e := range multiExts {
		if strings.HasSuffix(filename, e) {
			ext = e
			break
		}
	}
	return strings.TrimSuffix(filename, ext) + "-" + partition + ext
}

func logErrors(errs []error) {
	for _, err := range errs {
		log.Printf("[warn] %s", err)
	}
	if len(errs) > 0 {
		log.Printf("[warn] skipped %s invalid elements", log.Count(len(errs)))
	}
}
