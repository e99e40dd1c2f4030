package changeset

import (
	"bufio"
	"compress/gzip"
	"io"
	"os"
	"strings"

	"github.com/beevik/etree"
	"github.com/pkg/errors"

	"github.com/omniscale/aixmdiff/docdiff"
	"github.com/omniscale/aixmdiff/log"
	"github.com/omniscale/aixmdiff/report"
	"github.com/omniscale/aixmdiff/xmltree"
)

type DocumentOptions struct {
	Base      string
	Candidate string
	KeyPath   string
	// Namespaces are the preferred prefixes of the outputs.
	Namespaces xmltree.Namespaces
	// Config selects identifier and cross-reference attributes. Defaults
	// to xmltree.DefaultConfig.
	Config          *xmltree.Config
	BoundingElement string
	// Outputs are the files of each partition. Partitions without file are
	// not written.
	Outputs map[docdiff.Partition]string
	Indent  int

	Report string
}

type DocumentSummary struct {
	Result *docdiff.Result
	Report *report.Report
	Files  []string
	Errors []error
}

// DiffDocuments compares the features of the base and candidate document
// by key path and writes one document per partition.
func DiffDocuments(opts DocumentOptions) (*DocumentSummary, error) {
	if len(opts.Outputs) == 0 {
		return nil, errors.New("missing outputs")
	}
	base, err := ReadDocument(opts.Base)
	if err != nil {
		return nil, errors.Wrap(err, "reading base")
	}
	candidate, err := ReadDocument(opts.Candidate)
	if err != nil {
		return nil, errors.Wrap(err, "reading candidate")
	}

	differ := docdiff.New(opts.Namespaces)
	if opts.Config != nil {
		differ.Config = opts.Config
	}
	if opts.BoundingElement != "" {
		differ.BoundingElement = opts.BoundingElement
	}

	step := log.Step("Comparing documents")
	r, err := differ.Compare(base, candidate, opts.KeyPath)
	step()
	if err != nil {
		return nil, err
	}

	s := &DocumentSummary{Result: r, Errors: r.Errors}
	for _, p := range []docdiff.Partition{docdiff.Added, docdiff.Changed, docdiff.Deleted, docdiff.Unchanged} {
		fname, ok := opts.Outputs[p]
		if !ok || fname == "" {
			continue
		}
		if err := WriteDocument(fname, r.Document(p), opts.Indent); err != nil {
			return nil, err
		}
		s.Files = append(s.Files, fname)
	}

	s.Report = report.Documents(report.Source{
		Base: opts.Base, Candidate: opts.Candidate, Key: opts.KeyPath,
	}, r, nil)
	if opts.Report != "" {
		if err := s.Report.WriteFile(opts.Report); err != nil {
			return nil, err
		}
		s.Files = append(s.Files, opts.Report)
	}
	logErrors(s.Errors)
	return s, nil
}

// ReadDocument parses filename, GZIP compressed if filename ends with .gz.
func ReadDocument(filename string) (*etree.Document, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrap(err, "opening document")
	}
	defer f.Close()

	var r io.Reader = bufio.NewReader(f)
	if strings.HasSuffix(filename, ".gz") {
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, errors.Wrapf(err, "reading %s", filename)
		}
		defer gz.Close()
		r = gz
	}

	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(r); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", filename)
	}
	return doc, nil
}

// WriteDocument writes doc to filename, indented by indent spaces if
// indent is positive.
func WriteDocument(filename string, doc *etree.Document, indent int) error {
	if indent > 0 {
		doc.Indent(indent)
	}
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "creating document")
	}
	defer f.Close()

	buf := bufio.NewWriter(f)
	var w io.Writer = buf
	var gz *gzip.Writer
	if strings.HasSuffix(filename, ".gz") {
		gz = gzip.NewWriter(buf)
		w = gz
	}
	if _, err := doc.WriteTo(w); err != nil {
		return errors.Wrapf(err, "writing %s", filename)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return errors.Wrapf(err, "writing %s", filename)
		}
	}
	if err := buf.Flush(); err != nil {
		return errors.Wrapf(err, "writing %s", filename)
	}
	return f.Close()
}
