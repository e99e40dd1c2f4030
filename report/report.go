// Package report builds JSON summaries of graph and document changesets.
//
// A report contains the number of elements per partition, the classified
// keys, the number of skipped elements and all non-fatal errors, e.g.:
//
//	{
//	  "type": "graphs",
//	  "key": "designator",
//	  "counts": {"added": 1, "changed": 0, "deleted": 2, "unchanged": 10},
//	  "keys": {"added": ["04"], ...},
//	  "skipped": {"base": 0, "candidate": 1},
//	  "errors": []
//	}
package report

import (
	"io/ioutil"

	"github.com/Jeffail/gabs"
	"github.com/pkg/errors"

	"github.com/omniscale/aixmdiff/docdiff"
	"github.com/omniscale/aixmdiff/graphdiff"
)

var partitions = []string{"added", "changed", "deleted", "unchanged"}

type Report struct {
	c *gabs.Container
}

// Source describes the compared inputs.
type Source struct {
	Base      string
	Candidate string
	// Key is the key tag or the key path.
	Key string
}

func newReport(typ string, src Source) *Report {
	c := gabs.New()
	c.Set(typ, "type")
	c.Set(src.Base, "base")
	c.Set(src.Candidate, "candidate")
	c.Set(src.Key, "key")
	return &Report{c: c}
}

// Graphs returns the report of a graph changeset. errs are the load errors
// of both graphs, the errors of the result are added to them.
func Graphs(src Source, r *graphdiff.Result, errs []error) *Report {
	rep := newReport("graphs", src)
	for _, name := range partitions {
		keys := r.KeysOf(graphdiff.PartitionValues[name])
		rep.c.Set(len(keys), "counts", name)
		rep.c.Set(keys, "keys", name)
	}
	rep.c.Set(r.Skipped.Base, "skipped", "base")
	rep.c.Set(r.Skipped.Candidate, "skipped", "candidate")
	rep.setErrors(append(append([]error{}, errs...), r.Errors...))
	return rep
}

var docPartitions = map[string]docdiff.Partition{
	"added":     docdiff.Added,
	"changed":   docdiff.Changed,
	"deleted":   docdiff.Deleted,
	"unchanged": docdiff.Unchanged,
}

// Documents returns the report of a document changeset, including the
// verdict and the explanation of each changed feature.
func Documents(src Source, r *docdiff.Result, errs []error) *Report {
	rep := newReport("documents", src)
	for _, name := range partitions {
		keys := r.KeysOf(docPartitions[name])
		rep.c.Set(len(keys), "counts", name)
		rep.c.Set(keys, "keys", name)
	}
	rep.c.Set(r.Skipped.Base, "skipped", "base")
	rep.c.Set(r.Skipped.Candidate, "skipped", "candidate")

	rep.c.Set(map[string]interface{}{}, "changes")
	for _, key := range r.KeysOf(docdiff.Changed) {
		rep.c.Set(r.Verdicts[key].String(), "changes", key, "verdict")
		rep.c.Set(r.Explanations[key], "changes", key, "explanation")
	}
	rep.setErrors(append(append([]error{}, errs...), r.Errors...))
	return rep
}

func (r *Report) setErrors(errs []error) {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	r.c.Set(msgs, "errors")
}

// Count returns the number of elements in partition (added, changed,
// deleted or unchanged).
func (r *Report) Count(partition string) int {
	switch v := r.c.Search("counts", partition).Data().(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// Errors returns the number of recorded errors.
func (r *Report) Errors() int {
	switch v := r.c.Search("errors").Data().(type) {
	case []string:
		return len(v)
	case []interface{}:
		return len(v)
	}
	return 0
}

func (r *Report) Bytes() []byte {
	return r.c.BytesIndent("", "  ")
}

func (r *Report) String() string {
	return string(r.Bytes())
}

func (r *Report) WriteFile(filename string) error {
	if err := ioutil.WriteFile(filename, append(r.Bytes(), '\n'), 0644); err != nil {
		return errors.Wrap(err, "writing report")
	}
	return nil
}

// Parse reads a report written by WriteFile.
func Parse(data []byte) (*Report, error) {
	c, err := gabs.ParseJSON(data)
	if err != nil {
		return nil, errors.Wrap(err, "parsing report")
	}
	return &Report{c: c}, nil
}
