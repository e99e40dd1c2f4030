package config

import (
	"flag"
	"fmt"
	"io/ioutil"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/omniscale/aixmdiff/changeset"
	"github.com/omniscale/aixmdiff/docdiff"
	"github.com/omniscale/aixmdiff/log"
	"github.com/omniscale/aixmdiff/reader"
	"github.com/omniscale/aixmdiff/xmltree"
)

// Config is the content of the YAML file passed with -config. Command line
// flags take precedence over all values of the file.
type Config struct {
	CacheDir  string         `yaml:"cachedir"`
	Graphs    GraphConfig    `yaml:"graphs"`
	Documents DocumentConfig `yaml:"documents"`
}

type GraphConfig struct {
	KeyTag     string   `yaml:"key"`
	Select     []string `yaml:"select"`
	Tolerance  float64  `yaml:"tolerance"`
	IgnoreTags []string `yaml:"ignore_tags"`
}

type DocumentConfig struct {
	KeyPath         string            `yaml:"key"`
	BoundingElement string            `yaml:"bounding_element"`
	Namespaces      map[string]string `yaml:"namespaces"`
	IDNamespace     string            `yaml:"id_namespace"`
	IDNames         []string          `yaml:"id_names"`
	HrefNamespace   string            `yaml:"href_namespace"`
	HrefAttr        string            `yaml:"href_attr"`
	MaxDepth        int               `yaml:"max_depth"`
	Indent          int               `yaml:"indent"`
}

const defaultCacheDir = "/tmp/aixmdiff"

// defaultNamespaces are the prefixes of AIXM 5.1 messages. Namespaces of
// the config file and -namespaces are added to or replace these.
var defaultNamespaces = xmltree.Namespaces{
	"message": "http://www.aixm.aero/schema/5.1/message",
	"aixm":    "http://www.aixm.aero/schema/5.1",
	"gml":     xmltree.GMLNamespace,
	"xlink":   xmltree.XLinkNamespace,
}

// Load reads the configuration file. Unknown keys are an error.
func Load(filename string) (*Config, error) {
	b, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	conf := &Config{}
	if err := yaml.UnmarshalStrict(b, conf); err != nil {
		return nil, errors.Wrapf(err, "parsing config %s", filename)
	}
	return conf, nil
}

type BaseOptions struct {
	ConfigFile string
	CacheDir   string
	Report     string
	LogLevel   log.Level
}

func addBaseFlags(opts *BaseOptions, flags *flag.FlagSet) {
	flags.StringVar(&opts.ConfigFile, "config", "", "config (yaml)")
	flags.StringVar(&opts.CacheDir, "cachedir", defaultCacheDir, "revision cache directory")
	opts.LogLevel = log.LProgress
	flags.Var((*levelValue)(&opts.LogLevel), "loglevel", "minimum log level (debug, progress, step, info, warn, error)")
}

// levelValue implements flag.Value for log levels.
type levelValue log.Level

func (v *levelValue) String() string { return log.Level(*v).String() }

func (v *levelValue) Set(s string) error {
	l, err := log.ParseLevel(s)
	if err != nil {
		return err
	}
	*v = levelValue(l)
	return nil
}

// load returns the config file of opts, or an empty config. The cache dir
// of the file is used if -cachedir was not set.
func (o *BaseOptions) load(set map[string]bool) (*Config, error) {
	conf := &Config{}
	if o.ConfigFile != "" {
		var err error
		conf, err = Load(o.ConfigFile)
		if err != nil {
			return nil, err
		}
	}
	if !set["cachedir"] && conf.CacheDir != "" {
		o.CacheDir = conf.CacheDir
	}
	return conf, nil
}

func setFlags(flags *flag.FlagSet) map[string]bool {
	set := map[string]bool{}
	flags.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var l []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			l = append(l, v)
		}
	}
	return l
}

type GraphOptions struct {
	Base      BaseOptions
	Changeset changeset.GraphOptions
}

func graphFlags() (*flag.FlagSet, *GraphOptions, *string, *string) {
	opts := &GraphOptions{}
	flags := flag.NewFlagSet("graphs", flag.ContinueOnError)
	addBaseFlags(&opts.Base, flags)
	flags.StringVar(&opts.Changeset.KeyTag, "key", "", "tag with the business key of each way")
	flags.StringVar(&opts.Changeset.Output, "output", "", "output file (.osm or .osm.gz)")
	flags.BoolVar(&opts.Changeset.Split, "split", false, "write one output file per selected partition")
	flags.Float64Var(&opts.Changeset.Tolerance, "tolerance", 0, "max. coordinate difference in degrees")
	flags.IntVar(&opts.Changeset.Reader.Concurrency, "concurrency", 0, "number of PBF parsers")
	flags.BoolVar(&opts.Changeset.Reader.IncludeMetadata, "metadata", false, "read metadata from PBF and osmChange files")
	flags.StringVar(&opts.Base.Report, "report", "", "JSON report file")
	sel := flags.String("select", "", "comma separated partitions to write (added,changed,deleted,unchanged)")
	ignore := flags.String("ignoretags", "", "comma separated tags that are ignored when comparing ways")
	flags.Usage = usage(flags, "[args] BASE CANDIDATE")
	return flags, opts, sel, ignore
}

// ParseGraphs parses the arguments of the graphs command.
func ParseGraphs(args []string) (*GraphOptions, error) {
	flags, opts, sel, ignore := graphFlags()
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if flags.NArg() != 2 {
		return nil, errors.New("expected BASE and CANDIDATE")
	}
	set := setFlags(flags)
	conf, err := opts.Base.load(set)
	if err != nil {
		return nil, err
	}

	cs := &opts.Changeset
	cs.Base = flags.Arg(0)
	cs.Candidate = flags.Arg(1)
	cs.Report = opts.Base.Report
	cs.Reader.CacheDir = opts.Base.CacheDir
	if cs.KeyTag == "" {
		cs.KeyTag = conf.Graphs.KeyTag
	}
	if !set["tolerance"] {
		cs.Tolerance = conf.Graphs.Tolerance
	}

	selNames := splitList(*sel)
	if !set["select"] {
		selNames = conf.Graphs.Select
	}
	cs.Select, err = changeset.ParseSelect(strings.Join(selNames, ","))
	if err != nil {
		return nil, err
	}
	cs.IgnoreTags = splitList(*ignore)
	if !set["ignoretags"] {
		cs.IgnoreTags = conf.Graphs.IgnoreTags
	}

	var errs []string
	if cs.KeyTag == "" {
		errs = append(errs, "missing -key")
	}
	if cs.Output == "" {
		errs = append(errs, "missing -output")
	}
	if cs.Tolerance < 0 {
		errs = append(errs, "-tolerance needs to be positive")
	}
	return opts, checkErrors(errs)
}

type DocumentOptions struct {
	Base      BaseOptions
	Changeset changeset.DocumentOptions
}

type documentFlagValues struct {
	added, changed, deleted, unchanged string
	namespaces                         string
	maxDepth                           int
}

// ParseDocuments parses the arguments of the documents command.
func ParseDocuments(args []string) (*DocumentOptions, error) {
	opts := &DocumentOptions{}
	v := &documentFlagValues{}
	flags := flag.NewFlagSet("documents", flag.ContinueOnError)
	addBaseFlags(&opts.Base, flags)
	cs := &opts.Changeset
	flags.StringVar(&cs.KeyPath, "key", "", "path of the business key, relative to each feature")
	flags.StringVar(&cs.BoundingElement, "bounding", "", "local name of the bounding element (default boundedBy)")
	flags.IntVar(&cs.Indent, "indent", 0, "indent outputs by n spaces")
	flags.StringVar(&v.added, "added", "", "output file for added features")
	flags.StringVar(&v.changed, "changed", "", "output file for changed features")
	flags.StringVar(&v.deleted, "deleted", "", "output file for deleted features")
	flags.StringVar(&v.unchanged, "unchanged", "", "output file for unchanged features")
	flags.StringVar(&v.namespaces, "namespaces", "", "preferred prefixes, e.g. aixm=http://www.aixm.aero/schema/5.1")
	flags.IntVar(&v.maxDepth, "maxdepth", 0, "max. depth of nested cross-references")
	flags.StringVar(&opts.Base.Report, "report", "", "JSON report file")
	flags.Usage = usage(flags, "[args] BASE CANDIDATE")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if flags.NArg() != 2 {
		return nil, errors.New("expected BASE and CANDIDATE")
	}
	set := setFlags(flags)
	conf, err := opts.Base.load(set)
	if err != nil {
		return nil, err
	}
	dc := conf.Documents

	cs.Base = flags.Arg(0)
	cs.Candidate = flags.Arg(1)
	cs.Report = opts.Base.Report
	if cs.KeyPath == "" {
		cs.KeyPath = dc.KeyPath
	}
	if cs.BoundingElement == "" {
		cs.BoundingElement = dc.BoundingElement
	}
	if !set["indent"] {
		cs.Indent = dc.Indent
	}

	cs.Namespaces = xmltree.Namespaces{}
	for prefix, uri := range defaultNamespaces {
		cs.Namespaces[prefix] = uri
	}
	for prefix, uri := range dc.Namespaces {
		cs.Namespaces[prefix] = uri
	}
	flagNS, err := parseNamespaces(v.namespaces)
	if err != nil {
		return nil, err
	}
	for prefix, uri := range flagNS {
		cs.Namespaces[prefix] = uri
	}

	cs.Config = xmltree.DefaultConfig()
	if dc.IDNamespace != "" {
		cs.Config.IDNamespace = dc.IDNamespace
	}
	if len(dc.IDNames) > 0 {
		cs.Config.IDNames = dc.IDNames
	}
	if dc.HrefNamespace != "" {
		cs.Config.HrefNamespace = dc.HrefNamespace
	}
	if dc.HrefAttr != "" {
		cs.Config.HrefAttr = dc.HrefAttr
	}
	if dc.MaxDepth > 0 {
		cs.Config.MaxDepth = dc.MaxDepth
	}
	if v.maxDepth > 0 {
		cs.Config.MaxDepth = v.maxDepth
	}

	cs.Outputs = map[docdiff.Partition]string{}
	for p, fname := range map[docdiff.Partition]string{
		docdiff.Added:     v.added,
		docdiff.Changed:   v.changed,
		docdiff.Deleted:   v.deleted,
		docdiff.Unchanged: v.unchanged,
	} {
		if fname != "" {
			cs.Outputs[p] = fname
		}
	}

	var errs []string
	if cs.KeyPath == "" {
		errs = append(errs, "missing -key")
	}
	if len(cs.Outputs) == 0 {
		errs = append(errs, "missing output, use -added, -changed, -deleted or -unchanged")
	}
	return opts, checkErrors(errs)
}

// parseNamespaces parses comma separated prefix=uri pairs.
func parseNamespaces(s string) (xmltree.Namespaces, error) {
	ns := xmltree.Namespaces{}
	for _, pair := range splitList(s) {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, errors.Errorf("invalid namespace %q, expected prefix=uri", pair)
		}
		ns[parts[0]] = parts[1]
	}
	return ns, nil
}

type StoreOptions struct {
	Base   BaseOptions
	Source string
	Name   string
	Reader reader.Options
}

// ParseStore parses the arguments of the store command.
func ParseStore(args []string) (*StoreOptions, error) {
	opts := &StoreOptions{}
	flags := flag.NewFlagSet("store", flag.ContinueOnError)
	addBaseFlags(&opts.Base, flags)
	flags.IntVar(&opts.Reader.Concurrency, "concurrency", 0, "number of PBF parsers")
	flags.BoolVar(&opts.Reader.IncludeMetadata, "metadata", false, "read metadata from PBF and osmChange files")
	flags.Usage = usage(flags, "[args] SOURCE NAME")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if flags.NArg() != 2 {
		return nil, errors.New("expected SOURCE and NAME")
	}
	if _, err := opts.Base.load(setFlags(flags)); err != nil {
		return nil, err
	}
	opts.Source = flags.Arg(0)
	opts.Name = flags.Arg(1)
	opts.Reader.CacheDir = opts.Base.CacheDir
	return opts, nil
}

type RevisionsOptions struct {
	Base   BaseOptions
	Remove string
}

// ParseRevisions parses the arguments of the revisions command.
func ParseRevisions(args []string) (*RevisionsOptions, error) {
	opts := &RevisionsOptions{}
	flags := flag.NewFlagSet("revisions", flag.ContinueOnError)
	addBaseFlags(&opts.Base, flags)
	flags.StringVar(&opts.Remove, "remove", "", "remove revision")
	flags.Usage = usage(flags, "[args]")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if _, err := opts.Base.load(setFlags(flags)); err != nil {
		return nil, err
	}
	return opts, nil
}

func usage(flags *flag.FlagSet, args string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "Usage: %s %s %s\n\n", os.Args[0], flags.Name(), args)
		flags.PrintDefaults()
	}
}

func checkErrors(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return errors.New("errors in config/options: " + strings.Join(errs, ", "))
}
