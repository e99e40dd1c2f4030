package main

import (
	"flag"
	"fmt"
	golog "log"
	"os"
	"runtime"
	"text/tabwriter"
	"time"

	"github.com/omniscale/aixmdiff"
	"github.com/omniscale/aixmdiff/changeset"
	"github.com/omniscale/aixmdiff/config"
	"github.com/omniscale/aixmdiff/log"
	"github.com/omniscale/aixmdiff/reader"
)

func PrintCmds() {
	fmt.Fprintf(os.Stderr, "Usage: %s COMMAND [args]\n\n", os.Args[0])
	fmt.Println("Available commands:")
	fmt.Println("\tgraphs")
	fmt.Println("\tdocuments")
	fmt.Println("\tstore")
	fmt.Println("\trevisions")
	fmt.Println("\tversion")
}

func Main(usage func()) {
	golog.SetFlags(golog.LstdFlags | golog.Lshortfile)
	if os.Getenv("GOMAXPROCS") == "" {
		runtime.GOMAXPROCS(runtime.NumCPU())
	}

	if len(os.Args) <= 1 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "graphs":
		opts, err := config.ParseGraphs(os.Args[2:])
		exitOnOptionError(err)
		setLogLevel(opts.Base)
		s, err := changeset.DiffGraphs(opts.Changeset)
		if err != nil {
			log.Fatal(err)
		}
		printFiles(s.Files)
	case "documents":
		opts, err := config.ParseDocuments(os.Args[2:])
		exitOnOptionError(err)
		setLogLevel(opts.Base)
		s, err := changeset.DiffDocuments(opts.Changeset)
		if err != nil {
			log.Fatal(err)
		}
		printFiles(s.Files)
	case "store":
		opts, err := config.ParseStore(os.Args[2:])
		exitOnOptionError(err)
		setLogLevel(opts.Base)
		rev, _, err := changeset.StoreRevision(opts.Source, opts.Name, opts.Reader)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("stored %s as %s%s\n", rev.Source, reader.CachePrefix, rev.Name)
	case "revisions":
		opts, err := config.ParseRevisions(os.Args[2:])
		exitOnOptionError(err)
		setLogLevel(opts.Base)
		if opts.Remove != "" {
			if err := changeset.RemoveRevision(opts.Base.CacheDir, opts.Remove); err != nil {
				log.Fatal(err)
			}
			break
		}
		revs, err := changeset.Revisions(opts.Base.CacheDir)
		if err != nil {
			log.Fatal(err)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tCREATED\tNODES\tWAYS\tRELATIONS\tSOURCE")
		for _, r := range revs {
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%s\n", r.Name, r.Created.Local().Format(time.RFC3339),
				r.Nodes, r.Ways, r.Relations, r.Source)
		}
		w.Flush()
	case "version":
		fmt.Println(aixmdiff.Version)
		os.Exit(0)
	default:
		usage()
		log.Fatalf("invalid command: '%s'", os.Args[1])
	}
	os.Exit(0)
}

func exitOnOptionError(err error) {
	if err == nil {
		return
	}
	// the FlagSet already printed the usage for -help
	if err != flag.ErrHelp {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(2)
}

func setLogLevel(opts config.BaseOptions) {
	log.SetMinLevel(opts.LogLevel)
}

func printFiles(files []string) {
	for _, f := range files {
		fmt.Println(f)
	}
}

func main() {
	Main(PrintCmds)
}
