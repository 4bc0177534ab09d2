// Package main provides the classpath-cache CLI: it resolves the given
// classpath entries, runs the requested transform pipeline against the
// persistent cache, and prints the resulting entry paths in input order.
//
// Modes:
//   - copy       : classpath-cache -kind copy entry...
//   - instrument : classpath-cache -kind instrument entry...
//   - agent      : classpath-cache -kind agent entry...   (prints pairs)
//
// Missing entries are dropped; duplicate content collapses to one output.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"classpath-cache/internal/config"
	"classpath-cache/internal/store"
	"classpath-cache/internal/transform"
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  %s -kind copy|instrument|agent [flags] entry...\n", filepath.Base(os.Args[0]))
		fmt.Fprintln(os.Stderr, "\nFlags:")
		flag.PrintDefaults()
	}

	kindFlag := flag.String("kind", "copy", "transform kind: copy, instrument or agent")
	configFlag := flag.String("config", "", "path to YAML config file (optional)")
	cacheDirFlag := flag.String("cache-dir", "", "cache directory (overrides config)")
	workersFlag := flag.Int("workers", 0, "worker pool size (0 = all processors)")
	verboseFlag := flag.Bool("v", false, "enable debug logging")

	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	entries := flag.Args()

	level := slog.LevelInfo
	if *verboseFlag {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := config.Default()
	if *configFlag != "" {
		var err error
		cfg, err = config.Load(*configFlag)
		if err != nil {
			fmt.Fprintln(os.Stderr, "ERROR:", err)
			os.Exit(1)
		}
	}
	if *cacheDirFlag != "" {
		cfg.CacheDir = *cacheDirFlag
	}
	if *workersFlag > 0 {
		cfg.Workers = *workersFlag
	}

	cache, err := store.Open(cfg.CacheDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}

	var tracker store.AccessTracker = store.NopTracker{}
	if cfg.Journal.Enabled {
		journal, err := store.OpenJournal(cfg.Journal.Dir)
		if err != nil {
			fmt.Fprintln(os.Stderr, "ERROR:", err)
			os.Exit(1)
		}
		defer journal.Close()
		tracker = journal
	}

	transformer, err := transform.New(transform.Options{
		Cache:   cache,
		Tracker: tracker,
		Workers: cfg.Workers,
		Logger:  logger,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}

	switch *kindFlag {
	case "copy", "instrument":
		kind := transform.KindCopy
		if *kindFlag == "instrument" {
			kind = transform.KindInstrument
		}
		outputs, err := transformer.Transform(entries, kind)
		if err != nil {
			fmt.Fprintln(os.Stderr, "ERROR:", err)
			os.Exit(1)
		}
		for _, out := range outputs {
			fmt.Println(out)
		}
	case "agent":
		pairs, err := transformer.TransformPaired(entries)
		if err != nil {
			fmt.Fprintln(os.Stderr, "ERROR:", err)
			os.Exit(1)
		}
		for _, p := range pairs {
			fmt.Printf("%s\t%s\n", p.Original, p.Transformed)
		}
	default:
		fmt.Fprintf(os.Stderr, "ERROR: unknown -kind %q (want copy, instrument or agent)\n", *kindFlag)
		os.Exit(2)
	}
}
