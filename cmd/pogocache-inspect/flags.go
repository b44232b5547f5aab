package main

import (
	"time"

	"github.com/spf13/pflag"
)

// options holds the inspector's own flags, separate from the daemon's.
type options struct {
	target           string
	json             bool
	watch            bool
	interval         time.Duration
	heapProfile      string
	goroutineProfile string
	version          bool
}

func parseFlags(args []string) (*options, error) {
	opts := &options{target: "http://127.0.0.1:9402", interval: 2 * time.Second}

	fs := pflag.NewFlagSet("pogocache-inspect", pflag.ContinueOnError)
	fs.StringVar(&opts.target, "target", opts.target, "pogocached debug address to query")
	fs.BoolVar(&opts.json, "json", opts.json, "print the raw JSON snapshot instead of a formatted summary")
	fs.BoolVar(&opts.watch, "watch", opts.watch, "poll repeatedly instead of printing once")
	fs.DurationVar(&opts.interval, "interval", opts.interval, "poll interval when --watch is set")
	fs.StringVar(&opts.heapProfile, "heap-profile", opts.heapProfile, "download a heap profile to this path instead of printing a snapshot")
	fs.StringVar(&opts.goroutineProfile, "goroutine-profile", opts.goroutineProfile, "download a goroutine profile to this path instead of printing a snapshot")
	fs.BoolVar(&opts.version, "version", opts.version, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}
