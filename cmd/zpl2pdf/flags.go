package main

import (
	"os"

	flag "github.com/spf13/pflag"
)

// commonFlags holds flags shared across operations.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
	version bool
}

// labelFlags holds label geometry flags.
type labelFlags struct {
	size    string
	density int
}

// rendererFlags holds rendering API flags.
type rendererFlags struct {
	url       string
	timeout   string
	batchSize int
}

// jobFlags holds per-submission flags.
type jobFlags struct {
	tier      string
	format    string
	requester string
}

// convertFlags holds all flags for the converter.
type convertFlags struct {
	common     commonFlags
	output     string
	workers    int
	initConfig string
	label      labelFlags
	renderer   rendererFlags
	job        jobFlags
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show detailed timing and queue stats")
	fs.BoolVar(&f.version, "version", false, "show version and exit")
}

// addLabelFlags adds label geometry flags to a FlagSet.
func addLabelFlags(fs *flag.FlagSet, f *labelFlags) {
	fs.StringVarP(&f.size, "size", "s", "", "label size in inches, e.g. 4x6")
	fs.IntVarP(&f.density, "density", "d", 0, "print density in dpmm: 6, 8, 12, 24")
}

// addRendererFlags adds rendering API flags to a FlagSet.
func addRendererFlags(fs *flag.FlagSet, f *rendererFlags) {
	fs.StringVar(&f.url, "renderer-url", "", "rendering API base URL")
	fs.StringVarP(&f.timeout, "timeout", "t", "", "per-call render timeout (e.g., 30s, 2m)")
	fs.IntVar(&f.batchSize, "batch-size", 0, "labels per renderer request (max 50)")
}

// addJobFlags adds per-submission flags to a FlagSet.
func addJobFlags(fs *flag.FlagSet, f *jobFlags) {
	fs.StringVar(&f.tier, "tier", "", "priority tier: high, normal, low")
	fs.StringVarP(&f.format, "format", "f", "", "output format: pdf, png")
	fs.StringVar(&f.requester, "requester", "", "requester id recorded with the job")
}

// parseConvertFlags parses flags and returns positional args.
func parseConvertFlags(args []string) (*convertFlags, []string, error) {
	fs := flag.NewFlagSet("zpl2pdf", flag.ContinueOnError)
	f := &convertFlags{}

	fs.StringVarP(&f.output, "output", "o", "", "output file or directory")
	fs.IntVarP(&f.workers, "workers", "w", 0, "parallel file conversions (0 = auto)")
	fs.StringVar(&f.initConfig, "init-config", "", "write a default config file to the given path and exit")

	addCommonFlags(fs, &f.common)
	addLabelFlags(fs, &f.label)
	addRendererFlags(fs, &f.renderer)
	addJobFlags(fs, &f.job)

	fs.Usage = func() { printUsage(os.Stderr) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	return f, fs.Args(), nil
}
