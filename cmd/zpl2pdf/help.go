package main

import (
	"fmt"
	"io"
)

// printUsage prints the usage message.
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: zpl2pdf <input> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Convert ZPL label files to PDF (or PNG for single labels) through a")
	fmt.Fprintln(w, "Labelary-compatible rendering API. Duplicate labels are rendered once")
	fmt.Fprintln(w, "and reassembled, so large print runs stay cheap.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Arguments:")
	fmt.Fprintln(w, "  input    ZPL file (.zpl, .txt) or directory of label files")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Input/Output:")
	fmt.Fprintln(w, "  -o, --output <path>       Output file or directory")
	fmt.Fprintln(w, "  -c, --config <name>       Config file name or path")
	fmt.Fprintln(w, "  -w, --workers <n>         Parallel file conversions (0 = auto)")
	fmt.Fprintln(w, "  -f, --format <s>          Output format: pdf, png (default: pdf)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Label:")
	fmt.Fprintln(w, "  -s, --size <s>            Label size in inches, e.g. 4x6 (default: 4x6)")
	fmt.Fprintln(w, "  -d, --density <n>         Print density in dpmm: 6, 8, 12, 24 (default: 8)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Renderer:")
	fmt.Fprintln(w, "      --renderer-url <s>    Rendering API base URL")
	fmt.Fprintln(w, "  -t, --timeout <s>         Per-call render timeout (e.g., 30s, 2m)")
	fmt.Fprintln(w, "      --batch-size <n>      Labels per renderer request (max 50)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Scheduling:")
	fmt.Fprintln(w, "      --tier <s>            Priority tier: high, normal, low (default: low)")
	fmt.Fprintln(w, "      --requester <s>       Requester id recorded with the job")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Configuration:")
	fmt.Fprintln(w, "      --init-config <path>  Write a default config file and exit")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Output Control:")
	fmt.Fprintln(w, "  -q, --quiet               Only show errors")
	fmt.Fprintln(w, "  -v, --verbose             Show detailed timing and queue stats")
	fmt.Fprintln(w, "      --version             Show version and exit")
}
