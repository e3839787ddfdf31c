package main

import (
	"fmt"
	"io"
)

// Version information (set via ldflags during build)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "certwatch version %s\n", Version)
	fmt.Fprintf(w, "  commit: %s\n", Commit)
	fmt.Fprintf(w, "  built: %s\n", BuildTime)
}
