// Package chlog provides the leveled logger shared by the three cmd/
// front-ends. It wraps charmbracelet/log so that -v consistently raises
// the log level to Debug across adpcmtool, nsstool and vromtool instead
// of each tool hand-rolling its own fmt.Fprintln(os.Stderr, ...) helper.
package chlog

import (
	"io"
	"os"

	"github.com/charmbracelet/log"
)

// New returns a logger writing to w with the given verbosity. When
// verbose is false only Info level and above are printed.
func New(w io.Writer, verbose bool) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: false,
	})
	if verbose {
		l.SetLevel(log.DebugLevel)
	} else {
		l.SetLevel(log.InfoLevel)
	}
	return l
}

// Default returns a logger writing to stderr.
func Default(verbose bool) *log.Logger {
	return New(os.Stderr, verbose)
}
