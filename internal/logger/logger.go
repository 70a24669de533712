package logger

import (
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/muesli/termenv"
)

// Init initializes the default logger. Debug enables the interpreter's
// collector and parallel-clause traces.
func Init(debug, noColor bool) {
	log.SetDefault(New(os.Stderr, debug, noColor))
}

// New returns a logger writing to w with the program's prefix and levels.
func New(w io.Writer, debug, noColor bool) *log.Logger {
	l := log.NewWithOptions(w,
		log.Options{
			ReportCaller:    debug,
			ReportTimestamp: false, // runs are short, timestamps only add noise
			TimeFormat:      time.RFC3339,
			Prefix:          "GENIE",
		})

	l.SetLevel(log.WarnLevel)
	if debug {
		l.SetLevel(log.DebugLevel)
	}

	l.SetColorProfile(termenv.ANSI256)
	if noColor {
		l.SetColorProfile(termenv.Ascii)
	}
	return l
}
