package mgo

import (
	stdlog "log"
	"os"
)

// Logger is the package-level diagnostic sink. It defaults to a logger
// writing to stderr with the package's own prefix; callers may replace it
// wholesale or redirect its output.
var Logger = stdlog.New(os.Stderr, "[mgo] ", stdlog.LstdFlags)

// Debug gates debugf, the package's verbose-tracing hook. Off by default.
// No code path in this package calls debugf, so setting Debug produces no
// output on its own.
var Debug = false

func debugf(format string, args ...interface{}) {
	if Debug {
		Logger.Printf(format, args...)
	}
}
