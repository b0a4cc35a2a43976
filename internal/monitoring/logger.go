// Package monitoring holds the diagnostic logging hooks shared by the
// analyzer packages.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// may be replaced by SetLogger so tests can capture or mute output.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Warnf logs a user-visible notice, such as a rejected mixer file or a
// clamped parameter. It goes through Logf so the same hook captures it.
func Warnf(format string, v ...interface{}) {
	Logf("WARNING: "+format, v...)
}
