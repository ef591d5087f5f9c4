package log

import "github.com/rs/zerolog"

var logger = zerolog.Nop()

// SetLogger replaces the logger used by this package. Configured once by the
// CLI before any work starts.
func SetLogger(l zerolog.Logger) {
	logger = l
}

// OnError calls the function f, and if it's not nil, logs the error returned.
func OnError(f func() error) {
	if err := f(); err != nil {
		Error(err)
	}
}

// Error logs an error message.
func Error(e error) {
	logger.Error().Msg(e.Error())
}
