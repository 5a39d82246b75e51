package core

import "github.com/rs/zerolog"

// Log is what engine operations report to. *zerolog.Logger satisfies it.
type Log interface {
	Info() *zerolog.Event
	Debug() *zerolog.Event
	Warn() *zerolog.Event
	Error() *zerolog.Event
}

var _ Log = (*zerolog.Logger)(nil)

// NopLog discards everything.
func NopLog() Log {
	logger := zerolog.Nop()
	return &logger
}
