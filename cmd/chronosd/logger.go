package main

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/chronos-cache/chronos"
)

// zerologAdapter implements chronos.Logger over a zerolog.Logger, the
// logging backend p-agent-test-kog-demo standardizes on for its own
// mgmt server.
type zerologAdapter struct {
	log zerolog.Logger
}

func newZerologAdapter(levelName string) *zerologAdapter {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if level, err := zerolog.ParseLevel(levelName); err == nil {
		log = log.Level(level)
	}
	return &zerologAdapter{log: log}
}

func (z *zerologAdapter) Debug(msg string, keyvals ...interface{}) {
	z.event(z.log.Debug(), msg, keyvals)
}

func (z *zerologAdapter) Info(msg string, keyvals ...interface{}) {
	z.event(z.log.Info(), msg, keyvals)
}

func (z *zerologAdapter) Warn(msg string, keyvals ...interface{}) {
	z.event(z.log.Warn(), msg, keyvals)
}

func (z *zerologAdapter) Error(msg string, keyvals ...interface{}) {
	z.event(z.log.Error(), msg, keyvals)
}

func (z *zerologAdapter) event(e *zerolog.Event, msg string, keyvals []interface{}) {
	for i := 0; i+1 < len(keyvals); i += 2 {
		key, ok := keyvals[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, keyvals[i+1])
	}
	e.Msg(msg)
}

var _ chronos.Logger = (*zerologAdapter)(nil)
