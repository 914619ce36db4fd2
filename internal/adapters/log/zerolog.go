package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/pacer/internal/ports"
)

// Zerolog implements ports.Logger on top of zerolog.
type Zerolog struct {
	logger zerolog.Logger
}

// NewConsole creates a logger writing human-readable lines to stderr at level.
func NewConsole(level zerolog.Level) *Zerolog {
	return NewZerolog(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}, level)
}

// NewZerolog creates a logger writing to w at level.
func NewZerolog(w io.Writer, level zerolog.Level) *Zerolog {
	return &Zerolog{logger: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// Wrap adapts an existing zerolog.Logger.
func Wrap(logger zerolog.Logger) *Zerolog {
	return &Zerolog{logger: logger}
}

// With returns a child logger carrying the given fields on every line.
func (z *Zerolog) With(fields ...ports.Field) *Zerolog {
	ctx := z.logger.With()
	for _, f := range fields {
		ctx = ctx.Interface(f.Key, f.Value)
	}
	return &Zerolog{logger: ctx.Logger()}
}

func (z *Zerolog) Debug(msg string, fields ...ports.Field) { write(z.logger.Debug(), msg, fields) }
func (z *Zerolog) Info(msg string, fields ...ports.Field)  { write(z.logger.Info(), msg, fields) }
func (z *Zerolog) Warn(msg string, fields ...ports.Field)  { write(z.logger.Warn(), msg, fields) }
func (z *Zerolog) Error(msg string, fields ...ports.Field) { write(z.logger.Error(), msg, fields) }

func write(e *zerolog.Event, msg string, fields []ports.Field) {
	if e == nil {
		return
	}
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			e = e.Str(f.Key, v)
		case int:
			e = e.Int(f.Key, v)
		case int64:
			e = e.Int64(f.Key, v)
		case uint64:
			e = e.Uint64(f.Key, v)
		case float64:
			e = e.Float64(f.Key, v)
		case bool:
			e = e.Bool(f.Key, v)
		case time.Duration:
			e = e.Dur(f.Key, v)
		case error:
			e = e.AnErr(f.Key, v)
		default:
			e = e.Interface(f.Key, v)
		}
	}
	e.Msg(msg)
}
