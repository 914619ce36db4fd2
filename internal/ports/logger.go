package ports

import "time"

// Logger is the structured logger every scheduler component writes to.
// adapters/log provides the zerolog-backed and discarding implementations.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
}

// Field is one key/value pair attached to a log line.
type Field struct {
	Key   string
	Value any
}

// Item tags a line with a work item id.
func Item(id string) Field { return Field{Key: "item", Value: id} }

// Batch tags a line with a batch id.
func Batch(id string) Field { return Field{Key: "batch", Value: id} }

func String(key, value string) Field {
	return Field{Key: key, Value: value}
}

func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: value}
}

func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

func Duration(key string, value time.Duration) Field {
	return Field{Key: key, Value: value}
}

// Stringer logs the String form of levels, priorities and pressures.
func Stringer(key string, value interface{ String() string }) Field {
	return Field{Key: key, Value: value.String()}
}

// Err logs err under "error".
func Err(err error) Field { return Field{Key: "error", Value: err} }

// Any logs value as-is; adapters fall back to reflection.
func Any(key string, value any) Field { return Field{Key: key, Value: value} }
