package pacer

import "github.com/bft-labs/pacer/internal/ports"

// Field constructors for Logger implementations and plugins.
var (
	String   = ports.String
	Int      = ports.Int
	Float64  = ports.Float64
	Bool     = ports.Bool
	Duration = ports.Duration
	Err      = ports.Err
	Any      = ports.Any
)
