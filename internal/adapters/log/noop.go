// Package log adapts logging libraries to ports.Logger.
package log

import "github.com/bft-labs/pacer/internal/ports"

// Nop discards everything.
type Nop struct{}

func (Nop) Debug(string, ...ports.Field) {}
func (Nop) Info(string, ...ports.Field)  {}
func (Nop) Warn(string, ...ports.Field)  {}
func (Nop) Error(string, ...ports.Field) {}
