package domain

import (
	"fmt"
	"strings"
	"time"
)

// ResourceKind names a tracked resource.
type ResourceKind string

const (
	ResourceMemory  ResourceKind = "memory"
	ResourceCPU     ResourceKind = "cpu"
	ResourceNetwork ResourceKind = "network"
	ResourceIO      ResourceKind = "io"
	ResourceVoice   ResourceKind = "voice"
	ResourceAvatar  ResourceKind = "avatar"
)

// ResourceKinds lists every tracked resource in a stable order.
var ResourceKinds = []ResourceKind{
	ResourceMemory,
	ResourceCPU,
	ResourceNetwork,
	ResourceIO,
	ResourceVoice,
	ResourceAvatar,
}

// Requirement is a resource estimate. Memory is in megabytes, CPU in percent
// of the whole machine, and the remaining kinds count concurrent operations.
type Requirement struct {
	MemoryMB   float64 `json:"memory_mb,omitempty" toml:"memory_mb"`
	CPUPercent float64 `json:"cpu_percent,omitempty" toml:"cpu_percent"`
	Network    float64 `json:"network,omitempty" toml:"network"`
	IO         float64 `json:"io,omitempty" toml:"io"`
	Voice      float64 `json:"voice,omitempty" toml:"voice"`
	Avatar     float64 `json:"avatar,omitempty" toml:"avatar"`
}

// Amount returns the requirement for one resource.
func (r Requirement) Amount(kind ResourceKind) float64 {
	switch kind {
	case ResourceMemory:
		return r.MemoryMB
	case ResourceCPU:
		return r.CPUPercent
	case ResourceNetwork:
		return r.Network
	case ResourceIO:
		return r.IO
	case ResourceVoice:
		return r.Voice
	case ResourceAvatar:
		return r.Avatar
	}
	return 0
}

// Add returns the component-wise sum of r and o.
func (r Requirement) Add(o Requirement) Requirement {
	return Requirement{
		MemoryMB:   r.MemoryMB + o.MemoryMB,
		CPUPercent: r.CPUPercent + o.CPUPercent,
		Network:    r.Network + o.Network,
		IO:         r.IO + o.IO,
		Voice:      r.Voice + o.Voice,
		Avatar:     r.Avatar + o.Avatar,
	}
}

// Sub returns r minus o, clamped at zero.
func (r Requirement) Sub(o Requirement) Requirement {
	clamp := func(v float64) float64 {
		if v < 0 {
			return 0
		}
		return v
	}
	return Requirement{
		MemoryMB:   clamp(r.MemoryMB - o.MemoryMB),
		CPUPercent: clamp(r.CPUPercent - o.CPUPercent),
		Network:    clamp(r.Network - o.Network),
		IO:         clamp(r.IO - o.IO),
		Voice:      clamp(r.Voice - o.Voice),
		Avatar:     clamp(r.Avatar - o.Avatar),
	}
}

// Scale multiplies every component by f.
func (r Requirement) Scale(f float64) Requirement {
	return Requirement{
		MemoryMB:   r.MemoryMB * f,
		CPUPercent: r.CPUPercent * f,
		Network:    r.Network * f,
		IO:         r.IO * f,
		Voice:      r.Voice * f,
		Avatar:     r.Avatar * f,
	}
}

// IsZero reports whether no resource is required.
func (r Requirement) IsZero() bool {
	return r == Requirement{}
}

// Pressure is a coarse classification of how close a resource is to its limit.
type Pressure int

const (
	PressureLow Pressure = iota
	PressureMedium
	PressureHigh
	PressureCritical
)

// String returns a human-readable representation of the pressure.
func (p Pressure) String() string {
	switch p {
	case PressureLow:
		return "LOW"
	case PressureMedium:
		return "MEDIUM"
	case PressureHigh:
		return "HIGH"
	case PressureCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ParsePressure parses a pressure name, case-insensitively.
func ParsePressure(s string) (Pressure, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOW":
		return PressureLow, true
	case "MEDIUM":
		return PressureMedium, true
	case "HIGH":
		return PressureHigh, true
	case "CRITICAL":
		return PressureCritical, true
	}
	return PressureLow, false
}

// MarshalText encodes the pressure by name.
func (p Pressure) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a pressure name.
func (p *Pressure) UnmarshalText(b []byte) error {
	v, ok := ParsePressure(string(b))
	if !ok {
		return fmt.Errorf("unknown pressure %q", string(b))
	}
	*p = v
	return nil
}

// PressureThresholds are utilization fractions (used/total) at which a
// resource enters each pressure level.
type PressureThresholds struct {
	Medium   float64 `json:"medium" toml:"medium"`
	High     float64 `json:"high" toml:"high"`
	Critical float64 `json:"critical" toml:"critical"`
}

// DefaultPressureThresholds returns the default classification fractions.
func DefaultPressureThresholds() PressureThresholds {
	return PressureThresholds{Medium: 0.70, High: 0.80, Critical: 0.95}
}

// Classify maps a utilization fraction to a pressure level.
func (t PressureThresholds) Classify(utilization float64) Pressure {
	switch {
	case utilization >= t.Critical:
		return PressureCritical
	case utilization >= t.High:
		return PressureHigh
	case utilization >= t.Medium:
		return PressureMedium
	default:
		return PressureLow
	}
}

// Valid reports whether the fractions are in (0,1] and ascending.
func (t PressureThresholds) Valid() bool {
	return t.Medium > 0 && t.Medium < t.High && t.High < t.Critical && t.Critical <= 1
}

// ResourceState is the sampled state of one resource.
type ResourceState struct {
	Kind ResourceKind `json:"kind"`
	Used float64      `json:"used"`
	// Total is the capacity of the resource.
	Total float64 `json:"total"`
	// Threshold is the absolute admission limit.
	Threshold float64  `json:"threshold"`
	Pressure  Pressure `json:"pressure"`
}

// Utilization returns Used/Total, or 0 when Total is unknown.
func (s ResourceState) Utilization() float64 {
	if s.Total <= 0 {
		return 0
	}
	return s.Used / s.Total
}

// Snapshot holds every resource state from one sampling tick.
type Snapshot struct {
	States    map[ResourceKind]ResourceState `json:"states"`
	Overall   Pressure                       `json:"overall"`
	SampledAt time.Time                      `json:"sampled_at"`
	// Fallback is set when the last sample failed and values were carried over.
	Fallback bool `json:"fallback,omitempty"`
	// Stale is set when no fresh sample arrived within the staleness window.
	Stale bool `json:"stale,omitempty"`
}

// Fresh reports whether the snapshot came from a successful, timely sample.
func (s Snapshot) Fresh() bool {
	return !s.Fallback && !s.Stale && !s.SampledAt.IsZero()
}

// Fits reports whether used + reserved + req stays within the threshold of
// every resource req needs. Before the first successful sample nothing that
// needs a resource fits. Afterwards untracked resources are ignored.
func (s Snapshot) Fits(req, reserved Requirement) bool {
	for _, kind := range ResourceKinds {
		need := req.Amount(kind)
		if need <= 0 {
			continue
		}
		st, ok := s.States[kind]
		if !ok || st.Threshold <= 0 {
			if s.SampledAt.IsZero() {
				return false
			}
			continue
		}
		if st.Used+reserved.Amount(kind)+need > st.Threshold {
			return false
		}
	}
	return true
}

// CanEverFit reports whether req fits within every threshold on an idle system.
func (s Snapshot) CanEverFit(req Requirement) bool {
	for _, kind := range ResourceKinds {
		need := req.Amount(kind)
		if need <= 0 {
			continue
		}
		st, ok := s.States[kind]
		if !ok || st.Threshold <= 0 {
			continue
		}
		if need > st.Threshold {
			return false
		}
	}
	return true
}

// BelowFraction reports whether every tracked resource uses less than
// fraction of its threshold.
func (s Snapshot) BelowFraction(fraction float64) bool {
	for _, st := range s.States {
		if st.Threshold <= 0 {
			continue
		}
		if st.Used >= st.Threshold*fraction {
			return false
		}
	}
	return true
}
