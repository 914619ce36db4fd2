package domain

import (
	"fmt"
	"time"
)

// DegradationLevel is how far an item's quality has been reduced.
type DegradationLevel int

const (
	DegradationNone DegradationLevel = iota
	DegradationModerate
	DegradationSignificant
	DegradationSevere
)

// String returns a human-readable representation of the level.
func (l DegradationLevel) String() string {
	switch l {
	case DegradationNone:
		return "none"
	case DegradationModerate:
		return "moderate"
	case DegradationSignificant:
		return "significant"
	case DegradationSevere:
		return "severe"
	default:
		return "unknown"
	}
}

// TimeoutMultiplier scales the execution timeout of degraded work, which
// runs on a reduced resource budget.
func (l DegradationLevel) TimeoutMultiplier() float64 {
	switch l {
	case DegradationModerate:
		return 1.25
	case DegradationSignificant:
		return 1.5
	case DegradationSevere:
		return 2.0
	default:
		return 1.0
	}
}

// DegradationOption describes what an item looks like at one level.
type DegradationOption struct {
	Level DegradationLevel `json:"level"`
	// ResourceReduction is the fraction of the requirement saved, in [0,1).
	ResourceReduction float64 `json:"resource_reduction"`
	// QualityImpact is a producer-defined score, higher is worse.
	QualityImpact float64 `json:"quality_impact"`
}

// Validate checks that the option is usable.
func (o DegradationOption) Validate() error {
	if o.Level <= DegradationNone || o.Level > DegradationSevere {
		return fmt.Errorf("%w: level %d out of range", ErrInvalidDegradationConfig, o.Level)
	}
	if o.ResourceReduction < 0 || o.ResourceReduction >= 1 {
		return fmt.Errorf("%w: resource reduction %.2f not in [0,1)", ErrInvalidDegradationConfig, o.ResourceReduction)
	}
	return nil
}

// DegradationStep is one entry of a degradation history.
type DegradationStep struct {
	Level    DegradationLevel `json:"level"`
	Pressure Pressure         `json:"pressure"`
	At       time.Time        `json:"at"`
}

// DegradationRecord is the ordered history of levels applied to an item.
type DegradationRecord struct {
	History []DegradationStep `json:"history,omitempty"`
}

// Current returns the level in effect.
func (r DegradationRecord) Current() DegradationLevel {
	if len(r.History) == 0 {
		return DegradationNone
	}
	return r.History[len(r.History)-1].Level
}

// Record appends a step.
func (r *DegradationRecord) Record(level DegradationLevel, pressure Pressure, at time.Time) {
	r.History = append(r.History, DegradationStep{Level: level, Pressure: pressure, At: at})
}
