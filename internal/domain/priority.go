package domain

import (
	"fmt"
	"strings"
)

// Priority orders work items. Lower values are more urgent.
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityMedium
	PriorityLow
	PriorityBackground
)

// String returns a human-readable representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityCritical:
		return "critical"
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	case PriorityBackground:
		return "background"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Valid reports whether p is one of the defined priorities.
func (p Priority) Valid() bool {
	return p >= PriorityCritical && p <= PriorityBackground
}

// MoreUrgentThan reports whether p sorts strictly ahead of other.
func (p Priority) MoreUrgentThan(other Priority) bool {
	return p < other
}

// ParsePriority parses a priority name or its numeric form.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "0":
		return PriorityCritical, nil
	case "high", "1":
		return PriorityHigh, nil
	case "medium", "2":
		return PriorityMedium, nil
	case "low", "3":
		return PriorityLow, nil
	case "background", "4":
		return PriorityBackground, nil
	}
	return 0, fmt.Errorf("unknown priority %q", s)
}

// MarshalText encodes the priority by name.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalJSON accepts a priority name or number.
func (p *Priority) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	v, err := ParsePriority(s)
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// AveragePriority discretizes the mean of the given priorities:
// avg<=1 is high, <=2 medium, <=3 low, anything above background.
// An empty slice yields background.
func AveragePriority(ps []Priority) Priority {
	if len(ps) == 0 {
		return PriorityBackground
	}
	sum := 0
	for _, p := range ps {
		sum += int(p)
	}
	avg := float64(sum) / float64(len(ps))
	switch {
	case avg <= 1:
		return PriorityHigh
	case avg <= 2:
		return PriorityMedium
	case avg <= 3:
		return PriorityLow
	default:
		return PriorityBackground
	}
}
