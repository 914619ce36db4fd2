package ports

import (
	"context"

	"github.com/bft-labs/pacer/internal/domain"
)

// Usage is one raw resource reading.
type Usage struct {
	// Used is current consumption per resource.
	Used domain.Requirement
	// Capacity overrides configured totals for resources where it is
	// non-zero (for example physical memory discovered at runtime).
	Capacity domain.Requirement
}

// ResourceSampler reads current resource consumption.
// Implementations must be cheap enough to call at sub-second intervals.
type ResourceSampler interface {
	Sample(ctx context.Context) (Usage, error)
}

// ResourceSamplerFunc adapts a function to ResourceSampler.
type ResourceSamplerFunc func(ctx context.Context) (Usage, error)

// Sample calls f.
func (f ResourceSamplerFunc) Sample(ctx context.Context) (Usage, error) {
	return f(ctx)
}
