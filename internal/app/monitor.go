package app

import (
	"fmt"
	"time"

	"github.com/bft-labs/pacer/internal/domain"
	"github.com/bft-labs/pacer/internal/ports"
)

// ResourceLimit configures one tracked resource.
type ResourceLimit struct {
	// Total is the capacity. Zero means detected: the sampler's reported
	// capacity is used instead.
	Total float64
	// Admission is the fraction of Total batches may use (the threshold).
	Admission float64
	// Pressure holds the classification fractions.
	Pressure domain.PressureThresholds
}

// DefaultResourceLimits returns limits sized for a small household device.
func DefaultResourceLimits() map[domain.ResourceKind]ResourceLimit {
	p := domain.DefaultPressureThresholds()
	return map[domain.ResourceKind]ResourceLimit{
		domain.ResourceMemory:  {Total: 512, Admission: 0.85, Pressure: p},
		domain.ResourceCPU:     {Total: 100, Admission: 0.85, Pressure: p},
		domain.ResourceNetwork: {Total: 8, Admission: 0.85, Pressure: p},
		domain.ResourceIO:      {Total: 8, Admission: 0.85, Pressure: p},
		domain.ResourceVoice:   {Total: 2, Admission: 1, Pressure: p},
		domain.ResourceAvatar:  {Total: 2, Admission: 1, Pressure: p},
	}
}

// ResourceMonitor turns raw samples into resource states and keeps the last
// known snapshot when sampling fails. Not safe for concurrent use.
type ResourceMonitor struct {
	limits     map[domain.ResourceKind]ResourceLimit
	staleAfter time.Duration
	logger     ports.Logger

	last        domain.Snapshot
	lastSuccess time.Time
}

// NewResourceMonitor creates a monitor. Until the first successful sample
// the overall pressure is HIGH with no per-resource states.
func NewResourceMonitor(limits map[domain.ResourceKind]ResourceLimit, staleAfter time.Duration, logger ports.Logger) *ResourceMonitor {
	return &ResourceMonitor{
		limits:     limits,
		staleAfter: staleAfter,
		logger:     logger,
		last: domain.Snapshot{
			States:   map[domain.ResourceKind]domain.ResourceState{},
			Overall:  domain.PressureHigh,
			Fallback: true,
		},
	}
}

// Observe records the result of one sampling tick and returns the snapshot
// in effect. On error the last known snapshot is kept and flagged.
func (m *ResourceMonitor) Observe(now time.Time, usage ports.Usage, err error) domain.Snapshot {
	if err != nil {
		m.logger.Warn("resource sampling failed, keeping last known pressure",
			ports.Err(fmt.Errorf("%w: %v", domain.ErrResourceSampling, err)),
			ports.Stringer("pressure", m.last.Overall),
		)
		m.last.Fallback = true
		return m.Current(now)
	}

	snap := domain.Snapshot{
		States:    make(map[domain.ResourceKind]domain.ResourceState, len(m.limits)),
		Overall:   domain.PressureLow,
		SampledAt: now,
	}
	for _, kind := range domain.ResourceKinds {
		lim, ok := m.limits[kind]
		if !ok {
			continue
		}
		total := lim.Total
		if total <= 0 {
			total = usage.Capacity.Amount(kind)
		}
		st := domain.ResourceState{
			Kind:      kind,
			Used:      usage.Used.Amount(kind),
			Total:     total,
			Threshold: total * lim.Admission,
		}
		st.Pressure = lim.Pressure.Classify(st.Utilization())
		if st.Pressure > snap.Overall {
			snap.Overall = st.Pressure
		}
		snap.States[kind] = st
	}

	m.last = snap
	m.lastSuccess = now
	return snap
}

// Current returns the snapshot in effect at now. A snapshot older than the
// staleness window is flagged stale and reports at least HIGH.
func (m *ResourceMonitor) Current(now time.Time) domain.Snapshot {
	snap := m.last
	if m.staleAfter > 0 && !m.lastSuccess.IsZero() && now.Sub(m.lastSuccess) > m.staleAfter {
		snap.Stale = true
		if snap.Overall < domain.PressureHigh {
			snap.Overall = domain.PressureHigh
		}
	}
	return snap
}

// CanEverFit reports whether req fits every known threshold on an idle
// system. Before the first successful sample the configured totals decide.
func (m *ResourceMonitor) CanEverFit(req domain.Requirement) bool {
	if !m.last.SampledAt.IsZero() {
		return m.last.CanEverFit(req)
	}
	for kind, lim := range m.limits {
		if lim.Total > 0 && req.Amount(kind) > lim.Total*lim.Admission {
			return false
		}
	}
	return true
}

// SetLimits replaces the resource configuration used by later samples.
func (m *ResourceMonitor) SetLimits(limits map[domain.ResourceKind]ResourceLimit) {
	m.limits = limits
}
