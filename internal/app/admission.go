package app

import "github.com/bft-labs/pacer/internal/domain"

// Decision is the outcome of an admission check for the head batch.
type Decision int

const (
	// DecisionAdmit means the batch fits and may start.
	DecisionAdmit Decision = iota
	// DecisionWait means the batch does not fit now; the tick stops.
	DecisionWait
	// DecisionSplit means the batch can never fit as a whole but its members
	// might one at a time.
	DecisionSplit
	// DecisionReject means a single item can never fit.
	DecisionReject
)

// String returns a human-readable representation of the decision.
func (d Decision) String() string {
	switch d {
	case DecisionAdmit:
		return "admit"
	case DecisionWait:
		return "wait"
	case DecisionSplit:
		return "split"
	case DecisionReject:
		return "reject"
	default:
		return "unknown"
	}
}

// Admission gates batches against the sampled resource state plus the
// requirements reserved by batches admitted since. Reservations cover usage
// the sampler has not observed yet. Not safe for concurrent use.
type Admission struct {
	reserved domain.Requirement
}

// NewAdmission creates an admission controller with nothing reserved.
func NewAdmission() *Admission {
	return &Admission{}
}

// Decide checks a batch of size members requiring req against snap.
func (a *Admission) Decide(snap domain.Snapshot, req domain.Requirement, size int) Decision {
	if snap.Fits(req, a.reserved) {
		return DecisionAdmit
	}
	if snap.CanEverFit(req) {
		return DecisionWait
	}
	if size > 1 {
		return DecisionSplit
	}
	return DecisionReject
}

// Reserve adds req to the outstanding reservations.
func (a *Admission) Reserve(req domain.Requirement) {
	a.reserved = a.reserved.Add(req)
}

// Release removes req from the outstanding reservations.
func (a *Admission) Release(req domain.Requirement) {
	a.reserved = a.reserved.Sub(req)
}

// Reserved returns the outstanding reservations.
func (a *Admission) Reserved() domain.Requirement {
	return a.reserved
}
