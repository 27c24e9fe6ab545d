package service

import "fmt"

// DefaultReconcileThreshold is the relative discrepancy above which an arrival
// is flagged for manual review.
const DefaultReconcileThreshold = 0.05

// Reconciliation is the outcome of comparing a tally against the estimate the
// lot was created with. A flag never blocks the transition — it is advisory
// metadata for the follow-up workflow.
type Reconciliation struct {
	Accepted bool
	Flagged  bool
	Delta    int // measured - estimated
}

// Reconciler compares estimated vs. measured joint counts.
type Reconciler struct {
	threshold float64
}

func NewReconciler(threshold float64) *Reconciler {
	if threshold <= 0 {
		threshold = DefaultReconcileThreshold
	}
	return &Reconciler{threshold: threshold}
}

// Reconcile accepts any positive measured quantity. A zero or negative
// measurement can never be committed and fails with ErrInvalidQuantity.
func (r *Reconciler) Reconcile(estimated, measured int) (Reconciliation, error) {
	if measured <= 0 {
		return Reconciliation{}, fmt.Errorf("measured quantity %d: %w", measured, ErrInvalidQuantity)
	}
	delta := measured - estimated
	base := estimated
	if base < 1 {
		base = 1
	}
	ratio := float64(delta) / float64(base)
	if ratio < 0 {
		ratio = -ratio
	}
	return Reconciliation{
		Accepted: true,
		Flagged:  ratio > r.threshold,
		Delta:    delta,
	}, nil
}
