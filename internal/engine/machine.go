package engine

import "github.com/you/orderflow/internal/domain"

// Outcome of one pipeline step.
type Outcome int

const (
	// Advance moves the order one stage forward.
	Advance Outcome = iota
	// Fail is a transient failure with retry budget remaining.
	Fail
	// Exhaust is a failure with no budget left.
	Exhaust
)

// Next is the pure transition function for the order lifecycle. The only
// backward edge is Fail, which lands any in-progress attempt back on
// queued; Exhaust lands it on failed. Terminal states absorb everything.
func Next(s domain.Status, o Outcome) domain.Status {
	if s.Terminal() {
		return s
	}
	switch o {
	case Fail:
		return domain.Queued
	case Exhaust:
		return domain.Failed
	}
	switch s {
	case domain.Queued:
		return domain.Pending
	case domain.Pending:
		return domain.Routing
	case domain.Routing:
		return domain.Building
	case domain.Building:
		return domain.Submitted
	case domain.Submitted:
		return domain.Confirmed
	}
	return s
}
