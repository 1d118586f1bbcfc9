package domain

// Status represents service health severity. The same scale doubles as
// check importance: a failing check can pull its service up to, at most,
// the check's own importance level.
type Status string

// Statuses, from healthy to worst.
const (
	StatusPassing  Status = "PASSING"
	StatusWarning  Status = "WARNING"
	StatusError    Status = "ERROR"
	StatusCritical Status = "CRITICAL"
)

// IsValid checks if the status is valid.
func (s Status) IsValid() bool {
	switch s {
	case StatusPassing, StatusWarning, StatusError, StatusCritical:
		return true
	}
	return false
}

// IsImportance reports whether the status is usable as a check importance.
// PASSING is a service-level state only.
func (s Status) IsImportance() bool {
	return s == StatusWarning || s == StatusError || s == StatusCritical
}

// Rank returns the position of the status on the severity scale.
// Higher is worse.
func (s Status) Rank() int {
	switch s {
	case StatusWarning:
		return 1
	case StatusError:
		return 2
	case StatusCritical:
		return 3
	default:
		return 0
	}
}

// MostSevere returns the worst status among the given importances,
// or PASSING when the list is empty.
func MostSevere(importances []Status) Status {
	worst := StatusPassing
	for _, s := range importances {
		if s.Rank() > worst.Rank() {
			worst = s
		}
	}
	return worst
}

// CalculatedStatus is a check's derived pass/fail state after debounce
// is applied. It is always recomputed from result history, never set
// directly.
type CalculatedStatus string

// Calculated statuses.
const (
	CalculatedPassing CalculatedStatus = "passing"
	CalculatedFailing CalculatedStatus = "failing"
)
