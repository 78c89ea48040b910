// Package quorum computes the approval threshold for withdrawal
// execution. Policies are pure functions of the executive count and are
// re-evaluated on every approve/revert/execute call.
package quorum

import "fmt"

// Policy maps an account's executive count to the minimum number of
// distinct approvals required before a withdrawal may execute.
type Policy func(executiveCount int) int

// Unanimous requires every executive to approve. This is the default:
// the observed "X of Y" progress display counts toward the full
// executive set.
func Unanimous(executiveCount int) int {
	return executiveCount
}

// Majority requires a strict majority of the executive set.
func Majority(executiveCount int) int {
	return executiveCount/2 + 1
}

// ForName resolves a configured policy name.
func ForName(name string) (Policy, error) {
	switch name {
	case "", "unanimous":
		return Unanimous, nil
	case "majority":
		return Majority, nil
	default:
		return nil, fmt.Errorf("unknown quorum policy %q", name)
	}
}
