package domain

import "strings"

// FailurePolicy decides what happens to a user operation when a best-effort
// dependency (rate-limit store, operation log) fails.
type FailurePolicy int

const (
	// FailOpen lets the operation through and only logs the dependency error.
	FailOpen FailurePolicy = iota
	// FailClosed aborts the operation with the dependency error.
	FailClosed
)

// ParseFailurePolicy maps "deny"/"abort"/"closed" to FailClosed; anything else is FailOpen.
func ParseFailurePolicy(v string) FailurePolicy {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "deny", "abort", "closed", "fail-closed":
		return FailClosed
	default:
		return FailOpen
	}
}

func (p FailurePolicy) String() string {
	if p == FailClosed {
		return "fail-closed"
	}
	return "fail-open"
}

// Apply returns nil when the policy lets the operation through, err otherwise.
func (p FailurePolicy) Apply(err error) error {
	if err == nil || p == FailOpen {
		return nil
	}
	return err
}
