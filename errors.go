package formguard

import (
	"fmt"
)

// SecurityViolation is the error raised at explicit denial points, as
// opposed to the ordinary boolean-returning checks. Every
// SecurityViolation surfaced to a caller is accompanied by a violation
// record write for audit and metrics.
type SecurityViolation struct {
	// ViolationType is one of the security.Violation* constants
	ViolationType string

	// Details describes what triggered the violation
	Details string
}

// Error implements the error interface
func (v *SecurityViolation) Error() string {
	return fmt.Sprintf("Security violation: %s - %s", v.ViolationType, v.Details)
}

// NewSecurityViolation creates a new security violation error
func NewSecurityViolation(violationType, details string) *SecurityViolation {
	return &SecurityViolation{
		ViolationType: violationType,
		Details:       details,
	}
}
