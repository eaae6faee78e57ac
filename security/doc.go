// Package security implements the individual security checks that make up
// the form security service: client identity resolution, rate limiting,
// origin validation, IP reputation with graduated escalation, payload
// injection heuristics, CSRF token management, security headers, and
// audit logging.
//
// Every check is explicitly assigned to one of two failure policies:
//
//   - Fail-open (availability-first): rate limiter, origin validator,
//     IP reputation, identity resolver, CSRF token generation. Cache
//     errors and malformed inputs degrade to "allow".
//   - Fail-closed (safety-first): payload validation and CSRF token
//     validation. A detected pattern or token mismatch is final and is
//     never overridden by an infrastructure error.
//
// Flipping a check from one policy to the other is a security
// regression, not a refactor; the policy is part of each component's
// documented contract.
package security
