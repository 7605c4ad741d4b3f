package auth

import "fmt"

// Denial codes. Stable machine-readable strings: tests, audits, and the
// HTTP layer all key off them.
const (
	CodeUnauthenticated       = "unauthenticated"
	CodeImpersonationReadOnly = "impersonation_read_only"
	CodeMissingCapability     = "missing_capability"
)

// Denial is a policy denial. It is an expected outcome, not a failure of
// the enforcement machinery; callers are required to handle it.
type Denial struct {
	Code   string
	Reason string
}

func (d *Denial) Error() string {
	return "auth: " + d.Reason
}

// RequireCapability is the single gate every privileged operation passes
// through before touching persisted state. It returns nil to allow, or a
// *Denial. Rules apply in order:
//
//  1. no resolved actor → unauthenticated
//  2. impersonating + write capability → impersonation_read_only,
//     regardless of what the impersonated role would normally hold
//  3. role lacks the capability per the registry → missing_capability
func RequireCapability(p Principal, c Capability) error {
	if p.IsZero() {
		return &Denial{Code: CodeUnauthenticated, Reason: "authentication required"}
	}
	if p.Impersonated() && IsWriteCapability(c) {
		return &Denial{Code: CodeImpersonationReadOnly, Reason: "impersonation is read-only"}
	}
	if !HasCapability(p.Role, c) {
		return &Denial{
			Code:   CodeMissingCapability,
			Reason: fmt.Sprintf("role %s lacks capability %s", p.Role, c),
		}
	}
	return nil
}
