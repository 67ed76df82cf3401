package policy

// Rule is one entry of the ordered rule table.
type Rule struct {
	// Pattern is a doublestar path pattern, e.g. /api/admin/**.
	Pattern string
	// Methods restricts the rule to these HTTP methods; empty matches any.
	Methods []string
	// RequiresAuth is false for public endpoints.
	RequiresAuth bool
	// Role, when set, must be held by the principal.
	Role string
}

// Subject is the part of the request identity the engine looks at.
type Subject struct {
	Roles  []string
	Active bool
}

// HasRole reports whether the subject holds role.
func (s *Subject) HasRole(role string) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Verdict is the outcome of a decision.
type Verdict int

const (
	Allow Verdict = iota
	DenyUnauthenticated
	DenyForbidden
)

func (v Verdict) String() string {
	switch v {
	case Allow:
		return "allowed"
	case DenyUnauthenticated:
		return "unauthenticated"
	case DenyForbidden:
		return "forbidden"
	default:
		return "unknown"
	}
}

// Decision represents the result of policy evaluation.
type Decision struct {
	Verdict Verdict
	Reason  string
	// Rule is the matched rule, nil when the default applied.
	Rule *Rule
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.Verdict == Allow
}
