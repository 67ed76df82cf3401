package policy

import (
	"fmt"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// RoleAdmin is the role required by the administrative rules.
const RoleAdmin = "ADMIN"

// Engine evaluates an immutable, ordered rule table. Safe for concurrent use.
type Engine struct {
	rules []Rule
}

// NewEngine validates every pattern and returns an engine over a copy of rules.
func NewEngine(rules ...Rule) (*Engine, error) {
	copied := make([]Rule, len(rules))
	for i, r := range rules {
		if !strings.HasPrefix(r.Pattern, "/") {
			return nil, fmt.Errorf("rule %d: pattern %q must start with /", i, r.Pattern)
		}
		if !doublestar.ValidatePattern(r.Pattern) {
			return nil, fmt.Errorf("rule %d: invalid pattern %q", i, r.Pattern)
		}
		methods := make([]string, len(r.Methods))
		for j, m := range r.Methods {
			methods[j] = strings.ToUpper(m)
		}
		r.Methods = methods
		copied[i] = r
	}
	return &Engine{rules: copied}, nil
}

// DefaultRules builds the standard table: administrative paths first, then
// the public paths. Everything else falls through to the authenticated default.
func DefaultRules(publicPaths []string) []Rule {
	rules := []Rule{
		{Pattern: "/api/admin", RequiresAuth: true, Role: RoleAdmin},
		{Pattern: "/api/admin/**", RequiresAuth: true, Role: RoleAdmin},
	}
	for _, p := range publicPaths {
		rules = append(rules, Rule{Pattern: p})
	}
	return rules
}

// Rules returns a copy of the rule table.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	copy(out, e.rules)
	return out
}

// Decide evaluates the request. subject is nil for anonymous requests.
func (e *Engine) Decide(method, path string, subject *Subject) Decision {
	rule := e.match(strings.ToUpper(method), path)

	requiresAuth := true
	role := ""
	if rule != nil {
		requiresAuth = rule.RequiresAuth
		role = rule.Role
	}

	if !requiresAuth {
		return Decision{Verdict: Allow, Reason: "public", Rule: rule}
	}
	if subject == nil {
		return Decision{Verdict: DenyUnauthenticated, Reason: "no identity", Rule: rule}
	}
	if !subject.Active {
		return Decision{Verdict: DenyForbidden, Reason: "account disabled", Rule: rule}
	}
	if role != "" && !subject.HasRole(role) {
		return Decision{Verdict: DenyForbidden, Reason: "missing role " + role, Rule: rule}
	}
	return Decision{Verdict: Allow, Reason: "authenticated", Rule: rule}
}

func (e *Engine) match(method, path string) *Rule {
	for i := range e.rules {
		r := &e.rules[i]
		if len(r.Methods) > 0 && !contains(r.Methods, method) {
			continue
		}
		// patterns are validated in NewEngine, so ErrBadPattern cannot occur
		if ok, _ := doublestar.Match(r.Pattern, path); ok {
			return r
		}
	}
	return nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
