package authz

import "slices"

// Decision is the terminal outcome of evaluating one request.
type Decision int

const (
	// Unauthenticated rejects the request with 401; it is also the
	// deny-by-default outcome when no rule matches.
	Unauthenticated Decision = iota
	// Forbidden rejects an authenticated caller lacking the required role.
	Forbidden
	// Permit passes the request on to the downstream proxy.
	Permit
)

func (d Decision) String() string {
	switch d {
	case Permit:
		return "permit"
	case Forbidden:
		return "forbidden"
	default:
		return "unauthenticated"
	}
}

// Subject is the request-scoped caller identity established by token
// validation. The zero value is the anonymous caller.
type Subject struct {
	Name  string
	Roles []string
}

// Anonymous reports whether no validated identity is present.
func (s Subject) Anonymous() bool {
	return s.Name == ""
}

// HasRole reports flat role membership.
func (s Subject) HasRole(role string) bool {
	return slices.Contains(s.Roles, role)
}

// Engine holds the process-wide rule table, loaded once at startup and
// read-only thereafter, so concurrent evaluations need no locking.
type Engine struct {
	rules []Rule
}

// NewEngine builds an engine over the rules in declared order.
func NewEngine(rules []Rule) *Engine {
	return &Engine{rules: slices.Clone(rules)}
}

// Evaluate scans the table in order and returns the decision of the first
// rule matching method and path. Requests matching no rule are rejected.
func (e *Engine) Evaluate(method, path string, subject Subject) Decision {
	for _, rule := range e.rules {
		if !rule.matches(method, path) {
			continue
		}

		if rule.RequiredRole == "" {
			return Permit
		}
		if subject.Anonymous() {
			return Unauthenticated
		}
		if !subject.HasRole(rule.RequiredRole) {
			return Forbidden
		}
		return Permit
	}

	return Unauthenticated
}
