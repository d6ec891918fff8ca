// Package authz evaluates an ordered table of method/path rules against a
// request and its caller identity. The first matching rule decides; no
// merging, no most-specific heuristics, and no match means denial.
package authz

import "strings"

// Rule is one entry of the authorization table. Method "*" matches every
// verb. An empty RequiredRole makes the matched route public.
type Rule struct {
	Method       string
	PathPattern  string
	RequiredRole string
}

func (r Rule) matches(method, path string) bool {
	if r.Method != "*" && !strings.EqualFold(r.Method, method) {
		return false
	}
	return matchPattern(r.PathPattern, path)
}

// matchPattern matches path globs where "*" stands for exactly one segment
// and "**" for any number of segments, including none.
func matchPattern(pattern, path string) bool {
	return matchSegments(splitPath(pattern), splitPath(path))
}

func matchSegments(pattern, path []string) bool {
	if len(pattern) == 0 {
		return len(path) == 0
	}

	if pattern[0] == "**" {
		for i := 0; i <= len(path); i++ {
			if matchSegments(pattern[1:], path[i:]) {
				return true
			}
		}
		return false
	}

	if len(path) == 0 {
		return false
	}

	if pattern[0] != "*" && pattern[0] != path[0] {
		return false
	}

	return matchSegments(pattern[1:], path[1:])
}

func splitPath(p string) []string {
	trimmed := strings.Trim(p, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}
