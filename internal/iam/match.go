package iam

import (
	"regexp"
	"strings"
)

// wildcardMatch reports whether value matches pattern, where '*' matches
// any run of characters and '?' matches exactly one. Matching is anchored
// and case-sensitive; all other characters are literal.
func wildcardMatch(pattern, value string) bool {
	if pattern == value {
		return true
	}
	if !strings.ContainsAny(pattern, "*?") {
		return false
	}

	var b strings.Builder
	b.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")

	re, err := regexp.Compile(b.String())
	if err != nil {
		return false
	}
	return re.MatchString(value)
}

// matchesAny reports whether any pattern matches any of the values.
func matchesAny(patterns, values []string) bool {
	for _, pattern := range patterns {
		for _, value := range values {
			if wildcardMatch(pattern, value) {
				return true
			}
		}
	}
	return false
}

// applies reports whether the statement is applicable to the request:
// at least one principal pattern matches a request principal, one action
// pattern matches the action, and one resource pattern matches the resource.
func (s Statement) applies(principals []string, action, resource string) bool {
	if !matchesAny(s.Principal, principals) {
		return false
	}
	if !matchesAny(s.Action, []string{action}) {
		return false
	}
	return matchesAny(s.Resource, []string{resource})
}

// IsPermitted evaluates the statements for one (principals, action,
// resource) request. An applicable Deny wins immediately; otherwise the
// request is permitted iff at least one applicable statement allows it.
// No applicable statement means deny.
func IsPermitted(statements []Statement, principals []string, action, resource string) bool {
	allowed := false

	for _, st := range statements {
		if !st.applies(principals, action, resource) {
			continue
		}
		if st.Effect == EffectDeny {
			return false
		}
		allowed = true
	}

	return allowed
}
