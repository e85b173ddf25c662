// Package filter decides whether a message should be dropped without
// notification, based on configured sender and subject patterns.
package filter

import "strings"

// Rules holds the ignore patterns. Matching is case-sensitive substring
// containment; an empty list disables filtering on that axis. This exact
// semantics is relied on by existing deployments and must not be widened
// to globs or regexes.
type Rules struct {
	Senders  []string
	Subjects []string
}

// Ignore reports whether a message with the given From and Subject header
// values should be discarded. The two axes are combined with OR.
func (r Rules) Ignore(from, subject string) bool {
	return containsAny(from, r.Senders) || containsAny(subject, r.Subjects)
}

func containsAny(value string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(value, p) {
			return true
		}
	}
	return false
}
