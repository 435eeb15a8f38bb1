package models

import (
	"sort"
	"strings"
)

// ScopeID names one conversation: a group room id as-is, or a direct
// thread id of the form "dm:<a>|<b>" derived from the participant pair.
type ScopeID string

const directPrefix = "dm:"

// DirectScope derives the deterministic direct-thread id for a pair of
// participants. The pair is lowercased and sorted so both sides compute
// the same id.
func DirectScope(a, b string) ScopeID {
	parts := []string{
		strings.ToLower(strings.TrimSpace(a)),
		strings.ToLower(strings.TrimSpace(b)),
	}
	sort.Strings(parts)
	return ScopeID(directPrefix + parts[0] + "|" + parts[1])
}

// IsDirect reports whether the scope is a direct thread.
func (s ScopeID) IsDirect() bool {
	return strings.HasPrefix(string(s), directPrefix)
}

// Participants returns the two participants of a direct scope, or nil for
// group scopes and malformed ids.
func (s ScopeID) Participants() []string {
	if !s.IsDirect() {
		return nil
	}
	rest := strings.TrimPrefix(string(s), directPrefix)
	parts := strings.Split(rest, "|")
	out := make([]string, 0, 2)
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) != 2 {
		return nil
	}
	return out
}
