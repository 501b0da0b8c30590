package rules

import (
	"sort"
	"strings"
)

// Term is a single observation atom visible to a role after a joint move.
type Term string

// Percept maps each role to the ordered collection of observation terms it
// sees. Only the agent's own role's slice is ever populated by the
// sampler; the type carries all roles so a Rules Engine can report percepts
// for every role from one Successor/SeesTerms pair if convenient.
type Percept map[Role][]Term

// Equal reports whether two percepts carry the same terms for every role,
// order-sensitive per role.
func (p Percept) Equal(other Percept) bool {
	if len(p) != len(other) {
		return false
	}
	for role, terms := range p {
		oTerms, ok := other[role]
		if !ok || len(terms) != len(oTerms) {
			return false
		}
		for i, t := range terms {
			if oTerms[i] != t {
				return false
			}
		}
	}
	return true
}

// For returns the ordered terms observed by role.
func (p Percept) For(role Role) []Term {
	return p[role]
}

// String renders a percept deterministically for logging.
func (p Percept) String() string {
	roles := make([]Role, 0, len(p))
	for r := range p {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })

	var b strings.Builder
	for _, r := range roles {
		b.WriteString(string(r))
		b.WriteByte(':')
		for _, t := range p[r] {
			b.WriteString(string(t))
			b.WriteByte(',')
		}
		b.WriteByte(';')
	}
	return b.String()
}
