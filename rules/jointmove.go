package rules

import (
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// JointMove maps every role to the move it plays simultaneously. It is
// equatable and hashable regardless of construction order.
type JointMove map[Role]Move

// Hash returns a deterministic 64-bit digest independent of map iteration
// order, used as the node id that identifies this joint move among a node's
// siblings.
func (jm JointMove) Hash() uint64 {
	roles := make([]Role, 0, len(jm))
	for r := range jm {
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })

	var b strings.Builder
	for _, r := range roles {
		b.WriteString(string(r))
		b.WriteByte('=')
		b.WriteString(jm[r].String())
		b.WriteByte(';')
	}
	return xxhash.Sum64String(b.String())
}

// Equal reports structural equality, used as the fallback when two joint
// moves collide on Hash.
func (jm JointMove) Equal(other JointMove) bool {
	if len(jm) != len(other) {
		return false
	}
	for r, m := range jm {
		om, ok := other[r]
		if !ok || om.String() != m.String() {
			return false
		}
	}
	return true
}

// Move returns the move assigned to role, or nil if role is absent.
func (jm JointMove) Move(role Role) Move {
	return jm[role]
}

// OpponentKey aggregates every role other than agent into a single
// composite key, treating all non-agent roles as one effective opponent.
// The likelihood tree does not use it: its children are keyed by the hash
// of the full joint move.
func (jm JointMove) OpponentKey(agent Role) string {
	roles := make([]Role, 0, len(jm))
	for r := range jm {
		if r != agent {
			roles = append(roles, r)
		}
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })

	var b strings.Builder
	for _, r := range roles {
		b.WriteString(string(r))
		b.WriteByte('=')
		b.WriteString(jm[r].String())
		b.WriteByte(';')
	}
	return b.String()
}
