package sampler

import "hyperplay/rules"

// jointMoveSet is a small set of JointMove keyed by hash with a structural
// equality fallback, since two distinct JointMove values can collide on
// Hash.
type jointMoveSet struct {
	byHash map[uint64][]rules.JointMove
}

func newJointMoveSet() *jointMoveSet {
	return &jointMoveSet{byHash: make(map[uint64][]rules.JointMove)}
}

func (s *jointMoveSet) add(jm rules.JointMove) {
	h := jm.Hash()
	for _, existing := range s.byHash[h] {
		if existing.Equal(jm) {
			return
		}
	}
	s.byHash[h] = append(s.byHash[h], jm)
}

func (s *jointMoveSet) remove(jm rules.JointMove) {
	h := jm.Hash()
	bucket := s.byHash[h]
	for i, existing := range bucket {
		if existing.Equal(jm) {
			s.byHash[h] = append(bucket[:i], bucket[i+1:]...)
			return
		}
	}
}

func (s *jointMoveSet) contains(jm rules.JointMove) bool {
	h := jm.Hash()
	for _, existing := range s.byHash[h] {
		if existing.Equal(jm) {
			return true
		}
	}
	return false
}

func (s *jointMoveSet) len() int {
	n := 0
	for _, bucket := range s.byHash {
		n += len(bucket)
	}
	return n
}

// Registries holds the cross-turn consistency state shared by every model
// in the population: BadMoves and InUseMoves keyed by node id, and the
// per-step Blacklist/Whitelist on the agent's own role.
type Registries struct {
	badMoves  map[uint64]*jointMoveSet
	inUse     map[uint64]*jointMoveSet
	blacklist map[int]rules.Move
	whitelist map[int]rules.Move
}

// NewRegistries returns empty registries for a fresh agent instance.
func NewRegistries() *Registries {
	return &Registries{
		badMoves:  make(map[uint64]*jointMoveSet),
		inUse:     make(map[uint64]*jointMoveSet),
		blacklist: make(map[int]rules.Move),
		whitelist: make(map[int]rules.Move),
	}
}

// MarkBad records jm as proven inconsistent at node. Once added, a joint
// move is never removed from BadMoves.
func (r *Registries) MarkBad(node uint64, jm rules.JointMove) {
	set, ok := r.badMoves[node]
	if !ok {
		set = newJointMoveSet()
		r.badMoves[node] = set
	}
	set.add(jm)
}

// IsBad reports whether jm has been proven inconsistent at node.
func (r *Registries) IsBad(node uint64, jm rules.JointMove) bool {
	set, ok := r.badMoves[node]
	return ok && set.contains(jm)
}

// MarkInUse records jm as currently claimed by a live hypergame at node.
func (r *Registries) MarkInUse(node uint64, jm rules.JointMove) {
	set, ok := r.inUse[node]
	if !ok {
		set = newJointMoveSet()
		r.inUse[node] = set
	}
	set.add(jm)
}

// ReleaseInUse removes jm's claim at node, used when a just-pushed frame is
// rejected and the model backtracks off it.
func (r *Registries) ReleaseInUse(node uint64, jm rules.JointMove) {
	if set, ok := r.inUse[node]; ok {
		set.remove(jm)
	}
}

// IsInUse reports whether jm is currently claimed at node.
func (r *Registries) IsInUse(node uint64, jm rules.JointMove) bool {
	set, ok := r.inUse[node]
	return ok && set.contains(jm)
}

// ClearInUse drops every in-use claim, used on timeout recovery.
func (r *Registries) ClearInUse() {
	r.inUse = make(map[uint64]*jointMoveSet)
}

// SetBlacklist records the move the agent expected but was not allowed to
// play at step.
func (r *Registries) SetBlacklist(step int, move rules.Move) {
	r.blacklist[step] = move
}

// SetWhitelist records the move the agent actually played at step.
func (r *Registries) SetWhitelist(step int, move rules.Move) {
	r.whitelist[step] = move
}

// Blacklisted returns the blacklisted move for step, or nil if none.
func (r *Registries) Blacklisted(step int) rules.Move {
	return r.blacklist[step]
}

// Whitelisted returns the whitelisted move for step, or nil if none.
func (r *Registries) Whitelisted(step int) rules.Move {
	return r.whitelist[step]
}

// ClearStep clears step's recorded blacklist/whitelist entries. Timeout
// recovery in agent.Controller.Turn does not call it.
func (r *Registries) ClearStep(step int) {
	delete(r.blacklist, step)
	delete(r.whitelist, step)
}
