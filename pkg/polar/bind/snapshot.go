package bind

// Bsp returns an opaque snapshot of this manager's (and its followers')
// current state, for later use with Backtrack.
func (m *Manager) Bsp() Bsp {
	followerBsps := make(map[FollowerID]Bsp, len(m.followers))
	for id, f := range m.followers {
		followerBsps[id] = f.Bsp()
	}
	return Bsp{Index: len(m.bindings), Followers: followerBsps}
}

// Backtrack discards every binding recorded since to was taken, in this
// manager and recursively in its followers.
func (m *Manager) Backtrack(to Bsp) {
	for id, f := range m.followers {
		if followerTo, ok := to.Followers[id]; ok {
			f.Backtrack(followerTo)
		} else {
			f.Backtrack(Bsp{})
		}
	}
	m.bindings = m.bindings[:to.Index]
}

// AddFollower registers follower as an additive mirror of this manager:
// every binding and constraint recorded on m from now on is also applied
// to follower. Negation-as-failure runs its sub-query against a follower,
// then inverts whatever it bound (spec §5 "Negation").
func (m *Manager) AddFollower(follower *Manager) FollowerID {
	if m.followers == nil {
		m.followers = make(map[FollowerID]*Manager)
	}
	id := m.nextFollowerID
	m.followers[id] = follower
	m.nextFollowerID++
	return id
}

// RemoveFollower detaches and returns the follower registered under id.
func (m *Manager) RemoveFollower(id FollowerID) *Manager {
	f := m.followers[id]
	delete(m.followers, id)
	return f
}

// BindingsAfter returns every (variable, deep-dereferenced value) pair
// bound since after, skipping temporaries (names starting with "_") when
// includeTemps is false — the shape external_call/query result bindings
// are reported in.
func (m *Manager) BindingsAfter(includeTemps bool, after Bsp) map[string]interface{} {
	out := make(map[string]interface{})
	for _, b := range m.bindings[after.Index:] {
		name := string(b.Var)
		if !includeTemps && len(name) > 0 && name[0] == '_' {
			continue
		}
		out[name] = m.DeepDeref(b.Val)
	}
	return out
}
