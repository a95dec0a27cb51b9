package policy

// Resolver picks the group that applies to a namespace.
type Resolver struct {
	groups []*GroupBuilder
}

// NewResolver creates a Resolver over groups.
func NewResolver(groups ...*GroupBuilder) *Resolver {
	return &Resolver{groups: groups}
}

// Resolve returns the best group for namespace. Exact rules beat prefix
// rules, which beat regex rules; within a kind the longest match wins and
// ties go to the group added first. ok is false when nothing matches.
func (res *Resolver) Resolve(namespace string) (group string, pol Policy, ok bool) {
	if res == nil {
		return "", Policy{}, false
	}
	bestKind := matchKind(-1)
	bestLen := -1

	for _, g := range res.groups {
		for i := range g.rules {
			r := &g.rules[i]
			matched, n := r.match(namespace)
			if !matched {
				continue
			}
			if bestKind < 0 || r.kind < bestKind || (r.kind == bestKind && n > bestLen) {
				bestKind, bestLen = r.kind, n
				group, pol, ok = g.name, g.policy, true
			}
		}
	}
	return group, pol, ok
}
