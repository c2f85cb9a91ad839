package rules

// FindMatchingRule performs the first-match lookup described in spec.md
// §4.2: iterate the ordered rule set, skip disabled rules, return the first
// rule whose method filter admits method and whose PathPattern matches
// path. Ordering is the caller's responsibility (the engine hands in its
// rules in insertion order).
func FindMatchingRule(set []*Rule, path, method string) (*Rule, bool) {
	for _, r := range set {
		if !r.Enabled {
			continue
		}
		if !r.AdmitsMethod(method) {
			continue
		}
		if r.MatchesPath(path) {
			return r, true
		}
	}
	return nil, false
}
