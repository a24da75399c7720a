package ingest

// Guard holds the session capture limits. The hard limit is enforced inside
// the ingest transaction; the guard exists so the decision logic itself stays
// pure and testable.
type Guard struct {
	HardLimit int
	WarnLimit int
}

// WouldExceed reports whether admitting incoming new unique pairs on top of
// the collected count would pass the hard limit. A zero hard limit disables
// the check.
func (g Guard) WouldExceed(collected, incoming int) bool {
	if g.HardLimit <= 0 {
		return false
	}
	return collected+incoming > g.HardLimit
}

// NearLimit reports whether the collected count has reached the warn
// threshold.
func (g Guard) NearLimit(collected int) bool {
	if g.WarnLimit <= 0 {
		return false
	}
	return collected >= g.WarnLimit
}

// Remaining returns how many unique pairs the session can still admit, or -1
// when unlimited.
func (g Guard) Remaining(collected int) int {
	if g.HardLimit <= 0 {
		return -1
	}
	remaining := g.HardLimit - collected
	if remaining < 0 {
		return 0
	}
	return remaining
}
