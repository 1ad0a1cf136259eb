package pnr

// Changed reports whether the tracked status moved between two captures.
//
// A first observation (prev == nil) is never a change, and neither is a pair
// where either side has no passengers. Only the first passenger's current
// status is compared; other passengers and fields are ignored.
func Changed(prev *Record, next Record) bool {
	if prev == nil {
		return false
	}
	old, ok := prev.Lead()
	if !ok {
		return false
	}
	cur, ok := next.Lead()
	if !ok {
		return false
	}
	return old.CurrentStatus != cur.CurrentStatus
}
