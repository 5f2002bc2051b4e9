// audit/retention.go
package audit

import "time"

// Reason explains why a retention decision kept or deleted an entry.
type Reason string

const (
	ReasonSnapshot      Reason = "protected snapshot"
	ReasonMinVersions   Reason = "within minimum retained count"
	ReasonMaxAge        Reason = "exceeds absolute age ceiling"
	ReasonOutsideWindow Reason = "outside sliding window"
	ReasonWithinWindow  Reason = "within window"
)

// Decision pairs an entry with its retention verdict.
type Decision struct {
	Entry  Entry
	Keep   bool
	Reason Reason
}

// Classify walks entries already sorted newest-first (version descending) and
// decides KEEP or DELETE for each. Rules in precedence order: protected
// snapshots are always kept; the MinVersions most recent entries are kept by
// recency rank; anything older than now minus MaxDays is deleted; anything
// outside the sliding window (latest entry timestamp minus WindowDays) is
// deleted; everything else is kept. Callers own the sort order, since the
// rank check is positional.
func Classify(entries []Entry, policy Policy, now time.Time) []Decision {
	if len(entries) == 0 {
		return nil
	}
	policy = policy.withDefaults()

	latest := entries[0].Timestamp
	windowCutoff := latest.AddDate(0, 0, -policy.WindowDays)
	maxAgeCutoff := now.AddDate(0, 0, -policy.MaxDays)

	decisions := make([]Decision, 0, len(entries))
	for rank, entry := range entries {
		decisions = append(decisions, Decision{
			Entry:  entry,
			Keep:   true,
			Reason: ReasonWithinWindow,
		})
		d := &decisions[rank]

		switch {
		case entry.IsSnapshot:
			d.Reason = ReasonSnapshot
		case rank < policy.MinVersions:
			d.Reason = ReasonMinVersions
		case entry.Timestamp.Before(maxAgeCutoff):
			d.Keep = false
			d.Reason = ReasonMaxAge
		case entry.Timestamp.Before(windowCutoff):
			d.Keep = false
			d.Reason = ReasonOutsideWindow
		}
	}
	return decisions
}
