package engine

import "time"

type SkipReason string

const (
	SkipOffline SkipReason = "offline"
	SkipBusy    SkipReason = "drain already in progress"
)

// Report summarizes one TriggerDrain call.
type Report struct {
	// Skipped is set when the drain did not run at all.
	Skipped SkipReason

	Attempted  int
	Replayed   int
	Failed     int
	Abandoned  int
	Reconciled int

	// Tables lists, in first-seen order, the tables that had at least one
	// mutation accepted by the server. Their cached snapshots are stale.
	Tables []string

	StartedAt  time.Time
	FinishedAt time.Time
}

// Clean reports a drain that ran and saw no failed replay.
func (r *Report) Clean() bool {
	return r.Skipped == "" && r.Failed == 0
}

func (r *Report) addTable(t string) {
	for _, seen := range r.Tables {
		if seen == t {
			return
		}
	}
	r.Tables = append(r.Tables, t)
}
