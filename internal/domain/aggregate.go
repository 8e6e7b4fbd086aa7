package domain

// OverallStatus summarizes a set of aggregated runs.
type OverallStatus string

const (
	StatusCompleted OverallStatus = "completed"
	StatusFailed    OverallStatus = "failed"
	StatusMixed     OverallStatus = "mixed"
)

// RunTally is the per-session fold shared by the aggregator and the
// report generator, so suite counts and aggregate counts can never
// disagree.
type RunTally struct {
	Total     int
	Passed    int
	Failed    int
	Malformed int
}

// TallyRuns counts one session's run records. Malformed records count
// toward Malformed only; every well-formed record that did not pass
// counts as failed.
func TallyRuns(runs []RunRecord) RunTally {
	var t RunTally
	for _, r := range runs {
		if r.Malformed() {
			t.Malformed++
			continue
		}
		t.Total++
		if r.Outcome == OutcomePass {
			t.Passed++
		}
	}
	t.Failed = t.Total - t.Passed

	return t
}

func (t RunTally) add(other RunTally) RunTally {
	return RunTally{
		Total:     t.Total + other.Total,
		Passed:    t.Passed + other.Passed,
		Failed:    t.Failed + other.Failed,
		Malformed: t.Malformed + other.Malformed,
	}
}

// Overall derives the overall status of the tally. No failures means
// completed, which covers the vacuous empty tally; failures without a
// single pass mean failed; anything else is mixed.
func (t RunTally) Overall() OverallStatus {
	switch {
	case t.Failed == 0:
		return StatusCompleted
	case t.Passed == 0:
		return StatusFailed
	default:
		return StatusMixed
	}
}

// AggregateResult is the order-independent summary of a session map.
// Sessions that never settled with continue are surfaced through
// UnresolvedSessions rather than dropped.
type AggregateResult struct {
	RunTally
	UnresolvedSessions int
	Status             OverallStatus
}

// Aggregate folds the run records of every settled session. It is a
// pure function of its input: no I/O, no clock, and the result does not
// depend on iteration order.
func Aggregate(sessions map[SessionID]*Session) AggregateResult {
	var res AggregateResult
	for _, s := range sessions {
		if s == nil {
			continue
		}
		if s.Settlement != SettlementContinue {
			res.UnresolvedSessions++
			continue
		}
		res.RunTally = res.RunTally.add(TallyRuns(s.Runs))
	}
	res.Status = res.Overall()

	return res
}
