package domain

import "strings"

// RunOutcome classifies a run's reported status.
type RunOutcome string

const (
	OutcomePass  RunOutcome = "pass"
	OutcomeFail  RunOutcome = "fail"
	OutcomeOther RunOutcome = "other"
)

// OutcomeFromStatus maps the server's run status string to an outcome.
// Anything that is neither passed nor failed (stopped, running, waiting,
// ...) is other.
func OutcomeFromStatus(status string) RunOutcome {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "passed":
		return OutcomePass
	case "failed":
		return OutcomeFail
	default:
		return OutcomeOther
	}
}

// RunRecord is one run executed within a session.
type RunRecord struct {
	Name     string
	Group    string
	Status   string
	Outcome  RunOutcome
	Seed     string
	Duration int64

	// Attributes holds extra projected run attributes, such as
	// first_failure_name or user-configured keys. Absent attributes are
	// simply missing from the map.
	Attributes map[string]string
}

// Malformed reports whether the record is unusable: a run without a name
// or a status cannot be attributed. Malformed records are counted and
// flagged, never silently dropped.
func (r RunRecord) Malformed() bool {
	return strings.TrimSpace(r.Name) == "" || strings.TrimSpace(r.Status) == ""
}

// OutcomeLabel returns the label shown for a non-passing run, preferring
// the server's own status string.
func (r RunRecord) OutcomeLabel() string {
	if s := strings.TrimSpace(r.Status); s != "" {
		return s
	}

	return string(r.Outcome)
}

// DisplayName returns the report-facing case name, with the run's seed
// appended when requested and present.
func (r RunRecord) DisplayName(appendSeed bool) string {
	if !appendSeed || r.Seed == "" {
		return r.Name
	}

	return r.Name + "-seed" + r.Seed
}
