package domain

import "strings"

type SessionID string

// SessionState is the status string the server reports for a session.
// The set is open: servers may report values outside the named
// constants, and unknown values are treated as still in progress.
type SessionState string

const (
	StateQueued       SessionState = "queued"
	StateRunning      SessionState = "running"
	StateDone         SessionState = "done"
	StateStopped      SessionState = "stopped"
	StateFailed       SessionState = "failed"
	StateInaccessible SessionState = "inaccessible"
	StateSuspended    SessionState = "suspended"
	StateCompleted    SessionState = "completed"
	StateWaiting      SessionState = "waiting"
)

// Terminal reports whether the state ends a session's lifecycle. Exactly
// five states are terminal; every other value, including ones this
// package does not know about, keeps the session eligible for polling.
func (s SessionState) Terminal() bool {
	switch s {
	case StateInaccessible, StateStopped, StateFailed, StateDone, StateSuspended:
		return true
	default:
		return false
	}
}

// Settlement tracks how far a session has progressed through the wait
// loop.
type Settlement string

const (
	// SettlementUnsettled marks a session still being polled.
	SettlementUnsettled Settlement = "unsettled"

	// SettlementContinue marks a session whose terminal state resolved
	// to continue; its run records are attached and it is never polled
	// again.
	SettlementContinue Settlement = "settled-continue"

	// SettlementIgnorePending marks a session whose last terminal state
	// resolved to ignore. It stays in the polling set.
	SettlementIgnorePending Settlement = "settled-ignore-pending"

	// SettlementFailedFast marks the session whose terminal state
	// aborted the whole wait.
	SettlementFailedFast Settlement = "failed-fast"
)

// SessionStatus is one status snapshot from the server's session list
// endpoint.
type SessionStatus struct {
	State       SessionState
	Name        string
	Owner       string
	RunningRuns int64
	WaitingRuns int64
	TotalRuns   int64
	PassedRuns  int64
	FailedRuns  int64
	OtherRuns   int64
}

// Session is the accumulated view of one monitored session: the last
// observed status, how far it has settled, and the run records attached
// once it settles with continue.
type Session struct {
	ID         SessionID
	Status     SessionStatus
	Settlement Settlement
	Runs       []RunRecord
}

func NewSession(id SessionID) *Session {
	return &Session{ID: id, Settlement: SettlementUnsettled}
}

// Pending reports whether the session still needs polling. Sessions
// resolved as ignore remain pending.
func (s *Session) Pending() bool {
	return s.Settlement == SettlementUnsettled || s.Settlement == SettlementIgnorePending
}

// NormalizeSessionIDs trims identifiers, drops empty ones and removes
// duplicates while preserving order.
func NormalizeSessionIDs(ids []SessionID) []SessionID {
	out := make([]SessionID, 0, len(ids))
	seen := make(map[SessionID]struct{}, len(ids))
	for _, id := range ids {
		trimmed := SessionID(strings.TrimSpace(string(id)))
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}

	return out
}
