package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrNoSessions         = errors.New("no sessions to wait for")
	ErrMalformedRunRecord = errors.New("malformed run record")
)

// TransportError is any failure talking to the server: network errors,
// non-2xx responses, undecodable payloads. Transport errors are never
// retried and abort the operation that hit them.
type TransportError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: server returned %d: %s", e.Op, e.StatusCode, e.Message)
	}

	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// ResolutionError reports the session whose terminal state resolved to
// fail and aborted the wait.
type ResolutionError struct {
	ID    SessionID
	State SessionState
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("session %s ended in state %q", e.ID, e.State)
}

// TimeoutError reports a wait deadline that elapsed with sessions still
// unsettled. Unsettled maps each remaining session to its last observed
// state.
type TimeoutError struct {
	Deadline  time.Duration
	Unsettled map[SessionID]SessionState
}

func (e *TimeoutError) Error() string {
	entries := make([]string, 0, len(e.Unsettled))
	for id, state := range e.Unsettled {
		if state == "" {
			state = "never observed"
		}
		entries = append(entries, fmt.Sprintf("%s (%s)", id, state))
	}
	sort.Strings(entries)

	return fmt.Sprintf("deadline %s elapsed with %d session(s) unsettled: %s",
		e.Deadline, len(e.Unsettled), strings.Join(entries, ", "))
}
