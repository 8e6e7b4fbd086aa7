package domain

import (
	"fmt"
	"strings"
)

// Resolution is the verdict applied when a monitored session reaches a
// terminal state.
type Resolution string

const (
	// ResolutionFail aborts the whole wait with an error.
	ResolutionFail Resolution = "fail"
	// ResolutionContinue settles the session and stops polling it.
	ResolutionContinue Resolution = "continue"
	// ResolutionIgnore notes the state and keeps polling the session.
	ResolutionIgnore Resolution = "ignore"
)

func ParseResolution(raw string) (Resolution, error) {
	switch r := Resolution(strings.ToLower(strings.TrimSpace(raw))); r {
	case ResolutionFail, ResolutionContinue, ResolutionIgnore:
		return r, nil
	default:
		return "", fmt.Errorf("unknown resolution %q (want fail, continue or ignore)", raw)
	}
}

// ResolverPolicy maps every terminal session state to a resolution. One
// field per terminal state keeps the mapping total by construction; the
// policy is a plain value and is never mutated after construction.
type ResolverPolicy struct {
	Inaccessible Resolution
	Stopped      Resolution
	Failed       Resolution
	Done         Resolution
	Suspended    Resolution
}

// DefaultPolicy fails on inaccessible, stopped and failed sessions and
// continues past done and suspended ones.
func DefaultPolicy() ResolverPolicy {
	return ResolverPolicy{
		Inaccessible: ResolutionFail,
		Stopped:      ResolutionFail,
		Failed:       ResolutionFail,
		Done:         ResolutionContinue,
		Suspended:    ResolutionContinue,
	}
}

// PolicyFromStrings builds a policy from the five per-state
// configuration inputs.
func PolicyFromStrings(inaccessible, stopped, failed, done, suspended string) (ResolverPolicy, error) {
	var (
		p   ResolverPolicy
		err error
	)
	if p.Inaccessible, err = ParseResolution(inaccessible); err != nil {
		return ResolverPolicy{}, fmt.Errorf("inaccessible-resolver: %w", err)
	}
	if p.Stopped, err = ParseResolution(stopped); err != nil {
		return ResolverPolicy{}, fmt.Errorf("stopped-resolver: %w", err)
	}
	if p.Failed, err = ParseResolution(failed); err != nil {
		return ResolverPolicy{}, fmt.Errorf("failed-resolver: %w", err)
	}
	if p.Done, err = ParseResolution(done); err != nil {
		return ResolverPolicy{}, fmt.Errorf("done-resolver: %w", err)
	}
	if p.Suspended, err = ParseResolution(suspended); err != nil {
		return ResolverPolicy{}, fmt.Errorf("suspended-resolver: %w", err)
	}

	return p, nil
}

// Resolve returns the resolution for a terminal state. Callers check
// Terminal first; a non-terminal state resolves to ignore so the caller
// keeps polling rather than panicking.
func (p ResolverPolicy) Resolve(state SessionState) Resolution {
	switch state {
	case StateInaccessible:
		return p.Inaccessible
	case StateStopped:
		return p.Stopped
	case StateFailed:
		return p.Failed
	case StateDone:
		return p.Done
	case StateSuspended:
		return p.Suspended
	default:
		return ResolutionIgnore
	}
}

func (p ResolverPolicy) Validate() error {
	for _, field := range []struct {
		name string
		r    Resolution
	}{
		{"inaccessible", p.Inaccessible},
		{"stopped", p.Stopped},
		{"failed", p.Failed},
		{"done", p.Done},
		{"suspended", p.Suspended},
	} {
		switch field.r {
		case ResolutionFail, ResolutionContinue, ResolutionIgnore:
		default:
			return fmt.Errorf("%s: unknown resolution %q", field.name, field.r)
		}
	}

	return nil
}
