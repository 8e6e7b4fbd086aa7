package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"goa.design/clue/log"

	"github.com/silicon-ci/vmanager-action/internal/domain"
	"github.com/silicon-ci/vmanager-action/internal/ports"
)

const defaultPollInterval = 10 * time.Second

// PollerConfig is fixed at construction time. A zero Deadline waits
// indefinitely.
type PollerConfig struct {
	Interval time.Duration
	Deadline time.Duration
}

// Poller drives a set of sessions to settlement: it polls their state on
// a fixed interval and applies a resolver policy to every terminal state
// it observes.
type Poller struct {
	client   ports.StatusClient
	policy   domain.ResolverPolicy
	interval time.Duration
	deadline time.Duration
}

func NewPoller(client ports.StatusClient, policy domain.ResolverPolicy, cfg PollerConfig) *Poller {
	if policy == (domain.ResolverPolicy{}) {
		policy = domain.DefaultPolicy()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	return &Poller{
		client:   client,
		policy:   policy,
		interval: interval,
		deadline: cfg.Deadline,
	}
}

// observation carries one session's status query result across the round
// barrier.
type observation struct {
	id     domain.SessionID
	status domain.SessionStatus
	err    error
}

// Wait polls every session until each one settles with continue, until a
// fail resolution or a transport error aborts the whole wait, or until
// the deadline elapses. Transport errors are never retried.
//
// A policy that resolves a recurring terminal state to ignore keeps the
// session in the polling set; combined with a zero deadline, Wait then
// blocks until the context is canceled. That is the documented contract
// of ignore, not a bug.
func (p *Poller) Wait(ctx context.Context, ids []domain.SessionID) (map[domain.SessionID]*domain.Session, error) {
	ids = domain.NormalizeSessionIDs(ids)

	sessions := make(map[domain.SessionID]*domain.Session, len(ids))
	for _, id := range ids {
		sessions[id] = domain.NewSession(id)
	}
	if len(ids) == 0 {
		return sessions, nil
	}

	if p.deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.deadline)
		defer cancel()
	}

	for round := 1; ; round++ {
		if ctx.Err() != nil {
			return nil, p.waitErr(ctx, sessions)
		}

		pending := pendingIDs(ids, sessions)
		log.Debugf(ctx, "poll round %d: %d of %d session(s) pending", round, len(pending), len(ids))

		// One status query per pending session, each writing its own
		// slot, then a barrier before any result is interpreted.
		observations := p.observe(ctx, pending)

		// Interpret in input order so the first problem wins
		// deterministically. Everything after it in the same round was
		// awaited at the barrier but is discarded.
		for _, obs := range observations {
			if obs.err != nil {
				if ctx.Err() != nil {
					return nil, p.waitErr(ctx, sessions)
				}
				return nil, fmt.Errorf("query session %s: %w", obs.id, obs.err)
			}

			s := sessions[obs.id]
			s.Status = obs.status
			state := obs.status.State
			if state.Terminal() && p.policy.Resolve(state) == domain.ResolutionFail {
				s.Settlement = domain.SettlementFailedFast
				return nil, &domain.ResolutionError{ID: obs.id, State: state}
			}
		}

		// No problem this round: apply the remaining resolutions.
		for _, obs := range observations {
			s := sessions[obs.id]
			state := obs.status.State
			if !state.Terminal() {
				s.Settlement = domain.SettlementUnsettled
				continue
			}
			switch p.policy.Resolve(state) {
			case domain.ResolutionIgnore:
				s.Settlement = domain.SettlementIgnorePending
				log.Debugf(ctx, "session %s is %s, ignoring and polling on", obs.id, state)
			case domain.ResolutionContinue:
				runs, err := p.client.SessionRuns(ctx, obs.id)
				if err != nil {
					if ctx.Err() != nil {
						return nil, p.waitErr(ctx, sessions)
					}
					return nil, fmt.Errorf("fetch runs for session %s: %w", obs.id, err)
				}
				s.Runs = runs
				s.Settlement = domain.SettlementContinue
				log.Printf(ctx, "session %s settled as %s with %d run(s)", obs.id, state, len(runs))
			}
		}

		if allSettled(ids, sessions) {
			return sessions, nil
		}

		timer := time.NewTimer(p.interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, p.waitErr(ctx, sessions)
		case <-timer.C:
		}
	}
}

func (p *Poller) observe(ctx context.Context, ids []domain.SessionID) []observation {
	observations := make([]observation, len(ids))

	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, err := p.client.SessionState(ctx, id)
			observations[i] = observation{id: id, status: status, err: err}
		}()
	}
	wg.Wait()

	return observations
}

// waitErr translates a finished context into the caller-facing error: a
// deadline turns into a timeout listing every unsettled session with its
// last observed state, a cancellation propagates as such.
func (p *Poller) waitErr(ctx context.Context, sessions map[domain.SessionID]*domain.Session) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		unsettled := make(map[domain.SessionID]domain.SessionState)
		for id, s := range sessions {
			if s.Pending() {
				unsettled[id] = s.Status.State
			}
		}

		return &domain.TimeoutError{Deadline: p.deadline, Unsettled: unsettled}
	}

	return fmt.Errorf("wait for sessions: %w", ctx.Err())
}

func pendingIDs(ids []domain.SessionID, sessions map[domain.SessionID]*domain.Session) []domain.SessionID {
	pending := make([]domain.SessionID, 0, len(ids))
	for _, id := range ids {
		if sessions[id].Pending() {
			pending = append(pending, id)
		}
	}

	return pending
}

func allSettled(ids []domain.SessionID, sessions map[domain.SessionID]*domain.Session) bool {
	for _, id := range ids {
		if sessions[id].Settlement != domain.SettlementContinue {
			return false
		}
	}

	return true
}
