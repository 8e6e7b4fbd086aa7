package ports

import (
	"context"

	"github.com/silicon-ci/vmanager-action/internal/domain"
)

// StatusClient is the read side of the server consumed by the wait loop:
// one status snapshot per query, and the run records of a session that
// finished.
type StatusClient interface {
	SessionState(ctx context.Context, id domain.SessionID) (domain.SessionStatus, error)
	SessionRuns(ctx context.Context, id domain.SessionID) ([]domain.RunRecord, error)
}
