package ports

import (
	"context"

	"github.com/silicon-ci/vmanager-action/internal/domain"
)

type SessionLauncher interface {
	Launch(ctx context.Context, req domain.LaunchRequest) (domain.SessionID, error)
}

// SessionDirectory resolves session names to identifiers for batches
// launched outside this process.
type SessionDirectory interface {
	SessionIDsByNames(ctx context.Context, names []string) ([]domain.SessionID, error)
}

type SessionSuspender interface {
	Suspend(ctx context.Context, ids []domain.SessionID) error
}
