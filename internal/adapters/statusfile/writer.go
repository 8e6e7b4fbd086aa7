// Package statusfile persists a TOML snapshot of the final session and
// run state for downstream workflow steps.
package statusfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/silicon-ci/vmanager-action/internal/domain"
)

const (
	statusFileMode  = 0o644
	statusDirMode   = 0o755
	tempFilePattern = ".session-status-*.toml.tmp"
)

// Snapshot is everything one wait cycle learned about the watched
// sessions.
type Snapshot struct {
	CapturedAt time.Time
	ServerURL  string
	Sessions   map[domain.SessionID]*domain.Session
	Aggregate  domain.AggregateResult
}

type Writer struct {
	path string
}

func NewWriter(path string) (*Writer, error) {
	if path == "" {
		return nil, errors.New("status file path is empty")
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve status file path: %w", err)
	}

	return &Writer{path: filepath.Clean(absPath)}, nil
}

func (w *Writer) Path() string {
	return w.path
}

// Write replaces the status file with the given snapshot. The file is
// staged in a temp file and renamed so readers never see a partial
// document.
func (w *Writer) Write(ctx context.Context, snap Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	file := toSchema(snap)
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(w.path), statusDirMode); err != nil {
		return fmt.Errorf("create status directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode status file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(w.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp status file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp status file: %w", err)
	}

	if err := tempFile.Chmod(statusFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp status file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp status file: %w", err)
	}

	if err := os.Rename(tempName, w.path); err != nil {
		return fmt.Errorf("replace status file: %w", err)
	}

	cleanup = false

	return nil
}

// Read loads a previously written snapshot. Missing files come back as
// an empty snapshot so callers can treat first runs uniformly.
func Read(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Snapshot{}, nil
		}
		return Snapshot{}, fmt.Errorf("read status file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return Snapshot{}, fmt.Errorf("decode status file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return Snapshot{}, err
	}
	file.applyDefaults()

	return fromSchema(file), nil
}

func toSchema(snap Snapshot) fileSchema {
	ids := make([]string, 0, len(snap.Sessions))
	for id := range snap.Sessions {
		ids = append(ids, string(id))
	}
	slices.Sort(ids)

	sessions := make([]sessionSchema, 0, len(ids))
	for _, id := range ids {
		s := snap.Sessions[domain.SessionID(id)]
		sessions = append(sessions, sessionSchema{
			ID:          string(s.ID),
			Name:        s.Status.Name,
			State:       string(s.Status.State),
			Settlement:  string(s.Settlement),
			Owner:       s.Status.Owner,
			TotalRuns:   s.Status.TotalRuns,
			PassedRuns:  s.Status.PassedRuns,
			FailedRuns:  s.Status.FailedRuns,
			OtherRuns:   s.Status.OtherRuns,
			RunningRuns: s.Status.RunningRuns,
			WaitingRuns: s.Status.WaitingRuns,
			URL:         snap.ServerURL,
		})
	}

	return fileSchema{
		Version:    currentSchemaVersion,
		CapturedAt: formatTime(snap.CapturedAt),
		ServerURL:  snap.ServerURL,
		Aggregate: aggregateSchema{
			Status:             string(snap.Aggregate.Status),
			TotalRuns:          snap.Aggregate.Total,
			PassedRuns:         snap.Aggregate.Passed,
			FailedRuns:         snap.Aggregate.Failed,
			MalformedRuns:      snap.Aggregate.Malformed,
			UnresolvedSessions: snap.Aggregate.UnresolvedSessions,
		},
		Sessions: sessions,
	}
}

func fromSchema(file fileSchema) Snapshot {
	sessions := make(map[domain.SessionID]*domain.Session, len(file.Sessions))
	for _, entry := range file.Sessions {
		id := domain.SessionID(entry.ID)
		sessions[id] = &domain.Session{
			ID: id,
			Status: domain.SessionStatus{
				State:       domain.SessionState(entry.State),
				Name:        entry.Name,
				Owner:       entry.Owner,
				TotalRuns:   entry.TotalRuns,
				PassedRuns:  entry.PassedRuns,
				FailedRuns:  entry.FailedRuns,
				OtherRuns:   entry.OtherRuns,
				RunningRuns: entry.RunningRuns,
				WaitingRuns: entry.WaitingRuns,
			},
			Settlement: domain.Settlement(entry.Settlement),
		}
	}

	snap := Snapshot{
		CapturedAt: parseTime(file.CapturedAt),
		ServerURL:  file.ServerURL,
		Sessions:   sessions,
		Aggregate: domain.AggregateResult{
			RunTally: domain.RunTally{
				Total:     file.Aggregate.TotalRuns,
				Passed:    file.Aggregate.PassedRuns,
				Failed:    file.Aggregate.FailedRuns,
				Malformed: file.Aggregate.MalformedRuns,
			},
			UnresolvedSessions: file.Aggregate.UnresolvedSessions,
			Status:             domain.OverallStatus(file.Aggregate.Status),
		},
	}

	return snap
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.Format(time.RFC3339)
}
