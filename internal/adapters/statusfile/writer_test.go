package statusfile

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/silicon-ci/vmanager-action/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() Snapshot {
	sessions := map[domain.SessionID]*domain.Session{
		"12": {
			ID: "12",
			Status: domain.SessionStatus{
				State:       domain.StateDone,
				Name:        "nightly_smoke",
				Owner:       "vuser",
				TotalRuns:   5,
				PassedRuns:  3,
				FailedRuns:  2,
			},
			Settlement: domain.SettlementContinue,
		},
		"7": {
			ID: "7",
			Status: domain.SessionStatus{
				State: domain.StateStopped,
				Name:  "gls_regression",
			},
			Settlement: domain.SettlementIgnorePending,
		},
	}

	return Snapshot{
		CapturedAt: time.Date(2026, 8, 25, 9, 30, 0, 0, time.UTC),
		ServerURL:  "https://vmgr.example.com/vmgr",
		Sessions:   sessions,
		Aggregate: domain.AggregateResult{
			RunTally:           domain.RunTally{Total: 5, Passed: 3, Failed: 2},
			UnresolvedSessions: 1,
			Status:             domain.StatusMixed,
		},
	}
}

func TestWriterRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session_status.toml")
	writer, err := NewWriter(path)
	require.NoError(t, err)

	snap := sampleSnapshot()
	require.NoError(t, writer.Write(context.Background(), snap))

	got, err := Read(path)
	require.NoError(t, err)

	assert.Equal(t, snap.ServerURL, got.ServerURL)
	assert.True(t, snap.CapturedAt.Equal(got.CapturedAt))
	assert.Equal(t, snap.Aggregate, got.Aggregate)
	require.Len(t, got.Sessions, 2)
	assert.Equal(t, domain.StateDone, got.Sessions["12"].Status.State)
	assert.Equal(t, domain.SettlementContinue, got.Sessions["12"].Settlement)
	assert.Equal(t, "nightly_smoke", got.Sessions["12"].Status.Name)
	assert.Equal(t, int64(5), got.Sessions["12"].Status.TotalRuns)
	assert.Equal(t, domain.SettlementIgnorePending, got.Sessions["7"].Settlement)
}

func TestWriterSortsSessionsByID(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session_status.toml")
	writer, err := NewWriter(path)
	require.NoError(t, err)

	require.NoError(t, writer.Write(context.Background(), sampleSnapshot()))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	text := string(data)
	assert.Contains(t, text, "version = 1")
	assert.Less(t, strings.Index(text, "id = '12'"), strings.Index(text, "id = '7'"),
		"sessions must be ordered lexicographically by id")
}

func TestWriterCreatesMissingDirectory(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "out", "session_status.toml")
	writer, err := NewWriter(path)
	require.NoError(t, err)

	require.NoError(t, writer.Write(context.Background(), sampleSnapshot()))

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestWriterOverwritesPreviousSnapshot(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session_status.toml")
	writer, err := NewWriter(path)
	require.NoError(t, err)

	require.NoError(t, writer.Write(context.Background(), sampleSnapshot()))

	next := Snapshot{
		ServerURL: "https://vmgr.example.com/vmgr",
		Sessions: map[domain.SessionID]*domain.Session{
			"99": {ID: "99", Status: domain.SessionStatus{State: domain.StateDone}, Settlement: domain.SettlementContinue},
		},
		Aggregate: domain.AggregateResult{Status: domain.StatusCompleted},
	}
	require.NoError(t, writer.Write(context.Background(), next))

	got, err := Read(path)
	require.NoError(t, err)
	require.Len(t, got.Sessions, 1)
	assert.Contains(t, got.Sessions, domain.SessionID("99"))
}

func TestWriterCanceledContextReturnsContextError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session_status.toml")
	writer, err := NewWriter(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = writer.Write(ctx, sampleSnapshot())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	_, statErr := os.Stat(path)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestNewWriterRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := NewWriter("")
	require.Error(t, err)
}

func TestReadMissingFileReturnsEmptySnapshot(t *testing.T) {
	t.Parallel()

	got, err := Read(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Empty(t, got.Sessions)
	assert.Zero(t, got.Aggregate.Total)
}

func TestReadMalformedTOMLReturnsError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session_status.toml")
	require.NoError(t, os.WriteFile(path, []byte("sessions = ["), 0o644))

	_, err := Read(path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "decode status file")
}

func TestReadFutureSchemaVersionReturnsError(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "session_status.toml")
	require.NoError(t, os.WriteFile(path, []byte("version = 999\n"), 0o644))

	_, err := Read(path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "unsupported status schema version")
}
