package wait

import (
	"testing"

	"github.com/silicon-ci/vmanager-action/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func settledSession(id domain.SessionID, name string, runs []domain.RunRecord) *domain.Session {
	sess := domain.NewSession(id)
	sess.Status.State = domain.StateDone
	sess.Status.Name = name
	sess.Settlement = domain.SettlementContinue
	sess.Runs = runs

	return sess
}

func run(name, status string) domain.RunRecord {
	return domain.RunRecord{
		Name:    name,
		Status:  status,
		Outcome: domain.OutcomeFromStatus(status),
	}
}

func TestRenderMixedSessions(t *testing.T) {
	sessions := map[domain.SessionID]*domain.Session{
		"12": settledSession("12", "nightly_smoke", []domain.RunRecord{
			run("uart_rx", "passed"),
			run("uart_tx", "passed"),
			run("dma_burst", "failed"),
		}),
		"13": settledSession("13", "gls_regression", []domain.RunRecord{
			run("mem_init", "passed"),
		}),
	}
	result := domain.Aggregate(sessions)

	output, err := Render(sessions, result, RenderOptions{ServerURL: "https://vmgr.example.com/vmgr"})
	require.NoError(t, err)

	assert.Contains(t, output, "sessions: 2")
	assert.Contains(t, output, "nightly_smoke (12)")
	assert.Contains(t, output, "gls_regression (13)")
	assert.Contains(t, output, "2/3 passed")
	assert.Contains(t, output, "1/1 passed")
	assert.Contains(t, output, "overall: ")
	assert.Contains(t, output, "mixed")
	assert.Contains(t, output, "4 total, 3 passed, 1 failed")
	assert.Contains(t, output, "server: https://vmgr.example.com/vmgr")
	assert.Contains(t, output, "[")
	assert.Contains(t, output, "]")
}

func TestRenderUnnamedSessionFallsBackToID(t *testing.T) {
	sessions := map[domain.SessionID]*domain.Session{
		"42": settledSession("42", "", nil),
	}

	output, err := Render(sessions, domain.Aggregate(sessions), RenderOptions{})
	require.NoError(t, err)

	assert.Contains(t, output, "session 42")
}

func TestRenderShowsSettlementLabels(t *testing.T) {
	ignored := domain.NewSession("7")
	ignored.Status.State = domain.StateSuspended
	ignored.Settlement = domain.SettlementIgnorePending

	failed := domain.NewSession("8")
	failed.Status.State = domain.StateFailed
	failed.Settlement = domain.SettlementFailedFast

	sessions := map[domain.SessionID]*domain.Session{"7": ignored, "8": failed}

	output, err := Render(sessions, domain.Aggregate(sessions), RenderOptions{})
	require.NoError(t, err)

	assert.Contains(t, output, "[ignored, still pending]")
	assert.Contains(t, output, "[failed fast]")
	assert.Contains(t, output, "suspended")
	assert.Contains(t, output, "failed")
	assert.Contains(t, output, "2 session(s) left unresolved")
}

func TestRenderWarnsAboutMalformedRuns(t *testing.T) {
	sessions := map[domain.SessionID]*domain.Session{
		"12": settledSession("12", "smoke", []domain.RunRecord{
			run("ok", "passed"),
			{Name: "", Status: "passed"},
		}),
	}

	output, err := Render(sessions, domain.Aggregate(sessions), RenderOptions{})
	require.NoError(t, err)

	assert.Contains(t, output, "1/1 passed")
	assert.Contains(t, output, "[1 malformed]")
	assert.Contains(t, output, "1 malformed run record(s) skipped")
}

func TestRenderEmptySessions(t *testing.T) {
	output, err := Render(nil, domain.Aggregate(nil), RenderOptions{})
	require.NoError(t, err)

	assert.Contains(t, output, "sessions: 0")
	assert.Contains(t, output, "No sessions watched.")
}
