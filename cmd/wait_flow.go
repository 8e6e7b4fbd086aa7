package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"goa.design/clue/log"

	"github.com/silicon-ci/vmanager-action/internal/adapters/junit"
	waitrender "github.com/silicon-ci/vmanager-action/internal/adapters/render/wait"
	"github.com/silicon-ci/vmanager-action/internal/adapters/statusfile"
	"github.com/silicon-ci/vmanager-action/internal/application"
	"github.com/silicon-ci/vmanager-action/internal/domain"
)

// runWaitFlow is the shared back half of launch, collect and wait: poll
// the sessions to settlement, aggregate their runs, and emit every
// configured artifact. With wait=false it stops after publishing the
// session-ids output.
func runWaitFlow(cmd *cobra.Command, app *app, ids []domain.SessionID, wait, asJSON bool) error {
	ctx := cmd.Context()

	ids = domain.NormalizeSessionIDs(ids)
	if len(ids) == 0 {
		return domain.ErrNoSessions
	}

	if err := app.outputs.Set("session-ids", joinSessionIDs(ids)); err != nil {
		return err
	}

	if !wait {
		if err := app.outputs.Set("session-status", "launched"); err != nil {
			return err
		}
		log.Printf(ctx, "sessions launched, not waiting for completion (wait-for-session-end=false)")

		return nil
	}

	app.annotator.Group("Waiting for sessions")
	log.Print(ctx, log.KV{K: "msg", V: "waiting for sessions"}, log.KV{K: "sessions", V: joinSessionIDs(ids)}, app.cfg)

	poller := application.NewPoller(app.status, app.cfg.Policy, application.PollerConfig{
		Interval: app.cfg.PollInterval,
		Deadline: app.cfg.SessionTimeout,
	})

	var sessions map[domain.SessionID]*domain.Session
	waitFn := func(ctx context.Context) error {
		var err error
		sessions, err = poller.Wait(ctx, ids)

		return err
	}

	var waitErr error
	if !asJSON && log.IsTerminal() {
		label := fmt.Sprintf("Waiting for %d session(s)...", len(ids))
		waitErr = runWaitSpinner(ctx, cmd.ErrOrStderr(), label, waitFn)
	} else {
		waitErr = waitFn(ctx)
	}
	app.annotator.EndGroup()

	if waitErr != nil {
		app.annotator.Errorf("%s", waitErr)
		return waitErr
	}

	result := domain.Aggregate(sessions)

	if err := emitWaitOutputs(app, sessions, result); err != nil {
		return err
	}

	if app.cfg.StatusFilePath != "" {
		if err := writeStatusFile(ctx, app, sessions, result); err != nil {
			return err
		}
	}

	if app.cfg.GenerateJUnitReport {
		if err := writeJUnitReport(ctx, app, sessions); err != nil {
			return err
		}
	}

	if err := writeWaitSummary(cmd, app, sessions, result, asJSON); err != nil {
		return err
	}

	if result.Malformed > 0 {
		app.annotator.Warningf("skipped %d malformed run record(s)", result.Malformed)
	}

	return applyVerdict(app.cfg.FailIfAllRunsFailed, app.cfg.FailUnlessAllRunsPassed, result)
}

func emitWaitOutputs(app *app, sessions map[domain.SessionID]*domain.Session, result domain.AggregateResult) error {
	outputs := [][2]string{
		{"session-status", sessionStatusOutput(sessions)},
		{"total-runs", strconv.Itoa(result.Total)},
		{"passed-runs", strconv.Itoa(result.Passed)},
		{"failed-runs", strconv.Itoa(result.Failed)},
	}
	for _, kv := range outputs {
		if err := app.outputs.Set(kv[0], kv[1]); err != nil {
			return err
		}
	}

	return nil
}

// sessionStatusOutput reduces the final session states to a single
// output value: the shared state when they all agree, "mixed" when they
// do not.
func sessionStatusOutput(sessions map[domain.SessionID]*domain.Session) string {
	states := make(map[domain.SessionState]struct{}, len(sessions))
	for _, s := range sessions {
		state := s.Status.State
		if state == "" {
			state = "unknown"
		}
		states[state] = struct{}{}
	}

	switch len(states) {
	case 0:
		return "unknown"
	case 1:
		for state := range states {
			return string(state)
		}
	}

	return "mixed"
}

func writeStatusFile(ctx context.Context, app *app, sessions map[domain.SessionID]*domain.Session, result domain.AggregateResult) error {
	writer, err := statusfile.NewWriter(app.cfg.StatusFilePath)
	if err != nil {
		return err
	}

	snap := statusfile.Snapshot{
		CapturedAt: app.clock.Now(),
		ServerURL:  app.cfg.VAPIURL,
		Sessions:   sessions,
		Aggregate:  result,
	}
	if err := writer.Write(ctx, snap); err != nil {
		return err
	}
	log.Printf(ctx, "session status written to %s", writer.Path())

	return nil
}

func writeJUnitReport(ctx context.Context, app *app, sessions map[domain.SessionID]*domain.Session) error {
	doc := junit.Generate(sessions, junit.Options{
		AppendSeed:         !app.cfg.NoAppendSeed,
		ExtraAttributeKeys: app.cfg.ExtraAttributes,
	})

	path := app.cfg.JUnitReportPath
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create junit report: %w", err)
	}
	if err := doc.Encode(f); err != nil {
		f.Close()
		return fmt.Errorf("write junit report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close junit report: %w", err)
	}

	log.Printf(ctx, "junit report written to %s", path)

	return app.outputs.Set("junit-report-path", path)
}

type sessionSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	State      string `json:"state"`
	Settlement string `json:"settlement"`
	TotalRuns  int    `json:"total_runs"`
	PassedRuns int    `json:"passed_runs"`
	FailedRuns int    `json:"failed_runs"`
}

type waitSummary struct {
	Status             string           `json:"status"`
	TotalRuns          int              `json:"total_runs"`
	PassedRuns         int              `json:"passed_runs"`
	FailedRuns         int              `json:"failed_runs"`
	MalformedRuns      int              `json:"malformed_runs,omitempty"`
	UnresolvedSessions int              `json:"unresolved_sessions,omitempty"`
	Sessions           []sessionSummary `json:"sessions"`
}

func writeWaitSummary(cmd *cobra.Command, app *app, sessions map[domain.SessionID]*domain.Session, result domain.AggregateResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")

		return enc.Encode(buildWaitSummary(sessions, result))
	}

	rendered, err := app.renderSummary(sessions, result, waitrender.RenderOptions{ServerURL: app.cfg.VAPIURL})
	if err != nil {
		return fmt.Errorf("render summary: %w", err)
	}

	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)

	return err
}

func buildWaitSummary(sessions map[domain.SessionID]*domain.Session, result domain.AggregateResult) waitSummary {
	summary := waitSummary{
		Status:             string(result.Status),
		TotalRuns:          result.Total,
		PassedRuns:         result.Passed,
		FailedRuns:         result.Failed,
		MalformedRuns:      result.Malformed,
		UnresolvedSessions: result.UnresolvedSessions,
	}

	ids := make([]string, 0, len(sessions))
	for id := range sessions {
		ids = append(ids, string(id))
	}
	slices.Sort(ids)

	for _, id := range ids {
		s := sessions[domain.SessionID(id)]
		tally := domain.TallyRuns(s.Runs)
		summary.Sessions = append(summary.Sessions, sessionSummary{
			ID:         string(s.ID),
			Name:       s.Status.Name,
			State:      string(s.Status.State),
			Settlement: string(s.Settlement),
			TotalRuns:  tally.Total,
			PassedRuns: tally.Passed,
			FailedRuns: tally.Failed,
		})
	}

	return summary
}

func applyVerdict(failIfAllFailed, failUnlessAllPassed bool, result domain.AggregateResult) error {
	if failIfAllFailed && result.Total > 0 && result.Passed == 0 {
		return errors.New("all runs failed in the regression")
	}
	if failUnlessAllPassed && (result.Failed > 0 || result.Malformed > 0) {
		return errors.New("not all runs passed the regression")
	}

	return nil
}

func joinSessionIDs(ids []domain.SessionID) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, string(id))
	}

	return strings.Join(parts, ",")
}
