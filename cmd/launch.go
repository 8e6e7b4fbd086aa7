package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"goa.design/clue/log"

	"github.com/silicon-ci/vmanager-action/internal/domain"
)

func newLaunchCmd(app *app, opts *rootOptions) *cobra.Command {
	var vsifs []string
	var doWait bool

	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Launch vsif files as Verisium Manager sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLaunch(cmd, app, vsifs, doWait, opts.json)
		},
	}

	cmd.Flags().StringArrayVar(&vsifs, "vsif", nil, "vsif file to launch (repeatable, defaults to the vsif-path or vsif-input-file inputs)")
	cmd.Flags().BoolVar(&doWait, "wait", app.cfg.WaitForSessionEnd, "Wait for the launched sessions to end")

	return cmd
}

func runLaunch(cmd *cobra.Command, app *app, vsifs []string, doWait, asJSON bool) error {
	ctx := cmd.Context()

	files, err := resolveVSIFList(vsifs, app.cfg.VSIFPath, app.cfg.VSIFInputFile)
	if err != nil {
		return err
	}

	count, err := app.client.CheckConnection(ctx)
	if err != nil {
		return fmt.Errorf("connect to vManager at %s: %w", app.cfg.VAPIURL, err)
	}
	log.Printf(ctx, "connected to %s (%d sessions on server)", app.cfg.VAPIURL, count)

	base := domain.LaunchRequest{
		Environment: rawJSONInput(ctx, "env-variables", app.cfg.EnvVariables),
		Attributes:  rawJSONInput(ctx, "attr-values", app.cfg.AttrValues),
		Params:      rawJSONInput(ctx, "define-values", app.cfg.DefineValues),
		Credentials: app.cfg.FarmCredentials(),
	}
	if app.cfg.UseUserOnFarm && app.cfg.EnvSourceFile != "" {
		base.SourceFile = app.cfg.EnvSourceFile
		base.SourceShell = app.cfg.EnvSourceShell
	}

	ids := make([]domain.SessionID, 0, len(files))
	for _, vsif := range files {
		req := base
		req.VSIF = vsif

		id, err := app.launcher.Launch(ctx, req)
		if err != nil {
			return fmt.Errorf("launch vsif %s: %w", vsif, err)
		}
		ids = append(ids, id)
	}
	log.Printf(ctx, "launched %d session(s): %s", len(ids), joinSessionIDs(ids))

	if app.cfg.IDsOutputPath != "" {
		if err := writeSessionIDsFile(app.cfg.IDsOutputPath, ids); err != nil {
			return err
		}
	}

	return runWaitFlow(cmd, app, ids, doWait, asJSON)
}

// resolveVSIFList merges the three vsif sources in priority order:
// explicit flags, the semicolon-separated vsif-path input, then lines of
// the vsif-input-file.
func resolveVSIFList(flags []string, path, inputFile string) ([]string, error) {
	var files []string
	switch {
	case len(flags) > 0:
		files = flags
	case path != "":
		files = strings.Split(path, ";")
	case inputFile != "":
		lines, err := readLines(inputFile)
		if err != nil {
			return nil, err
		}
		files = lines
	default:
		return nil, errors.New("launch requires --vsif, the vsif-path input or the vsif-input-file input")
	}

	cleaned := make([]string, 0, len(files))
	for _, f := range files {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		cleaned = append(cleaned, f)
	}
	if len(cleaned) == 0 {
		return nil, errors.New("no vsif files found to launch")
	}

	return cleaned, nil
}

// rawJSONInput validates an optional JSON input. Invalid JSON is
// skipped with a warning rather than failing the launch.
func rawJSONInput(ctx context.Context, name, value string) json.RawMessage {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	if !json.Valid([]byte(value)) {
		log.Warn(ctx, log.KV{K: "msg", V: "skipping input that is not valid JSON"}, log.KV{K: "input", V: name})
		return nil
	}

	return json.RawMessage(value)
}

func readLines(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}

	return lines, nil
}

func writeSessionIDsFile(path string, ids []domain.SessionID) error {
	var b strings.Builder
	for _, id := range ids {
		b.WriteString(string(id))
		b.WriteByte('\n')
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write session ids file: %w", err)
	}

	return nil
}
