package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/silicon-ci/vmanager-action/internal/domain"
)

func newWaitCmd(app *app, opts *rootOptions) *cobra.Command {
	var sessions []string
	var idsFile string

	cmd := &cobra.Command{
		Use:   "wait",
		Short: "Wait for externally launched sessions to settle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ids, err := collectSessionIDs(sessions, idsFile)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				return errors.New("wait requires --session or --ids-file")
			}

			return runWaitFlow(cmd, app, ids, true, opts.json)
		},
	}

	cmd.Flags().StringArrayVar(&sessions, "session", nil, "Session ID to wait for (repeatable)")
	cmd.Flags().StringVar(&idsFile, "ids-file", "", "File with one session ID per line")

	return cmd
}

// collectSessionIDs merges explicit IDs with the lines of an optional
// ids file. A leading "$" is stripped so launcher output files from
// older action versions keep working.
func collectSessionIDs(flagIDs []string, idsFile string) ([]domain.SessionID, error) {
	ids := make([]domain.SessionID, 0, len(flagIDs))
	for _, raw := range flagIDs {
		ids = append(ids, domain.SessionID(strings.TrimPrefix(strings.TrimSpace(raw), "$")))
	}

	if idsFile != "" {
		lines, err := readLines(idsFile)
		if err != nil {
			return nil, err
		}
		for _, line := range lines {
			ids = append(ids, domain.SessionID(strings.TrimPrefix(line, "$")))
		}
	}

	return domain.NormalizeSessionIDs(ids), nil
}
