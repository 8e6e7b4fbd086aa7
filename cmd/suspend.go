package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"goa.design/clue/log"
)

func newSuspendCmd(app *app) *cobra.Command {
	var sessions []string
	var idsFile string

	cmd := &cobra.Command{
		Use:   "suspend",
		Short: "Suspend running sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ids, err := collectSessionIDs(sessions, idsFile)
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				return errors.New("suspend requires --session or --ids-file")
			}

			if err := app.suspender.Suspend(cmd.Context(), ids); err != nil {
				return fmt.Errorf("suspend sessions: %w", err)
			}
			log.Printf(cmd.Context(), "suspended %d session(s): %s", len(ids), joinSessionIDs(ids))

			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sessions, "session", nil, "Session ID to suspend (repeatable)")
	cmd.Flags().StringVar(&idsFile, "ids-file", "", "File with one session ID per line")

	return cmd
}
