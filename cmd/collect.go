package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"goa.design/clue/log"
)

func newCollectCmd(app *app, opts *rootOptions) *cobra.Command {
	var inputFile string

	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Resolve pre-launched sessions by name and wait for them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCollect(cmd, app, inputFile, opts.json)
		},
	}

	cmd.Flags().StringVar(&inputFile, "sessions-file", app.cfg.SessionsInputFile, "File with one session name per line")

	return cmd
}

func runCollect(cmd *cobra.Command, app *app, inputFile string, asJSON bool) error {
	ctx := cmd.Context()

	if inputFile == "" {
		return errors.New("collect requires --sessions-file or the sessions-input-file input")
	}

	names, err := readLines(inputFile)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		return fmt.Errorf("no session names found in %s", inputFile)
	}

	ids, err := app.directory.SessionIDsByNames(ctx, names)
	if err != nil {
		return fmt.Errorf("resolve session names: %w", err)
	}
	if len(ids) == 0 {
		return fmt.Errorf("no sessions on the server match the %d name(s) in %s", len(names), inputFile)
	}
	log.Printf(ctx, "resolved %d of %d session name(s)", len(ids), len(names))

	return runWaitFlow(cmd, app, ids, app.cfg.WaitForSessionEnd, asJSON)
}
