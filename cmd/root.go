package cmd

import (
	"github.com/spf13/cobra"
	"goa.design/clue/log"
)

func Execute() error {
	return newRootCmd().Execute()
}

type rootOptions struct {
	debug bool
	json  bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "vmgr",
		Short:         "Launch and monitor Verisium Manager regression sessions",
		Long:          "vmgr drives Cadence Verisium Manager over its vAPI REST interface: launch vsif files, wait for sessions to settle, aggregate run results, and emit JUnit reports and GitHub Actions outputs.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&opts.json, "json", false, "Machine-readable JSON output where a command offers it")

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, _ []string) {
		format := log.FormatJSON
		if log.IsTerminal() {
			format = log.FormatTerminal
		}
		ctx := log.Context(cmd.Context(), log.WithFormat(format))
		if opts.debug {
			ctx = log.Context(ctx, log.WithDebug())
			log.Debugf(ctx, "debug logs enabled")
		}
		cmd.SetContext(ctx)
	}

	rootCmd.AddCommand(newVersionCmd())

	app, err := wireApp()
	if err != nil {
		rootCmd.RunE = func(_ *cobra.Command, _ []string) error {
			return err
		}
		return rootCmd
	}

	rootCmd.AddCommand(
		newLaunchCmd(app, opts),
		newCollectCmd(app, opts),
		newWaitCmd(app, opts),
		newCallCmd(app),
		newSuspendCmd(app),
	)

	return rootCmd
}
