package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// GitHub caps step output values; longer responses stay available
// through the output file.
const maxAPIOutputBytes = 65000

func newCallCmd(app *app) *cobra.Command {
	var path, method, input, inputFile, outputFile string

	cmd := &cobra.Command{
		Use:   "call",
		Short: "Perform a raw vAPI request",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCall(cmd, app, path, method, input, inputFile, outputFile)
		},
	}

	cmd.Flags().StringVar(&path, "path", app.cfg.APIURL, "vAPI path below /rest, for example /sessions/count")
	cmd.Flags().StringVar(&method, "method", app.cfg.APIMethod, "HTTP method")
	cmd.Flags().StringVar(&input, "input", app.cfg.APIInput, "JSON request body")
	cmd.Flags().StringVar(&inputFile, "input-file", app.cfg.APIInputFile, "File with the JSON request body")
	cmd.Flags().StringVar(&outputFile, "output-file", app.cfg.APIOutputFile, "Write the response body to this file")

	return cmd
}

func runCall(cmd *cobra.Command, app *app, path, method, input, inputFile, outputFile string) error {
	ctx := cmd.Context()

	if path == "" {
		return errors.New("call requires --path or the api-url input")
	}

	if inputFile != "" {
		data, err := os.ReadFile(inputFile)
		if err != nil {
			return fmt.Errorf("read %s: %w", inputFile, err)
		}
		input = strings.TrimSpace(string(data))
	}

	method = strings.ToUpper(strings.TrimSpace(method))
	if method != "POST" && method != "PUT" {
		input = ""
	}

	result, err := app.client.Call(ctx, method, path, json.RawMessage(input))
	if err != nil {
		return fmt.Errorf("api call: %w", err)
	}

	rendered := renderAPIResult(result)
	if _, err := fmt.Fprintln(cmd.OutOrStdout(), rendered); err != nil {
		return err
	}

	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(rendered+"\n"), 0o644); err != nil {
			return fmt.Errorf("write api output file: %w", err)
		}
		if err := app.outputs.Set("api-output-file", outputFile); err != nil {
			return err
		}
	}

	return app.outputs.Set("api-output", truncateOutput(rendered, maxAPIOutputBytes))
}

func renderAPIResult(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return strings.TrimSpace(string(raw))
	}

	return buf.String()
}

func truncateOutput(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n]
}
