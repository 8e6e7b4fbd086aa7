// Package ghactions writes GitHub Actions step outputs and workflow
// commands. Both degrade to no-ops outside Actions so the CLI stays
// usable standalone.
package ghactions

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
)

// Outputs appends step outputs to the file GitHub Actions names in
// GITHUB_OUTPUT. An empty path makes every Set a no-op.
type Outputs struct {
	path string
}

func New(path string) *Outputs {
	return &Outputs{path: path}
}

// Set writes one name=value output. Multiline values use the heredoc
// form with a random delimiter, matching what actions/toolkit emits.
func (o *Outputs) Set(name, value string) error {
	if o == nil || o.path == "" {
		return nil
	}

	entry, err := formatEntry(name, value)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(o.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open outputs file: %w", err)
	}
	if _, err := f.WriteString(entry); err != nil {
		f.Close()

		return fmt.Errorf("write output %s: %w", name, err)
	}

	return f.Close()
}

func formatEntry(name, value string) (string, error) {
	if !strings.ContainsAny(value, "\r\n") {
		return fmt.Sprintf("%s=%s\n", name, value), nil
	}

	delimiter := "ghadelimiter_" + uuid.NewString()
	if strings.Contains(value, delimiter) {
		return "", fmt.Errorf("output %s: value contains its own delimiter", name)
	}

	return fmt.Sprintf("%s<<%s\n%s\n%s\n", name, delimiter, value, delimiter), nil
}

// Annotator emits ::warning::, ::error:: and ::group:: workflow
// commands when active and stays silent otherwise.
type Annotator struct {
	w      io.Writer
	active bool
}

func NewAnnotator(w io.Writer, active bool) *Annotator {
	return &Annotator{w: w, active: active}
}

func (a *Annotator) Warningf(format string, args ...any) {
	a.command("warning", fmt.Sprintf(format, args...))
}

func (a *Annotator) Errorf(format string, args ...any) {
	a.command("error", fmt.Sprintf(format, args...))
}

func (a *Annotator) Group(title string) {
	a.command("group", title)
}

func (a *Annotator) EndGroup() {
	if a == nil || !a.active {
		return
	}
	fmt.Fprintln(a.w, "::endgroup::")
}

func (a *Annotator) command(name, message string) {
	if a == nil || !a.active {
		return
	}
	fmt.Fprintf(a.w, "::%s::%s\n", name, escapeData(message))
}

// escapeData applies the workflow-command encoding for data payloads.
func escapeData(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "\r", "%0D")
	s = strings.ReplaceAll(s, "\n", "%0A")

	return s
}

// IsActions reports whether the process runs inside a GitHub Actions
// job.
func IsActions() bool {
	return os.Getenv("GITHUB_ACTIONS") == "true"
}
