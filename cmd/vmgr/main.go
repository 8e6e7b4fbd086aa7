package main

import (
	"errors"
	"os"

	"github.com/silicon-ci/vmanager-action/cmd"
	"github.com/silicon-ci/vmanager-action/internal/domain"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode keeps resolution failures and timeouts distinguishable for
// callers that only see the process status.
func exitCode(err error) int {
	var resolution *domain.ResolutionError
	if errors.As(err, &resolution) {
		return 2
	}

	var timeout *domain.TimeoutError
	if errors.As(err, &timeout) {
		return 3
	}

	return 1
}
