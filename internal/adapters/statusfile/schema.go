package statusfile

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version    int             `toml:"version"`
	CapturedAt string          `toml:"captured_at,omitempty"`
	ServerURL  string          `toml:"server_url,omitempty"`
	Aggregate  aggregateSchema `toml:"aggregate"`
	Sessions   []sessionSchema `toml:"sessions,omitempty"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported status schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type aggregateSchema struct {
	Status             string `toml:"status"`
	TotalRuns          int    `toml:"total_runs"`
	PassedRuns         int    `toml:"passed_runs"`
	FailedRuns         int    `toml:"failed_runs"`
	MalformedRuns      int    `toml:"malformed_runs,omitempty"`
	UnresolvedSessions int    `toml:"unresolved_sessions,omitempty"`
}

type sessionSchema struct {
	ID          string `toml:"id"`
	Name        string `toml:"name,omitempty"`
	State       string `toml:"state"`
	Settlement  string `toml:"settlement"`
	Owner       string `toml:"owner,omitempty"`
	TotalRuns   int64  `toml:"total_runs"`
	PassedRuns  int64  `toml:"passed_runs"`
	FailedRuns  int64  `toml:"failed_runs"`
	OtherRuns   int64  `toml:"other_runs"`
	RunningRuns int64  `toml:"running"`
	WaitingRuns int64  `toml:"waiting"`
	URL         string `toml:"url,omitempty"`
}
