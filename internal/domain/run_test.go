package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOutcomeFromStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status string
		want   RunOutcome
	}{
		{name: "passed", status: "passed", want: OutcomePass},
		{name: "failed", status: "failed", want: OutcomeFail},
		{name: "uppercase passed", status: "PASSED", want: OutcomePass},
		{name: "stopped", status: "stopped", want: OutcomeOther},
		{name: "running", status: "running", want: OutcomeOther},
		{name: "waiting", status: "waiting", want: OutcomeOther},
		{name: "unknown", status: "exploded", want: OutcomeOther},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, OutcomeFromStatus(tc.status))
		})
	}
}

func TestRunRecordMalformed(t *testing.T) {
	t.Parallel()

	ok := RunRecord{Name: "smoke_test", Status: "passed", Outcome: OutcomePass}
	assert.False(t, ok.Malformed())

	assert.True(t, RunRecord{Status: "passed"}.Malformed())
	assert.True(t, RunRecord{Name: "  ", Status: "passed"}.Malformed())
	assert.True(t, RunRecord{Name: "smoke_test"}.Malformed())
}

func TestRunRecordDisplayName(t *testing.T) {
	t.Parallel()

	r := RunRecord{Name: "uart_rx_test", Seed: "12345"}
	assert.Equal(t, "uart_rx_test-seed12345", r.DisplayName(true))
	assert.Equal(t, "uart_rx_test", r.DisplayName(false))

	noSeed := RunRecord{Name: "uart_rx_test"}
	assert.Equal(t, "uart_rx_test", noSeed.DisplayName(true))
}

func TestRunRecordOutcomeLabel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "stopped", RunRecord{Status: "stopped", Outcome: OutcomeOther}.OutcomeLabel())
	assert.Equal(t, "fail", RunRecord{Outcome: OutcomeFail}.OutcomeLabel())
}
