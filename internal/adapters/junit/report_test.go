package junit

import (
	"bytes"
	"encoding/xml"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/silicon-ci/vmanager-action/internal/domain"
)

func settledSession(id domain.SessionID, runs ...domain.RunRecord) *domain.Session {
	return &domain.Session{
		ID:         id,
		Status:     domain.SessionStatus{State: domain.StateDone, Name: "regr_" + string(id)},
		Settlement: domain.SettlementContinue,
		Runs:       runs,
	}
}

func run(name, status string) domain.RunRecord {
	return domain.RunRecord{Name: name, Status: status, Outcome: domain.OutcomeFromStatus(status)}
}

func TestGenerateMixedSessionReport(t *testing.T) {
	t.Parallel()

	runs := []domain.RunRecord{
		run("alu_add", "passed"),
		run("alu_sub", "passed"),
		run("alu_mul", "passed"),
		run("alu_div", "failed"),
		run("alu_mod", "failed"),
	}
	sessions := map[domain.SessionID]*domain.Session{"3001": settledSession("3001", runs...)}

	doc := Generate(sessions, Options{})
	require.Len(t, doc.Suites, 1)

	suite := doc.Suites[0]
	assert.Equal(t, "3001", suite.Name)
	assert.Equal(t, 5, suite.Tests)
	assert.Equal(t, 2, suite.Failures)
	assert.Equal(t, 0, suite.Skipped)
	require.Len(t, suite.Cases, 5)

	var withFailure int
	for _, c := range suite.Cases {
		if c.Failure != nil {
			withFailure++
		}
	}
	assert.Equal(t, 2, withFailure)

	// Suite counts are the aggregator's counts for the same session.
	agg := domain.Aggregate(sessions)
	assert.Equal(t, agg.Total, suite.Tests)
	assert.Equal(t, agg.Failed, suite.Failures)
	assert.Equal(t, agg.Malformed, suite.Skipped)
	assert.Equal(t, domain.StatusMixed, agg.Status)

	assert.Equal(t, 5, doc.Tests)
	assert.Equal(t, 2, doc.Failures)
}

func TestGenerateSeedAppending(t *testing.T) {
	t.Parallel()

	seeded := run("uart_rx", "passed")
	seeded.Seed = "31415"
	sessions := map[domain.SessionID]*domain.Session{"1": settledSession("1", seeded)}

	on := Generate(sessions, Options{AppendSeed: true})
	assert.Equal(t, "uart_rx-seed31415", on.Suites[0].Cases[0].Name)

	off := Generate(sessions, Options{AppendSeed: false})
	assert.Equal(t, "uart_rx", off.Suites[0].Cases[0].Name)
}

func TestGenerateFailureBodyExtraAttributes(t *testing.T) {
	t.Parallel()

	failing := run("mem_stress", "failed")
	failing.Attributes = map[string]string{
		"first_failure_description": "address collision",
		"coverage_grade":            "62%",
	}
	sessions := map[domain.SessionID]*domain.Session{"1": settledSession("1", failing)}

	doc := Generate(sessions, Options{
		ExtraAttributeKeys: []string{"first_failure_description", "not_projected", "coverage_grade"},
	})

	failure := doc.Suites[0].Cases[0].Failure
	require.NotNil(t, failure)
	assert.Equal(t, "failed", failure.Message)
	assert.Equal(t, "fail", failure.Type)
	assert.Equal(t,
		"failed\nfirst_failure_description=address collision\ncoverage_grade=62%",
		failure.Body,
		"configured order is kept and absent keys are skipped")
}

func TestGenerateEscapesSpecialCharacters(t *testing.T) {
	t.Parallel()

	tricky := run(`O'Brien & Co <v1>`, "failed")
	tricky.Attributes = map[string]string{"first_failure_description": `expected "x<y" & got 'z'`}
	sessions := map[domain.SessionID]*domain.Session{"1": settledSession("1", tricky)}

	doc := Generate(sessions, Options{ExtraAttributeKeys: []string{"first_failure_description"}})

	var buf bytes.Buffer
	require.NoError(t, doc.Encode(&buf))
	out := buf.String()

	assert.NotContains(t, out, `O'Brien & Co <v1>`, "raw specials must not survive serialization")
	assert.Contains(t, out, "&amp;")
	assert.Contains(t, out, "&lt;v1&gt;")

	var parsed Document
	require.NoError(t, xml.Unmarshal(buf.Bytes(), &parsed))
	require.Len(t, parsed.Suites, 1)
	require.Len(t, parsed.Suites[0].Cases, 1)
	assert.Equal(t, `O'Brien & Co <v1>`, parsed.Suites[0].Cases[0].Name, "parsing recovers the original string")
	assert.Contains(t, parsed.Suites[0].Cases[0].Failure.Body, `expected "x<y" & got 'z'`)
}

func TestGenerateMalformedRunsFlaggedAsSkipped(t *testing.T) {
	t.Parallel()

	sessions := map[domain.SessionID]*domain.Session{
		"9": settledSession("9",
			run("ok_test", "passed"),
			domain.RunRecord{Status: "passed", Outcome: domain.OutcomePass},
		),
	}

	doc := Generate(sessions, Options{})
	suite := doc.Suites[0]
	assert.Equal(t, 1, suite.Tests)
	assert.Equal(t, 1, suite.Skipped, "malformed records are flagged, not silently dropped")
	assert.Len(t, suite.Cases, 1)
	assert.Equal(t, 1, doc.Skipped)
}

func TestGenerateUnresolvedSessionKeepsEmptySuite(t *testing.T) {
	t.Parallel()

	sessions := map[domain.SessionID]*domain.Session{
		"77": {
			ID:         "77",
			Status:     domain.SessionStatus{State: domain.StateRunning, Name: "regr_77"},
			Settlement: domain.SettlementUnsettled,
		},
	}

	doc := Generate(sessions, Options{})
	require.Len(t, doc.Suites, 1)

	suite := doc.Suites[0]
	assert.Equal(t, 0, suite.Tests)
	assert.Empty(t, suite.Cases)
	assert.Contains(t, suite.Properties, Property{Name: "session-state", Value: "running"})
}

func TestGenerateZeroRunSettledSession(t *testing.T) {
	t.Parallel()

	sessions := map[domain.SessionID]*domain.Session{"5": settledSession("5")}

	doc := Generate(sessions, Options{})
	suite := doc.Suites[0]
	assert.Equal(t, 0, suite.Tests)
	assert.Equal(t, 0, suite.Failures)
	assert.Empty(t, suite.Cases)
}

func TestGenerateDeterministicSuiteOrderAndBytes(t *testing.T) {
	t.Parallel()

	sessions := map[domain.SessionID]*domain.Session{
		"b200": settledSession("b200", run("t1", "passed")),
		"a100": settledSession("a100", run("t2", "failed")),
		"c300": settledSession("c300"),
	}

	doc := Generate(sessions, Options{})
	require.Len(t, doc.Suites, 3)
	assert.Equal(t, "a100", doc.Suites[0].Name)
	assert.Equal(t, "b200", doc.Suites[1].Name)
	assert.Equal(t, "c300", doc.Suites[2].Name)

	var first, second bytes.Buffer
	require.NoError(t, Generate(sessions, Options{}).Encode(&first))
	require.NoError(t, Generate(sessions, Options{}).Encode(&second))
	assert.Equal(t, first.Bytes(), second.Bytes())
}

func TestGenerateCaseClassNameFallsBackToSession(t *testing.T) {
	t.Parallel()

	grouped := run("g1", "passed")
	grouped.Group = "smoke"
	plain := run("g2", "passed")

	doc := Generate(map[domain.SessionID]*domain.Session{"42": settledSession("42", grouped, plain)}, Options{})
	cases := doc.Suites[0].Cases
	assert.Equal(t, "smoke", cases[0].ClassName)
	assert.Equal(t, "42", cases[1].ClassName)
}

func TestEncodeEmitsHeaderOnce(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, Generate(nil, Options{}).Encode(&buf))
	assert.True(t, strings.HasPrefix(buf.String(), xml.Header))
	assert.Equal(t, 1, strings.Count(buf.String(), "<?xml"))
	assert.Contains(t, buf.String(), "<testsuites")
}
