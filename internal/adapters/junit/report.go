// Package junit renders settled sessions as a JUnit-style XML report:
// one testsuite per session, one testcase per run record. Suite counts
// come from the same fold the aggregator uses, so report and aggregate
// can never disagree.
package junit

import (
	"encoding/xml"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/silicon-ci/vmanager-action/internal/domain"
)

type Options struct {
	// AppendSeed appends "-seed<value>" to case names of runs that
	// carry a seed.
	AppendSeed bool

	// ExtraAttributeKeys are surfaced as key=value lines in failure
	// bodies, in this order. Keys absent from a record are skipped.
	ExtraAttributeKeys []string
}

type Failure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

type Property struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}

type Case struct {
	Name      string   `xml:"name,attr"`
	ClassName string   `xml:"classname,attr"`
	Time      string   `xml:"time,attr,omitempty"`
	Failure   *Failure `xml:"failure,omitempty"`
}

type Suite struct {
	Name       string     `xml:"name,attr"`
	Tests      int        `xml:"tests,attr"`
	Failures   int        `xml:"failures,attr"`
	Skipped    int        `xml:"skipped,attr"`
	Properties []Property `xml:"properties>property,omitempty"`
	Cases      []Case     `xml:"testcase"`
}

type Document struct {
	XMLName  xml.Name `xml:"testsuites"`
	Tests    int      `xml:"tests,attr"`
	Failures int      `xml:"failures,attr"`
	Skipped  int      `xml:"skipped,attr"`
	Suites   []Suite  `xml:"testsuite"`
}

// Generate builds the report document. Suites are ordered by session
// identifier so the same input always serializes to the same bytes.
// Sessions that never settled appear as empty suites with their last
// state recorded, never silently dropped.
func Generate(sessions map[domain.SessionID]*domain.Session, opts Options) *Document {
	ids := make([]domain.SessionID, 0, len(sessions))
	for id := range sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	doc := &Document{}
	for _, id := range ids {
		suite := buildSuite(sessions[id], opts)
		doc.Tests += suite.Tests
		doc.Failures += suite.Failures
		doc.Skipped += suite.Skipped
		doc.Suites = append(doc.Suites, suite)
	}

	return doc
}

func buildSuite(s *domain.Session, opts Options) Suite {
	suite := Suite{Name: string(s.ID)}
	if s.Status.Name != "" {
		suite.Properties = append(suite.Properties, Property{Name: "session-name", Value: s.Status.Name})
	}

	if s.Settlement != domain.SettlementContinue {
		state := string(s.Status.State)
		if state == "" {
			state = "unknown"
		}
		suite.Properties = append(suite.Properties, Property{Name: "session-state", Value: state})

		return suite
	}

	tally := domain.TallyRuns(s.Runs)
	suite.Tests = tally.Total
	suite.Failures = tally.Failed
	suite.Skipped = tally.Malformed

	for _, run := range s.Runs {
		if run.Malformed() {
			continue
		}

		c := Case{
			Name:      run.DisplayName(opts.AppendSeed),
			ClassName: run.Group,
		}
		if c.ClassName == "" {
			c.ClassName = string(s.ID)
		}
		if run.Duration > 0 {
			c.Time = strconv.FormatInt(run.Duration, 10)
		}
		if run.Outcome != domain.OutcomePass {
			c.Failure = &Failure{
				Message: run.OutcomeLabel(),
				Type:    string(run.Outcome),
				Body:    failureBody(run, opts.ExtraAttributeKeys),
			}
		}

		suite.Cases = append(suite.Cases, c)
	}

	return suite
}

func failureBody(run domain.RunRecord, keys []string) string {
	lines := []string{run.OutcomeLabel()}
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if value, ok := run.Attributes[key]; ok && value != "" {
			lines = append(lines, key+"="+value)
		}
	}

	return strings.Join(lines, "\n")
}

// Encode writes the document with an XML header, indented. encoding/xml
// escapes &, <, >, " and ' in both attribute values and character data,
// which is the escaping guarantee callers rely on.
func (d *Document) Encode(w io.Writer) error {
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("write xml header: %w", err)
	}

	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	_, err := io.WriteString(w, "\n")

	return err
}
