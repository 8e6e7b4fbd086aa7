package vapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"goa.design/clue/log"

	"github.com/silicon-ci/vmanager-action/internal/domain"
)

// vAPI filter payloads. The @c discriminator selects the server-side
// filter class.
type attValueFilter struct {
	Class    string `json:"@c"`
	AttName  string `json:"attName"`
	Operand  string `json:"operand"`
	AttValue string `json:"attValue"`
}

type inFilter struct {
	Class   string   `json:"@c"`
	AttName string   `json:"attName"`
	Operand string   `json:"operand"`
	Values  []string `json:"values"`
}

type chainedFilter struct {
	Class     string `json:"@c"`
	Condition string `json:"condition,omitempty"`
	Chain     []any  `json:"chain"`
}

type relationFilter struct {
	Class        string `json:"@c"`
	RelationName string `json:"relationName"`
	Filter       any    `json:"filter"`
}

type projection struct {
	Type      string   `json:"type"`
	Selection []string `json:"selection"`
}

type querySettings struct {
	WriteHidden bool `json:"write-hidden"`
	StreamMode  bool `json:"stream-mode"`
}

type listQuery struct {
	Filter     any            `json:"filter"`
	Projection *projection    `json:"projection,omitempty"`
	PageLength int            `json:"pageLength,omitempty"`
	Settings   *querySettings `json:"settings,omitempty"`
}

var sessionSelection = []string{
	"session_status", "name", "running", "waiting", "total_runs_in_session",
	"passed_runs", "failed_runs", "other_runs", "owner",
}

type sessionRow struct {
	SessionStatus string      `json:"session_status"`
	Name          string      `json:"name"`
	Owner         string      `json:"owner"`
	Running       json.Number `json:"running"`
	Waiting       json.Number `json:"waiting"`
	TotalRuns     json.Number `json:"total_runs_in_session"`
	PassedRuns    json.Number `json:"passed_runs"`
	FailedRuns    json.Number `json:"failed_runs"`
	OtherRuns     json.Number `json:"other_runs"`
}

func (r sessionRow) toStatus() domain.SessionStatus {
	return domain.SessionStatus{
		State:       domain.SessionState(strings.ToLower(strings.TrimSpace(r.SessionStatus))),
		Name:        r.Name,
		Owner:       r.Owner,
		RunningRuns: numberToInt64(r.Running),
		WaitingRuns: numberToInt64(r.Waiting),
		TotalRuns:   numberToInt64(r.TotalRuns),
		PassedRuns:  numberToInt64(r.PassedRuns),
		FailedRuns:  numberToInt64(r.FailedRuns),
		OtherRuns:   numberToInt64(r.OtherRuns),
	}
}

// SessionState queries one session's current status snapshot. A session
// unknown to the server is a transport error: it either never existed or
// was deleted mid-wait.
func (c *Client) SessionState(ctx context.Context, id domain.SessionID) (domain.SessionStatus, error) {
	query := listQuery{
		Filter: attValueFilter{
			Class:    ".AttValueFilter",
			AttName:  "id",
			Operand:  "EQUALS",
			AttValue: string(id),
		},
		Projection: &projection{Type: "SELECTION_ONLY", Selection: sessionSelection},
	}

	raw, err := c.request(ctx, "sessions.list", http.MethodPost, "/rest/sessions/list", query)
	if err != nil {
		return domain.SessionStatus{}, err
	}

	var rows []sessionRow
	if err := json.Unmarshal(raw, &rows); err != nil {
		return domain.SessionStatus{}, fmt.Errorf("sessions.list: decode response: %w", err)
	}
	if len(rows) == 0 {
		return domain.SessionStatus{}, &domain.TransportError{
			Op:      "sessions.list",
			Message: fmt.Sprintf("session %s not found on server", id),
		}
	}

	return rows[0].toStatus(), nil
}

// SessionIDsByNames resolves session names to identifiers in one query.
// Names without a matching session are simply absent from the result.
func (c *Client) SessionIDsByNames(ctx context.Context, names []string) ([]domain.SessionID, error) {
	chain := make([]any, 0, len(names))
	for _, name := range names {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		chain = append(chain, attValueFilter{
			Class:    ".AttValueFilter",
			AttName:  "name",
			Operand:  "EQUALS",
			AttValue: trimmed,
		})
	}
	if len(chain) == 0 {
		return nil, nil
	}

	query := listQuery{
		Filter:     chainedFilter{Class: ".ChainedFilter", Condition: "OR", Chain: chain},
		Projection: &projection{Type: "SELECTION_ONLY", Selection: []string{"name", "id"}},
		PageLength: 10000,
		Settings:   &querySettings{WriteHidden: true, StreamMode: false},
	}

	raw, err := c.request(ctx, "sessions.list", http.MethodPost, "/rest/sessions/list", query)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	if err := decodeJSON(raw, &rows); err != nil {
		return nil, fmt.Errorf("sessions.list: decode response: %w", err)
	}

	ids := make([]domain.SessionID, 0, len(rows))
	for _, row := range rows {
		id := asString(row["id"])
		if id == "" {
			continue
		}
		log.Debugf(ctx, "resolved session %q to id %s", asString(row["name"]), id)
		ids = append(ids, domain.SessionID(id))
	}

	return ids, nil
}

// runSelection is always projected; configured extra attribute keys are
// appended on top.
var runSelection = []string{
	"test_name", "status", "duration", "test_group", "computed_seed", "id",
	"first_failure_name", "first_failure_description",
}

// runCoreFields are decoded into dedicated RunRecord fields; everything
// else lands in RunRecord.Attributes.
var runCoreFields = map[string]struct{}{
	"test_name":     {},
	"status":        {},
	"duration":      {},
	"test_group":    {},
	"computed_seed": {},
	"id":            {},
}

// SessionRuns fetches all run records of one session. Malformed rows are
// flagged and logged but kept, so downstream counts can surface them.
func (c *Client) SessionRuns(ctx context.Context, id domain.SessionID) ([]domain.RunRecord, error) {
	selection := slices.Clone(runSelection)
	for _, key := range c.cfg.RunAttributeKeys {
		key = strings.TrimSpace(key)
		if key != "" && !slices.Contains(selection, key) {
			selection = append(selection, key)
		}
	}

	query := listQuery{
		Filter: chainedFilter{Class: ".ChainedFilter", Condition: "AND", Chain: []any{
			relationFilter{
				Class:        ".RelationFilter",
				RelationName: "session",
				Filter: chainedFilter{Class: ".ChainedFilter", Condition: "AND", Chain: []any{
					inFilter{Class: ".InFilter", AttName: "id", Operand: "IN", Values: []string{string(id)}},
				}},
			},
		}},
		Projection: &projection{Type: "SELECTION_ONLY", Selection: selection},
		PageLength: 100000,
		Settings:   &querySettings{WriteHidden: true, StreamMode: true},
	}

	raw, err := c.request(ctx, "runs.list", http.MethodPost, "/rest/runs/list", query)
	if err != nil {
		return nil, err
	}

	var rows []map[string]any
	if err := decodeJSON(raw, &rows); err != nil {
		return nil, fmt.Errorf("runs.list: decode response: %w", err)
	}

	records := make([]domain.RunRecord, 0, len(rows))
	for _, row := range rows {
		record := runRecordFromRow(row)
		if record.Malformed() {
			log.Warn(ctx,
				log.KV{K: "msg", V: "malformed run record, counting it as neither pass nor fail"},
				log.KV{K: "session", V: string(id)},
				log.KV{K: "run_id", V: asString(row["id"])})
		}
		records = append(records, record)
	}

	return records, nil
}

func runRecordFromRow(row map[string]any) domain.RunRecord {
	record := domain.RunRecord{
		Name:     strings.TrimSpace(asString(row["test_name"])),
		Group:    strings.TrimSpace(asString(row["test_group"])),
		Status:   strings.TrimSpace(asString(row["status"])),
		Seed:     strings.TrimSpace(asString(row["computed_seed"])),
		Duration: asInt64(row["duration"]),
	}
	record.Outcome = domain.OutcomeFromStatus(record.Status)

	attrs := make(map[string]string)
	for key, value := range row {
		if _, core := runCoreFields[key]; core {
			continue
		}
		if s := asString(value); s != "" {
			attrs[key] = s
		}
	}
	if len(attrs) > 0 {
		record.Attributes = attrs
	}

	return record
}

// decodeJSON unmarshals with numbers kept as json.Number so numeric
// identifiers survive without float mangling.
func decodeJSON(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	return dec.Decode(v)
}

func asString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return fmt.Sprintf("%t", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func asInt64(v any) int64 {
	n, ok := v.(json.Number)
	if !ok {
		return 0
	}
	i, err := n.Int64()
	if err != nil {
		if f, ferr := n.Float64(); ferr == nil {
			return int64(f)
		}

		return 0
	}

	return i
}

func numberToInt64(n json.Number) int64 {
	if n == "" {
		return 0
	}
	i, err := n.Int64()
	if err != nil {
		return 0
	}

	return i
}
