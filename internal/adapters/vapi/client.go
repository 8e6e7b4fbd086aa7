// Package vapi implements the REST client for a Verisium Manager
// server. Every method returns *domain.TransportError for HTTP and
// network failures; callers treat those as fatal and never retry.
package vapi

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"goa.design/clue/log"
	"golang.org/x/time/rate"

	"github.com/silicon-ci/vmanager-action/internal/domain"
	"github.com/silicon-ci/vmanager-action/internal/ports"
	"github.com/silicon-ci/vmanager-action/internal/version"
)

const (
	maxResponseBytes = 8 << 20
	maxErrorBytes    = 2048

	defaultReadTimeout = 30 * time.Minute
)

type Config struct {
	BaseURL      string
	User         string
	Password     string
	AuthRequired bool

	ConnTimeout     time.Duration
	ReadTimeout     time.Duration
	InsecureSkipTLS bool

	// RequestsPerSecond throttles outgoing requests; zero or negative
	// disables the limiter.
	RequestsPerSecond float64

	// RunAttributeKeys are extra run attributes projected into run
	// queries on top of the built-in selection.
	RunAttributeKeys []string
}

type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

var (
	_ ports.StatusClient     = (*Client)(nil)
	_ ports.SessionLauncher  = (*Client)(nil)
	_ ports.SessionDirectory = (*Client)(nil)
	_ ports.SessionSuspender = (*Client)(nil)
)

func New(cfg Config) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ConnTimeout > 0 {
		transport.DialContext = (&net.Dialer{Timeout: cfg.ConnTimeout}).DialContext
	}
	if cfg.InsecureSkipTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	readTimeout := cfg.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		cfg:     cfg,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   readTimeout,
			Transport: transport,
		},
		limiter: limiter,
	}
}

func (c *Client) request(ctx context.Context, op, method, path string, body any) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &domain.TransportError{Op: op, Message: err.Error()}
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("User-Agent", "vmgr/"+version.Version)
	if c.cfg.AuthRequired {
		request.SetBasicAuth(c.cfg.User, c.cfg.Password)
	}

	log.Debugf(ctx, "vapi %s %s", method, path)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, &domain.TransportError{Op: op, Message: err.Error()}
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return nil, &domain.TransportError{Op: op, Message: fmt.Sprintf("read response: %v", err)}
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, &domain.TransportError{
			Op:         op,
			StatusCode: response.StatusCode,
			Message:    truncate(strings.TrimSpace(string(raw)), maxErrorBytes),
		}
	}

	return raw, nil
}

// CheckConnection verifies the server is reachable and the credentials
// work. It returns the number of sessions known to the server.
func (c *Client) CheckConnection(ctx context.Context) (int64, error) {
	raw, err := c.request(ctx, "sessions.count", http.MethodPost, "/rest/sessions/count", struct{}{})
	if err != nil {
		return 0, err
	}

	var result struct {
		Count int64 `json:"count"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return 0, fmt.Errorf("sessions.count: decode response: %w", err)
	}

	return result.Count, nil
}

type launchCredentials struct {
	ConnectType string `json:"connectType,omitempty"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
}

type preliminaryStage struct {
	SourceFilePath string `json:"sourceFilePath"`
	Shell          string `json:"shell"`
}

type launchPayload struct {
	VSIF             string             `json:"vsif"`
	Environment      json.RawMessage    `json:"environment,omitempty"`
	Attributes       json.RawMessage    `json:"attributes,omitempty"`
	Params           json.RawMessage    `json:"params,omitempty"`
	Credentials      *launchCredentials `json:"credentials,omitempty"`
	PreliminaryStage *preliminaryStage  `json:"preliminaryStage,omitempty"`
}

// Launch starts one session from a vsif file and returns the session
// identifier assigned by the server.
func (c *Client) Launch(ctx context.Context, req domain.LaunchRequest) (domain.SessionID, error) {
	payload := launchPayload{
		VSIF:        req.VSIF,
		Environment: req.Environment,
		Attributes:  req.Attributes,
		Params:      req.Params,
	}
	if req.Credentials != nil {
		if req.Credentials.PublicKey {
			payload.Credentials = &launchCredentials{ConnectType: "PUBLIC_KEY"}
		} else {
			payload.Credentials = &launchCredentials{
				Username: req.Credentials.Username,
				Password: req.Credentials.Password,
			}
		}
	}
	if req.SourceFile != "" {
		payload.PreliminaryStage = &preliminaryStage{
			SourceFilePath: req.SourceFile,
			Shell:          req.SourceShell,
		}
	}

	raw, err := c.request(ctx, "sessions.launch", http.MethodPost, "/rest/sessions/launch", payload)
	if err != nil {
		return "", err
	}

	var result map[string]any
	if err := decodeJSON(raw, &result); err != nil {
		return "", fmt.Errorf("sessions.launch: decode response: %w", err)
	}

	id := domain.SessionID(asString(result["value"]))
	if id == "" {
		return "", &domain.TransportError{
			Op:      "sessions.launch",
			Message: fmt.Sprintf("no session id returned for vsif %s: %s", req.VSIF, truncate(string(raw), maxErrorBytes)),
		}
	}

	log.Printf(ctx, "launched vsif %s as session %s", req.VSIF, id)

	return id, nil
}

// Suspend pauses the given sessions.
func (c *Client) Suspend(ctx context.Context, ids []domain.SessionID) error {
	ids = domain.NormalizeSessionIDs(ids)
	if len(ids) == 0 {
		return nil
	}

	values := make([]string, len(ids))
	for i, id := range ids {
		values[i] = string(id)
	}

	body := struct {
		Filter inFilter `json:"filter"`
	}{
		Filter: inFilter{Class: ".InFilter", AttName: "id", Operand: "IN", Values: values},
	}

	_, err := c.request(ctx, "sessions.suspend", http.MethodPost, "/rest/sessions/suspend", body)

	return err
}

// Call performs a free-form vAPI request below /rest and returns the raw
// response body.
func (c *Client) Call(ctx context.Context, method, path string, input json.RawMessage) (json.RawMessage, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = http.MethodPost
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var body any
	if len(bytes.TrimSpace(input)) > 0 {
		body = input
	}

	return c.request(ctx, "api.call", method, "/rest"+path, body)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}

	return s[:n] + "..."
}
