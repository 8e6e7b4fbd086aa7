// Package config loads the action configuration from INPUT_*
// environment variables, the way GitHub Actions hands inputs to the
// process (input `vapi-url` becomes `INPUT_VAPI_URL`).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/silicon-ci/vmanager-action/internal/domain"
	"github.com/spf13/viper"
	"goa.design/clue/log"
)

const (
	keyVAPIURL           = "vapi-url"
	keyVAPIUser          = "vapi-user"
	keyVAPIPassword      = "vapi-password"
	keyAuthRequired      = "auth-required"
	keyConnTimeout       = "conn-timeout"
	keyReadTimeout       = "read-timeout"
	keyIgnoreSSLErrors   = "ignore-ssl-errors"
	keyRequestsPerSecond = "requests-per-second"

	keyVSIFPath          = "vsif-path"
	keyVSIFInputFile     = "vsif-input-file"
	keyEnvVariables      = "env-variables"
	keyAttrValues        = "attr-values"
	keyDefineValues      = "define-values"
	keyUseUserOnFarm     = "use-user-on-farm"
	keyFarmUser          = "farm-user"
	keyFarmPassword      = "farm-password"
	keyUserPrivateSSHKey = "user-private-ssh-key"
	keyEnvSourceFile     = "env-source-file"
	keyEnvSourceFileType = "env-source-file-type"
	keyIDsOutputPath     = "ids-output-path"

	keySessionsInputFile = "sessions-input-file"

	keyWaitForSessionEnd = "wait-for-session-end"
	keySessionTimeout    = "session-timeout"
	keyPollInterval      = "poll-interval"

	keyInaccessibleResolver = "inaccessible-resolver"
	keyStoppedResolver      = "stopped-resolver"
	keyFailedResolver       = "failed-resolver"
	keyDoneResolver         = "done-resolver"
	keySuspendedResolver    = "suspended-resolver"

	keyFailIfAllRunsFailed     = "fail-job-if-all-runs-failed"
	keyFailUnlessAllRunsPassed = "fail-job-unless-all-runs-passed"

	keyGenerateJUnitReport = "generate-junit-report"
	keyJUnitReportPath     = "junit-report-path"
	keyExtraAttributes     = "extra-attributes"
	keyNoAppendSeed        = "no-append-seed"

	keyStatusFilePath = "status-file-path"

	keyAPIURL        = "api-url"
	keyAPIMethod     = "api-method"
	keyAPIInput      = "api-input"
	keyAPIInputFile  = "api-input-file"
	keyAPIOutputFile = "api-output-file"
)

// Config is the fully resolved action configuration. Durations are
// already converted from the minute and second granularities the raw
// inputs use.
type Config struct {
	VAPIURL           string
	VAPIUser          string
	VAPIPassword      string
	AuthRequired      bool
	ConnTimeout       time.Duration
	ReadTimeout       time.Duration
	IgnoreSSLErrors   bool
	RequestsPerSecond float64

	VSIFPath          string
	VSIFInputFile     string
	EnvVariables      string
	AttrValues        string
	DefineValues      string
	UseUserOnFarm     bool
	FarmUser          string
	FarmPassword      string
	UserPrivateSSHKey bool
	EnvSourceFile     string
	EnvSourceShell    string
	IDsOutputPath     string

	SessionsInputFile string

	WaitForSessionEnd bool
	SessionTimeout    time.Duration
	PollInterval      time.Duration

	Policy domain.ResolverPolicy

	FailIfAllRunsFailed     bool
	FailUnlessAllRunsPassed bool

	GenerateJUnitReport bool
	JUnitReportPath     string
	ExtraAttributes     []string
	NoAppendSeed        bool

	StatusFilePath string

	APIURL        string
	APIMethod     string
	APIInput      string
	APIInputFile  string
	APIOutputFile string
}

// Load reads INPUT_* variables through viper and validates the result.
func Load(v *viper.Viper) (Config, error) {
	if v == nil {
		v = viper.New()
	}

	v.SetEnvPrefix("INPUT")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	policy, err := domain.PolicyFromStrings(
		v.GetString(keyInaccessibleResolver),
		v.GetString(keyStoppedResolver),
		v.GetString(keyFailedResolver),
		v.GetString(keyDoneResolver),
		v.GetString(keySuspendedResolver),
	)
	if err != nil {
		return Config{}, err
	}

	shell, err := normalizeSourceShell(v.GetString(keyEnvSourceFileType))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		VAPIURL:           strings.TrimRight(strings.TrimSpace(v.GetString(keyVAPIURL)), "/"),
		VAPIUser:          v.GetString(keyVAPIUser),
		VAPIPassword:      v.GetString(keyVAPIPassword),
		AuthRequired:      v.GetBool(keyAuthRequired),
		ConnTimeout:       time.Duration(v.GetInt(keyConnTimeout)) * time.Minute,
		ReadTimeout:       time.Duration(v.GetInt(keyReadTimeout)) * time.Minute,
		IgnoreSSLErrors:   v.GetBool(keyIgnoreSSLErrors),
		RequestsPerSecond: v.GetFloat64(keyRequestsPerSecond),

		VSIFPath:          v.GetString(keyVSIFPath),
		VSIFInputFile:     v.GetString(keyVSIFInputFile),
		EnvVariables:      v.GetString(keyEnvVariables),
		AttrValues:        v.GetString(keyAttrValues),
		DefineValues:      v.GetString(keyDefineValues),
		UseUserOnFarm:     v.GetBool(keyUseUserOnFarm),
		FarmUser:          v.GetString(keyFarmUser),
		FarmPassword:      v.GetString(keyFarmPassword),
		UserPrivateSSHKey: v.GetBool(keyUserPrivateSSHKey),
		EnvSourceFile:     v.GetString(keyEnvSourceFile),
		EnvSourceShell:    shell,
		IDsOutputPath:     v.GetString(keyIDsOutputPath),

		SessionsInputFile: v.GetString(keySessionsInputFile),

		WaitForSessionEnd: v.GetBool(keyWaitForSessionEnd),
		SessionTimeout:    time.Duration(v.GetInt(keySessionTimeout)) * time.Minute,
		PollInterval:      time.Duration(v.GetInt(keyPollInterval)) * time.Second,

		Policy: policy,

		FailIfAllRunsFailed:     v.GetBool(keyFailIfAllRunsFailed),
		FailUnlessAllRunsPassed: v.GetBool(keyFailUnlessAllRunsPassed),

		GenerateJUnitReport: v.GetBool(keyGenerateJUnitReport),
		JUnitReportPath:     v.GetString(keyJUnitReportPath),
		ExtraAttributes:     splitList(v.GetString(keyExtraAttributes)),
		NoAppendSeed:        v.GetBool(keyNoAppendSeed),

		StatusFilePath: v.GetString(keyStatusFilePath),

		APIURL:        v.GetString(keyAPIURL),
		APIMethod:     strings.ToUpper(strings.TrimSpace(v.GetString(keyAPIMethod))),
		APIInput:      v.GetString(keyAPIInput),
		APIInputFile:  v.GetString(keyAPIInputFile),
		APIOutputFile: v.GetString(keyAPIOutputFile),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(keyVAPIUser, "vAPI")
	v.SetDefault(keyAuthRequired, true)
	v.SetDefault(keyConnTimeout, 1)
	v.SetDefault(keyReadTimeout, 30)
	v.SetDefault(keyIgnoreSSLErrors, false)
	v.SetDefault(keyRequestsPerSecond, 10)

	v.SetDefault(keyEnvSourceFileType, "bsh")
	v.SetDefault(keyIDsOutputPath, "session_launch.output")

	v.SetDefault(keyWaitForSessionEnd, true)
	v.SetDefault(keySessionTimeout, 0)
	v.SetDefault(keyPollInterval, 10)

	v.SetDefault(keyInaccessibleResolver, "fail")
	v.SetDefault(keyStoppedResolver, "fail")
	v.SetDefault(keyFailedResolver, "fail")
	v.SetDefault(keyDoneResolver, "continue")
	v.SetDefault(keySuspendedResolver, "continue")

	v.SetDefault(keyGenerateJUnitReport, true)
	v.SetDefault(keyJUnitReportPath, "junit_report.xml")

	v.SetDefault(keyStatusFilePath, "session_status.toml")

	v.SetDefault(keyAPIMethod, "POST")
}

func (c Config) Validate() error {
	if c.VAPIURL == "" {
		return errors.New("vapi-url is required")
	}

	parsed, err := url.Parse(c.VAPIURL)
	if err != nil {
		return fmt.Errorf("vapi-url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("vapi-url: unsupported scheme %q (want http or https)", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("vapi-url: missing host in %q", c.VAPIURL)
	}

	if c.ConnTimeout < 0 {
		return errors.New("conn-timeout must not be negative")
	}
	if c.ReadTimeout <= 0 {
		return errors.New("read-timeout must be positive")
	}
	if c.RequestsPerSecond < 0 {
		return errors.New("requests-per-second must not be negative")
	}
	if c.PollInterval <= 0 {
		return errors.New("poll-interval must be positive")
	}
	if c.SessionTimeout < 0 {
		return errors.New("session-timeout must not be negative")
	}

	if err := c.Policy.Validate(); err != nil {
		return err
	}

	return nil
}

// FarmCredentials resolves the credentials passed to launched sessions,
// falling back to the vAPI account when no dedicated farm user is set.
func (c Config) FarmCredentials() *domain.FarmCredentials {
	if !c.UseUserOnFarm {
		return nil
	}
	if c.UserPrivateSSHKey {
		return &domain.FarmCredentials{PublicKey: true}
	}

	user := c.FarmUser
	if user == "" {
		user = c.VAPIUser
	}
	password := c.FarmPassword
	if password == "" {
		password = c.VAPIPassword
	}

	return &domain.FarmCredentials{Username: user, Password: password}
}

// LogFields implements log.Fielder. Credentials stay out of the log
// stream.
func (c Config) LogFields() []log.KV {
	return []log.KV{
		{K: "vapi_url", V: c.VAPIURL},
		{K: "vapi_user", V: c.VAPIUser},
		{K: "auth_required", V: c.AuthRequired},
		{K: "conn_timeout", V: c.ConnTimeout.String()},
		{K: "read_timeout", V: c.ReadTimeout.String()},
		{K: "poll_interval", V: c.PollInterval.String()},
		{K: "session_timeout", V: c.SessionTimeout.String()},
		{K: "wait_for_session_end", V: c.WaitForSessionEnd},
		{K: "generate_junit_report", V: c.GenerateJUnitReport},
	}
}

func normalizeSourceShell(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "sh", "bsh", "bash":
		return "BSH", nil
	case "csh":
		return "CSH", nil
	default:
		return "", fmt.Errorf("env-source-file-type: unknown shell %q (want sh or csh)", raw)
	}
}

func splitList(raw string) []string {
	normalized := strings.NewReplacer(";", ",", "\n", ",").Replace(raw)

	var values []string
	for _, part := range strings.Split(normalized, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		values = append(values, part)
	}

	return values
}
