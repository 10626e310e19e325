package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/goldengate/goldengate/internal/ggerrors"
)

// Settings is the gateway's top-level configuration: where it listens, how
// it persists time-locks, how it delivers notifications, and where the
// ruleset/credential/policy files live. It is distinct from a Ruleset
// (compiled separately by CompileRulesets) -- this is the process-wide
// settings document the teacher's internal/config/config.go loads with
// viper.
type Settings struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	AdminAddr       string        `mapstructure:"admin_addr"`
	AdminTokenHash  string        `mapstructure:"admin_token_hash"`
	RulesetPath     string        `mapstructure:"ruleset_path"`
	PolicyPath      string        `mapstructure:"policy_path"`
	UpstreamTimeout time.Duration `mapstructure:"upstream_timeout"`
	LogLevel        string        `mapstructure:"log_level"`

	TimeLock TimeLockSettings `mapstructure:"timelock"`
	Notify   NotifySettings   `mapstructure:"notify"`

	// ConfigPath is the file Load actually resolved and read, recorded for
	// diagnostics (e.g. the "serve" command logs it at startup).
	ConfigPath string `mapstructure:"-"`
}

// TimeLockSettings selects and configures the TimeLock persistence backend.
type TimeLockSettings struct {
	Backend  string `mapstructure:"backend"` // "memory" or "bolt"
	BoltPath string `mapstructure:"bolt_path"`
}

// NotifySettings selects and configures the notification broker.
type NotifySettings struct {
	Broker     string `mapstructure:"broker"` // "log", "smtp", "webhook"
	SMTPAddr   string `mapstructure:"smtp_addr"`
	SMTPFrom   string `mapstructure:"smtp_from"`
	WebhookURL string `mapstructure:"webhook_url"`
}

// Load resolves the configuration path (see ResolvePath) and decodes
// Settings from it via viper, with environment variables under the
// GOLDENGATE_ prefix overriding file values -- mirroring the teacher's
// v.SetEnvPrefix/v.AutomaticEnv pairing.
func Load(explicitPath string) (*Settings, error) {
	path, err := ResolvePath(explicitPath)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("listen_addr", "0.0.0.0:8080")
	v.SetDefault("admin_addr", "127.0.0.1:9191")
	v.SetDefault("upstream_timeout", "0s")
	v.SetDefault("log_level", "info")
	v.SetDefault("timelock.backend", "memory")
	v.SetDefault("timelock.bolt_path", "/var/lib/goldengate/timelock.db")
	v.SetDefault("notify.broker", "log")

	if err := v.ReadInConfig(); err != nil {
		return nil, ggerrors.NewConfigError("reading %s: %v", path, err)
	}

	v.SetEnvPrefix("GOLDENGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{
		"listen_addr", "admin_addr", "admin_token_hash", "ruleset_path", "policy_path",
		"upstream_timeout", "log_level",
		"timelock.backend", "timelock.bolt_path",
		"notify.broker", "notify.smtp_addr", "notify.smtp_from", "notify.webhook_url",
	} {
		_ = v.BindEnv(key)
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, ggerrors.NewConfigError("parsing %s: %v", path, err)
	}
	s.ConfigPath = path

	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate rejects a Settings document the gateway cannot safely start
// with.
func (s *Settings) Validate() error {
	if s.ListenAddr == "" {
		return ggerrors.NewConfigError("listen_addr is required")
	}
	if s.RulesetPath == "" {
		return ggerrors.NewConfigError("ruleset_path is required")
	}
	switch s.TimeLock.Backend {
	case "memory", "bolt":
	default:
		return ggerrors.NewConfigError("unknown timelock backend: %s", s.TimeLock.Backend)
	}
	if s.TimeLock.Backend == "bolt" && s.TimeLock.BoltPath == "" {
		return ggerrors.NewConfigError("timelock.bolt_path is required when timelock.backend is \"bolt\"")
	}
	switch s.Notify.Broker {
	case "log", "smtp", "webhook":
	default:
		return ggerrors.NewConfigError("unknown notify broker: %s", s.Notify.Broker)
	}
	if s.Notify.Broker == "smtp" && (s.Notify.SMTPAddr == "" || s.Notify.SMTPFrom == "") {
		return ggerrors.NewConfigError("notify.smtp_addr and notify.smtp_from are required when notify.broker is \"smtp\"")
	}
	if s.Notify.Broker == "webhook" && s.Notify.WebhookURL == "" {
		return ggerrors.NewConfigError("notify.webhook_url is required when notify.broker is \"webhook\"")
	}
	return nil
}

// String renders Settings for startup logging, omitting the admin token
// hash.
func (s *Settings) String() string {
	return fmt.Sprintf("Settings{listen=%s admin=%s timelock=%s notify=%s config=%s}",
		s.ListenAddr, s.AdminAddr, s.TimeLock.Backend, s.Notify.Broker, s.ConfigPath)
}
