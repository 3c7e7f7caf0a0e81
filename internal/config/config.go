package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"clockline/internal/domain"
)

// Config is the full runtime configuration: portal credentials and tunables
// from the environment, plus the outcome pattern catalog from clockline.yml.
type Config struct {
	Portal   Portal
	Session  Session
	Retry    Retry
	Server   Server
	Catalog  *Catalog
	Timezone string
}

type Portal struct {
	Credentials   domain.Credentials
	LoginURL      string
	LoginTimeout  time.Duration
	SubmitTimeout time.Duration
}

type Session struct {
	Staleness time.Duration
}

type Retry struct {
	Attempts int
	Backoff  time.Duration
}

type Server struct {
	Addr         string
	BasePath     string
	JWTSecret    string
	CommandToken string
}

// FromEnv builds configuration from environment variables, honoring a .env
// file in the working directory when present. Required values are checked by
// Validate, not here, so callers can decide whether absence is fatal.
func FromEnv() *Config {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	_ = v.BindEnv("login-username", "DOORAY_LOGIN_USERNAME")
	_ = v.BindEnv("login-password", "DOORAY_LOGIN_PASSWORD")
	_ = v.BindEnv("subdomain", "DOORAY_SUBDOMAIN")
	_ = v.BindEnv("addr", "CLOCKLINE_ADDR")
	_ = v.BindEnv("base-path", "CLOCKLINE_BASE_PATH")
	_ = v.BindEnv("jwt-secret", "CLOCKLINE_JWT_SECRET")
	_ = v.BindEnv("command-token", "CLOCKLINE_COMMAND_TOKEN")
	_ = v.BindEnv("timezone", "CLOCKLINE_TIMEZONE")
	_ = v.BindEnv("login-url", "CLOCKLINE_LOGIN_URL")
	_ = v.BindEnv("staleness-minutes", "CLOCKLINE_STALENESS_MINUTES")
	_ = v.BindEnv("retry-attempts", "CLOCKLINE_RETRY_ATTEMPTS")
	_ = v.BindEnv("retry-backoff-seconds", "CLOCKLINE_RETRY_BACKOFF_SECONDS")
	_ = v.BindEnv("login-timeout-seconds", "CLOCKLINE_LOGIN_TIMEOUT_SECONDS")
	_ = v.BindEnv("submit-timeout-seconds", "CLOCKLINE_SUBMIT_TIMEOUT_SECONDS")
	v.SetDefault("addr", ":8080")
	v.SetDefault("timezone", "Asia/Seoul")
	v.SetDefault("login-url", "https://dooray.com/orgs")
	v.SetDefault("staleness-minutes", 20)
	v.SetDefault("retry-attempts", 2)
	v.SetDefault("retry-backoff-seconds", 2)
	v.SetDefault("login-timeout-seconds", 45)
	v.SetDefault("submit-timeout-seconds", 30)

	return &Config{
		Portal: Portal{
			Credentials: domain.Credentials{
				Username:  strings.TrimSpace(v.GetString("login-username")),
				Password:  strings.TrimSpace(v.GetString("login-password")),
				Subdomain: strings.TrimSpace(v.GetString("subdomain")),
			},
			LoginURL:      v.GetString("login-url"),
			LoginTimeout:  time.Duration(v.GetInt("login-timeout-seconds")) * time.Second,
			SubmitTimeout: time.Duration(v.GetInt("submit-timeout-seconds")) * time.Second,
		},
		Session: Session{
			Staleness: time.Duration(v.GetInt("staleness-minutes")) * time.Minute,
		},
		Retry: Retry{
			Attempts: v.GetInt("retry-attempts"),
			Backoff:  time.Duration(v.GetInt("retry-backoff-seconds")) * time.Second,
		},
		Server: Server{
			Addr:         v.GetString("addr"),
			BasePath:     v.GetString("base-path"),
			JWTSecret:    v.GetString("jwt-secret"),
			CommandToken: v.GetString("command-token"),
		},
		Timezone: v.GetString("timezone"),
	}
}

// Validate ensures required credentials are present. Absence is a
// startup-time fatal configuration error, never a per-request one.
func (c *Config) Validate() error {
	var missing []string
	if c.Portal.Credentials.Username == "" {
		missing = append(missing, "DOORAY_LOGIN_USERNAME")
	}
	if c.Portal.Credentials.Password == "" {
		missing = append(missing, "DOORAY_LOGIN_PASSWORD")
	}
	if c.Portal.Credentials.Subdomain == "" {
		missing = append(missing, "DOORAY_SUBDOMAIN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location resolves the configured timezone. Validate rejects unknown zones
// at startup, so the UTC fallback is unreachable in a validated config.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Catalog models clockline.yml: the ordered outcome pattern catalog and
// optional webhook targets. Extending it never touches the executor or the
// session manager.
type Catalog struct {
	Patterns []PatternRule   `yaml:"patterns"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// PatternRule maps body text markers to an outcome status. First matching
// rule wins; unmatched text falls through to FATAL_ERROR.
type PatternRule struct {
	Status   domain.Status `yaml:"status"`
	Contains []string      `yaml:"contains"`
}

type WebhookConfig struct {
	URL string `yaml:"url"`
}

// Path returns the catalog file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "clockline.yml")
}

// LoadCatalog reads the catalog from the workspace, falling back to the
// built-in defaults when no file exists.
func LoadCatalog(workspace string) (*Catalog, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultCatalog(), nil
		}
		return nil, err
	}
	return CatalogFromYAML(data)
}

// CatalogFromYAML parses and validates a catalog from raw YAML bytes.
func CatalogFromYAML(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(data, &cat); err != nil {
		return nil, fmt.Errorf("invalid catalog yaml: %w", err)
	}
	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Validate ensures every rule targets a known status and carries markers.
func (c *Catalog) Validate() error {
	for i, rule := range c.Patterns {
		if !rule.Status.Valid() {
			return fmt.Errorf("pattern %d: unknown status %q", i, rule.Status)
		}
		if len(rule.Contains) == 0 {
			return fmt.Errorf("pattern %d (%s): contains is empty", i, rule.Status)
		}
		for _, marker := range rule.Contains {
			if strings.TrimSpace(marker) == "" {
				return fmt.Errorf("pattern %d (%s): empty marker", i, rule.Status)
			}
		}
	}
	for i, wh := range c.Webhooks {
		if strings.TrimSpace(wh.URL) == "" {
			return fmt.Errorf("webhook %d: url is empty", i)
		}
	}
	return nil
}

// DefaultCatalog returns the built-in pattern catalog.
func DefaultCatalog() *Catalog {
	var cat Catalog
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cat)
	return &cat
}

// GenerateDefault returns the default catalog YAML, for `cl config init`.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `# Outcome pattern catalog. Rules are checked in order against the text the
# portal answered with; the first match decides the outcome. Unmatched text is
# reported as FATAL_ERROR.
patterns:
  - status: SUCCESS
    contains: ["정상적으로 처리", "처리가 완료"]

  - status: ALREADY_DONE
    contains: ["이미 출근", "이미 퇴근", "이미 등록", "이미 처리", "already recorded", "duplicate entry"]

  - status: POLICY_REJECTED
    contains: ["허용된 시간", "출근 가능 시간", "퇴근 가능 시간", "근무 시간이 아닙", "outside the allowed", "time window"]

  - status: TRANSIENT_ERROR
    contains: ["일시적인 오류", "잠시 후 다시", "timeout", "temporarily unavailable", "bad gateway"]

# Optional: POST every new history entry to these URLs.
webhooks: []
`
