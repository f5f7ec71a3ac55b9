// Package config defines the service configuration file and its
// validation. Config is plain JSON on disk; secrets (the completion API
// key) come from the environment, never from the file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// Feed configures the portal crawl.
type Feed struct {
	// URL is the portal's Atom or RSS feed.
	URL string `json:"url"`

	// MaxEntries caps how many feed entries one run processes.
	// Defaults to 30.
	MaxEntries int `json:"max_entries"`
}

// Store selects the catalog backend.
type Store struct {
	// Kind is a registered backend: jsonfile, sqlite, postgres, mssql.
	Kind string `json:"kind"`

	// DSN is backend-specific; for jsonfile it is the catalog path.
	DSN string `json:"dsn"`
}

// Matcher configures dataset matching.
type Matcher struct {
	// Kind is "openai" or "static".
	Kind string `json:"kind"`

	// Model and BaseURL apply to the openai kind. BaseURL may point at
	// any OpenAI-compatible endpoint.
	Model   string  `json:"model"`
	BaseURL string  `json:"base_url"`
	Temp    float64 `json:"temperature"`

	// TimeoutSeconds bounds one completion request. Defaults to 60.
	TimeoutSeconds int `json:"timeout_seconds"`

	// Static is the fixed verdict used by the static kind.
	Static struct {
		Index         int    `json:"index"`
		UserColumn    string `json:"user_column"`
		CatalogColumn string `json:"catalog_column"`
	} `json:"static"`
}

// Config is the root of the JSON config file shared by the crawler and
// the service.
type Config struct {
	Feed    Feed    `json:"feed"`
	Store   Store   `json:"store"`
	Matcher Matcher `json:"matcher"`

	// HTTPTimeoutSeconds bounds every portal request. Defaults to 30.
	HTTPTimeoutSeconds int `json:"http_timeout_seconds"`

	// PreviewRows is how many rows go into each catalog preview.
	// Defaults to 10.
	PreviewRows int `json:"preview_rows"`
}

// Load reads and decodes a config file and applies defaults. Validation
// is separate so callers can surface warnings without failing.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	var cfg Config
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Feed.MaxEntries <= 0 {
		c.Feed.MaxEntries = 30
	}
	if c.HTTPTimeoutSeconds <= 0 {
		c.HTTPTimeoutSeconds = 30
	}
	if c.PreviewRows <= 0 {
		c.PreviewRows = 10
	}
	if c.Store.Kind == "" {
		c.Store.Kind = "jsonfile"
	}
	if c.Matcher.Kind == "" {
		c.Matcher.Kind = "openai"
	}
	if c.Matcher.TimeoutSeconds <= 0 {
		c.Matcher.TimeoutSeconds = 60
	}
}

// Severity levels for validation issues.
const (
	SeverityError = "error"
	SeverityWarn  = "warn"
)

// Issue is one validation finding, addressed by JSON path.
type Issue struct {
	Severity string
	Path     string
	Message  string
}

// Validate checks a loaded config. Errors make the config unusable;
// warnings flag setups that run but probably not as intended.
func Validate(c Config) []Issue {
	var issues []Issue

	if c.Feed.URL == "" {
		issues = append(issues, Issue{SeverityError, "feed.url", "feed URL is required"})
	}

	switch c.Store.Kind {
	case "jsonfile", "sqlite", "postgres", "mssql":
		if c.Store.DSN == "" {
			issues = append(issues, Issue{SeverityError, "store.dsn", "DSN is required for kind " + c.Store.Kind})
		}
	default:
		issues = append(issues, Issue{SeverityError, "store.kind", fmt.Sprintf("unknown store kind %q", c.Store.Kind)})
	}

	switch c.Matcher.Kind {
	case "openai":
		if os.Getenv("OPENAI_API_KEY") == "" && c.Matcher.BaseURL == "" {
			issues = append(issues, Issue{SeverityWarn, "matcher", "OPENAI_API_KEY is not set and no base_url override is configured"})
		}
	case "static":
		if c.Matcher.Static.Index < 0 {
			issues = append(issues, Issue{SeverityError, "matcher.static.index", "index must be >= 0"})
		}
	default:
		issues = append(issues, Issue{SeverityError, "matcher.kind", fmt.Sprintf("unknown matcher kind %q", c.Matcher.Kind)})
	}

	if c.Feed.MaxEntries > 500 {
		issues = append(issues, Issue{SeverityWarn, "feed.max_entries", "very large entry cap; runs will be slow"})
	}

	return issues
}
