// Package config holds the run's tunable options (spec §6's table) and the
// env/default overlay, grounded on the teacher's internal/app.Config and
// ApplyEnvToConfig: explicit struct fields win, then environment variables,
// then the defaults below.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config parameterizes one research run. Field names and defaults mirror
// the option table in spec §6.
type Config struct {
	SearxURL  string
	SearxKey  string
	UserAgent string

	MaxInitialResults int
	MaxLevel2PerPage  int
	MaxTotalPages     int // 0 means unlimited

	RequestTimeout     time.Duration
	OverallDeadline    time.Duration
	MaxConcurrency     int
	PerHostMinInterval time.Duration
	MaxRetries         int
	MaxBytesPerPage    int64
}

// Default returns the configuration defaults named in spec §6.
func Default() Config {
	return Config{
		UserAgent:          "webresearch/1.0 (+https://github.com/hyperifyio/webresearch)",
		MaxInitialResults:  20,
		MaxLevel2PerPage:   10,
		MaxTotalPages:      0,
		RequestTimeout:     30 * time.Second,
		OverallDeadline:    120 * time.Second,
		MaxConcurrency:     10,
		PerHostMinInterval: 500 * time.Millisecond,
		MaxRetries:         2,
		MaxBytesPerPage:    1_000_000,
	}
}

// ApplyEnv overlays environment variables onto unset (zero-value) fields of
// cfg, matching the teacher's "explicit value wins over env" precedence.
func ApplyEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	if cfg.SearxURL == "" {
		cfg.SearxURL = firstNonEmptyEnv("SEARX_URL", "SEARXNG_URL")
	}
	if cfg.SearxKey == "" {
		cfg.SearxKey = firstNonEmptyEnv("SEARX_KEY", "SEARXNG_KEY")
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = os.Getenv("RESEARCH_USER_AGENT")
	}
	if cfg.MaxInitialResults == 0 {
		if n, ok := envInt("MAX_INITIAL_RESULTS"); ok {
			cfg.MaxInitialResults = n
		}
	}
	if cfg.MaxLevel2PerPage == 0 {
		if n, ok := envInt("MAX_LEVEL2_PER_PAGE"); ok {
			cfg.MaxLevel2PerPage = n
		}
	}
	if cfg.MaxTotalPages == 0 {
		if n, ok := envInt("MAX_TOTAL_PAGES"); ok {
			cfg.MaxTotalPages = n
		}
	}
	if cfg.MaxConcurrency == 0 {
		if n, ok := envInt("MAX_CONCURRENCY"); ok {
			cfg.MaxConcurrency = n
		}
	}
	if cfg.MaxRetries == 0 {
		if n, ok := envInt("MAX_RETRIES"); ok {
			cfg.MaxRetries = n
		}
	}
	if cfg.MaxBytesPerPage == 0 {
		if n, ok := envInt("MAX_BYTES_PER_PAGE"); ok {
			cfg.MaxBytesPerPage = int64(n)
		}
	}
	if cfg.RequestTimeout == 0 {
		if d, ok := envDuration("REQUEST_TIMEOUT_SEC"); ok {
			cfg.RequestTimeout = d
		}
	}
	if cfg.OverallDeadline == 0 {
		if d, ok := envDuration("OVERALL_DEADLINE_SEC"); ok {
			cfg.OverallDeadline = d
		}
	}
	if cfg.PerHostMinInterval == 0 {
		if s := os.Getenv("PER_HOST_MIN_INTERVAL_MS"); s != "" {
			if n, err := strconv.Atoi(s); err == nil && n >= 0 {
				cfg.PerHostMinInterval = time.Duration(n) * time.Millisecond
			}
		}
	}
}

func firstNonEmptyEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func envInt(key string) (int, bool) {
	s := os.Getenv(key)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envDuration(key string) (time.Duration, bool) {
	s := os.Getenv(key)
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return time.Duration(n) * time.Second, true
}

// Validate returns a configuration-error (spec §7) for option values that
// would make the pipeline meaningless or unsafe to run, before any network
// activity starts.
func (c Config) Validate() error {
	if c.MaxConcurrency < 0 {
		return fmt.Errorf("configuration-error: max_concurrency must be >= 0, got %d", c.MaxConcurrency)
	}
	if c.MaxInitialResults < 0 {
		return fmt.Errorf("configuration-error: max_initial_results must be >= 0, got %d", c.MaxInitialResults)
	}
	if c.MaxLevel2PerPage < 0 {
		return fmt.Errorf("configuration-error: max_level2_per_page must be >= 0, got %d", c.MaxLevel2PerPage)
	}
	if c.MaxTotalPages < 0 {
		return fmt.Errorf("configuration-error: max_total_pages must be >= 0, got %d", c.MaxTotalPages)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("configuration-error: max_retries must be >= 0, got %d", c.MaxRetries)
	}
	if c.MaxBytesPerPage < 0 {
		return fmt.Errorf("configuration-error: max_bytes_per_page must be >= 0, got %d", c.MaxBytesPerPage)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("configuration-error: request_timeout_sec must be >= 0, got %s", c.RequestTimeout)
	}
	if c.OverallDeadline < 0 {
		return fmt.Errorf("configuration-error: overall_deadline_sec must be >= 0, got %s", c.OverallDeadline)
	}
	if c.PerHostMinInterval < 0 {
		return fmt.Errorf("configuration-error: per_host_min_interval_ms must be >= 0, got %s", c.PerHostMinInterval)
	}
	return nil
}
