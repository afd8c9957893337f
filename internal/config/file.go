package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// FileConfig is the on-disk configuration schema accepted alongside flags
// and environment variables, lowest priority of the three. Grounded on the
// teacher's internal/app.FileConfig, trimmed to the options this pipeline
// recognizes (spec §6's option table).
type FileConfig struct {
	Searx struct {
		URL string `yaml:"url" json:"url"`
		Key string `yaml:"key" json:"key"`
	} `yaml:"searx" json:"searx"`

	UserAgent string `yaml:"userAgent" json:"userAgent"`

	Max struct {
		InitialResults int `yaml:"initialResults" json:"initialResults"`
		Level2PerPage  int `yaml:"level2PerPage" json:"level2PerPage"`
		TotalPages     int `yaml:"totalPages" json:"totalPages"`
		BytesPerPage   int `yaml:"bytesPerPage" json:"bytesPerPage"`
		Retries        int `yaml:"retries" json:"retries"`
	} `yaml:"max" json:"max"`

	Timeout struct {
		RequestSec int `yaml:"requestSec" json:"requestSec"`
		OverallSec int `yaml:"overallSec" json:"overallSec"`
	} `yaml:"timeout" json:"timeout"`

	Concurrency          int `yaml:"concurrency" json:"concurrency"`
	PerHostMinIntervalMS int `yaml:"perHostMinIntervalMs" json:"perHostMinIntervalMs"`
}

// LoadFile reads YAML or JSON into a FileConfig, choosing the format by
// extension and falling back to trying both for unrecognized extensions.
func LoadFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(b, &fc); err != nil {
			return fc, fmt.Errorf("parse json: %w", err)
		}
	default:
		if yerr := yaml.Unmarshal(b, &fc); yerr != nil {
			if jerr := json.Unmarshal(b, &fc); jerr != nil {
				return fc, fmt.Errorf("parse config: %v (yaml) / %v (json)", yerr, jerr)
			}
		}
	}
	return fc, nil
}

// ApplyFile overlays fc onto cfg for fields still at their zero value,
// letting flags and env (applied before this call) take precedence.
func ApplyFile(cfg *Config, fc FileConfig) {
	if cfg == nil {
		return
	}
	if cfg.SearxURL == "" && fc.Searx.URL != "" {
		cfg.SearxURL = fc.Searx.URL
	}
	if cfg.SearxKey == "" && fc.Searx.Key != "" {
		cfg.SearxKey = fc.Searx.Key
	}
	if cfg.UserAgent == "" && fc.UserAgent != "" {
		cfg.UserAgent = fc.UserAgent
	}
	if cfg.MaxInitialResults == 0 && fc.Max.InitialResults > 0 {
		cfg.MaxInitialResults = fc.Max.InitialResults
	}
	if cfg.MaxLevel2PerPage == 0 && fc.Max.Level2PerPage > 0 {
		cfg.MaxLevel2PerPage = fc.Max.Level2PerPage
	}
	if cfg.MaxTotalPages == 0 && fc.Max.TotalPages > 0 {
		cfg.MaxTotalPages = fc.Max.TotalPages
	}
	if cfg.MaxBytesPerPage == 0 && fc.Max.BytesPerPage > 0 {
		cfg.MaxBytesPerPage = int64(fc.Max.BytesPerPage)
	}
	if cfg.MaxRetries == 0 && fc.Max.Retries > 0 {
		cfg.MaxRetries = fc.Max.Retries
	}
	if cfg.RequestTimeout == 0 && fc.Timeout.RequestSec > 0 {
		cfg.RequestTimeout = time.Duration(fc.Timeout.RequestSec) * time.Second
	}
	if cfg.OverallDeadline == 0 && fc.Timeout.OverallSec > 0 {
		cfg.OverallDeadline = time.Duration(fc.Timeout.OverallSec) * time.Second
	}
	if cfg.MaxConcurrency == 0 && fc.Concurrency > 0 {
		cfg.MaxConcurrency = fc.Concurrency
	}
	if cfg.PerHostMinInterval == 0 && fc.PerHostMinIntervalMS > 0 {
		cfg.PerHostMinInterval = time.Duration(fc.PerHostMinIntervalMS) * time.Millisecond
	}
}
