package cfg

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// fileCfg mirrors the long options. Nil fields were not present in the file.
type fileCfg struct {
	FeedURL         *string        `yaml:"feed_url"`
	HistoryFile     *string        `yaml:"history_file"`
	LogFile         *string        `yaml:"log_file"`
	Ledger          *string        `yaml:"ledger"`
	NoLedger        *bool          `yaml:"no_ledger"`
	UserAgent       *string        `yaml:"user_agent"`
	Timeout         *time.Duration `yaml:"timeout"`
	DownloadTimeout *time.Duration `yaml:"download_timeout"`
	MediaExt        *string        `yaml:"media_ext"`
	Workers         *int           `yaml:"workers"`
	Interval        *time.Duration `yaml:"interval"`
	Listen          *string        `yaml:"listen"`
	APIAccessKey    *string        `yaml:"api_key"`
	BaseURL         *string        `yaml:"base_url"`
	Debug           *bool          `yaml:"debug"`
}

func loadFile(path string) (*fileCfg, error) {
	path, err := expandHome(path)
	if err != nil {
		return nil, fmt.Errorf("failed to expand config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var file fileCfg
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &file, nil
}

// applyTo copies every value present in the file onto raw unless the option
// was set explicitly.
func (f *fileCfg) applyTo(raw *rawCfg, explicit func(longName string) bool) {
	setValue(&raw.FeedURL, f.FeedURL, "feed-url", explicit)
	setValue(&raw.HistoryFile, f.HistoryFile, "history-file", explicit)
	setValue(&raw.LogFile, f.LogFile, "log-file", explicit)
	setValue(&raw.Ledger, f.Ledger, "ledger", explicit)
	setValue(&raw.UserAgent, f.UserAgent, "user-agent", explicit)
	setValue(&raw.MediaExt, f.MediaExt, "media-ext", explicit)
	setValue(&raw.Listen, f.Listen, "listen", explicit)
	setValue(&raw.APIAccessKey, f.APIAccessKey, "api-key", explicit)
	setValue(&raw.BaseURL, f.BaseURL, "base-url", explicit)
	setValue(&raw.NoLedger, f.NoLedger, "no-ledger", explicit)
	setValue(&raw.Debug, f.Debug, "debug", explicit)
	setValue(&raw.Workers, f.Workers, "workers", explicit)
	setValue(&raw.Timeout, f.Timeout, "timeout", explicit)
	setValue(&raw.DownloadTimeout, f.DownloadTimeout, "download-timeout", explicit)
	setValue(&raw.Interval, f.Interval, "interval", explicit)
}

func setValue[T any](dst *T, src *T, longName string, explicit func(string) bool) {
	if src == nil || explicit(longName) {
		return
	}
	*dst = *src
}
