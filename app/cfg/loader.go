package cfg

import (
	"cmp"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

const DefaultFeedURL = "http://www.ocremix.org/feeds/ten20/"

type rawCfg struct {
	// Sources and state
	FeedURL     string `long:"feed-url" env:"FEED_URL" default:"http://www.ocremix.org/feeds/ten20/" description:"RSS feed to poll"`
	HistoryFile string `long:"history-file" env:"HISTORY_FILE" description:"History file (default: .ocremix_history next to the executable)"`
	LogFile     string `long:"log-file" env:"LOG_FILE" description:"Append-only log file, '-' for stderr (default: remix-grab.log next to the executable)"`
	Ledger      string `long:"ledger" env:"LEDGER_PATH" description:"SQLite run ledger (default: $XDG_DATA_HOME/remix-grab/ledger.db)"`
	NoLedger    bool   `long:"no-ledger" env:"NO_LEDGER" description:"Disable the SQLite run ledger"`
	ConfigFile  string `long:"config" env:"CONFIG_FILE" description:"YAML settings file"`

	// HTTP
	UserAgent       string        `long:"user-agent" env:"USER_AGENT" default:"remix-grab/1.0" description:"User agent string for HTTP requests"`
	Timeout         time.Duration `long:"timeout" env:"TIMEOUT" default:"30s" description:"Timeout for feed and landing page requests"`
	DownloadTimeout time.Duration `long:"download-timeout" env:"DOWNLOAD_TIMEOUT" default:"10m" description:"Timeout for a single media download"`
	MediaExt        string        `long:"media-ext" env:"MEDIA_EXT" default:".mp3" description:"Media file extension to look for on landing pages"`
	Workers         int           `long:"workers" env:"WORKERS" default:"1" description:"Number of entries resolved and downloaded concurrently"`

	// Watch mode
	Interval     time.Duration `long:"interval" env:"INTERVAL" description:"Poll the feed on this interval instead of exiting after one pass"`
	Listen       string        `long:"listen" env:"LISTEN" description:"Serve the status API on this address (e.g. :8080)"`
	APIAccessKey string        `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for /api endpoints (optional)"`
	BaseURL      string        `long:"base-url" env:"BASE_URL" description:"Public base URL used in the downloads feed"`

	Debug bool `long:"debug" env:"DEBUG" description:"Enable debug logging and per-entry progress on stdout"`

	Args struct {
		TitlePattern string `positional-arg-name:"title_pattern" required:"yes" description:"Regular expression matched against entry titles, or 'all'"`
		DownloadDir  string `positional-arg-name:"download_directory" required:"yes" description:"Existing directory to save media into"`
		DebugFlag    string `positional-arg-name:"debug_flag" description:"Any non-empty value enables debug output"`
	} `positional-args:"yes"`
}

// Load parses args (without the program name), merges the optional YAML
// settings file and validates the result.
func Load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = "remix-grab"
	parser.Usage = "[OPTIONS] title_pattern download_directory [debug_flag]"

	if _, err := parser.ParseArgs(args); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			return nil, &UsageError{Err: ErrHelp, Usage: flagsErr.Message}
		}
		return nil, &UsageError{Err: fmt.Errorf("failed to parse arguments: %w", err), Usage: helpText(parser)}
	}

	if raw.ConfigFile != "" {
		file, err := loadFile(raw.ConfigFile)
		if err != nil {
			return nil, err
		}
		file.applyTo(&raw, func(longName string) bool {
			return explicitlySet(parser, longName)
		})
	}

	cfg, err := build(&raw)
	if err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func build(raw *rawCfg) (*Cfg, error) {
	downloadDir, err := expandHome(raw.Args.DownloadDir)
	if err != nil {
		return nil, fmt.Errorf("failed to expand download directory: %w", err)
	}

	historyFile := raw.HistoryFile
	if historyFile == "" {
		if historyFile, err = besideExecutable(defaultHistoryName); err != nil {
			return nil, err
		}
	}
	if historyFile, err = expandHome(historyFile); err != nil {
		return nil, fmt.Errorf("failed to expand history file: %w", err)
	}

	logFile := raw.LogFile
	if logFile == "" {
		if logFile, err = besideExecutable(defaultLogName); err != nil {
			return nil, err
		}
	}
	if logFile, err = expandHome(logFile); err != nil {
		return nil, fmt.Errorf("failed to expand log file: %w", err)
	}

	var ledgerPath string
	if !raw.NoLedger {
		ledgerPath = cmp.Or(raw.Ledger, defaultLedgerPath())
		if ledgerPath, err = expandHome(ledgerPath); err != nil {
			return nil, fmt.Errorf("failed to expand ledger path: %w", err)
		}
	}

	mediaExt := strings.TrimSpace(raw.MediaExt)
	if mediaExt != "" && !strings.HasPrefix(mediaExt, ".") {
		mediaExt = "." + mediaExt
	}

	listen := raw.Listen
	baseURL := raw.BaseURL
	if baseURL == "" && listen != "" {
		baseURL = "http://" + localAddress(listen)
	}

	return &Cfg{
		TitlePattern:    raw.Args.TitlePattern,
		DownloadDir:     downloadDir,
		Debug:           raw.Debug || raw.Args.DebugFlag != "",
		FeedURL:         strings.TrimSpace(raw.FeedURL),
		HistoryFile:     historyFile,
		LogFile:         logFile,
		LedgerPath:      ledgerPath,
		UserAgent:       raw.UserAgent,
		Timeout:         raw.Timeout,
		DownloadTimeout: raw.DownloadTimeout,
		MediaExt:        mediaExt,
		Workers:         raw.Workers,
		Interval:        raw.Interval,
		Listen:          listen,
		APIAccessKey:    raw.APIAccessKey,
		BaseURL:         baseURL,
		Version:         GetVersion(),
	}, nil
}

func (c *Cfg) validate() error {
	info, err := os.Stat(c.DownloadDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &DirectoryError{Path: c.DownloadDir, Err: ErrDirectoryNotFound}
		}
		return &DirectoryError{Path: c.DownloadDir, Err: err}
	}
	if !info.IsDir() {
		return &DirectoryError{Path: c.DownloadDir, Err: fmt.Errorf("not a directory")}
	}

	if c.FeedURL == "" {
		return fmt.Errorf("feed URL must not be empty")
	}
	if c.MediaExt == "" {
		return fmt.Errorf("media extension must not be empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.Timeout <= 0 || c.DownloadTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.Interval < 0 {
		return fmt.Errorf("interval must not be negative")
	}

	return nil
}

// explicitlySet reports whether longName was given on the command line or
// through its environment variable. go-flags marks both default and env
// values as defaults, so the env lookup is done here.
func explicitlySet(parser *flags.Parser, longName string) bool {
	opt := parser.FindOptionByLongName(longName)
	if opt == nil {
		return false
	}
	if opt.IsSet() && !opt.IsSetDefault() {
		return true
	}
	if opt.EnvDefaultKey != "" {
		if _, ok := os.LookupEnv(opt.EnvDefaultKey); ok {
			return true
		}
	}
	return false
}

func helpText(parser *flags.Parser) string {
	var sb strings.Builder
	parser.WriteHelp(&sb)
	return sb.String()
}

func localAddress(listen string) string {
	if strings.HasPrefix(listen, ":") {
		return "localhost" + listen
	}
	return listen
}
