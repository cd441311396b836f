package app

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"nrega-scraper/internal/chrono"
	"nrega-scraper/internal/coordinator"
	"nrega-scraper/internal/history"
	"nrega-scraper/internal/hosting"
	"nrega-scraper/internal/model"
	"nrega-scraper/internal/notify"
	"nrega-scraper/lib/configutil"
)

type HTTPConfig struct {
	TimeoutSeconds int    `json:"timeout_seconds"`
	Attempts       int    `json:"attempts"`
	BackoffMs      int    `json:"backoff_ms"`
	MaxRedirects   int    `json:"max_redirects"`
	UserAgent      string `json:"user_agent"`
	Proxy          string `json:"proxy"`
	Cloudflare     bool   `json:"cloudflare"`
}

type SheetsConfig struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	Attempts       int    `json:"attempts"`
	BackoffMs      int    `json:"backoff_ms"`
}

type HeartbeatConfig struct {
	SpreadsheetID string `json:"spreadsheetId"`
	Tab           string `json:"tab"`
}

// JobConfig overrides the built in settings of a single job.
type JobConfig struct {
	Disabled       bool             `json:"disabled"`
	TimeoutSeconds int              `json:"timeout_seconds"`
	MaxRetries     *int             `json:"max_retries"`
	Heartbeat      *HeartbeatConfig `json:"heartbeat"`
}

type DiagnosticsConfig struct {
	AutoRun   string   `json:"auto_run"`
	ProbeURLs []string `json:"probe_urls"`
	ProbeCell string   `json:"probe_cell"`
}

type Config struct {
	Port        int    `json:"port"`
	TargetsFile string `json:"targets_file"`
	// Schedule is a standard 5 field cron expression in IST, empty disables
	// scheduled runs.
	Schedule   string `json:"schedule"`
	RunOnStart bool   `json:"run_on_start"`
	// DumpDir receives request/response dumps in verbose mode.
	DumpDir     string               `json:"dump_dir"`
	HTTP        HTTPConfig           `json:"http"`
	Sheets      SheetsConfig         `json:"sheets"`
	Jobs        map[string]JobConfig `json:"jobs"`
	History     history.Config       `json:"history"`
	Email       notify.Config        `json:"email"`
	Render      hosting.RenderConfig `json:"render"`
	Diagnostics DiagnosticsConfig    `json:"diagnostics"`
}

const (
	DefaultPort        = 8080
	DefaultTargetsFile = "config/targets.json5"
)

var defaultProbeURLs = []string{
	"https://nreganarep.nic.in/",
	"https://nregastrep.nic.in/",
}

// LoadConfig reads the service config at path. A missing file yields the
// defaults, the environment is applied on top either way.
func LoadConfig(path string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if err != nil && !os.IsNotExist(err) {
		return Config{}, model.ConfigError{Reason: "failed to read config", Subject: path, Err: err}
	}
	cfg = cfg.withDefaults()
	err = cfg.applyEnv(os.Getenv)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.TargetsFile == "" {
		c.TargetsFile = DefaultTargetsFile
	}
	if c.DumpDir == "" {
		c.DumpDir = "<dev_state>/resty"
	}
	if len(c.Diagnostics.ProbeURLs) == 0 {
		c.Diagnostics.ProbeURLs = defaultProbeURLs
	}
	if c.Jobs == nil {
		c.Jobs = map[string]JobConfig{}
	}
	return c
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if port := getenv("PORT"); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return model.ConfigError{Reason: "invalid port", Subject: "PORT", Err: err}
		}
		c.Port = n
	}
	if file := getenv("TARGETS_FILE"); file != "" {
		c.TargetsFile = file
	}
	if schedule := getenv("SCHEDULE"); schedule != "" {
		c.Schedule = schedule
	}
	if policy := getenv("DIAG_AUTO_RUN"); policy != "" {
		c.Diagnostics.AutoRun = policy
	}
	if key := getenv("RENDER_API_KEY"); key != "" && c.Render.ApiKey == "" {
		c.Render.ApiKey = key
	}
	if id := getenv("RENDER_SERVICE_ID"); id != "" && c.Render.ServiceID == "" {
		c.Render.ServiceID = id
	}

	if c.HTTP.Proxy == "" {
		proxy, err := proxyFromEnv(getenv)
		if err != nil {
			return err
		}
		c.HTTP.Proxy = proxy
	}

	if c.Schedule != "" {
		err := chrono.ValidateSpec(c.Schedule)
		if err != nil {
			return model.ConfigError{Reason: "invalid schedule", Subject: c.Schedule, Err: err}
		}
	}

	_, err := coordinator.ParseAutoRunPolicy(c.Diagnostics.AutoRun)
	if err != nil {
		return model.ConfigError{Reason: "invalid diagnostics auto_run", Err: err}
	}
	return nil
}

// proxyFromEnv builds a proxy url out of PROXY_SERVER, PROXY_USER and
// PROXY_PASS. HTTP(S)_PROXY is honored by the transport on its own.
func proxyFromEnv(getenv func(string) string) (string, error) {
	server := getenv("PROXY_SERVER")
	if server == "" {
		return "", nil
	}
	parsed, err := url.Parse(server)
	if err != nil || parsed.Host == "" {
		parsed, err = url.Parse("http://" + server)
	}
	if err != nil {
		return "", model.ConfigError{Reason: "invalid proxy", Subject: "PROXY_SERVER", Err: err}
	}
	if user := getenv("PROXY_USER"); user != "" {
		parsed.User = url.UserPassword(user, getenv("PROXY_PASS"))
	}
	return parsed.String(), nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

func (c Config) job(name string) JobConfig {
	return c.Jobs[name]
}

func (h HeartbeatConfig) destination() (*model.Destination, error) {
	if h.SpreadsheetID == "" || h.Tab == "" {
		return nil, fmt.Errorf("heartbeat needs both spreadsheetId and tab")
	}
	return &model.Destination{SpreadsheetID: h.SpreadsheetID, Tab: h.Tab}, nil
}
