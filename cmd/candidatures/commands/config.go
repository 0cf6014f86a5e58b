package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"infojobs-candidatures/lib/configutil"
	"infojobs-candidatures/lib/notify"
	"infojobs-candidatures/lib/reconcile"
	"infojobs-candidatures/lib/snapshotstore"
	"infojobs-candidatures/lib/telemetry"
)

const (
	configName    = "candidatures.json5"
	configEnv     = "CANDIDATURES_CONFIG"
	dataDirEnv    = "CANDIDATURES_DATA_DIR"
	defaultDelay  = 2 * time.Second
	defaultWatch  = "@every 1h"
	defaultKind   = "browser"
	resultsFile   = "results.json"
	snapshotsFile = "snapshots.db"
)

type BrowserConfig struct {
	RemoteURL   string `json:"remote_url"`
	UserDataDir string `json:"user_data_dir"`
	Headless    bool   `json:"headless"`
	// NavigationTimeout is in seconds.
	NavigationTimeout int `json:"navigation_timeout"`
}

type HTTPConfig struct {
	Cookie  string `json:"cookie"`
	Retries int    `json:"retries"`
	// Timeout is in seconds.
	Timeout int `json:"timeout"`
}

type FetcherConfig struct {
	// Kind is one of browser, http or dir.
	Kind    string        `json:"kind"`
	Browser BrowserConfig `json:"browser"`
	HTTP    HTTPConfig    `json:"http"`
	// Dir is the directory the dir fetcher replays pages from.
	Dir string `json:"dir"`
}

type ReconcileConfig struct {
	ListURL      string `json:"list_url"`
	NextPageURL  string `json:"next_page_url"`
	BaseURL      string `json:"base_url"`
	MaxRowErrors int    `json:"max_row_errors"`
	MaxPages     int    `json:"max_pages"`
}

type WatchConfig struct {
	Schedule string `json:"schedule"`
}

type Config struct {
	DataDir string `json:"data_dir"`
	// Delay is the pause after every fetch, in seconds.
	Delay float64 `json:"delay"`
	// DumpDir receives a copy of every fetched page when set.
	DumpDir   string               `json:"dump_dir"`
	Fetcher   FetcherConfig        `json:"fetcher"`
	Reconcile ReconcileConfig      `json:"reconcile"`
	Snapshot  snapshotstore.Config `json:"snapshot"`
	Notify    notify.Config        `json:"notify"`
	Watch     WatchConfig          `json:"watch"`
	Telemetry telemetry.Config     `json:"telemetry"`
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "data"
	}
	return filepath.Join(home, ".infojobs-candidatures")
}

// loadConfig reads the configuration file, if any, and fills in defaults.
// path overrides the search for candidatures.json5.
func loadConfig(path string) (Config, error) {
	if path == "" {
		path = os.Getenv(configEnv)
	}
	config, _, err := configutil.Load[Config](path, configName)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return config.withDefaults(), nil
}

func (c Config) withDefaults() Config {
	if dir := os.Getenv(dataDirEnv); dir != "" {
		c.DataDir = dir
	}
	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}
	c.DataDir = configutil.ExpandPath(c.DataDir)

	if c.Delay <= 0 {
		c.Delay = defaultDelay.Seconds()
	}
	if c.Fetcher.Kind == "" {
		c.Fetcher.Kind = defaultKind
	}
	if c.Fetcher.Dir == "" && c.DumpDir != "" {
		c.Fetcher.Dir = c.DumpDir
	}
	if c.Watch.Schedule == "" {
		c.Watch.Schedule = defaultWatch
	}

	if c.Snapshot.Kind == "" {
		c.Snapshot.Kind = snapshotstore.KindJSON
	}
	if c.Snapshot.Path == "" {
		c.Snapshot.Path = filepath.Join(c.DataDir, resultsFile)
	}
	c.Snapshot.Path = configutil.ExpandPath(c.Snapshot.Path)
	if c.Snapshot.Kind == snapshotstore.KindSQL && c.Snapshot.Database.File == "" && c.Snapshot.Database.Url == "" {
		c.Snapshot.Database.File = filepath.Join(c.DataDir, snapshotsFile)
	}
	return c
}

func (c Config) delay() time.Duration {
	return time.Duration(c.Delay * float64(time.Second))
}

func (c Config) reconcileConfig() reconcile.Config {
	return reconcile.Config{
		ListURL:      c.Reconcile.ListURL,
		NextPageURL:  c.Reconcile.NextPageURL,
		BaseURL:      c.Reconcile.BaseURL,
		Delay:        c.delay(),
		MaxRowErrors: c.Reconcile.MaxRowErrors,
		MaxPages:     c.Reconcile.MaxPages,
	}
}
