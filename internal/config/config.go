// Package config loads and validates the slotshift configuration file.
// All knobs live in one typed structure with documented defaults;
// validation runs once at startup and reports every invalid field in a
// single aggregated error.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/slotshift/slotshift/internal/domain"
)

// Config is the full slotshift configuration.
type Config struct {
	// App names the deployed application; slot units are "<app>-<slot>".
	App string `yaml:"app"`
	// Root is the deploy root holding releases/, slots/ and current.
	Root string `yaml:"root"`
	// EnvFile is handed to the supervisor as the process environment
	// file. Optional.
	EnvFile string `yaml:"envFile"`

	Ports    Ports    `yaml:"ports"`
	Health   Health   `yaml:"health"`
	Launch   Launch   `yaml:"launch"`
	Nginx    Nginx    `yaml:"nginx"`
	Telegram Telegram `yaml:"telegram"`

	// GraceDelaySeconds is how long in-flight requests to the old slot
	// get to drain before its process is stopped.
	GraceDelaySeconds int `yaml:"graceDelaySeconds"`
	// KeepReleases bounds how many releases retention keeps on disk.
	KeepReleases int `yaml:"keepReleases"`
	// HistoryKeep bounds the attempt log.
	HistoryKeep int `yaml:"historyKeep"`
	// HistoryDB is the SQLite file for the attempt log.
	HistoryDB string `yaml:"historyDB"`
	// Engine selects the workflow engine: sync, goworkflows, or dbos.
	Engine string `yaml:"engine"`
	// DatabaseURL is the Postgres URL for the dbos engine.
	DatabaseURL string `yaml:"databaseURL"`
}

// Ports holds the fixed slot ports.
type Ports struct {
	A int `yaml:"a"`
	B int `yaml:"b"`
}

// Health configures the promotion gate.
type Health struct {
	Path            string `yaml:"path"`
	Status          int    `yaml:"status"`
	TimeoutSeconds  int    `yaml:"timeoutSeconds"`
	IntervalSeconds int    `yaml:"intervalSeconds"`
}

// Launch holds the per-build-mode launch command lines.
type Launch struct {
	Bundle []string `yaml:"bundle"`
	Source []string `yaml:"source"`
}

// Nginx configures the traffic switch.
type Nginx struct {
	UpstreamFile  string   `yaml:"upstreamFile"`
	CheckCommand  []string `yaml:"checkCommand"`
	ReloadCommand []string `yaml:"reloadCommand"`
	// AssetSubdir, relative to the live pointer, is published to the
	// proxy as the static-asset root. Empty disables the asset map.
	AssetSubdir string `yaml:"assetSubdir"`
}

// Telegram configures deploy notifications. Empty token disables them.
type Telegram struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chatID"`
}

// Default returns the configuration defaults applied under an explicit
// file.
func Default() Config {
	return Config{
		App:  "app",
		Root: "/srv/app",
		Ports: Ports{
			A: 3001,
			B: 3002,
		},
		Health: Health{
			Path:            "/healthz",
			Status:          200,
			TimeoutSeconds:  30,
			IntervalSeconds: 1,
		},
		Launch: Launch{
			Bundle: []string{"./server"},
			Source: []string{"npm", "run", "start"},
		},
		Nginx: Nginx{
			UpstreamFile:  "/etc/nginx/conf.d/app-upstream.conf",
			CheckCommand:  []string{"nginx", "-t"},
			ReloadCommand: []string{"systemctl", "reload", "nginx"},
			AssetSubdir:   "public",
		},
		GraceDelaySeconds: 10,
		KeepReleases:      5,
		HistoryKeep:       200,
		HistoryDB:         "/srv/app/shared/slotshift.db",
		Engine:            "sync",
	}
}

// Load reads the YAML file at path over the defaults and validates the
// result.
func Load(path string) (Config, error) {
	cfg := Default()

	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field and aggregates all violations into one
// error, so a broken config fails fast with the full list instead of one
// complaint per run.
func (c Config) Validate() error {
	var errs []error
	invalid := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.App == "" {
		invalid("app must be set")
	}
	if c.Root == "" || !filepath.IsAbs(c.Root) {
		invalid("root must be an absolute path, got %q", c.Root)
	}
	if c.Ports.A <= 0 || c.Ports.A > 65535 {
		invalid("ports.a must be in 1..65535, got %d", c.Ports.A)
	}
	if c.Ports.B <= 0 || c.Ports.B > 65535 {
		invalid("ports.b must be in 1..65535, got %d", c.Ports.B)
	}
	if c.Ports.A == c.Ports.B {
		invalid("ports.a and ports.b must differ, both are %d", c.Ports.A)
	}
	if c.Health.Path == "" || c.Health.Path[0] != '/' {
		invalid("health.path must start with /, got %q", c.Health.Path)
	}
	if c.Health.Status < 100 || c.Health.Status > 599 {
		invalid("health.status must be an HTTP status, got %d", c.Health.Status)
	}
	if c.Health.TimeoutSeconds <= 0 {
		invalid("health.timeoutSeconds must be positive, got %d", c.Health.TimeoutSeconds)
	}
	if c.Health.IntervalSeconds <= 0 {
		invalid("health.intervalSeconds must be positive, got %d", c.Health.IntervalSeconds)
	}
	if len(c.Launch.Bundle) == 0 {
		invalid("launch.bundle must not be empty")
	}
	if len(c.Launch.Source) == 0 {
		invalid("launch.source must not be empty")
	}
	if c.Nginx.UpstreamFile == "" {
		invalid("nginx.upstreamFile must be set")
	}
	if c.GraceDelaySeconds < 0 {
		invalid("graceDelaySeconds must be non-negative, got %d", c.GraceDelaySeconds)
	}
	if c.KeepReleases < 1 {
		invalid("keepReleases must be at least 1, got %d", c.KeepReleases)
	}
	if c.HistoryKeep < 1 {
		invalid("historyKeep must be at least 1, got %d", c.HistoryKeep)
	}
	if c.HistoryDB == "" {
		invalid("historyDB must be set")
	}
	switch c.Engine {
	case "sync", "goworkflows", "dbos":
	default:
		invalid("engine must be sync, goworkflows, or dbos, got %q", c.Engine)
	}
	if c.Engine == "dbos" && c.DatabaseURL == "" {
		invalid("databaseURL must be set for the dbos engine")
	}
	if c.Telegram.Token != "" && c.Telegram.ChatID == 0 {
		invalid("telegram.chatID must be set when telegram.token is")
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Layout derives the fixed slot bindings from the configured root and
// ports.
func (c Config) Layout() domain.Layout {
	return domain.Layout{
		A: domain.SlotBinding{Port: c.Ports.A, Dir: filepath.Join(c.Root, "slots", "a")},
		B: domain.SlotBinding{Port: c.Ports.B, Dir: filepath.Join(c.Root, "slots", "b")},
	}
}

// ProbeSpec derives the health-gate settings; the port is filled per
// attempt.
func (c Config) ProbeSpec() domain.ProbeSpec {
	return domain.ProbeSpec{
		Path:         c.Health.Path,
		ExpectStatus: c.Health.Status,
		Attempts:     c.Health.TimeoutSeconds,
		Interval:     time.Duration(c.Health.IntervalSeconds) * time.Second,
	}
}

// GraceDelay returns the drain delay as a duration.
func (c Config) GraceDelay() time.Duration {
	return time.Duration(c.GraceDelaySeconds) * time.Second
}

// AssetRoot returns the live-pointer-derived static-asset path handed to
// the proxy, or empty when disabled.
func (c Config) AssetRoot() string {
	if c.Nginx.AssetSubdir == "" {
		return ""
	}
	return filepath.Join(c.Root, "current", c.Nginx.AssetSubdir)
}
