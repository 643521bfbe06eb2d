// Package config provides the configuration for the globalmem CLI.
//
// Configuration is stored under os.UserConfigDir()/globalmem/:
//
//	~/Library/Application Support/globalmem/config.yaml   (macOS)
//	~/.config/globalmem/config.yaml                       (Linux)
//	%AppData%/globalmem/config.yaml                       (Windows)
//
// GLOBALMEM_CONFIG_DIR overrides the directory. A missing file means all
// defaults.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/haivivi/globalmem/pkg/globalmem"
)

const (
	// appDir is the directory name under os.UserConfigDir().
	appDir = "globalmem"

	// configFile is the file name inside the config directory.
	configFile = "config.yaml"

	// EnvDir overrides the config directory.
	EnvDir = "GLOBALMEM_CONFIG_DIR"
)

// Defaults.
const (
	DefaultAddr = "localhost:8470"
	DefaultPath = "/globalmem"
)

// Config is the CLI configuration.
type Config struct {
	// Dir is the root configuration directory.
	Dir string `yaml:"-" json:"-"`

	Device Device `yaml:"device" json:"device"`
	Server Server `yaml:"server" json:"server"`
	Log    Log    `yaml:"log" json:"log"`
}

// Device configures the loaded module.
type Device struct {
	Name     string `yaml:"name" json:"name"`
	Capacity int    `yaml:"capacity" json:"capacity"`
	Minors   int    `yaml:"minors" json:"minors"`
	Register int    `yaml:"register" json:"register"`
	WaitMode string `yaml:"wait_mode" json:"wait_mode"`
}

// Server configures the websocket endpoint.
type Server struct {
	Addr string `yaml:"addr" json:"addr"`
	Path string `yaml:"path" json:"path"`
}

// Log configures logging.
type Log struct {
	Level string `yaml:"level" json:"level"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Device: Device{
			Name:     "globalmem",
			Capacity: globalmem.DefaultCapacity,
			Minors:   globalmem.DefaultMinors,
			WaitMode: globalmem.WaitLatched.String(),
		},
		Server: Server{
			Addr: DefaultAddr,
			Path: DefaultPath,
		},
		Log: Log{
			Level: "info",
		},
	}
}

// Dir returns the config directory, honoring GLOBALMEM_CONFIG_DIR.
func Dir() (string, error) {
	if dir := os.Getenv(EnvDir); dir != "" {
		return dir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine config directory: %w", err)
	}
	return filepath.Join(base, appDir), nil
}

// Load loads the configuration from the default location.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(dir)
}

// LoadFrom loads the configuration from a specific root directory.
func LoadFrom(dir string) (*Config, error) {
	cfg := Default()
	cfg.Dir = dir

	path := cfg.Path()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Path returns the config file path.
func (c *Config) Path() string {
	return filepath.Join(c.Dir, configFile)
}

// Exists reports whether the config file exists.
func (c *Config) Exists() bool {
	_, err := os.Stat(c.Path())
	return err == nil
}

// Save writes the configuration file.
func (c *Config) Save() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(c.Path(), data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", c.Path(), err)
	}
	return nil
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if c.Device.Name == "" {
		return fmt.Errorf("device.name cannot be empty")
	}
	if c.Device.Capacity <= 0 {
		return fmt.Errorf("device.capacity must be positive, got %d", c.Device.Capacity)
	}
	if c.Device.Minors <= 0 {
		return fmt.Errorf("device.minors must be positive, got %d", c.Device.Minors)
	}
	if c.Device.Register < 0 || c.Device.Register > c.Device.Minors {
		return fmt.Errorf("device.register must be in [0, %d], got %d", c.Device.Minors, c.Device.Register)
	}
	if _, err := globalmem.ParseWaitMode(c.Device.WaitMode); err != nil {
		return fmt.Errorf("device.wait_mode: %w", err)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr cannot be empty")
	}
	if !strings.HasPrefix(c.Server.Path, "/") {
		return fmt.Errorf("server.path must start with '/', got %q", c.Server.Path)
	}
	if _, err := c.LogLevel(); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	return nil
}

// Keys lists the settable keys in display order.
var Keys = []string{
	"device.name",
	"device.capacity",
	"device.minors",
	"device.register",
	"device.wait_mode",
	"server.addr",
	"server.path",
	"log.level",
}

// Set assigns a value by dotted key. The result is validated; on error the
// config is left unchanged.
func (c *Config) Set(key, value string) error {
	next := *c
	switch key {
	case "device.name":
		next.Device.Name = value
	case "device.capacity":
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		next.Device.Capacity = n
	case "device.minors":
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		next.Device.Minors = n
	case "device.register":
		n, err := parseInt(key, value)
		if err != nil {
			return err
		}
		next.Device.Register = n
	case "device.wait_mode":
		next.Device.WaitMode = value
	case "server.addr":
		next.Server.Addr = value
	case "server.path":
		next.Server.Path = value
	case "log.level":
		next.Log.Level = value
	default:
		return fmt.Errorf("unknown key %q (known: %s)", key, strings.Join(Keys, ", "))
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}

// Get returns a value by dotted key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "device.name":
		return c.Device.Name, nil
	case "device.capacity":
		return strconv.Itoa(c.Device.Capacity), nil
	case "device.minors":
		return strconv.Itoa(c.Device.Minors), nil
	case "device.register":
		return strconv.Itoa(c.Device.Register), nil
	case "device.wait_mode":
		return c.Device.WaitMode, nil
	case "server.addr":
		return c.Server.Addr, nil
	case "server.path":
		return c.Server.Path, nil
	case "log.level":
		return c.Log.Level, nil
	default:
		return "", fmt.Errorf("unknown key %q (known: %s)", key, strings.Join(Keys, ", "))
	}
}

func parseInt(key, value string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, value)
	}
	return n, nil
}

// LogLevel parses log.level.
func (c *Config) LogLevel() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, err
	}
	return l, nil
}

// ModuleConfig converts the device section for globalmem.Init. The handler
// is left for the caller.
func (c *Config) ModuleConfig() (globalmem.ModuleConfig, error) {
	mode, err := globalmem.ParseWaitMode(c.Device.WaitMode)
	if err != nil {
		return globalmem.ModuleConfig{}, err
	}
	return globalmem.ModuleConfig{
		Name:     c.Device.Name,
		Capacity: c.Device.Capacity,
		Minors:   c.Device.Minors,
		Register: c.Device.Register,
		WaitMode: mode,
	}, nil
}

// URL returns the websocket URL clients dial.
func (c *Config) URL() string {
	host := c.Server.Addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	return "ws://" + host + c.Server.Path
}
