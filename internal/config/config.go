package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

type Mode string

const (
	ModePackaged Mode = "Packaged"
	ModeDev      Mode = "Development"

	DefaultConfigPath string = "config.json"
	DefaultPort       int    = 5000

	// Image name the backend runs under, used by the sweep cleanup.
	DefaultBackendImage string = "camera-backend"
)

type DevConfig struct {
	Interpreter string `json:"interpreter"`
	Script      string `json:"script"`
}

type PackagedConfig struct {
	// Directories searched for the backend executable, relative to the
	// shell binary. First existing match wins.
	SearchDirs []string `json:"search_dirs"`
}

type Config struct {
	Mode Mode `json:"mode"`

	// Host is used in development builds so the feed stays reachable from
	// other machines. Empty means the machine hostname.
	Host string `json:"host"`
	Port int    `json:"port"`

	BackendImage string         `json:"backend_image"`
	Dev          DevConfig      `json:"dev"`
	Packaged     PackagedConfig `json:"packaged"`

	// Timing knobs stay out of the config file; tests shrink them.
	HealthTimeout  time.Duration `json:"-"`
	HealthInterval time.Duration `json:"-"`
	StartTimeout   time.Duration `json:"-"`
	StartInterval  time.Duration `json:"-"`
	ShutdownGrace  time.Duration `json:"-"`
}

// BaseURL resolves the backend address: loopback for packaged builds, the
// machine's own hostname in development so non-loopback access works.
func (c *Config) BaseURL() string {
	host := "localhost"

	if c.Mode == ModeDev {
		if c.Host != "" {
			host = c.Host
		} else if h, err := os.Hostname(); err == nil {
			host = h
		}
	}

	return fmt.Sprintf("http://%s:%d", host, c.Port)
}

func (c *Config) Save(path string) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)

	if err != nil {
		return
	}

	defer f.Close()

	enc := json.NewEncoder(f)
	err = enc.Encode(c)

	if err != nil {
		return
	}
}

func (c *Config) SaveByDefault() {
	c.Save(DefaultConfigPath)
}

func LoadConfigFile(path string) *Config {
	var cfg *Config = NewDefaultConfig()

	if _, err := os.Stat(path); err == nil {
		f, err := os.Open(path)

		if err != nil {
			return cfg
		}

		defer f.Close()

		dec := json.NewDecoder(f)
		err = dec.Decode(cfg)

		if err != nil {
			return cfg
		}
	}

	return cfg
}

func NewDefaultConfig() *Config {
	return &Config{
		Mode:         ModePackaged,
		Port:         DefaultPort,
		BackendImage: DefaultBackendImage,
		Dev: DevConfig{
			Interpreter: "python3",
			Script:      "backend/main.py",
		},
		Packaged: PackagedConfig{
			SearchDirs: []string{"backend", "resources/backend", "../backend"},
		},

		HealthTimeout:  5 * time.Second,
		HealthInterval: 200 * time.Millisecond,
		StartTimeout:   20 * time.Second,
		StartInterval:  500 * time.Millisecond,
		ShutdownGrace:  3 * time.Second,
	}
}
