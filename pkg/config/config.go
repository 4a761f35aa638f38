// Package config loads user defaults from $XDG_CONFIG_HOME/mdctl/config.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrg/xdg"
	"github.com/google/gousb"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Device restricts the CLI to one unit, as vid:pid in hex.
	Device string `yaml:"device"`
	// OnTheFly is the default conversion for SP downloads.
	OnTheFly string `yaml:"onthefly"`
	// Backup keeps a copy of the disc header before each rewrite.
	Backup       bool   `yaml:"backup"`
	TitleCharset string `yaml:"title_charset"`
	Verbose      bool   `yaml:"verbose"`
}

func Default() *Config {
	return &Config{
		Backup:       true,
		TitleCharset: "latin1",
	}
}

// Path returns where the config file lives.
func Path() string {
	return filepath.Join(xdg.ConfigHome, "mdctl", "config.yaml")
}

// Load reads the config at path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	c := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return c, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if _, _, err := c.DeviceFilter(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Save writes the config to path, creating its directory.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// DeviceFilter parses Device. Both IDs are zero when no filter is set.
func (c *Config) DeviceFilter() (vid, pid gousb.ID, err error) {
	if c.Device == "" {
		return 0, 0, nil
	}
	v, p, found := strings.Cut(c.Device, ":")
	if !found {
		return 0, 0, fmt.Errorf("device %q: want vid:pid", c.Device)
	}
	vn, err := strconv.ParseUint(v, 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("device %q: bad vendor: %w", c.Device, err)
	}
	pn, err := strconv.ParseUint(p, 16, 16)
	if err != nil {
		return 0, 0, fmt.Errorf("device %q: bad product: %w", c.Device, err)
	}
	return gousb.ID(vn), gousb.ID(pn), nil
}
