package config

import (
	_ "embed"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
	"github.com/sergev/antspeed/ant"
	"github.com/sergev/antspeed/units"
)

//go:embed antspeed.toml
var defaultConfigData []byte

// Global state variables for the active configuration
var (
	WheelCircumference float64
	Units              string
	Channel            uint8
	DeviceID           uint16
	Frequency          uint8
	NetworkKey         ant.NetworkKey
	HasNetworkKey      bool
	Path               string
)

// Config represents the entire TOML configuration structure
type Config struct {
	WheelCircumference float64 `toml:"wheel_circumference"`
	Units              string  `toml:"units"`
	Channel            int     `toml:"channel"`
	DeviceID           int     `toml:"device_id"`
	Frequency          int     `toml:"frequency"`
	NetworkKey         string  `toml:"network_key"`
}

// configPath determines the config file path based on the operating system
func configPath() (string, error) {
	var configDir string
	var err error

	switch runtime.GOOS {
	case "windows":
		// Use AppData directory for Windows
		configDir, err = os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine user config directory: %w", err)
		}
		configDir = filepath.Join(configDir, "antspeed")
	default:
		// Linux/macOS: use home directory
		configDir, err = os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine user home directory: %w", err)
		}
	}

	return filepath.Join(configDir, ".antspeed"), nil
}

// Initialize loads and validates the configuration file.
// If the config file doesn't exist, it creates it from the embedded default.
func Initialize() error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := createDefault(path); err != nil {
		return err
	}

	conf, err := Load(path)
	if err != nil {
		return err
	}
	return apply(path, conf)
}

// createDefault writes the embedded default config when path does not exist.
func createDefault(path string) error {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil
	}

	// Create parent directory if needed (for Windows)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, defaultConfigData, 0644); err != nil {
		return fmt.Errorf("failed to create default config file at %s: %w", path, err)
	}
	return nil
}

// Load parses and validates a config file.
func Load(path string) (*Config, error) {
	var conf Config
	if _, err := toml.Decode(string(defaultConfigData), &conf); err != nil {
		return nil, fmt.Errorf("failed to parse embedded default config: %w", err)
	}
	// Keys present in the file override the defaults
	if _, err := toml.DecodeFile(path, &conf); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config at %s: %w", path, err)
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &conf, nil
}

// Validate checks the value ranges of all fields.
func (c *Config) Validate() error {
	if c.WheelCircumference <= 0 {
		return fmt.Errorf("wheel_circumference must be positive, got %g", c.WheelCircumference)
	}
	if err := units.Validate(c.Units); err != nil {
		return err
	}
	if c.Channel < 0 || c.Channel >= ant.MaxChannels {
		return fmt.Errorf("channel must be between 0 and %d, got %d", ant.MaxChannels-1, c.Channel)
	}
	if c.DeviceID < 0 || c.DeviceID > 0xffff {
		return fmt.Errorf("device_id must be between 0 and 65535, got %d", c.DeviceID)
	}
	if c.Frequency < 0 || c.Frequency > ant.MaxRFFrequency {
		return fmt.Errorf("frequency must be between 0 and %d, got %d", ant.MaxRFFrequency, c.Frequency)
	}
	if _, _, err := c.Key(); err != nil {
		return err
	}
	return nil
}

// Key decodes the network key. An empty key reports ok=false.
func (c *Config) Key() (key ant.NetworkKey, ok bool, err error) {
	if c.NetworkKey == "" {
		return key, false, nil
	}
	raw, err := hex.DecodeString(c.NetworkKey)
	if err != nil {
		return key, false, fmt.Errorf("network_key is not hex: %w", err)
	}
	if len(raw) != ant.NetworkKeySize {
		return key, false, fmt.Errorf("network_key must be %d bytes, got %d", ant.NetworkKeySize, len(raw))
	}
	copy(key[:], raw)
	return key, true, nil
}

// apply stores a validated config in the global variables.
func apply(path string, c *Config) error {
	key, ok, err := c.Key()
	if err != nil {
		return err
	}
	Path = path
	WheelCircumference = c.WheelCircumference
	Units = c.Units
	Channel = uint8(c.Channel)
	DeviceID = uint16(c.DeviceID)
	Frequency = uint8(c.Frequency)
	NetworkKey = key
	HasNetworkKey = ok
	return nil
}
