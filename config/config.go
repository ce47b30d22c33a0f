// Package config loads the sdupdater command configuration.
//
// Configuration is read from a single YAML file named by:
//   - the --config flag, or
//   - the SDUPDATER_CONFIG environment variable
//
// Without either, the defaults describe a simulated device under the
// current directory. Fields missing from the file keep their defaults.
package config

import (
	"os"
	"regexp"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"gopkg.in/yaml.v3"

	"github.com/moffa90/go-sdupdater/flash"
	"github.com/moffa90/go-sdupdater/nvs"
	"github.com/moffa90/go-sdupdater/updater"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "SDUPDATER_CONFIG"

// ErrInvalid is wrapped by every validation failure.
const ErrInvalid = errors.ConstError("invalid configuration")

// Config is the complete sdupdater configuration.
type Config struct {
	// Device configures the simulated flash device.
	Device DeviceConfig `yaml:"device"`

	// NVS configures the non-volatile key-value store.
	NVS NVSConfig `yaml:"nvs"`

	// Update configures the updater.
	Update UpdateConfig `yaml:"update"`

	// Log configures logging.
	Log LogConfig `yaml:"log"`
}

// DeviceConfig locates the slot images and the boot selection record.
type DeviceConfig struct {
	// Dir holds ota_0.bin, ota_1.bin and otadata.
	// Default: ./flash
	Dir string `yaml:"dir"`

	// SlotSize is the capacity of each application slot in bytes.
	// Default: 1310720
	SlotSize uint32 `yaml:"slot_size"`
}

// NVSConfig locates the SQLite-backed NVS database.
type NVSConfig struct {
	// Path is the database file.
	// Default: ./nvs.db
	Path string `yaml:"path"`
}

// UpdateConfig tunes the updater.
type UpdateConfig struct {
	// PrivilegedImage is the image label mirrored into the reference store.
	// Default: /menu.bin
	PrivilegedImage string `yaml:"privileged_image"`

	// ChunkSize is the number of bytes per flash write.
	// Default: 4096
	ChunkSize int `yaml:"chunk_size"`
}

// LogConfig configures loggo.
type LogConfig struct {
	// Level is the root log level: TRACE, DEBUG, INFO, WARNING, ERROR or CRITICAL.
	// Default: INFO
	Level string `yaml:"level"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Dir:      "./flash",
			SlotSize: flash.DefaultSlotSize,
		},
		NVS: NVSConfig{
			Path: "./nvs.db",
		},
		Update: UpdateConfig{
			PrivilegedImage: updater.DefaultPrivilegedImage,
			ChunkSize:       updater.DefaultChunkSize,
		},
		Log: LogConfig{
			Level: "INFO",
		},
	}
}

// Load loads the file at path, or the file named by SDUPDATER_CONFIG when
// path is empty. With neither set the defaults are returned.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvVar)
	}
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	return LoadFile(path)
}

// LoadFile loads configuration from a specific file path, on top of the
// defaults.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotatef(err, "read config %s", path)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Annotatef(err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes YAML on top of the defaults, expands ${VAR} references in
// paths and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Annotate(err, "decode yaml")
	}
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every field.
func (c *Config) Validate() error {
	if c.Device.Dir == "" {
		return errors.Annotatef(ErrInvalid, "device.dir is required")
	}
	if c.Device.SlotSize < 0x1000 {
		return errors.Annotatef(ErrInvalid, "device.slot_size %d is below one flash sector", c.Device.SlotSize)
	}
	if c.NVS.Path == "" {
		return errors.Annotatef(ErrInvalid, "nvs.path is required")
	}
	if c.Update.PrivilegedImage == "" {
		return errors.Annotatef(ErrInvalid, "update.privileged_image is required")
	}
	if c.Update.ChunkSize <= 0 || c.Update.ChunkSize > updater.MaxChunkSize {
		return errors.Annotatef(ErrInvalid, "update.chunk_size %d not in 1..%d", c.Update.ChunkSize, updater.MaxChunkSize)
	}
	if _, ok := loggo.ParseLevel(c.Log.Level); !ok {
		return errors.Annotatef(ErrInvalid, "unknown log.level %q", c.Log.Level)
	}
	return nil
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() loggo.Level {
	level, ok := loggo.ParseLevel(c.Log.Level)
	if !ok {
		return loggo.INFO
	}
	return level
}

// OpenDevice opens the simulated flash device described by Device.
func (c *Config) OpenDevice(opts ...flash.SimOption) (*flash.SimDevice, error) {
	opts = append([]flash.SimOption{flash.WithSlotSize(c.Device.SlotSize)}, opts...)
	return flash.OpenSim(c.Device.Dir, opts...)
}

// OpenNVS opens the NVS database described by NVS.
func (c *Config) OpenNVS() (*nvs.SQLite, error) {
	return nvs.OpenSQLite(c.NVS.Path)
}

// UpdaterOptions returns the updater options derived from Update.
func (c *Config) UpdaterOptions() []updater.Option {
	return []updater.Option{
		updater.WithChunkSize(c.Update.ChunkSize),
		updater.WithPrivilegedImage(c.Update.PrivilegedImage),
	}
}

func (c *Config) expandVariables() {
	c.Device.Dir = expandVars(c.Device.Dir)
	c.NVS.Path = expandVars(c.NVS.Path)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		m := varPattern.FindStringSubmatch(match)
		if v, ok := os.LookupEnv(m[1]); ok && v != "" {
			return v
		}
		return m[2]
	})
}
