package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/swoopdl/swoop/internal/utils"
)

const (
	MinConnections = 1
	MaxConnections = 16
	MinChunkSize   = 1024              // 1KB
	MaxChunkSize   = 100 * 1024 * 1024 // 100MB
)

// Settings holds the tunables for a download session. Zero values are filled
// from Defaults before validation.
type Settings struct {
	Connections int           `yaml:"connections"`
	ChunkSize   int64         `yaml:"chunk_size"`
	Timeout     time.Duration `yaml:"timeout"`
	KATimeout   time.Duration `yaml:"keep_alive_timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	BufferSize  int           `yaml:"buffer_size"`
	UserAgent   string        `yaml:"user_agent"`
}

func Defaults() Settings {
	return Settings{
		Connections: 4,
		ChunkSize:   1024 * 1024, // 1MB
		Timeout:     30 * time.Second,
		KATimeout:   90 * time.Second,
		MaxRetries:  3,
		BufferSize:  utils.DefaultBufferSize,
		UserAgent:   "swoop/1.0",
	}
}

// Load reads settings from a YAML file, filling missing keys from Defaults.
// A missing file is not an error; defaults are written out for next time.
func Load(path string) (Settings, error) {
	log := utils.GetLogger("config")
	settings := Defaults()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if saveErr := Save(path, settings); saveErr != nil {
			log.Warn().Err(saveErr).Str("path", path).Msg("Could not write default config file")
		}
		return settings, nil
	}
	if err != nil {
		return settings, fmt.Errorf("error reading config file: %v", err)
	}
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return Defaults(), fmt.Errorf("error parsing config file: %v", err)
	}
	// Partial files fall back to defaults key by key
	defaults := Defaults()
	if settings.Connections == 0 {
		settings.Connections = defaults.Connections
	}
	if settings.ChunkSize == 0 {
		settings.ChunkSize = defaults.ChunkSize
	}
	if settings.Timeout == 0 {
		settings.Timeout = defaults.Timeout
	}
	if settings.KATimeout == 0 {
		settings.KATimeout = defaults.KATimeout
	}
	if settings.MaxRetries == 0 {
		settings.MaxRetries = defaults.MaxRetries
	}
	if settings.BufferSize == 0 {
		settings.BufferSize = defaults.BufferSize
	}
	if settings.UserAgent == "" {
		settings.UserAgent = defaults.UserAgent
	}
	log.Debug().Str("path", path).Msg("Configuration loaded")
	return settings, nil
}

func Save(path string, settings Settings) error {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects out-of-range parameters before any network activity.
func (s Settings) Validate() error {
	if s.Connections < MinConnections || s.Connections > MaxConnections {
		return fmt.Errorf("connections must be between %d and %d, got %d", MinConnections, MaxConnections, s.Connections)
	}
	if s.ChunkSize < MinChunkSize || s.ChunkSize > MaxChunkSize {
		return fmt.Errorf("chunk size must be between %d and %d bytes, got %d", MinChunkSize, MaxChunkSize, s.ChunkSize)
	}
	if s.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", s.Timeout)
	}
	if s.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative, got %d", s.MaxRetries)
	}
	return nil
}

// Windows reserved device names, invalid as file names anywhere for
// portability.
var reservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {},
	"COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {},
	"LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

func ValidateOutputPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("output path is empty")
	}
	base := filepath.Base(path)
	if strings.ContainsAny(base, `<>:"|?*`) {
		return fmt.Errorf("output file name %q contains invalid characters", base)
	}
	name := strings.ToUpper(strings.TrimSuffix(base, filepath.Ext(base)))
	if _, ok := reservedNames[name]; ok {
		return fmt.Errorf("output file name %q is a reserved name", base)
	}
	return nil
}

// EnsureOutputDir creates the directory that will hold the output file.
func EnsureOutputDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}
