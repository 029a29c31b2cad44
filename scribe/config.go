package scribe

import (
	"os"

	"gopkg.in/yaml.v3"
)

type DatabaseConfig struct {
	Path     string `yaml:"path"`
	Capacity int    `yaml:"capacity"`
}

type WhisperConfig struct {
	BinaryPath string `yaml:"binary_path"`
	ModelPath  string `yaml:"model_path"`
	Language   string `yaml:"language"`
	Threads    int    `yaml:"threads"`
}

type GeminiConfig struct {
	APIKeys []string `yaml:"api_keys"`
	Model   string   `yaml:"model"`
}

type PathsConfig struct {
	// Intake is the directory watched in watch mode.
	Intake string `yaml:"intake"`
	// Export receives generated .docx files. Empty disables export.
	Export string `yaml:"export"`
	// Archived receives intake files after successful processing.
	Archived string `yaml:"archived"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type FileConfig struct {
	Database      DatabaseConfig `yaml:"database"`
	Whisper       WhisperConfig  `yaml:"whisper"`
	Gemini        GeminiConfig   `yaml:"gemini"`
	Paths         PathsConfig    `yaml:"paths"`
	Logging       LoggingConfig  `yaml:"logging"`
	MaxConcurrent int            `yaml:"max_concurrent"`
}

// DefaultConfig returns a config with every optional field defaulted.
func DefaultConfig() *FileConfig {
	cfg := &FileConfig{}
	cfg.applyDefaults()
	return cfg
}

func LoadConfig(path string) (*FileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults fills optional fields. Required fields are checked by the
// component that needs them (NewRunner for the pipeline, NewHistoryStore
// tolerates anything non-empty).
func (c *FileConfig) applyDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "scribe.db"
	}
	if c.Database.Capacity == 0 {
		c.Database.Capacity = DefaultCapacity
	}
	if c.Whisper.Language == "" {
		c.Whisper.Language = "en"
	}
	if c.Whisper.Threads == 0 {
		c.Whisper.Threads = 4
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.5-flash"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 2
	}
}
