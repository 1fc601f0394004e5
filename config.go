package forge

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the editor session configuration, loaded from YAML. A
// missing file yields defaults; a malformed one is an error.
type Config struct {
	Window struct {
		Width  int    `yaml:"width"`
		Height int    `yaml:"height"`
		Title  string `yaml:"title"`
	} `yaml:"window"`

	HistoryDepth int    `yaml:"history_depth"`
	AssetsDir    string `yaml:"assets_dir"`

	Generation GenerationConfig `yaml:"generation"`

	Debug bool `yaml:"debug"`
}

// GenerationConfig points the editor at the generation service.
type GenerationConfig struct {
	Endpoint       string `yaml:"endpoint"`
	ProgressURL    string `yaml:"progress_url"`
	APIKey         string `yaml:"api_key"`
	PollSeconds    int    `yaml:"poll_seconds"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Window.Width = 1280
	cfg.Window.Height = 720
	cfg.Window.Title = "Forge"
	cfg.HistoryDepth = 256
	cfg.AssetsDir = "assets"
	cfg.Generation.PollSeconds = 2
	cfg.Generation.TimeoutSeconds = 120
	return cfg
}

// LoadConfig reads the YAML config at path on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.HistoryDepth < 0 {
		cfg.HistoryDepth = 0
	}
	return cfg, nil
}

// ConfigModule loads the config (or defaults) as a resource.
type ConfigModule struct {
	Path string
}

func (m ConfigModule) Install(app *App) {
	cfg, err := LoadConfig(m.Path)
	if err != nil {
		app.Logger().Errorf("config: %v, using defaults", err)
		cfg = DefaultConfig()
	}
	app.AddResources(cfg)
}
