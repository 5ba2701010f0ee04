package config

import (
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port        string   `yaml:"port"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"server"`
	Log struct {
		Mode  string `yaml:"mode"`
		Level string `yaml:"level"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	DeckCache struct {
		TTL string `yaml:"ttl"`
	} `yaml:"deck_cache"`
	Gemini struct {
		APIKey  string `yaml:"api_key"`
		Model   string `yaml:"model"`
		Timeout string `yaml:"timeout"`
	} `yaml:"gemini"`
	Generation struct {
		Language        string  `yaml:"language"`
		Temperature     float32 `yaml:"temperature"`
		MaxOutputTokens int32   `yaml:"max_output_tokens"`
		Budget          string  `yaml:"budget"`
		Pacing          string  `yaml:"pacing"`
		InitialBackoff  string  `yaml:"initial_backoff"`
		MaxBackoff      string  `yaml:"max_backoff"`
		MaxIterations   int     `yaml:"max_iterations"`
	} `yaml:"generation"`
	Game struct {
		Cols            int     `yaml:"cols"`
		Rows            int     `yaml:"rows"`
		ActivityMinutes float64 `yaml:"activity_minutes"`
		DiceAnimation   string  `yaml:"dice_animation"`
		SkipNotice      string  `yaml:"skip_notice"`
	} `yaml:"game"`
	Secret struct {
		Passphrase string `yaml:"passphrase"`
	} `yaml:"secret"`
}

// Load reads YAML config from path and applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.applyEnv()
	return cfg, nil
}

// Default is used when no config file exists; it runs fully in memory.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Log.Mode = "dev"
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("GEMINI_API_KEY")); v != "" {
		c.Gemini.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv("SECRET_PASSPHRASE")); v != "" {
		c.Secret.Passphrase = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
