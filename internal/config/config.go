// Package config provides YAML-based configuration loading for Glimpse.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level Glimpse configuration, loaded from glimpse.yaml.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	DB       DBConfig       `yaml:"db"`
	Blob     BlobConfig     `yaml:"blob"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Agent    AgentConfig    `yaml:"agent"`
}

// ServerConfig holds settings for the relay HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`

	// ProcessedTTL controls how long processed commands are retained
	// before the purge job deletes them.
	ProcessedTTL time.Duration `yaml:"processed_ttl"`

	// PurgeSchedule is a 5-field cron expression for the retention job.
	PurgeSchedule string `yaml:"purge_schedule"`
}

// DBConfig holds connection settings for the command/session store.
type DBConfig struct {
	Driver string `yaml:"driver"` // "sqlite" or "mysql"
	Path   string `yaml:"path"`   // sqlite file path
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Name   string `yaml:"name"`
}

// BlobConfig holds settings for the S3-compatible media store.
type BlobConfig struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
}

// AnalyzerConfig holds settings for the media-analysis LLM.
type AnalyzerConfig struct {
	Project  string   `yaml:"project"`
	Location string   `yaml:"location"`
	Models   []string `yaml:"models"` // tried in order until one succeeds
}

// AgentConfig holds settings for the desktop agent poller.
type AgentConfig struct {
	ServerURL    string        `yaml:"server_url"`
	PollInterval time.Duration `yaml:"poll_interval"`

	// CaptureCommand is an external command that writes a PNG frame to
	// stdout. Empty means the built-in stub capturer.
	CaptureCommand string `yaml:"capture_command"`
}

// UnmarshalYAML accepts Go duration strings ("30s", "24h") for processed_ttl.
func (s *ServerConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Port          int    `yaml:"port"`
		ProcessedTTL  string `yaml:"processed_ttl"`
		PurgeSchedule string `yaml:"purge_schedule"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	s.Port = raw.Port
	s.PurgeSchedule = raw.PurgeSchedule
	if raw.ProcessedTTL != "" {
		d, err := time.ParseDuration(raw.ProcessedTTL)
		if err != nil {
			return fmt.Errorf("server.processed_ttl: %w", err)
		}
		s.ProcessedTTL = d
	}
	return nil
}

// UnmarshalYAML accepts Go duration strings for poll_interval.
func (a *AgentConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		ServerURL      string `yaml:"server_url"`
		PollInterval   string `yaml:"poll_interval"`
		CaptureCommand string `yaml:"capture_command"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	a.ServerURL = raw.ServerURL
	a.CaptureCommand = raw.CaptureCommand
	if raw.PollInterval != "" {
		d, err := time.ParseDuration(raw.PollInterval)
		if err != nil {
			return fmt.Errorf("agent.poll_interval: %w", err)
		}
		a.PollInterval = d
	}
	return nil
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ProcessedTTL == 0 {
		c.Server.ProcessedTTL = 24 * time.Hour
	}
	if c.Server.PurgeSchedule == "" {
		c.Server.PurgeSchedule = "0 * * * *"
	}
	if c.DB.Driver == "" {
		c.DB.Driver = "sqlite"
	}
	if c.DB.Driver == "sqlite" && c.DB.Path == "" {
		c.DB.Path = "glimpse.db"
	}
	if c.DB.Driver == "mysql" {
		if c.DB.Host == "" {
			c.DB.Host = "127.0.0.1"
		}
		if c.DB.Port == 0 {
			c.DB.Port = 3306
		}
		if c.DB.Name == "" {
			c.DB.Name = "glimpse"
		}
	}
	if c.Blob.Region == "" {
		c.Blob.Region = "us-east-1"
	}
	if len(c.Analyzer.Models) == 0 {
		c.Analyzer.Models = []string{"gemini-2.5-flash", "gemini-2.0-flash"}
	}
	if c.Agent.ServerURL == "" {
		c.Agent.ServerURL = fmt.Sprintf("http://localhost:%d", c.Server.Port)
	}
	if c.Agent.PollInterval == 0 {
		c.Agent.PollInterval = 2 * time.Second
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.DB.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("db.driver %q is not supported (sqlite, mysql)", c.DB.Driver))
	}
	if c.Blob.Endpoint != "" && c.Blob.Bucket == "" {
		errs = append(errs, "blob.bucket is required when blob.endpoint is set")
	}
	if c.Agent.PollInterval < 0 {
		errs = append(errs, "agent.poll_interval must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
