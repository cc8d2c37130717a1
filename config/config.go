// Package config loads the configuration of the DATA processing tools from a
// YAML file with environment variable overrides.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/go-errors/errors"
	"golang.org/x/text/encoding/htmlindex"
	"gopkg.in/yaml.v3"
)

// Sink type names accepted in [SinkConfig.Type].
const (
	SinkStdout  = "stdout"
	SinkSES     = "ses"
	SinkDiscard = "discard"
)

// Config is the complete tool configuration.
type Config struct {
	MaxHeaderLines int          `yaml:"max_header_lines"`
	Encoding       string       `yaml:"encoding"`
	SpoolMaxMemory int          `yaml:"spool_max_memory"`
	Banner         BannerConfig `yaml:"banner"`
	Sink           SinkConfig   `yaml:"sink"`
	Log            LogConfig    `yaml:"log"`
}

// BannerConfig is the banner inserted into outgoing text parts. An empty
// Text disables the banner. An empty HTML gets derived from Text.
type BannerConfig struct {
	Text string `yaml:"text"`
	HTML string `yaml:"html"`
}

// SinkConfig selects where finished messages go.
type SinkConfig struct {
	Type string    `yaml:"type"`
	SES  SESConfig `yaml:"ses"`
}

// SESConfig holds the AWS SES relay credentials. Empty key fields select the
// default AWS credential chain.
type SESConfig struct {
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Sender          string `yaml:"sender"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `yaml:"level"`
}

// Load builds a Config from defaults and environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	cfg.applyEnvVars()
	return cfg, cfg.validate()
}

// LoadFromFile reads path as the YAML base layer, then applies environment
// variable overrides.
func LoadFromFile(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapPrefix(err, "config: read file", 0)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapPrefix(err, "config: parse file", 0)
	}
	cfg.applyEnvVars()
	return cfg, cfg.validate()
}

func (c *Config) applyDefaults() {
	c.MaxHeaderLines = 1000
	c.Encoding = "utf-8"
	c.SpoolMaxMemory = 200 * 1024
	c.Sink.Type = SinkStdout
	c.Log.Level = "info"
}

// applyEnvVars overrides non-empty environment variables over the current
// values.
func (c *Config) applyEnvVars() {
	if v := os.Getenv("SMTPDATA_MAX_HEADER_LINES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.MaxHeaderLines = n
		}
	}
	if v := os.Getenv("SMTPDATA_ENCODING"); v != "" {
		c.Encoding = v
	}
	if v := os.Getenv("SMTPDATA_SPOOL_MAX_MEMORY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.SpoolMaxMemory = n
		}
	}
	if v := os.Getenv("SMTPDATA_BANNER_TEXT"); v != "" {
		c.Banner.Text = v
	}
	if v := os.Getenv("SMTPDATA_BANNER_HTML"); v != "" {
		c.Banner.HTML = v
	}
	if v := os.Getenv("SMTPDATA_SINK_TYPE"); v != "" {
		c.Sink.Type = v
	}
	if v := os.Getenv("SMTPDATA_SES_REGION"); v != "" {
		c.Sink.SES.Region = v
	}
	if v := os.Getenv("SMTPDATA_SES_ACCESS_KEY_ID"); v != "" {
		c.Sink.SES.AccessKeyID = v
	}
	if v := os.Getenv("SMTPDATA_SES_SECRET_ACCESS_KEY"); v != "" {
		c.Sink.SES.SecretAccessKey = v
	}
	if v := os.Getenv("SMTPDATA_SES_SENDER"); v != "" {
		c.Sink.SES.Sender = v
	}
	if v := os.Getenv("SMTPDATA_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) validate() error {
	if c.MaxHeaderLines < 0 {
		return errors.Errorf("config: max_header_lines cannot be negative, got %d", c.MaxHeaderLines)
	}
	if _, err := htmlindex.Get(c.Encoding); err != nil {
		return errors.Errorf("config: unknown encoding %q", c.Encoding)
	}
	switch strings.ToLower(c.Sink.Type) {
	case SinkStdout, SinkDiscard:
	case SinkSES:
		if c.Sink.SES.Region == "" {
			return errors.New("config: sink type ses needs a region")
		}
	default:
		return errors.Errorf("config: unknown sink type %q", c.Sink.Type)
	}
	return nil
}
