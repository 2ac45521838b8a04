// Package config loads DSPgate's YAML startup configuration: the device
// connection, the optional attribute cache path, and the ambient logging
// and HTTP settings.
package config

import (
	"fmt"
	"os"

	"github.com/enp6s0/dspgate/pkg/util"
	"gopkg.in/yaml.v3"
)

// Connection describes how to reach the device over SSH.
type Connection struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// DSP carries the discovery attribute cache path, per spec §6.
type DSP struct {
	AttributeCache string `yaml:"attributeCache"`
}

// Log configures the ambient logging stack.
type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// HTTP configures the REST adapter's listen address.
type HTTP struct {
	Listen string `yaml:"listen"`
}

// Config is the top-level shape of dspgate.yaml.
type Config struct {
	Connection Connection `yaml:"connection"`
	DSP        DSP        `yaml:"dsp"`
	Log        Log        `yaml:"log"`
	HTTP       HTTP       `yaml:"http"`
}

func (c *Config) setDefaults() {
	if c.Connection.Port == 0 {
		c.Connection.Port = 22
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.HTTP.Listen == "" {
		c.HTTP.Listen = ":8080"
	}
}

// validate enforces the scalars a Gateway cannot start without, collecting
// every violation rather than stopping at the first.
func (c *Config) validate() error {
	v := &util.ValidationBuilder{}
	v.Add(c.Connection.Host != "", "connection.host is required")
	v.Add(c.Connection.Username != "", "connection.username is required")
	v.Add(c.Connection.Port > 0 && c.Connection.Port < 65536, "connection.port must be between 1 and 65535")
	return v.Build()
}

// Load reads and parses a YAML config file from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &c, nil
}
