package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the discover command configuration. Flags take effect
// first; a config file fills in whatever the flags left empty.
type Config struct {
	ConfigFile  string `yaml:"-"`
	CacheFile   string `yaml:"cache_file"`
	EventLog    string `yaml:"event_log"`
	LogLevel    string `yaml:"log_level"`
	Interactive bool   `yaml:"-"`
	ClearCache  bool   `yaml:"-"`
	Host        string `yaml:"-"`
	Port        int    `yaml:"-"`
	Name        string `yaml:"-"`
	QRPayload   string `yaml:"-"`
	Interface   string `yaml:"interface"`
}

// loadConfigFile merges YAML settings into cfg without overriding
// values already set by flags.
func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	if cfg.CacheFile == "" {
		cfg.CacheFile = fileCfg.CacheFile
	}
	if cfg.EventLog == "" {
		cfg.EventLog = fileCfg.EventLog
	}
	if cfg.LogLevel == "info" && fileCfg.LogLevel != "" {
		cfg.LogLevel = fileCfg.LogLevel
	}
	if cfg.Interface == "" {
		cfg.Interface = fileCfg.Interface
	}
	return nil
}
