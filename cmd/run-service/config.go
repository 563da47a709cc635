package main

import (
	"fmt"
	"os"
	"time"

	"procrun/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultHTTPAddr        = "0.0.0.0:8086"
	defaultReadTimeout     = 5 * time.Second
	defaultWriteTimeout    = 10 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idleTimeout"`
}

// LaunchConfig holds program launch settings.
type LaunchConfig struct {
	HelperPath string `yaml:"helperPath"`
	CaptureDir string `yaml:"captureDir"`
}

// AppConfig is the whole service configuration.
type AppConfig struct {
	Server ServerConfig  `yaml:"server"`
	Launch LaunchConfig  `yaml:"launch"`
	Logger logger.Config `yaml:"logger"`
}

func loadAppConfig(path string) (AppConfig, error) {
	cfg := AppConfig{
		Server: ServerConfig{
			Addr:         defaultHTTPAddr,
			ReadTimeout:  defaultReadTimeout,
			WriteTimeout: defaultWriteTimeout,
			IdleTimeout:  defaultIdleTimeout,
		},
		Logger: logger.Config{Level: "info", Format: "json"},
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
