package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/gogpu/progbuild/toolchain"
)

// fileConfig is the optional --config file. Flags given on the command
// line take precedence over its values.
type fileConfig struct {
	DstPath       string           `yaml:"dst_path" toml:"dst_path"`
	Case          string           `yaml:"case" toml:"case"`
	Validate      bool             `yaml:"validate" toml:"validate"`
	TargetVulkan  string           `yaml:"target_vulkan_version" toml:"target_vulkan_version"`
	Jobs          int              `yaml:"jobs" toml:"jobs"`
	LogLevel      string           `yaml:"log_level" toml:"log_level"`
	CacheCapacity int              `yaml:"cache_capacity" toml:"cache_capacity"`
	Manifests     []string         `yaml:"manifests" toml:"manifests"`
	Toolchain     toolchain.Config `yaml:"toolchain" toml:"toolchain"`
}

func loadConfig(path string) (*fileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg fileConfig
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		err = dec.Decode(&cfg)
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		err = dec.Decode(&cfg)
	default:
		return nil, fmt.Errorf("config %s: unknown format (want .yaml or .toml)", path)
	}
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	// Manifest paths are relative to the config file.
	base := filepath.Dir(path)
	for i, m := range cfg.Manifests {
		if !filepath.IsAbs(m) {
			cfg.Manifests[i] = filepath.Join(base, m)
		}
	}
	return &cfg, nil
}
