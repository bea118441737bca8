package config

import (
	"errors"
	"fmt"

	"dario.cat/mergo"
	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

type configBuilder struct {
	layers []*Config
	err    error
}

// Load merges the environment, the TOML file at path (skipped when empty)
// and Default, in that order of precedence, then validates the result.
func Load(path string) (*Config, error) {
	return newConfigBuilder().
		withEnv().
		withFile(path).
		withDefaults().
		build()
}

func newConfigBuilder() *configBuilder {
	return &configBuilder{layers: make([]*Config, 0, 3)}
}

func (b *configBuilder) withEnv() *configBuilder {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		b.err = errors.Join(b.err, fmt.Errorf("error getting env configs: %w", err))
		return b
	}
	b.layers = append(b.layers, cfg)
	return b
}

func (b *configBuilder) withFile(path string) *configBuilder {
	if path == "" {
		return b
	}
	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		b.err = errors.Join(b.err, fmt.Errorf("error reading config file: %w", err))
		return b
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		b.err = errors.Join(b.err, fmt.Errorf("unknown config keys: %v", undecoded))
		return b
	}
	b.layers = append(b.layers, cfg)
	return b
}

func (b *configBuilder) withDefaults() *configBuilder {
	def := Default()
	b.layers = append(b.layers, &def)
	return b
}

func (b *configBuilder) build() (*Config, error) {
	if b.err != nil {
		return nil, fmt.Errorf("error occurred during building config: %w", b.err)
	}

	cfg := new(Config)
	for _, layer := range b.layers {
		if err := mergo.Merge(cfg, layer); err != nil {
			return nil, fmt.Errorf("error merging configs: %w", err)
		}
	}
	return cfg, cfg.Validate()
}
