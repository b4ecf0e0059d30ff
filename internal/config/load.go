package config

import (
	"github.com/yndnr/stillpoint/internal/core/domain"
	"github.com/yndnr/stillpoint/internal/infra/confloader"
)

// LoadOptions selects the configuration sources.
type LoadOptions struct {
	// File is the YAML configuration file. Empty means none.
	File string

	// Overrides are dotted keys set from command-line flags.
	Overrides map[string]any

	// EnvPrefix defaults to confloader.DefaultEnvPrefix.
	EnvPrefix string
}

// Load builds the configuration from defaults and the given sources, then
// verifies it. The returned loader can reload the same sources later.
func Load(opts LoadOptions) (*Config, *confloader.Loader, error) {
	loaderOpts := []confloader.Option{
		confloader.WithConfigFile(opts.File),
		confloader.WithOverrides(opts.Overrides),
	}
	if opts.EnvPrefix != "" {
		loaderOpts = append(loaderOpts, confloader.WithEnvPrefix(opts.EnvPrefix))
	}
	l := confloader.NewLoader(loaderOpts...)

	cfg := Default()
	if err := l.Load(cfg); err != nil {
		return nil, nil, domain.ErrInvalidConfig.WithCause(err)
	}
	if err := Verify(cfg); err != nil {
		return nil, nil, err
	}
	return cfg, l, nil
}

// Reload loads the sources of l again on top of fresh defaults.
func Reload(l *confloader.Loader) (*Config, error) {
	cfg := Default()
	if err := l.Reload(cfg); err != nil {
		return nil, domain.ErrInvalidConfig.WithCause(err)
	}
	if err := Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
