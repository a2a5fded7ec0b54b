package config

import "go.uber.org/fx"

// NewProvider supplies the resolved Config to an fx graph. A non-nil
// override short-circuits environment loading; tests use that to inject
// fixtures.
func NewProvider(override *Config) fx.Option {
	return fx.Provide(func() (*Config, error) {
		if override != nil {
			return override, nil
		}

		cfg := &Config{}
		if err := LoadConfig(cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	})
}
