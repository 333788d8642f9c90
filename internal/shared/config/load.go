package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

type loadOptions struct {
	envLookup EnvLookup
	storePath string
}

// Option customizes Load.
type Option func(*loadOptions)

// WithEnvLookup replaces the process environment used for overrides.
func WithEnvLookup(lookup EnvLookup) Option {
	return func(o *loadOptions) {
		o.envLookup = lookup
	}
}

// WithStorePath sets the datastore location used for StorePath and the
// DATABASE_URL default.
func WithStorePath(path string) Option {
	return func(o *loadOptions) {
		o.storePath = path
	}
}

// Load reads path, applies AIPOLISH_-prefixed environment overrides and
// validates the result. Every failure is a *ConfigError.
func Load(path string, opts ...Option) (AppConfig, error) {
	options := loadOptions{envLookup: DefaultEnvLookup}
	for _, opt := range opts {
		opt(&options)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("env")
	if err := v.ReadInConfig(); err != nil {
		return AppConfig{}, &ConfigError{File: path, Reason: "cannot be read", Err: err}
	}
	applyEnv(v, options.envLookup)

	cfg, err := decode(v, path)
	if err != nil {
		return AppConfig{}, err
	}
	cfg.StorePath = options.storePath
	if cfg.DatabaseURL == "" && cfg.StorePath != "" {
		cfg.DatabaseURL = SQLiteURL(cfg.StorePath)
	}

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func applyEnv(v *viper.Viper, lookup EnvLookup) {
	if lookup == nil {
		return
	}
	for _, key := range allKeys {
		if value, ok := lookup(EnvOverridePrefix + key); ok {
			v.Set(key, value)
		}
	}
}

func decode(v *viper.Viper, path string) (AppConfig, error) {
	get := func(key string) string {
		return strings.TrimSpace(v.GetString(key))
	}

	cfg := AppConfig{
		SecretKey:     get(KeySecretKey),
		Algorithm:     stringOr(get(KeyAlgorithm), DefaultAlgorithm),
		OpenAIAPIKey:  get(KeyOpenAIAPIKey),
		OpenAIBaseURL: strings.TrimRight(stringOr(get(KeyOpenAIBaseURL), DefaultOpenAIBaseURL), "/"),
		PolishModel:   stringOr(get(KeyPolishModel), DefaultPolishModel),
		EnhanceModel:  stringOr(get(KeyEnhanceModel), DefaultEnhanceModel),
		AdminUsername: get(KeyAdminUsername),
		AdminPassword: get(KeyAdminPassword),
		DatabaseURL:   get(KeyDatabaseURL),
		Host:          stringOr(get(KeyHost), DefaultHost),
		LogLevel:      stringOr(get(KeyLogLevel), DefaultLogLevel),
		SourceFile:    path,
	}

	var err error
	if cfg.Port, err = intField(path, KeyPort, get(KeyPort), DefaultPort); err != nil {
		return AppConfig{}, err
	}
	if cfg.AccessTokenExpireMinutes, err = intField(path, KeyAccessTokenExpireMinutes, get(KeyAccessTokenExpireMinutes), DefaultAccessTokenExpireMinutes); err != nil {
		return AppConfig{}, err
	}
	if cfg.DefaultUsageLimit, err = intField(path, KeyDefaultUsageLimit, get(KeyDefaultUsageLimit), DefaultUsageLimit); err != nil {
		return AppConfig{}, err
	}
	if cfg.OpenBrowser, err = boolField(path, KeyOpenBrowser, get(KeyOpenBrowser), true); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func stringOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func intField(path, key, raw string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ConfigError{File: path, Field: key, Reason: fmt.Sprintf("must be a whole number (got %q)", raw)}
	}
	return n, nil
}

func boolField(path, key, raw string, fallback bool) (bool, error) {
	if raw == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, &ConfigError{File: path, Field: key, Reason: fmt.Sprintf("must be true or false (got %q)", raw)}
	}
	return b, nil
}

// Validate checks required fields and ranges.
func (c AppConfig) Validate() error {
	values := map[string]string{
		KeySecretKey:     c.SecretKey,
		KeyAdminUsername: c.AdminUsername,
		KeyAdminPassword: c.AdminPassword,
		KeyOpenAIAPIKey:  c.OpenAIAPIKey,
	}
	for _, key := range RequiredKeys {
		if strings.TrimSpace(values[key]) == "" {
			return &ConfigError{File: c.SourceFile, Field: key, Reason: "is missing or empty"}
		}
	}
	if c.Port < 1 || c.Port > 65535 {
		return &ConfigError{File: c.SourceFile, Field: KeyPort, Reason: "must be between 1 and 65535"}
	}
	if c.AccessTokenExpireMinutes <= 0 {
		return &ConfigError{File: c.SourceFile, Field: KeyAccessTokenExpireMinutes, Reason: "must be greater than zero"}
	}
	if c.DefaultUsageLimit < 0 {
		return &ConfigError{File: c.SourceFile, Field: KeyDefaultUsageLimit, Reason: "must not be negative"}
	}
	return nil
}

// Placeholders lists fields still set to PlaceholderValue.
func (c AppConfig) Placeholders() []string {
	var fields []string
	for _, item := range []struct {
		key   string
		value string
	}{
		{KeySecretKey, c.SecretKey},
		{KeyOpenAIAPIKey, c.OpenAIAPIKey},
		{KeyAdminUsername, c.AdminUsername},
		{KeyAdminPassword, c.AdminPassword},
	} {
		if item.value == PlaceholderValue {
			fields = append(fields, item.key)
		}
	}
	return fields
}
