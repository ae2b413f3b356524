package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/josephgoksu/Wayline/internal/app"
	"github.com/josephgoksu/Wayline/internal/bridge"
	"github.com/josephgoksu/Wayline/internal/gaps"
	"github.com/josephgoksu/Wayline/internal/reasoning"
)

var validate = validator.New()

// RetentionConfig bounds how long traces and analyses live.
type RetentionConfig struct {
	Window        time.Duration `mapstructure:"window" validate:"gt=0"`
	SweepInterval time.Duration `mapstructure:"sweepInterval" validate:"gt=0"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr" validate:"required,hostname_port"`
	AllowedOrigins []string `mapstructure:"allowedOrigins"`
}

// PolicyConfig locates acceptance policies.
type PolicyConfig struct {
	Dir   string `mapstructure:"dir"`
	Watch bool   `mapstructure:"watch"`
}

// TelemetryConfig controls opt-in product analytics.
type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	APIKey   string `mapstructure:"apiKey"`
	Endpoint string `mapstructure:"endpoint"`
}

// DefaultRetentionConfig keeps traces for a week.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{Window: 7 * 24 * time.Hour, SweepInterval: time.Hour}
}

// DefaultServerConfig listens on loopback only.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{Addr: "127.0.0.1:7420"}
}

// LoadReasoningConfig loads reasoning.* with defaults.
func LoadReasoningConfig() (reasoning.Config, error) {
	d := reasoning.DefaultConfig()
	cfg := reasoning.Config{
		MaxSteps:           getIntWithDefault("reasoning.maxSteps", d.MaxSteps),
		Timeout:            getDurationWithDefault("reasoning.timeout", d.Timeout),
		MaxTasks:           getIntWithDefault("reasoning.maxTasks", d.MaxTasks),
		Selector:           getStringWithDefault("reasoning.selector", d.Selector),
		IncompletePenalty:  getFloat64WithDefault("reasoning.incompletePenalty", d.IncompletePenalty),
		InferenceThreshold: getFloat64WithDefault("reasoning.inferenceThreshold", d.InferenceThreshold),
	}
	// The trace ceiling is fixed; larger values are clamped, not rejected.
	if cfg.MaxSteps > reasoning.MaxSteps {
		cfg.MaxSteps = reasoning.MaxSteps
	}
	return cfg, check("reasoning", cfg)
}

// LoadGapsConfig loads gaps.* with defaults.
func LoadGapsConfig() (gaps.Config, error) {
	d := gaps.DefaultConfig()
	cfg := gaps.Config{
		TimeThreshold: getFloat64WithDefault("gaps.timeThreshold", d.TimeThreshold),
		MaxGaps:       getIntWithDefault("gaps.maxGaps", d.MaxGaps),
	}
	if cfg.TimeThreshold <= 0 || cfg.MaxGaps <= 0 {
		return cfg, fmt.Errorf("invalid gaps config: timeThreshold and maxGaps must be positive")
	}
	return cfg, nil
}

// LoadBridgeConfig loads bridge.* with defaults.
func LoadBridgeConfig() (bridge.Config, error) {
	d := bridge.DefaultConfig()
	cfg := bridge.Config{
		ExistingThreshold:  getFloat64WithDefault("bridge.existingThreshold", d.ExistingThreshold),
		CrossLaneThreshold: getFloat64WithDefault("bridge.crossLaneThreshold", d.CrossLaneThreshold),
		MaxCandidates:      getIntWithDefault("bridge.maxCandidates", d.MaxCandidates),
		RetryDelay:         getDurationWithDefault("bridge.retryDelay", d.RetryDelay),
		Neighbors:          getIntWithDefault("bridge.neighbors", d.Neighbors),
	}
	return cfg, check("bridge", cfg)
}

// LoadReflectionConfig loads reflection.* with defaults.
func LoadReflectionConfig() (app.ReflectionConfig, error) {
	d := app.DefaultConfig().Reflection
	cfg := app.ReflectionConfig{
		BlockFloor: getIntWithDefault("reflection.blockFloor", d.BlockFloor),
		RetryDelay: getDurationWithDefault("reflection.retryDelay", d.RetryDelay),
	}
	return cfg, check("reflection", cfg)
}

// LoadAppConfig loads every use-case section.
func LoadAppConfig() (app.Config, error) {
	var (
		cfg app.Config
		err error
	)
	if cfg.Reasoning, err = LoadReasoningConfig(); err != nil {
		return cfg, err
	}
	if cfg.Gaps, err = LoadGapsConfig(); err != nil {
		return cfg, err
	}
	if cfg.Bridge, err = LoadBridgeConfig(); err != nil {
		return cfg, err
	}
	if cfg.Reflection, err = LoadReflectionConfig(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadRetentionConfig loads retention.* with defaults.
func LoadRetentionConfig() (RetentionConfig, error) {
	d := DefaultRetentionConfig()
	cfg := RetentionConfig{
		Window:        getDurationWithDefault("retention.window", d.Window),
		SweepInterval: getDurationWithDefault("retention.sweepInterval", d.SweepInterval),
	}
	return cfg, check("retention", cfg)
}

// LoadServerConfig loads server.* with defaults.
func LoadServerConfig() (ServerConfig, error) {
	d := DefaultServerConfig()
	cfg := ServerConfig{
		Addr:           getStringWithDefault("server.addr", d.Addr),
		AllowedOrigins: viper.GetStringSlice("server.allowedOrigins"),
	}
	return cfg, check("server", cfg)
}

// LoadPolicyConfig loads policy.*; watching is on by default.
func LoadPolicyConfig() PolicyConfig {
	return PolicyConfig{
		Dir:   PolicyDir(),
		Watch: getBoolWithDefault("policy.watch", true),
	}
}

// LoadTelemetryConfig loads telemetry.*; telemetry is off unless enabled.
func LoadTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:  viper.GetBool("telemetry.enabled"),
		APIKey:   viper.GetString("telemetry.apiKey"),
		Endpoint: viper.GetString("telemetry.endpoint"),
	}
}

// UserID returns the acting user, "local" by default.
func UserID() string {
	return getStringWithDefault("user.id", "local")
}

func check(section string, cfg any) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid %s config: %w", section, err)
	}
	return nil
}

// Helper functions for Viper with defaults

func getFloat64WithDefault(key string, defaultVal float64) float64 {
	if viper.IsSet(key) {
		return viper.GetFloat64(key)
	}
	return defaultVal
}

func getIntWithDefault(key string, defaultVal int) int {
	if viper.IsSet(key) {
		return viper.GetInt(key)
	}
	return defaultVal
}

func getBoolWithDefault(key string, defaultVal bool) bool {
	if viper.IsSet(key) {
		return viper.GetBool(key)
	}
	return defaultVal
}

func getStringWithDefault(key string, defaultVal string) string {
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return defaultVal
}

func getDurationWithDefault(key string, defaultVal time.Duration) time.Duration {
	if viper.IsSet(key) {
		return viper.GetDuration(key)
	}
	return defaultVal
}
