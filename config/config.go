// Package config provides configuration loading and management utilities for the rules engine.
// This package includes standard environment variable loading, validation, and
// configuration patterns used across this module.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvConfig provides utilities for loading configuration from environment variables
type EnvConfig struct {
	prefix string // Optional prefix for all environment variables
}

// NewEnvConfig creates a new environment configuration loader
func NewEnvConfig(prefix string) *EnvConfig {
	return &EnvConfig{
		prefix: prefix,
	}
}

// GetString retrieves a string value from environment with optional default
func (ec *EnvConfig) GetString(key, defaultValue string) string {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		return value
	}
	return defaultValue
}

// MustGetString retrieves a required string value from environment or panics
func (ec *EnvConfig) MustGetString(key string) string {
	fullKey := ec.buildKey(key)
	value := os.Getenv(fullKey)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s not set", fullKey))
	}
	return value
}

// GetInt retrieves an integer value from environment with optional default
func (ec *EnvConfig) GetInt(key string, defaultValue int) int {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// MustGetInt retrieves a required integer value from environment or panics
func (ec *EnvConfig) MustGetInt(key string) int {
	fullKey := ec.buildKey(key)
	value := os.Getenv(fullKey)
	if value == "" {
		panic(fmt.Sprintf("required environment variable %s not set", fullKey))
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		panic(fmt.Sprintf("environment variable %s is not a valid integer: %v", fullKey, err))
	}
	return intValue
}

// GetBool retrieves a boolean value from environment with optional default
func (ec *EnvConfig) GetBool(key string, defaultValue bool) bool {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		boolValue, err := strconv.ParseBool(value)
		if err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetDuration retrieves a duration value from environment with optional default
func (ec *EnvConfig) GetDuration(key string, defaultValue time.Duration) time.Duration {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		duration, err := time.ParseDuration(value)
		if err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetStringSlice retrieves a comma-separated string slice from environment
func (ec *EnvConfig) GetStringSlice(key string, defaultValue []string) []string {
	fullKey := ec.buildKey(key)
	if value := os.Getenv(fullKey); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultValue
}

// buildKey builds the full environment variable key with optional prefix
func (ec *EnvConfig) buildKey(key string) string {
	if ec.prefix != "" {
		return ec.prefix + "_" + key
	}
	return key
}

// ServiceConfig contains common service identity configuration, used for
// log fields and cache/trace metadata rather than any HTTP surface.
type ServiceConfig struct {
	Name        string
	Version     string
	Environment string
	LogLevel    string
	LogFormat   string
}

// LoadServiceConfig loads service configuration from environment
func LoadServiceConfig(prefix string) ServiceConfig {
	env := NewEnvConfig(prefix)
	return ServiceConfig{
		Name:        env.GetString("NAME", "rulesengine"),
		Version:     env.GetString("VERSION", "0.0.1"),
		Environment: env.GetString("ENVIRONMENT", "development"),
		LogLevel:    env.GetString("LOG_LEVEL", "info"),
		LogFormat:   env.GetString("LOG_FORMAT", "text"),
	}
}

// DataServiceConfig carries the data-service call tuning knobs.
type DataServiceConfig struct {
	DefaultTimeout        time.Duration
	MaxRetries            int
	BackoffInitial        time.Duration
	GlobalConcurrency     int
	PerEndpointConcurrency int
}

// LoadDataServiceConfig loads data-service call configuration from environment
func LoadDataServiceConfig(prefix string) DataServiceConfig {
	env := NewEnvConfig(prefix)
	return DataServiceConfig{
		DefaultTimeout:         time.Duration(env.GetInt("DEFAULT_TIMEOUT_MS", 30000)) * time.Millisecond,
		MaxRetries:             env.GetInt("MAX_RETRIES", 3),
		BackoffInitial:         time.Duration(env.GetInt("BACKOFF_INITIAL_MS", 200)) * time.Millisecond,
		GlobalConcurrency:      env.GetInt("GLOBAL_CONCURRENCY", 64),
		PerEndpointConcurrency: env.GetInt("PER_ENDPOINT_CONCURRENCY", 16),
	}
}

// ResolutionConfig carries field-resolution tuning knobs.
type ResolutionConfig struct {
	OverallTimeout time.Duration
}

// LoadResolutionConfig loads field-resolution configuration from environment
func LoadResolutionConfig(prefix string) ResolutionConfig {
	env := NewEnvConfig(prefix)
	return ResolutionConfig{
		OverallTimeout: time.Duration(env.GetInt("OVERALL_TIMEOUT_MS", 60000)) * time.Millisecond,
	}
}

// FilterConfig carries entity-filter batching and concurrency knobs.
type FilterConfig struct {
	DefaultBatchSize     int
	PerEntityConcurrency int
	PerEntityTimeout     time.Duration
}

// LoadFilterConfig loads entity-filter configuration from environment
func LoadFilterConfig(prefix string) FilterConfig {
	env := NewEnvConfig(prefix)
	return FilterConfig{
		DefaultBatchSize:     env.GetInt("DEFAULT_BATCH_SIZE", 100),
		PerEntityConcurrency: env.GetInt("PER_ENTITY_CONCURRENCY", 16),
		PerEntityTimeout:     time.Duration(env.GetInt("PER_ENTITY_TIMEOUT_MS", 5000)) * time.Millisecond,
	}
}

// RuleLimitsConfig carries rule-tree parse limits.
type RuleLimitsConfig struct {
	MaxDepth  int
	MaxLeaves int
}

// LoadRuleLimitsConfig loads rule-tree parse limits from environment
func LoadRuleLimitsConfig(prefix string) RuleLimitsConfig {
	env := NewEnvConfig(prefix)
	return RuleLimitsConfig{
		MaxDepth:  env.GetInt("MAX_DEPTH", 32),
		MaxLeaves: env.GetInt("MAX_LEAVES", 1000),
	}
}

// AnalyzerConfig carries dependency-analyzer planning knobs.
type AnalyzerConfig struct {
	MergeGroupThreshold int
}

// LoadAnalyzerConfig loads dependency-analyzer configuration from environment
func LoadAnalyzerConfig(prefix string) AnalyzerConfig {
	env := NewEnvConfig(prefix)
	return AnalyzerConfig{
		MergeGroupThreshold: env.GetInt("MERGE_GROUP_THRESHOLD", 3),
	}
}

// RegistryConfig contains optional persistent-registry (Postgres) connection
// settings, used only when the caller wires postgres.Registry instead
// of the default in-memory implementation.
type RegistryConfig struct {
	PostgresDSN    string
	MaxConnections int
	Timeout        time.Duration
}

// LoadRegistryConfig loads registry configuration from environment
func LoadRegistryConfig(prefix string) RegistryConfig {
	env := NewEnvConfig(prefix)
	return RegistryConfig{
		PostgresDSN:    env.GetString("POSTGRES_DSN", ""),
		MaxConnections: env.GetInt("MAX_CONNECTIONS", 10),
		Timeout:        env.GetDuration("TIMEOUT", 30*time.Second),
	}
}

// CacheConfig contains optional distributed request-cache (Redis) settings,
// used only when the caller wires rediscache.Cache instead of the
// default in-process cache.
type CacheConfig struct {
	RedisURL string
	TTL      time.Duration
}

// LoadCacheConfig loads request-cache configuration from environment
func LoadCacheConfig(prefix string) CacheConfig {
	env := NewEnvConfig(prefix)
	return CacheConfig{
		RedisURL: env.GetString("REDIS_URL", ""),
		TTL:      env.GetDuration("TTL", 60*time.Second),
	}
}

// Validator provides configuration validation utilities
type Validator struct {
	errors []string
}

// NewValidator creates a new configuration validator
func NewValidator() *Validator {
	return &Validator{
		errors: make([]string, 0),
	}
}

// RequireString validates that a string field is not empty
func (v *Validator) RequireString(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
	}
}

// RequireInt validates that an integer field is within range
func (v *Validator) RequireInt(field string, value, min, max int) {
	if value < min || value > max {
		v.errors = append(v.errors, fmt.Sprintf("%s must be between %d and %d", field, min, max))
	}
}

// RequirePositiveInt validates that an integer field is positive
func (v *Validator) RequirePositiveInt(field string, value int) {
	if value <= 0 {
		v.errors = append(v.errors, fmt.Sprintf("%s must be positive", field))
	}
}

// RequireURL validates that a string is a valid URL
func (v *Validator) RequireURL(field, value string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
		return
	}
	if !strings.HasPrefix(value, "http://") && !strings.HasPrefix(value, "https://") {
		v.errors = append(v.errors, fmt.Sprintf("%s must be a valid URL (http:// or https://)", field))
	}
}

// RequireOneOf validates that a value is one of the allowed options
func (v *Validator) RequireOneOf(field, value string, allowed []string) {
	if value == "" {
		v.errors = append(v.errors, fmt.Sprintf("%s is required", field))
		return
	}
	for _, option := range allowed {
		if value == option {
			return
		}
	}
	v.errors = append(v.errors, fmt.Sprintf("%s must be one of: %s", field, strings.Join(allowed, ", ")))
}

// IsValid returns true if there are no validation errors
func (v *Validator) IsValid() bool {
	return len(v.errors) == 0
}

// Errors returns all validation errors
func (v *Validator) Errors() []string {
	return v.errors
}

// ErrorString returns all validation errors as a single string
func (v *Validator) ErrorString() string {
	if len(v.errors) == 0 {
		return ""
	}
	return strings.Join(v.errors, "; ")
}

// Validate runs validation and returns error if invalid
func (v *Validator) Validate() error {
	if !v.IsValid() {
		return fmt.Errorf("configuration validation failed: %s", v.ErrorString())
	}
	return nil
}

// RulesEngineConfig carries every configuration knob from spec.md §6,
// loaded from environment variables under a single prefix (default
// "RULES_ENGINE").
type RulesEngineConfig struct {
	Service     ServiceConfig
	DataService DataServiceConfig
	Resolution  ResolutionConfig
	Filter      FilterConfig
	RuleLimits  RuleLimitsConfig
	Analyzer    AnalyzerConfig
	Registry    RegistryConfig
	Cache       CacheConfig
}

// ConfigLoader provides a fluent interface for loading the rules-engine
// configuration from environment variables.
type ConfigLoader struct {
	prefix string
	env    *EnvConfig
}

// NewConfigLoader creates a new configuration loader
func NewConfigLoader(prefix string) *ConfigLoader {
	return &ConfigLoader{
		prefix: prefix,
		env:    NewEnvConfig(prefix),
	}
}

// LoadAll loads the full rules-engine configuration
func (cl *ConfigLoader) LoadAll() (*RulesEngineConfig, error) {
	config := &RulesEngineConfig{
		Service:     LoadServiceConfig(cl.prefix),
		DataService: LoadDataServiceConfig(cl.prefix + "_DATASERVICE"),
		Resolution:  LoadResolutionConfig(cl.prefix + "_RESOLUTION"),
		Filter:      LoadFilterConfig(cl.prefix + "_FILTER"),
		RuleLimits:  LoadRuleLimitsConfig(cl.prefix + "_RULE"),
		Analyzer:    LoadAnalyzerConfig(cl.prefix + "_ANALYZER"),
		Registry:    LoadRegistryConfig(cl.prefix + "_REGISTRY"),
		Cache:       LoadCacheConfig(cl.prefix + "_CACHE"),
	}

	if err := cl.validate(config); err != nil {
		return nil, err
	}

	return config, nil
}

// validate validates the loaded configuration
func (cl *ConfigLoader) validate(config *RulesEngineConfig) error {
	validator := NewValidator()

	validator.RequireOneOf("Service.Environment", config.Service.Environment,
		[]string{"development", "staging", "production"})
	validator.RequireOneOf("Service.LogLevel", config.Service.LogLevel,
		[]string{"debug", "info", "warn", "error"})

	validator.RequirePositiveInt("DataService.MaxRetries", config.DataService.MaxRetries+1)
	validator.RequirePositiveInt("DataService.GlobalConcurrency", config.DataService.GlobalConcurrency)
	validator.RequirePositiveInt("DataService.PerEndpointConcurrency", config.DataService.PerEndpointConcurrency)
	validator.RequirePositiveInt("Filter.DefaultBatchSize", config.Filter.DefaultBatchSize)
	validator.RequirePositiveInt("Filter.PerEntityConcurrency", config.Filter.PerEntityConcurrency)
	validator.RequirePositiveInt("RuleLimits.MaxDepth", config.RuleLimits.MaxDepth)
	validator.RequirePositiveInt("RuleLimits.MaxLeaves", config.RuleLimits.MaxLeaves)
	validator.RequirePositiveInt("Analyzer.MergeGroupThreshold", config.Analyzer.MergeGroupThreshold)

	return validator.Validate()
}
