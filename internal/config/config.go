package config

import (
	"fmt"
	"time"
)

// Config is the application configuration.
type Config struct {
	Env       string          `mapstructure:"env"`
	ProjectID string          `mapstructure:"project_id"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis_service"`
	Session   SessionConfig   `mapstructure:"session"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Frontend  FrontendConfig  `mapstructure:"frontend"`
	Storage   StorageConfig   `mapstructure:"storage"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox"`
	Datasets  []DatasetConfig `mapstructure:"datasets" validate:"dive"`
}

// IsProduction reports whether NODE_ENV selected the production profile.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"min=1,max=65535"`
}

// GetAddress returns host:port for the listener.
func (s *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LogConfig controls the logrus level.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DatabaseConfig points at the sqlite file.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// RedisConfig configures the optional Redis limiter. An empty Host disables Redis entirely.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	DB       int    `mapstructure:"db"`
	Password string `mapstructure:"password"`
}

// Enabled reports whether a Redis host was configured.
func (r *RedisConfig) Enabled() bool {
	return r.Host != ""
}

// GetAddress returns the Redis host:port.
func (r *RedisConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// SessionConfig controls bearer session lifetime and the expiry sweep.
type SessionConfig struct {
	TTLHours int `mapstructure:"ttl_hours" validate:"min=1"`
	// SweepSchedule is a cron spec; empty means the sweep only runs at startup.
	SweepSchedule string `mapstructure:"sweep_schedule"`
}

// GetTTL returns the session lifetime.
func (s *SessionConfig) GetTTL() time.Duration {
	return time.Duration(s.TTLHours) * time.Hour
}

// CORSConfig lists allowed origins, methods and headers.
type CORSConfig struct {
	Origins          []string `mapstructure:"origins"`
	AllowCredentials bool     `mapstructure:"allow_credentials"`
	AllowMethods     []string `mapstructure:"allow_methods"`
	AllowHeaders     []string `mapstructure:"allow_headers"`
}

// FrontendConfig holds the frontend origin.
type FrontendConfig struct {
	URL string `mapstructure:"url"`
}

// StorageConfig selects and configures the object store driver.
type StorageConfig struct {
	Driver        string `mapstructure:"driver" validate:"oneof=s3 memory"`
	DefaultBucket string `mapstructure:"default_bucket" validate:"required"`
	Endpoint      string `mapstructure:"endpoint"`
	Region        string `mapstructure:"region"`
	AccessKey     string `mapstructure:"access_key"`
	SecretKey     string `mapstructure:"secret_key"`
	UsePathStyle  bool   `mapstructure:"use_path_style"`
	// HeadConcurrency bounds the per-object metadata requests issued while listing.
	HeadConcurrency int `mapstructure:"head_concurrency"`
}

// LLMConfig configures the code generation model.
type LLMConfig struct {
	Provider       string  `mapstructure:"provider" validate:"oneof=gemini openai"`
	APIKey         string  `mapstructure:"api_key"`
	APIBase        string  `mapstructure:"api_base"`
	Model          string  `mapstructure:"model"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	MaxConcurrent  int     `mapstructure:"max_concurrent"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	Temperature    float64 `mapstructure:"temperature"`
}

// GetTimeout returns the per-call model timeout.
func (l *LLMConfig) GetTimeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// SandboxConfig controls the child process that runs generated code.
type SandboxConfig struct {
	Interpreter    string `mapstructure:"interpreter"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"min=1"`
	MaxOutputBytes int64  `mapstructure:"max_output_bytes"`
	WorkRoot       string `mapstructure:"work_root"`
	MaxConcurrent  int    `mapstructure:"max_concurrent" validate:"min=1"`
	// StageConcurrency bounds parallel dataset downloads per execution.
	StageConcurrency int `mapstructure:"stage_concurrency"`
	// AllowedEnv lists host environment variables passed through to the child.
	AllowedEnv []string `mapstructure:"allowed_env"`
}

// GetTimeout returns the wall-clock budget of one execution.
func (s *SandboxConfig) GetTimeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// DatasetConfig is one manifest entry preloaded into every execution.
type DatasetConfig struct {
	Name   string `mapstructure:"name" validate:"required,identifier"`
	Bucket string `mapstructure:"bucket" validate:"required"`
	Object string `mapstructure:"object" validate:"required"`
}
