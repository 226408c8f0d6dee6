package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"analytics-ai/internal/utils"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// envBindings maps config keys to the environment variables the deployment uses.
var envBindings = map[string]string{
	"env":                    "NODE_ENV",
	"project_id":             "PROJECT_ID",
	"server.host":            "HOST",
	"server.port":            "PORT",
	"log.level":              "LOG_LEVEL",
	"database.path":          "DATABASE_PATH",
	"frontend.url":           "FRONTEND_URL",
	"storage.driver":         "STORAGE_DRIVER",
	"storage.default_bucket": "DEFAULT_BUCKET",
	"storage.endpoint":       "S3_ENDPOINT",
	"storage.region":         "S3_REGION",
	"storage.access_key":     "S3_ACCESS_KEY",
	"storage.secret_key":     "S3_SECRET_KEY",
	"llm.provider":           "LLM_PROVIDER",
	"llm.api_key":            "GEMINI_API_KEY",
	"llm.api_base":           "LLM_API_BASE",
	"llm.model":              "LLM_MODEL",
	"redis_service.host":     "REDIS_HOST",
	"redis_service.port":     "REDIS_PORT",
	"redis_service.password": "REDIS_PASSWORD",
	"sandbox.interpreter":    "SANDBOX_INTERPRETER",
}

// defaultOrigins are always allowed in addition to FRONTEND_URL.
var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:8080",
	"http://localhost",
}

// LoadConfig reads the optional YAML file, applies .env files and environment
// overrides, fills defaults and validates the result.
func LoadConfig(configFile string) (*Config, error) {
	loadDotEnv()

	v := viper.New()

	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, fmt.Errorf("config file %s: %w", configFile, err)
		}
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	setDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv loads .env.production when NODE_ENV=production and
// .env.development otherwise. Variables already set in the process win.
func loadDotEnv() {
	name := ".env.development"
	if os.Getenv("NODE_ENV") == "production" {
		name = ".env.production"
	}
	if err := godotenv.Load(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: could not load %s: %v\n", name, err)
	}
}

func setDefaults(cfg *Config) {
	if cfg.Env == "" {
		cfg.Env = "development"
	}
	if cfg.ProjectID == "" {
		cfg.ProjectID = "ai-analysis-v1"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/analytics_ai.db"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Session.TTLHours == 0 {
		cfg.Session.TTLHours = 7 * 24
	}
	if cfg.Frontend.URL == "" {
		cfg.Frontend.URL = "http://localhost:3000"
	}
	cfg.CORS.Origins = dedupe(append(append(append([]string{}, defaultOrigins...), cfg.CORS.Origins...), cfg.Frontend.URL))
	if cfg.CORS.AllowMethods == nil {
		cfg.CORS.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	}
	if cfg.CORS.AllowHeaders == nil {
		cfg.CORS.AllowHeaders = []string{"Authorization", "Content-Type"}
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "s3"
	}
	if cfg.Storage.DefaultBucket == "" {
		cfg.Storage.DefaultBucket = "ai-analysis-default-bucket"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "auto"
	}
	if cfg.Storage.HeadConcurrency <= 0 {
		cfg.Storage.HeadConcurrency = 8
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "gemini"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gemini-2.5-pro"
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 120
	}
	if cfg.LLM.MaxConcurrent <= 0 {
		cfg.LLM.MaxConcurrent = 4
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 2048
	}
	if cfg.Sandbox.Interpreter == "" {
		cfg.Sandbox.Interpreter = "python3"
	}
	if cfg.Sandbox.TimeoutSeconds == 0 {
		cfg.Sandbox.TimeoutSeconds = 30
	}
	if cfg.Sandbox.MaxOutputBytes == 0 {
		cfg.Sandbox.MaxOutputBytes = 1 << 20
	}
	if cfg.Sandbox.MaxConcurrent == 0 {
		cfg.Sandbox.MaxConcurrent = 4
	}
	if cfg.Sandbox.StageConcurrency <= 0 {
		cfg.Sandbox.StageConcurrency = 4
	}
	if cfg.Sandbox.AllowedEnv == nil {
		cfg.Sandbox.AllowedEnv = []string{"PATH", "HOME", "LANG", "LC_ALL", "TMPDIR", "PYTHONPATH", "VIRTUAL_ENV"}
	}
}

func validateConfig(cfg *Config) error {
	if err := utils.ValidateStruct(cfg); err != nil {
		return err
	}

	seen := make(map[string]bool, len(cfg.Datasets))
	for _, ds := range cfg.Datasets {
		if seen[ds.Name] {
			return fmt.Errorf("dataset %q is declared twice", ds.Name)
		}
		seen[ds.Name] = true
	}

	dbDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}

	if cfg.Sandbox.WorkRoot != "" {
		if err := os.MkdirAll(cfg.Sandbox.WorkRoot, 0o700); err != nil {
			return fmt.Errorf("create sandbox work root: %w", err)
		}
	}

	return nil
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
