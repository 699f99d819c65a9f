package config

import (
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"notafiscal/pkg/client"
	"notafiscal/pkg/logger"
)

// Extraction holds the settings shared by every component that talks to LlamaCloud.
type Extraction struct {
	APIKey             string
	BaseURL            string
	DeployURL          string
	AgentName          string
	FallbackSchemaPath string
	Timeout            time.Duration
	PollInterval       time.Duration
}

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port     string
	AppDebug bool

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxUploadSize  int64

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Extraction Extraction

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	LoadDotEnv()

	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port:     getEnvStr(EnvPort, DefaultPort),
		AppDebug: getEnvBool(EnvAppDebug, false),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxUploadSize:  int64(getEnvNum(EnvMaxUploadSize, DefaultMaxUploadSize)),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		Extraction: LoadExtraction(),

		Log:    LoadLogger(serviceName),
		Client: client.NewClient(),
	}

	err := cfg.Validate()
	if err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// LoadLogger builds the JSON logger every binary uses, honouring LOG_LEVEL.
func LoadLogger(serviceName string) *logger.Logger {
	return logger.New(logger.Config{
		Level:     getEnvStr(EnvLogLevel, logger.INFO),
		Format:    logger.JSON,
		AddSource: true,
		Service:   serviceName,
	})
}

// LoadExtraction reads the LlamaCloud settings from the environment. It does not
// load .env files; callers that need them call LoadDotEnv first.
func LoadExtraction() Extraction {
	return Extraction{
		APIKey:             cleanSecret(os.Getenv(EnvLlamaCloudAPIKey)),
		BaseURL:            strings.TrimRight(getEnvStr(EnvLlamaCloudBaseURL, DefaultLlamaCloudBaseURL), "/"),
		DeployURL:          strings.TrimRight(getEnvStr(EnvLlamaDeployURL, DefaultLlamaDeployURL), "/"),
		AgentName:          strings.TrimSpace(getEnvStr(EnvAgentName, DefaultAgentName)),
		FallbackSchemaPath: getEnvStr(EnvFallbackSchemaPath, DefaultFallbackSchemaPath),
		Timeout:            getEnvDuration(EnvExtractionTimeout, DefaultExtractionTimeout),
		PollInterval:       getEnvDuration(EnvExtractionPollInterval, DefaultExtractionPollInterval),
	}
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if len(cfg.MongoURI) < 10 || !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", cfg.MongoURI))
	}

	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}

	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}
	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.MaxUploadSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxUploadSize must be positive, got: %d", cfg.MaxUploadSize))
	}

	errors = append(errors, cfg.Extraction.problems()...)

	if cfg.Extraction.Timeout > 0 && cfg.RequestTimeout > 0 && cfg.Extraction.Timeout > cfg.RequestTimeout {
		errors = append(errors, fmt.Sprintf("ExtractionTimeout (%s) must not exceed RequestTimeout (%s)", cfg.Extraction.Timeout, cfg.RequestTimeout))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (e Extraction) problems() []string {
	var errors []string

	if u, err := url.Parse(e.BaseURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errors = append(errors, fmt.Sprintf("LlamaCloudBaseURL must be an absolute http(s) URL, got: %s", e.BaseURL))
	}
	if e.AgentName == "" {
		errors = append(errors, "AgentName cannot be empty")
	}
	if e.Timeout <= 0 {
		errors = append(errors, fmt.Sprintf("ExtractionTimeout must be positive, got: %s", e.Timeout))
	}
	if e.PollInterval <= 0 {
		errors = append(errors, fmt.Sprintf("ExtractionPollInterval must be positive, got: %s", e.PollInterval))
	} else if e.Timeout > 0 && e.PollInterval >= e.Timeout {
		errors = append(errors, fmt.Sprintf("ExtractionPollInterval (%s) must be shorter than ExtractionTimeout (%s)", e.PollInterval, e.Timeout))
	}
	return errors
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"app_debug", cfg.AppDebug,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_upload_size", cfg.MaxUploadSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"llama_cloud_base_url", cfg.Extraction.BaseURL,
		"llama_cloud_api_key_set", cfg.Extraction.APIKey != "",
		"agent_name", cfg.Extraction.AgentName,
		"fallback_schema_path", cfg.Extraction.FallbackSchemaPath,
		"extraction_timeout", cfg.Extraction.Timeout,
		"extraction_poll_interval", cfg.Extraction.PollInterval,
	)
	if cfg.Extraction.APIKey == "" {
		cfg.Log.Warn("LLAMA_CLOUD_API_KEY is not set; document extraction will be rejected")
	}
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

// cleanSecret drops whitespace and a pair of wrapping quotes some .env writers leave behind.
func cleanSecret(value string) string {
	value = strings.TrimSpace(value)
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		value = value[1 : len(value)-1]
	}
	return strings.TrimSpace(value)
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log, cfg.ShutdownTimeout)
}
