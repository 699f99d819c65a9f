package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"
	EnvAppDebug = "APP_DEBUG"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxUploadSize  = "MAX_UPLOAD_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvLlamaCloudAPIKey       = "LLAMA_CLOUD_API_KEY"
	EnvLlamaCloudBaseURL      = "LLAMA_CLOUD_BASE_URL"
	EnvLlamaDeployURL         = "LLAMA_DEPLOY_URL"
	EnvAgentName              = "AGENT_NAME"
	EnvFallbackSchemaPath     = "FALLBACK_SCHEMA_PATH"
	EnvExtractionTimeout      = "EXTRACTION_TIMEOUT"
	EnvExtractionPollInterval = "EXTRACTION_POLL_INTERVAL"
)
