package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "notafiscal"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort = "8080"

	DefaultRateLimitRequests = 10
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout = 4 * time.Minute
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxUploadSize  = 10 * 1024 * 1024 // 10MB

	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 5 * time.Minute
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultLlamaCloudBaseURL      = "https://api.cloud.llamaindex.ai"
	DefaultLlamaDeployURL         = "https://api.cloud.llamaindex.ai/deployments/nota-fiscal-agent-v2"
	DefaultAgentName              = "Nota Fiscal"
	DefaultFallbackSchemaPath     = "schema.json"
	DefaultExtractionTimeout      = 3 * time.Minute
	DefaultExtractionPollInterval = 2 * time.Second
)
