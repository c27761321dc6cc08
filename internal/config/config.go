package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI    string
	DBName      string
	Port        string
	GinMode     string
	CORSOrigins []string
	MaxFileSize int64
	StorageDir  string

	// Redis Configuration
	RedisURL      string
	RedisPassword string
	RedisDB       int

	// JWT Token Secrets
	AccessSecret  string
	RefreshSecret string
	BcryptCost    int

	// Rate limiting
	RateLimitReqs   int
	RateLimitWindow int

	// Gemini
	GeminiAPIKey         string
	GeminiModel          string
	EmbeddingsModel      string
	EmbedDim             int
	EmbedBatchSize       int
	LLMRequestsPerMinute float64
	LLMBurst             int

	// Vector index
	VectorProvider string // "pinecone" or "chromem"
	PineconeAPIKey string
	PineconeHost   string
	ChromemPath    string

	// Chunking and retrieval
	ChunkSize     int
	ChunkOverlap  int
	TopK          int
	HistoryWindow int

	// Timeouts and retries (seconds for timeouts)
	EmbedTimeout    int
	QueryTimeout    int
	GenerateTimeout int
	ChatRetries     int
	IndexRetries    int
	StuckAfter      int // seconds before the watchdog fails a non-terminal document

	RetainTranscripts bool

	// Telemetry
	OTelEndpoint   string
	TracingEnabled bool
}

func LoadConfig() (*Config, error) {
	// Load .env file if exists
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %v", err)
		}
	}

	cfg := &Config{
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017/chatpdf"),
		DBName:      getEnv("DB_NAME", "chatpdf"),
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "debug"),
		CORSOrigins: strings.Split(getEnv("CORS_ORIGINS", "http://localhost:3000"), ","),
		MaxFileSize: getEnvInt64("MAX_FILE_SIZE", 33554432), // 32MB upload cap
		StorageDir:  getEnv("FILE_STORAGE_DIR", "./storage"),

		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		AccessSecret:  getEnv("ACCESS_SECRET", ""),
		RefreshSecret: getEnv("REFRESH_SECRET", ""),
		BcryptCost:    getEnvInt("BCRYPT_COST", 12),

		RateLimitReqs:   getEnvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW", 60),

		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		EmbeddingsModel: getEnv("EMBEDDINGS_MODEL", "text-embedding-004"),
		EmbedDim:        getEnvInt("EMBED_DIM", 768),
		EmbedBatchSize:  getEnvInt("EMBED_BATCH_SIZE", 100),

		// Gemini free tier allows 10 requests per minute
		LLMRequestsPerMinute: getEnvFloat("LLM_REQUESTS_PER_MINUTE", 9),
		LLMBurst:             getEnvInt("LLM_BURST", 2),

		VectorProvider: getEnv("VECTOR_PROVIDER", "pinecone"),
		PineconeAPIKey: getEnv("PINECONE_API_KEY", ""),
		PineconeHost:   getEnv("PINECONE_HOST", ""),
		ChromemPath:    getEnv("CHROMEM_PATH", "./storage/chromem"),

		ChunkSize:     getEnvInt("CHUNK_SIZE", 1000),
		ChunkOverlap:  getEnvInt("CHUNK_OVERLAP", 200),
		TopK:          getEnvInt("TOP_K", 5),
		HistoryWindow: getEnvInt("HISTORY_WINDOW", 10),

		EmbedTimeout:    getEnvInt("EMBED_TIMEOUT", 30),
		QueryTimeout:    getEnvInt("QUERY_TIMEOUT", 10),
		GenerateTimeout: getEnvInt("GENERATE_TIMEOUT", 60),
		ChatRetries:     getEnvInt("CHAT_RETRIES", 3),
		IndexRetries:    getEnvInt("INDEX_RETRIES", 4),
		StuckAfter:      getEnvInt("STUCK_AFTER", 900), // 15 minutes

		RetainTranscripts: getEnvBool("RETAIN_TRANSCRIPTS", false),

		OTelEndpoint:   getEnv("OTEL_ENDPOINT", "localhost:4317"),
		TracingEnabled: getEnvBool("TRACING_ENABLED", false),
	}

	// Validate required fields
	if cfg.AccessSecret == "" {
		return nil, fmt.Errorf("ACCESS_SECRET is required - set it in .env file")
	}

	if cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("REFRESH_SECRET is required - set it in .env file")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required - set it in .env file")
	}

	if cfg.VectorProvider == "pinecone" && (cfg.PineconeAPIKey == "" || cfg.PineconeHost == "") {
		return nil, fmt.Errorf("PINECONE_API_KEY and PINECONE_HOST are required when VECTOR_PROVIDER=pinecone")
	}

	if cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("CHUNK_OVERLAP must be smaller than CHUNK_SIZE")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
