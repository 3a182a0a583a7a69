package config

import (
	"fmt"
	"strconv"
	"os"
	"time"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	OpenSearch  OpenSearchConfig
	Dense       DenseConfig
	Embedding   EmbeddingConfig
	Retrieval   RetrievalConfig
	Validation  ValidationConfig
	Ingest      IngestConfig
	Archive     ArchiveConfig
	Logging     LoggingConfig
	Environment string // local, staging, production
}

type ServerConfig struct {
	Port           string
	AllowedOrigins string
	MaxRequestSize int64
	RequestTimeout time.Duration
}

type DatabaseConfig struct {
	URL            string
	MaxConnections int32
	ConnectTimeout time.Duration
	MigrationsPath string
}

type OpenSearchConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	UseSSL   bool
	Alias    string
	Timeout  time.Duration
}

type DenseConfig struct {
	Dir       string
	Dimension int
	Timeout   time.Duration
}

type EmbeddingConfig struct {
	Endpoint  string
	APIKey    string
	Model     string
	Dimension int
	Timeout   time.Duration
	MaxChars  int
}

type RetrievalConfig struct {
	TopK                    int
	FetchFactor             int
	MergeLimit              int
	LexWeight               float64
	DenseWeight             float64
	LepardWeight            float64 // reserved third signal, currently unwired
	AnchorWindow            int
	MaxInterpretivePerStatute int
	SideTimeout             time.Duration
	LinkTimeout             time.Duration
	CacheBytes              int64
}

type ValidationConfig struct {
	SynthesisThreshold    float64
	HallucinationThreshold float64
	RejectThreshold       float64
}

type IngestConfig struct {
	AllowDuplicates bool
	BatchSize       int
	MaxRootChars    int
}

type ArchiveConfig struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
}

type LoggingConfig struct {
	Level            string
	EnableRequestLog bool
}

func Load() (*Config, error) {
	environment := getEnv("ENVIRONMENT", "local")

	var defaultOrigins string
	if environment == "local" {
		defaultOrigins = "http://localhost:3000,http://localhost:5173"
	}

	opensearchPort, err := parseEnvInt("OPENSEARCH_PORT", 9200)
	if err != nil {
		return nil, err
	}

	maxRequestSize, err := parseEnvInt64("MAX_REQUEST_SIZE", 10*1024*1024)
	if err != nil {
		return nil, err
	}

	dim, err := parseEnvInt("EMBEDDING_DIM", 3072)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment: environment,
		Server: ServerConfig{
			Port:           os.Getenv("PORT"),
			AllowedOrigins: getEnv("ALLOWED_ORIGINS", defaultOrigins),
			MaxRequestSize: maxRequestSize,
			RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConnections: int32(getEnvInt("DB_MAX_CONNECTIONS", 10)),
			ConnectTimeout: getEnvDuration("DB_CONNECT_TIMEOUT", 30*time.Second),
			MigrationsPath: getEnv("DB_MIGRATIONS_PATH", "file://migrations"),
		},
		OpenSearch: OpenSearchConfig{
			Host:     getEnv("OPENSEARCH_HOST", ""),
			Port:     opensearchPort,
			Username: getEnv("OPENSEARCH_USERNAME", ""),
			Password: getEnv("OPENSEARCH_PASSWORD", ""),
			UseSSL:   getEnvBool("OPENSEARCH_USE_SSL", environment != "local"),
			Alias:    getEnv("OPENSEARCH_ALIAS", "legal_units"),
			Timeout:  getEnvDuration("OPENSEARCH_TIMEOUT", 2*time.Second),
		},
		Dense: DenseConfig{
			Dir:       getEnv("DENSE_INDEX_DIR", "./data/dense"),
			Dimension: dim,
			Timeout:   getEnvDuration("DENSE_TIMEOUT", 2*time.Second),
		},
		Embedding: EmbeddingConfig{
			Endpoint:  getEnv("EMBEDDING_ENDPOINT", "https://generativelanguage.googleapis.com/v1beta/models/gemini-embedding-001:embedContent"),
			APIKey:    getEnv("EMBEDDING_API_KEY", ""),
			Model:     getEnv("EMBEDDING_MODEL", "gemini-embedding-001"),
			Dimension: dim,
			Timeout:   getEnvDuration("EMBEDDING_TIMEOUT", 5*time.Second),
			MaxChars:  getEnvInt("EMBEDDING_MAX_CHARS", 20000),
		},
		Retrieval: RetrievalConfig{
			TopK:                    getEnvInt("RETRIEVAL_TOP_K", 10),
			FetchFactor:             getEnvInt("RETRIEVAL_FETCH_FACTOR", 20),
			MergeLimit:              getEnvInt("RETRIEVAL_MERGE_LIMIT", 500),
			LexWeight:               getEnvFloat("RETRIEVAL_LEX_WEIGHT", 0.4),
			DenseWeight:             getEnvFloat("RETRIEVAL_DENSE_WEIGHT", 0.4),
			LepardWeight:            getEnvFloat("RETRIEVAL_LEPARD_WEIGHT", 0.2),
			AnchorWindow:            getEnvInt("RETRIEVAL_ANCHOR_WINDOW", 20),
			MaxInterpretivePerStatute: getEnvInt("RETRIEVAL_MAX_INTERPRETIVE", 3),
			SideTimeout:             getEnvDuration("RETRIEVAL_SIDE_TIMEOUT", 2*time.Second),
			LinkTimeout:             getEnvDuration("RETRIEVAL_LINK_TIMEOUT", time.Second),
			CacheBytes:              getEnvInt64Lenient("RETRIEVAL_CACHE_BYTES", 0),
		},
		Validation: ValidationConfig{
			SynthesisThreshold:     getEnvFloat("VALIDATION_SYNTHESIS_THRESHOLD", 0.70),
			HallucinationThreshold: getEnvFloat("VALIDATION_HALLUCINATION_THRESHOLD", 0.05),
			RejectThreshold:        getEnvFloat("VALIDATION_REJECT_THRESHOLD", 0.15),
		},
		Ingest: IngestConfig{
			AllowDuplicates: getEnvBool("INGEST_ALLOW_DUPLICATES", false),
			BatchSize:       getEnvInt("INGEST_BATCH_SIZE", 100),
			MaxRootChars:    getEnvInt("INGEST_MAX_ROOT_CHARS", 200000),
		},
		Archive: ArchiveConfig{
			Endpoint:  getEnv("ARCHIVE_ENDPOINT", ""),
			Region:    getEnv("ARCHIVE_REGION", "nyc3"),
			Bucket:    getEnv("ARCHIVE_BUCKET", ""),
			AccessKey: getEnv("ARCHIVE_ACCESS_KEY", ""),
			SecretKey: getEnv("ARCHIVE_SECRET_KEY", ""),
		},
		Logging: LoggingConfig{
			Level:            getEnv("LOG_LEVEL", "info"),
			EnableRequestLog: getEnvBool("ENABLE_REQUEST_LOGGING", true),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateOpenSearch(); err != nil {
		return err
	}
	if err := c.validateRetrieval(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil {
		return fmt.Errorf("PORT must be a valid number")
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Database.MaxConnections <= 0 {
		return fmt.Errorf("DB_MAX_CONNECTIONS must be positive")
	}
	return nil
}

func (c *Config) validateOpenSearch() error {
	if c.OpenSearch.Host == "" {
		return fmt.Errorf("OPENSEARCH_HOST is required")
	}
	if c.OpenSearch.Port < 1 || c.OpenSearch.Port > 65535 {
		return fmt.Errorf("OPENSEARCH_PORT must be between 1 and 65535")
	}
	if c.Environment != "local" {
		if c.OpenSearch.Username == "" {
			return fmt.Errorf("OPENSEARCH_USERNAME is required for non-local environments")
		}
		if c.OpenSearch.Password == "" {
			return fmt.Errorf("OPENSEARCH_PASSWORD is required for non-local environments")
		}
	}
	return nil
}

func (c *Config) validateRetrieval() error {
	if c.Retrieval.TopK < 1 || c.Retrieval.TopK > 50 {
		return fmt.Errorf("RETRIEVAL_TOP_K must be between 1 and 50")
	}
	if c.Retrieval.LexWeight < 0 || c.Retrieval.DenseWeight < 0 {
		return fmt.Errorf("retrieval weights must be non-negative")
	}
	if c.Retrieval.LexWeight+c.Retrieval.DenseWeight == 0 {
		return fmt.Errorf("at least one retrieval weight must be positive")
	}
	if c.Retrieval.MaxInterpretivePerStatute < 1 || c.Retrieval.MaxInterpretivePerStatute > 10 {
		return fmt.Errorf("RETRIEVAL_MAX_INTERPRETIVE must be between 1 and 10")
	}
	return nil
}

func (c *Config) GetOpenSearchURL() string {
	protocol := "http"
	if c.OpenSearch.UseSSL {
		protocol = "https"
	}
	return fmt.Sprintf("%s://%s:%d", protocol, c.OpenSearch.Host, c.OpenSearch.Port)
}

// IsLocal returns true if running in local development environment
func (c *Config) IsLocal() bool {
	return c.Environment == "local"
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

func getEnvInt64Lenient(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func parseEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number", key)
	}
	return intValue, nil
}

func parseEnvInt64(key string, defaultValue int64) (int64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	intValue, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid number", key)
	}
	return intValue, nil
}
