package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the session gateway.
type Config struct {
	Environment string

	Server  ServerConfig
	Logging LoggingConfig
	Backend BackendConfig
	Session SessionConfig
	Gate    GateConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
}

type ServerConfig struct {
	Port         int
	TLSPort      int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration

	EnableTLS   bool
	AutoCert    bool
	Domain      string
	CertFile    string
	KeyFile     string
	AutoCertDir string
	Email       string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// BackendConfig points at the remote finance backend (§6 wire contract owner).
type BackendConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	DLTTemplateID  string
}

type SessionConfig struct {
	StorageKey     string
	RefreshTimeout time.Duration
}

// GateConfig drives the two-region routing policy.
type GateConfig struct {
	AuthRegion string
	SignupPath string
	HomePath   string
}

type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	PoolSize   int
	KeyBuckets int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

var (
	globalConfig *Config
	loadOnce     sync.Once
)

// LoadConfig reads .env (if present) and environment variables into a Config.
func LoadConfig() *Config {
	loadOnce.Do(func() {
		_ = godotenv.Load()

		globalConfig = &Config{
			Environment: getEnv("ENVIRONMENT", "development"),
			Server: ServerConfig{
				Port:         getEnvInt("SERVER_PORT", 8080),
				TLSPort:      getEnvInt("SERVER_TLS_PORT", 8443),
				ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
				WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
				IdleTimeout:  getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
				EnableTLS:    getEnvBool("ENABLE_TLS", false),
				AutoCert:     getEnvBool("AUTO_CERT", false),
				Domain:       getEnv("SERVER_DOMAIN", "localhost"),
				CertFile:     getEnv("TLS_CERT_FILE", ""),
				KeyFile:      getEnv("TLS_KEY_FILE", ""),
				AutoCertDir:  getEnv("AUTO_CERT_DIR", "./certs"),
				Email:        getEnv("AUTO_CERT_EMAIL", ""),
			},
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "console"),
			},
			Backend: BackendConfig{
				BaseURL:        getEnv("BACKEND_BASE_URL", "http://localhost:5000/api"),
				RequestTimeout: getEnvDuration("BACKEND_REQUEST_TIMEOUT", 15*time.Second),
				DLTTemplateID:  getEnv("DLT_TEMPLATE_ID", "1407160787155250027"),
			},
			Session: SessionConfig{
				StorageKey:     getEnv("SESSION_STORAGE_KEY", "lisst_in_user"),
				RefreshTimeout: getEnvDuration("SESSION_REFRESH_TIMEOUT", 10*time.Second),
			},
			Gate: GateConfig{
				AuthRegion: getEnv("GATE_AUTH_REGION", "auth"),
				SignupPath: getEnv("GATE_SIGNUP_PATH", "/auth/signup"),
				HomePath:   getEnv("GATE_HOME_PATH", "/app/dashboard"),
			},
			Redis: RedisConfig{
				URL:        getEnv("REDIS_URL", ""),
				Password:   getEnv("REDIS_PASSWORD", ""),
				DB:         getEnvInt("REDIS_DB", 0),
				PoolSize:   getEnvInt("REDIS_POOL_SIZE", 20),
				KeyBuckets: getEnvInt("REDIS_KEY_BUCKETS", 16),
			},
			Kafka: KafkaConfig{
				Brokers: getEnvList("KAFKA_BROKERS", nil),
				Topic:   getEnv("KAFKA_AUTH_EVENTS_TOPIC", "auth-events"),
			},
		}
	})

	return globalConfig
}

// Get returns the loaded configuration, loading it on first use.
func Get() *Config {
	if globalConfig == nil {
		return LoadConfig()
	}
	return globalConfig
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return !c.IsProduction()
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// HealthURL is the backend liveness endpoint, which lives on the base URL
// without the /api suffix.
func (c *BackendConfig) HealthURL() string {
	return strings.TrimSuffix(c.BaseURL, "/api") + "/health"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return fallback
}
