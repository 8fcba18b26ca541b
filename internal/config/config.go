package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultSitePassword   = "CHANGE_ME"
	DefaultMasterPassword = "CHANGE_ME_TOO"
	DefaultTicketSecret   = "CHANGE_ME"
)

var ErrInsecureSecrets = errors.New("default secrets must be changed in production")

type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
}

type ServerConfig struct {
	Host           string
	Port           int
	Secure         bool   // Use HTTPS-only cookies
	Environment    string // "development", "production", "test"
	Debug          bool
	TemplatesDir   string
	MaxUploadBytes int64
	// PublicURL is the origin used in absolute links. Empty means derive
	// it from each request.
	PublicURL      string
}

// AuthConfig holds the three process-wide secrets. It is read once at
// startup and passed by value into the services that need it.
type AuthConfig struct {
	SitePassword   string
	MasterPassword string
	TicketSecret   string
	TicketTTL      time.Duration
}

type DatabaseConfig struct {
	URL      string
	// MaxConns caps the Postgres pool. SQLite always uses one connection.
	MaxConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	CountTTL time.Duration
}

type StorageConfig struct {
	Type      string // "filesystem" or "s3"
	AssetRoot string
	S3        S3Config
}

type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	PublicURL       string
	Timeout         time.Duration
}

// Driver reports which backend the URL selects: "postgres" or "sqlite".
func (d DatabaseConfig) Driver() string {
	lower := strings.ToLower(d.URL)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return "postgres"
	}
	return "sqlite"
}

// SQLitePath extracts the file path from a sqlite URL. Both "sqlite:///./x.db"
// and "sqlite://x.db" resolve to a relative path.
func (d DatabaseConfig) SQLitePath() string {
	p := d.URL
	for _, prefix := range []string{"sqlite:///", "sqlite://", "sqlite:"} {
		if strings.HasPrefix(p, prefix) {
			p = strings.TrimPrefix(p, prefix)
			break
		}
	}
	if i := strings.IndexByte(p, '?'); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "memeboard.db"
	}
	return p
}

func (r RedisConfig) Enabled() bool {
	return strings.TrimSpace(r.Host) != ""
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func Load() (*Config, error) {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:           getEnv("SERVER_HOST", "0.0.0.0"),
			Port:           getEnvInt("SERVER_PORT", 8080),
			Secure:         getEnvBool("SERVER_SECURE", false),
			Environment:    getEnv("APP_ENV", "development"),
			Debug:          getEnvBool("DEBUG", false),
			TemplatesDir:   getEnvNonEmpty("TEMPLATES_DIR", "web/templates"),
			MaxUploadBytes: int64(getEnvInt("MAX_UPLOAD_BYTES", 10<<20)),
		},
		Auth: AuthConfig{
			SitePassword:   getEnvNonEmpty("SITE_PASSWORD", DefaultSitePassword),
			MasterPassword: getEnvNonEmpty("MASTER_PASSWORD", DefaultMasterPassword),
			TicketSecret:   getEnvNonEmpty("TICKET_SECRET", getEnvNonEmpty("SECRET_KEY", DefaultTicketSecret)),
			TicketTTL:      getEnvDuration("TICKET_TTL", 30*24*time.Hour),
		},
		Database: DatabaseConfig{
			URL: getEnvNonEmpty("DATABASE_URL", "sqlite:///./memeboard.db"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			CountTTL: getEnvDuration("REDIS_COUNT_TTL", 5*time.Minute),
		},
		Storage: StorageConfig{
			Type:      strings.ToLower(getEnvNonEmpty("STORAGE_TYPE", "filesystem")),
			AssetRoot: getEnvNonEmpty("ASSET_ROOT", "web/static/uploads"),
			S3: S3Config{
				Endpoint:        getEnv("S3_ENDPOINT", ""),
				Region:          getEnvNonEmpty("S3_REGION", "us-east-1"),
				Bucket:          getEnv("S3_BUCKET", ""),
				AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
				SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
				PublicURL:       getEnv("S3_PUBLIC_URL", ""),
				Timeout:         getEnvDuration("S3_TIMEOUT", 30*time.Second),
			},
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot start.
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "filesystem":
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required when STORAGE_TYPE=s3")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_TYPE %q", c.Storage.Type)
	}

	if c.Server.Environment == "production" {
		if c.Auth.SitePassword == DefaultSitePassword ||
			c.Auth.MasterPassword == DefaultMasterPassword ||
			c.Auth.TicketSecret == DefaultTicketSecret {
			return ErrInsecureSecrets
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvNonEmpty(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		if strings.TrimSpace(value) != "" {
			return value
		}
		return defaultValue
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
