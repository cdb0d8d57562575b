package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App       AppConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Logger    LoggerConfig
	Auth      AuthConfig
	Dashboard DashboardConfig
	Search    SearchConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level  string
	Format string
}

// AuthConfig verifies viewer tokens issued by the hosting platform.
// An empty secret disables verification.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// DashboardConfig controls the ticket table and dashboard shaping.
type DashboardConfig struct {
	TicketTable         string
	KnownCategories     []string
	TicketLimit         int
	MaxTicketLimit      int
	CacheTTLSeconds     int
	QueryTimeoutSeconds int
	Timezone            string
}

// SearchConfig points at the managed semantic search service.
type SearchConfig struct {
	Endpoint        string
	Token           string
	Columns         []string
	ScoreField      string
	MaxResults      int
	TimeoutSeconds  int
	RetryAttempts   int
	CacheSize       int
	CacheTTLSeconds int
	KeywordFallback bool
}

// Load reads configuration from environment variables, applying defaults where possible.
// Any env files given are loaded first; missing files are ignored.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", false)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "support-ticket-dashboard"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("AUTH_JWT_SECRET"),
			Issuer:    os.Getenv("AUTH_JWT_ISSUER"),
		},
		Dashboard: DashboardConfig{
			TicketTable:         getEnv("DASHBOARD_TICKET_TABLE", "support_tickets"),
			KnownCategories:     getEnvAsList("DASHBOARD_CATEGORIES", []string{"Billing", "Technical", "Account", "Shipping", "General"}),
			TicketLimit:         getEnvAsInt("DASHBOARD_TICKET_LIMIT", 100),
			MaxTicketLimit:      getEnvAsInt("DASHBOARD_MAX_TICKET_LIMIT", 500),
			CacheTTLSeconds:     getEnvAsInt("DASHBOARD_CACHE_TTL_SECONDS", 300),
			QueryTimeoutSeconds: getEnvAsInt("DASHBOARD_QUERY_TIMEOUT_SECONDS", 30),
			Timezone:            getEnv("DASHBOARD_TIMEZONE", "UTC"),
		},
		Search: SearchConfig{
			Endpoint:        os.Getenv("SEARCH_ENDPOINT"),
			Token:           os.Getenv("SEARCH_TOKEN"),
			Columns:         getEnvAsList("SEARCH_COLUMNS", []string{"ticket_id", "customer_id", "category", "subcategory", "priority", "status", "created_at", "description"}),
			ScoreField:      getEnv("SEARCH_SCORE_FIELD", "cosine_similarity"),
			MaxResults:      getEnvAsInt("SEARCH_MAX_RESULTS", 50),
			TimeoutSeconds:  getEnvAsInt("SEARCH_TIMEOUT_SECONDS", 10),
			RetryAttempts:   getEnvAsInt("SEARCH_RETRY_ATTEMPTS", 2),
			CacheSize:       getEnvAsInt("SEARCH_CACHE_SIZE", 256),
			CacheTTLSeconds: getEnvAsInt("SEARCH_CACHE_TTL_SECONDS", 60),
			KeywordFallback: getEnvAsBool("SEARCH_KEYWORD_FALLBACK", false),
		},
	}

	if strings.TrimSpace(cfg.Dashboard.TicketTable) == "" {
		return nil, fmt.Errorf("DASHBOARD_TICKET_TABLE must not be empty")
	}
	if _, err := cfg.Dashboard.Location(); err != nil {
		return nil, fmt.Errorf("invalid DASHBOARD_TIMEZONE: %w", err)
	}
	if cfg.Search.MaxResults <= 0 {
		return nil, fmt.Errorf("SEARCH_MAX_RESULTS must be positive")
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	return seconds(a.RequestTimeoutSeconds)
}

// Location resolves the timezone used for day buckets.
func (d DashboardConfig) Location() (*time.Location, error) {
	return time.LoadLocation(d.Timezone)
}

// CacheTTL returns how long dashboard views stay cached; zero disables caching.
func (d DashboardConfig) CacheTTL() time.Duration {
	return seconds(d.CacheTTLSeconds)
}

// QueryTimeout bounds a shared dashboard computation; zero means no bound.
func (d DashboardConfig) QueryTimeout() time.Duration {
	return seconds(d.QueryTimeoutSeconds)
}

// Timeout returns the per-request search timeout; zero leaves the client default.
func (s SearchConfig) Timeout() time.Duration {
	return seconds(s.TimeoutSeconds)
}

// CacheTTL returns how long search results stay in the in-process cache.
func (s SearchConfig) CacheTTL() time.Duration {
	return seconds(s.CacheTTLSeconds)
}

func seconds(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var out []string
	seen := make(map[string]struct{})
	for _, part := range strings.Split(val, ",") {
		part = strings.TrimSpace(part)
		if _, dup := seen[part]; part == "" || dup {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
