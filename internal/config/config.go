package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Sink names
const (
	SinkREST     = "rest"
	SinkPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Stock    StockConfig
	Sources  SourcesConfig
	Supabase SupabaseConfig
	Database DatabaseConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	Sink     string

	// Malformed numeric, boolean and duration values, reported by Validate
	parseErrs []error
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port       string
	Host       string
	CronSecret string
}

// StockConfig describes the tracked equity and the fetch window
type StockConfig struct {
	Symbol         string
	CompanyName    string
	DaysBack       int
	BackfillStart  string
	MarketTimezone string
	Verify         bool
}

// SourcesConfig holds the upstream data source chain and credentials
type SourcesConfig struct {
	Order              []string
	AlphaVantageAPIKey string
	TwelveDataAPIKey   string
	TiingoAPIToken     string
	ScrapeURL          string
	Timeout            time.Duration
}

// SupabaseConfig holds the REST datastore configuration
type SupabaseConfig struct {
	URL        string
	ServiceKey string
	Table      string
	BatchSize  int
	BatchPause time.Duration
	Timeout    time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host          string
	Port          string
	User          string
	Password      string
	DBName        string
	SSLMode       string
	MigrationsDir string
}

// KafkaConfig holds Kafka configuration. Empty Brokers disables Kafka.
type KafkaConfig struct {
	Brokers       []string
	Topic         string
	BackfillTopic string
	GroupID       string
}

// RedisConfig holds Redis configuration. Empty Addr disables the cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load reads configuration from environment variables, after loading an
// optional .env file from the working directory.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	env := &envReader{}
	cfg := &Config{
		Server: ServerConfig{
			Port:       getEnv("SERVER_PORT", "8080"),
			Host:       getEnv("SERVER_HOST", "0.0.0.0"),
			CronSecret: getEnv("CRON_SECRET", ""),
		},
		Stock: StockConfig{
			Symbol:         getEnv("STOCK_SYMBOL", "TIPSMUSIC"),
			CompanyName:    getEnv("COMPANY_NAME", "Tips Music Ltd"),
			DaysBack:       env.intValue("DAYS_BACK", 10),
			BackfillStart:  getEnv("BACKFILL_START_DATE", ""),
			MarketTimezone: getEnv("MARKET_TIMEZONE", "Asia/Kolkata"),
			Verify:         env.boolValue("VERIFY", true),
		},
		Sources: SourcesConfig{
			Order:              splitList(getEnv("SOURCES", "nse,yahoo,alphavantage,twelvedata")),
			AlphaVantageAPIKey: getEnv("ALPHA_VANTAGE_API_KEY", ""),
			TwelveDataAPIKey:   getEnv("TWELVE_DATA_API_KEY", ""),
			TiingoAPIToken:     getEnv("TIINGO_API_TOKEN", ""),
			ScrapeURL:          getEnv("SCRAPE_URL", ""),
			Timeout:            env.durationValue("SOURCE_TIMEOUT", 15*time.Second),
		},
		Supabase: SupabaseConfig{
			URL:        strings.TrimRight(getEnv("SUPABASE_URL", ""), "/"),
			ServiceKey: getEnv("SUPABASE_SERVICE_KEY", ""),
			Table:      getEnv("SUPABASE_TABLE", "stock_prices"),
			BatchSize:  env.intValue("BATCH_SIZE", 100),
			BatchPause: env.durationValue("BATCH_PAUSE", 500*time.Millisecond),
			Timeout:    env.durationValue("SUPABASE_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:          getEnv("DB_HOST", "localhost"),
			Port:          getEnv("DB_PORT", "5432"),
			User:          getEnv("DB_USER", "postgres"),
			Password:      getEnv("DB_PASSWORD", "postgres"),
			DBName:        getEnv("DB_NAME", "postgres"),
			SSLMode:       getEnv("DB_SSLMODE", "disable"),
			MigrationsDir: getEnv("MIGRATIONS_DIR", ""),
		},
		Kafka: KafkaConfig{
			Brokers:       splitList(getEnv("KAFKA_BROKERS", "")),
			Topic:         getEnv("KAFKA_TOPIC", "stock-prices"),
			BackfillTopic: getEnv("KAFKA_BACKFILL_TOPIC", "stock-price-backfill"),
			GroupID:       getEnv("KAFKA_GROUP_ID", "stock-price-updater"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       env.intValue("REDIS_DB", 0),
		},
		Sink: strings.ToLower(getEnv("SINK", SinkREST)),
	}
	cfg.parseErrs = env.errs
	return cfg
}

// Validate checks the settings every run depends on
func (c *Config) Validate() error {
	errs := append([]error(nil), c.parseErrs...)

	switch c.Sink {
	case SinkREST:
		if c.Supabase.URL == "" {
			errs = append(errs, errors.New("SUPABASE_URL not set"))
		}
		if c.Supabase.ServiceKey == "" {
			errs = append(errs, errors.New("SUPABASE_SERVICE_KEY not set"))
		}
	case SinkPostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown SINK %q", c.Sink))
	}

	if c.Stock.Symbol == "" {
		errs = append(errs, errors.New("STOCK_SYMBOL not set"))
	}
	if c.Stock.DaysBack <= 0 {
		errs = append(errs, fmt.Errorf("DAYS_BACK must be positive, got %d", c.Stock.DaysBack))
	}
	if c.Stock.BackfillStart != "" {
		if _, err := time.Parse("2006-01-02", c.Stock.BackfillStart); err != nil {
			errs = append(errs, fmt.Errorf("invalid BACKFILL_START_DATE %q: %w", c.Stock.BackfillStart, err))
		}
	}
	if _, err := time.LoadLocation(c.Stock.MarketTimezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid MARKET_TIMEZONE %q: %w", c.Stock.MarketTimezone, err))
	}
	if len(c.Sources.Order) == 0 {
		errs = append(errs, errors.New("SOURCES is empty"))
	}

	return errors.Join(errs...)
}

// Location returns the market timezone, falling back to UTC
func (s *StockConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.MarketTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ConnectionString returns the PostgreSQL connection string
func (d *DatabaseConfig) ConnectionString() string {
	return "postgres://" + d.User + ":" + d.Password + "@" + d.Host + ":" + d.Port + "/" + d.DBName + "?sslmode=" + d.SSLMode
}

// Address returns host:port for the HTTP server
func (s *ServerConfig) Address() string {
	return s.Host + ":" + s.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// envReader parses typed values, falling back to the default and recording
// the error when a value is malformed
type envReader struct {
	errs []error
}

func (e *envReader) intValue(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}
	return n
}

func (e *envReader) boolValue(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}
	return b
}

func (e *envReader) durationValue(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		e.fail(key, value, err)
		return defaultValue
	}
	return d
}

func (e *envReader) fail(key, value string, err error) {
	log.Printf("Invalid %s=%q, using default", key, value)
	e.errs = append(e.errs, fmt.Errorf("invalid %s %q: %w", key, value, err))
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}
