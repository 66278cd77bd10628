// Package config loads and validates harvester configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. HARVESTER_DB_DSN.
const EnvPrefix = "HARVESTER"

var tableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config captures all harvester configuration knobs loaded via Viper.
type Config struct {
	Feed          FeedConfig          `mapstructure:"feed"`
	HTTP          HTTPConfig          `mapstructure:"http"`
	DB            DBConfig            `mapstructure:"db"`
	Organizations OrganizationsConfig `mapstructure:"organizations"`
	LinkedIn      LinkedInConfig      `mapstructure:"linkedin"`
	Headless      HeadlessConfig      `mapstructure:"headless"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Metrics       MetricsConfig       `mapstructure:"metrics"`
	Schedule      ScheduleConfig      `mapstructure:"schedule"`
	Enrichment    EnrichmentConfig    `mapstructure:"enrichment"`
}

// FeedConfig describes the listing and detail endpoints and how to page them.
type FeedConfig struct {
	ListingURL    string        `mapstructure:"listing_url"`
	DetailURL     string        `mapstructure:"detail_url"`
	TrackingToken string        `mapstructure:"tracking_token"`
	PageSize      int           `mapstructure:"page_size"`
	MaxOffset     int           `mapstructure:"max_offset"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

// HTTPConfig configures the outbound HTTP client.
type HTTPConfig struct {
	Timeout           time.Duration `mapstructure:"timeout"`
	UserAgent         string        `mapstructure:"user_agent"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// DBConfig controls access to the relational database. An empty DSN selects
// the in-memory store.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	EnsureSchema    bool          `mapstructure:"ensure_schema"`
}

// OrganizationsConfig locates the organization record directory.
type OrganizationsConfig struct {
	Dir string `mapstructure:"dir"`
}

// LinkedInConfig holds the pages and credentials used to resolve locators.
type LinkedInConfig struct {
	LoginURL   string `mapstructure:"login_url"`
	CompanyURL string `mapstructure:"company_url"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
}

// HeadlessConfig configures the browser used for locator resolution.
type HeadlessConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout"`
	LoginSettle       time.Duration `mapstructure:"login_settle"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// MetricsConfig controls the exposition server. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// ScheduleConfig holds the cron spec of the schedule command.
type ScheduleConfig struct {
	Spec string `mapstructure:"spec"`
}

// EnrichmentConfig tunes the enrichment sweep.
type EnrichmentConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

// plainEnv lists keys also read from unprefixed variables.
var plainEnv = map[string]string{
	"linkedin.username": "LINKEDIN_USERNAME",
	"linkedin.password": "LINKEDIN_PASSWORD",
}

// Load builds a Config from an optional .env file, disk and the environment.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range plainEnv {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("feed.listing_url", "https://www.linkedin.com/jobs-guest/jobs/api/seeMoreJobPostings/search")
	v.SetDefault("feed.detail_url", "https://www.linkedin.com/jobs/view")
	v.SetDefault("feed.tracking_token", "public_jobs_jobs-search-bar_search-submit")
	v.SetDefault("feed.page_size", 25)
	v.SetDefault("feed.max_offset", 1000)
	v.SetDefault("feed.retry_delay", 2*time.Second)
	v.SetDefault("http.timeout", 10*time.Second)
	v.SetDefault("http.user_agent", "")
	v.SetDefault("http.requests_per_second", 0)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "jobs")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime", time.Hour)
	v.SetDefault("db.ensure_schema", true)
	v.SetDefault("organizations.dir", "data/companies")
	v.SetDefault("linkedin.login_url", "https://www.linkedin.com/login")
	v.SetDefault("linkedin.company_url", "https://www.linkedin.com/company")
	v.SetDefault("linkedin.username", "")
	v.SetDefault("linkedin.password", "")
	v.SetDefault("headless.enabled", true)
	v.SetDefault("headless.navigation_timeout", 30*time.Second)
	v.SetDefault("headless.login_settle", 5*time.Second)
	v.SetDefault("logging.development", true)
	v.SetDefault("metrics.addr", "")
	v.SetDefault("schedule.spec", "@every 6h")
	v.SetDefault("enrichment.batch_size", 100)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Feed.ListingURL == "" || c.Feed.DetailURL == "" {
		return fmt.Errorf("feed.listing_url and feed.detail_url are required")
	}
	if c.Feed.PageSize <= 0 {
		return fmt.Errorf("feed.page_size must be > 0")
	}
	if c.Feed.MaxOffset <= 0 {
		return fmt.Errorf("feed.max_offset must be > 0")
	}
	if c.Feed.RetryDelay < 0 {
		return fmt.Errorf("feed.retry_delay must be >= 0")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if c.HTTP.RequestsPerSecond < 0 {
		return fmt.Errorf("http.requests_per_second must be >= 0")
	}
	if !tableName.MatchString(c.DB.Table) {
		return fmt.Errorf("db.table %q is not a valid identifier", c.DB.Table)
	}
	if c.Enrichment.BatchSize <= 0 {
		return fmt.Errorf("enrichment.batch_size must be > 0")
	}
	if c.Organizations.Dir == "" {
		return fmt.Errorf("organizations.dir is required")
	}
	if c.Headless.Enabled && (c.LinkedIn.Username == "" || c.LinkedIn.Password == "") {
		return fmt.Errorf("linkedin.username and linkedin.password must be set when headless is enabled")
	}
	return nil
}

// Persistent reports whether postings go to Postgres rather than memory.
func (c Config) Persistent() bool {
	return c.DB.DSN != ""
}
