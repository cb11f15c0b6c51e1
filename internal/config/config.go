package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`
	Cron   CronConfig   `mapstructure:"cron"`

	Queue     QueueConfig     `mapstructure:"queue"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	SEC       SECConfig       `mapstructure:"sec"`
	EODHD     EODHDConfig     `mapstructure:"eodhd"`
	AI        AIConfig        `mapstructure:"ai"`
	Clusters  ClustersConfig  `mapstructure:"clusters"`
	Outcomes  OutcomesConfig  `mapstructure:"outcomes"`
	Backfill  BackfillConfig  `mapstructure:"backfill"`
	TradePlan TradePlanConfig `mapstructure:"trade_plan"`
	Versions  VersionsConfig  `mapstructure:"versions"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
	// AdminToken gates the operator endpoints; empty disables them.
	AdminToken string `mapstructure:"admin_token"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled          bool   `mapstructure:"enabled"`
	Form4Poll        string `mapstructure:"form4_poll"`
	StaleReclaim     string `mapstructure:"stale_reclaim"`
	BenchmarkRefresh string `mapstructure:"benchmark_refresh"`
}

type QueueConfig struct {
	DefaultMaxAttempts int           `mapstructure:"default_max_attempts"`
	RetryBackoff       time.Duration `mapstructure:"retry_backoff"`
	DeferBackoff       time.Duration `mapstructure:"defer_backoff"`
	StaleAfter         time.Duration `mapstructure:"stale_after"`
}

type WorkerConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Concurrency  int           `mapstructure:"concurrency"`
	// JobTypes restricts which job types this process claims ("api",
	// "compute", or "all"). Running dedicated API-bound workers keeps slow
	// external fetches from starving cheap compute jobs.
	JobTypes string `mapstructure:"job_types"`
}

type SECConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	DataBaseURL    string        `mapstructure:"data_base_url"`
	UserAgent      string        `mapstructure:"user_agent"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RatePerSecond  int           `mapstructure:"rate_per_second"`
	PollerEnabled  bool          `mapstructure:"poller_enabled"`
	TrackedOnly    bool          `mapstructure:"tracked_only"`
	CurrentFeedMax int           `mapstructure:"current_feed_max"`
}

type EODHDConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	APIKey          string        `mapstructure:"api_key"`
	Timeout         time.Duration `mapstructure:"timeout"`
	RatePerSecond   int           `mapstructure:"rate_per_second"`
	BenchmarkSymbol string        `mapstructure:"benchmark_symbol"`
	PriceYears      int           `mapstructure:"price_years"`
}

type AIConfig struct {
	APIKey          string  `mapstructure:"api_key"`
	Model           string  `mapstructure:"model"`
	Temperature     float64 `mapstructure:"temperature"`
	MaxOutputTokens int     `mapstructure:"max_output_tokens"`
	MaxAttempts     int     `mapstructure:"max_attempts"`
}

type ClustersConfig struct {
	WindowDays     int `mapstructure:"window_days"`
	MinFilings     int `mapstructure:"min_filings"`
	MinDollarsUSD  int `mapstructure:"min_dollars_usd"`
}

type OutcomesConfig struct {
	Horizons []int `mapstructure:"horizons"`
}

type BackfillConfig struct {
	StartYear int `mapstructure:"start_year"`
	BatchSize int `mapstructure:"batch_size"`
}

type TradePlanConfig struct {
	MinBuyRating     float64 `mapstructure:"min_buy_rating"`
	MinBuyConfidence float64 `mapstructure:"min_buy_confidence"`
	GapPctThreshold  float64 `mapstructure:"gap_pct_threshold"`
}

// VersionsConfig namespaces derived data; bumping a version makes the
// corresponding dedupe keys differ so recompute jobs enqueue naturally.
type VersionsConfig struct {
	Parse    int `mapstructure:"parse"`
	Cluster  int `mapstructure:"cluster"`
	Outcomes int `mapstructure:"outcomes"`
	Stats    int `mapstructure:"stats"`
	Trend    int `mapstructure:"trend"`
	Prompt   int `mapstructure:"prompt"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("IL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")

	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.form4_poll", "@every 2m")
	v.SetDefault("cron.stale_reclaim", "@every 1m")
	v.SetDefault("cron.benchmark_refresh", "@every 24h")

	v.SetDefault("queue.default_max_attempts", 3)
	v.SetDefault("queue.retry_backoff", "60s")
	v.SetDefault("queue.defer_backoff", "30s")
	v.SetDefault("queue.stale_after", "15m")

	v.SetDefault("worker.poll_interval", "2s")
	v.SetDefault("worker.concurrency", 4)
	v.SetDefault("worker.job_types", "all")

	v.SetDefault("sec.base_url", "https://www.sec.gov")
	v.SetDefault("sec.data_base_url", "https://data.sec.gov")
	v.SetDefault("sec.user_agent", "insiderlens/1.0 (ops@insiderlens.dev)")
	v.SetDefault("sec.timeout", "30s")
	v.SetDefault("sec.rate_per_second", 5)
	v.SetDefault("sec.poller_enabled", true)
	v.SetDefault("sec.tracked_only", false)
	v.SetDefault("sec.current_feed_max", 100)

	v.SetDefault("eodhd.base_url", "https://eodhd.com/api")
	v.SetDefault("eodhd.timeout", "30s")
	v.SetDefault("eodhd.rate_per_second", 10)
	v.SetDefault("eodhd.benchmark_symbol", "SPY.US")
	v.SetDefault("eodhd.price_years", 6)

	v.SetDefault("ai.model", "gemini-2.0-flash")
	v.SetDefault("ai.temperature", 0.2)
	v.SetDefault("ai.max_output_tokens", 4096)
	v.SetDefault("ai.max_attempts", 10)

	v.SetDefault("clusters.window_days", 14)
	v.SetDefault("clusters.min_filings", 2)
	v.SetDefault("clusters.min_dollars_usd", 0)

	v.SetDefault("outcomes.horizons", []int{60, 180})

	v.SetDefault("backfill.start_year", 2006)
	v.SetDefault("backfill.batch_size", 50)

	v.SetDefault("trade_plan.min_buy_rating", 8.0)
	v.SetDefault("trade_plan.min_buy_confidence", 0.60)
	v.SetDefault("trade_plan.gap_pct_threshold", 0.08)

	v.SetDefault("versions.parse", 1)
	v.SetDefault("versions.cluster", 1)
	v.SetDefault("versions.outcomes", 2)
	v.SetDefault("versions.stats", 2)
	v.SetDefault("versions.trend", 1)
	v.SetDefault("versions.prompt", 3)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
