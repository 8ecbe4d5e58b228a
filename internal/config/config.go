package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Store     StoreConfig     `yaml:"store"`
	Redis     RedisConfig     `yaml:"redis"`
	Importer  ImporterConfig  `yaml:"importer"`
	Search    SearchConfig    `yaml:"search"`
	Mailer    MailerConfig    `yaml:"mailer"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Calendar  CalendarConfig  `yaml:"calendar"`
	Frontend  FrontendConfig  `yaml:"frontend"`
	Retention RetentionConfig `yaml:"retention"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StoreConfig holds the document store connection settings.
type StoreConfig struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
}

// RedisConfig holds the redis connection used for upload sessions, preview
// caching and the merge-candidates cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ImporterConfig is the fixed tuning block of the import worker. These are
// enumerated knobs, not dynamic overrides; core paths read them as-is.
type ImporterConfig struct {
	UploadDir          string `yaml:"upload_dir"`
	BatchSize          int    `yaml:"batch_size"`
	HeartbeatIntervalS int    `yaml:"heartbeat_interval_s"`
	OrphanTimeoutS     int    `yaml:"orphan_timeout_s"`
	LockTTLS           int    `yaml:"lock_ttl_s"`
	MaxAttempts        int    `yaml:"max_attempts"`
	// RetryBackoffS maps attempt number → backoff seconds. Attempts at or
	// beyond MaxAttempts are terminal.
	RetryBackoffS map[int]int `yaml:"retry_backoff_s"`
	LockRetryS    int         `yaml:"lock_retry_s"`
}

// HeartbeatInterval returns the heartbeat interval as a duration.
func (c ImporterConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalS) * time.Second
}

// OrphanTimeout returns the stale-heartbeat window as a duration.
func (c ImporterConfig) OrphanTimeout() time.Duration {
	return time.Duration(c.OrphanTimeoutS) * time.Second
}

// LockTTL returns the profile-lock lifetime as a duration.
func (c ImporterConfig) LockTTL() time.Duration {
	return time.Duration(c.LockTTLS) * time.Second
}

// LockRetry returns the delay before retrying after lock contention.
func (c ImporterConfig) LockRetry() time.Duration {
	return time.Duration(c.LockRetryS) * time.Second
}

// Backoff returns the retry delay for the given attempt number (1-based).
// Attempts past the configured schedule fall back to the largest entry;
// callers should have checked MaxAttempts first.
func (c ImporterConfig) Backoff(attempt int) time.Duration {
	if s, ok := c.RetryBackoffS[attempt]; ok {
		return time.Duration(s) * time.Second
	}
	max := 0
	for _, s := range c.RetryBackoffS {
		if s > max {
			max = s
		}
	}
	return time.Duration(max) * time.Second
}

// SearchConfig holds the weekly-quota and position-search settings.
type SearchConfig struct {
	WeeklyGoalPerFinder int    `yaml:"weekly_goal_per_finder"`
	WeeklyGoalTotal     int    `yaml:"weekly_goal_total"`
	ActorURL            string `yaml:"actor_url"`
	ActorToken          string `yaml:"actor_token"`
	TimeoutSeconds      int    `yaml:"timeout_seconds"`
}

// MailerConfig holds SES-like sender settings for the email queue drain.
type MailerConfig struct {
	AccessKey     string `yaml:"access_key"`
	SecretKey     string `yaml:"secret_key"`
	Region        string `yaml:"region"`
	DefaultSender string `yaml:"default_sender"`
}

// OpenAIConfig holds the LLM adapter settings.
type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// CalendarConfig holds OAuth credentials for the calendar attendee reader.
type CalendarConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	CalendarID   string `yaml:"calendar_id"`
}

// FrontendConfig holds the URL used to build links inside emails.
type FrontendConfig struct {
	BaseURL string `yaml:"base_url"`
}

// RetentionConfig holds audit retention windows.
type RetentionConfig struct {
	ConflictTTLDays int `yaml:"conflict_ttl_days"`
}

// Load reads configuration from a YAML file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// LoadFromEnv loads the YAML file (if present) and overlays environment
// variables. A .env file is honored when present.
func LoadFromEnv(path string) (*Config, error) {
	// Best effort; absence of .env is not an error
	godotenv.Load()

	var cfg Config
	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, err
			}
		}
	}

	if url := os.Getenv("STORE_URL"); url != "" {
		cfg.Store.URL = url
	}
	if db := os.Getenv("STORE_DATABASE"); db != "" {
		cfg.Store.Database = db
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}
	if key := os.Getenv("AWS_SES_ACCESS_KEY"); key != "" {
		cfg.Mailer.AccessKey = key
	}
	if key := os.Getenv("AWS_SES_SECRET_KEY"); key != "" {
		cfg.Mailer.SecretKey = key
	}
	if region := os.Getenv("AWS_SES_REGION"); region != "" {
		cfg.Mailer.Region = region
	}
	if sender := os.Getenv("DEFAULT_SENDER"); sender != "" {
		cfg.Mailer.DefaultSender = sender
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		cfg.OpenAI.APIKey = key
	}
	if tok := os.Getenv("ACTOR_TOKEN"); tok != "" {
		cfg.Search.ActorToken = tok
	}
	if url := os.Getenv("ACTOR_URL"); url != "" {
		cfg.Search.ActorURL = url
	}
	if url := os.Getenv("FRONTEND_URL"); url != "" {
		cfg.Frontend.BaseURL = url
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Store.URL == "" {
		c.Store.URL = "mongodb://localhost:27017"
	}
	if c.Store.Database == "" {
		c.Store.Database = "contact_core"
	}
	if c.Redis.Addr == "" {
		c.Redis.Addr = "localhost:6379"
	}
	if c.Importer.UploadDir == "" {
		c.Importer.UploadDir = "/tmp/contact-core-uploads"
	}
	if c.Importer.BatchSize == 0 {
		c.Importer.BatchSize = 500
	}
	if c.Importer.HeartbeatIntervalS == 0 {
		c.Importer.HeartbeatIntervalS = 30
	}
	if c.Importer.OrphanTimeoutS == 0 {
		c.Importer.OrphanTimeoutS = 300
	}
	if c.Importer.LockTTLS == 0 {
		c.Importer.LockTTLS = 300
	}
	if c.Importer.MaxAttempts == 0 {
		c.Importer.MaxAttempts = 3
	}
	if len(c.Importer.RetryBackoffS) == 0 {
		c.Importer.RetryBackoffS = map[int]int{1: 60, 2: 300}
	}
	if c.Importer.LockRetryS == 0 {
		c.Importer.LockRetryS = 60
	}
	if c.Search.WeeklyGoalPerFinder == 0 {
		c.Search.WeeklyGoalPerFinder = 50
	}
	if c.Search.WeeklyGoalTotal == 0 {
		c.Search.WeeklyGoalTotal = 150
	}
	if c.Search.TimeoutSeconds == 0 {
		c.Search.TimeoutSeconds = 300
	}
	if c.Mailer.Region == "" {
		c.Mailer.Region = "us-east-1"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o"
	}
	if c.OpenAI.TimeoutSeconds == 0 {
		c.OpenAI.TimeoutSeconds = 60
	}
	if c.Retention.ConflictTTLDays == 0 {
		c.Retention.ConflictTTLDays = 90
	}
}
