package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Agent    AgentConfig
	Search   SearchConfig
	Slack    SlackConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// DatabaseConfig selects and configures the storage driver. Driver is
// "sqlite" (default, file-backed) or "postgres".
type DatabaseConfig struct {
	Driver     string
	SQLitePath string
	Host       string
	Port       int
	User       string
	Password   string //nolint:gosec // G117: DB connection config
	DBName     string
	SSLMode    string
	MaxConns   int
}

// RedisConfig holds Redis connection settings. An empty Addr selects the
// in-process event broker instead.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// StorageConfig holds the on-disk layout. The subdirectories default to
// children of DataDir and can each be overridden.
type StorageConfig struct {
	DataDir        string
	ProjectsDir    string
	ScreenshotsDir string
	PDFsDir        string
	LogsDir        string
}

// AgentConfig holds run execution settings.
type AgentConfig struct {
	OpenAIKey     string //nolint:gosec // G117: API credential config
	OpenAIBaseURL string
	CatalogPath   string
	RunTimeout    time.Duration // 0 means no deadline
	BrowserPool   int
	Headless      bool
}

// SearchConfig holds web search settings.
type SearchConfig struct {
	BingKey      string //nolint:gosec // G117: API credential config
	BingEndpoint string
}

// SlackConfig holds the optional run-completion notification settings.
type SlackConfig struct {
	BotToken string
	Channel  string
}

// Load reads configuration from environment variables. Defaults run the
// server self-contained: sqlite storage, in-process events, no notifier.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("DAKSHA_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("DAKSHA_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("DAKSHA_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("DAKSHA_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("DAKSHA_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	runTimeout, err := getEnvDuration("DAKSHA_RUN_TIMEOUT", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	browserPool, err := getEnvInt("DAKSHA_BROWSER_POOL_SIZE", 2)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	headless, err := getEnvBool("DAKSHA_BROWSER_HEADLESS", true)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("DAKSHA_CORS_ORIGINS", []string{"http://localhost:3000"})

	dataDir := getEnv("DAKSHA_DATA_DIR", "data")

	cfg := &Config{
		Server: ServerConfig{
			Addr:         getEnv("DAKSHA_SERVER_ADDR", ":1337"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
		},
		Database: DatabaseConfig{
			Driver:     getEnv("DAKSHA_DB_DRIVER", "sqlite"),
			SQLitePath: getEnv("DAKSHA_SQLITE_PATH", filepath.Join(dataDir, "daksha.db")),
			Host:       getEnv("DAKSHA_DB_HOST", "localhost"),
			Port:       dbPort,
			User:       getEnv("DAKSHA_DB_USER", "daksha"),
			Password:   getEnv("DAKSHA_DB_PASSWORD", ""),
			DBName:     getEnv("DAKSHA_DB_NAME", "daksha_dev"),
			SSLMode:    getEnv("DAKSHA_DB_SSLMODE", "disable"),
			MaxConns:   dbMaxConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("DAKSHA_REDIS_ADDR", ""),
			Password: getEnv("DAKSHA_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Storage: StorageConfig{
			DataDir:        dataDir,
			ProjectsDir:    getEnv("DAKSHA_PROJECTS_DIR", filepath.Join(dataDir, "projects")),
			ScreenshotsDir: getEnv("DAKSHA_SCREENSHOTS_DIR", filepath.Join(dataDir, "screenshots")),
			PDFsDir:        getEnv("DAKSHA_PDFS_DIR", filepath.Join(dataDir, "pdfs")),
			LogsDir:        getEnv("DAKSHA_LOGS_DIR", filepath.Join(dataDir, "logs")),
		},
		Agent: AgentConfig{
			OpenAIKey:     getEnv("DAKSHA_OPENAI_API_KEY", ""),
			OpenAIBaseURL: getEnv("DAKSHA_OPENAI_BASE_URL", ""),
			CatalogPath:   getEnv("DAKSHA_MODEL_CATALOG", ""),
			RunTimeout:    runTimeout,
			BrowserPool:   browserPool,
			Headless:      headless,
		},
		Search: SearchConfig{
			BingKey:      getEnv("DAKSHA_BING_API_KEY", ""),
			BingEndpoint: getEnv("DAKSHA_BING_ENDPOINT", "https://api.bing.microsoft.com/v7.0/search"),
		},
		Slack: SlackConfig{
			BotToken: getEnv("DAKSHA_SLACK_BOT_TOKEN", ""),
			Channel:  getEnv("DAKSHA_SLACK_CHANNEL", ""),
		},
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.SQLitePath == "" {
			return errors.New("DAKSHA_SQLITE_PATH is required with the sqlite driver")
		}
	case "postgres":
		if c.Database.Port < 1 || c.Database.Port > 65535 {
			return fmt.Errorf("DAKSHA_DB_PORT must be 1-65535, got %d", c.Database.Port)
		}
		if c.Database.MaxConns < 1 {
			return fmt.Errorf("DAKSHA_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
		}
	default:
		return fmt.Errorf("DAKSHA_DB_DRIVER must be sqlite or postgres, got %q", c.Database.Driver)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("DAKSHA_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("DAKSHA_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Agent.RunTimeout < 0 {
		return fmt.Errorf("DAKSHA_RUN_TIMEOUT must not be negative, got %s", c.Agent.RunTimeout)
	}
	if c.Agent.BrowserPool < 1 {
		return fmt.Errorf("DAKSHA_BROWSER_POOL_SIZE must be >= 1, got %d", c.Agent.BrowserPool)
	}
	if c.Slack.BotToken != "" && c.Slack.Channel == "" {
		return errors.New("DAKSHA_SLACK_CHANNEL is required when DAKSHA_SLACK_BOT_TOKEN is set")
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// LogFile returns the path of the server log file inside LogsDir.
func (c *StorageConfig) LogFile() string {
	return filepath.Join(c.LogsDir, "daksha.log")
}

// EnsureDirs creates the on-disk layout.
func (c *StorageConfig) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.ProjectsDir, c.ScreenshotsDir, c.PDFsDir, c.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config.EnsureDirs: %w", err)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parsing %s=%q as bool: %w", key, v, err)
	}
	return b, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
