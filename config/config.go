package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// Config holds process-level configuration, fixed at startup from the
// environment. Mutable, persisted user settings live in Manager/ConfigValue.
type Config struct {
	// Server settings
	Port int
	Host string
	Env  string // "development" or "production"

	// Data directory layout
	DataDir      string
	DatabasePath string
	FramesDir    string
	VideosDir    string
	LogsDir      string
	ConfigPath   string

	// Debug settings
	DBLogQueries bool
	DebugModules string
}

var (
	cfg  *Config
	once sync.Once
)

// Get returns the global process configuration (singleton).
func Get() *Config {
	once.Do(func() {
		cfg = load()
	})
	return cfg
}

// ResetForTest clears the singleton so the next Get() re-reads the
// environment. Only meant to be called from tests that set
// SCREEN_ANALYZER_DATA_DIR and friends before exercising a fresh Config.
func ResetForTest() {
	once = sync.Once{}
	cfg = nil
}

func load() *Config {
	dataDir := getEnv("SCREEN_ANALYZER_DATA_DIR", "./data")

	return &Config{
		Port: getEnvInt("PORT", 7890),
		Host: getEnv("HOST", "127.0.0.1"),
		Env:  getEnv("ENV", "development"),

		DataDir:      dataDir,
		DatabasePath: filepath.Join(dataDir, "data.db"),
		FramesDir:    filepath.Join(dataDir, "frames"),
		VideosDir:    filepath.Join(dataDir, "videos"),
		LogsDir:      filepath.Join(dataDir, "logs"),
		ConfigPath:   filepath.Join(dataDir, "config.json"),

		DBLogQueries: getEnv("DB_LOG_QUERIES", "") == "1",
		DebugModules: getEnv("DEBUG", ""),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env != "production"
}

// GetDataRoot returns the data directory root.
func (c *Config) GetDataRoot() string {
	return c.DataDir
}

// EnsureDirs creates the frames/videos/logs roots if absent.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.DataDir, c.FramesDir, c.VideosDir, c.LogsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
