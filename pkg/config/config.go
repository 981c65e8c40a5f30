package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	AppName string
	Debug   bool

	// Logging
	LogLevel string
	LogJSON  bool

	// Storage layout: one JSON document per server under ConfigDir,
	// one data directory per (game type, server id) under DataDir.
	ConfigDir string
	DataDir   string

	// Game catalog
	CustomGamesPath string

	// Container runtime behaviour
	StopTimeoutSeconds  int // grace period passed to the runtime on stop
	StopCommandWaitSecs int // wait after sending a game's stop command via stdin

	// Log streaming
	StreamTailLines      int
	StreamMaxReconnects  int
	StreamReconnectDelay int // seconds

	// Observability
	MetricsAddr          string
	StatsIntervalSeconds int
}

var AppConfig *Config

// Load loads configuration from environment
func Load() *Config {
	// Load .env file if exists
	_ = godotenv.Load()

	baseDir := getEnv("SERVERWAVE_HOME", defaultHomeDir())

	config := &Config{
		AppName:              getEnv("APP_NAME", "ServerWave"),
		Debug:                getEnvBool("DEBUG", false),
		LogLevel:             getEnv("LOG_LEVEL", "INFO"),
		LogJSON:              getEnvBool("LOG_JSON", false),
		ConfigDir:            getEnv("CONFIG_DIR", filepath.Join(baseDir, "config")),
		DataDir:              getEnv("DATA_DIR", filepath.Join(baseDir, "servers")),
		CustomGamesPath:      getEnv("CUSTOM_GAMES_PATH", filepath.Join(baseDir, "games.json")),
		StopTimeoutSeconds:   getEnvInt("STOP_TIMEOUT_SECONDS", 30),
		StopCommandWaitSecs:  getEnvInt("STOP_COMMAND_WAIT_SECONDS", 5),
		StreamTailLines:      getEnvInt("STREAM_TAIL_LINES", 50),
		StreamMaxReconnects:  getEnvInt("STREAM_MAX_RECONNECTS", 10),
		StreamReconnectDelay: getEnvInt("STREAM_RECONNECT_DELAY_SECONDS", 1),
		MetricsAddr:          getEnv("METRICS_ADDR", ":9090"),
		StatsIntervalSeconds: getEnvInt("STATS_INTERVAL_SECONDS", 30),
	}

	AppConfig = config
	return config
}

func defaultHomeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./serverwave"
	}
	return filepath.Join(home, "ServerWave")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		boolVal, err := strconv.ParseBool(value)
		if err != nil {
			log.Printf("Invalid boolean for %s, using default: %v", key, defaultValue)
			return defaultValue
		}
		return boolVal
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		intVal, err := strconv.Atoi(value)
		if err != nil {
			log.Printf("Invalid integer for %s, using default: %d", key, defaultValue)
			return defaultValue
		}
		return intVal
	}
	return defaultValue
}
