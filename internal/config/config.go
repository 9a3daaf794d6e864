package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/aristath/detection-selector/internal/metadata"
)

// Config holds application configuration
type Config struct {
	DatabasePath         string
	MetaLearnServiceURL  string
	TsFeaturesServiceURL string
	ScaleParams          []string
	RetrainSchedule      string
	LogLevel             string
	Port                 int
	DevMode              bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnvAsInt("GO_PORT", 8001),
		DevMode:              getEnvAsBool("DEV_MODE", false),
		DatabasePath:         getEnv("DATABASE_PATH", "./data/metadata.db"),
		MetaLearnServiceURL:  getEnv("METALEARN_SERVICE_URL", "http://localhost:9003"),  // MetaLearn microservice
		TsFeaturesServiceURL: getEnv("TSFEATURES_SERVICE_URL", "http://localhost:9004"), // TsFeatures microservice
		ScaleParams:          getEnvAsList("SCALE_PARAMS", metadata.DefaultScaleParams),
		RetrainSchedule:      getEnv("RETRAIN_SCHEDULE", "@daily"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.DatabasePath == "" {
		return fmt.Errorf("DATABASE_PATH is required")
	}
	if c.MetaLearnServiceURL == "" {
		return fmt.Errorf("METALEARN_SERVICE_URL is required")
	}
	if c.TsFeaturesServiceURL == "" {
		return fmt.Errorf("TSFEATURES_SERVICE_URL is required")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
