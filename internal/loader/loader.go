// Package loader handles configuration loading and validation.
//
// This package is responsible for:
//   - Building defaults from config constants and the environment
//   - Loading YAML configuration files
//   - Expanding environment variables inside config files
//   - Normalizing the location identifier
package loader

import (
	"fmt"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/xtxerr/netpulse/config"
	"github.com/xtxerr/netpulse/internal/logging"
	"gopkg.in/yaml.v3"
)

var log = logging.Component("loader")

// DefaultConfig returns a Config built from defaults and the
// recognized environment variables (SLEEP_SECONDS, UNIVERSE,
// SERVICE_NAME, SPEEDTEST_LOCATION_UUID, AWS_REGION).
func DefaultConfig() *Config {
	return &Config{
		SleepSeconds: envInt("SLEEP_SECONDS", config.DefaultSleepSeconds),
		ResultDir:    config.DefaultResultDir,
		UploadDir:    config.DefaultUploadDir,
		LocationUUID: os.Getenv("SPEEDTEST_LOCATION_UUID"),
		Universe:     os.Getenv("UNIVERSE"),
		ServiceName:  os.Getenv("SERVICE_NAME"),
		Speedtest: SpeedtestConfig{
			Binary: "speedtest",
			Flags:  []string{"--secure", "--json", "--bytes"},
		},
		AWS: AWSConfig{
			Region:          envOr("AWS_REGION", config.DefaultAWSRegion),
			RoleSessionName: config.DefaultRoleSessionName,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load loads configuration from a YAML file over DefaultConfig.
// Environment variables inside the file are expanded before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// Normalize fills derived fields and validates what can be validated
// early. Universe/service-name are deliberately not checked here; they
// only become fatal at the first remote-parameter lookup.
func (c *Config) Normalize() error {
	if c.SleepSeconds <= 0 {
		return fmt.Errorf("sleep_seconds must be positive, got %d", c.SleepSeconds)
	}
	if c.ResultDir == "" || c.UploadDir == "" {
		return fmt.Errorf("result_dir and upload_dir must not be empty")
	}

	if c.LocationUUID == "" {
		c.LocationUUID = uuid.NewString()
		log.Warn("no location identifier configured, generated an ephemeral one",
			"location", c.LocationUUID)
	} else if _, err := uuid.Parse(c.LocationUUID); err != nil {
		log.Warn("location identifier is not a UUID", "location", c.LocationUUID)
	}

	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warn("ignoring non-numeric environment value", "key", key, "value", v)
		return def
	}
	return n
}
