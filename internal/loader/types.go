package loader

import (
	"fmt"
	"time"

	"github.com/xtxerr/netpulse/config"
)

// Config is the complete runtime configuration, constructed once at
// startup and passed explicitly to every component. There is no other
// source of configuration at runtime.
type Config struct {
	// SleepSeconds is the pause between measurement cycles.
	SleepSeconds int `yaml:"sleep_seconds"`

	// ResultDir is the root of the partitioned row store.
	ResultDir string `yaml:"result_dir"`

	// UploadDir is the root of the local columnar store awaiting upload.
	UploadDir string `yaml:"upload_dir"`

	// LocationUUID identifies this measurement location in archive
	// paths and S3 object keys.
	LocationUUID string `yaml:"location_uuid"`

	// Universe is the deployment environment name (e.g. "prod").
	// Required before the first remote-parameter lookup.
	Universe string `yaml:"universe"`

	// ServiceName is the service name used in the SSM path prefix.
	// Required before the first remote-parameter lookup.
	ServiceName string `yaml:"service_name"`

	// Speedtest configures the external measurement binary.
	Speedtest SpeedtestConfig `yaml:"speedtest"`

	// AWS configures remote storage access.
	AWS AWSConfig `yaml:"aws"`

	// Log configures logging output.
	Log LogConfig `yaml:"log"`
}

// SpeedtestConfig configures the external measurement binary.
type SpeedtestConfig struct {
	// Binary is the speedtest executable name or path.
	Binary string `yaml:"binary"`

	// Flags are passed to the binary. The defaults request secure
	// transport, JSON output and byte-based counters.
	Flags []string `yaml:"flags"`
}

// AWSConfig configures remote storage access.
type AWSConfig struct {
	// Region for STS, SSM and S3 calls.
	Region string `yaml:"region"`

	// RoleSessionName is the STS session name used for uploads.
	RoleSessionName string `yaml:"role_session_name"`
}

// LogConfig configures logging output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`

	// JSON switches output from text to JSON.
	JSON bool `yaml:"json"`
}

// SleepInterval returns the configured loop pause as a duration.
func (c *Config) SleepInterval() time.Duration {
	return time.Duration(c.SleepSeconds) * time.Second
}

// SSMPrefix returns the application parameter prefix,
// /<universe>/<service>/app. Both parts are required; their absence is
// a configuration error surfaced at first use rather than defaulted.
func (c *Config) SSMPrefix() (string, error) {
	if c.Universe == "" {
		return "", fmt.Errorf("universe not configured (set universe in config or UNIVERSE in env)")
	}
	if c.ServiceName == "" {
		return "", fmt.Errorf("service name not configured (set service_name in config or SERVICE_NAME in env)")
	}
	return fmt.Sprintf("/%s/%s/app", c.Universe, c.ServiceName), nil
}

// RoleARNParameterName returns the full SSM parameter name holding the
// upload role ARN.
func (c *Config) RoleARNParameterName() (string, error) {
	prefix, err := c.SSMPrefix()
	if err != nil {
		return "", err
	}
	return prefix + "/" + config.RoleARNParameter, nil
}
