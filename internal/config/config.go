package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
)

// DefaultPath is read when no config file is given and it exists in the
// working directory.
const DefaultPath = ".openapi-irgen.yaml"

const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

type Config struct {
	Format       string `yaml:"format"`
	OutputDir    string `yaml:"output_dir"`
	Strict       bool   `yaml:"strict"`
	CheckSchemas bool   `yaml:"check_schemas"`
	Concurrency  int    `yaml:"concurrency"`
	Log          Log    `yaml:"log"`
	Remote       Remote `yaml:"remote"`
}

type Log struct {
	// Output is "stderr", "stdout" or a file path.
	Output     string `yaml:"output"`
	Level      string `yaml:"level"`
	TeeConsole bool   `yaml:"tee_console"`
}

// Remote configures how remote references are fetched.
type Remote struct {
	Timeout string `yaml:"timeout"`
	// Header values may reference environment variables as $NAME or ${NAME}.
	Headers map[string]string `yaml:"headers"`
}

func Default() Config {
	return Config{
		Format:      FormatYAML,
		Concurrency: 4,
		Log: Log{
			Output: "stderr",
			Level:  "info",
		},
		Remote: Remote{
			Timeout: "15s",
		},
	}
}

// Load reads the config file at path on top of Default. An empty path loads
// DefaultPath if it exists and returns the defaults otherwise.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.UnmarshalWithOptions(data, &cfg, yaml.Strict()); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Format {
	case FormatYAML, FormatJSON:
	default:
		return fmt.Errorf("unsupported format %q", c.Format)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be positive, got %d", c.Concurrency)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level %q", c.Log.Level)
	}
	if _, err := c.Remote.FetchTimeout(); err != nil {
		return err
	}
	return nil
}

func (r Remote) FetchTimeout() (time.Duration, error) {
	if r.Timeout == "" {
		return 0, nil
	}
	timeout, err := time.ParseDuration(r.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid remote timeout %q: %w", r.Timeout, err)
	}
	if timeout < 0 {
		return 0, fmt.Errorf("remote timeout must not be negative, got %s", r.Timeout)
	}
	return timeout, nil
}

// HTTPHeaders returns the configured headers with environment variables
// expanded.
func (r Remote) HTTPHeaders() http.Header {
	headers := make(http.Header, len(r.Headers))
	for key, value := range r.Headers {
		headers.Set(key, os.ExpandEnv(value))
	}
	return headers
}
