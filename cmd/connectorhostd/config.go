package main

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ghodss/yaml"
)

// Config is the connector host's own process configuration, read from the
// file named by CONNECTOR_HOST_CONFIG (or the serve command's positional
// argument), following dexidp-dex's cmd/dex Config: a YAML document decoded
// via ghodss/yaml (so json struct tags apply) with $FOO environment
// substitution applied afterward.
type Config struct {
	Logger struct {
		Level  string `json:"level"`
		Format string `json:"format"`
	} `json:"logger"`

	Telemetry struct {
		HTTP string `json:"http"`
	} `json:"telemetry"`

	Session struct {
		URL          string   `json:"url"`
		ClientID     string   `json:"clientID"`
		ClientSecret string   `json:"clientSecret"`
		TokenURL     string   `json:"tokenURL"`
		Scopes       []string `json:"scopes"`
		Audience     string   `json:"audience"`
		Resource     string   `json:"resource"`
	} `json:"session"`

	Cache struct {
		Capacity          int `json:"capacity"`
		DefaultTTLSeconds int `json:"defaultTTLSeconds"`
	} `json:"cache"`

	Breaker struct {
		FailureThreshold    int `json:"failureThreshold"`
		SuccessThreshold    int `json:"successThreshold"`
		HalfOpenAfterSeconds int `json:"halfOpenAfterSeconds"`
		MaxConcurrent       int `json:"maxConcurrent"`
		TimeoutSeconds      int `json:"timeoutSeconds"`
	} `json:"breaker"`

	ManifestDirs []string `json:"manifestDirs"`
}

// Validate enforces the minimal set of fields every deployment needs.
func (c *Config) Validate() error {
	if len(c.ManifestDirs) == 0 {
		return fmt.Errorf("invalid config: at least one manifestDirs entry is required")
	}
	return nil
}

// loadConfig reads and decodes path, applying $FOO environment substitution
// the same way dexidp-dex's runServe does before Validate.
func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}

	if err := replaceEnvKeys(&c, os.Getenv); err != nil {
		return nil, fmt.Errorf("apply environment substitution to config: %w", err)
	}

	return &c, nil
}

// configFileEnv is the environment variable naming the config file path
// when no positional argument is given to the serve command.
const configFileEnv = "CONNECTOR_HOST_CONFIG"

// resolveConfig loads the process Config either from a YAML file (when one
// is named, the historical path) or, when none is given, directly from the
// environment variable surface spec.md §6 names as unchanged: a deployment
// that sets REMOTE_CONNECTOR_WS_URL/OAUTH_* and CONNECTORS_DIR needs no YAML
// file at all.
func resolveConfig(options serveOptions) (*Config, error) {
	if options.config != "" {
		return loadConfig(options.config)
	}
	return configFromEnv(options.connectors)
}

// requiredEnv names the environment variables spec.md §6 marks required for
// the env-var bootstrap path.
var requiredEnv = []string{
	"REMOTE_CONNECTOR_WS_URL",
	"OAUTH_TOKEN_URL",
	"OAUTH_CLIENT_ID",
	"OAUTH_CLIENT_SECRET",
}

// configFromEnv builds a Config entirely from the process environment, per
// spec.md §6, for deployments run without a YAML config file. connectorsFlag
// is the --connectors flag value, which takes precedence over CONNECTORS_DIR.
func configFromEnv(connectorsFlag string) (*Config, error) {
	values := make(map[string]string, len(requiredEnv))
	var missing []string
	for _, name := range requiredEnv {
		v := os.Getenv(name)
		if v == "" {
			missing = append(missing, name)
		}
		values[name] = v
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("config file required: pass one as an argument, set %s, or set %s",
			configFileEnv, strings.Join(missing, ", "))
	}

	connectorsDir := connectorsFlag
	if connectorsDir == "" {
		connectorsDir = os.Getenv("CONNECTORS_DIR")
	}
	if connectorsDir == "" {
		return nil, fmt.Errorf("connector manifest directory required: set CONNECTORS_DIR or pass --connectors")
	}

	var c Config
	c.Logger.Level = "info"
	c.Logger.Format = "json"
	c.Session.URL = values["REMOTE_CONNECTOR_WS_URL"]
	c.Session.TokenURL = values["OAUTH_TOKEN_URL"]
	c.Session.ClientID = values["OAUTH_CLIENT_ID"]
	c.Session.ClientSecret = values["OAUTH_CLIENT_SECRET"]
	c.Session.Audience = os.Getenv("OAUTH_AUDIENCE")
	c.Session.Resource = os.Getenv("OAUTH_RESOURCE")
	if scope := os.Getenv("OAUTH_SCOPE"); scope != "" {
		c.Session.Scopes = strings.Fields(scope)
	}
	c.Cache.Capacity = 10000
	c.Cache.DefaultTTLSeconds = 300
	c.Breaker.FailureThreshold = 5
	c.Breaker.SuccessThreshold = 2
	c.Breaker.HalfOpenAfterSeconds = 30
	c.Breaker.MaxConcurrent = 10
	c.Breaker.TimeoutSeconds = 30
	c.ManifestDirs = []string{connectorsDir}
	return &c, nil
}
