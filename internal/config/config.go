package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"

	"github.com/hearthgate/hearthgate/internal/errors"
	"github.com/hearthgate/hearthgate/internal/log"
	"github.com/hearthgate/hearthgate/internal/utils"
)

// Template variables available in operator-supplied iptables rules.
const (
	TmplProxyPort = "proxy_port"
	TmplFwMark    = "fwmark"
	TmplTable     = "table"
	TmplPriority  = "priority"
)

var validate = validator.New()

// Default returns a configuration populated with the built-in defaults.
func Default() *Config {
	return &Config{
		General: &GeneralConfig{
			DataDir:  "/var/lib/hearthgate",
			LogsDir:  "/var/log/hearthgate",
			LogLevel: "info",
		},
		DNS: &DNSConfig{
			Port:            53,
			Upstream:        "8.8.8.8",
			CacheMaxEntries: 1000,
			QueryLogFile:    "dns.log",
		},
		Proxy: &ProxyConfig{
			Port:               8080,
			DialTimeoutSeconds: 10,
		},
		API: &APIConfig{
			Port: 8000,
		},
		Firewall: &FirewallConfig{
			FwMark:       1,
			RouteTable:   100,
			RulePriority: 100,
		},
	}
}

// LoadConfig loads the gateway configuration. The file is optional: when it
// does not exist the built-in defaults are used. Environment variables are
// applied on top in both cases, then the result is validated.
func LoadConfig(configPath string) (*Config, error) {
	cfg := Default()

	configFile := filepath.Clean(configPath)
	if !filepath.IsAbs(configFile) {
		if path, err := filepath.Abs(configFile); err != nil {
			return nil, errors.NewConfigError("failed to get absolute path", err)
		} else {
			configFile = path
		}
	}

	if content, err := os.ReadFile(configFile); err == nil {
		if err := toml.Unmarshal(content, cfg); err != nil {
			var derr *toml.DecodeError
			if stderrors.As(err, &derr) {
				log.Errorf(derr.String())
				row, col := derr.Position()
				log.Errorf("Error at line %d, column %d", row, col)
				return nil, errors.NewConfigError("failed to parse config file", nil)
			}
			return nil, errors.NewConfigError("failed to parse config file", err)
		}
		log.Debugf("Configuration file loaded: %s", configFile)
	} else if os.IsNotExist(err) {
		log.Debugf("Configuration file not found, using defaults: %s", configFile)
	} else {
		return nil, errors.NewConfigError("failed to read config file", err)
	}

	cfg._absConfigFilePath = configFile

	if err := cfg.applyEnvironment(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvironment overrides configuration values from the recognized
// environment options (DNS_PORT, DNS_UPSTREAM, API_PORT, PROXY_PORT, LOG_LEVEL).
func (c *Config) applyEnvironment() error {
	if v := os.Getenv("DNS_PORT"); v != "" {
		port, err := parsePort("DNS_PORT", v)
		if err != nil {
			return err
		}
		c.DNS.Port = port
	}
	if v := os.Getenv("DNS_UPSTREAM"); v != "" {
		c.DNS.Upstream = v
	}
	if v := os.Getenv("API_PORT"); v != "" {
		port, err := parsePort("API_PORT", v)
		if err != nil {
			return err
		}
		c.API.Port = port
	}
	if v := os.Getenv("PROXY_PORT"); v != "" {
		port, err := parsePort("PROXY_PORT", v)
		if err != nil {
			return err
		}
		c.Proxy.Port = port
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.General.LogLevel = v
	}
	return nil
}

func parsePort(name, value string) (uint16, error) {
	port, err := strconv.ParseUint(value, 10, 16)
	if err != nil || port == 0 {
		return 0, errors.NewConfigError(fmt.Sprintf("%s must be a port number in range 1-65535, got %q", name, value), nil)
	}
	return uint16(port), nil
}

// Validate validates the configuration structure.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) {
			for _, e := range verrs {
				log.Errorf("Configuration field %s failed validation: %s", e.Namespace(), e.Tag())
			}
		}
		return errors.NewConfigError("configuration validation failed", err)
	}

	if c.Proxy.Port == c.API.Port {
		return errors.NewConfigError("proxy and API ports must differ", nil)
	}

	return nil
}

// SerializeConfig renders the configuration as TOML.
func (c *Config) SerializeConfig() (*bytes.Buffer, error) {
	buf := bytes.Buffer{}
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return &buf, nil
}

// GetConfigDir returns the directory containing the configuration file.
func (c *Config) GetConfigDir() string {
	return filepath.Dir(c._absConfigFilePath)
}

// QueryLogPath returns the absolute path of the DNS query log file.
// A relative query_log_file is resolved against the logs directory.
func (c *Config) QueryLogPath() string {
	return utils.GetAbsolutePath(c.DNS.QueryLogFile, c.General.LogsDir)
}
