package util

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/yaml.v3"
)

const Name = "burrow"
const ConfigFileName = "config.yaml"

//go:embed config_default.yaml
var embeddedConfig []byte

type AppConfig struct {
	Conf struct {
		Host                string
		HttpPort            int      `yaml:"httpPort"`
		SslDomain           string   `yaml:"sslDomain"`
		WithAp              bool     `yaml:"withAp"`
		TlsEnabled          bool     `yaml:"tlsEnabled"`
		FetchBudget         int      `yaml:"fetchBudget"`
		RefreshHours        int      `yaml:"refreshHours"`
		DeliveryConcurrency int      `yaml:"deliveryConcurrency"`
		AllowedInstances    []string `yaml:"allowedInstances"`
		BlockedInstances    []string `yaml:"blockedInstances"`
		SlurFilter          string   `yaml:"slurFilter"`
		DatabasePath        string   `yaml:"databasePath"`
		LogLevel            string   `yaml:"logLevel"`
	}
}

// Settings is the instance configuration the federation core reads.
type Settings struct {
	Hostname            string
	TlsEnabled          bool
	FetchBudget         int
	RefreshInterval     time.Duration
	DeliveryConcurrency int
	AllowedInstances    []string
	BlockedInstances    []string
	SlurFilter          *regexp.Regexp // nil disables filtering
}

const (
	DefaultFetchBudget         = 25
	DefaultRefreshHours        = 24
	DefaultDeliveryConcurrency = 8
)

func ReadConf() (*AppConfig, error) {
	return ReadConfFrom("")
}

// ReadConfFrom reads the config at path, or resolves config.yaml in the
// working directory and the user config directory when path is empty.
func ReadConfFrom(path string) (*AppConfig, error) {

	c := &AppConfig{}

	configPath := path
	if configPath == "" {
		configPath = ResolveFilePath(ConfigFileName)
	}

	buf, err := os.ReadFile(configPath)
	if err != nil {
		if path != "" {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		// If file doesn't exist, use embedded config and create user config file
		log.Infof("Config file not found at %s, using embedded defaults", configPath)
		buf = embeddedConfig

		configDir, dirErr := ConfigDir()
		if dirErr == nil {
			userConfigPath := filepath.Join(configDir, ConfigFileName)
			if writeErr := os.WriteFile(userConfigPath, embeddedConfig, 0644); writeErr != nil {
				log.Warnf("Could not write default config to %s: %v", userConfigPath, writeErr)
			} else {
				log.Infof("Created default config file at %s", userConfigPath)
			}
		}
	}

	err = yaml.Unmarshal(buf, c)
	if err != nil {
		return nil, fmt.Errorf("in config file: %w", err)
	}

	applyEnv(c)
	applyDefaults(c)

	return c, nil
}

func applyEnv(c *AppConfig) {
	if v := os.Getenv("BURROW_HOST"); v != "" {
		c.Conf.Host = v
	}
	if v := os.Getenv("BURROW_HTTPPORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Conf.HttpPort = port
		} else {
			log.Warnf("Ignoring BURROW_HTTPPORT: %v", err)
		}
	}
	if v := os.Getenv("BURROW_SSLDOMAIN"); v != "" {
		c.Conf.SslDomain = v
	}
	if os.Getenv("BURROW_WITH_AP") == "true" {
		c.Conf.WithAp = true
	}
	if os.Getenv("BURROW_TLS_ENABLED") == "false" {
		c.Conf.TlsEnabled = false
	}
	if v := os.Getenv("BURROW_FETCH_BUDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Conf.FetchBudget = n
		} else {
			log.Warnf("Ignoring BURROW_FETCH_BUDGET: %v", err)
		}
	}
	if v := os.Getenv("BURROW_BLOCKED_INSTANCES"); v != "" {
		c.Conf.BlockedInstances = splitList(v)
	}
	if v := os.Getenv("BURROW_ALLOWED_INSTANCES"); v != "" {
		c.Conf.AllowedInstances = splitList(v)
	}
	if v := os.Getenv("BURROW_DATABASE"); v != "" {
		c.Conf.DatabasePath = v
	}
	if v := os.Getenv("BURROW_LOG_LEVEL"); v != "" {
		c.Conf.LogLevel = v
	}
}

func applyDefaults(c *AppConfig) {
	if c.Conf.FetchBudget <= 0 {
		c.Conf.FetchBudget = DefaultFetchBudget
	}
	if c.Conf.RefreshHours <= 0 {
		c.Conf.RefreshHours = DefaultRefreshHours
	}
	if c.Conf.DeliveryConcurrency <= 0 {
		c.Conf.DeliveryConcurrency = DefaultDeliveryConcurrency
	}
	if c.Conf.DatabasePath == "" {
		c.Conf.DatabasePath = "database.db"
	}
	if c.Conf.LogLevel == "" {
		c.Conf.LogLevel = "info"
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Settings compiles the federation settings out of the raw config.
func (c *AppConfig) Settings() (*Settings, error) {
	s := &Settings{
		Hostname:            c.Conf.SslDomain,
		TlsEnabled:          c.Conf.TlsEnabled,
		FetchBudget:         c.Conf.FetchBudget,
		RefreshInterval:     time.Duration(c.Conf.RefreshHours) * time.Hour,
		DeliveryConcurrency: c.Conf.DeliveryConcurrency,
		AllowedInstances:    c.Conf.AllowedInstances,
		BlockedInstances:    c.Conf.BlockedInstances,
	}
	if s.Hostname == "" {
		return nil, fmt.Errorf("sslDomain must be set")
	}
	if c.Conf.SlurFilter != "" {
		re, err := regexp.Compile(c.Conf.SlurFilter)
		if err != nil {
			return nil, fmt.Errorf("invalid slurFilter: %w", err)
		}
		s.SlurFilter = re
	}
	return s, nil
}

// Protocol returns the URL scheme used for identifiers of this instance.
func (s *Settings) Protocol() string {
	if s.TlsEnabled {
		return "https"
	}
	return "http"
}

// ProtocolAndHostname returns e.g. "https://forum.example".
func (s *Settings) ProtocolAndHostname() string {
	return s.Protocol() + "://" + s.Hostname
}
