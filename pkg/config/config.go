package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration, loaded from the environment with an
// ONEM2M_ prefix. A .env file in the working directory is honored when
// present.
type Config struct {
	// DataDir holds the bbolt database file.
	DataDir string `env:"DATA_DIR" envDefault:"/var/lib/onem2m"`

	// HTTPAddr is the listen address of the HTTP binding (and /metrics).
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8282"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	LogJSON  bool   `env:"LOG_JSON" envDefault:"true"`

	// ProvisionFile lists CSEs to provision at startup; empty disables it.
	ProvisionFile string `env:"PROVISION_FILE"`

	RouterWorkers   int           `env:"ROUTER_WORKERS" envDefault:"32"`
	NotifierWorkers int           `env:"NOTIFIER_WORKERS" envDefault:"8"`
	ForwardTimeout  time.Duration `env:"FORWARD_TIMEOUT" envDefault:"10s"`
	NotifyTimeout   time.Duration `env:"NOTIFY_TIMEOUT" envDefault:"10s"`
}

// Load reads the configuration from the environment, merging a .env file
// when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: "ONEM2M_"}); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return cfg, nil
}

// CseEntry is one CSE in the provisioning file.
type CseEntry struct {
	Name    string `yaml:"name"`
	CseID   string `yaml:"cseId"`
	CseType string `yaml:"cseType"`
}

// ProvisionFile is the YAML document listing the CSEs to provision at
// startup.
type ProvisionFile struct {
	Cses []CseEntry `yaml:"cses"`
}

// LoadProvisionFile parses a provisioning YAML file.
func LoadProvisionFile(path string) (*ProvisionFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read provision file: %w", err)
	}
	pf := &ProvisionFile{}
	if err := yaml.Unmarshal(data, pf); err != nil {
		return nil, fmt.Errorf("failed to parse provision file %s: %w", path, err)
	}
	for i, cse := range pf.Cses {
		if cse.Name == "" || cse.CseID == "" {
			return nil, fmt.Errorf("provision file %s entry %d: name and cseId are required", path, i)
		}
	}
	return pf, nil
}
