package config

import (
	"io/ioutil"
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config carries the engine tunables. Defaults match the production client;
// a YAML file and FEEDENGINE_* env vars override them in that order.
type Config struct {
	// Posts rendered per page.
	PageSize int `yaml:"page_size"`
	// Candidate pool requested from the retrieval strategies.
	CandidateTarget int `yaml:"candidate_target"`
	// Larger pool for viewers with an established follow graph.
	ActiveCandidateTarget int `yaml:"active_candidate_target"`
	// How often the background poll peeks for newer posts. Parsed from the
	// poll_interval key by the custom unmarshaller below.
	PollInterval time.Duration `yaml:"-"`

	// Device-local state file. Empty means the per-user default path.
	StorePath string `yaml:"store_path"`
	// Remote REST surface, when running against the hosted backend.
	RemoteBaseURL string `yaml:"remote_base_url"`
	// Redis address, when device state should live server-side.
	RedisAddr string `yaml:"redis_addr"`
}

// yaml.v2 has no native duration decoding, so poll_interval accepts the
// time.ParseDuration syntax ("30s", "1m") via a string detour.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	type alias Config
	if err := unmarshal((*alias)(c)); err != nil {
		return err
	}

	var aux struct {
		PollInterval string `yaml:"poll_interval"`
	}
	if err := unmarshal(&aux); err != nil {
		return err
	}
	if aux.PollInterval != "" {
		d, err := time.ParseDuration(aux.PollInterval)
		if err != nil {
			return errors.Wrap(err, "parse poll_interval")
		}
		c.PollInterval = d
	}
	return nil
}

func Default() *Config {
	return &Config{
		PageSize:              5,
		CandidateTarget:       15,
		ActiveCandidateTarget: 20,
		PollInterval:          30 * time.Second,
	}
}

// Load reads path (when non-empty), then applies env overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := ioutil.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config")
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrap(err, "parse config")
		}
	}

	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("FEEDENGINE_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.PageSize = n
		}
	}
	if v := os.Getenv("FEEDENGINE_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			c.PollInterval = d
		}
	}
	if v := os.Getenv("FEEDENGINE_STORE_PATH"); v != "" {
		c.StorePath = v
	}
	if v := os.Getenv("FEEDENGINE_REMOTE_BASE_URL"); v != "" {
		c.RemoteBaseURL = v
	}
	if v := os.Getenv("FEEDENGINE_REDIS_ADDR"); v != "" {
		c.RedisAddr = v
	}
}

func (c *Config) validate() error {
	if c.PageSize <= 0 {
		return errors.New("page_size should be > 0")
	}
	if c.CandidateTarget < c.PageSize {
		return errors.New("candidate_target should be >= page_size")
	}
	if c.PollInterval <= 0 {
		return errors.New("poll_interval should be > 0")
	}
	return nil
}
