package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/kozaktomas/face-search/internal/facematch"
	"github.com/mcuadros/go-defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	FaceAPI FaceAPIConfig `yaml:"face_api"`
	Corpus  CorpusConfig  `yaml:"corpus"`
	Match   MatchConfig   `yaml:"match"`
	Cache   CacheConfig   `yaml:"cache"`
	Web     WebConfig     `yaml:"web"`
	Log     LogConfig     `yaml:"log"`
}

type FaceAPIConfig struct {
	URL   string  `yaml:"url" default:"http://localhost:8000"` // InsightFace embedding service
	RPS   float64 `yaml:"rps" default:"20"`                    // sustained request rate, 0 disables throttling
	Burst int     `yaml:"burst" default:"10"`
}

type CorpusConfig struct {
	Dir        string   `yaml:"dir" default:"images"`
	Extensions []string `yaml:"extensions"` // lowercase with dot; empty means every file
	Watch      bool     `yaml:"watch" default:"true"`
}

type MatchConfig struct {
	Threshold float64 `yaml:"threshold" default:"0.5"`
	Policy    string  `yaml:"policy" default:"first"`
	Workers   int     `yaml:"workers" default:"4"`
}

type CacheConfig struct {
	Enabled    bool `yaml:"enabled" default:"true"`
	MaxEntries int  `yaml:"max_entries" default:"10000"`
}

type WebConfig struct {
	Host           string   `yaml:"host" default:"0.0.0.0"`
	Port           int      `yaml:"port" default:"3000"`
	AllowedOrigins []string `yaml:"allowed_origins"` // CORS whitelist, localhost is always allowed
}

type LogConfig struct {
	Dir string `yaml:"dir"` // rotated log files are written here when set
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a non-negative float.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

// envBool reads an environment variable as a bool.
func envBool(key string, defaultVal bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// splitList splits a comma-separated value, dropping empty items.
func splitList(s string) []string {
	var out []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parseExtensions turns ".jpg, PNG" into [".jpg", ".png"].
func parseExtensions(s string) []string {
	var exts []string
	for e := range strings.SplitSeq(s, ",") {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		exts = append(exts, e)
	}
	return exts
}

// Load builds the configuration from struct defaults, the optional YAML file
// named by CONFIG_FILE, and environment variables, in that order.
func Load() (*Config, error) {
	cfg := &Config{}
	defaults.SetDefaults(cfg)

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.FaceAPI.URL = envString("FACE_API_URL", c.FaceAPI.URL)
	c.FaceAPI.RPS = envFloat("FACE_API_RPS", c.FaceAPI.RPS)
	c.FaceAPI.Burst = envInt("FACE_API_BURST", c.FaceAPI.Burst)

	c.Corpus.Dir = envString("CORPUS_DIR", c.Corpus.Dir)
	if exts := os.Getenv("CORPUS_EXTENSIONS"); exts != "" {
		c.Corpus.Extensions = parseExtensions(exts)
	}
	c.Corpus.Watch = envBool("CORPUS_WATCH", c.Corpus.Watch)

	c.Match.Threshold = envFloat("MATCH_THRESHOLD", c.Match.Threshold)
	c.Match.Policy = envString("MATCH_POLICY", c.Match.Policy)
	c.Match.Workers = envInt("MATCH_WORKERS", c.Match.Workers)

	c.Cache.Enabled = envBool("CACHE_ENABLED", c.Cache.Enabled)
	c.Cache.MaxEntries = envInt("CACHE_MAX_ENTRIES", c.Cache.MaxEntries)

	c.Web.Host = envString("WEB_HOST", c.Web.Host)
	c.Web.Port = envInt("WEB_PORT", c.Web.Port)
	if origins := os.Getenv("WEB_ALLOWED_ORIGINS"); origins != "" {
		c.Web.AllowedOrigins = splitList(origins)
	}

	c.Log.Dir = envString("LOG_DIR", c.Log.Dir)
}

// Validate checks settings that would otherwise fail at search time.
func (c *Config) Validate() error {
	if c.FaceAPI.URL == "" {
		return errors.New("FACE_API_URL must not be empty")
	}
	if c.Corpus.Dir == "" {
		return errors.New("CORPUS_DIR must not be empty")
	}
	if c.Match.Threshold <= 0 || c.Match.Threshold > 2 {
		return fmt.Errorf("match threshold must be in (0, 2], got %v", c.Match.Threshold)
	}
	if _, ok := facematch.ParseMatchPolicy(c.Match.Policy); !ok {
		return fmt.Errorf("unknown match policy %q (want first or best)", c.Match.Policy)
	}
	if c.Match.Workers < 1 {
		return fmt.Errorf("match workers must be positive, got %d", c.Match.Workers)
	}
	return nil
}

// SearchOptions converts the match settings for facematch.NewSearcher.
func (c *Config) SearchOptions() facematch.SearchOptions {
	policy, _ := facematch.ParseMatchPolicy(c.Match.Policy)
	return facematch.SearchOptions{
		Threshold: c.Match.Threshold,
		Policy:    policy,
		Workers:   c.Match.Workers,
	}
}
