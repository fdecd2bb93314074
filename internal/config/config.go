package config

import (
	"errors"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
	Redis struct {
		Addr          string `yaml:"addr"`
		Password      string `yaml:"password"`
		DB            int    `yaml:"db"`
		TTL           string `yaml:"ttl"`
		ResultsStream string `yaml:"results_stream"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Content struct {
		File string `yaml:"file"`
		TTL  string `yaml:"ttl"`
	} `yaml:"content"`
	Quiz struct {
		QuestionBudget  int    `yaml:"question_budget"`
		Tick            string `yaml:"tick"`
		FeedbackDelay   string `yaml:"feedback_delay"`
		TopicQuota      int    `yaml:"topic_quota"`
		DefaultLimit    int    `yaml:"default_limit"`
		TimeoutPolicy   string `yaml:"timeout_policy"`
		RevealCorrect   bool   `yaml:"reveal_correct"`
		PersistAttempts int    `yaml:"persist_attempts"`
	} `yaml:"quiz"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Redis.TTL = "10m"
	cfg.Content.TTL = "10m"
	cfg.Quiz.QuestionBudget = 40
	cfg.Quiz.Tick = "1s"
	cfg.Quiz.FeedbackDelay = "1.5s"
	cfg.Quiz.TopicQuota = 5
	cfg.Quiz.DefaultLimit = 100
	cfg.Quiz.TimeoutPolicy = "skip"
	cfg.Quiz.PersistAttempts = 3
	return cfg
}

// Load reads YAML config from path on top of the defaults. A missing file is
// not an error. Secrets can be overridden from the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("QUIZ_POSTGRES_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("QUIZ_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("QUIZ_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
