package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
		Mode string `yaml:"mode"` // gin mode: debug | release
	} `yaml:"server"`
	MySQL struct {
		DSN string `yaml:"dsn"`
	} `yaml:"mysql"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
	} `yaml:"redis"`
	MinIO struct {
		Endpoint  string `yaml:"endpoint"`
		AccessKey string `yaml:"access_key"`
		SecretKey string `yaml:"secret_key"`
		Bucket    string `yaml:"bucket"`
		UseSSL    bool   `yaml:"use_ssl"`
	} `yaml:"minio"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Credits  CreditsConfig  `yaml:"credits"`
}

// PipelineConfig controls the stage queues and the collaborator backends.
type PipelineConfig struct {
	// Backend selects the collaborator implementations: "stub" or "http".
	Backend string `yaml:"backend"`
	// Worker endpoints, one per collaborator, used when Backend is "http".
	ExtractorAddr  string `yaml:"extractor_addr"`
	ScriptGenAddr  string `yaml:"scriptgen_addr"`
	TTSAddr        string `yaml:"tts_addr"`
	RenderAddr     string `yaml:"render_addr"`
	SubtitleAddr   string `yaml:"subtitle_addr"`
	Concurrency    int    `yaml:"concurrency"`
	FanoutPoolSize int    `yaml:"fanout_pool_size"`
	// Per-stage wall-clock limits in seconds. Exceeding one fails the job
	// with a timeout error, distinct from a collaborator failure.
	ParseTimeoutSec    int `yaml:"parse_timeout_sec"`
	ScriptTimeoutSec   int `yaml:"script_timeout_sec"`
	TTSTimeoutSec      int `yaml:"tts_timeout_sec"`
	RenderTimeoutSec   int `yaml:"render_timeout_sec"`
	SubtitleTimeoutSec int `yaml:"subtitle_timeout_sec"`
	// PlaceholderOnExtractFailure keeps the legacy degraded mode where a
	// failed extraction yields synthetic slides instead of a failed project.
	// Off by default: extraction failures are real failures.
	PlaceholderOnExtractFailure bool `yaml:"placeholder_on_extract_failure"`
}

// CreditsConfig is the single source of per-stage costs. Both the pre-flight
// estimator and the debit path read from here.
type CreditsConfig struct {
	ParseCost    int64 `yaml:"parse_cost"`
	ScriptCost   int64 `yaml:"script_cost"`
	TTSCost      int64 `yaml:"tts_cost"`
	RenderCost   int64 `yaml:"render_cost"`
	SubtitleCost int64 `yaml:"subtitle_cost"`
	SignupGrant  int64 `yaml:"signup_grant"`
}

var AppConfig *Config

func InitConfig() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.yaml"
	}

	// .env is optional; real env always wins over file values.
	_ = godotenv.Load()

	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("config file not found, using defaults")
	} else {
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(cfg); err != nil {
			log.Fatal().Err(err).Str("path", path).Msg("config file parse failed")
		}
	}
	applyEnvOverrides(cfg)
	AppConfig = cfg
}

// Default returns a config with every knob at its shipped default. Tests use
// it directly instead of going through InitConfig.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Port = ":8080"
	cfg.Server.Mode = "release"
	cfg.Redis.Addr = "127.0.0.1:6379"
	cfg.MinIO.Bucket = "video-shiksha"
	cfg.Pipeline = PipelineConfig{
		Backend:            "stub",
		Concurrency:        5,
		FanoutPoolSize:     10,
		ParseTimeoutSec:    300,
		ScriptTimeoutSec:   300,
		TTSTimeoutSec:      600,
		RenderTimeoutSec:   1800,
		SubtitleTimeoutSec: 300,
	}
	cfg.Credits = CreditsConfig{
		ParseCost:    0,
		ScriptCost:   1,
		TTSCost:      2,
		RenderCost:   5,
		SubtitleCost: 1,
		SignupGrant:  50,
	}
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		cfg.MySQL.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinIO.AccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinIO.SecretKey = v
	}
}

// StageTimeout maps a stage type to its configured wall-clock limit.
func (p PipelineConfig) StageTimeout(stage string) time.Duration {
	sec := 0
	switch stage {
	case "PARSE":
		sec = p.ParseTimeoutSec
	case "SCRIPT_GENERATE":
		sec = p.ScriptTimeoutSec
	case "TTS_GENERATE":
		sec = p.TTSTimeoutSec
	case "VIDEO_RENDER":
		sec = p.RenderTimeoutSec
	case "SUBTITLE_GENERATE":
		sec = p.SubtitleTimeoutSec
	}
	if sec <= 0 {
		sec = 600
	}
	return time.Duration(sec) * time.Second
}
