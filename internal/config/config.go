package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string `mapstructure:"mode"`
	Port       int    `mapstructure:"port"`
	StaticPath string `mapstructure:"static_path"`
	LogLevel   string `mapstructure:"log_level"`
	Secret     string `mapstructure:"secret"`

	DBPath         string `mapstructure:"db_path"`
	UploadDir      string `mapstructure:"upload_dir"`
	UploadPrefix   string `mapstructure:"upload_prefix"`
	MaxUploadBytes int64  `mapstructure:"max_upload_bytes"`
	HistoryLimit   int    `mapstructure:"history_limit"`
	MaxNameLen     int    `mapstructure:"max_name_len"`

	ReadLimit    int64         `mapstructure:"read_limit"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	PongWait     time.Duration `mapstructure:"pong_wait"`
	WriteWait    time.Duration `mapstructure:"write_wait"`
	SendBuffer   int           `mapstructure:"send_buffer"`
	FrameRate    float64       `mapstructure:"frame_rate"`
	FrameBurst   int           `mapstructure:"frame_burst"`
	SlowConsumer string        `mapstructure:"slow_consumer"`
}

// Load reads .env, then config/config.<CONFIG_ENV>.yaml, then HUDDLE_*
// environment overrides. A missing file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Str("module", "config").Msg("failed to read .env")
	}
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("HUDDLE")
	v.AutomaticEnv()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 3000)
	v.SetDefault("static_path", "./public")
	v.SetDefault("log_level", "info")
	v.SetDefault("secret", "")
	v.SetDefault("db_path", "./chat.sqlite")
	v.SetDefault("upload_dir", "./uploads")
	v.SetDefault("upload_prefix", "/uploads")
	v.SetDefault("max_upload_bytes", 20<<20)
	v.SetDefault("history_limit", 50)
	v.SetDefault("max_name_len", 32)
	v.SetDefault("read_limit", 0)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "10s")
	v.SetDefault("send_buffer", 256)
	v.SetDefault("frame_rate", 20)
	v.SetDefault("frame_burst", 40)
	v.SetDefault("slow_consumer", "kick")

	if err := v.ReadInConfig(); err != nil {
		log.Info().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.ReadLimit == 0 {
		// Twice the base64 size of an allowed upload, so an oversize one
		// still arrives whole and gets the "file too large" notice.
		cfg.ReadLimit = 2*(cfg.MaxUploadBytes/3*4) + 64<<10
	}
	if cfg.Secret == "" {
		cfg.Secret = uuid.NewString() + uuid.NewString()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).Str("static", cfg.StaticPath).Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch {
	case c.Port < 1 || c.Port > 65535:
		return fmt.Errorf("invalid port %d", c.Port)
	case c.MaxUploadBytes <= 0:
		return fmt.Errorf("max_upload_bytes must be positive")
	case c.HistoryLimit <= 0:
		return fmt.Errorf("history_limit must be positive")
	case c.MaxNameLen <= 0:
		return fmt.Errorf("max_name_len must be positive")
	case c.SendBuffer <= 0:
		return fmt.Errorf("send_buffer must be positive")
	case c.FrameRate <= 0 || c.FrameBurst <= 0:
		return fmt.Errorf("frame_rate and frame_burst must be positive")
	case c.PingPeriod <= 0 || c.PongWait <= c.PingPeriod:
		return fmt.Errorf("pong_wait must exceed ping_period")
	case c.WriteWait <= 0:
		return fmt.Errorf("write_wait must be positive")
	}
	switch c.SlowConsumer {
	case "kick", "drop":
	default:
		return fmt.Errorf("unknown slow_consumer policy %q", c.SlowConsumer)
	}
	return nil
}
