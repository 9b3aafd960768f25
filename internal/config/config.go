package config

import (
	"time"

	"github.com/spf13/viper"
)

type ServerCfg struct {
	Port                string `mapstructure:"port"`
	ReadTimeoutSeconds  int    `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds int    `mapstructure:"write_timeout_seconds"`
}

type DatabaseCfg struct {
	DSN string `mapstructure:"dsn"`
}

type RedisCfg struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

type KafkaCfg struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type JwtCfg struct {
	Secret string `mapstructure:"secret"`
}

type WSCfg struct {
	PingIntervalSeconds int   `mapstructure:"ping_interval_seconds"`
	ReadDeadlineSeconds int   `mapstructure:"read_deadline_seconds"`
	MaxMessageSizeBytes int64 `mapstructure:"max_message_size_bytes"`
	ActionsPerSecond    int   `mapstructure:"actions_per_second"`
}

type PresenceCfg struct {
	StaleAfterMinutes    int `mapstructure:"stale_after_minutes"`
	SweepIntervalSeconds int `mapstructure:"sweep_interval_seconds"`
}

type Config struct {
	Env      string      `mapstructure:"env"`
	Server   ServerCfg   `mapstructure:"server"`
	Database DatabaseCfg `mapstructure:"database"`
	Redis    RedisCfg    `mapstructure:"redis"`
	Kafka    KafkaCfg    `mapstructure:"kafka"`
	JWT      JwtCfg      `mapstructure:"jwt"`
	WS       WSCfg       `mapstructure:"ws"`
	Presence PresenceCfg `mapstructure:"presence"`

	// derived
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	PingInterval  time.Duration
	ReadDeadline  time.Duration
	StaleAfter    time.Duration
	SweepInterval time.Duration
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.AutomaticEnv()
	v.SetEnvPrefix("APP")

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Server.ReadTimeoutSeconds == 0 {
		cfg.Server.ReadTimeoutSeconds = 15
	}
	if cfg.Server.WriteTimeoutSeconds == 0 {
		cfg.Server.WriteTimeoutSeconds = 15
	}
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "teamchat:events"
	}
	if cfg.Kafka.Topic == "" {
		cfg.Kafka.Topic = "teamchat.events"
	}
	if cfg.WS.PingIntervalSeconds == 0 {
		cfg.WS.PingIntervalSeconds = 30
	}
	if cfg.WS.ReadDeadlineSeconds == 0 {
		cfg.WS.ReadDeadlineSeconds = 60
	}
	if cfg.WS.MaxMessageSizeBytes == 0 {
		cfg.WS.MaxMessageSizeBytes = 64 * 1024
	}
	if cfg.WS.ActionsPerSecond == 0 {
		cfg.WS.ActionsPerSecond = 20
	}
	if cfg.Presence.StaleAfterMinutes == 0 {
		cfg.Presence.StaleAfterMinutes = 5
	}
	if cfg.Presence.SweepIntervalSeconds == 0 {
		cfg.Presence.SweepIntervalSeconds = 60
	}

	cfg.ReadTimeout = time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second
	cfg.WriteTimeout = time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second
	cfg.PingInterval = time.Duration(cfg.WS.PingIntervalSeconds) * time.Second
	cfg.ReadDeadline = time.Duration(cfg.WS.ReadDeadlineSeconds) * time.Second
	cfg.StaleAfter = time.Duration(cfg.Presence.StaleAfterMinutes) * time.Minute
	cfg.SweepInterval = time.Duration(cfg.Presence.SweepIntervalSeconds) * time.Second
	return &cfg, nil
}
