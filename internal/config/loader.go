package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LoggerConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// SchedulerConfig carries the scheduling policy knobs. BaseKey prefixes every
// store key so several deployments can share one Redis instance.
type SchedulerConfig struct {
	BaseKey               string        `mapstructure:"base_key"`
	BackendToken          string        `mapstructure:"backend_token"`
	MaxPriority           int           `mapstructure:"max_priority"`
	DefaultPriority       int           `mapstructure:"default_priority"`
	MaxTimeRunning        time.Duration `mapstructure:"max_time_running"`
	MaxTimeWithoutPolling time.Duration `mapstructure:"max_time_without_polling"`
	PollInterval          time.Duration `mapstructure:"poll_interval"`
	MaxWait               time.Duration `mapstructure:"max_wait"`
	CredentialsFile       string        `mapstructure:"credentials_file"`
	DeviceMetadataFile    string        `mapstructure:"device_metadata_file"`
}

func Load(path string) (*Config, error) {
	viper.SetConfigFile(path)
	viper.SetEnvPrefix("RELIA")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.encoding", "console")
	viper.SetDefault("logger.output_paths", []string{"stdout"})
	viper.SetDefault("logger.error_output_paths", []string{"stderr"})
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("scheduler.base_key", "base")
	viper.SetDefault("scheduler.max_priority", 15)
	viper.SetDefault("scheduler.default_priority", 10)
	viper.SetDefault("scheduler.max_time_running", 10*time.Second)
	viper.SetDefault("scheduler.max_time_without_polling", 10*time.Second)
	viper.SetDefault("scheduler.poll_interval", 100*time.Millisecond)
	viper.SetDefault("scheduler.max_wait", 25*time.Second)
	viper.SetDefault("scheduler.credentials_file", "device-credentials.json")
}
