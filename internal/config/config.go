package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config 全局配置
type Config struct {
	Line       LineConfig       `mapstructure:"line"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Downstream DownstreamConfig `mapstructure:"downstream"`
	System     SystemConfig     `mapstructure:"system"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
}

// LineConfig LINE平台配置
type LineConfig struct {
	ChannelAccessToken string `mapstructure:"channel_access_token"`
	ChannelSecret      string `mapstructure:"channel_secret"`
	APIBaseURL         string `mapstructure:"api_base_url"`
}

// ServerConfig HTTP服务配置
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Path        string `mapstructure:"path"`
	BusyTimeout int    `mapstructure:"busy_timeout"` // 锁等待超时（毫秒）
}

// DownstreamConfig 下游流程配置（Power Automate）
type DownstreamConfig struct {
	FlowURL        string `mapstructure:"flow_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// SystemConfig 系统配置
type SystemConfig struct {
	LogLevel string `mapstructure:"log_level"`
}

// SchedulerConfig 调度器配置
type SchedulerConfig struct {
	HealthCheckInterval string `mapstructure:"health_check_interval"`
}

var GlobalConfig *Config

// LoadConfig 加载配置文件（敏感项可由环境变量覆盖）
func LoadConfig(configPath string) (*Config, error) {
	// viper 是包级单例，重复加载前先清掉上一次的状态
	viper.Reset()

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 设置默认值
	setDefaults()

	// 敏感配置优先从环境变量读取
	viper.BindEnv("line.channel_access_token", "CHANNEL_ACCESS_TOKEN")
	viper.BindEnv("line.channel_secret", "CHANNEL_SECRET")
	viper.BindEnv("downstream.flow_url", "POWERAPP_FLOW_URL")
	viper.BindEnv("server.port", "PORT")

	// 读取配置文件（允许缺失，此时完全依赖默认值和环境变量）
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 解析配置
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Line.ChannelSecret == "" {
		return nil, fmt.Errorf("channel secret 未配置（CHANNEL_SECRET）")
	}

	GlobalConfig = &cfg
	return &cfg, nil
}

// setDefaults 设置默认值
func setDefaults() {
	viper.SetDefault("line.api_base_url", "https://api.line.me")

	viper.SetDefault("server.port", 5000)

	viper.SetDefault("database.path", "data/database.db")
	viper.SetDefault("database.busy_timeout", 5000)

	viper.SetDefault("downstream.timeout_seconds", 10)

	viper.SetDefault("system.log_level", "info")

	viper.SetDefault("scheduler.health_check_interval", "*/5 * * * *")
}

// GetConfig 获取全局配置
func GetConfig() *Config {
	return GlobalConfig
}
