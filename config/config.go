package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	OSS      OSSConfig      `mapstructure:"oss"`
	Tracker  TrackerConfig  `mapstructure:"tracker"`
	Status   StatusConfig   `mapstructure:"status"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	CORS     CORSConfig     `mapstructure:"cors"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// UpstreamConfig 上游任务后端的接入配置
type UpstreamConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	WSBaseURL string        `mapstructure:"ws_base_url"`
	APIToken  string        `mapstructure:"api_token"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Feed      string        `mapstructure:"feed"` // 实时日志通道: websocket / redis
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // mysql / sqlite
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	Path         string `mapstructure:"path"` // sqlite 文件路径
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type JWTConfig struct {
	Secret          string `mapstructure:"secret"`
	TicketExpireSec int    `mapstructure:"ticket_expire_sec"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
}

// TrackerConfig 任务轮询配置
type TrackerConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	RetentionDays int           `mapstructure:"retention_days"` // 历史存档保留天数
}

// StatusConfig 全局状态轮询配置
type StatusConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"` // 常规间隔
	FastInterval time.Duration `mapstructure:"fast_interval"` // 抓取进行中时的间隔
}

type NotifyConfig struct {
	Channel string `mapstructure:"channel"` // Redis 通知频道，空则仅本地日志
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

func Load(configPath string) (*Config, error) {
	// 优先尝试读取 config.local.yaml（包含真实密钥，不提交到git）
	dir := filepath.Dir(configPath)
	localConfigPath := filepath.Join(dir, "config.local.yaml")

	if _, err := os.Stat(localConfigPath); err == nil {
		configPath = localConfigPath
	}

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	// 环境变量覆盖
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("upstream.timeout", 10*time.Second)
	viper.SetDefault("upstream.feed", "websocket")
	viper.SetDefault("tracker.poll_interval", 5*time.Second)
	viper.SetDefault("tracker.retention_days", 90)
	viper.SetDefault("status.poll_interval", 15*time.Second)
	viper.SetDefault("status.fast_interval", 5*time.Second)
	viper.SetDefault("jwt.ticket_expire_sec", 300)
	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.path", "prodscope.db")
}
