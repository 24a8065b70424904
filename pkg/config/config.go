// Package config 提供 TOML 配置加载、环境变量覆盖与校验
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 服务配置
type Config struct {
	// 服务名称
	ServiceName string `mapstructure:"service_name"`
	// 服务版本
	Version string `mapstructure:"version"`
	// 环境：dev, staging, prod
	Environment string `mapstructure:"environment"`
	// HTTP 服务配置
	HTTP HTTPConfig `mapstructure:"http"`
	// 数据库配置
	Database DatabaseConfig `mapstructure:"database"`
	// Redis 配置
	Redis RedisConfig `mapstructure:"redis"`
	// Kafka 配置
	Kafka KafkaConfig `mapstructure:"kafka"`
	// 日志配置
	Logger LoggerConfig `mapstructure:"logger"`
	// 指标配置
	Metrics MetricsConfig `mapstructure:"metrics"`
	// 鉴权配置
	Auth AuthConfig `mapstructure:"auth"`
	// 业务规则
	Policy PolicyConfig `mapstructure:"policy"`
	// 定时任务
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	// 通知
	Notify NotifyConfig `mapstructure:"notify"`
	// 限流
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	// ID 生成器
	IDGen IDGenConfig `mapstructure:"idgen"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	// 监听地址
	Host string `mapstructure:"host"`
	// 监听端口
	Port int `mapstructure:"port"`
	// 读超时（秒）
	ReadTimeout int `mapstructure:"read_timeout"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动：memory, mysql, sqlite
	Driver string `mapstructure:"driver"`
	// 数据源名称
	DSN string `mapstructure:"dsn"`
	// 最大连接数
	MaxOpenConns int `mapstructure:"max_open_conns"`
	// 最大空闲连接数
	MaxIdleConns int `mapstructure:"max_idle_conns"`
	// 连接最大生命周期（秒）
	ConnMaxLifetime int `mapstructure:"conn_max_lifetime"`
	// 是否启用 SQL 日志
	LogEnabled bool `mapstructure:"log_enabled"`
	// 慢查询阈值（毫秒）
	SlowQueryThreshold int `mapstructure:"slow_query_threshold"`
	// 启动时自动建表
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// RedisConfig Redis 配置，Host 为空表示不启用
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// 密码
	Password string `mapstructure:"password"`
	// 数据库编号
	DB int `mapstructure:"db"`
	// 最大连接数
	MaxPoolSize int `mapstructure:"max_pool_size"`
	// 连接超时（秒）
	ConnTimeout int `mapstructure:"conn_timeout"`
	// 读超时（秒）
	ReadTimeout int `mapstructure:"read_timeout"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout"`
	// 账户缓存 TTL（秒）
	CacheTTL int `mapstructure:"cache_ttl"`
}

// Enabled 是否配置了 Redis
func (r RedisConfig) Enabled() bool { return r.Host != "" }

// KafkaConfig Kafka 配置，Brokers 为空表示不启用
type KafkaConfig struct {
	// Broker 地址列表
	Brokers []string `mapstructure:"brokers"`
	// 最大重试次数
	MaxRetries int `mapstructure:"max_retries"`
	// 重试退避（毫秒）
	RetryBackoff int `mapstructure:"retry_backoff"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	WithCaller bool   `mapstructure:"with_caller"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `mapstructure:"enabled"`
	// 指标路径
	Path string `mapstructure:"path"`
}

// AuthConfig 鉴权配置
type AuthConfig struct {
	// 管理员共享密钥，经 X-Admin-Secret 传递
	AdminSecret string `mapstructure:"admin_secret"`
	// 访问令牌签名密钥
	JWTSecret string `mapstructure:"jwt_secret"`
	// 访问令牌有效期（分钟）
	TokenTTL int `mapstructure:"token_ttl"`
	// bcrypt 成本
	BcryptCost int `mapstructure:"bcrypt_cost"`
}

// PolicyConfig 投资与结算规则，金额与比例均为十进制字符串
type PolicyConfig struct {
	MinAmount             string `mapstructure:"min_amount"`
	MaxAmount             string `mapstructure:"max_amount"`
	DailyRate             string `mapstructure:"daily_rate"`
	SundayBonus           string `mapstructure:"sunday_bonus"`
	ReferralReward        string `mapstructure:"referral_reward"`
	WithdrawalFeeRate     string `mapstructure:"withdrawal_fee_rate"`
	WithdrawalWeekday     string `mapstructure:"withdrawal_weekday"`
	MaxFailedLogins       int    `mapstructure:"max_failed_logins"`
	JoiningFee            string `mapstructure:"joining_fee"`
	SundayJoiningDiscount string `mapstructure:"sunday_joining_discount"`
}

// SchedulerConfig 定时任务配置
type SchedulerConfig struct {
	// 是否启用计息任务
	Enabled bool `mapstructure:"enabled"`
	// 计息任务 cron 表达式
	AccrualSchedule string `mapstructure:"accrual_schedule"`
}

// NotifyConfig 通知配置
type NotifyConfig struct {
	// Kafka 主题
	Topic string `mapstructure:"topic"`
	// 运营人员手机号（日志通知目标）
	OperatorPhone string `mapstructure:"operator_phone"`
}

// RateLimitConfig 限流配置（依赖 Redis）
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	QPS     int  `mapstructure:"qps"`
	Burst   int  `mapstructure:"burst"`
}

// IDGenConfig 雪花 ID 配置
type IDGenConfig struct {
	NodeID int64 `mapstructure:"node_id"`
}

// Load 从 TOML 文件加载配置，支持默认值与 APP_ 前缀的环境变量覆盖。
// 配置文件不存在时仅使用默认值与环境变量。
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "memory", "sqlite":
	case "mysql":
		if c.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for %s driver", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	if c.Auth.AdminSecret == "" {
		return fmt.Errorf("auth.admin_secret is required")
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	if c.Policy.MaxFailedLogins <= 0 {
		return fmt.Errorf("invalid policy.max_failed_logins: %d", c.Policy.MaxFailedLogins)
	}
	if c.RateLimit.Enabled && !c.Redis.Enabled() {
		return fmt.Errorf("rate_limit requires redis")
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "bonus")
	v.SetDefault("environment", "dev")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)

	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.log_enabled", false)
	v.SetDefault("database.slow_query_threshold", 1000)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_pool_size", 10)
	v.SetDefault("redis.conn_timeout", 5)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)
	v.SetDefault("redis.cache_ttl", 3600)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.max_retries", 3)
	v.SetDefault("kafka.retry_backoff", 100)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/bonus.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("auth.admin_secret", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 60)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("policy.min_amount", "500")
	v.SetDefault("policy.max_amount", "300000")
	v.SetDefault("policy.daily_rate", "0.10")
	v.SetDefault("policy.sunday_bonus", "0.05")
	v.SetDefault("policy.referral_reward", "200")
	v.SetDefault("policy.withdrawal_fee_rate", "0.25")
	v.SetDefault("policy.withdrawal_weekday", "monday")
	v.SetDefault("policy.max_failed_logins", 3)
	v.SetDefault("policy.joining_fee", "1000")
	v.SetDefault("policy.sunday_joining_discount", "0.05")

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.accrual_schedule", "@every 1h")

	v.SetDefault("notify.topic", "bonus.notifications")
	v.SetDefault("notify.operator_phone", "")

	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.qps", 5)
	v.SetDefault("rate_limit.burst", 10)

	v.SetDefault("idgen.node_id", 1)
}

// GetEnv 获取环境变量，支持默认值
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
