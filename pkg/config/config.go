package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	once   sync.Once
	config *Config
)

// Config 全局配置结构
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	Permission PermissionConfig `mapstructure:"permission"`
	Casbin     CasbinConfig     `mapstructure:"casbin"`
	Log        LogConfig        `mapstructure:"log"`
	RateLimit  RateLimitConfig  `mapstructure:"rateLimit"`
	Login      LoginConfig      `mapstructure:"login"`
}

// AppConfig 应用配置
type AppConfig struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	HTTP HTTPConfig `mapstructure:"http"`
}

// HTTPConfig HTTP服务配置
type HTTPConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`
	WriteTimeout int    `mapstructure:"writeTimeout"`
}

// Addr 监听地址
func (c *HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Database     string `mapstructure:"database"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Charset      string `mapstructure:"charset"`
	MaxIdleConns int    `mapstructure:"maxIdleConns"`
	MaxOpenConns int    `mapstructure:"maxOpenConns"`
	LogLevel     string `mapstructure:"logLevel"`
}

// DSN 生成数据库连接字符串
func (c *DatabaseConfig) DSN() string {
	switch c.Driver {
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=True&loc=Local",
			c.Username, c.Password, c.Host, c.Port, c.Database, c.Charset)
	case "postgres":
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			c.Host, c.Port, c.Username, c.Password, c.Database)
	case "sqlite":
		// 空库名使用内存数据库
		if c.Database == "" {
			return ":memory:"
		}
		return c.Database
	default:
		return ""
	}
}

// RedisConfig Redis配置
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"poolSize"`
	Mode     string `mapstructure:"mode"` // "standalone" 外部 Redis, "memory" 内存模式
}

// Addr 获取Redis地址
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret string `mapstructure:"secret"`
	Issuer string `mapstructure:"issuer"`
	Expire int64  `mapstructure:"expire"` // 秒
}

// MinSecretLength HS256 密钥的最小推荐长度
const MinSecretLength = 32

// DefaultJWTExpire 令牌默认有效期（秒）
const DefaultJWTExpire int64 = 7200

var placeholderSecrets = []string{"secret", "changeme", "change-me", "your-secret-key", "jwt-secret"}

// Lifetime 令牌有效期，expire 非正数时使用 DefaultJWTExpire
func (c *JWTConfig) Lifetime() time.Duration {
	if c.Expire <= 0 {
		return time.Duration(DefaultJWTExpire) * time.Second
	}
	return time.Duration(c.Expire) * time.Second
}

// Validate 检查签名密钥强度，返回需要以 warn 级别输出的告警
func (c *JWTConfig) Validate() []string {
	var warnings []string
	switch {
	case c.Secret == "":
		warnings = append(warnings, "jwt.secret 未配置")
	case len(c.Secret) < MinSecretLength:
		warnings = append(warnings, fmt.Sprintf("jwt.secret 长度不足 %d 字节", MinSecretLength))
	}
	for _, p := range placeholderSecrets {
		if strings.EqualFold(c.Secret, p) {
			warnings = append(warnings, "jwt.secret 使用了示例占位值")
			break
		}
	}
	if c.Expire <= 0 {
		warnings = append(warnings, fmt.Sprintf("jwt.expire 非正数，使用默认值 %d 秒", DefaultJWTExpire))
	}
	return warnings
}

// PermissionConfig 权限缓存配置
type PermissionConfig struct {
	CacheTTL int64  `mapstructure:"cacheTTL"` // 秒
	Source   string `mapstructure:"source"`   // "database" 或 "casbin"
}

// TTL 权限快照有效期
func (c *PermissionConfig) TTL() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// CasbinConfig Casbin配置
type CasbinConfig struct {
	ModelPath string `mapstructure:"modelPath"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"maxSize"`
	MaxBackups int    `mapstructure:"maxBackups"`
	MaxAge     int    `mapstructure:"maxAge"`
	Compress   bool   `mapstructure:"compress"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Rate  float64 `mapstructure:"rate"` // 每秒请求数，0 表示关闭
	Burst int     `mapstructure:"burst"`
}

// LoginConfig 登录保护配置
type LoginConfig struct {
	MaxFailures int `mapstructure:"maxFailures"`
	LockSeconds int `mapstructure:"lockSeconds"`
}

// LockDuration 锁定时长
func (c *LoginConfig) LockDuration() time.Duration {
	return time.Duration(c.LockSeconds) * time.Second
}

// Init 初始化配置
func Init(configPath string) error {
	var err error
	once.Do(func() {
		config, err = Load(configPath)
	})
	return err
}

// Load 加载配置文件，不修改全局实例
func Load(configPath string) (*Config, error) {
	// .env 不存在不报错
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// 加载环境特定配置
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = v.GetString("app.env")
	}

	if env != "" && env != "default" {
		v.SetConfigName(fmt.Sprintf("config.%s", env))
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to merge env config: %w", err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	resolveEnvVars(cfg)
	return cfg, nil
}

// setDefaults 默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "goadmin")
	v.SetDefault("server.http.host", "0.0.0.0")
	v.SetDefault("server.http.port", 8080)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.maxIdleConns", 10)
	v.SetDefault("database.maxOpenConns", 50)
	v.SetDefault("redis.mode", "memory")
	v.SetDefault("jwt.issuer", "goadmin")
	v.SetDefault("jwt.expire", DefaultJWTExpire)
	v.SetDefault("permission.cacheTTL", 3600)
	v.SetDefault("permission.source", "database")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "console")
	v.SetDefault("rateLimit.rate", 50)
	v.SetDefault("rateLimit.burst", 100)
	v.SetDefault("login.maxFailures", 5)
	v.SetDefault("login.lockSeconds", 900)
}

// resolveEnvVars 解析环境变量占位符
func resolveEnvVars(cfg *Config) {
	cfg.Database.Host = resolveEnvVar(cfg.Database.Host)
	cfg.Database.Username = resolveEnvVar(cfg.Database.Username)
	cfg.Database.Password = resolveEnvVar(cfg.Database.Password)
	cfg.Database.Database = resolveEnvVar(cfg.Database.Database)
	cfg.Redis.Host = resolveEnvVar(cfg.Redis.Host)
	cfg.Redis.Password = resolveEnvVar(cfg.Redis.Password)
	cfg.JWT.Secret = resolveEnvVar(cfg.JWT.Secret)
}

// resolveEnvVar 解析单个环境变量
func resolveEnvVar(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		envKey := strings.TrimSuffix(strings.TrimPrefix(value, "${"), "}")
		if envValue := os.Getenv(envKey); envValue != "" {
			return envValue
		}
	}
	return value
}

// Get 获取配置实例
func Get() *Config {
	if config == nil {
		panic("config not initialized, call Init first")
	}
	return config
}

// IsDev 是否为开发环境
func IsDev() bool {
	return Get().App.Env == "dev" || Get().App.Env == "development"
}

// IsProd 是否为生产环境
func IsProd() bool {
	return Get().App.Env == "prod" || Get().App.Env == "production"
}
