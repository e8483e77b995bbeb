package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	Env       string          `mapstructure:"env"` // 环境: development, production
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Approval  ApprovalConfig  `mapstructure:"approval"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"` // postgres, sqlite
	Path            string `mapstructure:"path"`   // sqlite 文件路径
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // 秒
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // 秒
}

// AuthConfig 身份认证配置
type AuthConfig struct {
	Mode       string         `mapstructure:"mode"` // keycloak, header
	Keycloak   KeycloakConfig `mapstructure:"keycloak"`
	UserHeader string         `mapstructure:"user_header"`
	RoleHeader string         `mapstructure:"role_header"`
}

// KeycloakConfig Keycloak 配置
type KeycloakConfig struct {
	Issuer  string `mapstructure:"issuer"`
	JWKSURL string `mapstructure:"jwks_url"`
}

// ChainConfig 发起人角色对应的审批层级链
type ChainConfig struct {
	Role   string `mapstructure:"role" json:"role" yaml:"role"`
	Levels []int  `mapstructure:"levels" json:"levels" yaml:"levels"`
}

// LevelConfig 审批层级及其授权角色
type LevelConfig struct {
	Level int      `mapstructure:"level" json:"level" yaml:"level"`
	Roles []string `mapstructure:"roles" json:"roles" yaml:"roles"`
}

// ApprovalConfig 审批引擎配置
type ApprovalConfig struct {
	Chains        []ChainConfig `mapstructure:"chains" json:"chains" yaml:"chains"`
	Levels        []LevelConfig `mapstructure:"levels" json:"levels" yaml:"levels"`
	OverrideRoles []string      `mapstructure:"override_roles" json:"override_roles" yaml:"override_roles"`
	SystemRoles   []string      `mapstructure:"system_roles" json:"system_roles" yaml:"system_roles"`
	Types         []string      `mapstructure:"types" json:"types,omitempty" yaml:"types,omitempty"` // 为空时不限制请求类型
	MaxRetries    int           `mapstructure:"max_retries" json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
}

// NotifyConfig 状态变更通知配置
type NotifyConfig struct {
	Webhooks   []string `mapstructure:"webhooks"`
	Workers    int      `mapstructure:"workers"`
	QueueSize  int      `mapstructure:"queue_size"`
	MaxRetries int      `mapstructure:"max_retries"`
	Timeout    int      `mapstructure:"timeout"` // 秒
}

// CORSConfig CORS 配置
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	MaxAge         int      `mapstructure:"max_age"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error
	Format string `mapstructure:"format"` // 日志格式: json, text
	Output string `mapstructure:"output"` // 输出位置: stdout, file, both
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// TracingConfig 链路追踪配置
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}

// Load 加载配置,支持配置文件和环境变量
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// 设置默认值
	setDefaults(v)

	// 如果提供了配置文件路径,从文件加载
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		// 尝试从默认位置加载
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.erp-approval")
		// 忽略配置文件不存在的错误,使用默认值
		_ = v.ReadInConfig()
	}

	bindEnv(v)

	return unmarshal(v)
}

// IsProduction 判断是否为生产环境
func IsProduction(cfg *Config) bool {
	if cfg == nil {
		return false
	}
	return cfg.Env == "production"
}

// Default 返回默认配置
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Validate 校验配置
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}
	switch c.Auth.Mode {
	case "keycloak":
		if c.Auth.Keycloak.Issuer == "" {
			return fmt.Errorf("auth.keycloak.issuer is required in keycloak mode")
		}
	case "header":
	default:
		return fmt.Errorf("unsupported auth mode %q", c.Auth.Mode)
	}
	if len(c.Approval.Chains) == 0 {
		return fmt.Errorf("approval.chains must not be empty")
	}
	if c.Approval.MaxRetries < 1 {
		return fmt.Errorf("approval.max_retries must be at least 1")
	}
	return nil
}

func bindEnv(v *viper.Viper) {
	// 支持环境变量
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// setDefaults 设置配置默认值
func setDefaults(v *viper.Viper) {
	// 环境变量
	env := v.GetString("env")
	if env == "" {
		env = os.Getenv("APP_ENV")
		if env == "" {
			env = "development"
		}
	}
	v.SetDefault("env", env)

	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	// 数据库默认配置
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.path", "erp-approval.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "erp")
	v.SetDefault("database.sslmode", "disable")

	// 数据库连接池配置（根据环境设置默认值）
	if env == "production" {
		v.SetDefault("database.max_idle_conns", 20)
		v.SetDefault("database.max_open_conns", 200)
		v.SetDefault("database.conn_max_lifetime", 3600) // 1 小时
		v.SetDefault("database.conn_max_idle_time", 300) // 5 分钟
	} else {
		v.SetDefault("database.max_idle_conns", 10)
		v.SetDefault("database.max_open_conns", 100)
		v.SetDefault("database.conn_max_lifetime", 3600) // 1 小时
		v.SetDefault("database.conn_max_idle_time", 600) // 10 分钟
	}

	// 认证默认配置
	v.SetDefault("auth.mode", "header")
	v.SetDefault("auth.keycloak.issuer", "")
	v.SetDefault("auth.keycloak.jwks_url", "")
	v.SetDefault("auth.user_header", "X-User-ID")
	v.SetDefault("auth.role_header", "X-User-Role")

	// 审批层级默认配置
	v.SetDefault("approval.chains", []map[string]interface{}{
		{"role": "medical_rep", "levels": []int{3, 4, 3, 3}},
		{"role": "sales_rep", "levels": []int{3, 4, 2}},
		{"role": "warehouse_keeper", "levels": []int{3, 2}},
		{"role": "manager", "levels": []int{4, 2}},
		{"role": "accountant", "levels": []int{3, 2}},
		{"role": "gm", "levels": []int{2}},
		{"role": "admin", "levels": []int{1}},
	})
	v.SetDefault("approval.levels", []map[string]interface{}{
		{"level": 1, "roles": []string{"admin"}},
		{"level": 2, "roles": []string{"gm"}},
		{"level": 3, "roles": []string{"manager"}},
		{"level": 4, "roles": []string{"accountant"}},
	})
	v.SetDefault("approval.override_roles", []string{"admin", "gm"})
	v.SetDefault("approval.system_roles", []string{"admin", "gm"})
	// 显式配置为空列表时不限制请求类型
	v.SetDefault("approval.types", []string{"order", "debt_writeoff", "invoice", "clinic_record", "stock_transfer"})
	v.SetDefault("approval.max_retries", 3)

	// 通知默认配置
	v.SetDefault("notify.webhooks", []string{})
	v.SetDefault("notify.workers", 5)
	v.SetDefault("notify.queue_size", 1000)
	v.SetDefault("notify.max_retries", 3)
	v.SetDefault("notify.timeout", 10)

	// CORS 默认配置
	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "Authorization", "X-Request-ID", "X-User-ID", "X-User-Role"})
	v.SetDefault("cors.max_age", 86400)

	// 日志配置（根据环境设置默认值）
	if env == "production" {
		v.SetDefault("log.level", "warn")
		v.SetDefault("log.format", "json")
	} else {
		v.SetDefault("log.level", "debug")
		v.SetDefault("log.format", "text")
	}
	v.SetDefault("log.output", "stdout")

	// 限流默认配置
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.rps", 50)
	v.SetDefault("rate_limit.burst", 100)

	// 链路追踪默认配置
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "erp-approval")
}
