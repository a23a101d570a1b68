// 包 config：集中读取环境变量（支持 .env），供 CLI 与城市存储服务共用
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"worldwise/internal/errs"
	"worldwise/internal/logger"
)

type Config struct {
	Client   ClientConfig
	Server   ServerConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Auth     AuthConfig
}

// ClientConfig：客户端访问的两个远端服务
type ClientConfig struct {
	CityAPIURL  string
	GeocodeURL  string
	HTTPTimeout time.Duration
	GeoIPPath   string
}

type ServerConfig struct {
	Addr             string
	APIBase          string
	CacheTTL         time.Duration
	RateLimitEnabled bool
	RateLimitQPS     int
	// TLS 默认关闭；开启后证书缺失时生成自签名证书
	TLSEnabled  bool
	TLSCertPath string
	TLSKeyPath  string
}

type PostgresConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	DB           string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	DB       int
}

// AuthConfig：CLI 登录凭据，仅用于驱动内存态的访问门禁
type AuthConfig struct {
	Email    string
	Password string
}

const (
	DefaultCityAPIURL = "http://localhost:9000"
	DefaultGeocodeURL = "https://api.bigdatacloud.net/data/reverse-geocode-client"
)

// Load：读取 .env 与 data/env/.env 后从环境变量构建配置
// 约束：.env 缺失不视为错误；已存在的环境变量优先于文件内容
func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
	cfg := FromEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv：仅从当前进程环境构建配置，不读取文件
func FromEnv() *Config {
	return &Config{
		Client: ClientConfig{
			CityAPIURL:  strings.TrimRight(getEnv("CITY_API_URL", DefaultCityAPIURL), "/"),
			GeocodeURL:  getEnv("GEOCODE_URL", DefaultGeocodeURL),
			HTTPTimeout: time.Duration(getEnvAsInt("HTTP_TIMEOUT_MS", 5000)) * time.Millisecond,
			GeoIPPath:   getEnv("GEOIP_DB_PATH", filepath.Join("data", "geoip", "GeoLite2-City.mmdb")),
		},
		Server: ServerConfig{
			Addr:             getEnv("ADDR", ":9000"),
			APIBase:          strings.TrimRight(getEnv("API_BASE", ""), "/"),
			CacheTTL:         time.Duration(getEnvAsInt("CACHE_TTL_S", 3600)) * time.Second,
			RateLimitEnabled: getEnvAsBool("RATE_LIMIT_ENABLED", false),
			RateLimitQPS:     getEnvAsInt("RATE_LIMIT_QPS", 200),
			TLSEnabled:       getEnvAsBool("TLS_ENABLE", false),
			TLSCertPath:      getEnv("TLS_CERT_PATH", filepath.Join("data", "certs", "server.crt")),
			TLSKeyPath:       getEnv("TLS_KEY_PATH", filepath.Join("data", "certs", "server.key")),
		},
		Postgres: PostgresConfig{
			Host:         getEnv("PG_HOST", "localhost"),
			Port:         getEnv("PG_PORT", "5432"),
			User:         getEnv("PG_USER", "postgres"),
			Password:     os.Getenv("PG_PASSWORD"),
			DB:           getEnv("PG_DB", "worldwise"),
			SSLMode:      getEnv("PG_SSLMODE", "disable"),
			MaxOpenConns: getEnvAsInt("PG_MAX_OPEN_CONNS", 50),
			MaxIdleConns: getEnvAsInt("PG_MAX_IDLE_CONNS", 25),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "127.0.0.1"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: os.Getenv("REDIS_PASS"),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			Email:    os.Getenv("WORLDWISE_EMAIL"),
			Password: os.Getenv("WORLDWISE_PASSWORD"),
		},
	}
}

func (c *Config) Validate() error {
	if c.Client.CityAPIURL == "" {
		return errs.New(errs.KindConfig, "config.Validate", "CITY_API_URL is required")
	}
	if c.Client.GeocodeURL == "" {
		return errs.New(errs.KindConfig, "config.Validate", "GEOCODE_URL is required")
	}
	if c.Client.HTTPTimeout <= 0 {
		return errs.New(errs.KindConfig, "config.Validate", "HTTP_TIMEOUT_MS must be positive")
	}
	if c.Server.RateLimitEnabled && c.Server.RateLimitQPS <= 0 {
		return errs.New(errs.KindConfig, "config.Validate", "RATE_LIMIT_QPS must be positive")
	}
	return nil
}

// PostgresDSN：拼装 lib/pq 可识别的 URL 形式 DSN
func (c *Config) PostgresDSN() string {
	p := c.Postgres
	dsn := "postgres://" + p.User
	if p.Password != "" {
		dsn += ":" + p.Password
	}
	return dsn + "@" + p.Host + ":" + p.Port + "/" + p.DB + "?sslmode=" + p.SSLMode
}

func (c *Config) RedisAddr() string { return c.Redis.Host + ":" + c.Redis.Port }

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvAsInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		logger.L().Warn("config_invalid_int", "key", key, "value", s, "default", def)
		return def
	}
	return n
}

func getEnvAsBool(key string, def bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		logger.L().Warn("config_invalid_bool", "key", key, "value", s, "default", def)
		return def
	}
	return b
}
