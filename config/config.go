package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath 默认配置文件路径
const DefaultConfigPath = "config/config.yaml"

// Config 应用配置结构体
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	JWT        JWTConfig        `yaml:"jwt"`
	Log        LogConfig        `yaml:"log"`
	Redis      RedisConfig      `yaml:"redis"`
	WebSocket  WebSocketConfig  `yaml:"websocket"`
	Cloudinary CloudinaryConfig `yaml:"cloudinary"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port         string        `yaml:"port"`         // 服务器监听端口
	ReadTimeout  time.Duration `yaml:"readTimeout"`  // 读取超时时间
	WriteTimeout time.Duration `yaml:"writeTimeout"` // 写入超时时间
	IdleTimeout  time.Duration `yaml:"idleTimeout"`  // 空闲超时时间
	MaxUpload    int64         `yaml:"maxUpload"`    // multipart 上传最大字节数
	// AllowedOrigins 跨域白名单，"*" 表示全部
	AllowedOrigins []string `yaml:"allowedOrigins"`
}

// DatabaseConfig 数据库配置
// Driver 取值 mysql / postgres / sqlite；DSN 非空时优先于主机字段
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	DSN      string `yaml:"dsn"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	Charset  string `yaml:"charset"`
	SSLMode  string `yaml:"sslMode"`
	MaxIdle  int    `yaml:"maxIdle"` // 最大空闲连接数
	MaxOpen  int    `yaml:"maxOpen"` // 最大打开连接数
	LogSQL   bool   `yaml:"logSQL"`  // 是否打印SQL
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret     string        `yaml:"secret"`     // JWT密钥
	ExpireTime time.Duration `yaml:"expireTime"` // JWT过期时间
	Issuer     string        `yaml:"issuer"`     // JWT签发者
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level"`      // 日志级别
	Filename   string `yaml:"filename"`   // 日志文件名，为空时输出到stdout
	MaxSize    int    `yaml:"maxSize"`    // 单个日志文件最大大小(MB)
	MaxBackups int    `yaml:"maxBackups"` // 最大备份文件数
	MaxAge     int    `yaml:"maxAge"`     // 最大保存天数
	Compress   bool   `yaml:"compress"`   // 是否压缩
}

// RedisConfig Redis配置，Enabled 为 false 时不连接
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// WebSocketConfig WebSocket 心跳配置
type WebSocketConfig struct {
	PingInterval time.Duration `yaml:"pingInterval"` // 发送ping的间隔
	ReadTimeout  time.Duration `yaml:"readTimeout"`  // 读超时时间（未收到任何数据则断开）
	SendBuffer   int           `yaml:"sendBuffer"`   // 每个连接的发送队列长度
}

// CloudinaryConfig 媒体托管配置
type CloudinaryConfig struct {
	CloudName     string `yaml:"cloudName"`
	APIKey        string `yaml:"apiKey"`
	APISecret     string `yaml:"apiSecret"`
	ProfileFolder string `yaml:"profileFolder"`
	PostFolder    string `yaml:"postFolder"`
}

// LoadConfig 加载配置（YAML文件 + .env + 环境变量）
func LoadConfig() *Config {
	return LoadConfigFrom(DefaultConfigPath)
}

// LoadConfigFrom 从指定路径加载配置
func LoadConfigFrom(filePath string) *Config {
	// .env 不存在时忽略
	_ = godotenv.Load()

	config := loadFromYAML(filePath)
	overrideWithEnvVars(config)
	return config
}

// loadFromYAML 从YAML文件加载配置，文件中缺失的字段保留默认值
func loadFromYAML(filePath string) *Config {
	config := getDefaultConfig()

	data, err := os.ReadFile(filePath)
	if err != nil {
		return config
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return getDefaultConfig()
	}

	return config
}

// overrideWithEnvVars 用环境变量覆盖配置，未设置或解析失败的变量不生效
func overrideWithEnvVars(c *Config) {
	srv := &c.Server
	envString(&srv.Port, "SERVER_PORT", "PORT")
	envDuration(&srv.ReadTimeout, "SERVER_READ_TIMEOUT")
	envDuration(&srv.WriteTimeout, "SERVER_WRITE_TIMEOUT")
	envDuration(&srv.IdleTimeout, "SERVER_IDLE_TIMEOUT")
	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		srv.AllowedOrigins = splitList(origins)
	}

	db := &c.Database
	envString(&db.Driver, "DB_DRIVER")
	envString(&db.DSN, "DB_DSN", "DATABASE_URL")
	envString(&db.Host, "DB_HOST")
	envInt(&db.Port, "DB_PORT", 1)
	envString(&db.Username, "DB_USERNAME")
	envString(&db.Password, "DB_PASSWORD")
	envString(&db.Database, "DB_DATABASE")
	envInt(&db.MaxIdle, "DB_MAX_IDLE", 1)
	envInt(&db.MaxOpen, "DB_MAX_OPEN", 1)
	envBool(&db.LogSQL, "DB_LOG_SQL")

	envString(&c.JWT.Secret, "JWT_SECRET")
	envDuration(&c.JWT.ExpireTime, "JWT_EXPIRE_TIME")
	envString(&c.JWT.Issuer, "JWT_ISSUER")

	envString(&c.Log.Level, "LOG_LEVEL")
	envString(&c.Log.Filename, "LOG_FILENAME")
	envInt(&c.Log.MaxSize, "LOG_MAX_SIZE", 1)
	envInt(&c.Log.MaxBackups, "LOG_MAX_BACKUPS", 1)
	envInt(&c.Log.MaxAge, "LOG_MAX_AGE", 1)

	envBool(&c.Redis.Enabled, "REDIS_ENABLED")
	envString(&c.Redis.Host, "REDIS_HOST")
	envInt(&c.Redis.Port, "REDIS_PORT", 1)
	envString(&c.Redis.Password, "REDIS_PASSWORD")
	envInt(&c.Redis.DB, "REDIS_DB", 0)

	envDuration(&c.WebSocket.PingInterval, "WS_PING_INTERVAL")
	envDuration(&c.WebSocket.ReadTimeout, "WS_READ_TIMEOUT")
	envInt(&c.WebSocket.SendBuffer, "WS_SEND_BUFFER", 1)

	envString(&c.Cloudinary.CloudName, "CLOUDINARY_CLOUD_NAME")
	envString(&c.Cloudinary.APIKey, "CLOUDINARY_API_KEY")
	envString(&c.Cloudinary.APISecret, "CLOUDINARY_API_SECRET")
}

// getDefaultConfig 获取默认配置
func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			MaxUpload:    10 << 20,

			AllowedOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Driver:   "mysql",
			Host:     "localhost",
			Port:     3306,
			Username: "peoplegrid",
			Password: "",
			Database: "peoplegrid",
			Charset:  "utf8mb4",
			SSLMode:  "disable",
			MaxIdle:  10,
			MaxOpen:  100,
		},
		JWT: JWTConfig{
			Secret:     "change-me",
			ExpireTime: time.Hour,
			Issuer:     "peoplegrid",
		},
		Log: LogConfig{
			Level:      "info",
			Filename:   "logs/app.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
		Redis: RedisConfig{
			Enabled: false,
			Host:    "localhost",
			Port:    6379,
			DB:      0,
		},
		WebSocket: WebSocketConfig{
			PingInterval: 30 * time.Second,
			ReadTimeout:  90 * time.Second,
			SendBuffer:   256,
		},
		Cloudinary: CloudinaryConfig{
			ProfileFolder: "peoplegrid_profiles",
			PostFolder:    "peoplegrid_posts",
		},
	}
}

// envString 按顺序读取，后面的变量优先
func envString(dst *string, keys ...string) {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
}

// envInt 小于 min 的值视为无效
func envInt(dst *int, key string, min int) {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v >= min {
		*dst = v
	}
}

func envBool(dst *bool, key string) {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		*dst = v
	}
}

func envDuration(dst *time.Duration, key string) {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil && v > 0 {
		*dst = v
	}
}

// splitList 逗号分隔的列表，忽略空项
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
