package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config представляет конфигурацию приложения
type Config struct {
	Server    ServerConfig    `json:"server"`
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Kafka     KafkaConfig     `json:"kafka"`
	Logger    LoggerConfig    `json:"logger"`
	Cache     CacheConfig     `json:"cache"`
	RateLimit RateLimitConfig `json:"rate_limit"`
	Dispatch  DispatchConfig  `json:"dispatch"`
	Hub       HubConfig       `json:"hub"`
	Push      PushConfig      `json:"push"`
}

// ServerConfig представляет конфигурацию HTTP сервера
type ServerConfig struct {
	Port            string `json:"port"`
	Host            string `json:"host"`
	ReadTimeout     int    `json:"read_timeout"`
	ShutdownTimeout int    `json:"shutdown_timeout"`
}

// DatabaseConfig представляет конфигурацию базы данных
type DatabaseConfig struct {
	Host         string `json:"host"`
	Port         string `json:"port"`
	User         string `json:"user"`
	Password     string `json:"password"`
	DBName       string `json:"db_name"`
	SSLMode      string `json:"ssl_mode"`
	MaxOpenConns int    `json:"max_open_conns"`
	MaxIdleConns int    `json:"max_idle_conns"`
}

// RedisConfig представляет конфигурацию Redis
type RedisConfig struct {
	Host     string `json:"host"`
	Port     string `json:"port"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// KafkaConfig представляет конфигурацию Kafka
type KafkaConfig struct {
	Enabled bool     `json:"enabled"`
	Brokers []string `json:"brokers"`
	GroupID string   `json:"group_id"`
	Topics  Topics   `json:"topics"`
}

// Topics представляет список топиков Kafka
type Topics struct {
	Orders    string `json:"orders"`
	Couriers  string `json:"couriers"`
	Locations string `json:"locations"`
}

// LoggerConfig представляет конфигурацию логгера
type LoggerConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	File   string `json:"file"`
}

// CacheConfig представляет конфигурацию кеша последних координат
type CacheConfig struct {
	Enabled     bool `json:"enabled"`
	LocationTTL int  `json:"location_ttl"` // секунды
}

// RateLimitConfig ограничивает частоту подключений к /ws с одного IP
type RateLimitConfig struct {
	Enabled     bool `json:"enabled"`
	PerMinute   int  `json:"per_minute"`
	BanDuration int  `json:"ban_duration"` // секунды
}

// DispatchConfig представляет параметры назначения курьеров
type DispatchConfig struct {
	MaxDistanceKm float64 `json:"max_distance_km"`
	// RetrySchedule - cron-выражение для повторного назначения; пустая строка отключает задачу
	RetrySchedule  string `json:"retry_schedule"`
	RetryBatchSize int    `json:"retry_batch_size"`
}

// HubConfig представляет параметры websocket-хаба
type HubConfig struct {
	SendBuffer     int           `json:"send_buffer"`
	MaxMessageSize int64         `json:"max_message_size"`
	WriteTimeout   time.Duration `json:"write_timeout"`
	PongTimeout    time.Duration `json:"pong_timeout"`
	PingInterval   time.Duration `json:"ping_interval"`
	AllowedOrigins []string      `json:"allowed_origins"`
}

// PushConfig представляет параметры клиента push API
type PushConfig struct {
	BaseURL string        `json:"base_url"`
	Timeout time.Duration `json:"timeout"`
}

// Load загружает конфигурацию из переменных окружения (и файла .env, если он есть)
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:            getEnv("SERVER_PORT", "8080"),
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getEnvAsInt("SERVER_READ_TIMEOUT", 10),
			ShutdownTimeout: getEnvAsInt("SERVER_SHUTDOWN_TIMEOUT", 30),
		},
		Database: DatabaseConfig{
			Host:         getEnv("DB_HOST", "localhost"),
			Port:         getEnv("DB_PORT", "5432"),
			User:         getEnv("DB_USER", "delivery_user"),
			Password:     getEnv("DB_PASSWORD", "delivery_pass"),
			DBName:       getEnv("DB_NAME", "delivery_system"),
			SSLMode:      getEnv("DB_SSL_MODE", "disable"),
			MaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Kafka: KafkaConfig{
			Enabled: getEnvAsBool("KAFKA_ENABLED", true),
			Brokers: getEnvAsSlice("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getEnv("KAFKA_GROUP_ID", "dispatch-service"),
			Topics: Topics{
				Orders:    getEnv("KAFKA_TOPIC_ORDERS", "orders"),
				Couriers:  getEnv("KAFKA_TOPIC_COURIERS", "couriers"),
				Locations: getEnv("KAFKA_TOPIC_LOCATIONS", "locations"),
			},
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
			File:   getEnv("LOG_FILE", ""),
		},
		Cache: CacheConfig{
			Enabled:     getEnvAsBool("CACHE_ENABLED", true),
			LocationTTL: getEnvAsInt("CACHE_LOCATION_TTL", 600), // 10 минут
		},
		RateLimit: RateLimitConfig{
			Enabled:     getEnvAsBool("RATE_LIMIT_ENABLED", true),
			PerMinute:   getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),
			BanDuration: getEnvAsInt("RATE_LIMIT_BAN_DURATION", 60),
		},
		Dispatch: DispatchConfig{
			MaxDistanceKm:  getEnvAsFloat("DISPATCH_MAX_DISTANCE_KM", 10),
			RetrySchedule:  getEnv("DISPATCH_RETRY_SCHEDULE", ""),
			RetryBatchSize: getEnvAsInt("DISPATCH_RETRY_BATCH_SIZE", 50),
		},
		Hub: HubConfig{
			SendBuffer:     getEnvAsInt("HUB_SEND_BUFFER", 256),
			MaxMessageSize: int64(getEnvAsInt("HUB_MAX_MESSAGE_SIZE", 4096)),
			WriteTimeout:   getEnvAsDuration("HUB_WRITE_TIMEOUT", 10*time.Second),
			PongTimeout:    getEnvAsDuration("HUB_PONG_TIMEOUT", 60*time.Second),
			PingInterval:   getEnvAsDuration("HUB_PING_INTERVAL", 50*time.Second),
			AllowedOrigins: getEnvAsSlice("HUB_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		},
		Push: PushConfig{
			BaseURL: getEnv("PUSH_BASE_URL", "http://localhost:8080"),
			Timeout: getEnvAsDuration("PUSH_TIMEOUT", 2*time.Second),
		},
	}
}

// getEnv получает значение переменной окружения с значением по умолчанию
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt получает значение переменной окружения как int с значением по умолчанию
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsDuration принимает как "2s"/"500ms", так и число секунд
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(valueStr); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(valueStr); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsSlice(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
