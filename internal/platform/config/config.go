package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

type Config struct {
	APIPort string
	JWTKey  []byte

	StoreDriver string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSslMode  string
	DBConnStr  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	NotificationQueueKey    string
	NotificationPollEvery   time.Duration
	NotificationMaxAttempts int

	VerificationKeyPrefix string
	VerificationCodeTTL   time.Duration
	ReminderLead          time.Duration

	AuthRateLimitRPS   float64
	AuthRateLimitBurst int

	BcryptCost     int
	BootstrapAdmin string
}

var AppConfig *Config

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = &Config{
		APIPort:     getEnv("API_PORT", "8080"),
		JWTKey:      []byte(getEnv("JWT_SECRET", "defaultsecret")),
		StoreDriver: getEnv("STORE_DRIVER", StoreDriverPostgres),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "user"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "reservation_db"),
		DBSslMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		NotificationQueueKey:    getEnv("NOTIFICATION_QUEUE_KEY", "notifications:pending"),
		NotificationPollEvery:   time.Duration(getEnvAsInt("NOTIFICATION_POLL_MS", 1000)) * time.Millisecond,
		NotificationMaxAttempts: getEnvAsInt("NOTIFICATION_MAX_ATTEMPTS", 3),

		VerificationKeyPrefix: getEnv("VERIFICATION_KEY_PREFIX", "verify:email:"),
		VerificationCodeTTL:   time.Duration(getEnvAsInt("VERIFICATION_CODE_TTL_MINUTES", 10)) * time.Minute,
		ReminderLead:          time.Duration(getEnvAsInt("REMINDER_LEAD_MINUTES", 60)) * time.Minute,

		AuthRateLimitRPS:   getEnvAsFloat("AUTH_RATE_LIMIT_RPS", 1),
		AuthRateLimitBurst: getEnvAsInt("AUTH_RATE_LIMIT_BURST", 5),

		BcryptCost:     getEnvAsInt("BCRYPT_COST", 10),
		BootstrapAdmin: getEnv("BOOTSTRAP_ADMIN", ""),
	}

	if string(AppConfig.JWTKey) == "defaultsecret" {
		log.Println("WARN: JWT_SECRET is not set, using the development default")
	}

	AppConfig.DBConnStr = "host=" + AppConfig.DBHost +
		" port=" + AppConfig.DBPort +
		" user=" + AppConfig.DBUser +
		" password=" + AppConfig.DBPassword +
		" dbname=" + AppConfig.DBName +
		" sslmode=" + AppConfig.DBSslMode
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return fallback
}
