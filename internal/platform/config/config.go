package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIPort string
	JWTKey  []byte
	JWTExp  time.Duration

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

	ScoreEventQueueName      string
	RankRecomputeLockKey     string
	RankRecomputeLockTTLSec  int
	RankRecomputeIntervalSec int

	SandboxQueryTimeoutMs int
	DefaultXPReward       int
}

var AppConfig *Config

func Load() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = &Config{
		APIPort:                  getEnv("API_PORT", "8080"),
		JWTKey:                   []byte(getEnv("JWT_SECRET", "defaultsecret")),
		JWTExp:                   time.Duration(getEnvAsInt("JWT_EXPIRATION_HOURS", 72)) * time.Hour,
		DBHost:                   getEnv("DB_HOST", "localhost"),
		DBPort:                   getEnv("DB_PORT", "5432"),
		DBUser:                   getEnv("DB_USER", "user"),
		DBPassword:               getEnv("DB_PASSWORD", "password"),
		DBName:                   getEnv("DB_NAME", "sqlquest_db"),
		DBSslMode:                getEnv("DB_SSLMODE", "disable"),
		RedisAddr:                getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:            getEnv("REDIS_PASSWORD", ""),
		RedisDB:                  getEnvAsInt("REDIS_DB", 0),
		ScoreEventQueueName:      getEnv("SCORE_EVENT_QUEUE_NAME", "leaderboard_score_events"),
		RankRecomputeLockKey:     getEnv("RANK_RECOMPUTE_LOCK_KEY", "leaderboard_rank_recompute_lock"),
		RankRecomputeLockTTLSec:  getEnvAsInt("RANK_RECOMPUTE_LOCK_TTL_SECONDS", 60),
		RankRecomputeIntervalSec: getEnvAsInt("RANK_RECOMPUTE_INTERVAL_SECONDS", 300),
		SandboxQueryTimeoutMs:    getEnvAsInt("SANDBOX_QUERY_TIMEOUT_MS", 5000),
		DefaultXPReward:          getEnvAsInt("DEFAULT_XP_REWARD", 100),
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
