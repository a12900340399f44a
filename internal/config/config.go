package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port     string
	Env      string
	LogLevel string

	// Database (유저 디렉토리)
	DatabaseURL string

	// Redis (이벤트 중계 / 분산 rate limit, 비어 있으면 단일 인스턴스 모드)
	RedisURL string

	// JWT (발급은 외부 신원 제공자, 여기서는 검증만)
	JWTSecret     string
	JWTExpiration time.Duration

	// CORS
	CORSAllowedOrigins []string

	// Matchmaking
	MatchInterval time.Duration // 매칭 틱 주기
	PairCap       int           // 틱당 사냥터당 최대 커밋 쌍

	// Party
	PartyMaxSize  int
	PartyTTL      time.Duration
	SweepInterval time.Duration
	UserGrace     time.Duration // 파티 밖 참가자 퇴출 유예

	// Random assignment
	AssignSampleSize int
}

func Load() (*Config, error) {
	// .env 파일 로드 (있는 경우)
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisURL:           getEnv("REDIS_URL", ""),
		JWTSecret:          getEnv("JWT_SECRET", "your-secret-key"),
		JWTExpiration:      parseDuration(getEnv("JWT_EXPIRATION", "24h"), 24*time.Hour),
		MatchInterval:      parseDuration(getEnv("MATCH_INTERVAL", "150ms"), 150*time.Millisecond),
		PairCap:            parseInt(getEnv("PAIR_CAP", "30"), 30),
		PartyMaxSize:       parseInt(getEnv("PARTY_MAX_SIZE", "6"), 6),
		PartyTTL:           parseDuration(getEnv("PARTY_TTL", "30m"), 30*time.Minute),
		SweepInterval:      parseDuration(getEnv("SWEEP_INTERVAL", "1m"), time.Minute),
		UserGrace:          parseDuration(getEnv("USER_GRACE", "10m"), 10*time.Minute),
		AssignSampleSize:   parseInt(getEnv("ASSIGN_SAMPLE_SIZE", "20"), 20),
		CORSAllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}
