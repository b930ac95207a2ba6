package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DevJWTSecret is the fallback signing key used when JWT_SECRET is unset.
// Load flags its use so main can log a loud warning; never ship with it.
const DevJWTSecret = "dev-insecure-signing-key"

type Config struct {
	Env  string
	Port int

	DBURL string

	JWTSecret      string
	UsingDevSecret bool
	JWTTTL         time.Duration

	BcryptCost int

	AuthRateLimit    int
	GeneralRateLimit int
	RateWindow       time.Duration

	GeoBaseURL  string
	GeoTimeout  time.Duration
	GeoCacheTTL time.Duration

	RedisAddr     string
	RedisPassword string

	OTLPEndpoint string

	AllowedOrigins []string

	SeedEmail    string
	SeedPassword string
}

func Load() Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	secret := getEnv("JWT_SECRET", "")
	usingDev := secret == ""

	if usingDev {
		secret = DevJWTSecret
	}

	return Config{
		Env:   getEnv("APP_ENV", "dev"),
		Port:  getEnvInt("PORT", 8080),
		DBURL: buildDBURL(),

		JWTSecret:      secret,
		UsingDevSecret: usingDev,
		JWTTTL:         time.Duration(getEnvInt("JWT_TTL_DAYS", 7)) * 24 * time.Hour,

		BcryptCost: getEnvInt("BCRYPT_COST", 10),

		AuthRateLimit:    getEnvInt("RATE_LIMIT_AUTH", 5),
		GeneralRateLimit: getEnvInt("RATE_LIMIT_GENERAL", 100),
		RateWindow:       time.Duration(getEnvInt("RATE_WINDOW_MINUTES", 15)) * time.Minute,

		GeoBaseURL:  getEnv("GEO_BASE_URL", "http://ip-api.com"),
		GeoTimeout:  time.Duration(getEnvInt("GEO_TIMEOUT_SECONDS", 5)) * time.Second,
		GeoCacheTTL: time.Duration(getEnvInt("GEO_CACHE_TTL_MINUTES", 60)) * time.Minute,

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),

		OTLPEndpoint: getEnv("OTLP_ENDPOINT", ""),

		AllowedOrigins: splitList(getEnv("CORS_ORIGINS", "")),

		SeedEmail:    getEnv("SEED_EMAIL", ""),
		SeedPassword: getEnv("SEED_PASSWORD", ""),
	}
}

func buildDBURL() string {
	if url := getEnv("DATABASE_URL", ""); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "127.0.0.1")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "geogate")
	pass := getEnv("DB_PASSWORD", "geogate")
	name := getEnv("DB_NAME", "geogate")
	ssl := getEnv("DB_SSLMODE", "disable")

	return "postgres://" + user + ":" + pass + "@" + host + ":" + port + "/" + name + "?sslmode=" + ssl
}

func splitList(v string) []string {
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}

	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}

	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		num, err := strconv.Atoi(v)

		if err != nil {
			return fallback
		}

		return num
	}
	return fallback
}
