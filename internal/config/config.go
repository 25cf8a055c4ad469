package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the API, admin console and supporting services.
type Config struct {
	HTTPListenAddr  string
	AdminListenAddr string
	LogLevel        string

	DBDriver   string
	MySQLDSN   string
	SQLitePath string

	JWTSecret     string
	TokenTTL      time.Duration
	AdminUsername string
	AdminPassword string

	SignupCoins        int
	DailyBonusCoins    int
	DailyBonusTimezone string
	TellersFile        string

	GenerationTimeout time.Duration
	WebhookSecret     string
	WebhookURLs       map[string]string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	GuardTTL      time.Duration

	S3Endpoint      string
	S3Region        string
	S3AccessKey     string
	S3SecretKey     string
	S3Bucket        string
	S3PublicBaseURL string
	S3UsePathStyle  bool
	S3Prefix        string

	AlertTelegramToken  string
	AlertTelegramChatID int64

	CORSAllowedOrigins []string
	MaxUploadBytes     int64
}

// Load reads configuration from environment variables, applying sane defaults.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	timeout := time.Second * time.Duration(getInt("GENERATION_TIMEOUT_SECONDS", 60))

	cfg := Config{
		HTTPListenAddr:     getEnv("HTTP_LISTEN_ADDR", ":8080"),
		AdminListenAddr:    getEnv("ADMIN_LISTEN_ADDR", ":8081"),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		DBDriver:           strings.ToLower(getEnv("DB_DRIVER", "mysql")),
		SQLitePath:         getEnv("SQLITE_PATH", "fortune.db"),
		TokenTTL:           time.Hour * time.Duration(getInt("TOKEN_TTL_HOURS", 72)),
		AdminUsername:      getEnv("ADMIN_USERNAME", "admin"),
		SignupCoins:        getInt("SIGNUP_COINS", 50),
		DailyBonusCoins:    getInt("DAILY_BONUS_COINS", 10),
		DailyBonusTimezone: getEnv("DAILY_BONUS_TIMEZONE", "UTC"),
		TellersFile:        os.Getenv("TELLERS_FILE"),
		GenerationTimeout:  timeout,
		WebhookSecret:      os.Getenv("WEBHOOK_SECRET"),
		WebhookURLs: map[string]string{
			"coffee": os.Getenv("WEBHOOK_COFFEE_URL"),
			"tarot":  os.Getenv("WEBHOOK_TAROT_URL"),
			"couple": os.Getenv("WEBHOOK_COUPLE_URL"),
			"dream":  os.Getenv("WEBHOOK_DREAM_URL"),
			"star":   os.Getenv("WEBHOOK_STAR_URL"),
		},
		RedisAddr:           os.Getenv("REDIS_ADDR"),
		RedisPassword:       os.Getenv("REDIS_PASSWORD"),
		RedisDB:             getInt("REDIS_DB", 0),
		GuardTTL:            timeout + 30*time.Second,
		S3Endpoint:          getEnv("S3_ENDPOINT", ""),
		S3Region:            os.Getenv("S3_REGION"),
		S3AccessKey:         os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:         os.Getenv("S3_SECRET_KEY"),
		S3Bucket:            os.Getenv("S3_BUCKET"),
		S3PublicBaseURL:     os.Getenv("S3_PUBLIC_BASE_URL"),
		S3UsePathStyle:      getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:            getEnv("S3_PREFIX", "cups"),
		AlertTelegramToken:  os.Getenv("ALERT_TELEGRAM_TOKEN"),
		AlertTelegramChatID: getInt64("ALERT_TELEGRAM_CHAT_ID", 0),
		CORSAllowedOrigins:  splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")),
		MaxUploadBytes:      int64(getInt("MAX_UPLOAD_MB", 8)) << 20,
	}

	cfg.MySQLDSN = os.Getenv("MYSQL_DSN")
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.AdminPassword = os.Getenv("ADMIN_PASSWORD")

	var missing []string
	switch cfg.DBDriver {
	case "mysql":
		if cfg.MySQLDSN == "" {
			missing = append(missing, "MYSQL_DSN")
		}
	case "sqlite":
	default:
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q (want mysql or sqlite)", cfg.DBDriver)
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if cfg.AdminPassword == "" {
		missing = append(missing, "ADMIN_PASSWORD")
	}
	if cfg.S3Bucket != "" {
		if cfg.S3Region == "" {
			missing = append(missing, "S3_REGION")
		}
		if cfg.S3AccessKey == "" {
			missing = append(missing, "S3_ACCESS_KEY")
		}
		if cfg.S3SecretKey == "" {
			missing = append(missing, "S3_SECRET_KEY")
		}
		if cfg.S3PublicBaseURL == "" {
			missing = append(missing, "S3_PUBLIC_BASE_URL")
		}
	}
	if cfg.AlertTelegramToken != "" && cfg.AlertTelegramChatID == 0 {
		missing = append(missing, "ALERT_TELEGRAM_CHAT_ID")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required environment variables: %v", missing)
	}

	if _, err := time.LoadLocation(cfg.DailyBonusTimezone); err != nil {
		return Config{}, fmt.Errorf("DAILY_BONUS_TIMEZONE: %w", err)
	}
	if cfg.SignupCoins < 0 || cfg.DailyBonusCoins < 0 {
		return Config{}, fmt.Errorf("coin grants must not be negative")
	}

	return cfg, nil
}

// S3Enabled reports whether cup photos should be stored in object storage.
func (c Config) S3Enabled() bool {
	return c.S3Bucket != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// loadEnvFile loads the first env file found. Running without one is fine:
// containers pass everything through the environment.
func loadEnvFile() error {
	candidates := []string{}
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		candidates = append(candidates, custom)
	}
	candidates = append(candidates,
		filepath.Join("configs", ".env"),
		".env",
	)

	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	return nil
}
