package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/carefunnel/internal/generator"
	"github.com/hitoshi/carefunnel/internal/logger"
	"github.com/hitoshi/carefunnel/internal/model"
	"github.com/joho/godotenv"
)

// anchorDateLayout はANCHOR_DATEの書式。
const anchorDateLayout = "2006-01-02"

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Generation
	UserCount          int
	MaxSessionsPerUser int
	RandomSeed         uint64
	WindowDays         int
	// AnchorDate は生成窓の終端日。ゼロ値は実行日（UTC）を意味する。
	AnchorDate time.Time

	// Worker
	RegenerateSchedule string

	// Export
	ExportDir string

	// Rate Limit（req/min/client）
	RateLimitGeneral int

	// Logging
	LogLevel slog.Level

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリ（またはENV_FILE）に.envがあれば先に読み込む。
// 既に設定済みの環境変数は.envで上書きしない。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	if err := loadDotEnv(getEnvString("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	// 生成パラメータは黙って既定値に戻さず、不正値をまとめてConfigurationErrorにする
	var invalid []string
	cfg.UserCount = parseEnvInt("USER_COUNT", generator.DefaultUserCount, &invalid)
	cfg.MaxSessionsPerUser = parseEnvInt("MAX_SESSIONS_PER_USER", generator.DefaultMaxSessionsPerUser, &invalid)
	cfg.RandomSeed = parseEnvUint64("RANDOM_SEED", generator.DefaultSeed, &invalid)
	cfg.WindowDays = parseEnvInt("WINDOW_DAYS", generator.DefaultWindowDays, &invalid)
	if len(invalid) > 0 {
		return nil, model.NewConfigurationError(strings.Join(invalid, ", "))
	}

	cfg.RegenerateSchedule = getEnvString("REGENERATE_SCHEDULE", "@daily")
	cfg.ExportDir = getEnvString("EXPORT_DIR", "data")
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.LogLevel = logger.ParseLevel(getEnvString("LOG_LEVEL", "info"))
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	if v := strings.TrimSpace(os.Getenv("ANCHOR_DATE")); v != "" {
		anchor, err := time.Parse(anchorDateLayout, v)
		if err != nil {
			return nil, model.NewConfigurationError(fmt.Sprintf("ANCHOR_DATE=%q は YYYY-MM-DD 形式ではありません", v))
		}
		cfg.AnchorDate = anchor
	}

	return cfg, nil
}

// GeneratorConfig は生成パラメータを返す。
// 値の検証はgenerator.Config.Validateが生成開始前に行う。
func (c *Config) GeneratorConfig() generator.Config {
	return generator.Config{
		UserCount:          c.UserCount,
		MaxSessionsPerUser: c.MaxSessionsPerUser,
		Seed:               c.RandomSeed,
		WindowDays:         c.WindowDays,
		AnchorDate:         c.AnchorDate,
	}
}

// loadDotEnv はpathの.envを読み込む。ファイルがなければ何もしない。
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf(".env の読み込みに失敗しました (%s): %w", path, err)
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

// parseEnvInt は整数の環境変数を読む。解析できない値はinvalidに追記し、既定値を返す。
func parseEnvInt(key string, defaultVal int, invalid *[]string) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		*invalid = append(*invalid, fmt.Sprintf("%s=%q は整数ではありません", key, v))
		return defaultVal
	}
	return i
}

// parseEnvUint64 は非負整数の環境変数を読む。解析できない値はinvalidに追記し、既定値を返す。
func parseEnvUint64(key string, defaultVal uint64, invalid *[]string) uint64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		*invalid = append(*invalid, fmt.Sprintf("%s=%q は0以上の整数ではありません", key, v))
		return defaultVal
	}
	return i
}
