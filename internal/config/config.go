// Package config は環境変数から設定を読み込み、アプリケーション全体で使用する設定を提供します。
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	BackendMemory = "memory"
	BackendQueue  = "queue"

	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config はアプリケーションの設定を保持する構造体です。
type Config struct {
	// サーバー設定
	Port    string // APIサーバーのポート番号
	GinMode string // Ginの実行モード (debug, release, test)

	// CORS設定
	CORSAllowedOrigins string // CORS許可オリジン（カンマ区切り）

	// セッション設定
	SessionSecret string // セッション署名用の秘密鍵

	// ジョブ設定
	JobBackend        string // memory: APIプロセス内で実行 / queue: Asynqワーカーで実行
	JobStore          string // memory / redis
	QueueRedisURL     string // Asynq・ジョブストア用Redis接続URL
	JobExpireMinutes  int    // ジョブ状態の有効期限（分）
	TickIntervalMS    int    // 進捗ティックの間隔（ミリ秒）
	CompletionDelayMS int    // 詳細分析の完了通知までの遅延（ミリ秒）
	WorkerConcurrency int    // ワーカーの同時実行数
	StartRatePerMin   int    // 開始APIのIPごとの上限（回/分、0で無効）

	// アップロード設定
	MaxUploadBytes      int64  // 単一ファイルの最大サイズ（バイト）
	UploadAcceptPattern string // 受け付けるファイル名パターン

	// ログ設定
	LogLevel  string // debug, info, warn, error
	LogFormat string // json, console
}

// Load は環境変数から設定を読み込みます。
// .env.local ファイルが存在する場合はそこから読み込みます。
func Load() (*Config, error) {
	// .env.local ファイルを読み込む（存在しない場合はスキップ）
	loadEnvFile()

	config := FromEnv()

	// 必須設定のバリデーション
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// FromEnv は現在の環境変数から既定値を補って設定を組み立てます。
func FromEnv() *Config {
	return &Config{
		// サーバー設定
		Port:    getEnv("PORT", "8080"),
		GinMode: getEnv("GIN_MODE", "debug"),

		// CORS設定
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),

		// セッション設定
		SessionSecret: getEnv("SESSION_SECRET", ""),

		// ジョブ設定
		JobBackend:        strings.ToLower(getEnv("JOB_BACKEND", BackendMemory)),
		JobStore:          strings.ToLower(getEnv("JOB_STORE", StoreMemory)),
		QueueRedisURL:     getEnv("QUEUE_REDIS_URL", "redis://127.0.0.1:6379/0"),
		JobExpireMinutes:  getEnvAsInt("JOB_EXPIRE_MINUTES", 10),
		TickIntervalMS:    getEnvAsInt("TICK_INTERVAL_MS", 300),
		CompletionDelayMS: getEnvAsInt("COMPLETION_DELAY_MS", 500),
		WorkerConcurrency: getEnvAsInt("WORKER_CONCURRENCY", 4),
		StartRatePerMin:   getEnvAsInt("START_RATE_PER_MINUTE", 30),

		// アップロード設定
		MaxUploadBytes:      getEnvAsInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB
		UploadAcceptPattern: getEnv("UPLOAD_ACCEPT_PATTERN", "*.{csv,xlsx,xls,json,txt}"),

		// ログ設定
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}
}

func loadEnvFile() {
	if err := godotenv.Load(".env.local"); err == nil {
		return
	}

	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	parent := filepath.Dir(cwd)
	if parent == "" || parent == cwd {
		return
	}

	_ = godotenv.Load(filepath.Join(parent, ".env.local"))
}

// Validate は設定の妥当性を検証します。
func (c *Config) Validate() error {
	switch c.JobBackend {
	case BackendMemory, BackendQueue:
	default:
		return fmt.Errorf("JOB_BACKEND must be %q or %q", BackendMemory, BackendQueue)
	}
	switch c.JobStore {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("JOB_STORE must be %q or %q", StoreMemory, StoreRedis)
	}
	// ワーカーは別プロセスのため、状態は Redis で共有する
	if c.JobBackend == BackendQueue && c.JobStore != StoreRedis {
		return fmt.Errorf("JOB_STORE=redis is required when JOB_BACKEND=queue")
	}
	if (c.JobBackend == BackendQueue || c.JobStore == StoreRedis) && c.QueueRedisURL == "" {
		return fmt.Errorf("QUEUE_REDIS_URL is required for the redis job store")
	}
	if c.TickIntervalMS <= 0 {
		return fmt.Errorf("TICK_INTERVAL_MS must be positive")
	}
	// 0 はプロファイル既定値の維持と区別できないため受け付けない
	if c.CompletionDelayMS <= 0 {
		return fmt.Errorf("COMPLETION_DELAY_MS must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}

	// ローカル開発では既定の署名鍵で起動できる
	// 本番環境では厳格にチェックする想定
	if c.GinMode == "release" {
		if c.SessionSecret == "" {
			return fmt.Errorf("SESSION_SECRET is required in release mode")
		}
		if len(c.SessionSecret) < 32 {
			return fmt.Errorf("SESSION_SECRET must be at least 32 bytes in release mode")
		}
	}

	return nil
}

// SessionKey はセッション署名鍵を返します。未設定の場合は開発用の固定値です。
func (c *Config) SessionKey() []byte {
	if c.SessionSecret == "" {
		return []byte("dev-only-session-secret-change-me")
	}
	return []byte(c.SessionSecret)
}

// AllowedOrigins は CORS 許可オリジンの一覧を返します。
func (c *Config) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

// JobTTL はジョブ状態の有効期限です。
func (c *Config) JobTTL() time.Duration {
	minutes := c.JobExpireMinutes
	if minutes <= 0 {
		minutes = 10
	}
	return time.Duration(minutes) * time.Minute
}

// TickInterval は進捗ティックの間隔です。
func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.TickIntervalMS) * time.Millisecond
}

// CompletionDelay は完了通知までの遅延です。
func (c *Config) CompletionDelay() time.Duration {
	return time.Duration(c.CompletionDelayMS) * time.Millisecond
}

// getEnv は環境変数を取得し、存在しない場合はデフォルト値を返します。
func getEnv(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt は環境変数を整数として取得します。
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsInt64 は環境変数を64ビット整数として取得します。
func getEnvAsInt64(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}
	return value
}
