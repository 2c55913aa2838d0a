// Package config はクライアント全体の設定管理を提供する。
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はクライアント全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// API
	BaseURL     string
	HTTPTimeout time.Duration

	// Notification polling
	PollInterval time.Duration

	// Rate limit（クライアント側の送信レート、req/min）
	RequestsPerMinute int

	// Credentials
	CredentialsPath string

	// OAuth
	OAuthCallbackAddr string

	// Metrics（watchモードのみ）
	MetricsAddr string

	// Logging
	LogLevel string
}

// Load は.envファイルと環境変数からConfigを読み込む。
// .envが存在しない場合は環境変数のみを使用する。
// API_BASE_URLが絶対URLとしてパースできない場合はエラーを返す。
func Load() (*Config, error) {
	// .envは任意。読み込めなくても環境変数からの読み込みを続行する。
	_ = godotenv.Load()

	cfg := &Config{
		BaseURL:           getEnvString("API_BASE_URL", "http://localhost:8080"),
		HTTPTimeout:       getEnvDuration("HTTP_TIMEOUT", 10*time.Second),
		PollInterval:      getEnvDuration("NOTIFICATION_POLL_INTERVAL", 60*time.Second),
		RequestsPerMinute: getEnvInt("REQUESTS_PER_MINUTE", 120),
		CredentialsPath:   getEnvString("CREDENTIALS_PATH", defaultCredentialsPath()),
		OAuthCallbackAddr: getEnvString("OAUTH_CALLBACK_ADDR", "127.0.0.1:8791"),
		MetricsAddr:       getEnvString("METRICS_ADDR", "127.0.0.1:9109"),
		LogLevel:          getEnvString("LOG_LEVEL", "info"),
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("API_BASE_URLが絶対URLではありません: %q", cfg.BaseURL)
	}

	if cfg.RequestsPerMinute <= 0 {
		return nil, fmt.Errorf("REQUESTS_PER_MINUTEは正の値でなければなりません: %d", cfg.RequestsPerMinute)
	}

	return cfg, nil
}

// defaultCredentialsPath は認証情報ファイルのデフォルトパスを返す。
// ブラウザのlocalStorageに相当する永続領域としてユーザー設定ディレクトリを使用する。
func defaultCredentialsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", ".learnlink", "credentials.json")
	}
	return filepath.Join(dir, "learnlink", "credentials.json")
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

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
