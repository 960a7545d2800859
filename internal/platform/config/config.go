package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const (
	defaultCacheTTL             = 5 * time.Minute
	defaultCacheCleanupInterval = 10 * time.Minute
	defaultSessionTTL           = 30 * time.Minute
	defaultPageSize             = 10
	defaultMaxPageSize          = 100
	defaultLocale               = "es"
	defaultCascadeMode          = "any_active"
)

// Config はアプリケーション全体の設定を表現します。
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Cache     CacheConfig     `yaml:"cache"`
	Workspace WorkspaceConfig `yaml:"workspace"`
}

// ServerConfig は gRPC サーバーに関する設定です。
type ServerConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// MetricsAddr が空の場合はメトリクス用 HTTP サーバーを起動しません。
	MetricsAddr string `yaml:"metrics_addr"`
}

// DatabaseConfig は PostgreSQL 接続に関する設定です。
type DatabaseConfig struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	User               string        `yaml:"user"`
	Password           string        `yaml:"password"`
	Name               string        `yaml:"name"`
	SSLMode            string        `yaml:"ssl_mode"`
	MaxOpenConns       int           `yaml:"max_open_conns"`
	MaxIdleConns       int           `yaml:"max_idle_conns"`
	ConnMaxLifetime    time.Duration `yaml:"-"`
	ConnMaxIdleTime    time.Duration `yaml:"-"`
	ConnMaxLifetimeRaw string        `yaml:"conn_max_lifetime"`
	ConnMaxIdleTimeRaw string        `yaml:"conn_max_idle_time"`
}

// LoggingConfig はロガーの設定です。
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// CacheConfig は記録キャッシュの設定です。
type CacheConfig struct {
	TTL                time.Duration `yaml:"-"`
	CleanupInterval    time.Duration `yaml:"-"`
	TTLRaw             string        `yaml:"ttl"`
	CleanupIntervalRaw string        `yaml:"cleanup_interval"`
}

// WorkspaceConfig は画面セッションと一覧表示の設定です。
type WorkspaceConfig struct {
	SessionTTL      time.Duration `yaml:"-"`
	SessionTTLRaw   string        `yaml:"session_ttl"`
	DefaultPageSize int           `yaml:"default_page_size"`
	MaxPageSize     int           `yaml:"max_page_size"`
	Locale          string        `yaml:"locale"`
	CascadeMode     string        `yaml:"cascade_mode"`
}

// Load は指定されたパスから設定ファイルを読み込みます。
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	if err := cfg.validateAndNormalize(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validateAndNormalize() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("config: server.listen_addr must be set")
	}

	if err := c.Database.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Logging.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Cache.validateAndNormalize(); err != nil {
		return err
	}
	if err := c.Workspace.validateAndNormalize(); err != nil {
		return err
	}

	return nil
}

func (d *DatabaseConfig) validateAndNormalize() error {
	if d.Host == "" {
		return fmt.Errorf("config: database.host must be set")
	}
	if d.Port == 0 {
		return fmt.Errorf("config: database.port must be set")
	}
	if d.User == "" {
		return fmt.Errorf("config: database.user must be set")
	}
	if d.Password == "" {
		return fmt.Errorf("config: database.password must be set")
	}
	if d.Name == "" {
		return fmt.Errorf("config: database.name must be set")
	}
	if d.SSLMode == "" {
		d.SSLMode = "disable"
	}

	lifetime, err := parseDurationAllowEmpty(d.ConnMaxLifetimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_lifetime: %w", err)
	}
	d.ConnMaxLifetime = lifetime

	idleTime, err := parseDurationAllowEmpty(d.ConnMaxIdleTimeRaw)
	if err != nil {
		return fmt.Errorf("config: database.conn_max_idle_time: %w", err)
	}
	d.ConnMaxIdleTime = idleTime

	return nil
}

func (l *LoggingConfig) validateAndNormalize() error {
	switch l.Level {
	case "":
		l.Level = "info"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: logging.level %q is not supported", l.Level)
	}
	return nil
}

func (c *CacheConfig) validateAndNormalize() error {
	ttl, err := parseDurationAllowEmpty(c.TTLRaw)
	if err != nil {
		return fmt.Errorf("config: cache.ttl: %w", err)
	}
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	c.TTL = ttl

	cleanup, err := parseDurationAllowEmpty(c.CleanupIntervalRaw)
	if err != nil {
		return fmt.Errorf("config: cache.cleanup_interval: %w", err)
	}
	if cleanup <= 0 {
		cleanup = defaultCacheCleanupInterval
	}
	c.CleanupInterval = cleanup

	return nil
}

func (w *WorkspaceConfig) validateAndNormalize() error {
	ttl, err := parseDurationAllowEmpty(w.SessionTTLRaw)
	if err != nil {
		return fmt.Errorf("config: workspace.session_ttl: %w", err)
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	w.SessionTTL = ttl

	if w.DefaultPageSize < 0 || w.MaxPageSize < 0 {
		return fmt.Errorf("config: workspace page sizes must not be negative")
	}
	if w.DefaultPageSize == 0 {
		w.DefaultPageSize = defaultPageSize
	}
	if w.MaxPageSize == 0 {
		w.MaxPageSize = defaultMaxPageSize
	}
	if w.MaxPageSize < w.DefaultPageSize {
		return fmt.Errorf("config: workspace.max_page_size (%d) must be >= default_page_size (%d)", w.MaxPageSize, w.DefaultPageSize)
	}

	if w.Locale == "" {
		w.Locale = defaultLocale
	}
	if _, err := language.Parse(w.Locale); err != nil {
		return fmt.Errorf("config: workspace.locale: %w", err)
	}

	switch w.CascadeMode {
	case "":
		w.CascadeMode = defaultCascadeMode
	case "any_active", "overlap":
	default:
		return fmt.Errorf("config: workspace.cascade_mode %q is not supported", w.CascadeMode)
	}

	return nil
}

// LanguageTag は検証済みのロケールを返します。
func (w WorkspaceConfig) LanguageTag() language.Tag {
	tag, err := language.Parse(w.Locale)
	if err != nil {
		return language.Und
	}
	return tag
}

func parseDurationAllowEmpty(raw string) (time.Duration, error) {
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	return d, nil
}

// DSN は pgx 用の接続文字列を返します。
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + strconv.Itoa(d.Port),
		Path:     "/" + d.Name,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}
