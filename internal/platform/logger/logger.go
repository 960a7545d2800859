package logger

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger は zap.SugaredLogger を包んだアプリケーション共通のロガーです。
type Logger struct {
	*zap.SugaredLogger
}

// Config はロガーの生成設定です。
type Config struct {
	Level       string
	Development bool
}

// New は設定に従ってロガーを生成します。
func New(cfg Config) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	zl, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return &Logger{SugaredLogger: zl.Sugar()}, nil
}

// NewNop は何も出力しないロガーを返します。テストや未設定時に使います。
func NewNop() *Logger {
	return &Logger{SugaredLogger: zap.NewNop().Sugar()}
}

// Wrap は既存の zap.Logger を Logger に変換します。
func Wrap(zl *zap.Logger) *Logger {
	return &Logger{SugaredLogger: zl.Sugar()}
}

// ParseLevel はログレベル名を解釈します。空文字は info です。
func ParseLevel(raw string) (zapcore.Level, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return zapcore.InfoLevel, nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(trimmed)); err != nil {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q: %w", raw, err)
	}
	return level, nil
}

// Named は名前付きの子ロガーを返します。
func (l *Logger) Named(name string) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.Named(name)}
}

// With は構造化フィールドを付与した子ロガーを返します。
func (l *Logger) With(args ...any) *Logger {
	return &Logger{SugaredLogger: l.SugaredLogger.With(args...)}
}

// Sync はバッファを書き出します。標準出力に対する同期エラーは無視します。
func (l *Logger) Sync() error {
	err := l.SugaredLogger.Sync()
	if err != nil && strings.Contains(err.Error(), "sync /dev/std") {
		return nil
	}
	return err
}
