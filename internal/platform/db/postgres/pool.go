package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/tracelog"

	"github.com/ogurasousui/personnel-backoffice/internal/platform/config"
	"github.com/ogurasousui/personnel-backoffice/internal/platform/logger"
)

// ApplicationName は pg_stat_activity に表示される接続名です。
const ApplicationName = "personnel-backoffice"

// PoolOption は BuildPoolConfig の追加設定です。
type PoolOption func(*pgxpool.Config)

// WithQueryLogger は pgx のクエリトレースを logger に出力します。
// level 未満のイベントは出力されません。
func WithQueryLogger(l *logger.Logger, level tracelog.LogLevel) PoolOption {
	return func(cfg *pgxpool.Config) {
		if l == nil {
			return
		}
		cfg.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger:   queryLogger{log: l.Named("pgx")},
			LogLevel: level,
		}
	}
}

type queryLogger struct {
	log *logger.Logger
}

func (q queryLogger) Log(_ context.Context, level tracelog.LogLevel, msg string, data map[string]any) {
	fields := make([]any, 0, len(data)*2)
	for k, v := range data {
		fields = append(fields, k, v)
	}

	switch level {
	case tracelog.LogLevelError:
		q.log.Errorw(msg, fields...)
	case tracelog.LogLevelWarn:
		q.log.Warnw(msg, fields...)
	case tracelog.LogLevelInfo:
		q.log.Infow(msg, fields...)
	default:
		q.log.Debugw(msg, fields...)
	}
}

// BuildPoolConfig は database 設定から pgxpool.Config を構築します。
func BuildPoolConfig(cfg config.DatabaseConfig, opts ...PoolOption) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	}

	if cfg.MaxIdleConns > 0 {
		poolCfg.MinConns = int32(cfg.MaxIdleConns)
	}

	if cfg.ConnMaxLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime
	}

	if cfg.ConnMaxIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}

	if poolCfg.ConnConfig.RuntimeParams == nil {
		poolCfg.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolCfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName

	for _, opt := range opts {
		opt(poolCfg)
	}

	return poolCfg, nil
}

// NewPool は pgxpool.Pool を生成し疎通確認を行います。
func NewPool(ctx context.Context, cfg config.DatabaseConfig, opts ...PoolOption) (*pgxpool.Pool, error) {
	poolCfg, err := BuildPoolConfig(cfg, opts...)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return pool, nil
}
