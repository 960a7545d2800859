package server

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ogurasousui/personnel-backoffice/internal/platform/logger"
)

// LoggingInterceptor は単項呼び出しごとにメソッド・ステータス・所要時間を記録します。
// Internal と Unknown はエラー、それ以外の失敗は警告として出力します。
func LoggingInterceptor(l *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)

		code := status.Code(err)
		fields := []any{
			"method", info.FullMethod,
			"code", code.String(),
			"duration", time.Since(start),
		}

		switch code {
		case codes.OK:
			l.Debugw("rpc completed", fields...)
		case codes.Internal, codes.Unknown:
			l.Errorw("rpc failed", append(fields, "error", err)...)
		default:
			l.Warnw("rpc rejected", append(fields, "error", err)...)
		}
		return resp, err
	}
}

// RecoveryInterceptor はハンドラーの panic を Internal エラーに変換します。
func RecoveryInterceptor(l *logger.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				l.Errorw("rpc panicked", "method", info.FullMethod, "panic", r)
				resp = nil
				err = status.Error(codes.Internal, "internal error")
			}
		}()
		return next(ctx, req)
	}
}
