package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"

	"github.com/ogurasousui/personnel-backoffice/internal/adapters/grpc/handler"
	"github.com/ogurasousui/personnel-backoffice/internal/platform/logger"
)

// Server は gRPC サーバーのライフサイクルを管理します。
type Server struct {
	listenAddr string
	grpcServer *grpc.Server
	logger     *logger.Logger
}

// New は指定されたアドレスで待ち受ける gRPC サーバーを構築します。
// 全メソッドにアクセスログと panic 回復のインターセプターが適用されます。
func New(listenAddr string, backoffice handler.BackofficeServer, l *logger.Logger, opts ...grpc.ServerOption) *Server {
	if l == nil {
		l = logger.NewNop()
	}
	l = l.Named("grpc")

	opts = append([]grpc.ServerOption{
		grpc.ChainUnaryInterceptor(RecoveryInterceptor(l), LoggingInterceptor(l)),
	}, opts...)

	srv := grpc.NewServer(opts...)
	handler.RegisterBackofficeServer(srv, backoffice)

	return &Server{
		listenAddr: listenAddr,
		grpcServer: srv,
		logger:     l,
	}
}

// Run はサーバーを起動し、コンテキストがキャンセルされると GracefulStop します。
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.listenAddr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve は lis で待ち受けます。
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		s.grpcServer.GracefulStop()
	}()

	s.logger.Infow("gRPC server listening", "addr", lis.Addr().String())
	if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	return nil
}

// GracefulStop はサーバーを安全に停止します。
func (s *Server) GracefulStop() {
	s.grpcServer.GracefulStop()
}
