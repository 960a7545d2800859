package server

import (
	"context"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/ogurasousui/personnel-backoffice/internal/adapters/grpc/handler"
	"github.com/ogurasousui/personnel-backoffice/internal/platform/logger"
)

// fakeBackoffice は一部のメソッドのみ実装します。未実装のメソッドは nil 参照で panic します。
type fakeBackoffice struct {
	handler.BackofficeServer
}

func (fakeBackoffice) OpenSession(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"session_id": "session-1"})
}

func (fakeBackoffice) CloseSession(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.NotFound, "session not found")
}

func startServer(t *testing.T) (*handler.BackofficeClient, *observer.ObservedLogs) {
	t.Helper()

	core, logs := observer.New(zapcore.DebugLevel)
	srv := New("bufnet", fakeBackoffice{}, logger.Wrap(zap.New(core)))

	lis := bufconn.Listen(1024 * 1024)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("failed to dial: %v", err)
	}

	t.Cleanup(func() {
		_ = conn.Close()
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Serve returned error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Errorf("server did not stop")
		}
	})

	return handler.NewBackofficeClient(conn), logs
}

func TestServer_DispatchesToBackofficeService(t *testing.T) {
	t.Parallel()

	client, logs := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := client.Call(ctx, "OpenSession", &structpb.Struct{})
	if err != nil {
		t.Fatalf("OpenSession returned error: %v", err)
	}
	if got := resp.GetFields()["session_id"].GetStringValue(); got != "session-1" {
		t.Fatalf("expected session-1, got %s", got)
	}

	entries := logs.FilterMessage("rpc completed").All()
	if len(entries) != 1 {
		t.Fatalf("expected one access log, got %d", len(entries))
	}
	if got := entries[0].ContextMap()["method"]; got != handler.FullMethod("OpenSession") {
		t.Fatalf("unexpected method %v", got)
	}
}

func TestServer_LogsRejectedCalls(t *testing.T) {
	t.Parallel()

	client, logs := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Call(ctx, "CloseSession", &structpb.Struct{})
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}

	entries := logs.FilterMessage("rpc rejected").All()
	if len(entries) != 1 || entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected one warning, got %v", entries)
	}
}

func TestServer_RecoversFromPanics(t *testing.T) {
	t.Parallel()

	client, logs := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Call(ctx, "ListRecords", &structpb.Struct{})
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected Internal, got %v", err)
	}
	if logs.FilterMessage("rpc panicked").Len() != 1 {
		t.Fatalf("expected panic to be logged")
	}

	// panic 後もサーバーは応答を続ける
	if _, err := client.Call(ctx, "OpenSession", &structpb.Struct{}); err != nil {
		t.Fatalf("OpenSession after panic returned error: %v", err)
	}
}

func TestServer_UnknownMethod(t *testing.T) {
	t.Parallel()

	client, _ := startServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Call(ctx, "DropDatabase", &structpb.Struct{})
	if status.Code(err) != codes.Unimplemented {
		t.Fatalf("expected Unimplemented, got %v", err)
	}
}
