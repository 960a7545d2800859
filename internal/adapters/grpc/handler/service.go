package handler

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName は gRPC サービスの完全修飾名です。
const ServiceName = "personnel.backoffice.v1.BackofficeService"

// BackofficeServer は BackofficeService のサーバー側インターフェースです。
// リクエストとレスポンスはいずれも google.protobuf.Struct です。
type BackofficeServer interface {
	OpenSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CloseSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	OpenDialog(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CloseDialog(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateCriteria(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRecords(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetStats(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitCreate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitEdit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitDelete(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SubmitRestore(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CreatePerson(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListPersons(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(BackofficeServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var backofficeMethods = []struct {
	name string
	call unaryMethod
}{
	{"OpenSession", BackofficeServer.OpenSession},
	{"CloseSession", BackofficeServer.CloseSession},
	{"OpenDialog", BackofficeServer.OpenDialog},
	{"CloseDialog", BackofficeServer.CloseDialog},
	{"UpdateCriteria", BackofficeServer.UpdateCriteria},
	{"ListRecords", BackofficeServer.ListRecords},
	{"GetStats", BackofficeServer.GetStats},
	{"SubmitCreate", BackofficeServer.SubmitCreate},
	{"SubmitEdit", BackofficeServer.SubmitEdit},
	{"SubmitDelete", BackofficeServer.SubmitDelete},
	{"SubmitRestore", BackofficeServer.SubmitRestore},
	{"CreatePerson", BackofficeServer.CreatePerson},
	{"ListPersons", BackofficeServer.ListPersons},
}

// BackofficeServiceDesc は BackofficeService の grpc.ServiceDesc です。
var BackofficeServiceDesc = newServiceDesc()

func newServiceDesc() grpc.ServiceDesc {
	methods := make([]grpc.MethodDesc, 0, len(backofficeMethods))
	for _, m := range backofficeMethods {
		methods = append(methods, grpc.MethodDesc{
			MethodName: m.name,
			Handler:    unaryHandler(FullMethod(m.name), m.call),
		})
	}
	return grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*BackofficeServer)(nil),
		Methods:     methods,
		Streams:     []grpc.StreamDesc{},
		Metadata:    "personnel/backoffice/v1/backoffice.proto",
	}
}

// FullMethod は gRPC のメソッドパスを返します。
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unaryHandler(fullMethod string, call unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(BackofficeServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(BackofficeServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RegisterBackofficeServer は BackofficeService を登録します。
func RegisterBackofficeServer(s grpc.ServiceRegistrar, srv BackofficeServer) {
	s.RegisterService(&BackofficeServiceDesc, srv)
}

// BackofficeClient は BackofficeService のクライアントです。
type BackofficeClient struct {
	cc grpc.ClientConnInterface
}

// NewBackofficeClient は BackofficeClient を生成します。
func NewBackofficeClient(cc grpc.ClientConnInterface) *BackofficeClient {
	return &BackofficeClient{cc: cc}
}

// Call は name のメソッドを呼び出します。
func (c *BackofficeClient) Call(ctx context.Context, name string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(name), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
