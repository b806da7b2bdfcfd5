package api

import (
	"context"

	"officequeue/internal/metrics"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	QueueServiceName = "officequeue.v1.QueueService"

	methodGetStatus = "/" + QueueServiceName + "/GetStatus"
	methodListQueue = "/" + QueueServiceName + "/ListQueue"
)

// QueueServiceServer is the read-only gRPC surface. Messages are protobuf
// well-known types so no generated code is needed.
type QueueServiceServer interface {
	GetStatus(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
	ListQueue(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

var queueServiceDesc = grpc.ServiceDesc{
	ServiceName: QueueServiceName,
	HandlerType: (*QueueServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetStatus", Handler: getStatusHandler},
		{MethodName: "ListQueue", Handler: listQueueHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "officequeue/v1/queue.proto",
}

func RegisterQueueServiceServer(s grpc.ServiceRegistrar, srv QueueServiceServer) {
	s.RegisterService(&queueServiceDesc, srv)
}

func getStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueueServiceServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetStatus}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(QueueServiceServer).GetStatus(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func listQueueHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(QueueServiceServer).ListQueue(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodListQueue}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(QueueServiceServer).ListQueue(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// QueueServiceClient calls the queue service over a client connection.
type QueueServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewQueueServiceClient(cc grpc.ClientConnInterface) *QueueServiceClient {
	return &QueueServiceClient{cc: cc}
}

func (c *QueueServiceClient) GetStatus(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetStatus, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *QueueServiceClient) ListQueue(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodListQueue, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// QueueService implements QueueServiceServer on top of a QueueReader.
type QueueService struct {
	queue QueueReader
	log   zerolog.Logger
}

func NewQueueService(queue QueueReader, logger *zerolog.Logger) *QueueService {
	log := zerolog.Nop()
	if logger != nil {
		log = logger.With().Str("component", "grpc").Logger()
	}
	return &QueueService{queue: queue, log: log}
}

func (s *QueueService) GetStatus(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	metrics.IncAPI("grpc_status")

	st, err := s.queue.GetStatus(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load office status")
		return nil, status.Error(codes.Unavailable, "status unavailable")
	}

	dto := toStatusDTO(st)
	out, err := structpb.NewStruct(map[string]any{
		"status":     dto.Status,
		"message":    dto.Message,
		"updated_at": dto.UpdatedAt,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "encode status")
	}
	return out, nil
}

func (s *QueueService) ListQueue(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	metrics.IncAPI("grpc_queue")

	entries, err := s.queue.Snapshot(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to load queue")
		return nil, status.Error(codes.Unavailable, "queue unavailable")
	}

	items := make([]any, 0, len(entries))
	for _, e := range toQueueDTO(entries) {
		items = append(items, map[string]any{
			"position":     e.Position,
			"user_id":      e.UserID,
			"display_name": e.DisplayName,
			"joined_at":    e.JoinedAt,
		})
	}

	out, err := structpb.NewStruct(map[string]any{
		"entries": items,
		"total":   len(entries),
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "encode queue")
	}
	return out, nil
}
