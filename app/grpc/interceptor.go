package grpc

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-payments-router/app/factory"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const requestIDHeader = "x-request-id"

const healthMethodPrefix = "/grpc.health.v1.Health/"

type requestIDKey struct{}

var interceptorLogger = factory.NewModuleLogger("grpc")

func RecoveryInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp interface{}, err error) {
		defer func() {
			if r := recover(); r != nil {
				loggerWithContext(ctx).WithFields(logrus.Fields{
					"method": info.FullMethod,
					"panic":  r,
					"stack":  string(debug.Stack()),
				}).Error("grpc_panic")
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

// RequestIDInterceptor requires x-request-id on every call. Health probes are
// exempt and get a generated id.
func RequestIDInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		requestID := requestIDFromMetadata(ctx)
		if requestID == "" {
			if info == nil || !strings.HasPrefix(info.FullMethod, healthMethodPrefix) {
				return nil, status.Error(codes.InvalidArgument, "x-request-id metadata is required")
			}
			requestID = uuid.NewString()
		}
		ctx = context.WithValue(ctx, requestIDKey{}, requestID)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDHeader, requestID))
		return handler(ctx, req)
	}
}

func LoggingInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		entry := loggerWithContext(ctx).WithFields(logrus.Fields{
			"method":     info.FullMethod,
			"code":       status.Code(err).String(),
			"latency":    time.Since(start).String(),
			"latency_ns": time.Since(start).Nanoseconds(),
		})
		if err != nil {
			entry = entry.WithError(err)
		}
		entry.Info("grpc_request")
		return resp, err
	}
}

func RequestIDFromContext(ctx context.Context) string {
	if value, ok := ctx.Value(requestIDKey{}).(string); ok {
		return value
	}
	return ""
}

func requestIDFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(requestIDHeader)
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func loggerWithContext(ctx context.Context) logrus.FieldLogger {
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		return interceptorLogger.WithField("request_id", requestID)
	}
	return interceptorLogger
}
