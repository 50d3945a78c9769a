package clog

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/oklog/ulid/v2"
	"google.golang.org/protobuf/proto"
)

const (
	RequestIDHeader       = "X-Request-Id"
	RequestIDAttributeKey = "request_id"

	HealthCheckProcedure = "/grpc.health.v1.Health/Check"
)

type accessConfig struct {
	skip []string
}

// AccessOption configures the access log middleware and interceptor.
type AccessOption func(*accessConfig)

// SkipPaths suppresses the access log line for the given HTTP paths or
// connect procedures. The request still gets an attribute bag.
func SkipPaths(paths ...string) AccessOption {
	return func(c *accessConfig) {
		c.skip = append(c.skip, paths...)
	}
}

func newAccessConfig(opts []AccessOption) accessConfig {
	var cfg accessConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// contextWithRequest opens the attribute bag for one inbound call. A request
// id supplied by the client is kept so log lines can be joined across hops.
func contextWithRequest(ctx context.Context, requestID string, attrs map[string]any) context.Context {
	if requestID == "" {
		requestID = ulid.Make().String()
	}
	ctx = ContextWithSlog(ctx)
	attrs[RequestIDAttributeKey] = requestID
	AddAttributes(ctx, attrs)
	return ctx
}

func SlogChiMiddleware(opts ...AccessOption) func(http.Handler) http.Handler {
	cfg := newAccessConfig(opts)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ctx := contextWithRequest(r.Context(), r.Header.Get(RequestIDHeader), map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
			})
			w.Header().Set(RequestIDHeader, GetAttribute[string](ctx, RequestIDAttributeKey))
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))
			if slices.Contains(cfg.skip, r.URL.Path) {
				return
			}
			AddAttributes(ctx, map[string]any{
				"status":   ww.Status(),
				"bytes":    ww.BytesWritten(),
				"duration": time.Since(start),
			})
			logAt(ctx, HTTPStatusToLevel(ww.Status()), http.StatusText(ww.Status()))
		})
	}
}

// NewSlogConnectInterceptor logs one line per unary connect call.
func NewSlogConnectInterceptor(opts ...AccessOption) connect.Interceptor {
	cfg := newAccessConfig(opts)
	return connect.UnaryInterceptorFunc(func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			procedure := req.Spec().Procedure
			ctx = contextWithRequest(ctx, req.Header().Get(RequestIDHeader), map[string]any{
				"procedure": procedure,
			})
			resp, err := next(ctx, req)
			if !slices.Contains(cfg.skip, procedure) {
				logConnectResult(ctx, time.Since(start), err)
			}
			return resp, err
		}
	})
}

func logConnectResult(ctx context.Context, elapsed time.Duration, err error) {
	AddAttribute(ctx, "duration", elapsed)
	if err == nil {
		AddAttribute(ctx, "code", "ok")
		slog.InfoContext(ctx, "Finished")
		return
	}
	var ce *connect.Error
	if !errors.As(err, &ce) {
		ce = connect.NewError(connect.CodeUnknown, err)
	}
	AddAttribute(ctx, "code", ce.Code().String())
	var details []proto.Message
	for _, d := range ce.Details() {
		if v, derr := d.Value(); derr == nil {
			details = append(details, v)
		}
	}
	if len(details) > 0 {
		AddAttribute(ctx, "err_details", details)
	}
	logAt(ctx, ConnectCodeToLevel(ce.Code()), ce.Message())
}
