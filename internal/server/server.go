package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	httpapi "github.com/hb-chen/flowdesign/internal/api/http"
	"github.com/hb-chen/flowdesign/internal/config"
	"github.com/hb-chen/flowdesign/internal/editor"
	"github.com/hb-chen/flowdesign/pkg/grpc/gateway"
	"github.com/hb-chen/flowdesign/pkg/logger"
)

// ServiceName is reported by the gRPC health service
const ServiceName = "flowdesign.Editor"

// Serve starts both HTTP and gRPC servers
func Serve(ctx context.Context, cfg *config.Config, session *editor.Session) error {
	wg := &sync.WaitGroup{}

	// Start gRPC server
	if cfg.Server.GRPC.Addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := runGRPC(ctx, cfg.Server.GRPC.Addr); err != nil {
				logger.Errorf("gRPC server error: %v", err)
			}
		}()
	}

	// Start HTTP server (grpc-gateway mux with the editor API)
	if cfg.Server.HTTP.Addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := runHTTP(ctx, cfg.Server.HTTP.Addr, session); err != nil {
				logger.Errorf("HTTP server error: %v", err)
			}
		}()
	}

	// Wait for context cancellation
	<-ctx.Done()
	logger.Info("Shutting down servers...")
	wg.Wait()

	return nil
}

// NewGRPCServer creates the gRPC server with the health service registered
func NewGRPCServer() (*grpc.Server, *health.Server) {
	s := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)
	return s, hs
}

// runGRPC starts the gRPC server
func runGRPC(ctx context.Context, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	s, hs := NewGRPCServer()

	logger.Infof("gRPC server listening on %s", addr)

	go func() {
		<-ctx.Done()
		logger.Info("Stopping gRPC server...")
		hs.Shutdown()
		s.GracefulStop()
	}()

	if err := s.Serve(lis); err != nil {
		return fmt.Errorf("gRPC server failed: %w", err)
	}

	return nil
}

// NewHandler builds the HTTP handler serving the editor API
func NewHandler(session *editor.Session) http.Handler {
	gw := gateway.New(
		runtime.WithErrorHandler(httpErrorHandler),
	)

	handlers := httpapi.NewHandlers(session, logger.With("component", "http"))
	handlers.Register(gw)

	return accessLogMiddleware(gw)
}

// runHTTP starts the HTTP server
func runHTTP(ctx context.Context, httpAddr string, session *editor.Session) error {
	srv := &http.Server{
		Addr:              httpAddr,
		Handler:           NewHandler(session),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Infof("HTTP server listening on %s", httpAddr)

	go func() {
		<-ctx.Done()
		logger.Info("Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	return nil
}

// httpErrorHandler handles errors from grpc-gateway
func httpErrorHandler(ctx context.Context, mux *runtime.ServeMux, marshaler runtime.Marshaler, w http.ResponseWriter, r *http.Request, err error) {
	logger.Errorf("HTTP error: %v, path: %s", err, r.URL.Path)
	runtime.DefaultHTTPErrorHandler(ctx, mux, marshaler, w, r, err)
}

// accessLogMiddleware creates a middleware that logs HTTP access
func accessLogMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Create a response writer wrapper to capture status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start)

		clientIP := r.RemoteAddr
		if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
			clientIP = forwarded
		} else if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
			clientIP = realIP
		}

		userAgent := r.UserAgent()
		if userAgent == "" {
			userAgent = "-"
		}

		// Log access in Apache Common Log Format style
		responseSize := rw.bytesWritten
		if responseSize == 0 {
			responseSize = -1
		}
		logger.Infof("%s - \"%s %s %s\" %d %d \"%s\" %v",
			clientIP,
			r.Method,
			r.URL.Path,
			r.Proto,
			rw.statusCode,
			responseSize,
			userAgent,
			duration,
		)
	})
}

// responseWriter wraps http.ResponseWriter to capture status code and response size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += int64(n)
	return n, err
}

// Flush lets SSE streams through the access log wrapper
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
