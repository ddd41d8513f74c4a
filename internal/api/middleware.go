package api

import (
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aquasight/plant-visualizer/internal/logging"
)

const requestIDHeader = "X-Request-Id"

// statusWriter captures the response code for metrics and tracing.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// route wraps a handler with request-id propagation, a server span, and
// HTTP metrics, keyed by the logical route name.
func (s *Server) route(name string, next http.HandlerFunc) http.Handler {
	tracer := otel.Tracer("plant-visualizer/api")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := r.Header.Get(requestIDHeader); id != "" {
			ctx = logging.ContextWithRequestID(ctx, id)
		}
		ctx, log := logging.WithRequestLogger(ctx, s.log)
		ctx = logging.ContextWithLogger(ctx, log)
		w.Header().Set(requestIDHeader, logging.RequestIDFromContext(ctx))

		ctx, span := tracer.Start(ctx, name,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.route", name),
				attribute.String("http.method", r.Method),
			),
		)
		defer span.End()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		start := time.Now()
		next(sw, r.WithContext(ctx))
		elapsed := time.Since(start)

		span.SetAttributes(attribute.Int("http.status_code", sw.code))
		if sw.code >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(sw.code))
		}
		if s.metrics != nil {
			s.metrics.RecordHTTP(name, r.Method, sw.code, elapsed)
		}
		log.Debug(ctx, "request handled",
			logging.String("route", name),
			logging.Int("code", sw.code),
			logging.Duration("elapsed", elapsed))
	})
}
