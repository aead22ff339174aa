package logging

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestLogger attaches a request-scoped logger carrying the request ID and,
// when projectID is set and the request has a valid traceparent header,
// the Cloud Trace correlation fields.
func RequestLogger(projectID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := chimiddleware.GetReqID(r.Context())

			var fields []zap.Field
			correlation := reqID
			if projectID != "" {
				if sc, ok := parseTraceparent(r.Header.Get(traceparentHeader)); ok {
					fields = append(fields, sc.fields(projectID)...)
					correlation = sc.resource(projectID)
				}
			}
			if reqID != "" {
				fields = append(fields, zap.String("requestId", reqID))
			}

			logger := Logger()
			if len(fields) > 0 {
				logger = logger.With(fields...)
			}
			ctx := withTraceID(r.Context(), correlation)
			ctx = WithLogger(ctx, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccessLogger writes one entry per request with a Cloud Logging httpRequest payload.
// Severity follows the response class: 5xx logs as error, 4xx as warning.
func AccessLogger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			entry := httpRequestEntry{
				method:    r.Method,
				url:       r.URL.RequestURI(),
				status:    status,
				size:      ww.BytesWritten(),
				latency:   time.Since(start),
				userAgent: r.UserAgent(),
				remoteIP:  r.RemoteAddr,
				protocol:  r.Proto,
			}
			fields := []zap.Field{
				zap.Object("httpRequest", entry),
				zap.String("route", RoutePattern(r)),
			}

			logger := LoggerFromContext(r.Context())
			switch {
			case status >= http.StatusInternalServerError:
				logger.Error("request completed", fields...)
			case status >= http.StatusBadRequest:
				logger.Warn("request completed", fields...)
			default:
				logger.Info("request completed", fields...)
			}
		})
	}
}

// RoutePattern returns the matched chi pattern, or "unmatched" when no route matched.
func RoutePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// httpRequestEntry mirrors the LogEntry.httpRequest structure of Cloud Logging.
type httpRequestEntry struct {
	method    string
	url       string
	status    int
	size      int
	latency   time.Duration
	userAgent string
	remoteIP  string
	protocol  string
}

func (e httpRequestEntry) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("requestMethod", e.method)
	enc.AddString("requestUrl", e.url)
	enc.AddInt("status", e.status)
	enc.AddString("responseSize", strconv.Itoa(e.size))
	enc.AddString("latency", fmt.Sprintf("%.6fs", e.latency.Seconds()))
	if e.userAgent != "" {
		enc.AddString("userAgent", e.userAgent)
	}
	if e.remoteIP != "" {
		enc.AddString("remoteIp", e.remoteIP)
	}
	enc.AddString("protocol", e.protocol)
	return nil
}
