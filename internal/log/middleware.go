package log

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"

	// RequestIDHeader carries the request id in and out of the hub.
	RequestIDHeader = "X-Request-ID"
)

// WithLogger returns a copy of ctx carrying logger
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, LoggerContextKey, logger)
}

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	// Return default logger if not found
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// GinMiddleware attaches a request-scoped logger to every request and logs
// its start and completion. Completion is logged at warn for 4xx and error for 5xx.
func GinMiddleware(logger *Logger) gin.HandlerFunc {
	logger = logger.WithComponent(ComponentHTTP)
	return func(c *gin.Context) {
		start := time.Now()

		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(RequestIDHeader, requestID)

		reqLogger := logger.With(FieldRequestID, requestID)
		c.Request = c.Request.WithContext(WithLogger(c.Request.Context(), reqLogger))

		r := c.Request
		reqLogger.DebugContext(r.Context(), "HTTP request started",
			NewFields().
				WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()).
				WithClientIP(c.ClientIP()).
				ToSlice()...)

		c.Next()

		status := c.Writer.Status()
		level := slog.LevelInfo
		if status >= 400 && status < 500 {
			level = slog.LevelWarn
		} else if status >= 500 {
			level = slog.LevelError
		}

		fields := NewFields().
			WithHTTPRequest(r.Method, c.FullPath(), r.URL.RawQuery, "").
			WithHTTPResponse(status, time.Since(start).Milliseconds(), status < 400).
			WithClientIP(c.ClientIP()).
			WithComponent(ComponentHTTP)
		if len(c.Errors) > 0 {
			fields[FieldError] = c.Errors.String()
		}

		reqLogger.Logger.Log(r.Context(), level, "HTTP request completed", fields.ToSlice()...)
	}
}
