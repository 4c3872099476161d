package utils

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type contextKey string

type Fields = logrus.Fields

const (
	CorrelationIDKey contextKey = "correlation_id"
	RequestIDKey     contextKey = "request_id"
)

// Gin context keys the gateway handlers set so the request log line can
// say what was asked for and what was produced.
const (
	LogKeyURL          = "url"
	LogKeyFormatID     = "format_id"
	LogKeyDownloadPath = "download_path"
)

// RequestLogKeys lists the gin context keys copied into the request log.
var RequestLogKeys = []string{LogKeyURL, LogKeyFormatID, LogKeyDownloadPath}

var (
	logger *logrus.Logger

	defaultsMu    sync.RWMutex
	defaultFields = Fields{}
)

func init() {
	logger = newLogger(os.Getenv("LOG_LEVEL"), os.Stdout)
}

// newLogger builds a JSON logger whose keys match what the log
// collectors of both deployments index on.
func newLogger(levelName string, w io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	l.SetOutput(w)

	if levelName == "" {
		levelName = "info"
	}
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		l.Warnf("Invalid log level %s, defaulting to info", levelName)
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	return l
}

func GetLogger() *logrus.Logger {
	return logger
}

// SetOutput redirects the process logger, mostly for tests.
func SetOutput(w io.Writer) {
	logger.SetOutput(w)
}

// SetDefaultFields stamps fields on every entry built from a context,
// e.g. the deployment mode and extractor backend. It replaces any
// previous defaults.
func SetDefaultFields(fields Fields) {
	copied := make(Fields, len(fields))
	for k, v := range fields {
		copied[k] = v
	}

	defaultsMu.Lock()
	defaultFields = copied
	defaultsMu.Unlock()
}

func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, correlationID)
}

func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationIDKey).(string); ok {
		return id
	}
	return ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

func GenerateCorrelationID() string {
	return uuid.New().String()
}

func GenerateRequestID() string {
	return "req_" + uuid.New().String()
}

// LoggerFromContext returns an entry carrying the default fields and the
// request's correlation and request IDs.
func LoggerFromContext(ctx context.Context) *logrus.Entry {
	defaultsMu.RLock()
	entry := logger.WithFields(defaultFields)
	defaultsMu.RUnlock()

	if correlationID := GetCorrelationID(ctx); correlationID != "" {
		entry = entry.WithField("correlation_id", correlationID)
	}

	if requestID := GetRequestID(ctx); requestID != "" {
		entry = entry.WithField("request_id", requestID)
	}

	return entry
}

// LogAt logs message at level; err is attached when non-nil.
func LogAt(ctx context.Context, level logrus.Level, message string, err error, fields ...Fields) {
	entry := LoggerFromContext(ctx)
	if err != nil {
		entry = entry.WithError(err)
	}
	if len(fields) > 0 {
		entry = entry.WithFields(fields[0])
	}
	entry.Log(level, message)
}

func LogInfo(ctx context.Context, message string, fields ...Fields) {
	LogAt(ctx, logrus.InfoLevel, message, nil, fields...)
}

func LogError(ctx context.Context, message string, err error, fields ...Fields) {
	LogAt(ctx, logrus.ErrorLevel, message, err, fields...)
}

func LogWarn(ctx context.Context, message string, fields ...Fields) {
	LogAt(ctx, logrus.WarnLevel, message, nil, fields...)
}

func LogDebug(ctx context.Context, message string, fields ...Fields) {
	LogAt(ctx, logrus.DebugLevel, message, nil, fields...)
}
