package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// ErrorObject is attached only to ERROR entries.
type ErrorObject struct {
	Msg   string `json:"msg"`
	Stack string `json:"stack"`
}

// LogEntry is the single-line JSON format written to stdout.
type LogEntry struct {
	Timestamp string       `json:"timestamp"`
	Level     string       `json:"level"` // DEBUG | INFO | ERROR
	Service   string       `json:"service"`
	Action    string       `json:"action"` // event name, e.g. ride_requested
	Message   string       `json:"message"`
	Hostname  string       `json:"hostname"`
	RequestID string       `json:"request_id,omitempty"`
	RideID    string       `json:"ride_id,omitempty"`
	Details   any          `json:"details,omitempty"`
	Error     *ErrorObject `json:"error,omitempty"`
}

// Logger writes structured single-line JSON entries. Safe for concurrent use.
type Logger struct {
	service  string
	hostname string
	mu       sync.Mutex
	out      io.Writer
}

// New creates a structured logger for the given service, writing to stdout.
func New(service string) *Logger {
	return NewWithWriter(service, os.Stdout)
}

// NewWithWriter creates a logger writing to the given writer (used by tests).
func NewWithWriter(service string, out io.Writer) *Logger {
	hostname, err := os.Hostname()
	if err != nil || strings.TrimSpace(hostname) == "" {
		hostname = "unknown-hostname"
	}
	if strings.TrimSpace(service) == "" {
		service = "unknown-service"
	}
	return &Logger{service: service, hostname: hostname, out: out}
}

// Debug writes a DEBUG line with optional details.
func (l *Logger) Debug(ctx context.Context, action, msg string, details any) {
	l.log(ctx, "DEBUG", action, msg, details, nil)
}

// Info writes an INFO line with optional details.
func (l *Logger) Info(ctx context.Context, action, msg string, details any) {
	l.log(ctx, "INFO", action, msg, details, nil)
}

// Error writes an ERROR line and attaches the error with a stack trace.
func (l *Logger) Error(ctx context.Context, action, msg string, err error, details any) {
	if err == nil {
		err = fmt.Errorf("unknown error")
	}
	l.log(ctx, "ERROR", action, msg, details, &ErrorObject{
		Msg:   strings.TrimSpace(err.Error()),
		Stack: string(debug.Stack()),
	})
}

func (l *Logger) log(ctx context.Context, level, action, msg string, details any, errObj *ErrorObject) {
	entry := LogEntry{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Level:     level,
		Service:   l.service,
		Action:    normalizeAction(action),
		Message:   strings.TrimSpace(msg),
		Hostname:  l.hostname,
		RequestID: fromContext(ctx, ctxKeyRequestID),
		RideID:    fromContext(ctx, ctxKeyRideID),
		Details:   details,
		Error:     errObj,
	}

	b, err := json.Marshal(entry)
	if err != nil {
		// drop the details; they are the only field that can fail to marshal
		entry.Details = map[string]any{"marshal_error": err.Error()}
		b, err = json.Marshal(entry)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log marshal failed: %v\n", err)
			return
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, string(b))
}

// ------------ Context helpers -------------

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "ridedispatch_request_id"
	ctxKeyRideID    ctxKey = "ridedispatch_ride_id"
)

// WithRequestID returns a new context carrying request_id for log correlation.
func (l *Logger) WithRequestID(ctx context.Context, reqID string) context.Context {
	if strings.TrimSpace(reqID) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRequestID, reqID)
}

// WithRideID returns a new context carrying ride_id for log correlation.
func (l *Logger) WithRideID(ctx context.Context, rideID string) context.Context {
	if strings.TrimSpace(rideID) == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKeyRideID, rideID)
}

func fromContext(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(key).(string); ok {
		return s
	}
	return ""
}

func normalizeAction(action string) string {
	action = strings.TrimSpace(action)
	if action == "" {
		return "unspecified"
	}
	return strings.ReplaceAll(strings.ToLower(action), " ", "_")
}
