package logger

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

type Logger struct {
	l         *log.Logger
	component string
	traceID   string
}

func New(l *log.Logger) *Logger {
	return &Logger{l: l}
}

// Discard returns a logger that drops every message.
func Discard() *Logger {
	return New(log.New(io.Discard, "", 0))
}

// With returns a copy of the logger that prefixes messages with component.
func (l *Logger) With(component string) *Logger {
	c := *l
	c.component = component

	return &c
}

// WithContext returns a copy carrying the trace id of the span in ctx, if any.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	traceID := TraceID(ctx)
	if traceID == "" {
		return l
	}

	c := *l
	c.traceID = traceID

	return &c
}

func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}

	return uuid.UUID(sc.TraceID()).String()
}

func (l *Logger) LogErrorf(format string, v ...any) {
	l.print("Error", format, v...)
}

func (l *Logger) LogWarnf(format string, v ...any) {
	l.print("Warn", format, v...)
}

func (l *Logger) LogInfo(format string, v ...any) {
	l.print("Info", format, v...)
}

func (l *Logger) print(level, format string, v ...any) {
	msg := fmt.Sprintf(format, v...)

	switch {
	case l.component != "" && l.traceID != "":
		l.l.Printf("[%s] %s (traceID: %s): %s\n", level, l.component, l.traceID, msg)
	case l.component != "":
		l.l.Printf("[%s] %s: %s\n", level, l.component, msg)
	case l.traceID != "":
		l.l.Printf("[%s] (traceID: %s): %s\n", level, l.traceID, msg)
	default:
		l.l.Printf("[%s]: %s\n", level, msg)
	}
}
