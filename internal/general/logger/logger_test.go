package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestEntriesAreSingleLineJSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("dispatch-service", &buf)

	ctx := l.WithRequestID(context.Background(), "req-123")
	ctx = l.WithRideID(ctx, "ride-9")
	l.Info(ctx, "ride_requested", "New ride request accepted", map[string]any{"seats": 2})

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry.Level != "INFO" || entry.Action != "ride_requested" {
		t.Fatalf("unexpected entry: %+v", entry)
	}
	if entry.Service != "dispatch-service" {
		t.Fatalf("service not propagated: %s", entry.Service)
	}
	if entry.RequestID != "req-123" || entry.RideID != "ride-9" {
		t.Fatalf("context ids not propagated: %+v", entry)
	}
	if entry.Error != nil {
		t.Fatal("info entry must not carry an error object")
	}
}

func TestErrorCarriesStack(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("dispatch-service", &buf)

	l.Error(context.Background(), "offer_send_failed", "boom", errors.New("socket closed"), nil)

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry.Error == nil || entry.Error.Msg != "socket closed" {
		t.Fatalf("error object missing: %+v", entry.Error)
	}
	if entry.Error.Stack == "" {
		t.Fatal("stack trace missing")
	}
}

func TestUnmarshalableDetailsDoNotDropEntry(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter("dispatch-service", &buf)

	l.Info(context.Background(), "weird", "details cannot marshal", map[string]any{"fn": func() {}})

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("fallback output is not valid JSON: %v", err)
	}
	if entry.Action != "weird" {
		t.Fatalf("entry lost: %+v", entry)
	}
}
