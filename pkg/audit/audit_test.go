package audit

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestNewLogger(t *testing.T) {
	t.Run("disabled logger", func(t *testing.T) {
		logger, err := NewLogger(Config{Enabled: false})
		if err != nil {
			t.Fatalf("NewLogger() error = %v", err)
		}
		defer logger.Close()

		if err := logger.Log(Event{Type: EventLogon}); err != nil {
			t.Errorf("Log() on disabled logger should not error, got %v", err)
		}
	})

	t.Run("nil logger", func(t *testing.T) {
		var logger *Logger
		if err := logger.Log(Event{Type: EventLogon}); err != nil {
			t.Errorf("Log() on nil logger should not error, got %v", err)
		}
		if err := logger.Close(); err != nil {
			t.Errorf("Close() on nil logger should not error, got %v", err)
		}
	})

	t.Run("file logger", func(t *testing.T) {
		tmpDir := t.TempDir()
		logPath := filepath.Join(tmpDir, "audit.log")

		logger, err := NewLogger(Config{Enabled: true, LogPath: logPath})
		if err != nil {
			t.Fatalf("NewLogger() error = %v", err)
		}
		defer logger.Close()

		err = logger.Log(Event{Type: EventLogon, UserID: "user-123", Username: "testuser", Success: true})
		if err != nil {
			t.Fatalf("Log() error = %v", err)
		}

		data, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("reading log file: %v", err)
		}
		if !strings.Contains(string(data), "LOGON") {
			t.Error("expected log file to contain LOGON event")
		}
		if !strings.Contains(string(data), "user-123") {
			t.Error("expected log file to contain user-123")
		}
	})
}

func TestLoggerWithWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, Config{})

	events := []Event{
		{Type: EventLogon, UserID: "user-1", Success: true},
		{Type: EventReset, SessionID: "sess-1", Success: true},
		{Type: EventLogonFailed, UserID: "user-2", Success: false, Reason: "wrong password"},
	}
	for _, e := range events {
		if err := logger.Log(e); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 log lines, got %d", len(lines))
	}

	var parsed Event
	if err := json.Unmarshal([]byte(lines[0]), &parsed); err != nil {
		t.Fatalf("parsing first event: %v", err)
	}
	if parsed.Type != EventLogon {
		t.Errorf("expected LOGON, got %s", parsed.Type)
	}
	if parsed.ID == "" {
		t.Error("expected auto-generated ID")
	}
	if parsed.Timestamp.IsZero() {
		t.Error("expected auto-generated timestamp")
	}
}

func TestLogSession(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(&buf, Config{})

	err := logger.LogSession(EventLogon, "sess-1", "user-123", "testuser", "192.168.1.1:9001", true, "")
	if err != nil {
		t.Fatalf("LogSession() error = %v", err)
	}

	var event Event
	if err := json.Unmarshal(buf.Bytes(), &event); err != nil {
		t.Fatalf("parsing event: %v", err)
	}
	if event.Type != EventLogon {
		t.Errorf("expected LOGON, got %s", event.Type)
	}
	if event.SessionID != "sess-1" || event.UserID != "user-123" || event.RemoteAddr != "192.168.1.1:9001" {
		t.Errorf("unexpected event fields: %+v", event)
	}
}

func TestReader(t *testing.T) {
	tmpDir := t.TempDir()
	logPath := filepath.Join(tmpDir, "audit.log")

	logger, err := NewLogger(Config{Enabled: true, LogPath: logPath})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	now := time.Now().UTC()
	events := []Event{
		{Timestamp: now.Add(-2 * time.Hour), Type: EventLogon, SessionID: "sess-1", Success: true},
		{Timestamp: now.Add(-1 * time.Hour), Type: EventReset, SessionID: "sess-1", Success: true},
		{Timestamp: now.Add(-30 * time.Minute), Type: EventLogonFailed, SessionID: "sess-2", Success: false},
		{Timestamp: now, Type: EventLogoff, SessionID: "sess-1", Success: true},
	}
	for _, e := range events {
		if err := logger.Log(e); err != nil {
			t.Fatalf("Log() error = %v", err)
		}
	}
	logger.Close()

	reader := NewReader(logPath)

	t.Run("query all", func(t *testing.T) {
		result, err := reader.Query(Query{})
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if result.TotalCount != 4 {
			t.Errorf("expected 4 events, got %d", result.TotalCount)
		}
	})

	t.Run("query by session", func(t *testing.T) {
		result, err := reader.Query(Query{SessionID: "sess-1"})
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if result.TotalCount != 3 {
			t.Errorf("expected 3 events for sess-1, got %d", result.TotalCount)
		}
	})

	t.Run("query by event type", func(t *testing.T) {
		result, err := reader.Query(Query{EventTypes: []EventType{EventLogon, EventLogonFailed}})
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if result.TotalCount != 2 {
			t.Errorf("expected 2 LOGON-class events, got %d", result.TotalCount)
		}
	})

	t.Run("query by success", func(t *testing.T) {
		success := false
		result, err := reader.Query(Query{Success: &success})
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if result.TotalCount != 1 {
			t.Errorf("expected 1 failed event, got %d", result.TotalCount)
		}
	})

	t.Run("query with pagination", func(t *testing.T) {
		result, err := reader.Query(Query{Limit: 2})
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if len(result.Events) != 2 {
			t.Errorf("expected 2 events with limit, got %d", len(result.Events))
		}
		if !result.HasMore {
			t.Error("expected HasMore to be true")
		}

		result2, err := reader.Query(Query{Limit: 2, Offset: 2})
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if len(result2.Events) != 2 {
			t.Errorf("expected 2 events with offset, got %d", len(result2.Events))
		}
	})

	t.Run("query by time range", func(t *testing.T) {
		result, err := reader.Query(Query{
			StartTime: now.Add(-90 * time.Minute),
			EndTime:   now.Add(-15 * time.Minute),
		})
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		if result.TotalCount != 2 {
			t.Errorf("expected 2 events in time range, got %d", result.TotalCount)
		}
	})
}

func TestReaderOnMissingFileReturnsEmptyResult(t *testing.T) {
	reader := NewReader(filepath.Join(t.TempDir(), "does-not-exist.log"))
	result, err := reader.Query(Query{})
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(result.Events) != 0 {
		t.Errorf("expected no events, got %d", len(result.Events))
	}
}
