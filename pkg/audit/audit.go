// Package audit provides an append-only JSON-line audit trail for Bolt
// session lifecycle events: LOGON/LOGOFF/RESET/GOODBYE and the failures
// that accompany them. It is an optional sink — a nil *Logger, or one
// built with Config{Enabled: false}, makes Log a no-op so callers never
// need to branch on whether auditing is configured.
package audit

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EventType categorizes an audit event.
type EventType string

const (
	EventLogon       EventType = "LOGON"
	EventLogonFailed EventType = "LOGON_FAILED"
	EventLogoff      EventType = "LOGOFF"
	EventReset       EventType = "RESET"
	EventGoodbye     EventType = "GOODBYE"

	// EventAccessDenied records a session rejected for a reason other
	// than bad credentials (e.g. a locked account).
	EventAccessDenied EventType = "ACCESS_DENIED"
)

// Event is one immutable audit log entry.
type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`

	UserID    string `json:"user_id,omitempty"`
	Username  string `json:"username,omitempty"`
	RemoteAddr string `json:"remote_addr,omitempty"`
	SessionID string `json:"session_id,omitempty"`

	Success bool   `json:"success"`
	Reason  string `json:"reason,omitempty"`
}

// Config holds audit logger configuration.
type Config struct {
	Enabled bool

	// LogPath is the path to the audit log file. Ignored when a Logger
	// is built with NewLoggerWithWriter.
	LogPath string

	// SyncWrites forces fsync after each write.
	SyncWrites bool
}

// DefaultConfig returns sensible defaults for audit logging.
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		LogPath:    "./logs/audit.log",
		SyncWrites: true,
	}
}

// Logger writes Events as newline-delimited JSON.
type Logger struct {
	mu       sync.Mutex
	writer   io.Writer
	file     *os.File
	config   Config
	sequence uint64
	closed   bool
}

// NewLogger opens (creating if necessary) the audit log file at
// config.LogPath. A disabled config returns a Logger whose Log is a
// no-op without touching the filesystem.
func NewLogger(config Config) (*Logger, error) {
	if !config.Enabled {
		return &Logger{config: config}, nil
	}

	dir := filepath.Dir(config.LogPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("creating audit log directory: %w", err)
	}
	file, err := os.OpenFile(config.LogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0640)
	if err != nil {
		return nil, fmt.Errorf("opening audit log file: %w", err)
	}
	return &Logger{writer: file, file: file, config: config}, nil
}

// NewLoggerWithWriter builds a Logger over an arbitrary writer, for
// tests or for shipping events somewhere other than a local file.
func NewLoggerWithWriter(writer io.Writer, config Config) *Logger {
	config.Enabled = true
	return &Logger{writer: writer, config: config}
}

// Log records an audit event. Safe to call on a nil *Logger.
func (l *Logger) Log(event Event) error {
	if l == nil || !l.config.Enabled {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return fmt.Errorf("audit logger is closed")
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.ID == "" {
		l.sequence++
		event.ID = fmt.Sprintf("audit-%d-%d", event.Timestamp.UnixNano(), l.sequence)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling audit event: %w", err)
	}
	if _, err := l.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit event: %w", err)
	}
	if l.config.SyncWrites && l.file != nil {
		if err := l.file.Sync(); err != nil {
			return fmt.Errorf("syncing audit log: %w", err)
		}
	}
	return nil
}

// LogSession logs a LOGON/LOGOFF/RESET/GOODBYE-class event for a session.
func (l *Logger) LogSession(eventType EventType, sessionID, userID, username, remoteAddr string, success bool, reason string) error {
	return l.Log(Event{
		Type: eventType, SessionID: sessionID, UserID: userID, Username: username,
		RemoteAddr: remoteAddr, Success: success, Reason: reason,
	})
}

// Close closes the underlying file, if any.
func (l *Logger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

// Query filters Events read back from the log (for compliance reporting).
type Query struct {
	StartTime  time.Time
	EndTime    time.Time
	EventTypes []EventType
	SessionID  string
	Success    *bool
	Limit      int
	Offset     int
}

// QueryResult holds audit query results.
type QueryResult struct {
	Events     []Event
	TotalCount int
	HasMore    bool
}

// Reader reads back a Logger's JSON-line file.
type Reader struct {
	path string
}

// NewReader creates an audit log reader over path.
func NewReader(path string) *Reader {
	return &Reader{path: path}
}

// Query searches the audit log based on criteria.
func (r *Reader) Query(q Query) (*QueryResult, error) {
	file, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &QueryResult{Events: []Event{}}, nil
		}
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer file.Close()

	var events []Event
	decoder := json.NewDecoder(file)
	for {
		var event Event
		if err := decoder.Decode(&event); err != nil {
			if err == io.EOF {
				break
			}
			continue
		}
		if !q.StartTime.IsZero() && event.Timestamp.Before(q.StartTime) {
			continue
		}
		if !q.EndTime.IsZero() && event.Timestamp.After(q.EndTime) {
			continue
		}
		if len(q.EventTypes) > 0 && !containsEventType(q.EventTypes, event.Type) {
			continue
		}
		if q.SessionID != "" && event.SessionID != q.SessionID {
			continue
		}
		if q.Success != nil && event.Success != *q.Success {
			continue
		}
		events = append(events, event)
	}

	total := len(events)
	if q.Offset > 0 {
		if q.Offset >= len(events) {
			events = nil
		} else {
			events = events[q.Offset:]
		}
	}
	if q.Limit > 0 && len(events) > q.Limit {
		events = events[:q.Limit]
	}
	return &QueryResult{Events: events, TotalCount: total, HasMore: q.Offset+len(events) < total}, nil
}

func containsEventType(types []EventType, t EventType) bool {
	for _, et := range types {
		if et == t {
			return true
		}
	}
	return false
}
