package bolt

import (
	"crypto/tls"
	"log"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/nornicgraph/boltd/pkg/audit"
	"github.com/nornicgraph/boltd/pkg/backend"
	"github.com/nornicgraph/boltd/pkg/chunk"
)

// Logger is the function value every bolt component logs through, so a
// caller can wire it to whatever structured logger their process already
// uses. The zero Config gets one that wraps log.Printf.
type Logger func(format string, args ...any)

func defaultLogger(format string, args ...any) {
	log.Printf(format, args...)
}

// Config configures a Server. The zero value is not directly usable:
// Backend is required. DefaultConfig fills in everything else.
type Config struct {
	// ListenAddr is the TCP address to accept connections on, e.g.
	// ":7687". Unused by Serve, which takes its own net.Listener.
	ListenAddr string

	// TLSConfig, if non-nil, wraps the listener with tls.NewListener.
	// Bolt itself has no TLS handshake of its own (spec.md §6): a server
	// either terminates TLS at the socket or doesn't.
	TLSConfig *tls.Config

	// MaxSessions caps concurrently open connections; ListenAndServe
	// refuses new connections past this with an immediate close once the
	// limit is reached. 0 means unlimited.
	MaxSessions int

	// IdleTimeout closes a connection that sends no message for this
	// long. 0 disables idle timeouts.
	IdleTimeout time.Duration

	// MaxMessageBytes bounds a single reassembled message (spec.md §4.2,
	// §7 Resource kind). 0 uses chunk.DefaultMaxMessageSize.
	MaxMessageBytes int

	// ChunkSize is the outgoing chunk payload size. 0 uses
	// chunk.DefaultChunkSize.
	ChunkSize int

	// SupportedVersions lists the Bolt protocol versions this server can
	// speak, highest preference first for tie-breaking display purposes
	// only — negotiation always picks the mutually-highest regardless of
	// slice order. Defaults to v5.4 down to v5.1.
	SupportedVersions []Version

	// Backend executes queries; required.
	Backend backend.Backend

	// Auth validates LOGON credentials; required.
	Auth backend.AuthValidator

	// Audit receives session lifecycle events. A nil Audit is a no-op
	// (audit.Logger is nil-receiver-safe).
	Audit *audit.Logger

	// NotificationsMinimum/NotificationsExclude are the server-side
	// defaults HELLO's notification-filtering extras may override.
	NotificationsMinimum string
	NotificationsExclude []string

	Logger Logger

	// TracerProvider/MeterProvider default to the otel global providers,
	// which are no-ops until an application installs real ones.
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// DefaultConfig returns a Config with every ambient knob set to a sane
// default; Backend and Auth are still the caller's responsibility to set.
func DefaultConfig() Config {
	return Config{
		ListenAddr:        ":7687",
		MaxSessions:       0,
		IdleTimeout:       0,
		MaxMessageBytes:   chunk.DefaultMaxMessageSize,
		ChunkSize:         chunk.DefaultChunkSize,
		SupportedVersions: defaultSupportedVersions(),
		Logger:            defaultLogger,
	}
}

func defaultSupportedVersions() []Version {
	return []Version{{5, 4}, {5, 3}, {5, 2}, {5, 1}}
}

func (c Config) logger() Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return defaultLogger
}
