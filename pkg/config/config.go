// Package config loads boltd's server configuration from an optional YAML
// file overlaid with BOLTD_* environment variables, in the same layered
// style as NornicDB's cluster configuration.
package config

import (
	"crypto/tls"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every field spec.md §6 enumerates for the Bolt server's
// external configuration surface.
type Config struct {
	// ListenAddr is the TCP address the server binds to.
	// Environment: BOLTD_LISTEN_ADDR
	ListenAddr string `yaml:"listen_addr"`

	// TLS holds optional transport security settings. Leaving CertFile
	// empty means plaintext TCP.
	TLS TLSConfig `yaml:"tls"`

	// MaxSessions caps concurrent connections (0 = unlimited).
	// Environment: BOLTD_MAX_SESSIONS
	MaxSessions int `yaml:"max_sessions"`

	// IdleTimeout closes a connection that sends nothing for this long
	// (0 = disabled).
	// Environment: BOLTD_IDLE_TIMEOUT
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// MaxMessageBytes bounds a single (reassembled) Bolt message.
	// Environment: BOLTD_MAX_MESSAGE_BYTES
	MaxMessageBytes int `yaml:"max_message_bytes"`

	// ChunkSize is the preferred outbound chunk payload size.
	// Environment: BOLTD_CHUNK_SIZE
	ChunkSize int `yaml:"chunk_size"`

	// Notifications holds the server-wide default notification filter
	// applied when a HELLO's extra map doesn't override it.
	Notifications NotificationsConfig `yaml:"notifications"`

	// Auth configures LOGON enforcement and the administrator account
	// seeded on startup.
	Auth AuthConfig `yaml:"auth"`
}

// AuthConfig controls pkg/auth's security policy for this process.
type AuthConfig struct {
	// SecurityEnabled gates whether LOGON's "none" scheme is accepted.
	// Environment: BOLTD_SECURITY_ENABLED
	SecurityEnabled bool `yaml:"security_enabled"`

	// InitialUser and InitialPassword seed a single administrator
	// account each time the server starts, since the in-memory
	// Authenticator has no durable user store of its own. Both must be
	// set together; leaving both empty with SecurityEnabled true starts
	// the server with no way to ever complete a LOGON.
	// Environment: BOLTD_INITIAL_USER, BOLTD_INITIAL_PASSWORD
	InitialUser     string `yaml:"initial_user"`
	InitialPassword string `yaml:"initial_password"`
}

// TLSConfig configures the listener's transport security.
type TLSConfig struct {
	// CertFile is the path to a PEM certificate. Empty disables TLS.
	// Environment: BOLTD_TLS_CERT_FILE
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the certificate's PEM private key.
	// Environment: BOLTD_TLS_KEY_FILE
	KeyFile string `yaml:"key_file"`

	// ClientCAFile names a client CA bundle. Client certificate
	// verification is not implemented: TLSServerConfig returns an error
	// when this is set.
	// Environment: BOLTD_TLS_CLIENT_CA_FILE
	ClientCAFile string `yaml:"client_ca_file"`
}

// NotificationsConfig is the server-wide default for GQL-status
// notification filtering (spec.md §6).
type NotificationsConfig struct {
	// MinimumSeverity is the lowest severity surfaced by default
	// ("OFF", "WARNING", "INFORMATION").
	// Environment: BOLTD_NOTIFICATIONS_MINIMUM
	MinimumSeverity string `yaml:"minimum_severity"`

	// DisabledCategories lists classifications suppressed by default.
	// Environment: BOLTD_NOTIFICATIONS_DISABLED (comma-separated)
	DisabledCategories []string `yaml:"disabled_categories"`
}

// Default returns a Config with the same defaults pkg/bolt.DefaultConfig
// would otherwise fall back to on its own, made explicit here so genconfig
// has something concrete to print.
func Default() *Config {
	return &Config{
		ListenAddr:      ":7687",
		MaxSessions:     0,
		IdleTimeout:     0,
		MaxMessageBytes: 4 << 20,
		ChunkSize:       8192,
		Notifications: NotificationsConfig{
			MinimumSeverity: "INFORMATION",
		},
		Auth: AuthConfig{
			SecurityEnabled: true,
			// Matches Neo4j's own traditional first-run default; an
			// operator is expected to change it via BOLTD_INITIAL_PASSWORD
			// or a follow-up admin action before exposing the port.
			InitialUser:     "neo4j",
			InitialPassword: "neo4j",
		},
	}
}

// Load reads path (if non-empty and present) as YAML into Default()'s
// baseline, then overlays BOLTD_* environment variables, then returns the
// result. A missing path is not an error; env-only configuration is valid.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("config: reading %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}

	cfg.ListenAddr = getEnv("BOLTD_LISTEN_ADDR", cfg.ListenAddr)
	cfg.MaxSessions = getEnvInt("BOLTD_MAX_SESSIONS", cfg.MaxSessions)
	cfg.IdleTimeout = getEnvDuration("BOLTD_IDLE_TIMEOUT", cfg.IdleTimeout)
	cfg.MaxMessageBytes = getEnvInt("BOLTD_MAX_MESSAGE_BYTES", cfg.MaxMessageBytes)
	cfg.ChunkSize = getEnvInt("BOLTD_CHUNK_SIZE", cfg.ChunkSize)

	cfg.TLS.CertFile = getEnv("BOLTD_TLS_CERT_FILE", cfg.TLS.CertFile)
	cfg.TLS.KeyFile = getEnv("BOLTD_TLS_KEY_FILE", cfg.TLS.KeyFile)
	cfg.TLS.ClientCAFile = getEnv("BOLTD_TLS_CLIENT_CA_FILE", cfg.TLS.ClientCAFile)

	cfg.Notifications.MinimumSeverity = getEnv("BOLTD_NOTIFICATIONS_MINIMUM", cfg.Notifications.MinimumSeverity)
	if disabled := getEnv("BOLTD_NOTIFICATIONS_DISABLED", ""); disabled != "" {
		cfg.Notifications.DisabledCategories = parseCSV(disabled)
	}

	cfg.Auth.SecurityEnabled = getEnvBool("BOLTD_SECURITY_ENABLED", cfg.Auth.SecurityEnabled)
	cfg.Auth.InitialUser = getEnv("BOLTD_INITIAL_USER", cfg.Auth.InitialUser)
	cfg.Auth.InitialPassword = getEnv("BOLTD_INITIAL_PASSWORD", cfg.Auth.InitialPassword)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the server could never run with.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen_addr must not be empty")
	}
	if c.MaxSessions < 0 {
		return fmt.Errorf("config: max_sessions must not be negative")
	}
	if c.MaxMessageBytes <= 0 {
		return fmt.Errorf("config: max_message_bytes must be positive")
	}
	if (c.TLS.CertFile == "") != (c.TLS.KeyFile == "") {
		return fmt.Errorf("config: tls cert_file and key_file must both be set or both be empty")
	}
	if (c.Auth.InitialUser == "") != (c.Auth.InitialPassword == "") {
		return fmt.Errorf("config: auth initial_user and initial_password must both be set or both be empty")
	}
	return nil
}

// TLSServerConfig builds a *tls.Config from the file paths in c.TLS, or
// returns nil if TLS is not configured.
func (c *Config) TLSServerConfig() (*tls.Config, error) {
	if c.TLS.CertFile == "" {
		return nil, nil
	}
	cert, err := tls.LoadX509KeyPair(c.TLS.CertFile, c.TLS.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("config: loading TLS keypair: %w", err)
	}
	tlsCfg := &tls.Config{Certificates: []tls.Certificate{cert}}
	if c.TLS.ClientCAFile != "" {
		return nil, fmt.Errorf("config: client CA verification is not yet wired (client_ca_file set but unused)")
	}
	return tlsCfg, nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
