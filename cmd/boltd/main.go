// Package main provides the boltd CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nornicgraph/boltd/pkg/audit"
	"github.com/nornicgraph/boltd/pkg/auth"
	"github.com/nornicgraph/boltd/pkg/bolt"
	"github.com/nornicgraph/boltd/pkg/config"
	"github.com/nornicgraph/boltd/pkg/demobackend"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "boltd",
		Short: "boltd - a server-side implementation of the Bolt graph database wire protocol",
		Long: `boltd speaks the Bolt v5.1-5.4 wire protocol: version handshake,
chunk-framed PackStream messages, and the session state machine Neo4j
drivers expect, dispatched against a pluggable query backend.`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("boltd v%s (%s)\n", version, commit)
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Bolt server",
		RunE:  runServe,
	}
	serveCmd.Flags().String("config", "", "Config file path (YAML)")
	serveCmd.Flags().String("listen-addr", "", "Override listen address, e.g. :7687")
	serveCmd.Flags().Int("max-sessions", 0, "Override max concurrent sessions (0 = unlimited)")
	rootCmd.AddCommand(serveCmd)

	genconfigCmd := &cobra.Command{
		Use:   "genconfig",
		Short: "Write a starter YAML config to stdout",
		RunE:  runGenconfig,
	}
	rootCmd.AddCommand(genconfigCmd)

	auditCmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit log",
	}
	auditQueryCmd := &cobra.Command{
		Use:   "query",
		Short: "Search the audit log for session lifecycle events",
		RunE:  runAuditQuery,
	}
	auditQueryCmd.Flags().String("log-path", "./boltd-audit.log", "Path to the audit log file")
	auditQueryCmd.Flags().String("session", "", "Filter to a single session ID")
	auditQueryCmd.Flags().StringSlice("type", nil, "Filter to these event types (LOGON, LOGON_FAILED, LOGOFF, RESET, GOODBYE, ACCESS_DENIED)")
	auditQueryCmd.Flags().Bool("failed-only", false, "Only show events with success=false")
	auditQueryCmd.Flags().Int("limit", 0, "Maximum number of events to print (0 = unlimited)")
	auditCmd.AddCommand(auditQueryCmd)
	rootCmd.AddCommand(auditCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")
	listenAddr, _ := cmd.Flags().GetString("listen-addr")
	maxSessions, _ := cmd.Flags().GetInt("max-sessions")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if listenAddr != "" {
		cfg.ListenAddr = listenAddr
	}
	if cmd.Flags().Changed("max-sessions") {
		cfg.MaxSessions = maxSessions
	}

	tlsCfg, err := cfg.TLSServerConfig()
	if err != nil {
		return fmt.Errorf("configuring TLS: %w", err)
	}

	auditLogger, err := newAuditLogger()
	if err != nil {
		return fmt.Errorf("initializing audit log: %w", err)
	}
	defer auditLogger.Close()

	authConfig := auth.DefaultConfig()
	authConfig.SecurityEnabled = cfg.Auth.SecurityEnabled
	authenticator := auth.NewAuthenticator(authConfig)
	if cfg.Auth.InitialUser != "" {
		if _, err := authenticator.CreateUser(cfg.Auth.InitialUser, cfg.Auth.InitialPassword, []auth.Role{auth.RoleAdmin}); err != nil {
			return fmt.Errorf("seeding initial user %q: %w", cfg.Auth.InitialUser, err)
		}
		fmt.Printf("  seeded initial user %q\n", cfg.Auth.InitialUser)
	} else if cfg.Auth.SecurityEnabled {
		fmt.Println("  warning: security enabled with no initial user configured; LOGON will always fail")
	}
	backend := demobackend.New()

	srv := bolt.New(bolt.Config{
		ListenAddr:           cfg.ListenAddr,
		TLSConfig:            tlsCfg,
		MaxSessions:          cfg.MaxSessions,
		IdleTimeout:          cfg.IdleTimeout,
		MaxMessageBytes:      cfg.MaxMessageBytes,
		ChunkSize:            cfg.ChunkSize,
		Backend:              backend,
		Auth:                 authenticator,
		Audit:                auditLogger,
		NotificationsMinimum: cfg.Notifications.MinimumSeverity,
		NotificationsExclude: cfg.Notifications.DisabledCategories,
	})

	fmt.Printf("boltd v%s starting\n", version)
	fmt.Printf("  listening on bolt://%s\n", cfg.ListenAddr)
	if tlsCfg != nil {
		fmt.Println("  TLS enabled")
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != bolt.ErrServerClosed {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	case <-sigCh:
		fmt.Println("shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		stats := srv.Shutdown(ctx)
		if stats.TimedOut {
			fmt.Printf("shutdown timed out with %d session(s) still open\n", stats.SessionsDrained)
		}
		return nil
	}
}

func runGenconfig(cmd *cobra.Command, args []string) error {
	out, err := yaml.Marshal(config.Default())
	if err != nil {
		return fmt.Errorf("marshaling default config: %w", err)
	}
	fmt.Println("# boltd starter configuration")
	fmt.Println("# Every field here can also be set via a BOLTD_* environment variable;")
	fmt.Println("# environment variables take precedence over this file.")
	fmt.Print(string(out))
	return nil
}

func runAuditQuery(cmd *cobra.Command, args []string) error {
	logPath, _ := cmd.Flags().GetString("log-path")
	sessionID, _ := cmd.Flags().GetString("session")
	types, _ := cmd.Flags().GetStringSlice("type")
	failedOnly, _ := cmd.Flags().GetBool("failed-only")
	limit, _ := cmd.Flags().GetInt("limit")

	q := audit.Query{SessionID: sessionID, Limit: limit}
	for _, t := range types {
		q.EventTypes = append(q.EventTypes, audit.EventType(t))
	}
	if failedOnly {
		f := false
		q.Success = &f
	}

	result, err := audit.NewReader(logPath).Query(q)
	if err != nil {
		return fmt.Errorf("querying audit log: %w", err)
	}

	for _, event := range result.Events {
		fmt.Printf("%s  %-14s session=%s user=%s success=%t %s\n",
			event.Timestamp.Format(time.RFC3339), event.Type, event.SessionID, event.Username, event.Success, event.Reason)
	}
	fmt.Printf("%d event(s) (of %d total)\n", len(result.Events), result.TotalCount)
	return nil
}

func newAuditLogger() (*audit.Logger, error) {
	return audit.NewLogger(audit.Config{
		Enabled: true,
		LogPath: "./boltd-audit.log",
	})
}
