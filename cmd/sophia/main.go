package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sophia/internal/config"
	"sophia/internal/conversation"
	"sophia/internal/dispatch"
	"sophia/internal/domain"
	"sophia/internal/gateway"
	"sophia/internal/meraki"
	"sophia/internal/retry"
	"sophia/internal/snapshot"
	"sophia/internal/tooling"
)

// buildMeta holds version and build metadata (injectable via ldflags).
type buildMeta struct {
	Version string
	GoOS    string
	GoArch  string
}

func newBuildMeta(version, goos, goarch string) buildMeta {
	if goos == "" {
		goos = runtime.GOOS
	}
	if goarch == "" {
		goarch = runtime.GOARCH
	}
	return buildMeta{Version: version, GoOS: goos, GoArch: goarch}
}

func (m buildMeta) String() string {
	return fmt.Sprintf("sophia %s %s/%s", m.Version, m.GoOS, m.GoArch)
}

func newRootCommand(bm buildMeta) *cobra.Command {
	root := &cobra.Command{
		Use:   "sophia",
		Short: "Fleet assistant tool gateway",
		Long:  "Sophia serves the device-fleet tool catalogue over HTTP for a conversational agent.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion, _ := cmd.Flags().GetBool("version"); showVersion {
				fmt.Fprintln(cmd.OutOrStdout(), bm.String())
				return nil
			}
			return runDaemon(cmd, daemonShutdownCh)
		},
	}
	root.Flags().BoolP("version", "V", false, "print version and build metadata")
	root.PersistentFlags().String("config", "", "config file path (default sophia.json or $SOPHIA_CONFIG)")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath(cmd)
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := config.WriteDefault(path); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	root.AddCommand(initCmd)

	toolsCmd := &cobra.Command{
		Use:   "tools",
		Short: "List the tool catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			// The catalogue never contacts the API here, so a placeholder
			// key is enough to materialize the definitions.
			client, err := meraki.NewClient("offline")
			if err != nil {
				return err
			}
			camera := snapshot.NewWorkflow(client, snapshot.DefaultConfig(), nil)
			reg, err := tooling.NewFleetRegistry(client, camera, "")
			if err != nil {
				return err
			}
			for _, def := range reg.Definitions() {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n    %s\n", def.Name, def.Description)
			}
			return nil
		},
	}
	root.AddCommand(toolsCmd)

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Check the config file and API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath(cmd)
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config ok: %s\n", path)
			if cfg.Fleet.APIKey == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "warning: no API key (set %s or fleet.apiKey)\n", config.EnvAPIKey)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "API key present")
			}
			return nil
		},
	}
	root.AddCommand(checkCmd)

	return root
}

// configPath resolves the config file path: --config flag, then
// SOPHIA_CONFIG, then sophia.json in the working directory.
func configPath(cmd *cobra.Command) string {
	if p, _ := cmd.Flags().GetString("config"); p != "" {
		return p
	}
	if p := os.Getenv("SOPHIA_CONFIG"); p != "" {
		return p
	}
	return "sophia.json"
}

// newLogger builds the process logger per the infra section.
func newLogger(ic domain.InfraConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(ic.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(ic.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// runDaemon wires config, fleet client, snapshot workflow, tool registry,
// dispatcher, conversation store, and gateway, then serves until shutdown.
// If shutdownCh is non-nil it returns when the channel is closed (for
// tests); otherwise it blocks on OS signals.
func runDaemon(cmd *cobra.Command, shutdownCh <-chan struct{}) error {
	cfg, err := config.Load(configPath(cmd))
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Infra)
	slog.SetDefault(logger)

	clientOpts := []meraki.Option{
		meraki.WithLogger(logger),
		meraki.WithRetry(retry.FromDomain(cfg.Retry)),
	}
	if cfg.Fleet.BaseURL != "" {
		clientOpts = append(clientOpts, meraki.WithBaseURL(cfg.Fleet.BaseURL))
	}
	if cfg.Fleet.TimeoutSeconds > 0 {
		clientOpts = append(clientOpts, meraki.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Fleet.TimeoutSeconds) * time.Second,
		}))
	}
	client, err := meraki.NewClient(cfg.Fleet.APIKey, clientOpts...)
	if err != nil {
		return fmt.Errorf("fleet client: %w", err)
	}

	camera := snapshot.NewWorkflow(client, snapshot.FromDomain(cfg.Snapshot), logger)

	registry, err := tooling.NewFleetRegistry(client, camera, cfg.Fleet.DefaultNetworkID)
	if err != nil {
		return fmt.Errorf("tool registry: %w", err)
	}
	dispatcher := dispatch.NewDispatcher(registry, dispatch.WithLogger(logger))

	var record *conversation.Store
	if cfg.Conversation.HistoryPath != "" {
		record, err = conversation.NewPersistentStore(cfg.Conversation.HistoryPath)
		if err != nil {
			return fmt.Errorf("conversation history: %w", err)
		}
	} else {
		record = conversation.NewStore()
	}

	srv, err := gateway.NewServer(cfg.Gateway, dispatcher, record, logger)
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}

	gatewayShutdown := make(chan struct{})
	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Run(gatewayShutdown) }()

	// Wait until the server has bound so "ready" means clients can connect.
	var bound string
	for i := 0; i < daemonBindWaitIterations; i++ {
		if a := srv.Addr(); a != "" {
			bound = a
			break
		}
		select {
		case err := <-serveErr:
			return fmt.Errorf("gateway bind: %w", err)
		case <-time.After(20 * time.Millisecond):
		}
	}
	if bound == "" {
		close(gatewayShutdown)
		return fmt.Errorf("gateway failed to bind (check port or permissions)")
	}
	logger.Info("ready", "addr", bound, "tools", len(registry.Names()))

	if shutdownCh != nil {
		<-shutdownCh
	} else {
		daemonWaitForShutdown()
	}
	close(gatewayShutdown)
	if err := <-serveErr; err != nil {
		return err
	}
	if err := record.Err(); err != nil {
		logger.Warn("history persistence degraded", "error", err)
	}
	return nil
}

func getVersion() string {
	if version != "" {
		return version
	}
	b, err := os.ReadFile("VERSION")
	if err != nil {
		return "dev"
	}
	return strings.TrimSpace(string(b))
}

// version is set at build time via ldflags for build metadata, e.g.:
//   go build -ldflags "-X main.version=1.0.0" -o sophia ./cmd/sophia
var version string

// daemonShutdownCh is set by tests to unblock runDaemon without signals. Production leaves it nil.
var daemonShutdownCh <-chan struct{}

// daemonWaitForShutdown is set by init in main_signal.go so tests can inject a no-op.
var daemonWaitForShutdown func()

// daemonBindWaitIterations is the max loop count waiting for the gateway to bind.
var daemonBindWaitIterations = 50

// runApp runs the root command with the given args and returns the exit code.
func runApp(args []string) int {
	bm := newBuildMeta(version, "", "")
	if bm.Version == "" {
		bm.Version = getVersion()
	}
	root := newRootCommand(bm)
	root.SetArgs(args[1:])
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
