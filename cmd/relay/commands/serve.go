package commands

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/relay-ai/relay/internal/config"
	"github.com/relay-ai/relay/internal/dedup"
	"github.com/relay-ai/relay/internal/event"
	"github.com/relay-ai/relay/internal/logging"
	"github.com/relay-ai/relay/internal/mcp"
	"github.com/relay-ai/relay/internal/provider"
	"github.com/relay-ai/relay/internal/server"
	"github.com/relay-ai/relay/internal/session"
	"github.com/relay-ai/relay/internal/store"
	"github.com/relay-ai/relay/internal/tool"
)

var (
	servePort     int
	serveHostname string
	serveDataDir  string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay HTTP server",
	Long: `Start relay as a server that exposes the session API over HTTP.

Sessions are persisted to a local SQLite database so they survive
restarts; interrupted sessions can be resumed with the continue
endpoint.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveHostname, "hostname", "", "Hostname to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveDataDir, "data-dir", "", "Data directory (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	workDir, err := os.Getwd()
	if err != nil {
		return err
	}

	appConfig, err := config.Load(workDir)
	if err != nil {
		return err
	}

	// Flags win over config file values.
	if servePort != 0 {
		appConfig.Server.Port = servePort
	}
	if serveHostname != "" {
		appConfig.Server.Hostname = serveHostname
	}
	if serveDataDir != "" {
		appConfig.DataDir = serveDataDir
	}
	if appConfig.LogLevel != "" && !cmd.Flags().Changed("log-level") {
		logging.Init(logging.Config{Level: logging.ParseLevel(appConfig.LogLevel)})
	}

	logging.Info().Str("version", Version).Msg("starting relay server")

	if err := os.MkdirAll(appConfig.DataDir, 0o755); err != nil {
		return err
	}
	st, err := store.NewSQLiteStore(filepath.Join(appConfig.DataDir, "relay.db"))
	if err != nil {
		return err
	}
	defer st.Close()

	providers := provider.InitializeProviders(appConfig)

	toolReg := tool.NewRegistry()
	toolReg.Register(tool.NewWebFetchTool())

	ctx := context.Background()
	mcpClient := mcp.NewClient()
	mcpClient.Connect(ctx, appConfig.MCP)
	defer mcpClient.Close()
	toolReg.AddSource(mcp.NewToolSource(mcpClient))

	bus := event.NewBus()
	defer bus.Close()

	svc, err := session.NewService(st, dedup.New(dedup.DefaultTTL), providers, toolReg, bus, appConfig)
	if err != nil {
		return err
	}

	serverConfig := server.DefaultConfig()
	serverConfig.Hostname = appConfig.Server.Hostname
	serverConfig.Port = appConfig.Server.Port

	srv := server.New(serverConfig, appConfig, svc, bus)

	errCh := make(chan error, 1)
	go func() {
		logging.Info().
			Str("hostname", serverConfig.Hostname).
			Int("port", serverConfig.Port).
			Msg("server listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logging.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("server shutdown error")
	}

	logging.Info().Msg("server stopped")
	return nil
}
