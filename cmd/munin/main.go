// Package main provides the Munin CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/orneryd/munin/pkg/config"
	"github.com/orneryd/munin/pkg/embed"
	"github.com/orneryd/munin/pkg/mcp"
	"github.com/orneryd/munin/pkg/session"
	"github.com/orneryd/munin/pkg/viz"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "munin",
		Short: "Munin - In-Memory Relationship Graphs for LLM Agents",
		Long: `Munin gives AI agents disposable, named relationship graphs they can
populate and query with natural-language labels instead of stable IDs.

Features:
  • Tiered label resolution (exact → normalized → embedding similarity)
  • Independent named graph sessions with lazy creation
  • Graph analysis: paths, PageRank, cycles, components, centrality
  • MCP (Model Context Protocol) tool surface over JSON-RPC
  • Live mutation broadcast over WebSocket for visualization`,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Munin v%s (%s)\n", version, commit)
		},
	})

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Munin graph server",
		Long:  "Start the MCP tool server and the visualization WebSocket endpoint",
		RunE:  runServe,
	}
	serveCmd.Flags().String("config", "", "Path to YAML config file (env: MUNIN_CONFIG_FILE)")
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	// .env values land in the environment before config.Load reads it.
	_ = godotenv.Load()

	configPath, _ := cmd.Flags().GetString("config")
	if configPath == "" {
		configPath = os.Getenv("MUNIN_CONFIG_FILE")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := cfg.NewLogger()
	if err != nil {
		return fmt.Errorf("building logger: %w", err)
	}
	defer logger.Sync()

	embeddingDesc := "disabled (exact/normalized matching only)"
	if cfg.Embedding != nil {
		embeddingDesc = fmt.Sprintf("%s (%s)", cfg.Embedding.Provider, cfg.Embedding.Model)
	}

	fmt.Printf("🐦 Starting Munin v%s\n", version)
	fmt.Printf("   Listen address:  http://%s\n", cfg.Server.Addr())
	fmt.Printf("   MCP endpoint:    http://%s/mcp\n", cfg.Server.Addr())
	fmt.Printf("   WebSocket:       ws://%s/ws\n", cfg.Server.Addr())
	fmt.Printf("   Embeddings:      %s\n", embeddingDesc)
	fmt.Printf("   Thresholds:      similarity %.2f, ambiguity %.2f, max %d candidates\n",
		cfg.Match.SimilarityThreshold, cfg.Match.AmbiguityWindow, cfg.Match.MaxCandidates)
	fmt.Println()

	// The shared embedder is built lazily on first resolution; Configure
	// only records the provider settings for it.
	embed.Configure(cfg.Embedding)

	store := session.NewStore(cfg.Match, logger)

	hub := viz.NewHub(logger)
	go hub.Run()
	defer hub.Stop()
	store.SetMutationHook(hub.MutationHook)

	mcpServer := mcp.NewServer(store, nil, logger)
	router := mcpServer.Router()
	router.Get("/ws", viz.NewHandler(hub, store, logger).ServeHTTP)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	logger.Info("munin server started", zap.String("addr", cfg.Server.Addr()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigCh:
		fmt.Printf("\n🛑 Received %s, shutting down...\n", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("munin server stopped")
	return nil
}
