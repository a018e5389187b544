package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kozaktomas/face-search/internal/constants"
	"github.com/kozaktomas/face-search/internal/web"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Face Search web server.
The server accepts image uploads on POST /api/search and /api/v1/search and
serves a small upload page on /.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().String("dir", "", "Photo directory to search (overrides CORPUS_DIR)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if port := mustGetInt(cmd, "port"); port > 0 {
		cfg.Web.Port = port
	}
	if host := mustGetString(cmd, "host"); host != "" {
		cfg.Web.Host = host
	}
	if dir := mustGetString(cmd, "dir"); dir != "" {
		cfg.Corpus.Dir = dir
	}

	p := newPipeline(cfg)

	healthCtx, healthCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := p.client.Health(healthCtx); err != nil {
		fmt.Printf("Warning: face service at %s is not reachable: %v\n", cfg.FaceAPI.URL, err)
	}
	healthCancel()

	if cfg.Corpus.Watch {
		watcher, err := p.watchCorpus()
		if err != nil {
			fmt.Printf("Warning: %v\n", err)
		} else if watcher != nil {
			defer watcher.Close()
		}
	}

	server := web.NewServer(cfg, p.searcher, p.cache)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Searching photos in %s (threshold %.2f, policy %s, %d workers)\n",
		cfg.Corpus.Dir, cfg.Match.Threshold, cfg.Match.Policy, cfg.Match.Workers)
	fmt.Printf("Starting Face Search on http://%s:%d\n", cfg.Web.Host, cfg.Web.Port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
