package cmd

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kozaktomas/face-search/internal/config"
	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-search",
	Short: "Find photos of a person by uploading a picture of their face",
	Long: `Face Search compares the faces detected in an uploaded image against every
image in a photo directory and ranks the images that contain a matching face.
Face descriptors are computed by an external embedding service.`,
	SilenceUsage: true,
}

// logFile is closed on exit when rotated logging is enabled.
var logFile io.Closer

func Execute() {
	err := rootCmd.Execute()
	if logFile != nil {
		logFile.Close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}

// loadConfig reads the configuration and routes the standard logger to
// daily rotated files when a log directory is configured.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.Log.Dir != "" && logFile == nil {
		w, err := openLogWriter(cfg.Log.Dir)
		if err != nil {
			return nil, err
		}
		logFile = w
		log.SetOutput(io.MultiWriter(os.Stderr, w))
	}
	return cfg, nil
}

func openLogWriter(dir string) (*rotatelogs.RotateLogs, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating log dir: %w", err)
	}
	w, err := rotatelogs.New(
		filepath.Join(dir, "face-search.%Y%m%d.log"),
		rotatelogs.WithLinkName(filepath.Join(dir, "face-search.log")),
		rotatelogs.WithRotationTime(24*time.Hour),
		rotatelogs.WithMaxAge(7*24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("opening rotated log: %w", err)
	}
	return w, nil
}
