package main

import (
	"context"
	"embed"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/wailsapp/wails/v2"
	"github.com/wailsapp/wails/v2/pkg/options"
	"github.com/wailsapp/wails/v2/pkg/options/assetserver"
	"github.com/wailsapp/wails/v2/pkg/options/windows"

	"logsentry/api"
	"logsentry/app"
	"logsentry/cli"
	"logsentry/internal/logger"
	"logsentry/internal/logrotate"
	"logsentry/internal/retry"
	"logsentry/internal/securestorage"
)

//go:embed all:frontend/dist
var assets embed.FS

// getAssets returns the frontend assets with the correct subdirectory
func getAssets() fs.FS {
	fsys, err := fs.Sub(assets, "frontend/dist")
	if err != nil {
		panic(err)
	}
	return fsys
}

// Exit codes
const (
	ExitSuccess     = 0
	ExitErrorServer = 6
)

// Command-line flags
var (
	// Common flags
	dataDir       = flag.String("data-dir", defaultDataDir(), "Directory holding rules/, logs/ and config.json")
	logFile       = flag.String("log-file", "", "Path to log file (if empty, logs to stdout)")
	logMaxSize    = flag.Int("log-max-size", 100, "Maximum size of log file in megabytes before rotation")
	logMaxAge     = flag.Int("log-max-age", 7, "Maximum age of log file in days before rotation")
	logMaxBackups = flag.Int("log-max-backups", 5, "Maximum number of old log files to retain")
	logCompress   = flag.Bool("log-compress", true, "Compress rotated log files")

	// API server flags
	apiOnly             = flag.Bool("api-only", false, "Run in API server mode only (no GUI)")
	apiPort             = flag.Int("port", 8765, "Port to use for API server")
	shutdownTimeout     = flag.Int("shutdown-timeout", 15, "Timeout in seconds for graceful shutdown")
	cleanupThreshold    = flag.Int("cleanup-threshold", 24, "Threshold in hours for cleaning up stale connection files")
	cleanupInterval     = flag.Int("cleanup-interval", 1, "Interval in hours for periodic cleanup of stale connection files")
	retryMaxAttempts    = flag.Int("retry-max-attempts", 5, "Maximum number of retry attempts for file operations")
	retryInitialBackoff = flag.Int("retry-initial-backoff", 100, "Initial backoff in milliseconds for retry operations")
	retryMaxBackoff     = flag.Int("retry-max-backoff", 5000, "Maximum backoff in milliseconds for retry operations")
	useSecureStorage    = flag.Bool("use-secure-storage", false, "Use platform-specific secure storage for connection info (disabled by default)")
)

// defaultDataDir returns ~/.logsentry, falling back to a relative path
// if the home directory can't be resolved.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".logsentry"
	}
	return filepath.Join(home, ".logsentry")
}

func main() {
	// flag.Parse only consumes the leading run-mode flags; in CLI mode the
	// command and its own flags are parsed separately by the cli package,
	// so a bare flag.Parse() here would choke on "scan-logs -log-path=...".
	// Detect CLI mode (first non-flag argument) before calling flag.Parse.
	if len(os.Args) > 1 && len(os.Args[1]) > 0 && os.Args[1][0] != '-' {
		initLogger()
		runCLIMode(os.Args[1:])
		return
	}

	flag.Parse()
	initLogger()

	if *apiOnly {
		runAPIServer(*apiPort)
		return
	}

	runWailsApp()
}

// loadApp resolves *dataDir and wires a ready-to-use *app.App against it.
func loadApp() *app.App {
	cfg, err := app.LoadConfig(*dataDir)
	if err != nil {
		logger.Fatal("Failed to load configuration: %v", err)
	}
	return app.New(cfg)
}

// runWailsApp starts the Wails-based GUI application
func runWailsApp() {
	wailsApp := NewApp(loadApp())

	err := wails.Run(&options.App{
		Title:     "LogSentry - Log Detection Engine",
		Width:     1280,
		Height:    800,
		MinWidth:  900,
		MinHeight: 600,
		AssetServer: &assetserver.Options{
			Assets: getAssets(),
		},
		BackgroundColour: &options.RGBA{R: 13, G: 13, B: 15, A: 1},
		OnStartup:        wailsApp.startup,
		OnShutdown:       wailsApp.shutdown,
		Bind: []interface{}{
			wailsApp,
		},
		Windows: &windows.Options{
			WebviewIsTransparent: true,
			WindowIsTranslucent:  false,
			DisableWindowIcon:    false,
		},
	})

	if err != nil {
		logger.Error("Failed to start application: %v", err)
		os.Exit(1)
	}
}

// runCLIMode parses and dispatches a single headless command against
// the App surface (spec.md §6), for use without the Wails GUI.
func runCLIMode(args []string) {
	cfg, err := cli.ParseFlags(args)
	if err != nil {
		logger.Error("%v", err)
		cli.PrintUsage()
		os.Exit(1)
	}

	coreApp := loadApp()
	defer coreApp.Close()

	if err := cli.Run(coreApp, cfg); err != nil {
		logger.Error("%s failed: %v", cfg.Command, err)
		os.Exit(1)
	}
}

// runAPIServer starts the API server for headless operation
func runAPIServer(port int) {
	logger.Info("Starting LogSentry in API mode on port %d", port)

	coreApp := loadApp()
	defer coreApp.Close()
	server := api.NewServer(port, coreApp)

	actualPort := server.GetPort()
	tempDir := api.GetTempDir()

	connInfo := securestorage.ConnectionInfo{
		Port:      actualPort,
		AuthToken: server.GetAuthToken(),
		Ready:     false, // Will be updated to true after full initialization
	}

	var storage securestorage.Storage
	if *useSecureStorage {
		storage = securestorage.NewStorage(tempDir)
	} else {
		storage = securestorage.NewFileStorage(tempDir)
	}

	retryConfig := retry.RetryConfig{
		MaxAttempts:         *retryMaxAttempts,
		InitialBackoff:      time.Duration(*retryInitialBackoff) * time.Millisecond,
		MaxBackoff:          time.Duration(*retryMaxBackoff) * time.Millisecond,
		BackoffFactor:       2.0,
		RandomizationFactor: 0.5,
	}

	// Start server initialization in a goroutine for parallel processing
	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			serverErrChan <- err
		}
		close(serverErrChan)
	}()

	// While server is initializing, write connection info so clients can
	// connect as soon as possible.
	err := retry.WithRetryConfig("store connection info", retryConfig, func() error {
		return storage.Store(connInfo)
	})
	if err != nil {
		logger.Error("Failed to store connection info after multiple attempts: %v", err)
		os.Exit(ExitErrorServer)
	}
	logger.Info("Initial connection info stored successfully")

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go periodicCleanup(cleanupCtx, tempDir, time.Duration(*cleanupInterval)*time.Hour, time.Duration(*cleanupThreshold)*time.Hour)

	if err := <-serverErrChan; err != nil {
		logger.Error("Failed to start API server: %v", err)
		os.Exit(ExitErrorServer)
	}

	connInfo.Ready = true
	err = retry.WithRetryConfig("update connection info", retryConfig, func() error {
		return storage.Store(connInfo)
	})
	if err != nil {
		logger.Error("Failed to update connection info after multiple attempts: %v", err)
		// Not fatal, continue
	} else {
		logger.Info("Updated connection info with ready=true")
	}

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt, syscall.SIGTERM)
	sig := <-signalChan
	logger.Info("Received signal: %v", sig)
	logger.Info("Shutting down API server...")

	shutdownTimeoutDuration := time.Duration(*shutdownTimeout) * time.Second
	logger.Info("Initiating graceful shutdown with %d second timeout...", *shutdownTimeout)
	if err := server.Stop(shutdownTimeoutDuration); err != nil {
		logger.Error("Error during server shutdown: %v", err)
		os.Exit(ExitErrorServer)
	}

	err = retry.WithRetryConfig("delete connection info", retryConfig, func() error {
		return storage.Delete()
	})
	if err != nil {
		logger.Error("Failed to delete connection info: %v", err)
		// Not fatal, continue
	}

	logger.Info("Server shutdown complete")
}

// initLogger initializes the logger with rotation if log file is specified
func initLogger() {
	if *logFile == "" {
		logger.Init(false, false)
		return
	}

	rotateConfig := logrotate.Config{
		MaxSize:    *logMaxSize,
		MaxAge:     *logMaxAge,
		MaxBackups: *logMaxBackups,
		Compress:   *logCompress,
		LocalTime:  true,
	}

	logWriter := logrotate.NewWriter(*logFile, rotateConfig)
	multiWriter := logrotate.MultiWriter(logWriter, os.Stdout)

	logger.Init(false, false)
	logger.SetOutput(multiWriter)
}

// periodicCleanup runs cleanup of stale connection files periodically
func periodicCleanup(ctx context.Context, dirPath string, interval, threshold time.Duration) {
	cleanupStaleFiles(dirPath, threshold)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cleanupStaleFiles(dirPath, threshold)
		}
	}
}

// cleanupStaleFiles removes stale connection files older than the threshold
func cleanupStaleFiles(dirPath string, threshold time.Duration) {
	files, err := os.ReadDir(dirPath)
	if err != nil {
		logger.Error("Failed to read directory for cleanup: %v", err)
		return
	}

	now := time.Now()
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		name := file.Name()
		if name == "logsentry_connection.json" ||
			name == "logsentry_connection.json.tmp" ||
			name == "logsentry_connection.enc" ||
			(len(name) > 4 && name[len(name)-4:] == ".tmp") {

			filePath := filepath.Join(dirPath, name)
			info, err := os.Stat(filePath)
			if err != nil {
				continue
			}
			if now.Sub(info.ModTime()) > threshold {
				os.Remove(filePath)
				logger.Info("Cleaned up stale file: %s (age: %v)", name, now.Sub(info.ModTime()))
			}
		}
	}
}
