package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"endpointd/internal/config"
	"endpointd/internal/console"
	"endpointd/internal/daemon"
	errs "endpointd/internal/errors"
	"endpointd/internal/host"
	"endpointd/internal/metrics"
	"endpointd/internal/paths"
	"endpointd/internal/slogutil"
	"endpointd/pkg/server"
)

var (
	servePort      int
	serveHost      string
	serveManifest  string
	serveNoConsole bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the endpoint host",
	Long: `Load the service manifest, start the listener when server.autoStart is set,
and accept admin commands on stdin until quit or SIGINT/SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntVar(&servePort, "port", 0, "Override server.port")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Override server.host")
	serveCmd.Flags().StringVar(&serveManifest, "manifest", "", "Override manifest.path")
	serveCmd.Flags().BoolVar(&serveNoConsole, "no-console", false, "Do not read commands from stdin")
}

// applyServeFlags copies explicitly set serve flags onto cfg.
func applyServeFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}
	if cmd.Flags().Changed("manifest") {
		cfg.Manifest.Path = serveManifest
	}
	if serveNoConsole {
		cfg.Console.Enabled = false
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	res, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := res.Config
	applyServeFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, logCloser, err := slogutil.FromConfig(cfg.Logging, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to open log: %w", err)
	}
	defer logCloser.Close()

	home, err := paths.EnsureHome()
	if err != nil {
		return err
	}

	pidPath := cfg.PIDFile
	if pidPath == "" {
		if pidPath, err = paths.GetPIDPath(); err != nil {
			return err
		}
	}
	pid := daemon.NewPIDFile(pidPath)
	if err := pid.Acquire(); err != nil {
		return err
	}
	defer func() {
		if err := pid.Release(); err != nil {
			logger.Warn("Failed to remove PID file", "path", pidPath, "error", err)
		}
	}()

	h, err := buildHost(cfg, home, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := h.Close(); err != nil {
			logger.Error("Shutdown failed", "error", err)
		}
	}()

	srv := h.Server()
	if cfg.Server.AutoStart {
		if !srv.StartServer(cfg.Server.Port) {
			return errs.New(errs.BindFailed, fmt.Sprintf("could not listen on port %d", cfg.Server.Port))
		}
		logger.Info("Listening", "port", srv.Port(), "config", res.ConfigPath)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Console.Enabled {
		c := console.New(h, os.Stdout, console.Options{
			Prompt:      cfg.Console.Prompt,
			DefaultPort: cfg.Server.Port,
			Logger:      logger,
		})
		g.Go(func() error {
			defer stop()
			return c.Run(gctx, os.Stdin)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// buildHost wires the server, metrics and manifest instances.
func buildHost(cfg *config.Config, home string, logger *slog.Logger) (*host.Host, error) {
	readHeader, err := cfg.Server.ReadHeaderTimeoutDuration()
	if err != nil {
		return nil, err
	}
	idle, err := cfg.Server.IdleTimeoutDuration()
	if err != nil {
		return nil, err
	}

	m := metrics.New()
	srv := server.New(server.Options{
		Logger:            logger,
		Host:              cfg.Server.Host,
		ReadHeaderTimeout: readHeader,
		IdleTimeout:       idle,
		Observer:          m,
	})

	baseDir := "."
	if cfg.Manifest.Path != "" {
		baseDir = filepath.Dir(cfg.Manifest.Path)
	}
	h := host.New(host.Options{
		Server:  srv,
		Metrics: m,
		Logger:  logger,
		BaseDir: baseDir,
		DataDir: filepath.Join(home, "data"),
	})

	if cfg.Manifest.Path == "" {
		logger.Warn("No manifest configured; starting with an empty registry")
		return h, nil
	}
	manifest, err := config.LoadManifest(cfg.Manifest.Path)
	if err != nil {
		return nil, err
	}
	if err := h.Load(manifest); err != nil {
		return nil, err
	}
	return h, nil
}
