package main

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/banshee-data/trackspeed/internal/api"
	"github.com/banshee-data/trackspeed/internal/config"
	"github.com/banshee-data/trackspeed/internal/db"
	"github.com/banshee-data/trackspeed/internal/monitoring"
	"github.com/banshee-data/trackspeed/internal/units"
)

const shutdownTimeout = 5 * time.Second

// serveConfig reads the environment then applies any flags given.
func serveConfig(args []string, out io.Writer) (config.ServerConfig, error) {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		return cfg, err
	}
	fs := newFlagSet("serve", out)
	fs.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "Listen address")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite database path")
	fs.StringVar(&cfg.Units, "units", cfg.Units, "Display units ("+units.GetValidUnitsString()+")")
	fs.StringVar(&cfg.PipelineConfigPath, "config", cfg.PipelineConfigPath, "Pipeline config JSON")
	fs.Int64Var(&cfg.UploadMaxMB, "upload-max-mb", cfg.UploadMaxMB, "Largest accepted upload in MB")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	if _, err := parseInterspersed(fs, args); err != nil {
		return cfg, err
	}
	if cfg.ListenAddr == "" {
		return cfg, errors.New("listen address is required")
	}
	if !units.IsValid(cfg.Units) {
		return cfg, errors.Errorf("invalid units %q, must be one of: %s", cfg.Units, units.GetValidUnitsString())
	}
	if cfg.UploadMaxMB <= 0 {
		return cfg, errors.New("-upload-max-mb must be positive")
	}
	return cfg, monitoring.SetLevel(cfg.LogLevel)
}

func runServe(ctx context.Context, args []string, out io.Writer) error {
	cfg, err := serveConfig(args, out)
	if err != nil {
		return err
	}
	pipeline, err := cfg.Pipeline()
	if err != nil {
		return err
	}

	database, err := db.NewDB(cfg.DBPath)
	if err != nil {
		return errors.Wrap(err, "failed to open database")
	}
	defer database.Close()

	mux := api.NewServer(database, cfg, pipeline).ServeMux()
	if err := database.AttachAdminRoutes(mux); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return errors.Wrapf(err, "listen on %s", cfg.ListenAddr)
	}
	server := &http.Server{
		Handler:           api.LoggingMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
		close(serveErr)
	}()
	monitoring.Logger().WithField("addr", ln.Addr().String()).WithField("db", cfg.DBPath).Info("serving track API")

	select {
	case err := <-serveErr:
		return errors.Wrap(err, "HTTP server failed")
	case <-ctx.Done():
	}
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}
	monitoring.Logf("Graceful shutdown complete")
	return nil
}

func runMigrate(args []string, out io.Writer) error {
	dbPath := "trackspeed.db"
	if cfg, err := config.LoadServerConfig(); err == nil {
		dbPath = cfg.DBPath
	}
	fs := newFlagSet("migrate", out)
	fs.StringVar(&dbPath, "db", dbPath, "SQLite database path")
	fs.Usage = func() { db.PrintMigrateHelp(out) }
	positional, err := parseInterspersed(fs, args)
	if err != nil {
		return err
	}
	return db.RunMigrateCommand(positional, dbPath, out)
}
