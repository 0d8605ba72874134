package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rangehq/rangeboard/internal/api"
	"github.com/rangehq/rangeboard/internal/auth"
	"github.com/rangehq/rangeboard/internal/config"
	"github.com/rangehq/rangeboard/internal/fixture"
	"github.com/rangehq/rangeboard/internal/game"
	"github.com/rangehq/rangeboard/internal/logging"
	"github.com/rangehq/rangeboard/internal/password"
	"github.com/rangehq/rangeboard/internal/probe"
	"github.com/rangehq/rangeboard/internal/render"
	"github.com/rangehq/rangeboard/internal/save"
	"github.com/rangehq/rangeboard/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the rangeboard server",
	Long: `Start the scoreboard server: load the fixtures, begin the score tick, and
serve the HTTP API.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	configPath := cfgFile
	if configPath == "" {
		configPath = findConfigFile()
	}

	settings, err := config.Load(configPath)
	if err != nil {
		log.Error().Err(err).Str("path", configPath).Msg("failed to load config")
		return err
	}

	logger, err := logging.New(settings.Logging)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize logger")
	}
	log.Logger = logger
	zerolog.DefaultContextLogger = &logger

	// Load the game fixtures.
	loader := &fixture.Loader{
		ResourceDir:  settings.Server.ResourceDir,
		TeamsFile:    settings.Server.TeamsFile,
		ServicesFile: settings.Server.ServicesFile,
		InjectsFile:  settings.Server.InjectsFile,
	}
	cfg, err := loader.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load fixtures")
		return err
	}
	log.Info().
		Int("teams", len(cfg.Teams)).
		Int("services", len(cfg.Services)).
		Int("injects", len(cfg.Injects)).
		Msg("fixtures loaded")

	// Reconcile the on-disk trees before anything touches them.
	passwords := password.NewStore(settings.Server.ResourceDir)
	passwords.ValidateFS(cfg.TeamNames())
	saves := save.NewManager(settings.Server.ResourceDir, passwords)
	if err := saves.ValidateFS(); err != nil {
		log.Error().Err(err).Msg("failed to prepare save directory")
		return err
	}

	store := game.NewStore(cfg)
	gate := auth.NewGate(settings.Server.AdminPassword, store)
	runner := probe.NewRunner(settings.Server.ResourceDir)
	renderer, err := render.NewRenderer()
	if err != nil {
		log.Error().Err(err).Msg("failed to create renderer")
		return err
	}
	defer renderer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The score and autosave ticks.
	sched := scheduler.New(store, runner, saves)
	go sched.Run(ctx)

	// Fixtures are read once at boot; warn when they change underneath us.
	watcher, err := fixture.NewWatcher(loader, func(name string) {
		log.Warn().Str("file", name).
			Msg("fixture changed on disk; restart or load a save to apply")
	})
	if err != nil {
		log.Warn().Err(err).Msg("fixture watcher unavailable")
	} else {
		defer watcher.Close()
		go func() {
			if err := watcher.Watch(ctx); err != nil {
				log.Error().Err(err).Msg("fixture watcher stopped")
			}
		}()
	}

	handler := api.SetupRoutes(api.Deps{
		Store:       store,
		Gate:        gate,
		Saves:       saves,
		Passwords:   passwords,
		Renderer:    renderer,
		Prober:      runner,
		ResourceDir: settings.Server.ResourceDir,
	})

	addr := fmt.Sprintf(":%d", settings.Server.Port)
	server := api.NewServer(addr, handler, settings.Server.EnableHTTP2)

	// Graceful shutdown on SIGINT/SIGTERM.
	done := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Info().Msg("shutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutdown error")
		}

		close(done)
	}()

	log.Info().Str("listen", addr).Msg("starting rangeboard")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server error")
		return err
	}

	<-done
	log.Info().Msg("server stopped")

	return nil
}

// findConfigFile checks the working directory for the default settings
// file. The server runs fine with no file at all.
func findConfigFile() string {
	if _, err := os.Stat(defaultConfigFile); err == nil {
		return defaultConfigFile
	}
	return ""
}
