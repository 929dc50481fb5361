package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goliatone/go-webstats/internal/config"
	"github.com/goliatone/go-webstats/internal/gamestate"
	"github.com/goliatone/go-webstats/internal/logging"
	"github.com/goliatone/go-webstats/pkg/di"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	v        = config.NewViper()
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Start the stats server",
		Long: `Start the stats server. Settings are read from flags, from the optional
config file and from environment variables named WEBSTATS_<flag>
(e.g. WEBSTATS_LOG_LEVEL=debug). Database credentials are read from
WEBSTATS_DB_DRIVER, WEBSTATS_DB_PATH, WEBSTATS_DB_HOSTNAME, WEBSTATS_DB_PORT,
WEBSTATS_DB_USERNAME, WEBSTATS_DB_PASSWORD and WEBSTATS_DB_NAME.`,
		PreRunE: initConfig,
		RunE:    serve,
	}
)

func init() {
	defaults := config.Default()
	flags := serveCmd.Flags()

	flags.String("config", "", "path of a YAML config file")
	flags.String("endpoint", defaults.Endpoint, "address the web server listens on")
	flags.String("log-level", defaults.LogLevel, "log level (debug, info, warn, error)")
	flags.String("state", "", "game state snapshot to load at startup")
	flags.StringSlice("objectives", defaults.Objectives, "scoreboard objectives to serve, * for all")
	flags.Bool("persist-on-removal", false, "save a player's placeholders as soon as the player quits")
	flags.Duration("response-cache-ttl", defaults.ResponseCacheTTL, "how long a rendered response is reused, 0 to disable")
}

// initConfig loads .env files, binds the flags and reads the config file.
func initConfig(cmd *cobra.Command, _ []string) error {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return nil
}

func serve(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	if err := logging.Init(cfg.LogLevel); err != nil {
		return err
	}

	world := gamestate.NewWorld()
	if cfg.StatePath != "" {
		if err := world.LoadFile(cfg.StatePath); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := di.NewContainer(ctx, cfg, world)
	if err != nil {
		return err
	}
	if err := container.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	config.Logger.Infof("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return container.Shutdown(shutdownCtx)
}
