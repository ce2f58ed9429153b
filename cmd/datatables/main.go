package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/deppfellow/go-datatables/internal/config"
	"github.com/deppfellow/go-datatables/internal/database"
	"github.com/deppfellow/go-datatables/internal/handler"
	"github.com/deppfellow/go-datatables/internal/lib/utils"
	"github.com/deppfellow/go-datatables/internal/logger"
	"github.com/deppfellow/go-datatables/internal/repository"
	"github.com/deppfellow/go-datatables/internal/router"
	"github.com/deppfellow/go-datatables/internal/server"
	"github.com/deppfellow/go-datatables/internal/service"
)

const DefaultContextTimeout = 30

var configPath string

var rootCmd = &cobra.Command{
	Use:           "datatables",
	Short:         "Server-side processing API for jQuery DataTables grids",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the configured grids over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var queryCmd = &cobra.Command{
	Use:     "query GRID [QUERY_STRING]",
	Short:   "Run one DataTables request against a grid and print the response",
	Example: `  datatables query invoices 'draw=1&length=5&columns[0][data]=number&search[value]=ada'`,
	Args:    cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var raw string
		if len(args) == 2 {
			raw = args[1]
		}
		values, err := url.ParseQuery(raw)
		if err != nil {
			return fmt.Errorf("invalid query string: %w", err)
		}
		return query(cmd.Context(), cmd.OutOrStdout(), args[0], values)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the database migrations and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		return migrate(cmd.Context())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to the YAML config file (default $"+config.ConfigFileEnvVar+")")
	rootCmd.AddCommand(serveCmd, queryCmd, migrateCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the config and builds the logger with its New Relic service.
func setup() (*config.Config, *zerolog.Logger, *logger.LoggerService, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	loggerService, err := logger.NewLoggerService(cfg.Observability)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialize New Relic: %w", err)
	}

	log := logger.NewLoggerWithService(cfg.Observability, loggerService)
	return cfg, &log, loggerService, nil
}

func serve(ctx context.Context) error {
	cfg, log, loggerService, err := setup()
	if err != nil {
		return err
	}
	defer loggerService.Shutdown()

	srv, err := server.New(cfg, log, loggerService)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize server")
		return err
	}

	repos, err := repository.NewRepositories(srv)
	if err != nil {
		srv.DB.Close()
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}
	services, err := service.NewService(srv, repos)
	if err != nil {
		srv.DB.Close()
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	handlers := handler.NewHandlers(srv, services)
	srv.SetupHTTPServer(router.NewRouter(srv, handlers))

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Start()
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			log.Error().Err(err).Msg("server stopped")
			srv.DB.Close()
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultContextTimeout*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return err
	}

	log.Info().Msg("server exited properly")
	return nil
}

func migrate(ctx context.Context) error {
	cfg, log, loggerService, err := setup()
	if err != nil {
		return err
	}
	defer loggerService.Shutdown()

	db, err := database.New(cfg, log, loggerService)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func query(ctx context.Context, out io.Writer, grid string, values url.Values) error {
	cfg, log, loggerService, err := setup()
	if err != nil {
		return err
	}
	defer loggerService.Shutdown()

	srv, err := server.New(cfg, log, loggerService)
	if err != nil {
		return err
	}
	defer srv.DB.Close()

	repos, err := repository.NewRepositories(srv)
	if err != nil {
		return fmt.Errorf("failed to initialize repositories: %w", err)
	}
	services, err := service.NewService(srv, repos)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}

	resp, err := services.Grids.Query(log.WithContext(ctx), grid, values)
	if err != nil {
		return err
	}
	return utils.PrintJSON(out, resp)
}
