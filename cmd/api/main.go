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

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"go-chi-calculator/internal/config"
	"go-chi-calculator/internal/observability"
	"go-chi-calculator/internal/server"
	"go-chi-calculator/internal/storage"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := newRootCmd(config.New()).ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:           "api",
		Short:         "Calculator HTTP API",
		Long:          `Serves arithmetic and statistics operations over HTTP and, when a database is configured, records every successful calculation.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v, flags)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.cfgFile, "config", "", "config file (default: ./calculator.yaml or /etc/calculator/calculator.yaml)")
	pf.StringVar(&flags.envFile, "env-file", defaultEnvFile, "dotenv file loaded before configuration")
	pf.String("addr", "", "HTTP listen address (default :8080)")
	pf.String("db-driver", "", "database driver: postgres or sqlite")
	pf.String("db-dsn", "", "database connection string")
	pf.BoolVar(&flags.noDB, "no-db", false, "run without a database; calculations are not stored")
	pf.String("log-level", "", "log level (debug, info, warn, error)")

	_ = v.BindPFlag("server.addr", pf.Lookup("addr"))
	_ = v.BindPFlag("database.driver", pf.Lookup("db-driver"))
	_ = v.BindPFlag("database.dsn", pf.Lookup("db-dsn"))
	_ = v.BindPFlag("logging.level", pf.Lookup("log-level"))

	cmd.AddCommand(newMigrateCmd(v, &flags))

	return cmd
}

// rootFlags holds the persistent flags that are not plain viper keys.
type rootFlags struct {
	cfgFile string
	envFile string
	noDB    bool
}

func newMigrateCmd(v *viper.Viper, flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the calculations table and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v, rootFlags{cfgFile: flags.cfgFile, envFile: flags.envFile})
			if err != nil {
				return err
			}
			if !cfg.Database.Enabled {
				return errors.New("migrate: database.enabled is false")
			}

			if err := observability.InitLogger(cfg.Logging); err != nil {
				return err
			}
			defer observability.SyncLogger()

			ctx := cmd.Context()
			store, err := storage.Open(ctx, cfg.Database, observability.Logger)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Migrate(ctx); err != nil {
				return err
			}

			observability.Logger.Info("database migrated", zap.String("driver", cfg.Database.Driver))
			return nil
		},
	}
}

func loadConfig(v *viper.Viper, flags rootFlags) (*config.Config, error) {
	if err := loadDotEnv(flags.envFile); err != nil {
		return nil, err
	}

	cfg, err := config.Load(v, flags.cfgFile)
	if err != nil {
		return nil, err
	}

	if flags.noDB {
		cfg.Database.Enabled = false
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg *config.Config) error {

	// Logger
	if err := observability.InitLogger(cfg.Logging); err != nil {
		return err
	}
	defer observability.SyncLogger()

	// Tracing, metrics and log export
	observability.ServiceVersion = version
	telemetryShutdown, err := initTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := telemetryShutdown(flushCtx); err != nil {
			observability.Logger.Warn("flushing telemetry", zap.Error(err))
		}
	}()

	// Storage
	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if store != nil {
		defer store.Close()
	}

	// Router
	router := server.NewRouter(server.Options{
		Store:        store,
		History:      cfg.History,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		CORS:         cfg.CORS,
		Version:      version,
	})

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		observability.Logger.Info("server started",
			zap.String("addr", srv.Addr),
			zap.Bool("persistent", store != nil),
			zap.String("version", version),
		)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	return waitForShutdown(srv, cfg.Server.ShutdownTimeout)
}

func waitForShutdown(srv *http.Server, timeout time.Duration) error {
	observability.Logger.Info("shutting down", zap.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return srv.Shutdown(ctx)
}

// openStore connects and migrates the database. It returns a nil store when
// persistence is disabled, or when the database cannot be reached and is not
// required, so the service runs database-free.
func openStore(ctx context.Context, cfg config.DatabaseConfig) (*storage.Store, error) {
	logger := observability.Logger

	if !cfg.Enabled {
		logger.Info("database disabled, calculations will not be stored")
		return nil, nil
	}

	store, err := storage.Open(ctx, cfg, logger)
	if err == nil {
		if err = store.Migrate(ctx); err != nil {
			_ = store.Close()
		}
	}
	if err != nil {
		if cfg.Required {
			return nil, fmt.Errorf("database required: %w", err)
		}
		logger.Warn("database unavailable, calculations will not be stored", zap.Error(err))
		return nil, nil
	}

	if err := observability.RegisterCollector(store.Collector()); err != nil {
		logger.Warn("registering database metrics", zap.Error(err))
	}

	logger.Info("database connected", zap.String("driver", cfg.Driver))
	return store, nil
}
