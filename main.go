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

	"github.com/gin-gonic/gin"
	"github.com/kendall-kelly/servicepro-api/config"
	"github.com/kendall-kelly/servicepro-api/forms"
	"github.com/kendall-kelly/servicepro-api/services"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "servicepro",
	Short:         "ServicePro repair shop API",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run migrations and start the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(func(cfg *config.Config, logger *zap.Logger, db *gorm.DB) error {
			if err := config.Migrate(db); err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, logger, db)
		})
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(func(cfg *config.Config, logger *zap.Logger, db *gorm.DB) error {
			if err := config.Migrate(db); err != nil {
				return err
			}
			logger.Info("Database migration completed successfully")
			return nil
		})
	},
}

var adminInput forms.StaffInput

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create the first administrator account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withRuntime(func(cfg *config.Config, logger *zap.Logger, db *gorm.DB) error {
			if err := config.Migrate(db); err != nil {
				return err
			}
			users := services.NewUserService(db, nil, logger)
			user, err := users.BootstrapAdmin(cmd.Context(), adminInput)
			if err != nil {
				return err
			}
			logger.Info("Administrator created", zap.Uint("id", user.ID), zap.String("email", user.Email))
			return nil
		})
	},
}

func init() {
	createAdminCmd.Flags().StringVar(&adminInput.Name, "name", "", "administrator name")
	createAdminCmd.Flags().StringVar(&adminInput.Email, "email", "", "administrator email")
	createAdminCmd.Flags().StringVar(&adminInput.Password, "password", "", "administrator password")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(serveCmd, migrateCmd, createAdminCmd)
}

// withRuntime loads configuration, the logger and the database for a command
func withRuntime(run func(cfg *config.Config, logger *zap.Logger, db *gorm.DB) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := config.NewLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := config.ConnectDatabase(cfg.DatabaseURL); err != nil {
		return err
	}
	return run(cfg, logger, config.GetDB())
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger, db *gorm.DB) error {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	app, err := newApplication(ctx, cfg, logger, db)
	if err != nil {
		return err
	}
	defer app.close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server is running", zap.String("addr", srv.Addr), zap.String("env", cfg.GoEnv))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-quit:
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	return nil
}
