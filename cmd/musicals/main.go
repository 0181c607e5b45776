package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/vbonduro/musicals/internal/auth"
	"github.com/vbonduro/musicals/internal/config"
	"github.com/vbonduro/musicals/internal/db"
	"github.com/vbonduro/musicals/internal/imagestore/local"
	"github.com/vbonduro/musicals/internal/logging"
	"github.com/vbonduro/musicals/internal/service"
	"github.com/vbonduro/musicals/internal/store"
	"github.com/vbonduro/musicals/internal/web"
	"github.com/vbonduro/musicals/internal/web/templates"
)

var (
	cfg    *config.Config
	logger *slog.Logger

	closeLogger = func() {}

	userEmail    string
	userPassword string
)

var rootCmd = &cobra.Command{
	Use:           "musicals",
	Short:         "Storefront and admin dashboard for the instrument shop",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		l, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger, closeLogger = l, cleanup
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeLogger()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations and exit",
	RunE:  runMigrate,
}

var addUserCmd = &cobra.Command{
	Use:   "adduser",
	Short: "Create an account from the command line",
	Long: `Create an email/password account without going through the sign-up page.

Use it to create the administrator account named by ADMIN_EMAIL.`,
	RunE: runAddUser,
}

func init() {
	addUserCmd.Flags().StringVar(&userEmail, "email", "", "Account email (required)")
	addUserCmd.Flags().StringVar(&userPassword, "password", "", "Account password (required)")
	_ = addUserCmd.MarkFlagRequired("email")
	_ = addUserCmd.MarkFlagRequired("password")

	rootCmd.AddCommand(serveCmd, migrateCmd, addUserCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		if logger != nil {
			logger.Error("command failed", "error", err)
		} else {
			log.Print(err)
		}
		closeLogger()
		os.Exit(1)
	}
}

func openDatabase() (*sql.DB, func(), error) {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}, nil
}

func newGateway(database *sql.DB) *auth.Gateway {
	return auth.NewGateway(
		store.NewUserStore(database),
		store.NewResetStore(database),
		auth.NewCookieStore(cfg.SessionKey, cfg.SecureCookies, logger),
		auth.LogMailer{Logger: logger},
		cfg.AdminEmail,
		cfg.ResetTokenTTL,
		logger,
	)
}

func runServe(cmd *cobra.Command, args []string) error {
	database, closeDB, err := openDatabase()
	if err != nil {
		return err
	}
	defer closeDB()

	if cfg.AdminEmail == "" {
		logger.Warn("ADMIN_EMAIL not set; nobody can edit the catalogue")
	}

	images, err := local.New(cfg.ImagePath)
	if err != nil {
		return fmt.Errorf("failed to initialize image store: %w", err)
	}

	catalogue := service.NewCatalogueService(
		store.NewInstrumentStore(database),
		store.NewContactStore(database),
		logger,
	)
	server := web.NewServer(catalogue, newGateway(database), images, templates.FS, web.Options{
		BaseURL:        cfg.BaseURL,
		WhatsAppNumber: cfg.WhatsAppNumber,
	}, logger)

	return server.ListenAndServe(cfg.ListenAddr)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	database, closeDB, err := openDatabase()
	if err != nil {
		return err
	}
	defer closeDB()

	version, err := db.Migrate(database)
	if err != nil {
		return err
	}
	logger.Info("database is up to date", "path", cfg.DBPath, "version", version)
	return nil
}

func runAddUser(cmd *cobra.Command, args []string) error {
	database, closeDB, err := openDatabase()
	if err != nil {
		return err
	}
	defer closeDB()

	user, err := newGateway(database).SignUp(cmd.Context(), userEmail, userPassword)
	if err != nil {
		return fmt.Errorf("failed to create user: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", user.Email, user.ID)
	return nil
}
