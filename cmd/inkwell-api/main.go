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

	"github.com/inkwellhq/inkwell/internal/auth"
	"github.com/inkwellhq/inkwell/internal/config"
	"github.com/inkwellhq/inkwell/internal/content"
	"github.com/inkwellhq/inkwell/internal/database"
	"github.com/inkwellhq/inkwell/internal/feed"
	"github.com/inkwellhq/inkwell/internal/logging"
	"github.com/inkwellhq/inkwell/internal/newsletter"
	"github.com/inkwellhq/inkwell/internal/server"
	"github.com/inkwellhq/inkwell/internal/settings"
	"github.com/inkwellhq/inkwell/internal/storage"
)

var cfgFile string

func main() {
	rootCmd := &cobra.Command{
		Use:   "inkwell-api",
		Short: "Inkwell content platform backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)
	rootCmd.AddCommand(newHashPasswordCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().String("storage-dir", defaults.GetString("storage.dir"), "Object storage root directory")
	cmd.PersistentFlags().String("public-base-url", defaults.GetString("site.public_base_url"), "Base URL the site is served from")
	cmd.PersistentFlags().String("admin-email", "", "Admin account email")
	cmd.PersistentFlags().String("admin-password-hash", "", "Admin account bcrypt password hash")
	cmd.PersistentFlags().String("mail-function-url", "", "Welcome mail function endpoint")
	cmd.PersistentFlags().Int("token-ttl-minutes", defaults.GetInt("token.ttl_minutes"), "Session token TTL in minutes")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Session signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "storage.dir", "storage-dir")
	bindFlag(cmd, "site.public_base_url", "public-base-url")
	bindFlag(cmd, "admin.email", "admin-email")
	bindFlag(cmd, "admin.password_hash", "admin-password-hash")
	bindFlag(cmd, "mail.function_url", "mail-function-url")
	bindFlag(cmd, "token.ttl_minutes", "token-ttl-minutes")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func newHashPasswordCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Produce a bcrypt hash for the admin.password_hash setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hashed, err := auth.HashPassword(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hashed)
			return nil
		},
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	dispatcher := feed.NewDispatcher()

	contentService, err := content.NewService(content.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: content.NewUUIDProvider(),
		Feed:       dispatcher,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	newsletterService, err := newsletter.NewService(newsletter.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: content.NewUUIDProvider(),
		Mailer:     newsletter.NewFunctionMailer(appConfig.MailFunctionURL, logger),
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	settingsService, err := settings.NewService(settings.ServiceConfig{
		Database: db,
		Clock:    time.Now,
	})
	if err != nil {
		return err
	}

	diskStore, err := storage.NewDiskStore(appConfig.StorageDir, appConfig.PublicBaseURL)
	if err != nil {
		return err
	}

	tokenManager := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret: []byte(appConfig.SigningSecret),
		TokenTTL:      appConfig.TokenTTL,
	})

	authenticator, err := auth.NewAuthenticator(appConfig.AdminEmail, appConfig.AdminPasswordHash)
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Content:       contentService,
		Newsletter:    newsletterService,
		Settings:      settingsService,
		Storage:       diskStore,
		TokenManager:  tokenManager,
		Authenticator: authenticator,
		Feed:          dispatcher,
		PublicBaseURL: appConfig.PublicBaseURL,
		Logger:        logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
