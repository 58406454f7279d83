package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/MarkoPoloResearchLab/roomai/internal/httpapi"
	"github.com/MarkoPoloResearchLab/roomai/internal/payment"
	"github.com/MarkoPoloResearchLab/roomai/internal/redesign"
	"github.com/MarkoPoloResearchLab/roomai/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/roomai/pkg/credits"
	"github.com/glebarez/sqlite"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const (
	flagDatabaseURL = "database-url"
	flagListenAddr  = "listen-addr"

	configKeyDatabaseURL       = "database_url"
	configKeyListenAddr        = "listen_addr"
	configKeyPublicBaseURL     = "public_base_url"
	configKeyAllowedOrigins    = "allowed_origins"
	configKeySessionSigningKey = "session_signing_key"
	configKeySessionIssuer     = "session_issuer"
	configKeySessionCookie     = "session_cookie_name"
	configKeyStripeSecretKey   = "stripe_secret_key"
	configKeyStripeWebhook     = "stripe_webhook_secret"
	configKeyRazorpayKeyID     = "razorpay_key_id"
	configKeyRazorpayKeySecret = "razorpay_key_secret"
	configKeyRazorpayWebhook   = "razorpay_webhook_secret"
	configKeyOpenAIKey         = "openai_api_key"

	defaultDatabaseURL = "sqlite://roomai.db"
)

type runtimeConfig struct {
	DatabaseURL       string
	ListenAddr        string
	PublicBaseURL     string
	AllowedOrigins    string
	SessionSigningKey string
	SessionIssuer     string
	SessionCookieName string

	StripeSecretKey     string
	StripeWebhookSecret string

	RazorpayKeyID         string
	RazorpayKeySecret     string
	RazorpayWebhookSecret string

	OpenAIKey string
}

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "roomai: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &runtimeConfig{}
	cmd := &cobra.Command{
		Use:           "roomai",
		Short:         "RoomAI credits and redesign API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(cmd, cfg)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	cmd.Flags().String(flagDatabaseURL, defaultDatabaseURL, "PostgreSQL or sqlite connection string")
	cmd.Flags().String(flagListenAddr, "", "HTTP listen address")

	return cmd
}

func loadConfig(cmd *cobra.Command, cfg *runtimeConfig) error {
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	envBindings := map[string]string{
		configKeyDatabaseURL:       "DATABASE_URL",
		configKeyListenAddr:        "LISTEN_ADDR",
		configKeyPublicBaseURL:     "PUBLIC_BASE_URL",
		configKeyAllowedOrigins:    "ALLOWED_ORIGINS",
		configKeySessionSigningKey: "SESSION_SIGNING_KEY",
		configKeySessionIssuer:     "SESSION_ISSUER",
		configKeySessionCookie:     "SESSION_COOKIE_NAME",
		configKeyStripeSecretKey:   "STRIPE_SECRET_KEY",
		configKeyStripeWebhook:     "STRIPE_WEBHOOK_SECRET",
		configKeyRazorpayKeyID:     "RAZORPAY_KEY_ID",
		configKeyRazorpayKeySecret: "RAZORPAY_KEY_SECRET",
		configKeyRazorpayWebhook:   "RAZORPAY_WEBHOOK_SECRET",
		configKeyOpenAIKey:         "OPENAI_API_KEY",
	}
	for configKey, envName := range envBindings {
		if err := viper.BindEnv(configKey, envName); err != nil {
			return err
		}
	}

	if err := viper.BindPFlag(configKeyDatabaseURL, cmd.Flags().Lookup(flagDatabaseURL)); err != nil {
		return err
	}
	if err := viper.BindPFlag(configKeyListenAddr, cmd.Flags().Lookup(flagListenAddr)); err != nil {
		return err
	}

	cfg.DatabaseURL = viper.GetString(configKeyDatabaseURL)
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = defaultDatabaseURL
	}
	cfg.ListenAddr = viper.GetString(configKeyListenAddr)
	cfg.PublicBaseURL = viper.GetString(configKeyPublicBaseURL)
	cfg.AllowedOrigins = viper.GetString(configKeyAllowedOrigins)
	cfg.SessionSigningKey = viper.GetString(configKeySessionSigningKey)
	cfg.SessionIssuer = viper.GetString(configKeySessionIssuer)
	cfg.SessionCookieName = viper.GetString(configKeySessionCookie)
	cfg.StripeSecretKey = viper.GetString(configKeyStripeSecretKey)
	cfg.StripeWebhookSecret = viper.GetString(configKeyStripeWebhook)
	cfg.RazorpayKeyID = viper.GetString(configKeyRazorpayKeyID)
	cfg.RazorpayKeySecret = viper.GetString(configKeyRazorpayKeySecret)
	cfg.RazorpayWebhookSecret = viper.GetString(configKeyRazorpayWebhook)
	cfg.OpenAIKey = viper.GetString(configKeyOpenAIKey)

	if cfg.PublicBaseURL == "" {
		return fmt.Errorf("public base url is required")
	}
	if cfg.SessionSigningKey == "" {
		return fmt.Errorf("session signing key is required")
	}
	if cfg.StripeSecretKey == "" || cfg.StripeWebhookSecret == "" {
		return fmt.Errorf("stripe credentials are required")
	}
	if cfg.RazorpayKeyID == "" || cfg.RazorpayKeySecret == "" || cfg.RazorpayWebhookSecret == "" {
		return fmt.Errorf("razorpay credentials are required")
	}
	if cfg.OpenAIKey == "" {
		return fmt.Errorf("openai api key is required")
	}
	return nil
}

func runServer(ctx context.Context, cfg *runtimeConfig) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	gormDB, cleanup, err := openDatabase(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer func() { _ = cleanup() }()

	if err := gormstore.Migrate(gormDB); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	store := gormstore.New(gormDB)
	creditService, err := credits.NewService(store,
		credits.WithOperationLogger(&zapOperationLogger{logger: logger}))
	if err != nil {
		return fmt.Errorf("credits service init: %w", err)
	}

	stripeProvider := payment.NewStripeProvider(payment.StripeConfig{
		SecretKey:     cfg.StripeSecretKey,
		WebhookSecret: cfg.StripeWebhookSecret,
		PublicBaseURL: cfg.PublicBaseURL,
	})
	razorpayProvider := payment.NewRazorpayProvider(payment.RazorpayConfig{
		KeyID:         cfg.RazorpayKeyID,
		KeySecret:     cfg.RazorpayKeySecret,
		WebhookSecret: cfg.RazorpayWebhookSecret,
	})
	generator := redesign.NewOpenAIGenerator(cfg.OpenAIKey)

	serverConfig := httpapi.Config{
		ListenAddr:        cfg.ListenAddr,
		PublicBaseURL:     cfg.PublicBaseURL,
		AllowedOrigins:    httpapi.ParseAllowedOrigins(cfg.AllowedOrigins),
		SessionSigningKey: cfg.SessionSigningKey,
		SessionIssuer:     cfg.SessionIssuer,
		SessionCookieName: cfg.SessionCookieName,
	}
	return httpapi.Run(ctx, serverConfig, httpapi.Dependencies{
		Logger:    logger,
		Credits:   creditService,
		Stripe:    stripeProvider,
		Razorpay:  razorpayProvider,
		Generator: generator,
	})
}

// zapOperationLogger forwards credits operation callbacks to zap.
type zapOperationLogger struct {
	logger *zap.Logger
}

func (adapter *zapOperationLogger) LogOperation(_ context.Context, entry credits.OperationLog) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("user_id", entry.UserID.String()),
		zap.Int64("amount", entry.Amount.Int64()),
		zap.String("status", entry.Status),
	}
	if entry.EventKey.String() != "" {
		fields = append(fields, zap.String("event_key", entry.EventKey.String()))
	}
	if entry.Provider != "" {
		fields = append(fields, zap.String("provider", entry.Provider))
	}
	if entry.Error != nil {
		fields = append(fields, zap.Error(entry.Error))
		adapter.logger.Warn("credits operation failed", fields...)
		return
	}
	adapter.logger.Info("credits operation", fields...)
}

func openDatabase(ctx context.Context, dsn string) (*gorm.DB, func() error, error) {
	driver, sqlitePath, err := resolveDriver(dsn)
	if err != nil {
		return nil, nil, err
	}

	var db *gorm.DB
	switch driver {
	case "postgres":
		db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(sqlitePath), &gorm.Config{})
	default:
		return nil, nil, fmt.Errorf("unsupported database scheme %q", driver)
	}
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() error { return sqlDB.Close() }
	return db.WithContext(ctx), cleanup, nil
}

func resolveDriver(dsn string) (string, string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres", "", nil
	}
	if strings.HasPrefix(dsn, "sqlite://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", "", fmt.Errorf("parse sqlite url: %w", err)
		}
		path := u.Path
		if path == "" {
			path = u.Host
		}
		if path == "" || path == "/" {
			path = "roomai.db"
		}
		sqlitePath, err := normalizeSQLitePath(path)
		return "sqlite", sqlitePath, err
	}
	// Treat everything else as a direct sqlite path.
	sqlitePath, err := normalizeSQLitePath(dsn)
	return "sqlite", sqlitePath, err
}

func normalizeSQLitePath(path string) (string, error) {
	if path == ":memory:" {
		return path, nil
	}
	if strings.HasPrefix(path, "/") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return "", err
		}
		return path, nil
	}
	abs := filepath.Join(".", path)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}
	return abs, nil
}
