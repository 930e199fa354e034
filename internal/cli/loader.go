package cli

import (
	"io"
	"log/slog"

	"github.com/roach88/assignly/internal/config"
	"github.com/roach88/assignly/internal/gateway"
	"github.com/roach88/assignly/internal/negotiation"
	"github.com/roach88/assignly/internal/reconcile"
	"github.com/roach88/assignly/internal/store"
)

// Overrides carries command-line flags that take precedence over the config
// file and the environment. Zero values leave the loaded setting alone.
type Overrides struct {
	Database   string
	ListenAddr string

	// Maintenance is applied only when MaintenanceSet is true, so that an
	// explicit --maintenance=false can override the file.
	Maintenance    bool
	MaintenanceSet bool
}

// loadConfig resolves the configuration: defaults, config file, .env and
// process environment, then flag overrides. The result is schema-validated.
func loadConfig(opts *RootOptions, ov Overrides) (*config.Config, error) {
	if opts.EnvFile != "" {
		if err := config.LoadDotEnv(opts.EnvFile); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load env file", err)
		}
	}
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	if ov.Database != "" {
		cfg.Database = ov.Database
	}
	if ov.ListenAddr != "" {
		cfg.ListenAddr = ov.ListenAddr
	}
	if ov.MaintenanceSet {
		cfg.MaintenanceMode = ov.Maintenance
	}

	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

// newLogger builds the process logger: text on w by default, JSON when
// --format json, Debug level with --verbose.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}
	if opts.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// openStore opens the configured database, applying schema and migrations.
func openStore(cfg *config.Config, logger *slog.Logger) (*store.Store, error) {
	logger.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// newStripe builds the gateway client from config.
func newStripe(cfg *config.Config) *gateway.Stripe {
	return gateway.NewStripe(gateway.StripeConfig{
		SecretKey:        cfg.Gateway.SecretKey,
		WebhookSecret:    cfg.Gateway.WebhookSecret,
		Timeout:          cfg.Gateway.Timeout,
		WebhookTolerance: cfg.Gateway.WebhookTolerance,
	})
}

// newComponents wires the engine and the payment processor over st.
func newComponents(cfg *config.Config, st *store.Store, gw *gateway.Stripe, logger *slog.Logger) (*negotiation.Engine, *reconcile.Processor) {
	engine := negotiation.New(st,
		negotiation.WithProviderDirectory(negotiation.NewStaticDirectory(cfg.Providers)),
		negotiation.WithLogger(logger))
	payments := reconcile.New(st, gw, gw,
		reconcile.Settings{
			Currency:           cfg.Currency,
			PlatformFeePercent: cfg.FeePercent(),
			GatewayTimeout:     cfg.Gateway.Timeout,
		},
		reconcile.WithLogger(logger))
	return engine, payments
}
