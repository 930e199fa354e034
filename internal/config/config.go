// Package config resolves the service configuration from, in increasing
// precedence, built-in defaults, a YAML file, the environment (optionally
// seeded from a .env file) and command-line flags. The result is validated
// against an embedded CUE schema and passed explicitly to each component.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaCUE string

// Environment variable names.
const (
	EnvListenAddr         = "ASSIGNLY_LISTEN_ADDR"
	EnvDatabase           = "ASSIGNLY_DATABASE"
	EnvCurrency           = "ASSIGNLY_CURRENCY"
	EnvMaintenanceMode    = "ASSIGNLY_MAINTENANCE_MODE"
	EnvPlatformFeePercent = "ASSIGNLY_PLATFORM_FEE_PERCENT"
	EnvProviders          = "ASSIGNLY_PROVIDERS"
	EnvStripeSecretKey    = "STRIPE_SECRET_KEY"
	EnvStripeWebhook      = "STRIPE_WEBHOOK_SECRET"
)

// Config is the resolved service configuration.
type Config struct {
	ListenAddr         string          `yaml:"listen_addr"`
	Database           string          `yaml:"database"`
	Currency           string          `yaml:"currency"`
	PlatformFeePercent decimal.Decimal `yaml:"platform_fee_percent"`
	MaintenanceMode    bool            `yaml:"maintenance_mode"`
	Providers          []string        `yaml:"providers"`
	Gateway            GatewayConfig   `yaml:"gateway"`
}

// GatewayConfig holds payment gateway credentials and limits.
type GatewayConfig struct {
	SecretKey        string        `yaml:"secret_key"`
	WebhookSecret    string        `yaml:"webhook_secret"`
	Timeout          time.Duration `yaml:"timeout"`
	WebhookTolerance time.Duration `yaml:"webhook_tolerance"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		ListenAddr:         ":8080",
		Database:           "assignly.db",
		Currency:           "inr",
		PlatformFeePercent: decimal.NewFromInt(10),
		Gateway: GatewayConfig{
			Timeout:          10 * time.Second,
			WebhookTolerance: 5 * time.Minute,
		},
	}
}

// FeePercent returns the platform fee percentage exactly as configured.
func (c *Config) FeePercent() decimal.Decimal {
	return c.PlatformFeePercent
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not
// an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// Load resolves defaults, the YAML file at path (skipped if path is empty)
// and the process environment. The caller applies flag overrides and then
// calls Validate.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.LookupEnv)
}

// LookupFunc reads one environment variable.
type LookupFunc func(key string) (string, bool)

// LoadWithEnv is Load with an explicit environment.
func LoadWithEnv(path string, lookup LookupFunc) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg, lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config, lookup LookupFunc) error {
	if v, ok := lookup(EnvListenAddr); ok && v != "" {
		cfg.ListenAddr = v
	}
	if v, ok := lookup(EnvDatabase); ok && v != "" {
		cfg.Database = v
	}
	if v, ok := lookup(EnvCurrency); ok && v != "" {
		cfg.Currency = strings.ToLower(strings.TrimSpace(v))
	}
	if v, ok := lookup(EnvMaintenanceMode); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaintenanceMode, err)
		}
		cfg.MaintenanceMode = b
	}
	if v, ok := lookup(EnvPlatformFeePercent); ok && v != "" {
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPlatformFeePercent, err)
		}
		cfg.PlatformFeePercent = d
	}
	if v, ok := lookup(EnvProviders); ok && v != "" {
		cfg.Providers = nil
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				cfg.Providers = append(cfg.Providers, id)
			}
		}
	}
	if v, ok := lookup(EnvStripeSecretKey); ok && v != "" {
		cfg.Gateway.SecretKey = v
	}
	if v, ok := lookup(EnvStripeWebhook); ok && v != "" {
		cfg.Gateway.WebhookSecret = v
	}
	return nil
}

// Validate checks the configuration against the embedded CUE schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	v := def.Unify(ctx.Encode(c.view()))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// view is the schema-shaped form of c.
func (c *Config) view() map[string]any {
	providers := c.Providers
	if providers == nil {
		providers = []string{}
	}
	return map[string]any{
		"listen_addr":          c.ListenAddr,
		"database":             c.Database,
		"currency":             c.Currency,
		"platform_fee_percent": c.PlatformFeePercent.InexactFloat64(),
		"maintenance_mode":     c.MaintenanceMode,
		"providers":            providers,
		"gateway": map[string]any{
			"secret_key":        c.Gateway.SecretKey,
			"webhook_secret":    c.Gateway.WebhookSecret,
			"timeout":           int64(c.Gateway.Timeout),
			"webhook_tolerance": int64(c.Gateway.WebhookTolerance),
		},
	}
}

// formatCUEError flattens CUE's multi-error into one line per problem.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
