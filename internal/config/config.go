package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"github.com/samber/lo"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv     string `validate:"required"`
	Port       string `validate:"required"`
	BackendURL string `validate:"required,url"`
	AssetsDir  string

	Checkout Checkout `validate:"required"`
	Obs      Obs
}

// Checkout carries the values embedded into the checkout page and the widget defaults.
type Checkout struct {
	ClientKey      string        `validate:"required"`
	Locale         string        `validate:"required"`
	Environment    string        `validate:"required,oneof=test live live-us live-au live-apse live-in"`
	AmountValue    int64         `validate:"gte=0"`
	AmountCurrency string        `validate:"required,len=3,uppercase"`
	CardName       string        `validate:"required"`
	RequestTimeout time.Duration `validate:"gte=0"`
	ReadyTimeout   time.Duration `validate:"gte=0"`
	SDKScriptURL   string        `validate:"required,url"`
	SDKStyleURL    string        `validate:"required,url"`
	PaymentTypes   []string      `validate:"min=1,dive,required"`
}

// Obs groups logging, metrics and tracing switches.
type Obs struct {
	LogFormat        string
	LogLevel         string
	MetricsEnabled   bool
	MetricsNamespace string
	MetricsBuckets   string
	TracingEnabled   bool
	TracingExporter  string
	OTLPEndpoint     string
	SamplingRatio    float64 `validate:"gte=0,lte=1"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

const (
	defaultSDKBase      = "https://checkoutshopper-test.adyen.com/checkoutshopper/sdk/5.68.0/"
	defaultPaymentTypes = "dropin,card,ideal,klarna,sepadirectdebit"
)

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:     valueOrDefault(k.String("APP_ENV"), "development"),
		Port:       valueOrDefault(k.String("PORT"), "8080"),
		BackendURL: strings.TrimRight(strings.TrimSpace(k.String("BACKEND_URL")), "/"),
		AssetsDir:  valueOrDefault(k.String("ASSETS_DIR"), "web/assets"),
		Checkout: Checkout{
			ClientKey:      strings.TrimSpace(k.String("CHECKOUT_CLIENT_KEY")),
			Locale:         valueOrDefault(k.String("CHECKOUT_LOCALE"), "en_US"),
			Environment:    valueOrDefault(k.String("CHECKOUT_ENVIRONMENT"), "test"),
			AmountValue:    parseInt(k.String("CHECKOUT_AMOUNT_VALUE"), 9999),
			AmountCurrency: strings.ToUpper(valueOrDefault(k.String("CHECKOUT_AMOUNT_CURRENCY"), "EUR")),
			CardName:       valueOrDefault(k.String("CHECKOUT_CARD_NAME"), "Credit or debit card"),
			RequestTimeout: parseDuration(k.String("CHECKOUT_REQUEST_TIMEOUT"), "0s"),
			ReadyTimeout:   parseDuration(k.String("BACKEND_READY_TIMEOUT"), "500ms"),
			SDKScriptURL:   valueOrDefault(k.String("CHECKOUT_SDK_SCRIPT_URL"), defaultSDKBase+"adyen.js"),
			SDKStyleURL:    valueOrDefault(k.String("CHECKOUT_SDK_STYLE_URL"), defaultSDKBase+"adyen.css"),
			PaymentTypes:   parseList(valueOrDefault(k.String("CHECKOUT_PAYMENT_TYPES"), defaultPaymentTypes)),
		},
		Obs: Obs{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsEnabled:   parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "checkout"),
			MetricsBuckets:   k.String("OBS_METRICS_BUCKETS_MS"),
			TracingEnabled:   parseBool(k.String("OBS_ENABLE_TRACING"), false),
			TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			SamplingRatio:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
		},
	}

	if err := validate.Struct(cfg); err != nil {
		return nil, describe(err)
	}
	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

var envNames = map[string]string{
	"Config.AppEnv":                  "APP_ENV",
	"Config.Port":                    "PORT",
	"Config.BackendURL":              "BACKEND_URL",
	"Config.Checkout.ClientKey":      "CHECKOUT_CLIENT_KEY",
	"Config.Checkout.Locale":         "CHECKOUT_LOCALE",
	"Config.Checkout.Environment":    "CHECKOUT_ENVIRONMENT",
	"Config.Checkout.AmountValue":    "CHECKOUT_AMOUNT_VALUE",
	"Config.Checkout.AmountCurrency": "CHECKOUT_AMOUNT_CURRENCY",
	"Config.Checkout.CardName":       "CHECKOUT_CARD_NAME",
	"Config.Checkout.RequestTimeout": "CHECKOUT_REQUEST_TIMEOUT",
	"Config.Checkout.ReadyTimeout":   "BACKEND_READY_TIMEOUT",
	"Config.Checkout.SDKScriptURL":   "CHECKOUT_SDK_SCRIPT_URL",
	"Config.Checkout.SDKStyleURL":    "CHECKOUT_SDK_STYLE_URL",
	"Config.Checkout.PaymentTypes":   "CHECKOUT_PAYMENT_TYPES",
	"Config.Obs.SamplingRatio":       "OBS_TRACING_SAMPLING_RATIO",
}

// describe turns validator output into messages naming the environment variables.
func describe(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := envNames[fe.Namespace()]
		if name == "" && strings.HasPrefix(fe.Namespace(), "Config.Checkout.PaymentTypes[") {
			name = "CHECKOUT_PAYMENT_TYPES"
		}
		if name == "" {
			name = fe.Namespace()
		}
		if fe.Tag() == "required" {
			msgs = append(msgs, name+" is required")
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s fails %q validation", name, fe.Tag()))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func valueOrDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

// parseList splits a comma-separated list, dropping blanks and duplicates.
func parseList(csv string) []string {
	items := lo.Map(strings.Split(csv, ","), func(item string, _ int) string {
		return strings.TrimSpace(item)
	})
	return lo.Uniq(lo.Compact(items))
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int64) int64 {
	parsed, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]*string, len(env))
	for key := range env {
		if prev, ok := os.LookupEnv(key); ok {
			original[key] = &prev
		} else {
			original[key] = nil
		}
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]*string) error {
	var errs []string
	for key, value := range values {
		var err error
		if value == nil {
			err = os.Unsetenv(key)
		} else {
			err = os.Setenv(key, *value)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
