package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile          = ".env"
	defaultPort             = "8080"
	defaultReadTimeout      = 15 * time.Second
	defaultWriteTimeout     = 30 * time.Second
	defaultIdleTimeout      = 120 * time.Second
	defaultShutdownTimeout  = 20 * time.Second
	defaultShippingInside   = 80
	defaultShippingOutside  = 150
	defaultCommitRetries    = 1
	defaultOrderEventsTopic = "order-events"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server    ServerConfig
	Firestore FirestoreConfig
	PubSub    PubSubConfig
	Shipping  ShippingConfig
	Checkout  CheckoutConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// PubSubConfig names the topic committed-order and stock events are published to.
type PubSubConfig struct {
	ProjectID        string
	OrderEventsTopic string
	Disabled         bool
}

// ShippingConfig is the flat delivery fee table keyed by zone. The fee table
// is configuration, not logic; deployments swap values without code changes.
type ShippingConfig struct {
	InsideFee  int64
	OutsideFee int64
}

// CheckoutConfig tunes the order commit path.
type CheckoutConfig struct {
	// CommitRetries is how many times a failed order insert is retried
	// before the reservation is rolled back and the failure surfaces.
	CommitRetries int
}

// ValidationError reports configuration fields that failed validation.
type ValidationError struct {
	fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: invalid fields: %s", strings.Join(e.fields, ", "))
}

// Fields returns the invalid field names.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises configuration loading.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile    string
	envMap     map[string]string
	skipSysEnv bool
}

// WithEnvFile overrides the dotenv path consulted before system environment.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap supplies explicit values taking precedence over everything else.
// Intended for tests.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv ignores the process environment entirely.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.skipSysEnv = true
	}
}

// Load assembles the configuration from (highest precedence first) explicit
// maps, the process environment, and an optional .env file.
func Load(opts ...Option) (Config, error) {
	options := loaderOptions{envFile: defaultEnvFile}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	fileValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if v, ok := options.envMap[key]; ok {
				return v, true
			}
		}
		if !options.skipSysEnv {
			if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
				return v, true
			}
		}
		if v, ok := fileValues[key]; ok {
			return v, true
		}
		return "", false
	}

	cfg := Config{
		Server: ServerConfig{
			Port:            stringWithDefault(lookup, "PORT", defaultPort),
			ReadTimeout:     durationWithDefault(lookup, "HTTP_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:    durationWithDefault(lookup, "HTTP_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:     durationWithDefault(lookup, "HTTP_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout: durationWithDefault(lookup, "HTTP_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "FIRESTORE_PROJECT_ID", stringWithDefault(lookup, "GOOGLE_CLOUD_PROJECT", "")),
			EmulatorHost: stringWithDefault(lookup, "FIRESTORE_EMULATOR_HOST", ""),
		},
		PubSub: PubSubConfig{
			ProjectID:        stringWithDefault(lookup, "PUBSUB_PROJECT_ID", stringWithDefault(lookup, "GOOGLE_CLOUD_PROJECT", "")),
			OrderEventsTopic: stringWithDefault(lookup, "ORDER_EVENTS_TOPIC", defaultOrderEventsTopic),
			Disabled:         boolWithDefault(lookup, "ORDER_EVENTS_DISABLED", false),
		},
		Shipping: ShippingConfig{
			InsideFee:  int64WithDefault(lookup, "SHIPPING_FEE_INSIDE", defaultShippingInside),
			OutsideFee: int64WithDefault(lookup, "SHIPPING_FEE_OUTSIDE", defaultShippingOutside),
		},
		Checkout: CheckoutConfig{
			CommitRetries: intWithDefault(lookup, "CHECKOUT_COMMIT_RETRIES", defaultCommitRetries),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validateConfig(cfg Config) error {
	var invalid []string
	if strings.TrimSpace(cfg.Server.Port) == "" {
		invalid = append(invalid, "PORT")
	}
	if cfg.Shipping.InsideFee < 0 {
		invalid = append(invalid, "SHIPPING_FEE_INSIDE")
	}
	if cfg.Shipping.OutsideFee < 0 {
		invalid = append(invalid, "SHIPPING_FEE_OUTSIDE")
	}
	if cfg.Checkout.CommitRetries < 0 {
		invalid = append(invalid, "CHECKOUT_COMMIT_RETRIES")
	}
	if len(invalid) == 0 {
		return nil
	}
	sort.Strings(invalid)
	return &ValidationError{fields: invalid}
}

// FeeFor resolves the flat shipping fee for a zone name, reporting whether
// the zone is known.
func (s ShippingConfig) FeeFor(method string) (int64, bool) {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "inside":
		return s.InsideFee, true
	case "outside":
		return s.OutsideFee, true
	}
	return 0, false
}

func loadDotEnv(path string) (map[string]string, error) {
	values := make(map[string]string)
	if strings.TrimSpace(path) == "" {
		return values, nil
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return values, nil
		}
		return nil, fmt.Errorf("config: open env file %s: %w", path, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		if key != "" {
			values[key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: read env file %s: %w", path, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if v, ok := lookup(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if v, ok := lookup(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return fallback
}

func int64WithDefault(lookup func(string) (string, bool), key string, fallback int64) int64 {
	if v, ok := lookup(key); ok {
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if v, ok := lookup(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return fallback
}
