// Package config loads application settings for the algfetch command from a
// TOML file. Library users configure algfetch.Options directly instead.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
)

// Settings is the root of the TOML document.
type Settings struct {
	// Namespace prefixes resolution cache keys.
	Namespace string `toml:"namespace" validate:"required,max=64"`
	// DefaultProperties is merged under every fetch query.
	DefaultProperties string `toml:"default_properties"`
	// Serialize waits for one construction per query instead of racing.
	Serialize bool `toml:"serialize"`
	// Legacy enables the standard-library fallback for digests and ciphers.
	Legacy bool `toml:"legacy"`

	Providers  []ProviderSettings `toml:"providers" validate:"dive"`
	Log        LogSettings        `toml:"log"`
	Resolution ResolutionSettings `toml:"resolution"`
}

// ProviderSettings registers one instance of the built-in provider. Order in
// the file is search order.
type ProviderSettings struct {
	Name       string `toml:"name" validate:"required"`
	Properties string `toml:"properties"`
}

// LogSettings selects the logger backend and optional rotating file output.
type LogSettings struct {
	Format string `toml:"format" validate:"oneof=slog zap logrus"`
	Level  string `toml:"level" validate:"oneof=debug info warn error"`
	// File, when set, receives logs instead of stderr.
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `toml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `toml:"max_age_days" validate:"gte=0"`
}

// ResolutionSettings configures the resolution cache.
type ResolutionSettings struct {
	Store    string   `toml:"store" validate:"oneof=none ristretto bigcache redis"`
	Codec    string   `toml:"codec" validate:"oneof=json cbor msgpack protobuf"`
	GenStore string   `toml:"genstore" validate:"oneof=local redis"`
	TTL      Duration `toml:"ttl"`
	// DecodeLimit caps the size of a stored record; 0 disables the check.
	DecodeLimit int         `toml:"decode_limit" validate:"gte=0"`
	Redis       RedisConfig `toml:"redis"`
}

// RedisConfig is shared by the redis store and the redis generation store.
type RedisConfig struct {
	Addr     string `toml:"addr" validate:"omitempty,hostname_port"`
	Password string `toml:"password"`
	DB       int    `toml:"db" validate:"gte=0"`
}

// Duration decodes TOML strings such as "90s" or "1h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", b, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) { return []byte(d.String()), nil }

// Default returns settings for a single built-in provider with an in-process
// resolution cache.
func Default() *Settings {
	return &Settings{
		Namespace: "algfetch",
		Legacy:    true,
		Providers: []ProviderSettings{{Name: "default", Properties: "provider=default,fips=no"}},
		Log: LogSettings{
			Format:     "slog",
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Resolution: ResolutionSettings{
			Store:       "ristretto",
			Codec:       "cbor",
			GenStore:    "local",
			TTL:         Duration{time.Hour},
			DecodeLimit: 4 << 10,
			Redis:       RedisConfig{Addr: "localhost:6379"},
		},
	}
}

// Load decodes path over Default and validates the result. Keys absent from
// the file keep their default; a [[providers]] list replaces the default one.
func Load(path string) (*Settings, error) {
	s := Default()
	// decoding into a non-empty slice would merge into existing elements
	s.Providers = nil
	md, err := toml.DecodeFile(path, s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode TOML file: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}
	if len(s.Providers) == 0 {
		s.Providers = Default().Providers
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks field constraints and cross-field rules.
func (s *Settings) Validate() error {
	validate := validator.New()

	err := validate.Struct(s)
	if err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			var messages []string
			for _, fieldErr := range validationErrors {
				messages = append(messages, fmt.Sprintf("Field: %s, Tag: %s", fieldErr.Namespace(), fieldErr.Tag()))
			}
			return fmt.Errorf("validation failed: %v", messages)
		}
		return fmt.Errorf("validation error: %w", err)
	}

	seen := make(map[string]bool, len(s.Providers))
	for _, p := range s.Providers {
		if seen[p.Name] {
			return fmt.Errorf("validation failed: duplicate provider %q", p.Name)
		}
		seen[p.Name] = true
	}
	r := s.Resolution
	if (r.Store == "redis" || r.GenStore == "redis") && r.Redis.Addr == "" {
		return errors.New("validation failed: resolution.redis.addr is required for redis")
	}
	if r.TTL.Duration < 0 {
		return errors.New("validation failed: resolution.ttl must not be negative")
	}
	return nil
}
