package seed

import (
	"fmt"
	"strconv"
	"strings"
)

type LookupFunc func(string) (string, bool)

type Config struct {
	Seed      int64
	Advisors  int
	Clients   int
	Products  int
	Content   int
	Overwrite bool
}

func DefaultConfig() Config {
	return Config{
		Seed:      7,
		Advisors:  5,
		Clients:   40,
		Products:  20,
		Content:   30,
		Overwrite: false,
	}
}

func LoadConfigFromEnv(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	cfg := DefaultConfig()
	if err := applyInt64(lookup, "GENBI_SEED_RANDOM_SEED", &cfg.Seed); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "GENBI_SEED_ADVISORS", &cfg.Advisors); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "GENBI_SEED_CLIENTS", &cfg.Clients); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "GENBI_SEED_PRODUCTS", &cfg.Products); err != nil {
		return Config{}, err
	}
	if err := applyInt(lookup, "GENBI_SEED_CONTENT", &cfg.Content); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "GENBI_SEED_OVERWRITE", &cfg.Overwrite); err != nil {
		return Config{}, err
	}

	if cfg.Advisors <= 0 {
		return Config{}, fmt.Errorf("GENBI_SEED_ADVISORS must be > 0")
	}
	if cfg.Clients <= 0 {
		return Config{}, fmt.Errorf("GENBI_SEED_CLIENTS must be > 0")
	}
	if cfg.Products < 2 {
		return Config{}, fmt.Errorf("GENBI_SEED_PRODUCTS must be >= 2")
	}
	if cfg.Content < 0 {
		return Config{}, fmt.Errorf("GENBI_SEED_CONTENT must be >= 0")
	}
	return cfg, nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt(lookup LookupFunc, key string, dst *int) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}

func applyInt64(lookup LookupFunc, key string, dst *int64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = v
	return nil
}
