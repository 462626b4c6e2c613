package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Load reads .env.{ENVIRONMENT} for local runs. Production settings come from
// the host environment only and already-set variables are never overridden.
func Load() error {
	env := strings.TrimSpace(os.Getenv("ENVIRONMENT"))
	if env == "" || env == "production" {
		return nil
	}
	file := ".env." + env
	if _, err := os.Stat(file); err != nil {
		log.Debugf("no %s file, using process environment", file)
		return nil
	}
	if err := godotenv.Load(file); err != nil {
		return fmt.Errorf("load %s: %w", file, err)
	}
	return nil
}

// String returns the trimmed value of key or fallback when unset or blank.
func String(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return fallback
}

// Require returns the value of every key or an error naming the missing ones.
func Require(keys ...string) (map[string]string, error) {
	out := make(map[string]string, len(keys))
	var missing []string
	for _, k := range keys {
		v := String(k, "")
		if v == "" {
			missing = append(missing, k)
			continue
		}
		out[k] = v
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing config: %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// Int parses key as a positive integer.
func Int(key string, fallback int) (int, error) {
	raw := String(key, "")
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be greater than zero", key)
	}
	return n, nil
}

// Duration parses key with time.ParseDuration. Zero and negative values are
// rejected.
func Duration(key string, fallback time.Duration) (time.Duration, error) {
	raw := String(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}

// Bool reports whether key parses as true. Unparseable values are false.
func Bool(key string) bool {
	v, err := strconv.ParseBool(String(key, ""))
	return err == nil && v
}
