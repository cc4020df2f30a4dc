// Package cmdutil provides shared utilities for CLI command implementations.
package cmdutil

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// GetStringConfig returns the config value for key, or flagValue if the key is not set.
// A flag bound with viper.BindPFlag counts as set only when given on the command line.
func GetStringConfig(key, flagValue string) string {
	if viper.IsSet(key) {
		return viper.GetString(key)
	}
	return flagValue
}

// GetIntConfig returns the config value for key, or flagValue if the key is not set.
func GetIntConfig(key string, flagValue int) int {
	if viper.IsSet(key) {
		return viper.GetInt(key)
	}
	return flagValue
}

// GetInt64Config returns the config value for key, or flagValue if the key is not set.
func GetInt64Config(key string, flagValue int64) int64 {
	if viper.IsSet(key) {
		return viper.GetInt64(key)
	}
	return flagValue
}

// GetBoolConfig returns the config value for key, or flagValue if the key is not set.
func GetBoolConfig(key string, flagValue bool) bool {
	if viper.IsSet(key) {
		return viper.GetBool(key)
	}
	return flagValue
}

// GetDurationConfig returns the config value for key, or flagValue if the key
// is not set. Plain integers are read as seconds.
func GetDurationConfig(key string, flagValue time.Duration) time.Duration {
	if viper.IsSet(key) {
		return viper.GetDuration(key)
	}
	return flagValue
}

// GetSizeConfig reads key as a size string such as "8K"
func GetSizeConfig(key, flagValue string) (int64, error) {
	s := GetStringConfig(key, flagValue)
	n, err := ParseSizeString(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// ParseSizeString parses a size string (e.g., "100M", "1G", "500K") and returns bytes.
// Supported suffixes: K/k (KiB), M/m (MiB), G/g (GiB), T/t (TiB).
func ParseSizeString(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}

	lastChar := s[len(s)-1]
	var multiplier int64 = 1

	switch lastChar {
	case 'K', 'k':
		multiplier = 1024
		s = s[:len(s)-1]
	case 'M', 'm':
		multiplier = 1024 * 1024
		s = s[:len(s)-1]
	case 'G', 'g':
		multiplier = 1024 * 1024 * 1024
		s = s[:len(s)-1]
	case 'T', 't':
		multiplier = 1024 * 1024 * 1024 * 1024
		s = s[:len(s)-1]
	}

	var value int64
	var rest string
	n, _ := fmt.Sscanf(s, "%d%s", &value, &rest)
	if n < 1 || rest != "" {
		return 0, fmt.Errorf("invalid size value %q", s)
	}
	if value < 0 {
		return 0, fmt.Errorf("negative size %q", s)
	}

	return value * multiplier, nil
}
