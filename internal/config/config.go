package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port                  string
	AppEnv                string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	AuthSecret            string
	AccessTokenTTLMinutes int
	LogLevel              string
	LogFormat             string

	FXAPIKey          string
	FXBaseURL         string
	FXCacheTTLMinutes int
	FXFetchRetries    int

	ReportMonths       int
	AllowNegativeStock bool

	StorageEndpoint       string
	StorageRegion         string
	StorageBucket         string
	StorageAccessKey      string
	StorageSecretKey      string
	StorageUsePathStyle   bool
	StoragePresignMinutes int
}

var defaults = map[string]any{
	"port":                     "8080",
	"app_env":                  "development",
	"allowed_origin":           "http://127.0.0.1:3000",
	"redis_db":                 0,
	"access_token_ttl_minutes": 480,
	"log_level":                "info",
	"log_format":               "",
	"fx_base_url":              "https://v6.exchangerate-api.com/v6",
	"fx_cache_ttl_minutes":     60,
	"fx_fetch_retries":         3,
	"report_months":            6,
	"allow_negative_stock":     true,
	"storage_region":           "us-east-1",
	"storage_use_path_style":   true,
	"storage_presign_minutes":  15,
}

// Load reads configuration from the process environment. Invalid or
// non-positive numbers fall back to their defaults.
func Load() Config {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for _, key := range []string{
		"database_url", "redis_addr", "redis_password", "auth_secret", "fx_api_key",
		"storage_endpoint", "storage_bucket", "storage_access_key", "storage_secret_key",
	} {
		_ = v.BindEnv(key)
	}

	cfg := Config{
		Port:                  v.GetString("port"),
		AppEnv:                strings.ToLower(v.GetString("app_env")),
		AllowedOrigin:         v.GetString("allowed_origin"),
		DatabaseURL:           v.GetString("database_url"),
		RedisAddr:             v.GetString("redis_addr"),
		RedisPassword:         v.GetString("redis_password"),
		RedisDB:               nonNegative(v, "redis_db"),
		AuthSecret:            strings.TrimSpace(v.GetString("auth_secret")),
		AccessTokenTTLMinutes: positive(v, "access_token_ttl_minutes"),
		LogLevel:              v.GetString("log_level"),
		LogFormat:             v.GetString("log_format"),
		FXAPIKey:              strings.TrimSpace(v.GetString("fx_api_key")),
		FXBaseURL:             strings.TrimRight(v.GetString("fx_base_url"), "/"),
		FXCacheTTLMinutes:     positive(v, "fx_cache_ttl_minutes"),
		FXFetchRetries:        positive(v, "fx_fetch_retries"),
		ReportMonths:          positive(v, "report_months"),
		AllowNegativeStock:    boolOr(v, "allow_negative_stock"),
		StorageEndpoint:       v.GetString("storage_endpoint"),
		StorageRegion:         v.GetString("storage_region"),
		StorageBucket:         v.GetString("storage_bucket"),
		StorageAccessKey:      v.GetString("storage_access_key"),
		StorageSecretKey:      v.GetString("storage_secret_key"),
		StorageUsePathStyle:   boolOr(v, "storage_use_path_style"),
		StoragePresignMinutes: positive(v, "storage_presign_minutes"),
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "console"
		if cfg.AppEnv == "production" {
			cfg.LogFormat = "json"
		}
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c Config) FXCacheTTL() time.Duration {
	return time.Duration(c.FXCacheTTLMinutes) * time.Minute
}

func (c Config) PresignTTL() time.Duration {
	return time.Duration(c.StoragePresignMinutes) * time.Minute
}

func (c Config) StorageEnabled() bool {
	return c.StorageBucket != ""
}

// positive returns the key as an int, or its default when the raw value does
// not parse or is below 1.
func positive(v *viper.Viper, key string) int {
	n, err := parseInt(v, key)
	if err != nil || n < 1 {
		return defaults[key].(int)
	}
	return n
}

func nonNegative(v *viper.Viper, key string) int {
	n, err := parseInt(v, key)
	if err != nil || n < 0 {
		return defaults[key].(int)
	}
	return n
}

func parseInt(v *viper.Viper, key string) (int, error) {
	var n int
	_, err := fmt.Sscanf(strings.TrimSpace(v.GetString(key)), "%d", &n)
	return n, err
}

func boolOr(v *viper.Viper, key string) bool {
	switch strings.ToLower(strings.TrimSpace(v.GetString(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return defaults[key].(bool)
	}
}
