package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/viper"
)

type Config struct {
	Port                   string
	AllowedOrigin          string
	DatabaseURL            string
	RedisAddr              string
	RedisPassword          string
	RedisDB                int
	ProfileCacheTTLSeconds int
	AuthSecret             string
	AccessTokenTTLMinutes  int
	Timezone               string
	LogMode                string
	LogFile                string
	StockAuditSchedule     string
	MediaUploadURL         string
	MediaUploadPreset      string
	MediaTimeoutSeconds    int
}

// Load reads the process environment, optionally layered over the dotenv or
// yaml file named by CONFIG_FILE. Environment variables win.
func Load() (Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "8080")
	v.SetDefault("ALLOWED_ORIGIN", "http://127.0.0.1:3000")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("PROFILE_CACHE_TTL_SECONDS", 300)
	v.SetDefault("ACCESS_TOKEN_TTL_MINUTES", 480)
	v.SetDefault("APP_TIMEZONE", "America/Sao_Paulo")
	v.SetDefault("LOG_MODE", "production")
	v.SetDefault("STOCK_AUDIT_SCHEDULE", "@every 1h")
	v.SetDefault("MEDIA_TIMEOUT_SECONDS", 15)

	if file := strings.TrimSpace(v.GetString("CONFIG_FILE")); file != "" {
		v.SetConfigFile(file)
		if strings.HasSuffix(file, ".env") {
			v.SetConfigType("env")
		}
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file %s: %w", file, err)
		}
	}

	cfg := Config{
		Port:                   v.GetString("PORT"),
		AllowedOrigin:          v.GetString("ALLOWED_ORIGIN"),
		DatabaseURL:            strings.TrimSpace(v.GetString("DATABASE_URL")),
		RedisAddr:              strings.TrimSpace(v.GetString("REDIS_ADDR")),
		RedisPassword:          v.GetString("REDIS_PASSWORD"),
		RedisDB:                v.GetInt("REDIS_DB"),
		ProfileCacheTTLSeconds: positiveOr(v.GetInt("PROFILE_CACHE_TTL_SECONDS"), 300),
		AuthSecret:             strings.TrimSpace(v.GetString("AUTH_SECRET")),
		AccessTokenTTLMinutes:  positiveOr(v.GetInt("ACCESS_TOKEN_TTL_MINUTES"), 480),
		Timezone:               strings.TrimSpace(v.GetString("APP_TIMEZONE")),
		LogMode:                strings.ToLower(strings.TrimSpace(v.GetString("LOG_MODE"))),
		LogFile:                strings.TrimSpace(v.GetString("LOG_FILE")),
		StockAuditSchedule:     strings.TrimSpace(v.GetString("STOCK_AUDIT_SCHEDULE")),
		MediaUploadURL:         strings.TrimSpace(v.GetString("MEDIA_UPLOAD_URL")),
		MediaUploadPreset:      strings.TrimSpace(v.GetString("MEDIA_UPLOAD_PRESET")),
		MediaTimeoutSeconds:    positiveOr(v.GetInt("MEDIA_TIMEOUT_SECONDS"), 15),
	}

	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

// Location resolves Timezone, falling back to UTC when it is unknown.
func (c Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func (c Config) ProfileCacheTTL() time.Duration {
	return time.Duration(c.ProfileCacheTTLSeconds) * time.Second
}

func (c Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func positiveOr(val int, fallback int) int {
	if val < 1 {
		return fallback
	}
	return val
}
