package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMoodleNotConfigured is returned by Validate when the Moodle endpoint
// or token is missing. Callers may still boot the service without a Moodle
// connection, but every sync pipeline will refuse to run.
var ErrMoodleNotConfigured = fmt.Errorf("moodle url and token must be provided")

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName           string `validate:"required"`
	AppEnv            string `validate:"required"`
	AppPort           string `validate:"required"`
	DatabaseURL       string
	RedisURL          string
	NATSURL           string
	JWTSecret         string `validate:"required"`
	MoodleURL         string `validate:"omitempty,url"`
	MoodleToken       string
	MoodleTimeout     time.Duration `validate:"gt=0"`
	MoodleBulkTimeout time.Duration `validate:"gt=0"`
	SyncLockTTL       time.Duration `validate:"gt=0"`
	TeacherRoleIDs    []int64       `validate:"min=1"`
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// MoodleConfigured reports whether a Moodle endpoint and token are present.
func (c Config) MoodleConfigured() bool {
	return c.MoodleURL != "" && c.MoodleToken != ""
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("MOODLESYNC")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Moodle Sync API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("moodle.timeout", "15s")
	v.SetDefault("moodle.bulk_timeout", "60s")
	v.SetDefault("sync.lock_ttl", "30m")
	v.SetDefault("moodle.teacher_role_ids", "3,4")

	timeout, err := time.ParseDuration(v.GetString("moodle.timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid moodle timeout: %w", err)
	}

	bulkTimeout, err := time.ParseDuration(v.GetString("moodle.bulk_timeout"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid moodle bulk timeout: %w", err)
	}

	lockTTL, err := time.ParseDuration(v.GetString("sync.lock_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid sync lock ttl: %w", err)
	}

	roleIDs, err := parseRoleIDs(v.GetString("moodle.teacher_role_ids"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid teacher role ids: %w", err)
	}

	cfg := Config{
		AppName:           v.GetString("app.name"),
		AppEnv:            v.GetString("app.env"),
		AppPort:           v.GetString("app.port"),
		DatabaseURL:       v.GetString("database.url"),
		RedisURL:          v.GetString("redis.url"),
		NATSURL:           v.GetString("nats.url"),
		JWTSecret:         v.GetString("jwt.secret"),
		MoodleURL:         v.GetString("moodle.url"),
		MoodleToken:       v.GetString("moodle.token"),
		MoodleTimeout:     timeout,
		MoodleBulkTimeout: bulkTimeout,
		SyncLockTTL:       lockTTL,
		TeacherRoleIDs:    roleIDs,
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func parseRoleIDs(raw string) ([]int64, error) {
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse role id %q: %w", part, err)
		}

		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return nil, fmt.Errorf("at least one role id is required")
	}

	return ids, nil
}
