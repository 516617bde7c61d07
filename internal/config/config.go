/**
 * @description
 * This package handles the configuration management for the contribution-service. It uses
 * Viper to read configuration from environment variables and an optional `.env` file.
 *
 * @dependencies
 * - github.com/spf13/viper: Configuration loading and environment binding.
 */

package config

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	PiggyWalletModeTracking = "tracking"
	PiggyWalletModeTransfer = "transfer"
)

// Config holds all the configuration variables for the contribution-service.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`
	GatewayEventQueue    string `mapstructure:"GATEWAY_EVENT_QUEUE"`
	ClerkJWKSURL         string `mapstructure:"CLERK_JWKS_URL"`
	InternalAPIKey       string `mapstructure:"INTERNAL_API_KEY"`
	CORSAllowedOrigins   string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	PaystackBaseURL     string `mapstructure:"PAYSTACK_BASE_URL"`
	PaystackSecretKey   string `mapstructure:"PAYSTACK_SECRET_KEY"`
	PaystackCallbackURL string `mapstructure:"PAYSTACK_CALLBACK_URL"`

	BusinessTimezone        string `mapstructure:"BUSINESS_TIMEZONE"`
	ClassifyFeeDays         int    `mapstructure:"CLASSIFY_FEE_DAYS"`
	ClassifyICADays         int    `mapstructure:"CLASSIFY_ICA_DAYS"`
	OverrideAppliesToFeeDay bool   `mapstructure:"OVERRIDE_APPLIES_TO_FEE_DAY"`
	PiggyWalletMode         string `mapstructure:"PIGGY_WALLET_MODE"`

	ContentionMaxAttempts          int `mapstructure:"CONTENTION_MAX_ATTEMPTS"`
	LockTimeoutMillis              int `mapstructure:"LOCK_TIMEOUT_MS"`
	ContributionRateLimitPerMinute int `mapstructure:"CONTRIBUTION_RATE_LIMIT_PER_MINUTE"`

	InterestJobSchedule string `mapstructure:"INTEREST_JOB_SCHEDULE"`
	InterestJobRate     string `mapstructure:"INTEREST_JOB_RATE"`
}

// LockTimeout is LockTimeoutMillis as a duration.
func (c Config) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutMillis) * time.Millisecond
}

// AllowedOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c Config) AllowedOrigins() []string {
	var origins []string
	for _, origin := range strings.Split(c.CORSAllowedOrigins, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

// LoadConfig reads configuration from environment variables and an optional .env in path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "dewbox:rate_limit")
	viper.SetDefault("GATEWAY_EVENT_QUEUE", "contribution_service.gateway_confirmations")
	viper.SetDefault("PAYSTACK_BASE_URL", "https://api.paystack.co")
	viper.SetDefault("BUSINESS_TIMEZONE", "Africa/Lagos")
	viper.SetDefault("CLASSIFY_FEE_DAYS", 1)
	viper.SetDefault("CLASSIFY_ICA_DAYS", 10)
	viper.SetDefault("OVERRIDE_APPLIES_TO_FEE_DAY", false)
	viper.SetDefault("PIGGY_WALLET_MODE", PiggyWalletModeTracking)
	viper.SetDefault("CONTENTION_MAX_ATTEMPTS", 3)
	viper.SetDefault("LOCK_TIMEOUT_MS", 5000)
	viper.SetDefault("CONTRIBUTION_RATE_LIMIT_PER_MINUTE", 30)

	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("GATEWAY_EVENT_QUEUE")
	_ = viper.BindEnv("CLERK_JWKS_URL", "CLERK_JWKS_URL", "AUTH_JWKS_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "CONTRIBUTION_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")
	_ = viper.BindEnv("PAYSTACK_BASE_URL")
	_ = viper.BindEnv("PAYSTACK_SECRET_KEY")
	_ = viper.BindEnv("PAYSTACK_CALLBACK_URL")
	_ = viper.BindEnv("BUSINESS_TIMEZONE")
	_ = viper.BindEnv("CLASSIFY_FEE_DAYS")
	_ = viper.BindEnv("CLASSIFY_ICA_DAYS")
	_ = viper.BindEnv("OVERRIDE_APPLIES_TO_FEE_DAY")
	_ = viper.BindEnv("PIGGY_WALLET_MODE")
	_ = viper.BindEnv("CONTENTION_MAX_ATTEMPTS")
	_ = viper.BindEnv("LOCK_TIMEOUT_MS")
	_ = viper.BindEnv("CONTRIBUTION_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("INTEREST_JOB_SCHEDULE")
	_ = viper.BindEnv("INTEREST_JOB_RATE")

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "dewbox:rate_limit"
	}
	config.InterestJobSchedule = strings.TrimSpace(config.InterestJobSchedule)
	config.InterestJobRate = strings.TrimSpace(config.InterestJobRate)

	config.PiggyWalletMode = strings.ToLower(strings.TrimSpace(config.PiggyWalletMode))
	switch config.PiggyWalletMode {
	case PiggyWalletModeTracking, PiggyWalletModeTransfer:
	default:
		log.Printf("level=warn component=config msg=\"unknown piggy wallet mode; using tracking\" value=%q", config.PiggyWalletMode)
		config.PiggyWalletMode = PiggyWalletModeTracking
	}

	if config.ContentionMaxAttempts <= 0 {
		config.ContentionMaxAttempts = 3
	}
	if config.LockTimeoutMillis < 0 {
		config.LockTimeoutMillis = 0
	}
	if config.ContributionRateLimitPerMinute < 0 {
		config.ContributionRateLimitPerMinute = 0
	}

	if config.InterestJobSchedule != "" && config.InterestJobRate == "" {
		err = fmt.Errorf("INTEREST_JOB_RATE is required when INTEREST_JOB_SCHEDULE is set")
		return
	}

	return
}
