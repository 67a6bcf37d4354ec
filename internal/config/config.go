/**
 * @description
 * This file handles configuration management for the Perch backend. It loads
 * settings from environment variables or a local .env file via Viper,
 * providing sensible defaults for everything except the secrets and the
 * database connection string.
 *
 * @dependencies
 * - github.com/spf13/viper: Configuration library for reading env vars and files.
 */
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config stores all configuration for the application.
// Values are read by Viper from a .env file or environment variables.
type Config struct {
	ServerPort  string `mapstructure:"SERVER_PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	RedisURL    string `mapstructure:"REDIS_URL"`
	RabbitMQURL string `mapstructure:"RABBITMQ_URL"`

	JWTSecret          string `mapstructure:"JWT_SECRET"`
	PINTokenSecret     string `mapstructure:"PIN_TOKEN_SECRET"`
	PINTokenTTLSeconds int    `mapstructure:"PIN_TOKEN_TTL_SECONDS"`
	EncryptionKey      string `mapstructure:"ENCRYPTION_KEY"`

	BankVerifierBaseURL string `mapstructure:"BANK_VERIFIER_BASE_URL"`
	BankVerifierAPIKey  string `mapstructure:"BANK_VERIFIER_API_KEY"`

	ExpressFeePercent         float64 `mapstructure:"EXPRESS_FEE_PERCENT"`
	RepaymentTermDays         int     `mapstructure:"REPAYMENT_TERM_DAYS"`
	StandardFundingDelayHours int     `mapstructure:"STANDARD_FUNDING_DELAY_HOURS"`
	AdvanceRequestsPerHour    int     `mapstructure:"ADVANCE_REQUESTS_PER_HOUR"`

	PINMaxAttempts      int `mapstructure:"PIN_MAX_ATTEMPTS"`
	PINLockoutMinutes   int `mapstructure:"PIN_LOCKOUT_MINUTES"`
	PINThresholdDollars int `mapstructure:"PIN_THRESHOLD_DOLLARS"`

	FundingJobSchedule string `mapstructure:"FUNDING_JOB_SCHEDULE"`
	OverdueJobSchedule string `mapstructure:"OVERDUE_JOB_SCHEDULE"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (Config, error) {
	viper.AddConfigPath(".")
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("PIN_TOKEN_TTL_SECONDS", 120)
	viper.SetDefault("EXPRESS_FEE_PERCENT", 5.0)
	viper.SetDefault("REPAYMENT_TERM_DAYS", 14)
	viper.SetDefault("STANDARD_FUNDING_DELAY_HOURS", 72)
	viper.SetDefault("ADVANCE_REQUESTS_PER_HOUR", 5)
	viper.SetDefault("PIN_MAX_ATTEMPTS", 5)
	viper.SetDefault("PIN_LOCKOUT_MINUTES", 15)
	viper.SetDefault("PIN_THRESHOLD_DOLLARS", 100)
	viper.SetDefault("FUNDING_JOB_SCHEDULE", "*/10 * * * *") // Every 10 minutes.
	viper.SetDefault("OVERDUE_JOB_SCHEDULE", "0 3 * * *")    // At 03:00 daily.

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Bind environment variables explicitly to ensure they appear in Unmarshal.
	for _, key := range []string{
		"SERVER_PORT", "DATABASE_URL", "REDIS_URL", "RABBITMQ_URL",
		"JWT_SECRET", "PIN_TOKEN_SECRET", "PIN_TOKEN_TTL_SECONDS", "ENCRYPTION_KEY",
		"BANK_VERIFIER_BASE_URL", "BANK_VERIFIER_API_KEY",
		"EXPRESS_FEE_PERCENT", "REPAYMENT_TERM_DAYS", "STANDARD_FUNDING_DELAY_HOURS",
		"ADVANCE_REQUESTS_PER_HOUR", "PIN_MAX_ATTEMPTS", "PIN_LOCKOUT_MINUTES",
		"PIN_THRESHOLD_DOLLARS", "FUNDING_JOB_SCHEDULE", "OVERDUE_JOB_SCHEDULE",
	} {
		_ = viper.BindEnv(key)
	}

	// Read the config file if it exists.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("unable to decode config: %w", err)
	}

	if config.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}
	if config.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if config.PINTokenSecret == "" {
		config.PINTokenSecret = config.JWTSecret
	}

	return config, nil
}
