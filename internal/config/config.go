/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the validation-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort              string `mapstructure:"SERVER_PORT"`
	DatabaseURL             string `mapstructure:"DATABASE_URL"`
	RedisURL                string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix    string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL             string `mapstructure:"RABBITMQ_URL"`
	MovementEventExchange   string `mapstructure:"MOVEMENT_EVENT_EXCHANGE"`
	AuthJWTSecret           string `mapstructure:"AUTH_JWT_SECRET"`
	BatchRateLimitPerMinute int    `mapstructure:"BATCH_RATE_LIMIT_PER_MINUTE"`
	RejectionMovements      bool   `mapstructure:"REJECTION_MOVEMENTS_ENABLED"`
	CodeRetryAttempts       int    `mapstructure:"CODE_RETRY_ATTEMPTS"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("MOVEMENT_EVENT_EXCHANGE", "validation_service.movements")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "gestionqp:rate_limit")
	viper.SetDefault("BATCH_RATE_LIMIT_PER_MINUTE", 30)
	viper.SetDefault("REJECTION_MOVEMENTS_ENABLED", false)
	viper.SetDefault("CODE_RETRY_ATTEMPTS", 3)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "VALIDATION_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("MOVEMENT_EVENT_EXCHANGE")
	_ = viper.BindEnv("AUTH_JWT_SECRET")
	_ = viper.BindEnv("BATCH_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("REJECTION_MOVEMENTS_ENABLED")
	_ = viper.BindEnv("CODE_RETRY_ATTEMPTS")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "gestionqp:rate_limit"
	}
	config.AuthJWTSecret = strings.TrimSpace(config.AuthJWTSecret)

	if config.BatchRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative batch rate limit configured; coercing to zero\" limit=%d", config.BatchRateLimitPerMinute)
		config.BatchRateLimitPerMinute = 0
	}
	if config.CodeRetryAttempts <= 0 {
		config.CodeRetryAttempts = 3
	}

	return
}
