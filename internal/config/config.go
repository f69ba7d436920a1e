/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * The operator allow-list (ADMIN_EMAILS) is parsed once at load time into a
 * typed OperatorSet rather than re-read from the environment per request.
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

// Config holds all the configuration variables for the post-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort             string `mapstructure:"SERVER_PORT"`
	DatabaseURL            string `mapstructure:"DATABASE_URL"`
	RedisURL               string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix   string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL            string `mapstructure:"RABBITMQ_URL"`
	ClerkJWKSURL           string `mapstructure:"CLERK_JWKS_URL"`
	ClerkIssuer            string `mapstructure:"CLERK_ISSUER"`
	ClerkAudience          string `mapstructure:"CLERK_AUDIENCE"`
	AdminEmails            string `mapstructure:"ADMIN_EMAILS"`
	CORSAllowedOrigins     string `mapstructure:"CORS_ALLOWED_ORIGINS"`
	LikeRateLimitPerMinute int    `mapstructure:"LIKE_RATE_LIMIT_PER_MINUTE"`
	BuyRateLimitPerMinute  int    `mapstructure:"BUY_RATE_LIMIT_PER_MINUTE"`

	// Operators is the parsed form of AdminEmails.
	Operators OperatorSet `mapstructure:"-"`
}

// OperatorSet is the typed operator allow-list: lowercased email addresses
// plus raw identity-provider subject ids (entries without an '@').
type OperatorSet struct {
	emails   map[string]struct{}
	subjects map[string]struct{}
}

// ParseOperatorSet splits a comma/semicolon-delimited allow-list into a
// typed set. Emails are matched case-insensitively, subject ids exactly.
func ParseOperatorSet(raw string) OperatorSet {
	set := OperatorSet{
		emails:   map[string]struct{}{},
		subjects: map[string]struct{}{},
	}

	entries := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';'
	})
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		if strings.Contains(entry, "@") {
			set.emails[strings.ToLower(entry)] = struct{}{}
		} else {
			set.subjects[entry] = struct{}{}
		}
	}

	return set
}

// IsOperator reports whether the given identity subject or email is on the
// allow-list. Either field may be empty.
func (s OperatorSet) IsOperator(subject, email string) bool {
	if subject != "" {
		if _, ok := s.subjects[strings.TrimSpace(subject)]; ok {
			return true
		}
	}
	if email != "" {
		if _, ok := s.emails[strings.ToLower(strings.TrimSpace(email))]; ok {
			return true
		}
	}
	return false
}

// Len returns the number of allow-list entries.
func (s OperatorSet) Len() int {
	return len(s.emails) + len(s.subjects)
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
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "postline:rate_limit")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	viper.SetDefault("LIKE_RATE_LIMIT_PER_MINUTE", 60)
	viper.SetDefault("BUY_RATE_LIMIT_PER_MINUTE", 20)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("CLERK_JWKS_URL")
	_ = viper.BindEnv("CLERK_ISSUER")
	_ = viper.BindEnv("CLERK_AUDIENCE")
	_ = viper.BindEnv("ADMIN_EMAILS")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS", "CORS_ALLOWED_ORIGINS", "VERCEL_URL")
	_ = viper.BindEnv("LIKE_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("BUY_RATE_LIMIT_PER_MINUTE")

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
		config.RedisRateLimitPrefix = "postline:rate_limit"
	}
	config.ClerkJWKSURL = strings.TrimSpace(config.ClerkJWKSURL)
	config.ClerkIssuer = strings.TrimSpace(config.ClerkIssuer)
	config.ClerkAudience = strings.TrimSpace(config.ClerkAudience)

	if config.LikeRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative like rate limit configured; disabling\" limit=%d", config.LikeRateLimitPerMinute)
		config.LikeRateLimitPerMinute = 0
	}
	if config.BuyRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative buy rate limit configured; disabling\" limit=%d", config.BuyRateLimitPerMinute)
		config.BuyRateLimitPerMinute = 0
	}

	config.Operators = ParseOperatorSet(config.AdminEmails)
	if config.Operators.Len() == 0 {
		log.Println("level=warn component=config msg=\"operator allow-list is empty; admin endpoints will reject everyone\" env=ADMIN_EMAILS")
	}

	return
}
