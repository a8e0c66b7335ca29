package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	MVSEP     MVSEPConfig
	R2        R2Config
	Sweeper   SweeperConfig
	Gateway   GatewayConfig
}

type ServerConfig struct {
	Port     string
	Env      string
	LogLevel string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	SeparatePerHour int
	StatusPerMin    int
	UploadPerHour   int
}

// MVSEPConfig holds credentials and processing-mode codes for the upstream
// separation API. Mode codes are the provider's sep_type values; they differ
// between provider deployments, so they stay configurable.
type MVSEPConfig struct {
	APIKey       string
	BaseURL      string
	EnsembleMode int
	LeadBackMode int
	DereverbMode int
	DenoiseMode  int
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

type SweeperConfig struct {
	StaleAfterMin int
	IntervalMin   int
}

type GatewayConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("MVSEP_API_KEY")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("JWT_SECRET")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("mvsep.api_key", "MVSEP_API_KEY")
	_ = viper.BindEnv("mvsep.base_url", "MVSEP_BASE_URL")
	_ = viper.BindEnv("mvsep.ensemble_mode", "MVSEP_ENSEMBLE_MODE")
	_ = viper.BindEnv("mvsep.leadback_mode", "MVSEP_LEADBACK_MODE")
	_ = viper.BindEnv("mvsep.dereverb_mode", "MVSEP_DEREVERB_MODE")
	_ = viper.BindEnv("mvsep.denoise_mode", "MVSEP_DENOISE_MODE")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("sweeper.stale_after_min", "SWEEPER_STALE_AFTER_MIN")
	_ = viper.BindEnv("sweeper.interval_min", "SWEEPER_INTERVAL_MIN")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.separate_per_hour", 10)
	viper.SetDefault("ratelimit.status_per_min", 60)
	viper.SetDefault("ratelimit.upload_per_hour", 50)

	// MVSEP defaults
	viper.SetDefault("mvsep.base_url", "https://mvsep.com")
	viper.SetDefault("mvsep.ensemble_mode", 25)
	viper.SetDefault("mvsep.leadback_mode", 34)
	viper.SetDefault("mvsep.dereverb_mode", 31)
	viper.SetDefault("mvsep.denoise_mode", 40)

	// Sweeper defaults
	viper.SetDefault("sweeper.stale_after_min", 60)
	viper.SetDefault("sweeper.interval_min", 10)

	// Gateway defaults
	viper.SetDefault("gateway.enabled", false)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:     viper.GetString("server.port"),
			Env:      viper.GetString("server.env"),
			LogLevel: viper.GetString("server.log_level"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			SeparatePerHour: viper.GetInt("ratelimit.separate_per_hour"),
			StatusPerMin:    viper.GetInt("ratelimit.status_per_min"),
			UploadPerHour:   viper.GetInt("ratelimit.upload_per_hour"),
		},
		MVSEP: MVSEPConfig{
			APIKey:       viper.GetString("mvsep.api_key"),
			BaseURL:      viper.GetString("mvsep.base_url"),
			EnsembleMode: viper.GetInt("mvsep.ensemble_mode"),
			LeadBackMode: viper.GetInt("mvsep.leadback_mode"),
			DereverbMode: viper.GetInt("mvsep.dereverb_mode"),
			DenoiseMode:  viper.GetInt("mvsep.denoise_mode"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		Sweeper: SweeperConfig{
			StaleAfterMin: viper.GetInt("sweeper.stale_after_min"),
			IntervalMin:   viper.GetInt("sweeper.interval_min"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
	}

	return cfg, nil
}
