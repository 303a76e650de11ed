package util

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "LUDO"

const (
	StoreRedis  = "redis"
	StoreMemory = "memory"

	TokenJWT    = "jwt"
	TokenPaseto = "paseto"
)

type Config struct {
	Bind           string        `mapstructure:"bind"`
	Port           int           `mapstructure:"port" validate:"min=1,max=65535"`
	TokenSecret    string        `mapstructure:"token-secret" validate:"required"`
	TokenKind      string        `mapstructure:"token-kind" validate:"oneof=jwt paseto"`
	TokenTTL       time.Duration `mapstructure:"token-ttl" validate:"gt=0"`
	Store          string        `mapstructure:"store" validate:"oneof=redis memory"`
	RedisAddress   string        `mapstructure:"redis-addr" validate:"required_if=Store redis"`
	RedisPassword  string        `mapstructure:"redis-pw"`
	RedisDB        int           `mapstructure:"redis-db" validate:"min=0"`
	RoomTTL        time.Duration `mapstructure:"room-ttl" validate:"min=0"`
	AllowedOrigins []string      `mapstructure:"allowed-origins"`
	PublicURL      string        `mapstructure:"public-url" validate:"omitempty,url"`
	Verbose        bool          `mapstructure:"verbose"`
}

func (c *Config) Address() string {
	return fmt.Sprintf("%v:%v", c.Bind, c.Port)
}

// RegisterFlags declares every setting on fs. Each one can also come from
// LUDO_<NAME> in the environment or a .env file.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringP("bind", "b", "0.0.0.0", "address to bind to (env: LUDO_BIND)")
	fs.IntP("port", "p", 8080, "port to listen on (env: LUDO_PORT)")
	fs.String("token-secret", "", "secret used to sign player tokens, 32 bytes for paseto (env: LUDO_TOKEN_SECRET)")
	fs.String("token-kind", TokenJWT, "player token format, jwt or paseto (env: LUDO_TOKEN_KIND)")
	fs.Duration("token-ttl", 30*24*time.Hour, "lifetime of issued player tokens (env: LUDO_TOKEN_TTL)")
	fs.String("store", StoreRedis, "state backend, redis or memory (env: LUDO_STORE)")
	fs.String("redis-addr", "localhost:6379", "redis address (env: LUDO_REDIS_ADDR)")
	fs.String("redis-pw", "", "redis password (env: LUDO_REDIS_PW)")
	fs.Int("redis-db", 0, "redis database number (env: LUDO_REDIS_DB)")
	fs.Duration("room-ttl", 12*time.Hour, "expire idle rooms after this long, 0 keeps them (env: LUDO_ROOM_TTL)")
	fs.StringSlice("allowed-origins", []string{"http://localhost:8080"}, "origins allowed for CORS and websockets (env: LUDO_ALLOWED_ORIGINS)")
	fs.String("public-url", "http://localhost:8080", "base URL used in room invite links (env: LUDO_PUBLIC_URL)")
	fs.BoolP("verbose", "v", false, "log every request (env: LUDO_VERBOSE)")
}

// LoadConfig resolves settings from flags, the environment and .env, in that
// order of precedence.
func LoadConfig(fs *pflag.FlagSet) (*Config, error) {
	godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return nil, err
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := Validate.Struct(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
