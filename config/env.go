package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Env is the process configuration read from the environment.
type Env struct {
	HTTPAddr           string   `env:"FEDERATION_HTTP_ADDR" envDefault:":8080"`
	GRPCAddr           string   `env:"FEDERATION_GRPC_ADDR" envDefault:":9090"`
	ProvidersFile      string   `env:"FEDERATION_PROVIDERS_FILE" envDefault:"providers.yaml"`
	StateSecret        string   `env:"FEDERATION_STATE_SECRET,required"`
	AllowedHosts       []string `env:"FEDERATION_ALLOWED_REDIRECT_HOSTS" envSeparator:","`
	DefaultRedirectURL string   `env:"FEDERATION_DEFAULT_REDIRECT_URL" envDefault:"/"`

	// Redis holds issued login states when set; otherwise they are kept in memory.
	RedisAddr     string `env:"FEDERATION_REDIS_ADDR"`
	RedisPassword string `env:"FEDERATION_REDIS_PASSWORD"`
	RedisDB       int    `env:"FEDERATION_REDIS_DB" envDefault:"0"`

	// Login events are published when brokers are set.
	KafkaBrokers []string `env:"FEDERATION_KAFKA_BROKERS" envSeparator:","`
	KafkaTopic   string   `env:"FEDERATION_KAFKA_TOPIC" envDefault:"sso.logins"`

	LogLevel    string `env:"FEDERATION_LOG_LEVEL" envDefault:"info"`
	ServiceName string `env:"FEDERATION_SERVICE_NAME" envDefault:"federation"`
}

// LoadEnv loads the optional dotenv files and parses the environment.
// Variables already set in the process win over dotenv values.
func LoadEnv(files ...string) (*Env, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	var e Env
	if err := env.Parse(&e); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &e, nil
}
