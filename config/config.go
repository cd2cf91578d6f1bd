package config

import (
	"errors"
	"net"
	"os"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Environment variables providing flag defaults, loaded from .env when present.
const (
	EnvHost        = "DYNFORMS_HOST"
	EnvPort        = "DYNFORMS_PORT"
	EnvDBUrl       = "DYNFORMS_DB_URL"
	EnvTokenSecret = "DYNFORMS_TOKEN_SECRET"
	EnvTokenTTL    = "DYNFORMS_TOKEN_TTL"
	EnvDebug       = "DYNFORMS_DEBUG"
	EnvLogFormat   = "DYNFORMS_LOG_FORMAT"
	EnvStaticDir   = "DYNFORMS_STATIC_DIR"
)

type Config struct {
	Host        string
	Port        uint
	DBUrl       string
	TokenSecret string
	TokenTTL    time.Duration
	Debug       bool
	LogFormat   string
	StaticDir   string
}

// LoadEnv reads a .env file from the working directory. A missing file is
// not an error.
func LoadEnv() error {
	err := godotenv.Load()
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// BindDB registers the flags needed to reach the database.
func (cfg *Config) BindDB(fs *pflag.FlagSet) {
	fs.StringVar(&cfg.DBUrl, "db-url", env(EnvDBUrl, "dynforms.sqlite"), "path to SQLite3 DB file")
}

// BindLogging registers the logging flags.
func (cfg *Config) BindLogging(fs *pflag.FlagSet) {
	fs.BoolVar(&cfg.Debug, "debug", envBool(EnvDebug, false), "log at DEBUG level")
	fs.StringVar(&cfg.LogFormat, "log-format", env(EnvLogFormat, "text"), "log output format (text or json)")
}

// BindServer registers the flags of the HTTP server.
func (cfg *Config) BindServer(fs *pflag.FlagSet) {
	fs.StringVar(&cfg.Host, "host", env(EnvHost, "0.0.0.0"), "listen host name")
	fs.UintVar(&cfg.Port, "port", envUint(EnvPort, 8000), "listen port number")
	fs.StringVar(&cfg.TokenSecret, "token-secret", env(EnvTokenSecret, ""), "secret key for token encryption and decryption")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", envDuration(EnvTokenTTL, 30*time.Minute), "access token TTL")
	fs.StringVar(&cfg.StaticDir, "static-dir", env(EnvStaticDir, ""), "directory of a built frontend to serve at / (optional)")
}

// Validate checks the server configuration.
func (cfg Config) Validate() error {
	if cfg.TokenSecret == "" {
		return errors.New("missing parameter --token-secret")
	}
	if cfg.TokenTTL <= 0 {
		return errors.New("--token-ttl must be positive")
	}
	if cfg.Port == 0 || cfg.Port > 65535 {
		return errors.New("--port must be between 1 and 65535")
	}
	return nil
}

func (cfg Config) Addr() string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(int(cfg.Port)))
}

func (cfg Config) Url() (url string) {
	url = cfg.Addr()
	url = regexp.MustCompile(`^0\.0\.0\.0`).ReplaceAllString(url, "localhost")
	url = "http://" + url
	return
}

func env(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envBool(key string, def bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return def
}

func envUint(key string, def uint) uint {
	if v, err := strconv.ParseUint(os.Getenv(key), 10, 16); err == nil {
		return uint(v)
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return v
	}
	return def
}
