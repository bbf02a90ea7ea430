package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/tokenauth/internal/logger"
	"github.com/nkiryanov/tokenauth/internal/service/auth"
)

const (
	defaultListenAddr      = "localhost:8000"
	defaultLoggingLevel    = logger.LevelInfo
	defaultEnvironment     = logger.EnvProduction
	defaultRedisURL        = "redis://localhost:6379/0"
	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
	defaultRequestTimeout  = 10 * time.Second

	// Secrets shorter than this are rejected
	minSecretLen = 32
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the service will be run
	ListenAddr string

	// Database to connect to: postgres://... or sqlite://path
	DatabaseDSN string

	// Revocation store, redis://...
	RedisURL string

	// Base64 encoded secrets to sign access and refresh tokens
	// Generate them with 'gensecret' command
	AccessTokenSecret  string
	RefreshTokenSecret string

	// Token lifetimes
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Argon2id parameters for new password hashes
	Argon2Time    uint32
	Argon2Memory  uint32
	Argon2Threads uint8

	// Reject access tokens revoked on logout
	EnforceRevocation bool

	// Answer 'invalid login attempt' instead of 'not found' for unknown emails
	HideUserExistence bool

	// Deadline for handling single request
	RequestTimeout time.Duration

	// Environment
	Environment string
}

func NewConfig() *Config {
	return &Config{
		LogLevel:        defaultLoggingLevel,
		ListenAddr:      defaultListenAddr,
		RedisURL:        defaultRedisURL,
		AccessTokenTTL:  defaultAccessTokenTTL,
		RefreshTokenTTL: defaultRefreshTokenTTL,
		Argon2Time:      auth.DefaultArgon2Time,
		Argon2Memory:    auth.DefaultArgon2Memory,
		Argon2Threads:   auth.DefaultArgon2Threads,
		RequestTimeout:  defaultRequestTimeout,
		Environment:     defaultEnvironment,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			if value != "" {
				*o = value
			}
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			*o = d
			return nil
		}
	}
	setBool := func(o *bool) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			b, err := strconv.ParseBool(value)
			if err != nil {
				return err
			}
			*o = b
			return nil
		}
	}
	setUint := func(bits int, set func(uint64)) func(value string) error {
		return func(value string) error {
			if value == "" {
				return nil
			}
			n, err := strconv.ParseUint(value, 10, bits)
			if err != nil {
				return err
			}
			set(n)
			return nil
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":          setString(&c.ListenAddr),
		"DATABASE_URI":         setString(&c.DatabaseDSN),
		"REDIS_URL":            setString(&c.RedisURL),
		"ACCESS_TOKEN_SECRET":  setString(&c.AccessTokenSecret),
		"REFRESH_TOKEN_SECRET": setString(&c.RefreshTokenSecret),
		"ACCESS_TOKEN_TTL":     setDuration(&c.AccessTokenTTL),
		"REFRESH_TOKEN_TTL":    setDuration(&c.RefreshTokenTTL),
		"ARGON2_TIME":          setUint(32, func(n uint64) { c.Argon2Time = uint32(n) }),
		"ARGON2_MEMORY":        setUint(32, func(n uint64) { c.Argon2Memory = uint32(n) }),
		"ARGON2_THREADS":       setUint(8, func(n uint64) { c.Argon2Threads = uint8(n) }),
		"ENFORCE_REVOCATION":   setBool(&c.EnforceRevocation),
		"HIDE_USER_EXISTENCE":  setBool(&c.HideUserExistence),
		"REQUEST_TIMEOUT":      setDuration(&c.RequestTimeout),
		"LOG_LEVEL":            setString(&c.LogLevel),
		"ENVIRONMENT":          setString(&c.Environment),
	}

	var errs []error
	for key, parseFn := range envMap {
		if err := parseFn(getenv(key)); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("tokenauth", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string (postgres://... or sqlite://path)")
	fs.StringVarP(&c.RedisURL, "redis", "r", c.RedisURL, "Redis connection url")
	fs.StringVar(&c.AccessTokenSecret, "access-secret", c.AccessTokenSecret, "Base64 encoded secret to sign access tokens")
	fs.StringVar(&c.RefreshTokenSecret, "refresh-secret", c.RefreshTokenSecret, "Base64 encoded secret to sign refresh tokens")
	fs.DurationVar(&c.AccessTokenTTL, "access-ttl", c.AccessTokenTTL, "Access token lifetime")
	fs.DurationVar(&c.RefreshTokenTTL, "refresh-ttl", c.RefreshTokenTTL, "Refresh token lifetime")
	fs.Uint32Var(&c.Argon2Time, "argon2-time", c.Argon2Time, "Argon2 iterations")
	fs.Uint32Var(&c.Argon2Memory, "argon2-memory", c.Argon2Memory, "Argon2 memory in KiB")
	fs.Uint8Var(&c.Argon2Threads, "argon2-threads", c.Argon2Threads, "Argon2 parallelism")
	fs.BoolVar(&c.EnforceRevocation, "enforce-revocation", c.EnforceRevocation, "Check revocation store on every authenticated request")
	fs.BoolVar(&c.HideUserExistence, "hide-user-existence", c.HideUserExistence, "Do not tell unknown email from wrong password on login")
	fs.DurationVar(&c.RequestTimeout, "request-timeout", c.RequestTimeout, "Request handling deadline")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (dev, prod)")

	return fs.Parse(args)
}

// Decoded and checked token secrets
type secrets struct {
	access  []byte
	refresh []byte
}

// Validate config is usable and decode secrets
func (c *Config) Validate() (secrets, error) {
	var s secrets
	var errs []error

	decode := func(name string, value string) []byte {
		if value == "" {
			errs = append(errs, fmt.Errorf("%s must be set", name))
			return nil
		}
		b, err := base64.StdEncoding.DecodeString(value)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s is not valid base64: %w", name, err))
			return nil
		}
		if len(b) < minSecretLen {
			errs = append(errs, fmt.Errorf("%s must be at least %d bytes", name, minSecretLen))
			return nil
		}
		return b
	}

	s.access = decode("access token secret", c.AccessTokenSecret)
	s.refresh = decode("refresh token secret", c.RefreshTokenSecret)
	if s.access != nil && string(s.access) == string(s.refresh) {
		errs = append(errs, errors.New("access and refresh token secrets must differ"))
	}

	if c.DatabaseDSN == "" {
		errs = append(errs, errors.New("database DSN must be set"))
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		errs = append(errs, errors.New("token lifetimes must be positive"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}

	return s, errors.Join(errs...)
}
