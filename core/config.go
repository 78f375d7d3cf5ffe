package core

import (
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Debug    bool
		TestMode bool
		Env      string // DEV (default), TEST, QA, PROD
		Build    string
		AppName  string
		WorkDir  string

		SecretKey        []byte
		FrontendBaseURL  string
		DefaultFromEmail mail.Address
		SendgridApiKey   string
		RollbarToken     string

		PasswordResetTimeout     time.Duration
		EmailVerificationTimeout time.Duration

		Server   ServerConfig
		Database DatabaseConfig
		JoinCode JoinCodeConfig
	}

	ServerConfig struct {
		Host                      string
		Port                      string
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
	}

	DatabaseConfig struct {
		Engine        string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		Host          string
		Port          string
		DisableTLS    bool
	}

	JoinCodeConfig struct {
		TTL      time.Duration
		MaxUsage int
	}
)

// Conf is the loaded app configuration; set by NewConfig/NewTestConfig.
var Conf *Config

func (c ServerConfig) Address() string   { return c.Host + ":" + c.Port }
func (c DatabaseConfig) Address() string { return c.Host + ":" + c.Port }

// NewConfig loads the app configuration from the environment,
// with an optional `config/.env.<env>` file loaded first (ignored if absent).
func NewConfig(workDir string) (*Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("appName", "Darasa")
	v.SetDefault("build", "dev")
	v.SetDefault("secretKey", "w3n)ch4+57=dz&uoxh2(h!x)#*c2(#yg4h^$cegm2emy@kwetu")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("defaultFromEmail", "noreply@localhost")
	v.SetDefault("jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("jwtRefreshExpirationDelta", 4*time.Hour)
	v.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("emailVerificationTimeoutDelta", 24*time.Hour)
	v.SetDefault("serverHost", "")
	v.SetDefault("serverPort", "8000")
	v.SetDefault("dbEngine", "postgres")
	v.SetDefault("dbName", "darasa")
	v.SetDefault("dbUser", "darasa")
	v.SetDefault("dbPassword", "")
	v.SetDefault("dbAdminUser", "")
	v.SetDefault("dbAdminPassword", "")
	v.SetDefault("dbHost", "localhost")
	v.SetDefault("dbPort", "5432")
	v.SetDefault("dbDisableTLS", true)
	v.SetDefault("joinCodeTTL", 10*time.Minute)
	v.SetDefault("joinCodeMaxUsage", 50)
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	env := os.Getenv("ENV")
	var testMode bool
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		testMode = true
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(workDir, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err = godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	v.AutomaticEnv()

	conf := &Config{
		Debug:                    v.GetBool("debug"),
		TestMode:                 testMode,
		Env:                      env,
		Build:                    v.GetString("build"),
		AppName:                  v.GetString("appName"),
		WorkDir:                  workDir,
		SecretKey:                []byte(v.GetString("secretKey")),
		FrontendBaseURL:          v.GetString("frontendBaseURL"),
		DefaultFromEmail:         mail.Address{Address: v.GetString("defaultFromEmail")},
		SendgridApiKey:           v.GetString("sendgridApiKey"),
		RollbarToken:             v.GetString("rollbarToken"),
		PasswordResetTimeout:     v.GetDuration("passwordResetTimeoutDelta"),
		EmailVerificationTimeout: v.GetDuration("emailVerificationTimeoutDelta"),
		Server: ServerConfig{
			Host:                      v.GetString("serverHost"),
			Port:                      v.GetString("serverPort"),
			JWTExpirationDelta:        v.GetDuration("jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("dbEngine"),
			Name:          v.GetString("dbName"),
			User:          v.GetString("dbUser"),
			Password:      v.GetString("dbPassword"),
			AdminUser:     v.GetString("dbAdminUser"),
			AdminPassword: v.GetString("dbAdminPassword"),
			Host:          v.GetString("dbHost"),
			Port:          v.GetString("dbPort"),
			DisableTLS:    v.GetBool("dbDisableTLS"),
		},
		JoinCode: JoinCodeConfig{
			TTL:      v.GetDuration("joinCodeTTL"),
			MaxUsage: v.GetInt("joinCodeMaxUsage"),
		},
	}
	Conf = conf
	return conf, nil
}

// NewTestConfig returns a Config for unit tests; no env lookups.
func NewTestConfig() *Config {
	conf := &Config{
		TestMode:                 true,
		Env:                      "TEST",
		AppName:                  "Darasa",
		SecretKey:                []byte("secret"),
		FrontendBaseURL:          "http://localhost:3000",
		DefaultFromEmail:         mail.Address{Address: "noreply@localhost"},
		PasswordResetTimeout:     3 * 24 * time.Hour,
		EmailVerificationTimeout: 24 * time.Hour,
		Server: ServerConfig{
			JWTExpirationDelta:        10 * time.Minute,
			JWTRefreshExpirationDelta: 4 * time.Hour,
		},
		JoinCode: JoinCodeConfig{
			TTL:      10 * time.Minute,
			MaxUsage: 50,
		},
	}
	Conf = conf
	return conf
}
