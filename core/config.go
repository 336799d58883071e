package core

import (
	"fmt"
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env             string
		Build           string
		Debug           bool
		TestMode        bool
		AppName         string
		SecretKey       string
		FrontendBaseURL string
		Timezone        string
		AllowSignup     bool
		SendgridApiKey  string
		RollbarToken    string
		Server          ServerConfig
		Database        DatabaseConfig
		Redis           RedisConfig

		defaultFromEmail string
		location         *time.Location
	}

	ServerConfig struct {
		Host                      string
		DebugHost                 string
		ShutdownTimeout           time.Duration
		DisableReqLogs            bool
		JWTExpirationDelta        time.Duration
		JWTRefreshExpirationDelta time.Duration
		PasswordResetTimeoutDelta time.Duration
		AuthRateLimit             float64 // requests per second, per client IP
		AuthRateBurst             int
		TrustProxyHeaders         bool // read the client IP from X-Forwarded-For/X-Real-IP
	}

	DatabaseConfig struct {
		Engine        string // postgres | memory
		Host          string
		Port          int
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	RedisConfig struct {
		Addr     string // empty: in-memory token revocation
		Password string
		DB       int
	}
)

func (dbc DatabaseConfig) Address() string {
	return net.JoinHostPort(dbc.Host, strconv.Itoa(dbc.Port))
}

func (conf *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(conf.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: conf.defaultFromEmail}
	}
	return *addr
}

// Location is the timezone used to decide which calendar day "today" is.
func (conf *Config) Location() *time.Location {
	if conf.location == nil {
		return time.UTC
	}
	return conf.location
}

func NewConfig() *Config {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "dev")
	v.SetDefault("appName", "Escalas")
	v.SetDefault("secretKey", "d8v$3m+q1x!7kz@0wr^f5c#2lh&9ujy-6tbn%ea4s*gpo(i)")
	v.SetDefault("frontendBaseURL", "http://localhost:3000")
	v.SetDefault("timezone", "America/Sao_Paulo")
	v.SetDefault("allowSignup", true)
	v.SetDefault("defaultFromEmail", "Escalas <noreply@localhost>")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("rollbarToken", "")

	v.SetDefault("server.host", ":8000")
	v.SetDefault("server.debugHost", ":4000")
	v.SetDefault("server.shutdownTimeout", 5*time.Second)
	v.SetDefault("server.disableReqLogs", false)
	v.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	v.SetDefault("server.jwtRefreshExpirationDelta", 30*24*time.Hour)
	v.SetDefault("server.passwordResetTimeoutDelta", 3*24*time.Hour)
	v.SetDefault("server.authRateLimit", 1.0)
	v.SetDefault("server.authRateBurst", 5)
	v.SetDefault("server.trustProxyHeaders", false)

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "escalas")
	v.SetDefault("database.user", "escalas")
	v.SetDefault("database.password", "escalas")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("debug", false)
		v.SetDefault("testMode", true)
		v.SetDefault("server.disableReqLogs", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:             env,
		Build:           v.GetString("build"),
		Debug:           v.GetBool("debug"),
		TestMode:        v.GetBool("testMode"),
		AppName:         v.GetString("appName"),
		SecretKey:       v.GetString("secretKey"),
		FrontendBaseURL: strings.TrimRight(v.GetString("frontendBaseURL"), "/"),
		Timezone:        v.GetString("timezone"),
		AllowSignup:     v.GetBool("allowSignup"),
		SendgridApiKey:  v.GetString("sendgridApiKey"),
		RollbarToken:    v.GetString("rollbarToken"),
		Server: ServerConfig{
			Host:                      v.GetString("server.host"),
			DebugHost:                 v.GetString("server.debugHost"),
			ShutdownTimeout:           v.GetDuration("server.shutdownTimeout"),
			DisableReqLogs:            v.GetBool("server.disableReqLogs"),
			JWTExpirationDelta:        v.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: v.GetDuration("server.jwtRefreshExpirationDelta"),
			PasswordResetTimeoutDelta: v.GetDuration("server.passwordResetTimeoutDelta"),
			AuthRateLimit:             v.GetFloat64("server.authRateLimit"),
			AuthRateBurst:             v.GetInt("server.authRateBurst"),
			TrustProxyHeaders:         v.GetBool("server.trustProxyHeaders"),
		},
		Database: DatabaseConfig{
			Engine:        v.GetString("database.engine"),
			Host:          v.GetString("database.host"),
			Port:          v.GetInt("database.port"),
			Name:          v.GetString("database.name"),
			User:          v.GetString("database.user"),
			Password:      v.GetString("database.password"),
			AdminUser:     v.GetString("database.adminUser"),
			AdminPassword: v.GetString("database.adminPassword"),
			DisableTLS:    v.GetBool("database.disableTLS"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		defaultFromEmail: v.GetString("defaultFromEmail"),
	}

	loc, err := time.LoadLocation(conf.Timezone)
	if err != nil {
		log.Print(fmt.Errorf("config.LoadLocation(%s): %v; falling back to UTC", conf.Timezone, err))
		loc = time.UTC
	}
	conf.location = loc
	return conf
}
