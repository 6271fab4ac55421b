package core

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type (
	Config struct {
		Env      string
		Debug    bool
		TestMode bool
		Build    string

		AppName          string
		SecretKey        []byte
		FrontendBaseURL  string
		DefaultFromEmail string
		RollbarToken     string
		SendgridAPIKey   string

		AccountConfirmationTimeoutDelta time.Duration
		PasswordResetTimeoutDelta       time.Duration

		MaxEquippedBadges int

		Server   ServerConfig
		Database DatabaseConfig
		Redis    RedisConfig
		Storage  StorageConfig
	}

	ServerConfig struct {
		Host                      string
		Port                      int
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
		Port          int
		DisableTLS    bool
	}

	RedisConfig struct {
		Enabled bool
		Addr    string
	}

	StorageConfig struct {
		// Dir is the root directory of the attachment bucket.
		Dir string
	}
)

func (c DatabaseConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// NewConfig loads the app configuration from the environment,
// preceded by an optional config/.env.<env> file.
func NewConfig() *Config {
	conf := viper.New()
	conf.SetTypeByDefaultValue(true)

	// defaults
	conf.SetDefault("debug", true)
	conf.SetDefault("appName", "Darasa")
	conf.SetDefault("secretKey", "w3p!x-2b#ys$8g0b(o4_dz&uo+57=xh2(h!x)#*c2(#yg4h^$c")
	conf.SetDefault("frontendBaseURL", "http://localhost:3000")
	conf.SetDefault("defaultFromEmail", "noreply@localhost")
	conf.SetDefault("rollbarToken", "")
	conf.SetDefault("sendgridAPIKey", "")
	conf.SetDefault("accountConfirmationTimeoutDelta", 3*24*time.Hour)
	conf.SetDefault("passwordResetTimeoutDelta", 3*24*time.Hour)
	conf.SetDefault("maxEquippedBadges", 3)

	conf.SetDefault("server.host", "localhost")
	conf.SetDefault("server.port", 8000)
	conf.SetDefault("server.jwtExpirationDelta", 7*24*time.Hour)
	conf.SetDefault("server.jwtRefreshExpirationDelta", 4*time.Hour)

	conf.SetDefault("database.engine", "postgres")
	conf.SetDefault("database.name", "darasa")
	conf.SetDefault("database.user", "darasa")
	conf.SetDefault("database.password", "darasa")
	conf.SetDefault("database.adminUser", "")
	conf.SetDefault("database.adminPassword", "")
	conf.SetDefault("database.host", "localhost")
	conf.SetDefault("database.port", 5432)
	conf.SetDefault("database.disableTLS", true)

	conf.SetDefault("redis.enabled", false)
	conf.SetDefault("redis.addr", "localhost:6379")

	conf.SetDefault("storage.dir", filepath.Join(os.TempDir(), "darasa-attachments"))

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	testMode := env == "TEST"

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join("config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err = godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}
	conf.SetEnvPrefix(env)
	conf.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	conf.AutomaticEnv()

	return &Config{
		Env:              env,
		Debug:            conf.GetBool("debug"),
		TestMode:         testMode,
		Build:            conf.GetString("build"),
		AppName:          conf.GetString("appName"),
		SecretKey:        []byte(conf.GetString("secretKey")),
		FrontendBaseURL:  conf.GetString("frontendBaseURL"),
		DefaultFromEmail: conf.GetString("defaultFromEmail"),
		RollbarToken:     conf.GetString("rollbarToken"),
		SendgridAPIKey:   conf.GetString("sendgridAPIKey"),

		AccountConfirmationTimeoutDelta: conf.GetDuration("accountConfirmationTimeoutDelta"),
		PasswordResetTimeoutDelta:       conf.GetDuration("passwordResetTimeoutDelta"),
		MaxEquippedBadges:               conf.GetInt("maxEquippedBadges"),

		Server: ServerConfig{
			Host:                      conf.GetString("server.host"),
			Port:                      conf.GetInt("server.port"),
			JWTExpirationDelta:        conf.GetDuration("server.jwtExpirationDelta"),
			JWTRefreshExpirationDelta: conf.GetDuration("server.jwtRefreshExpirationDelta"),
		},
		Database: DatabaseConfig{
			Engine:        conf.GetString("database.engine"),
			Name:          conf.GetString("database.name"),
			User:          conf.GetString("database.user"),
			Password:      conf.GetString("database.password"),
			AdminUser:     conf.GetString("database.adminUser"),
			AdminPassword: conf.GetString("database.adminPassword"),
			Host:          conf.GetString("database.host"),
			Port:          conf.GetInt("database.port"),
			DisableTLS:    conf.GetBool("database.disableTLS"),
		},
		Redis: RedisConfig{
			Enabled: conf.GetBool("redis.enabled"),
			Addr:    conf.GetString("redis.addr"),
		},
		Storage: StorageConfig{
			Dir: conf.GetString("storage.dir"),
		},
	}
}
