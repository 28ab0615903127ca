package core

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	APIConfig struct {
		SchoolBaseURL     string
		ComplaintsBaseURL string
		PerPage           int
	}

	SessionConfig struct {
		Driver string // file (default), postgres, sqlite3
		Path   string
		DSN    string
	}

	MockConfig struct {
		Addr               string
		SecretKey          string
		JWTExpirationDelta time.Duration
	}

	Config struct {
		Env          string
		Build        string
		Debug        bool
		TestMode     bool
		AppName      string
		RollbarToken string

		API     APIConfig
		Session SessionConfig
		Mock    MockConfig
	}
)

// NewConfig loads the configuration from defaults, an optional `config/.env.<env>` file and the environment.
// Environment variables are prefixed with the upper-cased ENV, eg. DEV_API_SCHOOLBASEURL.
func NewConfig() (*Config, error) {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("build", "develop")
	v.SetDefault("appName", "Barakah")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("api.schoolBaseURL", "https://school-barakah.vercel.app")
	v.SetDefault("api.complaintsBaseURL", "http://localhost:8000/api")
	v.SetDefault("api.perPage", 20)
	v.SetDefault("session.driver", "file")
	v.SetDefault("session.path", defaultSessionPath())
	v.SetDefault("session.dsn", "")
	v.SetDefault("mock.addr", ":8000")
	v.SetDefault("mock.secretKey", "k3u!7x-barakah-mock-9fq=2vz&pl0")
	v.SetDefault("mock.jwtExpirationDelta", 24*time.Hour)

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	if wd, err := os.Getwd(); err == nil {
		dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
		if _, err := os.Stat(dotEnvPath); err == nil {
			if err := godotenv.Load(dotEnvPath); err != nil {
				return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "stat %s", dotEnvPath)
		}
	}
	v.AutomaticEnv()

	conf := &Config{
		Env:          env,
		Build:        v.GetString("build"),
		Debug:        v.GetBool("debug"),
		TestMode:     v.GetBool("testMode"),
		AppName:      v.GetString("appName"),
		RollbarToken: v.GetString("rollbarToken"),
		API: APIConfig{
			SchoolBaseURL:     v.GetString("api.schoolBaseURL"),
			ComplaintsBaseURL: v.GetString("api.complaintsBaseURL"),
			PerPage:           v.GetInt("api.perPage"),
		},
		Session: SessionConfig{
			Driver: CleanString(v.GetString("session.driver"), true /* lower */),
			Path:   v.GetString("session.path"),
			DSN:    v.GetString("session.dsn"),
		},
		Mock: MockConfig{
			Addr:               v.GetString("mock.addr"),
			SecretKey:          v.GetString("mock.secretKey"),
			JWTExpirationDelta: v.GetDuration("mock.jwtExpirationDelta"),
		},
	}
	if conf.API.PerPage <= 0 {
		conf.API.PerPage = 20
	}
	return conf, nil
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".barakah", "session.json")
	}
	return filepath.Join(home, ".barakah", "session.json")
}
