package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application level configuration aggregated from env/config files.
type Config struct {
	Server struct {
		Addr string
	}
	Database struct {
		Path string
	}
	Slskd struct {
		Host              string
		APIKey            string
		Username          string
		Password          string
		SearchesPerSecond float64
	}
	Search struct {
		FileLimit       int
		ResponseLimit   int
		DeadlineSeconds int
		PollSeconds     int
	}
	Acquire struct {
		MaxConcurrent int
	}
	Headscale struct {
		URL    string
		APIKey string
	}
}

// SearchDeadline returns the poll deadline as a duration.
func (c Config) SearchDeadline() time.Duration {
	return time.Duration(c.Search.DeadlineSeconds) * time.Second
}

// SearchPollInterval returns the poll cadence as a duration.
func (c Config) SearchPollInterval() time.Duration {
	return time.Duration(c.Search.PollSeconds) * time.Second
}

// Load reads configuration from environment variables and optional config files.
func Load() (Config, error) {
	_ = godotenv.Load() // optional .env

	v := viper.New()
	v.SetEnvPrefix("SOULFETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", "0.0.0.0:8000")
	v.SetDefault("database.path", "data/soulfetch.db")
	v.SetDefault("slskd.host", "http://slskd:5030")
	v.SetDefault("slskd.apikey", "")
	v.SetDefault("slskd.username", "slskd")
	v.SetDefault("slskd.password", "slskd")
	v.SetDefault("slskd.searchespersecond", 1.0)
	v.SetDefault("search.filelimit", 1000)
	v.SetDefault("search.responselimit", 50)
	v.SetDefault("search.deadlineseconds", 30)
	v.SetDefault("search.pollseconds", 1)
	v.SetDefault("acquire.maxconcurrent", 3)
	v.SetDefault("headscale.url", "")
	v.SetDefault("headscale.apikey", "")

	v.SetConfigName("config")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // optional file

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}
