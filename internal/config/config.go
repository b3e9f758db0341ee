package config

import (
	"fmt"
	"time"
	_ "time/tzdata" // Zone data for hosts without a system database.

	"github.com/caarlos0/env/v11"
)

type Config struct {
	NASAKey string `env:"NASA_KEY,required,notEmpty"`

	TwitterConsumerKey       string `env:"TWITTER_CONSUMER_KEY,required,notEmpty"`
	TwitterConsumerSecret    string `env:"TWITTER_CONSUMER_SECRET,required,notEmpty"`
	TwitterAccessToken       string `env:"TWITTER_ACCESS_TOKEN,required,notEmpty"`
	TwitterAccessTokenSecret string `env:"TWITTER_ACCESS_TOKEN_SECRET,required,notEmpty"`

	DBPath          string        `env:"DB_PATH"            envDefault:"db.sqlite"`
	MediaDir        string        `env:"MEDIA_DIR"`
	PostDelay       time.Duration `env:"POST_DELAY"         envDefault:"10s"`
	ContinueOnError bool          `env:"CONTINUE_ON_ERROR"  envDefault:"false"`
	Timezone        string        `env:"APOD_TIMEZONE"      envDefault:"America/New_York"`
	ScheduleSpec    string        `env:"SCHEDULE_SPEC"      envDefault:"0 6 * * *"`
	RunTimeout      time.Duration `env:"RUN_TIMEOUT"        envDefault:"1h"`
	OpenAIAPIKey    string        `env:"OPENAI_API_KEY"`

	APODURL          string `env:"APOD_URL"           envDefault:"https://api.nasa.gov/planetary/apod"`
	TwitterMediaURL  string `env:"TWITTER_MEDIA_URL"  envDefault:"https://upload.twitter.com/1.1/media/upload.json"`
	TwitterTweetsURL string `env:"TWITTER_TWEETS_URL" envDefault:"https://api.twitter.com/2/tweets"`
}

// Load reads the configuration from the process environment.
// Missing credentials are reported here rather than on the first API call.
func Load() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if _, err = time.LoadLocation(cfg.Timezone); err != nil {
		return Config{}, fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	if cfg.PostDelay < 0 {
		return Config{}, fmt.Errorf("POST_DELAY must not be negative (got %s)", cfg.PostDelay)
	}

	return cfg, nil
}

// Location returns the time zone "today" is computed in.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}

	return loc
}
