package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()

	t.Setenv("NASA_KEY", "nasa")
	t.Setenv("TWITTER_CONSUMER_KEY", "ck")
	t.Setenv("TWITTER_CONSUMER_SECRET", "cs")
	t.Setenv("TWITTER_ACCESS_TOKEN", "at")
	t.Setenv("TWITTER_ACCESS_TOKEN_SECRET", "ats")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DBPath != "db.sqlite" {
		t.Fatalf("unexpected DB path: %q", cfg.DBPath)
	}
	if cfg.PostDelay != 10*time.Second {
		t.Fatalf("unexpected post delay: %s", cfg.PostDelay)
	}
	if cfg.ContinueOnError {
		t.Fatalf("expected fail-fast by default")
	}
	if cfg.Location().String() != "America/New_York" {
		t.Fatalf("unexpected location: %s", cfg.Location())
	}
}

func TestLoadMissingCredential(t *testing.T) {
	setRequired(t)
	t.Setenv("TWITTER_ACCESS_TOKEN_SECRET", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for empty credential")
	}
}

func TestLoadInvalidTimezone(t *testing.T) {
	setRequired(t)
	t.Setenv("APOD_TIMEZONE", "Mars/Olympus_Mons")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown timezone")
	}
}

func TestLoadNegativeDelay(t *testing.T) {
	setRequired(t)
	t.Setenv("POST_DELAY", "-1s")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for negative delay")
	}
}
