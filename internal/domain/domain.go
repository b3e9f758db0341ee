package domain

import (
	"errors"
	"time"
)

// DateLayout is the calendar-day format used by the feed and the store.
const DateLayout = time.DateOnly

var (
	// ErrDuplicateEntry is returned by the store when (date, title) is already recorded.
	ErrDuplicateEntry = errors.New("duplicate entry")
	// ErrUnsupportedMedia is returned when no strategy handles a media kind.
	ErrUnsupportedMedia = errors.New("unsupported media kind")
)

type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// FeedRecord is a single APOD item as returned by the feed.
type FeedRecord struct {
	Date           string    `json:"date"`
	Title          string    `json:"title"`
	Explanation    string    `json:"explanation"`
	URL            string    `json:"url"`
	HDURL          string    `json:"hdurl,omitempty"`
	MediaType      MediaKind `json:"media_type"`
	ServiceVersion string    `json:"service_version"`
	Copyright      string    `json:"copyright,omitempty"`
	ThumbnailURL   string    `json:"thumbnail_url,omitempty"`
}

// Day parses the record date as a calendar day.
func (r FeedRecord) Day() (time.Time, error) {
	return time.Parse(DateLayout, r.Date)
}

// Entry is a posted record persisted in the store.
type Entry struct {
	ID             int64
	Date           time.Time
	Title          string
	Explanation    string
	URL            string
	MediaType      MediaKind
	ServiceVersion string
	MediaID        string
	PostID         string
	CreatedAt      time.Time
}

// Window is the fetch range for the feed. A zero End leaves the range open.
type Window struct {
	Start time.Time
	End   time.Time
}
