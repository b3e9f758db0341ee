package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"apodposter/internal/domain"

	"github.com/mattn/go-sqlite3"
)

func (d *Database) EntryExists(ctx context.Context, date time.Time, title string) (bool, error) {
	query := "select exists (select 1 from apod_entries where date = ? and title = ?)"

	var exists bool
	if err := d.db.QueryRowContext(ctx, query, date.Format(domain.DateLayout), title).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to execute query: %w", err)
	}

	return exists, nil
}

// InsertEntry records a posted entry. It returns domain.ErrDuplicateEntry
// when (date, title) is already present.
func (d *Database) InsertEntry(ctx context.Context, entry *domain.Entry) error {
	title := strings.TrimSpace(entry.Title)
	if title == "" {
		return errors.New("entry title is empty")
	}
	if entry.Date.IsZero() {
		return errors.New("entry date is empty")
	}

	query := `insert into apod_entries (
		date, title, explanation, url, media_type, service_version, twitter_media_id, twitter_post_id
	) values (?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := d.db.ExecContext(ctx, query,
		entry.Date.Format(domain.DateLayout),
		entry.Title,
		entry.Explanation,
		entry.URL,
		string(entry.MediaType),
		entry.ServiceVersion,
		nullString(entry.MediaID),
		nullString(entry.PostID),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert entry (date = %s, title = %q): %w",
				entry.Date.Format(domain.DateLayout), entry.Title, domain.ErrDuplicateEntry)
		}

		return fmt.Errorf("insert entry: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		d.log.WarnContext(ctx, "Failed to fetch inserted entry ID",
			"error", err,
			"date", entry.Date.Format(domain.DateLayout),
			"title", entry.Title)

		return nil
	}
	entry.ID = id

	return nil
}

// LatestDate returns the high-water mark of the store. ok is false when the
// store has no entries yet.
func (d *Database) LatestDate(ctx context.Context) (latest time.Time, ok bool, err error) {
	query := "select max(date) from apod_entries"

	var raw sql.NullString
	if err = d.db.QueryRowContext(ctx, query).Scan(&raw); err != nil {
		return time.Time{}, false, fmt.Errorf("failed to execute query: %w", err)
	}

	if !raw.Valid || strings.TrimSpace(raw.String) == "" {
		return time.Time{}, false, nil
	}

	latest, err = time.Parse(domain.DateLayout, raw.String)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse latest date %q: %w", raw.String, err)
	}

	return latest, true, nil
}

func (d *Database) GetEntry(ctx context.Context, date time.Time, title string) (*domain.Entry, error) {
	query := `select id, date, title, explanation, url, media_type, service_version,
		twitter_media_id, twitter_post_id, created_at
	from apod_entries
	where date = ? and title = ?`

	var (
		e         domain.Entry
		day       string
		mediaType string
		mediaID   sql.NullString
		postID    sql.NullString
	)

	err := d.db.QueryRowContext(ctx, query, date.Format(domain.DateLayout), title).Scan(
		&e.ID, &day, &e.Title, &e.Explanation, &e.URL, &mediaType, &e.ServiceVersion,
		&mediaID, &postID, &e.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	if e.Date, err = time.Parse(domain.DateLayout, day); err != nil {
		return nil, fmt.Errorf("parse entry date %q: %w", day, err)
	}
	e.MediaType = domain.MediaKind(mediaType)
	e.MediaID = mediaID.String
	e.PostID = postID.String

	return &e, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}

	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}
