package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"apodposter/internal/domain"
	"apodposter/internal/media"
	"apodposter/internal/summarizer"
)

type FeedClient interface {
	Fetch(ctx context.Context, w domain.Window) ([]domain.FeedRecord, error)
}

// Store is the persistent record of posted entries.
type Store interface {
	EntryExists(ctx context.Context, date time.Time, title string) (bool, error)
	InsertEntry(ctx context.Context, entry *domain.Entry) error
}

// Publisher uploads media and manages tweets.
type Publisher interface {
	media.Uploader
	CreateTweet(ctx context.Context, text string, mediaID string) (string, error)
	DeleteTweet(ctx context.Context, tweetID string) error
}

type Options struct {
	// PostDelay is waited between a successful upload and the tweet so the
	// platform can finish processing large media. It is a heuristic, not an
	// acknowledgment.
	PostDelay time.Duration
	// ContinueOnError keeps processing the batch after a record fails.
	ContinueOnError bool
	// Summarizer is optional. When nil tweets carry the title only.
	Summarizer summarizer.Summarizer
}

type Pipeline struct {
	feed            FeedClient
	store           Store
	strategies      media.Registry
	publisher       Publisher
	summarizer      summarizer.Summarizer
	postDelay       time.Duration
	continueOnError bool
	sleep           func(ctx context.Context, d time.Duration) error
	log             *slog.Logger
}

func New(
	feed FeedClient,
	store Store,
	strategies media.Registry,
	publisher Publisher,
	opts Options,
	log *slog.Logger,
) *Pipeline {
	return &Pipeline{
		feed:            feed,
		store:           store,
		strategies:      strategies,
		publisher:       publisher,
		summarizer:      opts.Summarizer,
		postDelay:       opts.PostDelay,
		continueOnError: opts.ContinueOnError,
		sleep:           sleepContext,
		log:             log,
	}
}

// Run fetches the records in w and processes them one at a time.
func (p *Pipeline) Run(ctx context.Context, w domain.Window) (Report, error) {
	var report Report

	records, err := p.feed.Fetch(ctx, w)
	if err != nil {
		return report, fmt.Errorf("fetch feed: %w", err)
	}

	var errs []error
	for _, record := range records {
		if err = ctx.Err(); err != nil {
			return report, errors.Join(append(errs, err)...)
		}

		result := p.process(ctx, record)
		report.Results = append(report.Results, result)

		if result.Err == nil {
			continue
		}

		p.log.ErrorContext(ctx, "Failed to process record",
			"error", result.Err,
			"date", record.Date,
			"title", record.Title,
			"mediaType", record.MediaType,
			"state", result.State)

		recordErr := fmt.Errorf("process record (date = %s, title = %q): %w", record.Date, record.Title, result.Err)
		if !p.continueOnError {
			return report, recordErr
		}
		errs = append(errs, recordErr)
	}

	p.log.InfoContext(ctx, "Batch is processed",
		"recordCount", len(records),
		"recorded", report.Count(StateRecorded),
		"skipped", report.Count(StateSkipped),
		"rolledBack", report.Count(StateRolledBack),
		"failed", report.Failed())

	return report, errors.Join(errs...)
}

func (p *Pipeline) process(ctx context.Context, record domain.FeedRecord) (result Result) {
	result = Result{Record: record, State: StateFetched}

	day, err := record.Day()
	if err != nil {
		result.Err = fmt.Errorf("parse record date: %w", err)
		return result
	}
	if strings.TrimSpace(record.Title) == "" {
		result.Err = errors.New("record title is empty")
		return result
	}

	exists, err := p.store.EntryExists(ctx, day, record.Title)
	if err != nil {
		result.Err = fmt.Errorf("check entry: %w", err)
		return result
	}
	if exists {
		p.log.InfoContext(ctx, "Record is already posted",
			"date", record.Date,
			"title", record.Title)

		result.State = StateSkipped
		return result
	}

	strategy, err := p.strategies.For(record.MediaType)
	if err != nil {
		p.log.WarnContext(ctx, "Record media kind is not supported",
			"error", err,
			"date", record.Date,
			"title", record.Title,
			"mediaType", record.MediaType)

		result.State = StateSkipped
		return result
	}

	filePath, err := strategy.Fetch(ctx, record.URL)
	if err != nil {
		result.Err = fmt.Errorf("resolve media: %w", err)
		return result
	}
	cleanup := func() {
		if filePath == "" {
			return
		}
		if removeErr := media.Remove(filePath); removeErr != nil {
			p.log.ErrorContext(ctx, "Failed to remove media file",
				"error", removeErr,
				"path", filePath)
		}
		filePath = ""
	}
	defer cleanup()
	result.State = StateMediaResolved

	mediaID, err := strategy.Upload(ctx, p.publisher, filePath)
	if err != nil {
		result.Err = fmt.Errorf("upload media: %w", err)
		return result
	}
	cleanup()
	result.State = StateUploaded
	result.MediaID = mediaID

	if err = p.sleep(ctx, p.postDelay); err != nil {
		result.Err = fmt.Errorf("wait before posting: %w", err)
		return result
	}

	postID, err := p.publisher.CreateTweet(ctx, p.caption(ctx, record), mediaID)
	if err != nil {
		result.Err = fmt.Errorf("create tweet: %w", err)
		return result
	}
	result.State = StatePosted
	result.PostID = postID

	entry := &domain.Entry{
		Date:           day,
		Title:          record.Title,
		Explanation:    record.Explanation,
		URL:            record.URL,
		MediaType:      record.MediaType,
		ServiceVersion: record.ServiceVersion,
		MediaID:        mediaID,
		PostID:         postID,
	}

	err = p.store.InsertEntry(ctx, entry)
	if errors.Is(err, domain.ErrDuplicateEntry) {
		return p.rollBack(ctx, result, err)
	}
	if err != nil {
		p.log.ErrorContext(ctx, "Tweet is posted but not recorded",
			"error", err,
			"date", record.Date,
			"title", record.Title,
			"tweetID", postID)

		result.Err = fmt.Errorf("record entry: %w", err)
		return result
	}

	p.log.InfoContext(ctx, "Record is posted",
		"date", record.Date,
		"title", record.Title,
		"mediaID", mediaID,
		"tweetID", postID,
		"entryID", entry.ID)

	result.State = StateRecorded
	return result
}

// rollBack deletes a tweet whose entry lost the uniqueness race to another run.
func (p *Pipeline) rollBack(ctx context.Context, result Result, cause error) Result {
	p.log.WarnContext(ctx, "Entry is already recorded so tweet will be deleted",
		"error", cause,
		"date", result.Record.Date,
		"title", result.Record.Title,
		"tweetID", result.PostID)

	if err := p.publisher.DeleteTweet(ctx, result.PostID); err != nil {
		result.Err = fmt.Errorf("roll back tweet %s: %w", result.PostID, err)
		return result
	}

	p.log.InfoContext(ctx, "Tweet is rolled back",
		"date", result.Record.Date,
		"title", result.Record.Title,
		"tweetID", result.PostID)

	result.State = StateRolledBack
	return result
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
