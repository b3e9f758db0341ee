package pipeline

import (
	"context"
	"strings"
	"unicode/utf8"

	"apodposter/internal/domain"
	"apodposter/internal/summarizer"
)

const (
	maxTweetRunes   = 280
	minSummaryRunes = 40
	captionSep      = "\n\n"
	ellipsis        = "…"
)

// caption builds the tweet text: the title, optionally followed by a summary
// of the explanation.
func (p *Pipeline) caption(ctx context.Context, record domain.FeedRecord) string {
	title := truncateRunes(strings.TrimSpace(record.Title), maxTweetRunes)

	if p.summarizer == nil || strings.TrimSpace(record.Explanation) == "" {
		return title
	}

	budget := maxTweetRunes - utf8.RuneCountInString(title) - utf8.RuneCountInString(captionSep)
	if budget < minSummaryRunes {
		return title
	}

	summary, err := p.summarizer.Summarize(ctx, summarizer.Input{
		Title:    title,
		Text:     record.Explanation,
		MaxRunes: budget,
	})
	if err != nil {
		p.log.WarnContext(ctx, "Failed to summarize explanation so title will be used",
			"error", err,
			"date", record.Date,
			"title", record.Title)

		return title
	}

	summary = strings.TrimSpace(summary)
	if summary == "" {
		return title
	}

	return truncateRunes(title+captionSep+summary, maxTweetRunes)
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit-utf8.RuneCountInString(ellipsis)])) + ellipsis
}
