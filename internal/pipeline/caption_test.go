package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"unicode/utf8"

	"apodposter/internal/domain"
	"apodposter/internal/summarizer"

	"github.com/stretchr/testify/assert"
)

type stubSummarizer struct {
	summary string
	err     error
	inputs  []summarizer.Input
}

func (s *stubSummarizer) Summarize(_ context.Context, input summarizer.Input) (string, error) {
	s.inputs = append(s.inputs, input)
	return s.summary, s.err
}

func captionPipeline(s summarizer.Summarizer) *Pipeline {
	return New(nil, nil, nil, nil, Options{Summarizer: s}, slog.Default())
}

func TestCaptionTitleOnlyWithoutSummarizer(t *testing.T) {
	rec := record("2024-02-14", "  Valentine Nebula ", domain.MediaImage, "")

	assert.Equal(t, "Valentine Nebula", captionPipeline(nil).caption(context.Background(), rec))
}

func TestCaptionAppendsSummary(t *testing.T) {
	s := &stubSummarizer{summary: "A heart-shaped emission nebula in Cassiopeia."}
	rec := record("2024-02-14", "Valentine Nebula", domain.MediaImage, "")

	got := captionPipeline(s).caption(context.Background(), rec)

	assert.Equal(t, "Valentine Nebula\n\nA heart-shaped emission nebula in Cassiopeia.", got)
	if assert.Len(t, s.inputs, 1) {
		assert.Equal(t, maxTweetRunes-len("Valentine Nebula")-len(captionSep), s.inputs[0].MaxRunes)
		assert.Equal(t, rec.Explanation, s.inputs[0].Text)
	}
}

func TestCaptionFallsBackOnSummarizerError(t *testing.T) {
	s := &stubSummarizer{err: errors.New("quota")}
	rec := record("2024-02-14", "Valentine Nebula", domain.MediaImage, "")

	assert.Equal(t, "Valentine Nebula", captionPipeline(s).caption(context.Background(), rec))
}

func TestCaptionSkipsSummaryWhenTitleLeavesNoRoom(t *testing.T) {
	s := &stubSummarizer{summary: "unused"}
	title := strings.Repeat("x", maxTweetRunes-minSummaryRunes)
	rec := record("2024-02-14", title, domain.MediaImage, "")

	assert.Equal(t, title, captionPipeline(s).caption(context.Background(), rec))
	assert.Empty(t, s.inputs)
}

func TestCaptionIsCappedAtTweetLimit(t *testing.T) {
	s := &stubSummarizer{summary: strings.Repeat("é", 400)}
	rec := record("2024-02-14", "Long Summary", domain.MediaImage, "")

	got := captionPipeline(s).caption(context.Background(), rec)

	assert.Equal(t, maxTweetRunes, utf8.RuneCountInString(got))
	assert.True(t, strings.HasSuffix(got, ellipsis))
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "short", truncateRunes("short", 10))
	assert.Equal(t, "abcd…", truncateRunes("abcdefgh", 5))
}
