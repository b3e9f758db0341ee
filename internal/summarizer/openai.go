package summarizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
)

const (
	baseMaxOutputTokens  int64 = 256
	limitMaxOutputTokens int64 = 1024

	systemPrompt = `Summarize the astronomy picture description in one short sentence for a social media post.

Rules:
- Stay under %d characters.
- Keep the key object and one striking fact (distance, size, date).
- Do not repeat the title.
- No hashtags, emojis or links.
- Output exactly one line in English.`
)

// OpenAISummarizer calls OpenAI's Responses API to produce summaries.
type OpenAISummarizer struct {
	client openai.Client
}

// NewOpenAISummarizer builds a new summarizer instance.
func NewOpenAISummarizer(apiKey string, opts ...option.RequestOption) (*OpenAISummarizer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("API key is empty")
	}

	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)

	return &OpenAISummarizer{
		client: openai.NewClient(opts...),
	}, nil
}

// Summarize condenses the explanation into a single line.
func (s *OpenAISummarizer) Summarize(
	ctx context.Context,
	input Input,
) (string, error) {
	text := strings.TrimSpace(input.Text)
	if text == "" {
		return "", errors.New("input is empty")
	}

	maxRunes := input.MaxRunes
	if maxRunes <= 0 {
		maxRunes = 200
	}

	userPromptBuilder := strings.Builder{}
	if title := strings.TrimSpace(input.Title); title != "" {
		userPromptBuilder.WriteString("Title:\n")
		userPromptBuilder.WriteString(title)
		userPromptBuilder.WriteString("\n")
	}
	userPromptBuilder.WriteString("Description:\n")
	userPromptBuilder.WriteString(text)

	maxOutputTokens := baseMaxOutputTokens
	for {
		resp, err := s.client.Responses.New(ctx, responses.ResponseNewParams{
			Model:           openai.ChatModelGPT5Mini2025_08_07,
			ServiceTier:     responses.ResponseNewParamsServiceTierFlex,
			MaxOutputTokens: openai.Int(maxOutputTokens),
			Reasoning: responses.ReasoningParam{
				Effort: openai.ReasoningEffortLow,
			},
			Instructions: openai.String(fmt.Sprintf(systemPrompt, maxRunes)),
			Input: responses.ResponseNewParamsInputUnion{
				OfString: openai.String(userPromptBuilder.String()),
			},
		})
		if err != nil {
			return "", fmt.Errorf("do request: %w", err)
		}

		if resp.Status == "incomplete" {
			if resp.IncompleteDetails.Reason == "max_output_tokens" && maxOutputTokens < limitMaxOutputTokens {
				maxOutputTokens = min(maxOutputTokens*2, limitMaxOutputTokens)
				continue
			}
			return "", fmt.Errorf(
				"response is incomplete (reason = %s, maxOutputTokens = %d)",
				resp.IncompleteDetails.Reason,
				maxOutputTokens,
			)
		}

		summary := strings.Join(strings.Fields(resp.OutputText()), " ")
		if summary == "" {
			return "", fmt.Errorf("output text is missing (status = %s)", resp.Status)
		}
		if utf8.RuneCountInString(summary) > maxRunes {
			return "", fmt.Errorf("summary is too long (runes = %d, max = %d)", utf8.RuneCountInString(summary), maxRunes)
		}

		return summary, nil
	}
}
