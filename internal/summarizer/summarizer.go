package summarizer

import (
	"context"
)

// Input describes the payload for a summary request.
type Input struct {
	// Title is the headline the summary is appended to.
	Title string
	// Text contains the explanation to condense.
	Text string
	// MaxRunes bounds the length of the returned summary.
	MaxRunes int
}

// Summarizer produces a single summary for a given input text.
type Summarizer interface {
	Summarize(ctx context.Context, input Input) (string, error)
}
