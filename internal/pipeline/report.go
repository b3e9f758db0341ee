package pipeline

import (
	"apodposter/internal/domain"

	"github.com/samber/lo"
)

// State is the position of a record in the posting pipeline.
type State string

const (
	StateFetched       State = "FETCHED"
	StateMediaResolved State = "MEDIA_RESOLVED"
	StateUploaded      State = "UPLOADED"
	StatePosted        State = "POSTED"
	StateRecorded      State = "RECORDED"
	StateRolledBack    State = "ROLLED_BACK"
	// StateSkipped marks records already in the store or with an unsupported media kind.
	StateSkipped State = "SKIPPED"
)

// Result is the outcome of one record. State is the last state reached; Err
// is set when processing stopped there.
type Result struct {
	Record  domain.FeedRecord
	State   State
	MediaID string
	PostID  string
	Err     error
}

type Report struct {
	Results []Result
}

func (r Report) Count(state State) int {
	return lo.CountBy(r.Results, func(res Result) bool {
		return res.Err == nil && res.State == state
	})
}

func (r Report) Failed() int {
	return lo.CountBy(r.Results, func(res Result) bool {
		return res.Err != nil
	})
}
