package snippet

import (
	"strings"

	"github.com/google/uuid"
)

// Snippet is a time-bounded, transcribed segment of a source recording.
// Times are seconds from the start of the recording.
type Snippet struct {
	ID        string  `json:"id"`
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
	Text      string  `json:"text"`
}

func (s Snippet) Duration() float64 {
	return s.EndTime - s.StartTime
}

func (s Snippet) WordCount() int {
	return len(strings.Fields(s.Text))
}

// SplitPart describes one piece of a split request. The caller supplies ids
// up front so references stay stable across the local store and the remote
// document.
type SplitPart struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

func NewID() string {
	return uuid.NewString()
}
