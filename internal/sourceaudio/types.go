package sourceaudio

import "github.com/vinylaudio/annotator/internal/snippet"

// SourceAudio is an ingested recording plus its annotation status. Snippet
// bodies live in the snippet collection; only membership ids are kept here.
type SourceAudio struct {
	ID             string   `json:"id"`
	Name           string   `json:"name"`
	StorageRefPath string   `json:"storageRefPath"`
	Subtitle       string   `json:"subtitle"`
	IsAnnotated    bool     `json:"isAnnotated"`
	PreProcessDone bool     `json:"preProcessDone"`
	SpeakerID      string   `json:"speakerId"`
	SpeakerName    string   `json:"speakerName,omitempty"`
	SnippetIDs     []string `json:"snippetIds"`
}

// Speaker is pure reference data, created lazily when a new name is typed.
type Speaker struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Status string

const (
	// StatusUnprocessed audios cannot be opened: snippets have not been
	// derived from the source subtitle yet.
	StatusUnprocessed Status = "unprocessed"
	StatusReady       Status = "ready"
	StatusAnnotated   Status = "annotated"
)

func (a SourceAudio) Status() Status {
	switch {
	case !a.PreProcessDone:
		return StatusUnprocessed
	case a.IsAnnotated:
		return StatusAnnotated
	default:
		return StatusReady
	}
}

// Document is a source audio as it rests in the document store, snippet
// bodies embedded. The in-memory stores normalize it on load.
type Document struct {
	SourceAudio
	Snippets []snippet.Snippet `json:"snippets,omitempty"`
}
