package media

import (
	"context"
	"fmt"

	"github.com/vinylaudio/annotator/internal/snippet"
)

// TrainingDataFolder is the bucket prefix all derived snippet files live
// under, keyed by speaker and source audio.
const TrainingDataFolder = "training-data"

// SliceRequest asks for one snippet's span to be extracted from its source
// recording into a durable audio file plus a sidecar transcript.
type SliceRequest struct {
	SourceAudioID      string
	SpeakerID          string
	SourceAudioRefPath string
	Snippet            snippet.Snippet
}

type Slicer interface {
	SliceSnippet(ctx context.Context, req SliceRequest) error
}

// DerivedPrefix is the bucket prefix holding an audio's extracted snippet
// files. Purging this prefix undoes annotation.
func DerivedPrefix(speakerID, sourceAudioID string) string {
	return fmt.Sprintf("%s/%s/%s", TrainingDataFolder, speakerID, sourceAudioID)
}
