package jobs

import "time"

type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Kind selects the executor for a job.
type Kind string

const (
	// KindPreprocess derives the snippet list from the audio's subtitle and
	// flips preProcessDone.
	KindPreprocess Kind = "preprocess"
	// KindSlice extracts one snippet's span into a durable audio file plus a
	// sidecar transcript.
	KindSlice Kind = "slice"
	// KindPurge deletes every derived file under an audio's training-data
	// prefix.
	KindPurge Kind = "purge"
)

type EnqueueRequest struct {
	Kind      Kind
	Source    string
	DedupeKey string
	Payload   JobPayload
}

type JobPayload struct {
	SourceAudioID  string  `json:"source_audio_id"`
	StorageRefPath string  `json:"storage_ref_path,omitempty"`
	SpeakerID      string  `json:"speaker_id,omitempty"`
	SnippetID      string  `json:"snippet_id,omitempty"`
	StartTime      float64 `json:"start_time,omitempty"`
	EndTime        float64 `json:"end_time,omitempty"`
	Text           string  `json:"text,omitempty"`
	Prefix         string  `json:"prefix,omitempty"`
}

type ProcessingJob struct {
	ID        string     `json:"id"`
	Kind      Kind       `json:"kind"`
	Source    string     `json:"source"`
	DedupeKey string     `json:"dedupe_key"`
	Payload   JobPayload `json:"payload"`
	Status    Status     `json:"status"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}
