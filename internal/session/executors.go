package session

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/vinylaudio/annotator/internal/jobs"
	"github.com/vinylaudio/annotator/internal/media"
	"github.com/vinylaudio/annotator/internal/snippet"
	"github.com/vinylaudio/annotator/internal/subtitle"
	"github.com/vinylaudio/annotator/pkg/log"
)

// ExecuteJob dispatches queue jobs by kind. Returning an error marks the job
// failed; it stays visible until retried or pruned.
func (s *Session) ExecuteJob(ctx context.Context, job *jobs.ProcessingJob) error {
	log.Info("Executing job %s (%s)", job.ID, job.Kind)
	switch job.Kind {
	case jobs.KindPreprocess:
		return s.runPreprocess(ctx, job.Payload)
	case jobs.KindSlice:
		return s.runSlice(ctx, job.Payload)
	case jobs.KindPurge:
		return s.bucket.DeletePrefix(ctx, job.Payload.Prefix)
	default:
		return fmt.Errorf("unknown job kind: %s", job.Kind)
	}
}

// runPreprocess parses the audio's subtitle into timed snippets with fresh
// ids, persists them and flips the preprocess flag. The audio only becomes
// openable once this has run.
func (s *Session) runPreprocess(ctx context.Context, payload jobs.JobPayload) error {
	localPath, cleanup, err := s.stageObject(ctx, payload.StorageRefPath)
	if err != nil {
		return err
	}
	defer cleanup()

	snippets, err := s.readSubtitle(localPath)
	if err != nil {
		return fmt.Errorf("parse subtitle %s: %w", payload.StorageRefPath, err)
	}

	if err := s.docs.SetPreProcessDone(ctx, payload.SourceAudioID, snippets); err != nil {
		return fmt.Errorf("persist preprocess result: %w", err)
	}

	ids := make([]string, 0, len(snippets))
	for _, sn := range snippets {
		s.snippets.Upsert(sn)
		ids = append(ids, sn.ID)
	}
	s.audios.SetPreProcessDone(payload.SourceAudioID, ids)

	log.Info("Preprocessed audio %s: %d snippets", payload.SourceAudioID, len(snippets))
	return nil
}

func (s *Session) runSlice(ctx context.Context, payload jobs.JobPayload) error {
	return s.slicer.SliceSnippet(ctx, media.SliceRequest{
		SourceAudioID:      payload.SourceAudioID,
		SpeakerID:          payload.SpeakerID,
		SourceAudioRefPath: payload.StorageRefPath,
		Snippet: snippet.Snippet{
			ID:        payload.SnippetID,
			StartTime: payload.StartTime,
			EndTime:   payload.EndTime,
			Text:      payload.Text,
		},
	})
}

// stageObject copies a bucket object to a local temp file for tools that
// need a real path.
func (s *Session) stageObject(ctx context.Context, refPath string) (string, func(), error) {
	reader, err := s.bucket.Open(ctx, refPath)
	if err != nil {
		return "", nil, fmt.Errorf("open %s: %w", refPath, err)
	}
	defer reader.Close()

	tmp, err := os.CreateTemp("", "annotator-*"+filepath.Ext(refPath))
	if err != nil {
		return "", nil, err
	}
	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("stage %s: %w", refPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", nil, err
	}
	return tmp.Name(), func() { os.Remove(tmp.Name()) }, nil
}

// parseSubtitleFile turns a subtitle file into snippets, one per timed line,
// each with a fresh id.
func parseSubtitleFile(path string) ([]snippet.Snippet, error) {
	parsed, err := subtitle.NewReader(path).Read()
	if err != nil {
		return nil, err
	}
	snippets := make([]snippet.Snippet, 0, len(parsed.Lines))
	for _, line := range parsed.Lines {
		snippets = append(snippets, snippet.Snippet{
			ID:        snippet.NewID(),
			StartTime: line.StartTime.Seconds(),
			EndTime:   line.EndTime.Seconds(),
			Text:      line.Text,
		})
	}
	return snippets, nil
}
