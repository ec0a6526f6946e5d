// Package maintenance runs the scheduled cleanup sweep: derived training
// data whose audio is no longer annotated is purged, and stale staging files
// are pruned.
package maintenance

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/vinylaudio/annotator/internal/blob"
	"github.com/vinylaudio/annotator/internal/media"
	"github.com/vinylaudio/annotator/internal/sourceaudio"
	"github.com/vinylaudio/annotator/pkg/log"
)

// staleAfter is how old a staging file must be before the sweep removes it.
const staleAfter = 24 * time.Hour

type audioLister interface {
	Audios() []sourceaudio.SourceAudio
}

type Sweeper struct {
	cronExpr string
	cron     *cron.Cron
	entryID  cron.EntryID

	audios audioLister
	bucket blob.Bucket
	tmpDir string

	sweeps singleflight.Group
}

func NewSweeper(cronExpr string, c *cron.Cron, audios audioLister, bucket blob.Bucket, tmpDir string) *Sweeper {
	return &Sweeper{
		cronExpr: cronExpr,
		cron:     c,
		audios:   audios,
		bucket:   bucket,
		tmpDir:   tmpDir,
	}
}

func (s *Sweeper) Schedule(ctx context.Context) error {
	log.Info("Schedule maintenance sweep: %s", s.cronExpr)

	runFunc := func() {
		_, _, _ = s.sweeps.Do("sweep", func() (any, error) {
			if err := s.run(ctx); err != nil {
				log.Error("Maintenance sweep failed: %v", err)
			}
			return nil, nil
		})
	}
	entryID, err := s.cron.AddFunc(s.cronExpr, runFunc)
	if err != nil {
		return err
	}
	s.entryID = entryID
	return nil
}

// Reschedule swaps the sweep onto a new cron expression. Used when runtime
// settings change.
func (s *Sweeper) Reschedule(ctx context.Context, cronExpr string) error {
	if cronExpr == s.cronExpr {
		return nil
	}
	s.cron.Remove(s.entryID)
	s.cronExpr = cronExpr
	return s.Schedule(ctx)
}

func (s *Sweeper) run(ctx context.Context) error {
	s.purgeUnannotated(ctx)
	s.pruneStaging()
	return nil
}

// purgeUnannotated deletes the derived prefix of every preprocessed audio
// whose annotation flag has been lowered. Purging an already-empty prefix is
// a no-op, so the sweep stays idempotent.
func (s *Sweeper) purgeUnannotated(ctx context.Context) {
	for _, audio := range s.audios.Audios() {
		if audio.IsAnnotated || !audio.PreProcessDone || audio.SpeakerID == "" {
			continue
		}
		prefix := media.DerivedPrefix(audio.SpeakerID, audio.ID)
		if err := s.bucket.DeletePrefix(ctx, prefix); err != nil {
			log.Error("Failed to purge %s: %v", prefix, err)
		}
	}
}

// pruneStaging removes abandoned staging files left behind by interrupted
// slice or preprocess runs.
func (s *Sweeper) pruneStaging() {
	if s.tmpDir == "" {
		return
	}
	entries, err := os.ReadDir(s.tmpDir)
	if err != nil {
		log.Error("Failed to read staging dir %s: %v", s.tmpDir, err)
		return
	}
	cutoff := time.Now().Add(-staleAfter)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasPrefix(entry.Name(), "annotator-") {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(s.tmpDir, entry.Name())
		if err := os.Remove(path); err != nil {
			log.Error("Failed to prune %s: %v", path, err)
		} else {
			log.Debug("Pruned stale staging file %s", path)
		}
	}
}
