// Package session is the annotation session: it owns the in-memory stores,
// the debounced sync controller and the processing queue, and dispatches
// every user action against them. The HTTP layer and the waveform binding
// are thin shells over this package.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/vinylaudio/annotator/internal/auth"
	"github.com/vinylaudio/annotator/internal/blob"
	"github.com/vinylaudio/annotator/internal/config"
	"github.com/vinylaudio/annotator/internal/jobs"
	"github.com/vinylaudio/annotator/internal/media"
	"github.com/vinylaudio/annotator/internal/snippet"
	"github.com/vinylaudio/annotator/internal/sourceaudio"
	"github.com/vinylaudio/annotator/internal/syncer"
	"github.com/vinylaudio/annotator/pkg/file"
	"github.com/vinylaudio/annotator/pkg/log"
)

// DocumentStore is what the session needs from durable storage.
type DocumentStore interface {
	ListSourceAudios(ctx context.Context) ([]sourceaudio.Document, error)
	GetSourceAudio(ctx context.Context, id string) (sourceaudio.Document, bool, error)
	AddSourceAudio(ctx context.Context, doc sourceaudio.Document) error
	UpdateSnippets(ctx context.Context, audioID string, snippets []snippet.Snippet) error
	SetPreProcessDone(ctx context.Context, audioID string, snippets []snippet.Snippet) error
	UpdateAnnotated(ctx context.Context, audioID string, annotated bool) error
	UpdateSpeaker(ctx context.Context, audioID string, speakerID string) error
	ListSpeakers(ctx context.Context) ([]sourceaudio.Speaker, error)
	AddSpeaker(ctx context.Context, sp sourceaudio.Speaker) error
}

// Options wires the session's collaborators.
type Options struct {
	Docs   DocumentStore
	Bucket blob.Bucket
	Slicer media.Slicer
	Auth   auth.Provider
	Queue  *jobs.Queue

	QuietPeriod    time.Duration
	SplitSeparator string
}

type Session struct {
	docs   DocumentStore
	bucket blob.Bucket
	slicer media.Slicer
	auth   auth.Provider
	queue  *jobs.Queue

	snippets *snippet.Collection
	audios   *sourceaudio.Store
	sync     *syncer.Controller

	urlGroup singleflight.Group

	// settings and the transient notice are read on hot paths and written
	// rarely; they share the store mutex discipline.
	settings settingsState
	notice   noticeState

	// readSubtitle is the preprocess parser, replaceable in tests.
	readSubtitle func(path string) ([]snippet.Snippet, error)
}

func New(opts Options) *Session {
	s := &Session{
		docs:     opts.Docs,
		bucket:   opts.Bucket,
		slicer:   opts.Slicer,
		auth:     opts.Auth,
		queue:    opts.Queue,
		snippets: snippet.NewCollection(),
		audios:   sourceaudio.NewStore(),
	}
	s.settings.set(opts.SplitSeparator)
	s.sync = syncer.NewController(opts.QuietPeriod, s.flushSnippets)
	s.readSubtitle = parseSubtitleFile
	return s
}

// Hydrate loads every audio document into the in-memory stores and starts
// the processing queue. Jobs persisted by a previous run resume here.
func (s *Session) Hydrate(ctx context.Context) error {
	docs, err := s.docs.ListSourceAudios(ctx)
	if err != nil {
		return WrapError(err, ErrStorage, "load source audios")
	}
	flat := s.audios.Load(docs)
	s.snippets.Load(flat)

	if s.queue != nil {
		s.queue.Start(s.ExecuteJob)
	}
	log.Info("Session hydrated: %d audios, %d snippets", len(docs), len(flat))
	return nil
}

// Stop disarms the sync timer and drains the queue workers. Unflushed edits
// are abandoned; GuardRaised tells the caller whether that loses anything.
func (s *Session) Stop() {
	s.sync.Stop()
	if s.queue != nil {
		s.queue.Stop()
	}
}

// Audios lists every known source audio in load order.
func (s *Session) Audios() []sourceaudio.SourceAudio {
	return s.audios.List()
}

func (s *Session) Audio(id string) (sourceaudio.SourceAudio, bool) {
	return s.audios.Get(id)
}

// SelectAudio opens an audio for annotation and kicks off the playable-URL
// fetch. The fetch result is applied only if the selection has not moved on.
func (s *Session) SelectAudio(id string) error {
	audio, ok := s.audios.Get(id)
	if !ok {
		return NewError(ErrNotFound, "unknown source audio").WithContext("id", id)
	}
	if !audio.PreProcessDone {
		return NewError(ErrInvalidArgument, "audio is not preprocessed yet").WithContext("id", id)
	}

	generation := s.audios.Select(id)
	s.snippets.Select("")
	// an open merge session belongs to the previous audio
	s.snippets.CancelMerge()
	go s.resolvePlayableURL(audio.StorageRefPath, generation)
	return nil
}

func (s *Session) resolvePlayableURL(refPath string, generation uint64) {
	v, err, _ := s.urlGroup.Do(refPath, func() (any, error) {
		return s.bucket.DownloadURL(refPath)
	})
	if err != nil {
		log.Error("Resolve playable URL for %s failed: %v", refPath, err)
		s.notice.set("Load audio failed")
		return
	}
	if !s.audios.ApplyURL(generation, v.(string)) {
		log.Debug("Dropping stale URL for %s", refPath)
	}
}

// SelectedAudio returns the open audio and its playable URL once resolved.
func (s *Session) SelectedAudio() (sourceaudio.SourceAudio, string, bool) {
	audio, ok := s.audios.Selected()
	if !ok {
		return sourceaudio.SourceAudio{}, "", false
	}
	return audio, s.audios.SelectedURL(), true
}

// CreateSourceAudioRequest registers an already-uploaded recording.
type CreateSourceAudioRequest struct {
	Name           string `json:"name"`
	StorageRefPath string `json:"storageRefPath"`
	Subtitle       string `json:"subtitle"`
	SpeakerName    string `json:"speakerName"`
}

// CreateSourceAudio validates the caller and the uploaded file, folds the
// title into a storage-safe name, creates the speaker on first sight of its
// name, persists the audio document and enqueues preprocessing. The audio
// stays unprocessed until that job runs.
func (s *Session) CreateSourceAudio(ctx context.Context, token string, req CreateSourceAudioRequest) (sourceaudio.SourceAudio, error) {
	user, ok, err := s.auth.UserFromToken(ctx, token)
	if err != nil {
		return sourceaudio.SourceAudio{}, WrapError(err, ErrStorage, "verify token")
	}
	if !ok {
		return sourceaudio.SourceAudio{}, NewError(ErrUnauthenticated, "unknown token")
	}

	name := file.NormalizeTitle(req.Name)
	if name == "" {
		return sourceaudio.SourceAudio{}, NewError(ErrInvalidArgument, "name is required")
	}
	if strings.TrimSpace(req.StorageRefPath) == "" {
		return sourceaudio.SourceAudio{}, NewError(ErrInvalidArgument, "storageRefPath is required")
	}
	if strings.TrimSpace(req.Subtitle) == "" {
		return sourceaudio.SourceAudio{}, NewError(ErrInvalidArgument, "subtitle is required")
	}

	exists, err := s.bucket.Exists(ctx, req.StorageRefPath)
	if err != nil {
		return sourceaudio.SourceAudio{}, WrapError(err, ErrStorage, "check audio file")
	}
	if !exists {
		return sourceaudio.SourceAudio{}, NewError(ErrInvalidArgument, "audio file not found").
			WithContext("storageRefPath", req.StorageRefPath)
	}

	speaker, err := s.resolveSpeaker(ctx, req.SpeakerName)
	if err != nil {
		return sourceaudio.SourceAudio{}, err
	}

	audio := sourceaudio.SourceAudio{
		ID:             uuid.NewString(),
		Name:           name,
		StorageRefPath: req.StorageRefPath,
		Subtitle:       req.Subtitle,
		SpeakerID:      speaker.ID,
		SpeakerName:    speaker.Name,
		SnippetIDs:     []string{},
	}
	if err := s.docs.AddSourceAudio(ctx, sourceaudio.Document{SourceAudio: audio}); err != nil {
		return sourceaudio.SourceAudio{}, WrapError(err, ErrStorage, "persist source audio")
	}
	s.audios.Upsert(audio)

	s.enqueue(jobs.EnqueueRequest{
		Kind:      jobs.KindPreprocess,
		Source:    user.ID,
		DedupeKey: fmt.Sprintf("preprocess:%s", audio.ID),
		Payload: jobs.JobPayload{
			SourceAudioID:  audio.ID,
			StorageRefPath: audio.Subtitle,
		},
	})

	log.Info("Created source audio %s (%s) by %s", audio.ID, audio.Name, user.ID)
	return audio, nil
}

// resolveSpeaker matches the name against known speakers case-insensitively
// and creates a fresh one when nothing matches. Empty names resolve to the
// zero speaker.
func (s *Session) resolveSpeaker(ctx context.Context, name string) (sourceaudio.Speaker, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return sourceaudio.Speaker{}, nil
	}

	speakers, err := s.docs.ListSpeakers(ctx)
	if err != nil {
		return sourceaudio.Speaker{}, WrapError(err, ErrStorage, "list speakers")
	}
	for _, sp := range speakers {
		if strings.EqualFold(sp.Name, name) {
			return sp, nil
		}
	}

	speaker := sourceaudio.Speaker{ID: uuid.NewString(), Name: name}
	if err := s.docs.AddSpeaker(ctx, speaker); err != nil {
		return sourceaudio.Speaker{}, WrapError(err, ErrStorage, "create speaker")
	}
	log.Info("Created speaker %s (%s)", speaker.ID, speaker.Name)
	return speaker, nil
}

// Speakers lists all known speakers.
func (s *Session) Speakers(ctx context.Context) ([]sourceaudio.Speaker, error) {
	speakers, err := s.docs.ListSpeakers(ctx)
	if err != nil {
		return nil, WrapError(err, ErrStorage, "list speakers")
	}
	return speakers, nil
}

// SetSpeaker reassigns the audio's speaker, creating one when the name is
// new, and persists immediately (speaker changes do not ride the debounce).
func (s *Session) SetSpeaker(ctx context.Context, audioID, name string) error {
	if _, ok := s.audios.Get(audioID); !ok {
		return NewError(ErrNotFound, "unknown source audio").WithContext("id", audioID)
	}
	speaker, err := s.resolveSpeaker(ctx, name)
	if err != nil {
		return err
	}
	if err := s.docs.UpdateSpeaker(ctx, audioID, speaker.ID); err != nil {
		return WrapError(err, ErrStorage, "persist speaker change")
	}
	s.audios.SetSpeaker(audioID, speaker)
	return nil
}

// SetAnnotated flips the annotation flag. Turning it on enqueues one slice
// job per snippet; turning it off enqueues a purge of the derived prefix.
// Both are fire-and-forget from the caller's point of view.
func (s *Session) SetAnnotated(ctx context.Context, audioID string, annotated bool) error {
	audio, ok := s.audios.Get(audioID)
	if !ok {
		return NewError(ErrNotFound, "unknown source audio").WithContext("id", audioID)
	}
	if annotated && !audio.PreProcessDone {
		return NewError(ErrInvalidArgument, "audio is not preprocessed yet").WithContext("id", audioID)
	}

	if err := s.docs.UpdateAnnotated(ctx, audioID, annotated); err != nil {
		return WrapError(err, ErrStorage, "persist annotated flag")
	}
	s.audios.SetAnnotated(audioID, annotated)

	if annotated {
		for _, sn := range s.snippets.Resolve(audio.SnippetIDs) {
			s.enqueue(jobs.EnqueueRequest{
				Kind:      jobs.KindSlice,
				Source:    audioID,
				DedupeKey: fmt.Sprintf("slice:%s:%s", audioID, sn.ID),
				Payload: jobs.JobPayload{
					SourceAudioID:  audioID,
					StorageRefPath: audio.StorageRefPath,
					SpeakerID:      audio.SpeakerID,
					SnippetID:      sn.ID,
					StartTime:      sn.StartTime,
					EndTime:        sn.EndTime,
					Text:           sn.Text,
				},
			})
		}
		return nil
	}

	s.enqueue(jobs.EnqueueRequest{
		Kind:      jobs.KindPurge,
		Source:    audioID,
		DedupeKey: fmt.Sprintf("purge:%s", audioID),
		Payload: jobs.JobPayload{
			SourceAudioID: audioID,
			Prefix:        media.DerivedPrefix(audio.SpeakerID, audioID),
		},
	})
	return nil
}

func (s *Session) enqueue(req jobs.EnqueueRequest) {
	if s.queue == nil {
		return
	}
	if _, ok := s.queue.Enqueue(req); !ok {
		log.Debug("Job %s already queued", req.DedupeKey)
	}
}

// flushSnippets is the sync controller's flush target: one batched write of
// the selected audio's full snippet list.
func (s *Session) flushSnippets(ctx context.Context) error {
	audio, ok := s.audios.Selected()
	if !ok {
		return nil
	}
	return s.docs.UpdateSnippets(ctx, audio.ID, s.snippets.Resolve(audio.SnippetIDs))
}

// ApplySettings installs new runtime settings without a restart.
func (s *Session) ApplySettings(settings config.RuntimeSettings) {
	s.settings.set(settings.SplitSeparator)
	s.sync.SetQuietPeriod(time.Duration(settings.SyncQuietSeconds) * time.Second)
}

// SyncState exposes the debounce state machine for the status surface.
func (s *Session) SyncState() syncer.State {
	return s.sync.State()
}

// GuardRaised reports whether leaving now would abandon unflushed edits.
func (s *Session) GuardRaised() bool {
	return s.sync.GuardRaised()
}

// RetrySync re-arms the flush after a rejection.
func (s *Session) RetrySync() {
	s.sync.Retry()
}

// ErrorMessage surfaces the most pressing user-visible failure: a rejected
// flush wins over transient gateway notices.
func (s *Session) ErrorMessage() string {
	if msg := s.sync.ErrorMessage(); msg != "" {
		return msg
	}
	return s.notice.get()
}

// ClearError dismisses the transient notice. A sync failure message can only
// be cleared by a fulfilled flush.
func (s *Session) ClearError() {
	s.notice.set("")
}
