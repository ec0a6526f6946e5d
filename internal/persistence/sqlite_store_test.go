package persistence

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinylaudio/annotator/internal/jobs"
	"github.com/vinylaudio/annotator/internal/snippet"
	"github.com/vinylaudio/annotator/internal/sourceaudio"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "annotator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStore_SourceAudioRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddSpeaker(ctx, sourceaudio.Speaker{ID: "sp-1", Name: "Linh"}))
	require.NoError(t, store.AddSourceAudio(ctx, sourceaudio.Document{
		SourceAudio: sourceaudio.SourceAudio{
			ID:             "audio-1",
			Name:           "morning-take",
			StorageRefPath: "source-audios/morning-take.wav",
			Subtitle:       "source-audios/morning-take.srt",
			SpeakerID:      "sp-1",
		},
	}))

	doc, ok, err := store.GetSourceAudio(ctx, "audio-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Linh", doc.SpeakerName, "speaker name resolved on read")
	assert.False(t, doc.PreProcessDone)
	assert.Empty(t, doc.Snippets)

	_, ok, err = store.GetSourceAudio(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStore_UpdateSnippetsIsBatched(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddSourceAudio(ctx, sourceaudio.Document{
		SourceAudio: sourceaudio.SourceAudio{ID: "audio-1", Name: "a", StorageRefPath: "p"},
	}))

	snippets := []snippet.Snippet{
		{ID: "s1", StartTime: 0, EndTime: 5, Text: "Hi."},
		{ID: "s2", StartTime: 5, EndTime: 9, Text: "Bye."},
	}
	require.NoError(t, store.UpdateSnippets(ctx, "audio-1", snippets))

	doc, ok, err := store.GetSourceAudio(ctx, "audio-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, snippets, doc.Snippets)

	err = store.UpdateSnippets(ctx, "missing", snippets)
	assert.Error(t, err, "flush against an unknown audio must be rejected")
}

func TestSQLiteStore_SetPreProcessDone(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddSourceAudio(ctx, sourceaudio.Document{
		SourceAudio: sourceaudio.SourceAudio{ID: "audio-1", Name: "a", StorageRefPath: "p"},
	}))

	derived := []snippet.Snippet{{ID: "s1", StartTime: 1, EndTime: 4.5, Text: "Hello there."}}
	require.NoError(t, store.SetPreProcessDone(ctx, "audio-1", derived))

	doc, _, err := store.GetSourceAudio(ctx, "audio-1")
	require.NoError(t, err)
	assert.True(t, doc.PreProcessDone)
	assert.Equal(t, derived, doc.Snippets)
}

func TestSQLiteStore_AnnotatedAndSpeakerUpdates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddSpeaker(ctx, sourceaudio.Speaker{ID: "sp-1", Name: "Minh"}))
	require.NoError(t, store.AddSourceAudio(ctx, sourceaudio.Document{
		SourceAudio: sourceaudio.SourceAudio{ID: "audio-1", Name: "a", StorageRefPath: "p"},
	}))

	require.NoError(t, store.UpdateAnnotated(ctx, "audio-1", true))
	require.NoError(t, store.UpdateSpeaker(ctx, "audio-1", "sp-1"))

	doc, _, err := store.GetSourceAudio(ctx, "audio-1")
	require.NoError(t, err)
	assert.True(t, doc.IsAnnotated)
	assert.Equal(t, "sp-1", doc.SpeakerID)
	assert.Equal(t, "Minh", doc.SpeakerName)

	require.NoError(t, store.UpdateAnnotated(ctx, "audio-1", false))
	doc, _, err = store.GetSourceAudio(ctx, "audio-1")
	require.NoError(t, err)
	assert.False(t, doc.IsAnnotated)
}

func TestSQLiteStore_Speakers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddSpeaker(ctx, sourceaudio.Speaker{ID: "sp-1", Name: "An"}))
	require.NoError(t, store.AddSpeaker(ctx, sourceaudio.Speaker{ID: "sp-2", Name: "Binh"}))

	list, err := store.ListSpeakers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	sp, ok, err := store.GetSpeaker(ctx, "sp-2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Binh", sp.Name)

	_, ok, err = store.GetSpeaker(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStore_Users(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.EnsureUser(ctx, User{
		ID:          "u1",
		DisplayName: "Annotator One",
		Email:       "one@example.com",
		Token:       "tok-1",
	}))
	// Re-ensuring the same id updates instead of failing.
	require.NoError(t, store.EnsureUser(ctx, User{
		ID:          "u1",
		DisplayName: "Annotator 1",
		Email:       "one@example.com",
		Token:       "tok-1",
	}))

	u, ok, err := store.GetUserByToken(ctx, "tok-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Annotator 1", u.DisplayName)

	_, ok, err = store.GetUserByToken(ctx, "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStore_JobsRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	job := &jobs.ProcessingJob{
		ID:        "job-1",
		Kind:      jobs.KindSlice,
		Source:    "annotate",
		DedupeKey: "slice|audio-1|s1",
		Payload: jobs.JobPayload{
			SourceAudioID: "audio-1",
			SpeakerID:     "sp-1",
			SnippetID:     "s1",
			StartTime:     0,
			EndTime:       5,
			Text:          "Hi.",
		},
		Status:    jobs.StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.UpsertJob(ctx, job))

	job.Status = jobs.StatusSuccess
	require.NoError(t, store.UpsertJob(ctx, job))

	loaded, err := store.LoadJobs(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, jobs.StatusSuccess, loaded[0].Status)
	assert.Equal(t, "s1", loaded[0].Payload.SnippetID)

	require.NoError(t, store.DeleteJob(ctx, "job-1"))
	loaded, err = store.LoadJobs(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestSQLiteStore_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotator.db")

	first, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}
