package sourceaudio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vinylaudio/annotator/internal/snippet"
)

func TestStore_LoadNormalizesEmbeddedSnippets(t *testing.T) {
	s := NewStore()

	flat := s.Load([]Document{
		{
			SourceAudio: SourceAudio{ID: "audio-1", Name: "one", PreProcessDone: true},
			Snippets: []snippet.Snippet{
				{ID: "s1", StartTime: 0, EndTime: 5, Text: "Hi."},
				{ID: "s2", StartTime: 5, EndTime: 9, Text: "Bye."},
			},
		},
		{
			SourceAudio: SourceAudio{ID: "audio-2", Name: "two"},
		},
	})

	require.Len(t, flat, 2)

	one, ok := s.Get("audio-1")
	require.True(t, ok)
	assert.Equal(t, []string{"s1", "s2"}, one.SnippetIDs)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "audio-1", list[0].ID)
	assert.Equal(t, "audio-2", list[1].ID)
}

func TestStore_StatusMachine(t *testing.T) {
	s := NewStore()
	s.Upsert(SourceAudio{ID: "a"})

	audio, _ := s.Get("a")
	assert.Equal(t, StatusUnprocessed, audio.Status())

	require.True(t, s.SetPreProcessDone("a", []string{"s1"}))
	audio, _ = s.Get("a")
	assert.Equal(t, StatusReady, audio.Status())
	assert.Equal(t, []string{"s1"}, audio.SnippetIDs)

	require.True(t, s.SetAnnotated("a", true))
	audio, _ = s.Get("a")
	assert.Equal(t, StatusAnnotated, audio.Status())

	// annotated back to ready is allowed
	require.True(t, s.SetAnnotated("a", false))
	audio, _ = s.Get("a")
	assert.Equal(t, StatusReady, audio.Status())

	assert.False(t, s.SetAnnotated("missing", true))
}

func TestStore_MembershipReactions(t *testing.T) {
	s := NewStore()
	s.Load([]Document{{
		SourceAudio: SourceAudio{ID: "a", PreProcessDone: true},
		Snippets:    []snippet.Snippet{{ID: "s1", StartTime: 0, EndTime: 5}},
	}})
	s.Select("a")

	s.OnSnippetCreated("s2")
	s.OnSnippetCreated("s2") // duplicate ids are not appended twice
	audio, _ := s.Get("a")
	assert.Equal(t, []string{"s1", "s2"}, audio.SnippetIDs)

	s.OnSnippetSplit([]string{"s1", "s3"})
	audio, _ = s.Get("a")
	assert.Equal(t, []string{"s1", "s2", "s3"}, audio.SnippetIDs)

	s.OnSnippetRemoved("s2")
	audio, _ = s.Get("a")
	assert.Equal(t, []string{"s1", "s3"}, audio.SnippetIDs)
}

func TestStore_MembershipReactionsRequireSelection(t *testing.T) {
	s := NewStore()
	s.Upsert(SourceAudio{ID: "a"})

	s.OnSnippetCreated("s1")
	audio, _ := s.Get("a")
	assert.Empty(t, audio.SnippetIDs)
}

func TestStore_StaleURLResolutionIsDropped(t *testing.T) {
	s := NewStore()
	s.Upsert(SourceAudio{ID: "a"})
	s.Upsert(SourceAudio{ID: "b"})

	genA := s.Select("a")
	genB := s.Select("b")

	// The fetch for "a" resolves after the user switched to "b".
	assert.False(t, s.ApplyURL(genA, "http://files/a"))
	assert.Empty(t, s.SelectedURL())

	assert.True(t, s.ApplyURL(genB, "http://files/b"))
	assert.Equal(t, "http://files/b", s.SelectedURL())
	assert.Equal(t, "b", s.SelectedID())
}

func TestStore_ClearSelection(t *testing.T) {
	s := NewStore()
	s.Upsert(SourceAudio{ID: "a"})
	s.Select("a")
	s.Select("")

	_, ok := s.Selected()
	assert.False(t, ok)
	assert.Empty(t, s.SelectedID())
}
