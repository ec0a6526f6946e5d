package sourceaudio

import (
	"sync"

	"github.com/vinylaudio/annotator/internal/snippet"
)

// Store tracks which snippets belong to which audio, plus per-audio status
// flags and the current selection. It owns ordering and membership; snippet
// bodies belong to the snippet collection. Membership changes happen only
// through the OnSnippet* reactions, invoked explicitly after each structural
// snippet mutation.
type Store struct {
	mu sync.Mutex

	entities map[string]*SourceAudio
	order    []string

	selectedID  string
	selectedURL string
	// generation guards late async results: a select bumps it, a URL
	// resolution carrying an older generation is dropped.
	generation uint64
}

func NewStore() *Store {
	return &Store{
		entities: make(map[string]*SourceAudio),
	}
}

// Load replaces the whole collection from at-rest documents and returns the
// flattened embedded snippets for the snippet collection to adopt. Selection
// survives only if the selected audio is still present.
func (s *Store) Load(docs []Document) []snippet.Snippet {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entities = make(map[string]*SourceAudio, len(docs))
	s.order = make([]string, 0, len(docs))

	var flat []snippet.Snippet
	for _, doc := range docs {
		audio := doc.SourceAudio
		audio.SnippetIDs = make([]string, 0, len(doc.Snippets))
		for _, sn := range doc.Snippets {
			audio.SnippetIDs = append(audio.SnippetIDs, sn.ID)
			flat = append(flat, sn)
		}
		s.entities[audio.ID] = &audio
		s.order = append(s.order, audio.ID)
	}

	if _, ok := s.entities[s.selectedID]; !ok {
		s.selectedID = ""
		s.selectedURL = ""
	}
	return flat
}

// Upsert inserts or replaces a single audio record.
func (s *Store) Upsert(audio SourceAudio) {
	if audio.ID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[audio.ID]; !ok {
		s.order = append(s.order, audio.ID)
	}
	s.entities[audio.ID] = &audio
}

func (s *Store) Get(id string) (SourceAudio, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	audio, ok := s.entities[id]
	if !ok {
		return SourceAudio{}, false
	}
	return cloneAudio(audio), true
}

// List returns the audios in load order.
func (s *Store) List() []SourceAudio {
	s.mu.Lock()
	defer s.mu.Unlock()
	ret := make([]SourceAudio, 0, len(s.order))
	for _, id := range s.order {
		if audio, ok := s.entities[id]; ok {
			ret = append(ret, cloneAudio(audio))
		}
	}
	return ret
}

// Select makes the audio current (empty id clears the selection) and bumps
// the generation used to discard late URL resolutions. The caller fetches
// the playable URL asynchronously and hands it back via ApplyURL with the
// returned generation.
func (s *Store) Select(id string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedID = id
	s.selectedURL = ""
	s.generation++
	return s.generation
}

// ApplyURL records the playable URL for the selected audio. Returns false
// when the selection has moved on since the fetch started; the result must
// then be discarded.
func (s *Store) ApplyURL(generation uint64, url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if generation != s.generation {
		return false
	}
	s.selectedURL = url
	return true
}

func (s *Store) SelectedID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedID
}

func (s *Store) SelectedURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedURL
}

// Selected returns the currently open audio, if any.
func (s *Store) Selected() (SourceAudio, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	audio, ok := s.entities[s.selectedID]
	if !ok {
		return SourceAudio{}, false
	}
	return cloneAudio(audio), true
}

// OnSnippetCreated appends the new id to the selected audio's membership.
func (s *Store) OnSnippetCreated(snippetID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	audio, ok := s.entities[s.selectedID]
	if !ok {
		return
	}
	for _, id := range audio.SnippetIDs {
		if id == snippetID {
			return
		}
	}
	audio.SnippetIDs = append(audio.SnippetIDs, snippetID)
}

// OnSnippetRemoved drops the id from the selected audio's membership.
func (s *Store) OnSnippetRemoved(snippetID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	audio, ok := s.entities[s.selectedID]
	if !ok {
		return
	}
	kept := audio.SnippetIDs[:0]
	for _, id := range audio.SnippetIDs {
		if id != snippetID {
			kept = append(kept, id)
		}
	}
	audio.SnippetIDs = kept
}

// OnSnippetSplit appends the ids minted by a split. The first part reused an
// existing id, so only ids not already present are added.
func (s *Store) OnSnippetSplit(newIDs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	audio, ok := s.entities[s.selectedID]
	if !ok {
		return
	}
	existing := make(map[string]struct{}, len(audio.SnippetIDs))
	for _, id := range audio.SnippetIDs {
		existing[id] = struct{}{}
	}
	for _, id := range newIDs {
		if _, ok := existing[id]; !ok {
			audio.SnippetIDs = append(audio.SnippetIDs, id)
		}
	}
}

// SetAnnotated flips the annotation flag. The derived-file side effects
// (per-snippet extraction, prefix purge) are the session's responsibility.
func (s *Store) SetAnnotated(id string, annotated bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	audio, ok := s.entities[id]
	if !ok {
		return false
	}
	audio.IsAnnotated = annotated
	return true
}

// SetPreProcessDone marks preprocessing complete and installs the derived
// snippet membership. Only the preprocessing pipeline calls this; there is
// no user-facing path from unprocessed to ready.
func (s *Store) SetPreProcessDone(id string, snippetIDs []string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	audio, ok := s.entities[id]
	if !ok {
		return false
	}
	audio.PreProcessDone = true
	audio.SnippetIDs = append([]string(nil), snippetIDs...)
	return true
}

// SetSpeaker updates the audio's speaker reference.
func (s *Store) SetSpeaker(id string, speaker Speaker) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	audio, ok := s.entities[id]
	if !ok {
		return false
	}
	audio.SpeakerID = speaker.ID
	audio.SpeakerName = speaker.Name
	return true
}

func cloneAudio(audio *SourceAudio) SourceAudio {
	ret := *audio
	ret.SnippetIDs = append([]string(nil), audio.SnippetIDs...)
	return ret
}
