package session

import (
	"strings"

	"github.com/vinylaudio/annotator/internal/snippet"
	"github.com/vinylaudio/annotator/internal/sourceaudio"
)

// Snippet dispatchers. Every structural or content mutation ends with
// MarkDirty so the debounced flush picks it up; membership changes are
// mirrored into the source-audio store before that.

// editableAudio returns the open audio when it still accepts snippet edits.
// An annotated audio is read-only until its flag is lowered again, since its
// training data has already been extracted.
func (s *Session) editableAudio() (sourceaudio.SourceAudio, bool) {
	audio, ok := s.audios.Selected()
	if !ok || audio.IsAnnotated {
		return sourceaudio.SourceAudio{}, false
	}
	return audio, true
}

func (s *Session) Snippet(id string) (snippet.Snippet, bool) {
	return s.snippets.Get(id)
}

func (s *Session) SelectSnippet(id string) {
	s.snippets.Select(id)
}

func (s *Session) SelectedSnippetID() string {
	return s.snippets.SelectedID()
}

// CreateSnippet inserts an empty-text snippet over the dragged-out span and
// selects it. Rejected when no editable audio is open or the span is empty.
func (s *Session) CreateSnippet(start, end float64) (snippet.Snippet, bool) {
	if _, ok := s.editableAudio(); !ok {
		return snippet.Snippet{}, false
	}
	created, ok := s.snippets.Create(start, end)
	if !ok {
		return snippet.Snippet{}, false
	}
	s.audios.OnSnippetCreated(created.ID)
	s.sync.MarkDirty()
	return created, true
}

// ResizeSnippet commits new bounds after clamping any neighbor the span now
// covers. Only the open audio's own snippets count as neighbors; the
// collection holds every audio's snippets and the others' bounds must not
// move.
func (s *Session) ResizeSnippet(id string, start, end float64) (snippet.Snippet, bool) {
	audio, ok := s.editableAudio()
	if !ok || start >= end {
		return snippet.Snippet{}, false
	}
	moved, ok := s.snippets.ApplyResize(id, start, end, audio.SnippetIDs)
	if !ok {
		return snippet.Snippet{}, false
	}
	s.sync.MarkDirty()
	return moved, true
}

// UpdateSnippetText replaces the snippet's transcript text.
func (s *Session) UpdateSnippetText(id, text string) bool {
	if _, ok := s.editableAudio(); !ok {
		return false
	}
	current, ok := s.snippets.Get(id)
	if !ok {
		return false
	}
	current.Text = text
	s.snippets.Upsert(current)
	s.sync.MarkDirty()
	return true
}

func (s *Session) DeleteSnippet(id string) bool {
	if _, ok := s.editableAudio(); !ok {
		return false
	}
	if _, ok := s.snippets.Get(id); !ok {
		return false
	}
	s.snippets.Delete(id)
	s.audios.OnSnippetRemoved(id)
	s.sync.MarkDirty()
	return true
}

// CanSplit reports whether the snippet's text contains the configured
// separator at an interior position, i.e. a split would yield at least two
// parts.
func (s *Session) CanSplit(id string) bool {
	if _, ok := s.editableAudio(); !ok {
		return false
	}
	target, ok := s.snippets.Get(id)
	if !ok {
		return false
	}
	return len(splitParts(target.Text, s.settings.get())) >= 2
}

// SplitSnippet cuts the snippet at each separator occurrence. Part durations
// are proportional to their character share of the span; the separator stays
// attached to the part it terminates and surrounding whitespace is kept, so
// the parts concatenate back to the original text. The first part keeps the
// original id.
func (s *Session) SplitSnippet(id string) ([]snippet.Snippet, bool) {
	if _, ok := s.editableAudio(); !ok {
		return nil, false
	}
	target, ok := s.snippets.Get(id)
	if !ok {
		return nil, false
	}
	texts := splitParts(target.Text, s.settings.get())
	if len(texts) < 2 {
		return nil, false
	}

	parts := make([]snippet.SplitPart, len(texts))
	newIDs := make([]string, 0, len(texts)-1)
	for i, text := range texts {
		parts[i] = snippet.SplitPart{ID: snippet.NewID(), Text: text}
		if i > 0 {
			newIDs = append(newIDs, parts[i].ID)
		}
	}

	result := s.snippets.Split(id, parts)
	if result == nil {
		return nil, false
	}
	s.audios.OnSnippetSplit(newIDs)
	s.sync.MarkDirty()
	return result, true
}

// splitParts cuts text after each separator occurrence, dropping a
// whitespace-only remainder after the final separator.
func splitParts(text, separator string) []string {
	if separator == "" {
		return nil
	}
	var parts []string
	for _, raw := range strings.SplitAfter(text, separator) {
		if strings.TrimSpace(raw) != "" {
			parts = append(parts, raw)
		}
	}
	return parts
}

// StartMerge opens a merge session seeded with one snippet.
func (s *Session) StartMerge(seedID string) bool {
	if _, ok := s.editableAudio(); !ok {
		return false
	}
	if _, ok := s.snippets.Get(seedID); !ok {
		return false
	}
	s.snippets.OpenMerge(seedID)
	return true
}

// ToggleMergeCandidate adds or removes a snippet from the merge selection.
// The selection must stay contiguous in time order: only a neighbor of the
// current span can be added, only an endpoint can be removed.
func (s *Session) ToggleMergeCandidate(id string) bool {
	merging, ids := s.snippets.MergeSession()
	if !merging {
		return false
	}

	ordered := s.orderedSelectedSnippets()
	index := make(map[string]int, len(ordered))
	for i, sn := range ordered {
		index[sn.ID] = i
	}
	candidate, ok := index[id]
	if !ok {
		return false
	}

	min, max := -1, -1
	selected := false
	for _, existing := range ids {
		i, ok := index[existing]
		if !ok {
			continue
		}
		if min == -1 || i < min {
			min = i
		}
		if i > max {
			max = i
		}
		if existing == id {
			selected = true
		}
	}

	if selected {
		if candidate != min && candidate != max {
			return false
		}
	} else if min != -1 && candidate != min-1 && candidate != max+1 {
		return false
	}

	s.snippets.ToggleMergeCandidate(id)
	return true
}

// MergeSelection reports the open merge session, ids in selection order.
func (s *Session) MergeSelection() (bool, []string) {
	return s.snippets.MergeSession()
}

// ConfirmMerge combines the selected snippets into one and mirrors the
// absorbed ids out of the audio's membership.
func (s *Session) ConfirmMerge() (snippet.Snippet, bool) {
	if _, ok := s.editableAudio(); !ok {
		return snippet.Snippet{}, false
	}
	merged, removed, ok := s.snippets.ConfirmMerge()
	if !ok {
		return snippet.Snippet{}, false
	}
	for _, id := range removed {
		s.audios.OnSnippetRemoved(id)
	}
	s.sync.MarkDirty()
	return merged, true
}

func (s *Session) CancelMerge() {
	s.snippets.CancelMerge()
}
