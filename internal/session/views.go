package session

import (
	"github.com/vinylaudio/annotator/internal/region"
	"github.com/vinylaudio/annotator/internal/snippet"
)

var _ region.Handler = (*Session)(nil)

// Derived read models, recomputed on demand from the stores.

// orderedSelectedSnippets resolves the open audio's membership into snippet
// bodies sorted by start time.
func (s *Session) orderedSelectedSnippets() []snippet.Snippet {
	audio, ok := s.audios.Selected()
	if !ok {
		return nil
	}
	return s.snippets.Resolve(audio.SnippetIDs)
}

// SelectedSnippets is the ordered snippet list for the open audio.
func (s *Session) SelectedSnippets() []snippet.Snippet {
	return s.orderedSelectedSnippets()
}

// TotalDuration sums the open audio's snippet durations in seconds.
func (s *Session) TotalDuration() float64 {
	var total float64
	for _, sn := range s.orderedSelectedSnippets() {
		total += sn.Duration()
	}
	return total
}

// TotalWordCount sums word counts over the open audio's snippets.
func (s *Session) TotalWordCount() int {
	var total int
	for _, sn := range s.orderedSelectedSnippets() {
		total += sn.WordCount()
	}
	return total
}

// RegionCreated implements region.Handler: a dragged-out span becomes a new
// snippet, or is rejected when no audio is open.
func (s *Session) RegionCreated(start, end float64) (region.Region, bool) {
	created, ok := s.CreateSnippet(start, end)
	if !ok {
		return region.Region{}, false
	}
	return region.Region{ID: created.ID, Start: created.StartTime, End: created.EndTime}, true
}

// RegionUpdated implements region.Handler: a move/resize commits through
// overlap resolution and the committed bounds are reflected back.
func (s *Session) RegionUpdated(id string, start, end float64) (region.Region, bool) {
	moved, ok := s.ResizeSnippet(id, start, end)
	if !ok {
		return region.Region{}, false
	}
	return region.Region{ID: moved.ID, Start: moved.StartTime, End: moved.EndTime}, true
}
