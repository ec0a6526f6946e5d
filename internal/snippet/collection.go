package snippet

import (
	"sort"
	"sync"
	"unicode/utf8"
)

// Collection is the authoritative in-memory set of snippets for the audio
// currently open for annotation. All operations are total: an unknown id is
// a no-op, never an error. Callers guard preconditions (the UI disables
// actions that do not apply).
type Collection struct {
	mu sync.Mutex

	entities   map[string]Snippet
	selectedID string

	merging    bool
	mergingIDs []string
}

func NewCollection() *Collection {
	return &Collection{
		entities: make(map[string]Snippet),
	}
}

// Load replaces the whole collection and resets selection and any open
// merge session.
func (c *Collection) Load(snippets []Snippet) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entities = make(map[string]Snippet, len(snippets))
	for _, s := range snippets {
		c.entities[s.ID] = s
	}
	c.selectedID = ""
	c.merging = false
	c.mergingIDs = nil
}

func (c *Collection) Select(id string) {
	c.mu.Lock()
	c.selectedID = id
	c.mu.Unlock()
}

func (c *Collection) SelectedID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selectedID
}

func (c *Collection) Get(id string) (Snippet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.entities[id]
	return s, ok
}

func (c *Collection) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entities)
}

// All returns every snippet sorted by start time.
func (c *Collection) All() []Snippet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedByStart(c.entities, nil)
}

// Resolve returns the snippets behind ids sorted by start time. Ids without
// a live snippet are skipped.
func (c *Collection) Resolve(ids []string) []Snippet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedByStart(c.entities, ids)
}

// Create inserts a new empty-text snippet and makes it the selection.
// Returns false when start >= end.
func (c *Collection) Create(start, end float64) (Snippet, bool) {
	if start >= end {
		return Snippet{}, false
	}

	s := Snippet{
		ID:        NewID(),
		StartTime: start,
		EndTime:   end,
	}

	c.mu.Lock()
	c.entities[s.ID] = s
	c.selectedID = s.ID
	c.mu.Unlock()
	return s, true
}

// Upsert replaces the snippet's fields, inserting it when absent.
func (c *Collection) Upsert(s Snippet) {
	if s.ID == "" {
		return
	}
	c.mu.Lock()
	c.entities[s.ID] = s
	c.mu.Unlock()
}

// ResolveOverlap clamps neighbors that the moved snippet's new bounds run
// into, before the moved snippet itself is committed. Only the ids in scope
// are candidates; a nil scope means every snippet. The collection may hold
// snippets of several audios at once, so callers resizing within one audio
// must scope the scan to that audio's membership. Only strict overlap
// counts; snippets that merely touch at an endpoint are left alone.
//
// A neighbor covering the new start keeps its left portion (end clamped to
// the new start). A neighbor covering only the new end keeps its right
// portion (start clamped to the new end). A neighbor covering both bounds is
// treated as a left neighbor and is never split in two.
func (c *Collection) ResolveOverlap(movedID string, newStart, newEnd float64, scope []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	candidates := scope
	if candidates == nil {
		candidates = make([]string, 0, len(c.entities))
		for id := range c.entities {
			candidates = append(candidates, id)
		}
	}
	for _, id := range candidates {
		s, ok := c.entities[id]
		if !ok || id == movedID {
			continue
		}
		switch {
		case s.StartTime < newStart && s.EndTime > newStart:
			s.EndTime = newStart
			c.entities[id] = s
		case s.StartTime < newEnd && s.EndTime > newEnd:
			s.StartTime = newEnd
			c.entities[id] = s
		}
	}
}

// ApplyResize resolves overlap for the new bounds among the scoped neighbors
// and then commits them on the moved snippet, keeping its text. Unknown ids
// are a no-op.
func (c *Collection) ApplyResize(movedID string, newStart, newEnd float64, scope []string) (Snippet, bool) {
	c.mu.Lock()
	moved, ok := c.entities[movedID]
	c.mu.Unlock()
	if !ok {
		return Snippet{}, false
	}

	c.ResolveOverlap(movedID, newStart, newEnd, scope)

	moved.StartTime = newStart
	moved.EndTime = newEnd
	c.Upsert(moved)
	return moved, true
}

// Delete removes the snippet and clears the selection if it pointed at it.
func (c *Collection) Delete(id string) {
	c.mu.Lock()
	delete(c.entities, id)
	if c.selectedID == id {
		c.selectedID = ""
	}
	c.mu.Unlock()
}

// Split replaces one snippet with len(parts) contiguous snippets covering
// the same span. Each part's duration is proportional to its share of the
// parts' combined character length. The first part reuses the target id so
// external references stay valid; the last part's end is pinned to the
// original end rather than trusting the accumulated sum.
//
// Returns the resulting snippets in order, or nil when the target is unknown,
// no parts were given, or the parts carry no text.
func (c *Collection) Split(targetID string, parts []SplitPart) []Snippet {
	if len(parts) == 0 {
		return nil
	}

	totalChars := 0
	for _, p := range parts {
		totalChars += utf8.RuneCountInString(p.Text)
	}
	if totalChars == 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	target, ok := c.entities[targetID]
	if !ok {
		return nil
	}

	span := target.EndTime - target.StartTime
	ret := make([]Snippet, 0, len(parts))
	cursor := target.StartTime
	for i, p := range parts {
		s := Snippet{
			ID:        p.ID,
			Text:      p.Text,
			StartTime: cursor,
			EndTime:   cursor + span*float64(utf8.RuneCountInString(p.Text))/float64(totalChars),
		}
		if i == 0 {
			s.ID = target.ID
		}
		if i == len(parts)-1 {
			s.EndTime = target.EndTime
		}
		cursor = s.EndTime
		ret = append(ret, s)
	}

	for _, s := range ret {
		c.entities[s.ID] = s
	}
	return ret
}

// OpenMerge starts a merge session seeded with one snippet.
func (c *Collection) OpenMerge(seedID string) {
	c.mu.Lock()
	c.merging = true
	c.mergingIDs = []string{seedID}
	c.mu.Unlock()
}

// ToggleMergeCandidate adds or removes a snippet from the merge selection.
// Contiguity of the selection is the caller's policy, not enforced here.
func (c *Collection) ToggleMergeCandidate(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.merging {
		return
	}
	for i, existing := range c.mergingIDs {
		if existing == id {
			c.mergingIDs = append(c.mergingIDs[:i], c.mergingIDs[i+1:]...)
			return
		}
	}
	c.mergingIDs = append(c.mergingIDs, id)
}

// MergeSession reports whether a merge is open and the currently selected
// ids, in selection order.
func (c *Collection) MergeSession() (bool, []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]string, len(c.mergingIDs))
	copy(ids, c.mergingIDs)
	return c.merging, ids
}

// ConfirmMerge combines the merge-selected snippets into one: earliest start,
// latest end, texts joined with a space in time order, earliest snippet's id.
// The absorbed snippets are removed and the session ends. Returns the merged
// snippet, the removed ids and whether a merge happened (at least two live
// selected snippets are required).
func (c *Collection) ConfirmMerge() (Snippet, []string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.merging {
		return Snippet{}, nil, false
	}

	selected := make([]Snippet, 0, len(c.mergingIDs))
	for _, id := range c.mergingIDs {
		if s, ok := c.entities[id]; ok {
			selected = append(selected, s)
		}
	}
	c.merging = false
	c.mergingIDs = nil

	if len(selected) < 2 {
		return Snippet{}, nil, false
	}

	sort.Slice(selected, func(i, j int) bool {
		return selected[i].StartTime < selected[j].StartTime
	})

	merged := Snippet{
		ID:        selected[0].ID,
		StartTime: selected[0].StartTime,
		EndTime:   selected[0].EndTime,
		Text:      selected[0].Text,
	}
	removed := make([]string, 0, len(selected)-1)
	for _, s := range selected[1:] {
		if s.EndTime > merged.EndTime {
			merged.EndTime = s.EndTime
		}
		merged.Text = merged.Text + " " + s.Text
		removed = append(removed, s.ID)
		delete(c.entities, s.ID)
	}

	c.entities[merged.ID] = merged
	return merged, removed, true
}

// CancelMerge discards the merge session without touching any snippet.
func (c *Collection) CancelMerge() {
	c.mu.Lock()
	c.merging = false
	c.mergingIDs = nil
	c.mu.Unlock()
}

func sortedByStart(entities map[string]Snippet, ids []string) []Snippet {
	var ret []Snippet
	if ids == nil {
		ret = make([]Snippet, 0, len(entities))
		for _, s := range entities {
			ret = append(ret, s)
		}
	} else {
		ret = make([]Snippet, 0, len(ids))
		for _, id := range ids {
			if s, ok := entities[id]; ok {
				ret = append(ret, s)
			}
		}
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].StartTime < ret[j].StartTime
	})
	return ret
}
