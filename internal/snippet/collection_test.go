package snippet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded(snippets ...Snippet) *Collection {
	c := NewCollection()
	c.Load(snippets)
	return c
}

func TestCollection_CreateSelectsNewSnippet(t *testing.T) {
	c := NewCollection()

	s, ok := c.Create(1.0, 2.5)
	require.True(t, ok)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, s.ID, c.SelectedID())
	assert.Empty(t, s.Text)

	_, ok = c.Create(2.0, 2.0)
	assert.False(t, ok, "zero-length region must be rejected")
	_, ok = c.Create(3.0, 1.0)
	assert.False(t, ok, "inverted region must be rejected")
}

func TestCollection_DeleteClearsSelection(t *testing.T) {
	c := seeded(Snippet{ID: "a", StartTime: 0, EndTime: 1})
	c.Select("a")

	c.Delete("a")

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Empty(t, c.SelectedID())

	// unknown id is a no-op
	c.Delete("missing")
	assert.Equal(t, 0, c.Len())
}

func TestCollection_ResizeClampsRightNeighbor(t *testing.T) {
	c := seeded(
		Snippet{ID: "a", StartTime: 0, EndTime: 10, Text: "A"},
		Snippet{ID: "b", StartTime: 10, EndTime: 20, Text: "B"},
	)

	moved, ok := c.ApplyResize("a", 0, 15, nil)
	require.True(t, ok)
	assert.Equal(t, 15.0, moved.EndTime)
	assert.Equal(t, "A", moved.Text)

	b, _ := c.Get("b")
	assert.Equal(t, 15.0, b.StartTime)
	assert.Equal(t, 20.0, b.EndTime)
}

func TestCollection_ResizeClampsLeftNeighbor(t *testing.T) {
	c := seeded(
		Snippet{ID: "a", StartTime: 0, EndTime: 10},
		Snippet{ID: "b", StartTime: 10, EndTime: 20},
	)

	_, ok := c.ApplyResize("b", 5, 20, nil)
	require.True(t, ok)

	a, _ := c.Get("a")
	assert.Equal(t, 0.0, a.StartTime)
	assert.Equal(t, 5.0, a.EndTime)
	assert.LessOrEqual(t, a.StartTime, a.EndTime)
}

func TestCollection_ResizeTouchingEndpointsNotOverlap(t *testing.T) {
	c := seeded(
		Snippet{ID: "a", StartTime: 0, EndTime: 10},
		Snippet{ID: "b", StartTime: 10, EndTime: 20},
	)

	// Exactly abutting bounds must leave the neighbor alone.
	_, ok := c.ApplyResize("a", 0, 10, nil)
	require.True(t, ok)

	b, _ := c.Get("b")
	assert.Equal(t, 10.0, b.StartTime)
	assert.Equal(t, 20.0, b.EndTime)
}

func TestCollection_ResizeNeighborCoveringBothBoundsKeepsLeftPortion(t *testing.T) {
	c := seeded(
		Snippet{ID: "big", StartTime: 0, EndTime: 100},
		Snippet{ID: "small", StartTime: 40, EndTime: 50},
	)

	_, ok := c.ApplyResize("small", 42, 48, nil)
	require.True(t, ok)

	big, _ := c.Get("big")
	assert.Equal(t, 0.0, big.StartTime)
	assert.Equal(t, 42.0, big.EndTime)
}

func TestCollection_ResizeScopeLimitsClampedNeighbors(t *testing.T) {
	c := seeded(
		Snippet{ID: "a", StartTime: 0, EndTime: 10},
		Snippet{ID: "in", StartTime: 10, EndTime: 14},
		Snippet{ID: "out", StartTime: 8, EndTime: 20},
	)

	_, ok := c.ApplyResize("a", 0, 15, []string{"a", "in"})
	require.True(t, ok)

	in, _ := c.Get("in")
	assert.Equal(t, 15.0, in.StartTime, "scoped neighbor is clamped")
	out, _ := c.Get("out")
	assert.Equal(t, 8.0, out.StartTime, "snippet outside the scope is untouched")
	assert.Equal(t, 20.0, out.EndTime)
}

func TestCollection_SplitProportionsAndExactFinalBoundary(t *testing.T) {
	c := seeded(Snippet{ID: "s1", StartTime: 0, EndTime: 5, Text: "Hi. There."})

	parts := c.Split("s1", []SplitPart{
		{ID: NewID(), Text: "Hi."},
		{ID: NewID(), Text: " There."},
	})
	require.Len(t, parts, 2)

	// Character ratio 3:7 of a 10 char total over a 5 s span.
	assert.Equal(t, "s1", parts[0].ID, "first part reuses the target id")
	assert.Equal(t, 0.0, parts[0].StartTime)
	assert.InDelta(t, 1.5, parts[0].EndTime, 1e-9)
	assert.Equal(t, parts[0].EndTime, parts[1].StartTime, "parts chain without gaps")
	assert.Equal(t, 5.0, parts[1].EndTime, "last boundary is pinned, not accumulated")

	total := 0.0
	for _, p := range parts {
		total += p.Duration()
	}
	assert.InDelta(t, 5.0, total, 1e-9)
	assert.Equal(t, 2, c.Len())
}

func TestCollection_SplitProportionsCountRunesNotBytes(t *testing.T) {
	c := seeded(Snippet{ID: "s1", StartTime: 0, EndTime: 10, Text: "aé"})

	parts := c.Split("s1", []SplitPart{
		{ID: NewID(), Text: "a"},
		{ID: NewID(), Text: "é"},
	})
	require.Len(t, parts, 2)

	// One rune each, so the cut sits at the midpoint even though é is two
	// bytes long.
	assert.InDelta(t, 5.0, parts[0].EndTime, 1e-9)
	assert.Equal(t, 10.0, parts[1].EndTime)
}

func TestCollection_SplitGuards(t *testing.T) {
	c := seeded(Snippet{ID: "s1", StartTime: 0, EndTime: 5, Text: "Hi."})

	assert.Nil(t, c.Split("s1", nil))
	assert.Nil(t, c.Split("s1", []SplitPart{{ID: "x", Text: ""}}))
	assert.Nil(t, c.Split("missing", []SplitPart{{ID: "x", Text: "t"}}))
	assert.Equal(t, 1, c.Len())
}

func TestCollection_MergeDeterministicOverTimeOrder(t *testing.T) {
	a := Snippet{ID: "a", StartTime: 0, EndTime: 5, Text: "Hi."}
	b := Snippet{ID: "b", StartTime: 5, EndTime: 9, Text: "Bye."}

	// Selection order b-then-a must yield the same result as a-then-b.
	for _, order := range [][]string{{"a", "b"}, {"b", "a"}} {
		c := seeded(a, b)
		c.OpenMerge(order[0])
		c.ToggleMergeCandidate(order[1])

		merged, removed, ok := c.ConfirmMerge()
		require.True(t, ok)
		assert.Equal(t, "a", merged.ID)
		assert.Equal(t, 0.0, merged.StartTime)
		assert.Equal(t, 9.0, merged.EndTime)
		assert.Equal(t, "Hi. Bye.", merged.Text)
		assert.Equal(t, []string{"b"}, removed)
		assert.Equal(t, 1, c.Len())

		active, _ := c.MergeSession()
		assert.False(t, active)
	}
}

func TestCollection_MergeReducesCountBySelectedMinusOne(t *testing.T) {
	c := seeded(
		Snippet{ID: "a", StartTime: 0, EndTime: 1, Text: "one"},
		Snippet{ID: "b", StartTime: 1, EndTime: 2, Text: "two"},
		Snippet{ID: "c", StartTime: 2, EndTime: 3, Text: "three"},
		Snippet{ID: "d", StartTime: 3, EndTime: 4, Text: "four"},
	)

	c.OpenMerge("a")
	c.ToggleMergeCandidate("b")
	c.ToggleMergeCandidate("c")

	_, removed, ok := c.ConfirmMerge()
	require.True(t, ok)
	assert.Len(t, removed, 2)
	assert.Equal(t, 2, c.Len())
}

func TestCollection_ToggleMergeCandidateRemovesExisting(t *testing.T) {
	c := seeded(
		Snippet{ID: "a", StartTime: 0, EndTime: 1},
		Snippet{ID: "b", StartTime: 1, EndTime: 2},
	)

	c.OpenMerge("a")
	c.ToggleMergeCandidate("b")
	c.ToggleMergeCandidate("b")

	_, ids := c.MergeSession()
	assert.Equal(t, []string{"a"}, ids)

	_, _, ok := c.ConfirmMerge()
	assert.False(t, ok, "single-snippet merge must not mutate")
	assert.Equal(t, 2, c.Len())
}

func TestCollection_CancelMergeKeepsSnippets(t *testing.T) {
	c := seeded(
		Snippet{ID: "a", StartTime: 0, EndTime: 1, Text: "one"},
		Snippet{ID: "b", StartTime: 1, EndTime: 2, Text: "two"},
	)

	c.OpenMerge("a")
	c.ToggleMergeCandidate("b")
	c.CancelMerge()

	active, ids := c.MergeSession()
	assert.False(t, active)
	assert.Empty(t, ids)
	assert.Equal(t, 2, c.Len())
}

func TestCollection_ResolveSortsAndSkipsDeadIDs(t *testing.T) {
	c := seeded(
		Snippet{ID: "late", StartTime: 7, EndTime: 8},
		Snippet{ID: "early", StartTime: 1, EndTime: 2},
	)

	got := c.Resolve([]string{"late", "gone", "early"})
	require.Len(t, got, 2)
	assert.Equal(t, "early", got[0].ID)
	assert.Equal(t, "late", got[1].ID)
}
