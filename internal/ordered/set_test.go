package ordered

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSet_InsertionOrder(t *testing.T) {
	s := New(3, 1, 2)
	assert.Equal(t, []int{3, 1, 2}, s.Slice())

	assert.False(t, s.Add(1), "duplicate add should report false")
	assert.True(t, s.Add(7))
	assert.Equal(t, []int{3, 1, 2, 7}, s.Slice())
}

func TestSet_RemoveKeepsOrder(t *testing.T) {
	s := New("a", "b", "c", "d")
	require.True(t, s.Remove("b"))
	require.False(t, s.Remove("b"))

	assert.Equal(t, []string{"a", "c", "d"}, s.Slice())
	assert.Equal(t, 3, s.Len())
	assert.False(t, s.Contains("b"))

	// Re-adding appends at the end.
	s.Add("b")
	assert.Equal(t, []string{"a", "c", "d", "b"}, s.Slice())
}

func TestSet_Compaction(t *testing.T) {
	s := &Set[int]{}
	for i := 0; i < 200; i++ {
		s.Add(i)
	}
	for i := 0; i < 200; i += 2 {
		s.Remove(i)
	}

	require.Equal(t, 100, s.Len())
	got := s.Slice()
	for i, v := range got {
		assert.Equal(t, 2*i+1, v)
	}
	for i := 1; i < 200; i += 2 {
		assert.True(t, s.Contains(i))
	}
	assert.LessOrEqual(t, len(s.items), 200)
}

func TestSet_NilSafe(t *testing.T) {
	var s *Set[int]
	assert.Equal(t, 0, s.Len())
	assert.False(t, s.Contains(1))
	assert.Nil(t, s.Slice())
	for range s.All() {
		t.Fatal("nil set should not yield")
	}
}

func TestSet_AllStopsEarly(t *testing.T) {
	s := New(1, 2, 3, 4)
	seen := 0
	for v := range s.All() {
		seen++
		if v == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)
}

func TestSet_FilterAndClone(t *testing.T) {
	s := New(1, 2, 3, 4, 5)
	assert.Equal(t, []int{2, 4}, s.Filter(func(v int) bool { return v%2 == 0 }))

	c := s.Clone()
	c.Remove(1)
	assert.True(t, s.Contains(1))
	assert.Equal(t, 4, c.Len())

	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.True(t, s.Add(9))
}
