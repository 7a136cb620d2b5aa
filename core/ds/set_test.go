package ds

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSet_AddRemove(t *testing.T) {
	s := NewSet(3, 1, 2)
	require.Equal(t, 3, s.Len())
	require.False(t, s.Add(1))
	require.True(t, s.Add(4))
	require.Equal(t, []int{3, 1, 2, 4}, s.Values())

	require.True(t, s.Remove(1))
	require.False(t, s.Remove(1))
	require.False(t, s.Contains(1))
	require.Equal(t, []int{3, 2, 4}, s.Values())
	require.Equal(t, "[3 2 4]", s.String())
}

func TestSet_Index(t *testing.T) {
	s := NewSet("a", "b", "c")
	s.Remove("a")
	i, ok := s.Index("c")
	require.True(t, ok)
	require.Equal(t, 1, i)
	_, ok = s.Index("a")
	require.False(t, ok)
}

func TestSet_ZeroValueMember(t *testing.T) {
	s := NewSet(0, 1)
	s.Remove(1)
	require.Equal(t, []int{0}, s.Values())
	s.Remove(0)
	require.True(t, s.IsEmpty())
	require.Empty(t, s.Values())
}

func TestSet_Compact(t *testing.T) {
	s := NewSet[int]()
	for i := 0; i < 200; i++ {
		s.Add(i)
	}
	for i := 0; i < 150; i++ {
		s.Remove(i)
	}
	require.Equal(t, 50, s.Len())
	require.Equal(t, 150, s.Values()[0])
	s.Add(1000)
	require.Equal(t, 1000, s.Values()[50])

	s.Clear()
	require.True(t, s.IsEmpty())
}
