package types

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameSet_Basic(t *testing.T) {
	s := NewNameSet("org.a", "org.b")

	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Has("org.a"))
	assert.False(t, s.Has("org.c"))

	s.Add("org.c", "org.a")
	assert.Equal(t, 3, s.Len())

	s.Remove("org.b")
	s.Remove("org.missing")
	assert.Equal(t, []string{"org.a", "org.c"}, s.Sorted())
	assert.False(t, s.Empty())

	assert.True(t, NewNameSet().Empty())
}

func TestNameSet_RangeAndRemoveIf(t *testing.T) {
	s := NewNameSet("b", "a", "c")

	var seen []string
	s.Range(func(name string) bool {
		seen = append(seen, name)
		// 遍历中删除是安全的
		s.Remove(name)
		return name != "b"
	})
	assert.Equal(t, []string{"a", "b"}, seen)
	assert.Equal(t, []string{"c"}, s.Sorted())

	s = NewNameSet("org.x.1", "org.y.1", "org.x.2")
	n := s.RemoveIf(func(name string) bool { return strings.HasPrefix(name, "org.x.") })
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"org.y.1"}, s.Sorted())
}

func TestNameSet_CloneEqualDifference(t *testing.T) {
	s := NewNameSet("a", "b")
	c := s.Clone()
	c.Add("z")

	assert.False(t, s.Has("z"), "Clone 应为深拷贝")
	assert.False(t, s.Equal(c))
	assert.True(t, s.Equal(NewNameSet("b", "a")))

	assert.Equal(t, []string{"z"}, c.Difference(s).Sorted())
	assert.True(t, s.Difference(c).Empty())
}
