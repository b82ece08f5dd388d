package collections

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	id   int
	name string
}

func TestOperationsMap_OrderedPreservesInsertionOrder(t *testing.T) {
	m := NewOperationsMap[int, entry](Ordered, func(e entry) int { return e.id })
	m.Put(entry{id: 3, name: "c"})
	m.Put(entry{id: 1, name: "a"})
	m.Put(entry{id: 2, name: "b"})

	names := make([]string, 0, 3)
	for _, e := range m.Values() {
		names = append(names, e.name)
	}
	assert.Equal(t, []string{"c", "a", "b"}, names)
}

func TestOperationsMap_GetAndDelete(t *testing.T) {
	m := NewOperationsMap[int, entry](Unordered, func(e entry) int { return e.id })
	m.Put(entry{id: 1, name: "a"})

	v, ok := m.Get(1)
	require.True(t, ok)
	assert.Equal(t, "a", v.name)

	m.Delete(1)
	_, ok = m.Get(1)
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestOperationsMap_ConcurrentStrategyIsSafeForRace(t *testing.T) {
	m := NewOperationsMap[int, entry](Concurrent, func(e entry) int { return e.id })
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			m.Put(entry{id: i, name: "x"})
		}
		close(done)
	}()
	for i := 0; i < 100; i++ {
		m.Get(i)
	}
	<-done
	assert.Equal(t, 100, m.Len())
}
