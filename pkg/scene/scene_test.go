package scene

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func raw(s string) json.RawMessage { return json.RawMessage(s) }

func TestStore_AddSnapshotOrder(t *testing.T) {
	s := New(3)
	assert.False(t, s.Add(raw(`{"id":"a"}`)))
	assert.False(t, s.Add(raw(`{"id":"b"}`)))

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.JSONEq(t, `{"id":"a"}`, string(snap[0]))
	assert.JSONEq(t, `{"id":"b"}`, string(snap[1]))
	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 3, s.Cap())
}

func TestStore_EvictsOldest(t *testing.T) {
	s := New(2)
	s.Add(raw(`1`))
	s.Add(raw(`2`))
	assert.True(t, s.Add(raw(`3`)))

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "2", string(snap[0]))
	assert.Equal(t, "3", string(snap[1]))
}

func TestStore_CopiesPayload(t *testing.T) {
	s := New(1)
	buf := []byte(`"x"`)
	s.Add(buf)
	buf[1] = 'y'
	assert.Equal(t, `"x"`, string(s.Snapshot()[0]))
}

func TestStore_Disabled(t *testing.T) {
	for _, max := range []int{0, -1} {
		s := New(max)
		assert.False(t, s.Add(raw(`{}`)))
		assert.Empty(t, s.Snapshot())
		assert.Equal(t, 0, s.Len())
	}
}

func TestStore_Clear(t *testing.T) {
	s := New(4)
	s.Add(raw(`1`))
	s.Clear()
	assert.Equal(t, 0, s.Len())
	assert.Empty(t, s.Snapshot())
}

func TestStore_Concurrent(t *testing.T) {
	s := New(50)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				s.Add(raw(fmt.Sprintf(`%d`, i*10+j)))
				_ = s.Snapshot()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 50, s.Len())
}
