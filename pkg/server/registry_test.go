package server

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

// lineSink is an io.Writer collecting whole protocol lines for inspection.
type lineSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *lineSink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		s.lines = append(s.lines, line)
	}
	return len(p), nil
}

func (s *lineSink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

func newTestSession(name string) (*Session, *lineSink) {
	sink := &lineSink{}
	return NewSession(name, newLineWriter(sink)), sink
}

func TestRegistryAddRemove(t *testing.T) {
	r := NewRegistry()
	sess, _ := newTestSession("Alice")

	assert.True(t, r.Add(sess))
	assert.Equal(t, 1, r.Count())
	assert.True(t, r.Contains("Alice"))

	r.Remove("Alice")
	assert.Equal(t, 0, r.Count())
	assert.False(t, r.Contains("Alice"))
}

func TestRegistryRejectsDuplicate(t *testing.T) {
	r := NewRegistry()
	first, _ := newTestSession("alice")
	second, _ := newTestSession("alice")

	assert.True(t, r.Add(first))
	assert.False(t, r.Add(second))
	assert.Equal(t, 1, r.Count())
}

func TestRegistryCaseInsensitive(t *testing.T) {
	r := NewRegistry()
	sess, _ := newTestSession("Alice")
	clash, _ := newTestSession("ALICE")

	assert.True(t, r.Add(sess))
	assert.False(t, r.Add(clash))

	got, ok := r.Get("aLiCe")
	assert.True(t, ok)
	assert.Equal(t, "Alice", got.Name, "registry preserves the case used at login")

	r.Remove("ALICE")
	assert.False(t, r.Contains("Alice"))
}

func TestRegistryConcurrentAddSingleWinner(t *testing.T) {
	r := NewRegistry()

	const attempts = 32
	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, _ := newTestSession("contested")
			if r.Add(sess) {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, r.Count())
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"alice", "Bob", "carol"} {
		sess, _ := newTestSession(name)
		assert.True(t, r.Add(sess))
	}

	names := r.Names()
	assert.Len(t, names, 3)
	assert.ElementsMatch(t, []string{"alice", "Bob", "carol"}, names)
}
