package thoughts

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// memStore is an in-memory Store fake preserving insertion order.
type memStore struct {
	order   []string
	records map[string]Thought
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]Thought)}
}

func (s *memStore) GetThought(ctx context.Context, id string) (*Thought, error) {
	stored, ok := s.records[id]
	if !ok {
		return nil, nil
	}
	found := stored.Clone()
	return &found, nil
}

func (s *memStore) GetAllThoughts(ctx context.Context) ([]Thought, error) {
	all := make([]Thought, 0, len(s.order))
	for _, id := range s.order {
		all = append(all, s.records[id].Clone())
	}
	return all, nil
}

func (s *memStore) SaveThought(ctx context.Context, thought Thought) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	if _, ok := s.records[thought.ID]; !ok {
		s.order = append(s.order, thought.ID)
	}
	s.records[thought.ID] = thought.Clone()
	return nil
}

func (s *memStore) DeleteThought(ctx context.Context, id string) error {
	if _, ok := s.records[id]; !ok {
		return nil
	}
	delete(s.records, id)
	for i, storedID := range s.order {
		if storedID == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

type sequentialIDGenerator struct {
	next int
}

func (g *sequentialIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("generated-%d", g.next), nil
}

type failingIDGenerator struct{}

func (failingIDGenerator) NewID() (string, error) {
	return "", errors.New("id generation exhausted")
}

// fakeClock hands out a controllable current time.
type fakeClock struct {
	current time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{current: start}
}

func (c *fakeClock) Now() time.Time {
	return c.current
}

func (c *fakeClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

type recordingNotifier struct {
	shared []Thought
}

func (n *recordingNotifier) ThoughtShared(ctx context.Context, thought Thought) {
	n.shared = append(n.shared, thought)
}

func newTestManager(t *testing.T, store Store, clock *fakeClock) *Manager {
	t.Helper()
	manager, err := NewManager(ManagerConfig{
		Store:      store,
		Clock:      clock.Now,
		IDProvider: &sequentialIDGenerator{},
	})
	if err != nil {
		t.Fatalf("unexpected manager error: %v", err)
	}
	return manager
}

func mustCreate(t *testing.T, manager *Manager, thought Thought) Thought {
	t.Helper()
	created, err := manager.CreateThought(context.Background(), thought)
	if err != nil {
		t.Fatalf("unexpected create error: %v", err)
	}
	if created == nil {
		t.Fatalf("expected created thought")
	}
	return *created
}

func moodBlock(id string, position, intensity int, primary, emoji string) Block {
	return NewMoodBlock(id, "", position, MoodInfo{
		ID:        id + "-mood",
		Primary:   primary,
		Intensity: intensity,
		Emoji:     emoji,
	})
}

func testStart() time.Time {
	return time.Date(2026, time.March, 14, 9, 30, 0, 0, time.UTC)
}
