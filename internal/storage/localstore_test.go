package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/deepthoughtslab/deepthoughts/internal/thoughts"
)

type fakeClock struct {
	current time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.current
}

func (c *fakeClock) Advance(d time.Duration) {
	c.current = c.current.Add(d)
}

func openTestStore(t *testing.T, clock *fakeClock, ttl time.Duration) (*LocalStore, *gorm.DB) {
	t.Helper()
	databasePath := filepath.Join(t.TempDir(), "storage.db")
	db, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to access sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&Record{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}
	store, err := NewLocalStore(LocalStoreConfig{
		Database: db,
		Clock:    clock.Now,
		CacheTTL: ttl,
	})
	if err != nil {
		t.Fatalf("failed to build store: %v", err)
	}
	return store, db
}

func sampleThought(id, title string, at time.Time) thoughts.Thought {
	return thoughts.Thought{
		ID:        id,
		Title:     title,
		Tags:      []string{"sample"},
		CreatedAt: at,
		UpdatedAt: at,
		Mood:      thoughts.MoodNeutral,
		Blocks: []thoughts.Block{
			thoughts.NewTextBlock(id+"-b1", "body", 0),
		},
	}
}

func TestSaveThoughtRoundTrip(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, time.April, 2, 8, 0, 0, 0, time.UTC)}
	store, _ := openTestStore(t, clock, 10*time.Second)
	ctx := context.Background()

	saved := sampleThought("t-1", "Round trip", clock.current)
	if err := store.SaveThought(ctx, saved); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	loaded, err := store.GetThought(ctx, "t-1")
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if loaded == nil {
		t.Fatalf("expected stored thought")
	}
	if loaded.Title != "Round trip" || len(loaded.Blocks) != 1 {
		t.Fatalf("unexpected round trip result: %#v", loaded)
	}
	if !loaded.CreatedAt.Equal(saved.CreatedAt) {
		t.Fatalf("expected dates reconstituted, got %v", loaded.CreatedAt)
	}
}

func TestSaveThoughtUpsertsByID(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, time.April, 2, 8, 0, 0, 0, time.UTC)}
	store, _ := openTestStore(t, clock, 10*time.Second)
	ctx := context.Background()

	if err := store.SaveThought(ctx, sampleThought("t-1", "first", clock.current)); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if err := store.SaveThought(ctx, sampleThought("t-1", "second", clock.current)); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	all, err := store.GetAllThoughts(ctx)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(all) != 1 || all[0].Title != "second" {
		t.Fatalf("expected single overwritten record, got %#v", all)
	}
}

func TestDeleteThoughtRemovesRecord(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, time.April, 2, 8, 0, 0, 0, time.UTC)}
	store, _ := openTestStore(t, clock, 10*time.Second)
	ctx := context.Background()

	if err := store.SaveThought(ctx, sampleThought("t-1", "doomed", clock.current)); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if err := store.DeleteThought(ctx, "t-1"); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}

	loaded, err := store.GetThought(ctx, "t-1")
	if err != nil {
		t.Fatalf("unexpected get error: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected record removed")
	}
}

func TestDeleteThoughtAbsentIDSkipsWrite(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, time.April, 2, 8, 0, 0, 0, time.UTC)}
	store, db := openTestStore(t, clock, 10*time.Second)
	ctx := context.Background()

	if err := store.DeleteThought(ctx, "missing"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var count int64
	if err := db.Model(&Record{}).Count(&count).Error; err != nil {
		t.Fatalf("unexpected count error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no collection row written, got %d", count)
	}
}

func TestReadCacheServesWithinTTL(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, time.April, 2, 8, 0, 0, 0, time.UTC)}
	store, db := openTestStore(t, clock, 10*time.Second)
	ctx := context.Background()

	if err := store.SaveThought(ctx, sampleThought("t-1", "cached", clock.current)); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	// Mutate the row behind the store's back; a fresh cache must mask it.
	if err := db.Model(&Record{}).
		Where("key = ?", ThoughtCollectionKey).
		Update("value", "[]").Error; err != nil {
		t.Fatalf("unexpected raw update error: %v", err)
	}

	clock.Advance(5 * time.Second)
	all, err := store.GetAllThoughts(ctx)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected cached collection within ttl, got %d records", len(all))
	}

	clock.Advance(6 * time.Second)
	all, err = store.GetAllThoughts(ctx)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected reload after ttl expiry, got %d records", len(all))
	}
}

func TestCorruptCollectionDegradesToEmpty(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, time.April, 2, 8, 0, 0, 0, time.UTC)}
	store, db := openTestStore(t, clock, 10*time.Second)
	ctx := context.Background()

	record := Record{Key: ThoughtCollectionKey, Value: "{not json", UpdatedAtSeconds: clock.current.Unix()}
	if err := db.Create(&record).Error; err != nil {
		t.Fatalf("unexpected insert error: %v", err)
	}

	all, err := store.GetAllThoughts(ctx)
	if err != nil {
		t.Fatalf("read path must not propagate parse failures, got %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("expected empty collection, got %d records", len(all))
	}
}

func TestSaveRepopulatesCacheWithWrittenState(t *testing.T) {
	clock := &fakeClock{current: time.Date(2026, time.April, 2, 8, 0, 0, 0, time.UTC)}
	store, db := openTestStore(t, clock, 10*time.Second)
	ctx := context.Background()

	if err := store.SaveThought(ctx, sampleThought("t-1", "one", clock.current)); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}
	if err := store.SaveThought(ctx, sampleThought("t-2", "two", clock.current)); err != nil {
		t.Fatalf("unexpected save error: %v", err)
	}

	// Drop the backing row entirely; the fresh write cache must still serve
	// both records.
	if err := db.Where("key = ?", ThoughtCollectionKey).Delete(&Record{}).Error; err != nil {
		t.Fatalf("unexpected raw delete error: %v", err)
	}

	all, err := store.GetAllThoughts(ctx)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected cache seeded by write, got %d records", len(all))
	}
}
