package store

import (
	"testing"

	"github.com/google/uuid"

	"quillpress/internal/models"
)

func TestMediaStoreLifecycle(t *testing.T) {
	db := testDB(t)
	testProject(t, db, "store-test-media")
	s := NewMediaStore(db)
	ctx := t.Context()

	key := "store-test-media/" + uuid.NewString()[:8] + ".png"
	created, err := s.Create(ctx, &models.Media{
		ProjectID:    "store-test-media",
		Filename:     "cat.png",
		OriginalName: "cat.png",
		ContentType:  "image/png",
		SizeBytes:    2048,
		StorageKey:   key,
		URL:          "/media/images/cat.png",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == uuid.Nil {
		t.Error("expected non-nil UUID")
	}
	if created.SizeBytes != 2048 {
		t.Errorf("size: got %d, want 2048", created.SizeBytes)
	}

	found, err := s.FindByID(ctx, created.ID)
	if err != nil || found == nil {
		t.Fatalf("FindByID: got (%v, %v)", found, err)
	}
	if found.StorageKey != key {
		t.Errorf("storage key: got %q, want %q", found.StorageKey, key)
	}

	items, err := s.List(ctx, "store-test-media", 10, 0)
	if err != nil || len(items) != 1 {
		t.Errorf("List: got (%d items, %v)", len(items), err)
	}
	n, err := s.Count(ctx, "store-test-media")
	if err != nil || n != 1 {
		t.Errorf("Count: got (%d, %v)", n, err)
	}

	deleted, err := s.Delete(ctx, created.ID)
	if err != nil || deleted == nil || deleted.StorageKey != key {
		t.Fatalf("Delete: got (%v, %v)", deleted, err)
	}
	if again, _ := s.FindByID(ctx, created.ID); again != nil {
		t.Error("media still present after Delete")
	}
	if missing, err := s.Delete(ctx, uuid.New()); err != nil || missing != nil {
		t.Errorf("Delete (missing): got (%v, %v)", missing, err)
	}
}
