package history

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
)

type snapshot struct {
	Name string `json:"name"`
	Beds int    `json:"number_of_beds"`
}

func TestTracker_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	tracker := NewTracker(repo)
	id := uuid.New()
	by := uuid.New()

	if err := tracker.RecordCreate(ctx, "facility", id, snapshot{Name: "Kenyatta", Beds: 10}, &by); err != nil {
		t.Fatalf("RecordCreate: %v", err)
	}
	if err := tracker.RecordUpdate(ctx, "facility", id, 2, snapshot{Name: "Kenyatta", Beds: 20}, &by); err != nil {
		t.Fatalf("RecordUpdate: %v", err)
	}
	if err := tracker.RecordDelete(ctx, "facility", id, 3, nil); err != nil {
		t.Fatalf("RecordDelete: %v", err)
	}

	entries, total, err := tracker.ListVersions(ctx, "facility", id, 10, 0)
	if err != nil {
		t.Fatalf("ListVersions: %v", err)
	}
	if total != 3 || len(entries) != 3 {
		t.Fatalf("expected 3 versions, got total=%d len=%d", total, len(entries))
	}
	if entries[0].VersionID != 3 || entries[0].Action != ActionDelete {
		t.Errorf("expected newest first delete, got %+v", entries[0])
	}
	if string(entries[0].Resource) != "null" {
		t.Errorf("expected null delete snapshot, got %s", entries[0].Resource)
	}
	if entries[2].Action != ActionCreate || entries[2].ChangedBy == nil || *entries[2].ChangedBy != by {
		t.Errorf("unexpected create entry %+v", entries[2])
	}

	v2, err := tracker.GetVersion(ctx, "facility", id, 2)
	if err != nil {
		t.Fatalf("GetVersion: %v", err)
	}
	if string(v2.Resource) != `{"name":"Kenyatta","number_of_beds":20}` {
		t.Errorf("unexpected v2 snapshot %s", v2.Resource)
	}

	if _, err := tracker.GetVersion(ctx, "facility", id, 9); !errors.Is(err, ErrVersionNotFound) {
		t.Errorf("expected ErrVersionNotFound, got %v", err)
	}
}

func TestMemoryRepository_ListPaging(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(NewMemoryRepository())
	id := uuid.New()
	for v := 1; v <= 5; v++ {
		if err := tracker.RecordUpdate(ctx, "facility", id, v, snapshot{Beds: v}, nil); err != nil {
			t.Fatal(err)
		}
	}
	// Another record's history must not leak in.
	tracker.RecordCreate(ctx, "facility", uuid.New(), snapshot{}, nil)

	page, total, _ := tracker.ListVersions(ctx, "facility", id, 2, 2)
	if total != 5 || len(page) != 2 {
		t.Fatalf("expected total 5 and 2 entries, got %d/%d", total, len(page))
	}
	if page[0].VersionID != 3 || page[1].VersionID != 2 {
		t.Errorf("unexpected page %d,%d", page[0].VersionID, page[1].VersionID)
	}

	empty, _, _ := tracker.ListVersions(ctx, "facility", id, 2, 10)
	if len(empty) != 0 {
		t.Errorf("expected empty page past end, got %d", len(empty))
	}
}
