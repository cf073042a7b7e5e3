package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"testing"
	"time"

	"github.com/classhub/classhub/internal/backend"
	"github.com/classhub/classhub/internal/normalize"
	"github.com/classhub/classhub/pkg/config"
	"github.com/classhub/classhub/pkg/entity"
)

type fakeClient struct {
	lists []*backend.ListResult
}

func (f *fakeClient) List(ctx context.Context, kind entity.Kind, page backend.Page) (*backend.ListResult, error) {
	if len(f.lists) == 0 {
		return &backend.ListResult{Total: -1}, nil
	}
	res := f.lists[0]
	f.lists = f.lists[1:]
	return res, nil
}

func (f *fakeClient) Get(ctx context.Context, kind entity.Kind, id string) (backend.Doc, error) {
	return nil, nil
}

func (f *fakeClient) Create(ctx context.Context, kind entity.Kind, doc backend.Doc) (backend.Doc, error) {
	return doc, nil
}

func (f *fakeClient) Update(ctx context.Context, kind entity.Kind, id string, doc backend.Doc) (backend.Doc, error) {
	return doc, nil
}

func (f *fakeClient) Delete(ctx context.Context, kind entity.Kind, id string) error {
	return nil
}

func TestCSVStudents(t *testing.T) {
	created := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	fake := &fakeClient{lists: []*backend.ListResult{{
		Items: []backend.Doc{
			{"id": "s1", "full_name": "Ada Lovelace", "email": "ada@x", "grade": "10", "status_code": int64(1), "created_at": created},
			{"id": "s2", "full_name": "Bo \"Quote\" Chen", "email": "bo@x", "status_code": int64(3)},
		},
		Total: -1,
	}}}
	store, err := normalize.NewStore(config.BackendPostgres, fake)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	var buf bytes.Buffer
	if err := CSV(context.Background(), store, entity.KindStudent, &buf); err != nil {
		t.Fatalf("CSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(records))
	}

	header := records[0]
	if header[0] != "id" || header[1] != "fullName" {
		t.Errorf("header = %v", header)
	}

	byCol := func(row []string, name string) string {
		for i, h := range header {
			if h == name {
				return row[i]
			}
		}
		t.Fatalf("no column %q", name)
		return ""
	}

	if byCol(records[1], "fullName") != "Ada Lovelace" {
		t.Errorf("row 1 = %v", records[1])
	}
	if byCol(records[1], "status") != "active" || byCol(records[2], "status") != "archived" {
		t.Errorf("enum columns not decoded: %v / %v", records[1], records[2])
	}
	if byCol(records[1], "createdAt") != "2026-01-10T09:00:00Z" {
		t.Errorf("createdAt = %v", byCol(records[1], "createdAt"))
	}
	if byCol(records[2], "fullName") != `Bo "Quote" Chen` {
		t.Errorf("quoting mangled: %v", records[2])
	}
	if byCol(records[2], "grade") != "" {
		t.Errorf("absent field should be empty, got %q", byCol(records[2], "grade"))
	}
}

func TestCSVAnnouncementsAttachmentsAsJSON(t *testing.T) {
	fake := &fakeClient{lists: []*backend.ListResult{{
		Items: []backend.Doc{{
			"id":            "a1",
			"title":         "Trip",
			"body":          "Bus leaves at 8.",
			"category_code": int64(4),
			"is_published":  true,
			"attachments":   []any{map[string]any{"id": "f1", "name": "permission.pdf"}},
		}},
		Total: -1,
	}}}
	store, err := normalize.NewStore(config.BackendPostgres, fake)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	var buf bytes.Buffer
	if err := CSV(context.Background(), store, entity.KindAnnouncement, &buf); err != nil {
		t.Fatalf("CSV: %v", err)
	}

	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	row := records[1]
	var cell string
	for i, h := range records[0] {
		if h == "attachments" {
			cell = row[i]
		}
	}
	if cell != `[{"id":"f1","name":"permission.pdf"}]` {
		t.Errorf("attachments cell = %s", cell)
	}
}

func TestCSVEmptyKindStillWritesHeader(t *testing.T) {
	store, err := normalize.NewStore(config.BackendPostgres, &fakeClient{})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	var buf bytes.Buffer
	if err := CSV(context.Background(), store, entity.KindDocument, &buf); err != nil {
		t.Fatalf("CSV: %v", err)
	}
	records, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("rows = %d, want header only", len(records))
	}
}
