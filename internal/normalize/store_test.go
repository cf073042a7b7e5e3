package normalize

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/classhub/classhub/internal/backend"
	"github.com/classhub/classhub/pkg/config"
	"github.com/classhub/classhub/pkg/entity"
	"github.com/classhub/classhub/pkg/fault"
)

// fakeClient records calls and plays back canned responses.
type fakeClient struct {
	calls   int
	lists   []*backend.ListResult
	getDoc  backend.Doc
	getErr  error
	created backend.Doc
	stored  backend.Doc
}

func (f *fakeClient) List(ctx context.Context, kind entity.Kind, page backend.Page) (*backend.ListResult, error) {
	f.calls++
	if len(f.lists) == 0 {
		return &backend.ListResult{Total: -1}, nil
	}
	res := f.lists[0]
	f.lists = f.lists[1:]
	return res, nil
}

func (f *fakeClient) Get(ctx context.Context, kind entity.Kind, id string) (backend.Doc, error) {
	f.calls++
	return f.getDoc, f.getErr
}

func (f *fakeClient) Create(ctx context.Context, kind entity.Kind, doc backend.Doc) (backend.Doc, error) {
	f.calls++
	f.created = doc
	if f.stored != nil {
		return f.stored, nil
	}
	return doc, nil
}

func (f *fakeClient) Update(ctx context.Context, kind entity.Kind, id string, doc backend.Doc) (backend.Doc, error) {
	f.calls++
	f.created = doc
	if f.stored != nil {
		return f.stored, nil
	}
	return doc, nil
}

func (f *fakeClient) Delete(ctx context.Context, kind entity.Kind, id string) error {
	f.calls++
	return f.getErr
}

func newTestStore(t *testing.T, backendName string, client backend.Client) *Store {
	t.Helper()
	s, err := NewStore(backendName, client)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestValidateMappings(t *testing.T) {
	if err := ValidateMappings(); err != nil {
		t.Fatalf("mapping tables invalid: %v", err)
	}
}

func TestRoundTripIdentity(t *testing.T) {
	// normalize(denormalize(doc)) must reproduce every writable field.
	docs := map[entity.Kind]Doc{
		entity.KindStudent: {
			"fullName":  "Ada Lovelace",
			"email":     "ada@classhub.example",
			"grade":     "10",
			"status":    "active",
			"avatarUrl": "https://cdn.example/ada.png",
		},
		entity.KindAnnouncement: {
			"title":     "Sports day",
			"body":      "Friday on the main field.",
			"category":  "events",
			"published": true,
			"authorId":  "t-1",
			"attachments": []any{
				map[string]any{"id": "a1", "name": "map.pdf", "url": "u", "size": float64(12), "type": "application/pdf"},
			},
		},
		entity.KindDocument: {
			"title":    "Enrollment form",
			"category": "admissions",
			"fileUrl":  "https://cdn.example/form.pdf",
			"fileSize": int64(4096),
			"fileType": "application/pdf",
			"ownerId":  "t-2",
		},
	}

	for _, backendName := range []string{config.BackendPostgres, config.BackendREST} {
		s := newTestStore(t, backendName, &fakeClient{})
		for kind, doc := range docs {
			t.Run(backendName+"/"+string(kind), func(t *testing.T) {
				wire, err := s.Denormalize(kind, doc, true)
				if err != nil {
					t.Fatalf("Denormalize: %v", err)
				}
				back, err := s.Normalize(kind, wire)
				if err != nil {
					t.Fatalf("Normalize: %v", err)
				}
				for field, want := range doc {
					if got, ok := back[field]; !ok || !reflect.DeepEqual(got, want) {
						t.Errorf("field %s = %v (%v), want %v", field, got, ok, want)
					}
				}
			})
		}
	}
}

func TestDenormalizeEnumEncoding(t *testing.T) {
	pg := newTestStore(t, config.BackendPostgres, &fakeClient{})
	rest := newTestStore(t, config.BackendREST, &fakeClient{})

	doc := Doc{"fullName": "Bo", "email": "bo@x", "status": "archived"}

	pgWire, err := pg.Denormalize(entity.KindStudent, doc, true)
	if err != nil {
		t.Fatalf("Denormalize pg: %v", err)
	}
	if pgWire["status_code"] != 3 {
		t.Errorf("postgres wire status_code = %v, want 3", pgWire["status_code"])
	}

	restWire, err := rest.Denormalize(entity.KindStudent, doc, true)
	if err != nil {
		t.Fatalf("Denormalize rest: %v", err)
	}
	if restWire["status"] != "archived" {
		t.Errorf("rest wire status = %v, want symbol", restWire["status"])
	}
}

func TestDenormalizeTieBreak(t *testing.T) {
	s := newTestStore(t, config.BackendPostgres, &fakeClient{})

	tests := []struct {
		name string
		doc  Doc
		want any
		omit bool
	}{
		{"canonical wins over alias", Doc{"fullName": "New", "full_name": "Old", "email": "e"}, "New", false},
		{"alias used when canonical empty", Doc{"fullName": "", "full_name": "Old", "email": "e"}, "Old", false},
		{"alias used when canonical missing", Doc{"full_name": "Old", "email": "e"}, "Old", false},
		{"both absent omits field", Doc{"email": "e", "grade": "9"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire, err := s.Denormalize(entity.KindStudent, tt.doc, false)
			if err != nil {
				t.Fatalf("Denormalize: %v", err)
			}
			v, ok := wire["full_name"]
			if tt.omit {
				if ok {
					t.Errorf("full_name should be omitted, got %v", v)
				}
				return
			}
			if v != tt.want {
				t.Errorf("full_name = %v, want %v", v, tt.want)
			}
		})
	}
}

func TestCreateRequiredFieldFailsBeforeNetwork(t *testing.T) {
	fake := &fakeClient{}
	s := newTestStore(t, config.BackendPostgres, fake)

	_, err := s.Create(context.Background(), entity.KindStudent, Doc{"grade": "9"})
	if fault.KindOf(err) != fault.Validation {
		t.Fatalf("kind = %v, want validation", fault.KindOf(err))
	}
	if fake.calls != 0 {
		t.Errorf("backend was called %d times, want 0", fake.calls)
	}
}

func TestUpdateDoesNotRequireCreateFields(t *testing.T) {
	fake := &fakeClient{}
	s := newTestStore(t, config.BackendPostgres, fake)

	if _, err := s.Update(context.Background(), entity.KindStudent, "s1", Doc{"grade": "11"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if fake.created["grade"] != "11" {
		t.Errorf("wire doc = %v", fake.created)
	}
}

func TestNormalizePopulatesAliases(t *testing.T) {
	s := newTestStore(t, config.BackendPostgres, &fakeClient{})

	now := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	doc, err := s.Normalize(entity.KindStudent, backend.Doc{
		"id":          "s1",
		"full_name":   "Ada",
		"email":       "ada@x",
		"status_code": int64(1),
		"created_at":  now,
	})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if doc["fullName"] != "Ada" || doc["full_name"] != "Ada" {
		t.Errorf("alias not populated: %v", doc)
	}
	if doc["status"] != "active" {
		t.Errorf("status = %v, want decoded symbol", doc["status"])
	}
	if doc["createdAt"] != "2026-03-01T09:30:00Z" || doc["created_at"] != "2026-03-01T09:30:00Z" {
		t.Errorf("timestamps = %v / %v", doc["createdAt"], doc["created_at"])
	}
}

func TestGetAllFlattensPagination(t *testing.T) {
	fake := &fakeClient{
		lists: []*backend.ListResult{
			{Items: []backend.Doc{{"id": "1", "title": "a", "body": "x"}, {"id": "2", "title": "b", "body": "y"}}, Total: 3, HasNext: true},
			{Items: []backend.Doc{{"id": "3", "title": "c", "body": "z"}}, Total: 3},
		},
	}
	s := newTestStore(t, config.BackendREST, fake)

	docs, err := s.GetAll(context.Background(), entity.KindAnnouncement)
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	if len(docs) != 3 {
		t.Fatalf("GetAll returned %d docs, want 3", len(docs))
	}
	if docs[2]["id"] != "3" {
		t.Errorf("order not preserved: %v", docs)
	}
}

func TestGetByIDIdempotent(t *testing.T) {
	// Two reads with no intervening mutation yield equal canonical docs.
	fake := &fakeClient{getDoc: backend.Doc{
		"id":          "s1",
		"full_name":   "Ada",
		"email":       "ada@x",
		"status_code": int64(2),
		"created_at":  time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC),
	}}
	s := newTestStore(t, config.BackendPostgres, fake)

	first, err := s.GetByID(context.Background(), entity.KindStudent, "s1")
	if err != nil {
		t.Fatalf("first GetByID: %v", err)
	}
	second, err := s.GetByID(context.Background(), entity.KindStudent, "s1")
	if err != nil {
		t.Fatalf("second GetByID: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("reads differ:\n first:  %v\n second: %v", first, second)
	}
}

func TestGetByIDNotFoundReturnsNil(t *testing.T) {
	fake := &fakeClient{getErr: fault.New(fault.NotFound, "student missing")}
	s := newTestStore(t, config.BackendPostgres, fake)

	doc, err := s.GetByID(context.Background(), entity.KindStudent, "nope")
	if err != nil {
		t.Fatalf("not-found should not be an error, got %v", err)
	}
	if doc != nil {
		t.Errorf("doc = %v, want nil", doc)
	}
}

func TestGetByIDOtherErrorsPassThrough(t *testing.T) {
	fake := &fakeClient{getErr: fault.New(fault.Transport, "boom")}
	s := newTestStore(t, config.BackendPostgres, fake)

	if _, err := s.GetByID(context.Background(), entity.KindStudent, "s1"); fault.KindOf(err) != fault.Transport {
		t.Errorf("kind = %v, want transport", fault.KindOf(err))
	}
}

func TestDeleteAbsent(t *testing.T) {
	fake := &fakeClient{getErr: fault.New(fault.NotFound, "gone")}
	s := newTestStore(t, config.BackendPostgres, fake)

	existed, err := s.Delete(context.Background(), entity.KindStudent, "x")
	if err != nil || existed {
		t.Errorf("Delete = %v, %v; want false, nil", existed, err)
	}
}

func TestBackendParity(t *testing.T) {
	// Equivalent rows surfaced by either backend must normalize to the
	// same canonical shape.
	created := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)

	pgFake := &fakeClient{getDoc: backend.Doc{
		"id":            "d1",
		"title":         "Syllabus",
		"category_code": int64(2),
		"file_url":      "https://cdn.example/syllabus.pdf",
		"file_size":     int64(2048),
		"file_type":     "application/pdf",
		"created_at":    created,
		"updated_at":    created,
	}}
	restFake := &fakeClient{getDoc: backend.Doc{
		"id":        "d1",
		"title":     "Syllabus",
		"category":  "academic",
		"fileUrl":   "https://cdn.example/syllabus.pdf",
		"fileSize":  int64(2048),
		"fileType":  "application/pdf",
		"createdAt": "2026-01-15T12:00:00Z",
		"updatedAt": "2026-01-15T12:00:00Z",
	}}

	pg := newTestStore(t, config.BackendPostgres, pgFake)
	rest := newTestStore(t, config.BackendREST, restFake)

	fromPG, err := pg.GetByID(context.Background(), entity.KindDocument, "d1")
	if err != nil {
		t.Fatalf("pg GetByID: %v", err)
	}
	fromREST, err := rest.GetByID(context.Background(), entity.KindDocument, "d1")
	if err != nil {
		t.Fatalf("rest GetByID: %v", err)
	}
	if !reflect.DeepEqual(fromPG, fromREST) {
		t.Errorf("canonical shapes differ:\n pg:   %v\n rest: %v", fromPG, fromREST)
	}
}

func TestStudentsTyped(t *testing.T) {
	fake := &fakeClient{lists: []*backend.ListResult{{
		Items: []backend.Doc{{
			"id":          "s1",
			"full_name":   "Ada Lovelace",
			"email":       "ada@x",
			"grade":       "10",
			"status_code": int64(1),
			"created_at":  time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC),
		}},
		Total: -1,
	}}}
	s := newTestStore(t, config.BackendPostgres, fake)

	students, err := s.Students(context.Background())
	if err != nil {
		t.Fatalf("Students: %v", err)
	}
	if len(students) != 1 {
		t.Fatalf("students = %d, want 1", len(students))
	}
	got := students[0]
	if got.ID != "s1" || got.FullName != "Ada Lovelace" || got.Status != entity.StatusActive {
		t.Errorf("student = %+v", got)
	}
	if !got.CreatedAt.Equal(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("createdAt = %v", got.CreatedAt)
	}
}

func TestAnnouncementsTyped(t *testing.T) {
	fake := &fakeClient{lists: []*backend.ListResult{{
		Items: []backend.Doc{{
			"id":        "a1",
			"title":     "Sports day",
			"body":      "Friday.",
			"category":  "events",
			"published": true,
			"attachments": []any{
				map[string]any{"id": "f1", "name": "map.pdf", "url": "u", "size": float64(12), "type": "application/pdf"},
			},
		}},
		Total: -1,
	}}}
	s := newTestStore(t, config.BackendREST, fake)

	anns, err := s.Announcements(context.Background())
	if err != nil {
		t.Fatalf("Announcements: %v", err)
	}
	if len(anns) != 1 {
		t.Fatalf("announcements = %d, want 1", len(anns))
	}
	got := anns[0]
	if got.Category != entity.CategoryEvents || !got.Published {
		t.Errorf("announcement = %+v", got)
	}
	if len(got.Attachments) != 1 || got.Attachments[0].Name != "map.pdf" || got.Attachments[0].Size != 12 {
		t.Errorf("attachments = %+v", got.Attachments)
	}
}

func TestDocumentsTyped(t *testing.T) {
	fake := &fakeClient{lists: []*backend.ListResult{{
		Items: []backend.Doc{{
			"id":            "d1",
			"title":         "Syllabus",
			"category_code": int64(2),
			"file_url":      "https://cdn.example/syllabus.pdf",
			"file_size":     int64(2048),
			"file_type":     "application/pdf",
		}},
		Total: -1,
	}}}
	s := newTestStore(t, config.BackendPostgres, fake)

	docs, err := s.Documents(context.Background())
	if err != nil {
		t.Fatalf("Documents: %v", err)
	}
	if len(docs) != 1 {
		t.Fatalf("documents = %d, want 1", len(docs))
	}
	got := docs[0]
	if got.Category != entity.CategoryAcademic || got.FileSize != 2048 || got.FileURL != "https://cdn.example/syllabus.pdf" {
		t.Errorf("document = %+v", got)
	}
}

func TestUpdateAvatar(t *testing.T) {
	fake := &fakeClient{}
	s := newTestStore(t, config.BackendPostgres, fake)

	if _, err := s.UpdateAvatar(context.Background(), "s1", "https://cdn.example/new.png"); err != nil {
		t.Fatalf("UpdateAvatar: %v", err)
	}
	if fake.created["avatar_url"] != "https://cdn.example/new.png" {
		t.Errorf("wire doc = %v", fake.created)
	}
}
