package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/classhub/classhub/internal/backend"
	"github.com/classhub/classhub/pkg/entity"
	"github.com/classhub/classhub/pkg/fault"
)

func respond(w http.ResponseWriter, status int, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":   status < 400,
		"data":      data,
		"message":   message,
		"timestamp": "2026-02-01T08:00:00Z",
	})
}

func TestListDecodesPageEnvelope(t *testing.T) {
	var gotQuery, gotKey, gotRole string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/students" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		gotKey = r.Header.Get("X-API-Key")
		gotRole = r.Header.Get("X-Role")
		respond(w, http.StatusOK, map[string]any{
			"items":       []backend.Doc{{"id": "s1", "fullName": "Ada"}, {"id": "s2", "fullName": "Bo"}},
			"pageNumber":  2,
			"pageSize":    25,
			"totalCount":  51,
			"hasNextPage": true,
		}, "")
	}))
	defer srv.Close()

	c := NewClient(srv.URL, WithAPIKey("sekret"), WithRole(entity.RoleTeacher))
	res, err := c.List(context.Background(), entity.KindStudent, backend.Page{Number: 2, Size: 25})
	if err != nil {
		t.Fatalf("List: %v", err)
	}

	if len(res.Items) != 2 || res.Total != 51 || !res.HasNext {
		t.Errorf("result = %+v", res)
	}
	if res.Items[0]["fullName"] != "Ada" {
		t.Errorf("items = %v", res.Items)
	}
	if !strings.Contains(gotQuery, "pageNumber=2") || !strings.Contains(gotQuery, "pageSize=25") {
		t.Errorf("query = %q", gotQuery)
	}
	if gotKey != "sekret" || gotRole != "teacher" {
		t.Errorf("headers: key=%q role=%q", gotKey, gotRole)
	}
}

func TestListClampsOversizedPage(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		respond(w, http.StatusOK, map[string]any{"items": []backend.Doc{}}, "")
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	if _, err := c.List(context.Background(), entity.KindStudent, backend.Page{Number: 0, Size: 5000}); err != nil {
		t.Fatalf("List: %v", err)
	}
	if !strings.Contains(gotQuery, "pageSize=100") || !strings.Contains(gotQuery, "pageNumber=1") {
		t.Errorf("query = %q", gotQuery)
	}
}

func TestStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   fault.Kind
	}{
		{http.StatusNotFound, fault.NotFound},
		{http.StatusConflict, fault.Conflict},
		{http.StatusUnauthorized, fault.Authorization},
		{http.StatusForbidden, fault.Authorization},
		{http.StatusBadRequest, fault.Validation},
		{http.StatusUnprocessableEntity, fault.Validation},
		{http.StatusBadGateway, fault.Transport},
		{http.StatusInternalServerError, fault.Transport},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				respond(w, tt.status, nil, "nope")
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL).Get(context.Background(), entity.KindStudent, "s1")
			if fault.KindOf(err) != tt.want {
				t.Errorf("kind = %v, want %v", fault.KindOf(err), tt.want)
			}
		})
	}
}

func TestErrorCarriesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusBadRequest, nil, "email is required")
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).Create(context.Background(), entity.KindStudent, backend.Doc{})
	if err == nil || !strings.Contains(err.Error(), "email is required") {
		t.Errorf("err = %v, want server message", err)
	}
}

func TestUnsuccessfulEnvelopeIsAnError(t *testing.T) {
	// A 200 whose envelope says success=false is still a failure.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "message": "backend drifted"})
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL).Get(context.Background(), entity.KindStudent, "s1"); err == nil {
		t.Fatal("expected error")
	}
}

func TestCreateRoundTrip(t *testing.T) {
	var gotMethod string
	var gotBody backend.Doc
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		respond(w, http.StatusCreated, backend.Doc{"id": "s9", "fullName": "Ada", "status": "active"}, "created")
	}))
	defer srv.Close()

	doc, err := NewClient(srv.URL).Create(context.Background(), entity.KindStudent,
		backend.Doc{"fullName": "Ada", "status": "active"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if gotMethod != http.MethodPost || gotBody["fullName"] != "Ada" {
		t.Errorf("request: %s %v", gotMethod, gotBody)
	}
	if doc["id"] != "s9" {
		t.Errorf("doc = %v", doc)
	}
}

func TestUpdateUsesPatch(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		respond(w, http.StatusOK, backend.Doc{"id": "s1", "grade": "11"}, "")
	}))
	defer srv.Close()

	if _, err := NewClient(srv.URL).Update(context.Background(), entity.KindStudent, "s1",
		backend.Doc{"grade": "11"}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if gotMethod != http.MethodPatch || gotPath != "/api/v1/students/s1" {
		t.Errorf("request: %s %s", gotMethod, gotPath)
	}
}

func TestDelete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method = %s", r.Method)
		}
		respond(w, http.StatusOK, nil, "deleted")
	}))
	defer srv.Close()

	if err := NewClient(srv.URL).Delete(context.Background(), entity.KindDocument, "d1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestConnectionFailureIsTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	_, err := NewClient(srv.URL).Get(context.Background(), entity.KindStudent, "s1")
	if fault.KindOf(err) != fault.Transport {
		t.Errorf("kind = %v, want transport", fault.KindOf(err))
	}
}
