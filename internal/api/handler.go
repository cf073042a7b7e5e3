// Package api implements the hosted Classhub REST service. It exposes
// versioned CRUD over students, announcements and documents with a
// uniform response envelope, backed by the Postgres entity client. This
// is the surface the rest backend client consumes.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/classhub/classhub/internal/backend"
	"github.com/classhub/classhub/internal/normalize"
	"github.com/classhub/classhub/pkg/config"
	"github.com/classhub/classhub/pkg/entity"
	"github.com/classhub/classhub/pkg/fault"
)

// Store is the persistence surface the handlers need. *postgres.Client
// satisfies it.
type Store interface {
	backend.Client
	ListFiltered(ctx context.Context, kind entity.Kind, page backend.Page, filter map[string]any) (*backend.ListResult, error)
	Count(ctx context.Context, kind entity.Kind, filter map[string]any) (int, error)
}

// Handler is the top-level API handler for the hosted Classhub service.
type Handler struct {
	store Store
}

// NewHandler creates a new API handler over the given store.
func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes registers all API routes on the given ServeMux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/{kind}", h.handleList)
	mux.HandleFunc("POST /api/v1/{kind}", h.handleCreate)
	mux.HandleFunc("GET /api/v1/{kind}/{id}", h.handleGet)
	mux.HandleFunc("PATCH /api/v1/{kind}/{id}", h.handleUpdate)
	mux.HandleFunc("DELETE /api/v1/{kind}/{id}", h.handleDelete)
}

// envelope is the uniform response shape. Every endpoint, success or
// failure, answers with it.
type envelope struct {
	Success   bool     `json:"success"`
	Data      any      `json:"data,omitempty"`
	Message   string   `json:"message,omitempty"`
	Errors    []string `json:"errors,omitempty"`
	Timestamp string   `json:"timestamp"`
}

// pageData is the envelope payload of a bulk read.
type pageData struct {
	Items       []backend.Doc `json:"items"`
	PageNumber  int           `json:"pageNumber"`
	PageSize    int           `json:"pageSize"`
	TotalCount  int           `json:"totalCount"`
	HasNextPage bool          `json:"hasNextPage"`
}

func writeEnvelope(w http.ResponseWriter, status int, data any, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(envelope{
		Success:   status < 400,
		Data:      data,
		Message:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func writeFault(w http.ResponseWriter, err error) {
	var status int
	switch fault.KindOf(err) {
	case fault.NotFound:
		status = http.StatusNotFound
	case fault.Validation:
		status = http.StatusBadRequest
	case fault.Authorization:
		status = http.StatusForbidden
	case fault.Conflict:
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
	}
	writeEnvelope(w, status, nil, fault.UserMessage(err))
}

func kindFromPath(r *http.Request) (entity.Kind, error) {
	k := entity.Kind(r.PathValue("kind"))
	for _, known := range entity.Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fault.New(fault.NotFound, "unknown collection %q", string(k))
}

func roleFrom(r *http.Request) entity.Role {
	switch entity.Role(r.Header.Get("X-Role")) {
	case entity.RoleAdmin:
		return entity.RoleAdmin
	case entity.RoleTeacher:
		return entity.RoleTeacher
	default:
		return entity.RoleStudent
	}
}

// readFilter returns the row filter a caller's role imposes on a
// collection. Students only ever see published announcements.
func readFilter(kind entity.Kind, role entity.Role) map[string]any {
	if kind == entity.KindAnnouncement && role == entity.RoleStudent {
		return map[string]any{"is_published": true}
	}
	return nil
}

func pageFrom(r *http.Request) (backend.Page, error) {
	page := backend.Page{Number: 1, Size: backend.DefaultPageSize}
	if v := r.URL.Query().Get("pageNumber"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return page, fault.New(fault.Validation, "pageNumber %q is not a number", v)
		}
		page.Number = n
	}
	if v := r.URL.Query().Get("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return page, fault.New(fault.Validation, "pageSize %q is not a number", v)
		}
		page.Size = n
	}
	return page.Clamp(), nil
}

// toResponse renders a stored Postgres row in the REST wire shape,
// including id and timestamps.
func toResponse(kind entity.Kind, row backend.Doc) (backend.Doc, error) {
	canonical, err := normalize.ToCanonical(config.BackendPostgres, kind, row)
	if err != nil {
		return nil, err
	}
	return normalize.ToWire(config.BackendREST, kind, canonical, normalize.WireOpts{IncludeReadOnly: true})
}

// fromRequest translates a REST wire body into the Postgres wire shape.
func fromRequest(kind entity.Kind, body backend.Doc, forCreate bool) (backend.Doc, error) {
	canonical, err := normalize.ToCanonical(config.BackendREST, kind, body)
	if err != nil {
		return nil, err
	}
	return normalize.ToWire(config.BackendPostgres, kind, canonical, normalize.WireOpts{ForCreate: forCreate})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFromPath(r)
	if err != nil {
		writeFault(w, err)
		return
	}
	page, err := pageFrom(r)
	if err != nil {
		writeFault(w, err)
		return
	}
	filter := readFilter(kind, roleFrom(r))

	total, err := h.store.Count(r.Context(), kind, filter)
	if err != nil {
		writeFault(w, err)
		return
	}
	res, err := h.store.ListFiltered(r.Context(), kind, page, filter)
	if err != nil {
		writeFault(w, err)
		return
	}

	items := make([]backend.Doc, 0, len(res.Items))
	for _, row := range res.Items {
		doc, err := toResponse(kind, row)
		if err != nil {
			writeFault(w, err)
			return
		}
		items = append(items, doc)
	}

	writeEnvelope(w, http.StatusOK, pageData{
		Items:       items,
		PageNumber:  page.Number,
		PageSize:    page.Size,
		TotalCount:  total,
		HasNextPage: res.HasNext,
	}, "")
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFromPath(r)
	if err != nil {
		writeFault(w, err)
		return
	}
	id := r.PathValue("id")

	row, err := h.store.Get(r.Context(), kind, id)
	if err != nil {
		writeFault(w, err)
		return
	}
	// An unpublished announcement is invisible to students, not
	// forbidden; answering 404 avoids confirming it exists.
	if kind == entity.KindAnnouncement && roleFrom(r) == entity.RoleStudent {
		if published, _ := row["is_published"].(bool); !published {
			writeFault(w, fault.New(fault.NotFound, "announcements %s not found", id))
			return
		}
	}

	doc, err := toResponse(kind, row)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, doc, "")
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFromPath(r)
	if err != nil {
		writeFault(w, err)
		return
	}

	var body backend.Doc
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFault(w, fault.Wrap(fault.Validation, err, "decode request body"))
		return
	}
	wire, err := fromRequest(kind, body, true)
	if err != nil {
		writeFault(w, err)
		return
	}

	row, err := h.store.Create(r.Context(), kind, wire)
	if err != nil {
		writeFault(w, err)
		return
	}
	doc, err := toResponse(kind, row)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeEnvelope(w, http.StatusCreated, doc, "created")
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFromPath(r)
	if err != nil {
		writeFault(w, err)
		return
	}
	id := r.PathValue("id")

	var body backend.Doc
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeFault(w, fault.Wrap(fault.Validation, err, "decode request body"))
		return
	}
	wire, err := fromRequest(kind, body, false)
	if err != nil {
		writeFault(w, err)
		return
	}

	row, err := h.store.Update(r.Context(), kind, id, wire)
	if err != nil {
		writeFault(w, err)
		return
	}
	doc, err := toResponse(kind, row)
	if err != nil {
		writeFault(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, doc, "updated")
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	kind, err := kindFromPath(r)
	if err != nil {
		writeFault(w, err)
		return
	}

	if err := h.store.Delete(r.Context(), kind, r.PathValue("id")); err != nil {
		writeFault(w, err)
		return
	}
	writeEnvelope(w, http.StatusOK, nil, "deleted")
}
