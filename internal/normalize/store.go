package normalize

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/classhub/classhub/internal/backend"
	"github.com/classhub/classhub/pkg/config"
	"github.com/classhub/classhub/pkg/entity"
	"github.com/classhub/classhub/pkg/fault"
)

// Doc is an entity in canonical shape: canonical field names plus any
// legacy aliases, populated on every read.
type Doc = map[string]any

// Store is the canonical CRUD facade over the active backend client.
// The backend is chosen once at construction and never changes for the
// lifetime of the process; no call ever mixes backends.
type Store struct {
	client  backend.Client
	backend string // config.BackendPostgres or config.BackendREST
}

// NewStore binds the facade to the active backend. The mapping tables
// are validated here so a non-total table aborts startup.
func NewStore(backendName string, client backend.Client) (*Store, error) {
	switch backendName {
	case config.BackendPostgres, config.BackendREST:
	default:
		return nil, fmt.Errorf("unknown backend %q", backendName)
	}
	if err := ValidateMappings(); err != nil {
		return nil, fmt.Errorf("mapping tables: %w", err)
	}
	return &Store{client: client, backend: backendName}, nil
}

// Backend returns the name of the active backend.
func (s *Store) Backend() string { return s.backend }

func wireKey(backendName string, f FieldMapping) string {
	if backendName == config.BackendPostgres {
		return f.Postgres
	}
	return f.REST
}

// pickValue resolves the tie-break rule: the canonical name wins when
// present and non-empty, then aliases in declaration order.
func pickValue(doc Doc, f FieldMapping) (any, bool) {
	if v, ok := doc[f.Canonical]; ok && !isAbsent(v) {
		return v, true
	}
	for _, alias := range f.Aliases {
		if v, ok := doc[alias]; ok && !isAbsent(v) {
			return v, true
		}
	}
	return nil, false
}

// WireOpts controls canonical-to-wire translation.
type WireOpts struct {
	// ForCreate enforces required fields before any network call.
	ForCreate bool
	// IncludeReadOnly also renders id and timestamps; used when a
	// server renders stored entities, never when a client writes.
	IncludeReadOnly bool
}

// ToWire produces the wire doc a backend expects from a canonical doc.
// Absent optional fields are omitted rather than sent as null; a
// required field missing on create fails with a validation error before
// any network call.
func ToWire(backendName string, kind entity.Kind, doc Doc, opts WireOpts) (backend.Doc, error) {
	m, err := Mapping(kind)
	if err != nil {
		return nil, err
	}

	wire := make(backend.Doc)
	for _, f := range m.Fields {
		if f.ReadOnly && !opts.IncludeReadOnly {
			continue
		}
		v, ok := pickValue(doc, f)
		if !ok {
			if opts.ForCreate && f.Required {
				return nil, fault.New(fault.Validation, "%s: %s is required", kind, f.Canonical)
			}
			continue
		}
		if f.Enum != nil && backendName == config.BackendPostgres {
			sym, err := enumSymbol(v)
			if err != nil {
				return nil, fault.Wrap(fault.Validation, err, "%s: %s", kind, f.Canonical)
			}
			code, err := f.Enum.Encode(sym)
			if err != nil {
				return nil, err
			}
			v = code
		}
		wire[wireKey(backendName, f)] = v
	}
	return wire, nil
}

// Denormalize is ToWire for the store's active backend.
func (s *Store) Denormalize(kind entity.Kind, doc Doc, forCreate bool) (backend.Doc, error) {
	return ToWire(s.backend, kind, doc, WireOpts{ForCreate: forCreate})
}

// ToCanonical translates a backend wire doc into the canonical shape,
// populating canonical names and all legacy aliases.
func ToCanonical(backendName string, kind entity.Kind, wire backend.Doc) (Doc, error) {
	m, err := Mapping(kind)
	if err != nil {
		return nil, err
	}

	doc := make(Doc)
	for _, f := range m.Fields {
		v, ok := wire[wireKey(backendName, f)]
		if !ok || v == nil {
			continue
		}
		if f.Enum != nil && backendName == config.BackendPostgres {
			code, err := enumCode(v)
			if err != nil {
				return nil, fault.Wrap(fault.Validation, err, "%s: %s", kind, f.Canonical)
			}
			sym, err := f.Enum.Decode(code)
			if err != nil {
				return nil, err
			}
			v = sym
		}
		if f.Time {
			v = toRFC3339(v)
		}
		doc[f.Canonical] = v
		for _, alias := range f.Aliases {
			doc[alias] = v
		}
	}
	return doc, nil
}

// Normalize is ToCanonical for the store's active backend.
func (s *Store) Normalize(kind entity.Kind, wire backend.Doc) (Doc, error) {
	return ToCanonical(s.backend, kind, wire)
}

// GetAll returns every entity of a kind in canonical shape, flattening
// backend pagination into one slice regardless of envelope shape.
func (s *Store) GetAll(ctx context.Context, kind entity.Kind) ([]Doc, error) {
	var out []Doc
	page := backend.Page{Number: 1, Size: backend.MaxPageSize}
	for {
		res, err := s.client.List(ctx, kind, page)
		if err != nil {
			return nil, err
		}
		for _, item := range res.Items {
			doc, err := s.Normalize(kind, item)
			if err != nil {
				return nil, err
			}
			out = append(out, doc)
		}
		if !res.HasNext || len(res.Items) == 0 {
			return out, nil
		}
		page.Number++
	}
}

// GetByID returns one entity, or nil (no error) when it does not exist
// so the caller can render an absent state. Other failure kinds pass
// through unchanged.
func (s *Store) GetByID(ctx context.Context, kind entity.Kind, id string) (Doc, error) {
	wire, err := s.client.Get(ctx, kind, id)
	if err != nil {
		if fault.IsKind(err, fault.NotFound) {
			return nil, nil
		}
		return nil, err
	}
	return s.Normalize(kind, wire)
}

// Create stores a new entity and returns it in canonical shape.
func (s *Store) Create(ctx context.Context, kind entity.Kind, doc Doc) (Doc, error) {
	wire, err := s.Denormalize(kind, doc, true)
	if err != nil {
		return nil, err
	}
	stored, err := s.client.Create(ctx, kind, wire)
	if err != nil {
		return nil, err
	}
	return s.Normalize(kind, stored)
}

// Update applies a partial canonical doc and returns the stored entity.
func (s *Store) Update(ctx context.Context, kind entity.Kind, id string, doc Doc) (Doc, error) {
	wire, err := s.Denormalize(kind, doc, false)
	if err != nil {
		return nil, err
	}
	stored, err := s.client.Update(ctx, kind, id, wire)
	if err != nil {
		return nil, err
	}
	return s.Normalize(kind, stored)
}

// Delete removes an entity, reporting whether it existed.
func (s *Store) Delete(ctx context.Context, kind entity.Kind, id string) (bool, error) {
	if err := s.client.Delete(ctx, kind, id); err != nil {
		if fault.IsKind(err, fault.NotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// UpdateAvatar sets a student's avatar URL. Entity-specific extension
// kept on the facade so UI code never touches wire shapes.
func (s *Store) UpdateAvatar(ctx context.Context, studentID, avatarURL string) (Doc, error) {
	return s.Update(ctx, entity.KindStudent, studentID, Doc{"avatarUrl": avatarURL})
}

// Students returns the whole directory as typed records.
func (s *Store) Students(ctx context.Context) ([]entity.Student, error) {
	return getAllTyped[entity.Student](ctx, s, entity.KindStudent)
}

// Announcements returns every announcement as a typed record.
func (s *Store) Announcements(ctx context.Context) ([]entity.Announcement, error) {
	return getAllTyped[entity.Announcement](ctx, s, entity.KindAnnouncement)
}

// Documents returns the document library as typed records.
func (s *Store) Documents(ctx context.Context) ([]entity.Document, error) {
	return getAllTyped[entity.Document](ctx, s, entity.KindDocument)
}

func getAllTyped[T any](ctx context.Context, s *Store, kind entity.Kind) ([]T, error) {
	docs, err := s.GetAll(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make([]T, len(docs))
	for i, doc := range docs {
		v, err := decodeDoc[T](doc)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// decodeDoc converts a canonical doc into a typed record through its
// json tags; canonical field names match the entity tags exactly, and
// alias keys fall out as unknown fields.
func decodeDoc[T any](doc Doc) (T, error) {
	var v T
	b, err := json.Marshal(doc)
	if err != nil {
		return v, fault.Wrap(fault.Validation, err, "encode canonical doc")
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return v, fault.Wrap(fault.Validation, err, "decode canonical doc")
	}
	return v, nil
}

// enumSymbol extracts the canonical symbol from a doc value.
func enumSymbol(v any) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case entity.Status:
		return string(t), nil
	case entity.Category:
		return string(t), nil
	default:
		return "", fmt.Errorf("enum value %v (%T) is not a symbol", v, v)
	}
}

// enumCode extracts an integer code from a scanned wire value.
func enumCode(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int32:
		return int(t), nil
	case int64:
		return int(t), nil
	case float64:
		return int(t), nil
	default:
		return 0, fmt.Errorf("enum code %v (%T) is not an integer", v, v)
	}
}
