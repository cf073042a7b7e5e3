// Package normalize translates between the canonical entity shape and
// the native wire shapes of the two backends, and exposes one CRUD
// facade regardless of which backend is active.
//
// The translation is driven by explicit bidirectional mapping tables
// (canonical field ↔ postgres column ↔ REST field) validated for
// totality at construction, so every canonical field round-trips
// through either backend.
package normalize

import (
	"fmt"
	"time"

	"github.com/classhub/classhub/pkg/entity"
	"github.com/classhub/classhub/pkg/fault"
)

// EnumCodec maps canonical enum symbols to the integer codes the
// Postgres backend stores. The REST backend carries symbols verbatim.
type EnumCodec struct {
	Name  string
	Codes map[string]int
}

// Encode converts a canonical symbol to its integer code.
func (c *EnumCodec) Encode(symbol string) (int, error) {
	code, ok := c.Codes[symbol]
	if !ok {
		return 0, fault.New(fault.Validation, "unknown %s value %q", c.Name, symbol)
	}
	return code, nil
}

// Decode converts an integer code back to its canonical symbol.
func (c *EnumCodec) Decode(code int) (string, error) {
	for sym, n := range c.Codes {
		if n == code {
			return sym, nil
		}
	}
	return "", fault.New(fault.Validation, "unknown %s code %d", c.Name, code)
}

// statusCodec and categoryCodec are the documented code tables of the
// Postgres backend. They must stay injective; ValidateMappings checks.
var statusCodec = &EnumCodec{
	Name: "status",
	Codes: map[string]int{
		string(entity.StatusActive):   1,
		string(entity.StatusInactive): 2,
		string(entity.StatusArchived): 3,
	},
}

var categoryCodec = &EnumCodec{
	Name: "category",
	Codes: map[string]int{
		string(entity.CategoryGeneral):    1,
		string(entity.CategoryAcademic):   2,
		string(entity.CategoryAdmissions): 3,
		string(entity.CategoryEvents):     4,
	},
}

// FieldMapping binds one canonical field to both backend wire names.
type FieldMapping struct {
	Canonical string
	Postgres  string
	REST      string
	// Aliases are older canonical spellings still populated on reads
	// and accepted on writes for backward-compatible consumers.
	Aliases []string
	// Enum set when the Postgres side stores an integer code.
	Enum *EnumCodec
	// Required fields must be present on create; denormalization fails
	// with a validation error before any network call otherwise.
	Required bool
	// ReadOnly fields (id, timestamps) are never written backend-ward.
	ReadOnly bool
	// Time marks timestamp fields normalized to RFC 3339 strings.
	Time bool
}

// EntityMapping is the full table for one entity kind.
type EntityMapping struct {
	Kind   entity.Kind
	Fields []FieldMapping
}

var mappings = map[entity.Kind]EntityMapping{
	entity.KindStudent: {
		Kind: entity.KindStudent,
		Fields: []FieldMapping{
			{Canonical: "id", Postgres: "id", REST: "id", ReadOnly: true},
			{Canonical: "fullName", Postgres: "full_name", REST: "fullName", Aliases: []string{"full_name"}, Required: true},
			{Canonical: "email", Postgres: "email", REST: "email", Required: true},
			{Canonical: "grade", Postgres: "grade", REST: "grade"},
			{Canonical: "status", Postgres: "status_code", REST: "status", Enum: statusCodec},
			{Canonical: "avatarUrl", Postgres: "avatar_url", REST: "avatarUrl", Aliases: []string{"avatar_url"}},
			{Canonical: "createdAt", Postgres: "created_at", REST: "createdAt", Aliases: []string{"created_at"}, ReadOnly: true, Time: true},
			{Canonical: "updatedAt", Postgres: "updated_at", REST: "updatedAt", Aliases: []string{"updated_at"}, ReadOnly: true, Time: true},
		},
	},
	entity.KindAnnouncement: {
		Kind: entity.KindAnnouncement,
		Fields: []FieldMapping{
			{Canonical: "id", Postgres: "id", REST: "id", ReadOnly: true},
			{Canonical: "title", Postgres: "title", REST: "title", Required: true},
			{Canonical: "body", Postgres: "body", REST: "body", Required: true},
			{Canonical: "category", Postgres: "category_code", REST: "category", Enum: categoryCodec},
			{Canonical: "published", Postgres: "is_published", REST: "published", Aliases: []string{"is_published"}},
			{Canonical: "authorId", Postgres: "author_id", REST: "authorId", Aliases: []string{"author_id"}},
			{Canonical: "attachments", Postgres: "attachments", REST: "attachments"},
			{Canonical: "createdAt", Postgres: "created_at", REST: "createdAt", Aliases: []string{"created_at"}, ReadOnly: true, Time: true},
			{Canonical: "updatedAt", Postgres: "updated_at", REST: "updatedAt", Aliases: []string{"updated_at"}, ReadOnly: true, Time: true},
		},
	},
	entity.KindDocument: {
		Kind: entity.KindDocument,
		Fields: []FieldMapping{
			{Canonical: "id", Postgres: "id", REST: "id", ReadOnly: true},
			{Canonical: "title", Postgres: "title", REST: "title", Required: true},
			{Canonical: "category", Postgres: "category_code", REST: "category", Enum: categoryCodec},
			{Canonical: "fileUrl", Postgres: "file_url", REST: "fileUrl", Aliases: []string{"file_url"}, Required: true},
			{Canonical: "fileSize", Postgres: "file_size", REST: "fileSize", Aliases: []string{"file_size"}},
			{Canonical: "fileType", Postgres: "file_type", REST: "fileType", Aliases: []string{"file_type"}},
			{Canonical: "ownerId", Postgres: "owner_id", REST: "ownerId", Aliases: []string{"owner_id"}},
			{Canonical: "createdAt", Postgres: "created_at", REST: "createdAt", Aliases: []string{"created_at"}, ReadOnly: true, Time: true},
			{Canonical: "updatedAt", Postgres: "updated_at", REST: "updatedAt", Aliases: []string{"updated_at"}, ReadOnly: true, Time: true},
		},
	},
}

// Mapping returns the table for a kind.
func Mapping(kind entity.Kind) (EntityMapping, error) {
	m, ok := mappings[kind]
	if !ok {
		return EntityMapping{}, fault.New(fault.Validation, "unknown entity kind %q", kind)
	}
	return m, nil
}

// ValidateMappings checks every table for totality: each field must
// name both wire sides exactly once, aliases must not shadow other
// fields, and enum code tables must be injective. Called at Store
// construction so a broken table fails the process at boot, not on the
// first request.
func ValidateMappings() error {
	for kind, m := range mappings {
		canonical := make(map[string]bool)
		pg := make(map[string]bool)
		rest := make(map[string]bool)
		for _, f := range m.Fields {
			if f.Canonical == "" || f.Postgres == "" || f.REST == "" {
				return fmt.Errorf("%s: field %q is not mapped on both backends", kind, f.Canonical)
			}
			if canonical[f.Canonical] {
				return fmt.Errorf("%s: duplicate canonical field %q", kind, f.Canonical)
			}
			if pg[f.Postgres] {
				return fmt.Errorf("%s: duplicate postgres column %q", kind, f.Postgres)
			}
			if rest[f.REST] {
				return fmt.Errorf("%s: duplicate rest field %q", kind, f.REST)
			}
			canonical[f.Canonical] = true
			pg[f.Postgres] = true
			rest[f.REST] = true
		}
		// Aliases may not collide with any canonical name.
		for _, f := range m.Fields {
			for _, alias := range f.Aliases {
				if alias != f.Canonical && canonical[alias] {
					return fmt.Errorf("%s: alias %q of %q shadows another field", kind, alias, f.Canonical)
				}
			}
		}
	}
	for _, codec := range []*EnumCodec{statusCodec, categoryCodec} {
		seen := make(map[int]string)
		for sym, code := range codec.Codes {
			if prev, ok := seen[code]; ok {
				return fmt.Errorf("%s codec: symbols %q and %q share code %d", codec.Name, prev, sym, code)
			}
			seen[code] = sym
		}
	}
	return nil
}

// isAbsent reports whether a value counts as "not supplied" for the
// tie-break rule: nil, or an empty string.
func isAbsent(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// toRFC3339 renders backend timestamp values in canonical form.
func toRFC3339(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(time.RFC3339)
	}
	return v
}
