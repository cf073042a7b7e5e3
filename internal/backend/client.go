// Package backend defines the entity-CRUD contract implemented by the
// Postgres and REST clients. Clients speak their own native wire shape
// (field names, enum encodings, pagination); translation to the
// canonical shape is the normalize package's job, not theirs.
package backend

import (
	"context"

	"github.com/classhub/classhub/pkg/entity"
)

// Doc is one entity in a backend's native wire shape.
type Doc = map[string]any

// Page addresses one slice of a bulk read. Number is 1-based.
type Page struct {
	Number int
	Size   int
}

// DefaultPageSize is used when a caller does not specify one.
const DefaultPageSize = 50

// MaxPageSize bounds page sizes on both backends.
const MaxPageSize = 100

// Clamp normalizes a page to the 1..MaxPageSize bounds.
func (p Page) Clamp() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// ListResult is one page of a bulk read. The Postgres client returns a
// flat sequence and reports Total as -1 (unknown); the REST client's
// page envelope carries the exact total.
type ListResult struct {
	Items   []Doc
	Total   int
	HasNext bool
}

// Client is the contract both backends implement. Failures carry fault
// kinds: not-found for absent entities, validation for rejected input,
// transport for network or server trouble.
type Client interface {
	List(ctx context.Context, kind entity.Kind, page Page) (*ListResult, error)
	Get(ctx context.Context, kind entity.Kind, id string) (Doc, error)
	Create(ctx context.Context, kind entity.Kind, doc Doc) (Doc, error)
	Update(ctx context.Context, kind entity.Kind, id string, doc Doc) (Doc, error)
	Delete(ctx context.Context, kind entity.Kind, id string) error
}
