// Package postgres implements the backend client contract against a
// relational schema. Its native wire shape uses snake_case column names
// and small integer enum codes.
//
// Enum code tables (stable, injective):
//
//	status_code:   1=active  2=inactive   3=archived
//	category_code: 1=general 2=academic   3=admissions 4=events
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"

	"github.com/classhub/classhub/internal/backend"
	"github.com/classhub/classhub/pkg/entity"
	"github.com/classhub/classhub/pkg/fault"
)

// Client is the Postgres-backed entity client. Row visibility policies
// (role and ownership filtering) are enforced by the database, not here.
type Client struct {
	db *sql.DB
}

// NewClient creates a Postgres backend client.
func NewClient(db *sql.DB) *Client {
	return &Client{db: db}
}

type tableSpec struct {
	table string
	// columns writable through Create/Update; id and timestamps are
	// managed by the database.
	writable []string
	// columns holding JSON documents.
	jsonCols map[string]bool
}

var tables = map[entity.Kind]tableSpec{
	entity.KindStudent: {
		table:    "students",
		writable: []string{"full_name", "email", "grade", "status_code", "avatar_url"},
	},
	entity.KindAnnouncement: {
		table:    "announcements",
		writable: []string{"title", "body", "category_code", "is_published", "author_id", "attachments"},
		jsonCols: map[string]bool{"attachments": true},
	},
	entity.KindDocument: {
		table:    "documents",
		writable: []string{"title", "category_code", "file_url", "file_size", "file_type", "owner_id"},
	},
}

func spec(kind entity.Kind) (tableSpec, error) {
	ts, ok := tables[kind]
	if !ok {
		return tableSpec{}, fault.New(fault.Validation, "unknown entity kind %q", kind)
	}
	return ts, nil
}

// classify maps a database error onto the fault taxonomy.
func classify(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fault.Wrap(fault.NotFound, err, "%s not found", what)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "23505":
			return fault.Wrap(fault.Conflict, err, "%s already exists", what)
		case pqErr.Code.Class() == "22", pqErr.Code.Class() == "23":
			return fault.Wrap(fault.Validation, err, "%s rejected", what)
		case pqErr.Code == "42P01":
			return fault.Wrap(fault.Configuration, err, "table for %s missing", what)
		case pqErr.Code.Class() == "42":
			return fault.Wrap(fault.Configuration, err, "schema error for %s", what)
		}
	}
	return fault.Wrap(fault.Transport, err, "database %s", what)
}

// List returns one page as a flat sequence, ordered newest first.
// The total count is not computed; Total is reported as -1.
func (c *Client) List(ctx context.Context, kind entity.Kind, page backend.Page) (*backend.ListResult, error) {
	return c.ListFiltered(ctx, kind, page, nil)
}

// ListFiltered is List with equality filters on native columns, used by
// the REST service for role-gated reads (e.g. is_published = true).
func (c *Client) ListFiltered(ctx context.Context, kind entity.Kind, page backend.Page, filter map[string]any) (*backend.ListResult, error) {
	ts, err := spec(kind)
	if err != nil {
		return nil, err
	}
	page = page.Clamp()

	where, args, err := buildWhere(ts, filter)
	if err != nil {
		return nil, err
	}

	// Fetch one extra row to learn whether another page exists.
	q := fmt.Sprintf(`SELECT * FROM %s%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`,
		ts.table, where, len(args)+1, len(args)+2)
	args = append(args, page.Size+1, (page.Number-1)*page.Size)

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err, "list "+ts.table)
	}
	defer rows.Close()

	items, err := scanDocs(rows, ts)
	if err != nil {
		return nil, classify(err, "scan "+ts.table)
	}

	res := &backend.ListResult{Items: items, Total: -1}
	if len(items) > page.Size {
		res.Items = items[:page.Size]
		res.HasNext = true
	}
	return res, nil
}

// Count returns the number of rows matching the filter.
func (c *Client) Count(ctx context.Context, kind entity.Kind, filter map[string]any) (int, error) {
	ts, err := spec(kind)
	if err != nil {
		return 0, err
	}
	where, args, err := buildWhere(ts, filter)
	if err != nil {
		return 0, err
	}

	var n int
	q := fmt.Sprintf(`SELECT count(*) FROM %s%s`, ts.table, where)
	if err := c.db.QueryRowContext(ctx, q, args...).Scan(&n); err != nil {
		return 0, classify(err, "count "+ts.table)
	}
	return n, nil
}

// buildWhere renders equality filters over known columns only.
func buildWhere(ts tableSpec, filter map[string]any) (string, []any, error) {
	if len(filter) == 0 {
		return "", nil, nil
	}
	allowed := map[string]bool{"id": true}
	for _, col := range ts.writable {
		allowed[col] = true
	}

	cols := make([]string, 0, len(filter))
	for col := range filter {
		if !allowed[col] {
			return "", nil, fault.New(fault.Validation, "cannot filter %s by %q", ts.table, col)
		}
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var conds []string
	var args []any
	for _, col := range cols {
		args = append(args, filter[col])
		conds = append(conds, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// Get returns one row by id.
func (c *Client) Get(ctx context.Context, kind entity.Kind, id string) (backend.Doc, error) {
	ts, err := spec(kind)
	if err != nil {
		return nil, err
	}

	q := fmt.Sprintf(`SELECT * FROM %s WHERE id = $1`, ts.table)
	rows, err := c.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, classify(err, ts.table+" "+id)
	}
	defer rows.Close()

	docs, err := scanDocs(rows, ts)
	if err != nil {
		return nil, classify(err, "scan "+ts.table)
	}
	if len(docs) == 0 {
		return nil, fault.New(fault.NotFound, "%s %s not found", ts.table, id)
	}
	return docs[0], nil
}

// Create inserts a row from the writable fields present in doc and
// returns the stored row, including generated id and timestamps.
func (c *Client) Create(ctx context.Context, kind entity.Kind, doc backend.Doc) (backend.Doc, error) {
	ts, err := spec(kind)
	if err != nil {
		return nil, err
	}

	var cols []string
	var args []any
	for _, col := range ts.writable {
		v, ok := doc[col]
		if !ok {
			continue
		}
		arg, err := toArg(v, ts.jsonCols[col])
		if err != nil {
			return nil, fault.Wrap(fault.Validation, err, "encode %s", col)
		}
		cols = append(cols, col)
		args = append(args, arg)
	}
	if len(cols) == 0 {
		return nil, fault.New(fault.Validation, "no writable fields for %s", ts.table)
	}

	ph := make([]string, len(cols))
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", i+1)
	}
	q := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) RETURNING *`,
		ts.table, strings.Join(cols, ", "), strings.Join(ph, ", "))

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err, "create "+ts.table)
	}
	defer rows.Close()

	docs, err := scanDocs(rows, ts)
	if err != nil || len(docs) == 0 {
		return nil, classify(err, "create "+ts.table)
	}
	return docs[0], nil
}

// Update applies the writable fields present in doc and returns the
// stored row.
func (c *Client) Update(ctx context.Context, kind entity.Kind, id string, doc backend.Doc) (backend.Doc, error) {
	ts, err := spec(kind)
	if err != nil {
		return nil, err
	}

	var sets []string
	var args []any
	for _, col := range ts.writable {
		v, ok := doc[col]
		if !ok {
			continue
		}
		arg, err := toArg(v, ts.jsonCols[col])
		if err != nil {
			return nil, fault.Wrap(fault.Validation, err, "encode %s", col)
		}
		args = append(args, arg)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if len(sets) == 0 {
		return nil, fault.New(fault.Validation, "no writable fields for %s", ts.table)
	}
	args = append(args, id)

	q := fmt.Sprintf(`UPDATE %s SET %s, updated_at = now() WHERE id = $%d RETURNING *`,
		ts.table, strings.Join(sets, ", "), len(args))

	rows, err := c.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, classify(err, "update "+ts.table)
	}
	defer rows.Close()

	docs, err := scanDocs(rows, ts)
	if err != nil {
		return nil, classify(err, "update "+ts.table)
	}
	if len(docs) == 0 {
		return nil, fault.New(fault.NotFound, "%s %s not found", ts.table, id)
	}
	return docs[0], nil
}

// Delete removes a row by id. Deleting an absent row is a not-found
// error so the caller can distinguish it from success.
func (c *Client) Delete(ctx context.Context, kind entity.Kind, id string) error {
	ts, err := spec(kind)
	if err != nil {
		return err
	}

	res, err := c.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, ts.table), id)
	if err != nil {
		return classify(err, "delete "+ts.table)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return classify(err, "delete "+ts.table)
	}
	if n == 0 {
		return fault.New(fault.NotFound, "%s %s not found", ts.table, id)
	}
	return nil
}

// toArg converts a wire value to a driver argument. JSON columns are
// marshalled; everything else passes through.
func toArg(v any, isJSON bool) (any, error) {
	if !isJSON || v == nil {
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// scanDocs reads all rows into native wire docs keyed by column name.
func scanDocs(rows *sql.Rows, ts tableSpec) ([]backend.Doc, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var docs []backend.Doc
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		doc := make(backend.Doc, len(cols))
		for i, col := range cols {
			doc[col] = fromColumn(vals[i], ts.jsonCols[col])
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// fromColumn converts a scanned value into its wire representation.
func fromColumn(v any, isJSON bool) any {
	b, ok := v.([]byte)
	if !ok {
		return v
	}
	if isJSON {
		var decoded any
		if err := json.Unmarshal(b, &decoded); err == nil {
			return decoded
		}
	}
	return string(b)
}
