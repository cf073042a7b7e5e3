// Package export renders canonical entities as CSV for offline use
// (gradebook imports, mail-merge lists).
package export

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/classhub/classhub/internal/normalize"
	"github.com/classhub/classhub/pkg/entity"
)

// CSV writes every entity of a kind to w, one row per entity. The
// header row uses canonical field names in mapping order, so a given
// kind always exports the same columns regardless of backend.
func CSV(ctx context.Context, store *normalize.Store, kind entity.Kind, w io.Writer) error {
	m, err := normalize.Mapping(kind)
	if err != nil {
		return err
	}
	docs, err := store.GetAll(ctx, kind)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	header := make([]string, len(m.Fields))
	for i, f := range m.Fields {
		header[i] = f.Canonical
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	row := make([]string, len(m.Fields))
	for _, doc := range docs {
		for i, f := range m.Fields {
			row[i] = formatValue(doc[f.Canonical])
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// formatValue renders a canonical value as a CSV cell. Structured
// values (attachment lists) become JSON.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}
