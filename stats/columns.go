package stats

import (
	"context"
	"fmt"

	"github.com/goliatone/go-webstats/cache"
)

// Column maps a field of a FieldSource to the label it is served under.
type Column struct {
	Field string `mapstructure:"placeholder" json:"placeholder"`
	Label string `mapstructure:"label" json:"label"`
}

// FieldColumns serves the fields of a FieldSource as labelled columns.
type FieldColumns struct {
	label   string
	source  cache.FieldSource
	columns []Column
}

// NewFieldColumns returns a Source named label reading columns from source.
func NewFieldColumns(label string, source cache.FieldSource, columns []Column) *FieldColumns {
	return &FieldColumns{label: label, source: source, columns: append([]Column(nil), columns...)}
}

func (f *FieldColumns) Label() string {
	return f.label
}

// Fields returns the configured fields in column order.
func (f *FieldColumns) Fields() []string {
	fields := make([]string, len(f.columns))
	for i, c := range f.columns {
		fields[i] = c.Field
	}
	return fields
}

// Stats lists every entity of the source as an entry and fills one score map
// per column. Every column label is present, even when no entity has a value.
// Null scores are left out.
func (f *FieldColumns) Stats(ctx context.Context) (Document, error) {
	entities, err := f.source.ListKnownEntities(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("list entities: %w", err)
	}

	doc := NewDocument()
	for _, c := range f.columns {
		doc.Scores[c.Label] = map[string]any{}
	}

	for _, e := range entities {
		name := e.DisplayName()
		doc.Entries = append(doc.Entries, name)

		values, err := f.source.CurrentFieldValues(ctx, e)
		if err != nil {
			if cache.IsResourceReleased(err) {
				return Document{}, err
			}
			Logger.Warningf("Could not read fields of %s: %v", e, err)
			continue
		}
		for _, c := range f.columns {
			if score, ok := values[c.Field]; ok && score.Valid {
				doc.Scores[c.Label][name] = score.Value
			}
		}
	}
	return doc, nil
}
