package stats

import (
	"context"
	"sort"
)

// Document is the merged stats response.
type Document struct {
	Entries []string                  `json:"entries" msgpack:"entries"`
	Scores  map[string]map[string]any `json:"scores" msgpack:"scores"`
}

// NewDocument returns an empty document with non-nil collections so that it
// encodes as {"entries":[],"scores":{}}.
func NewDocument() Document {
	return Document{Entries: []string{}, Scores: map[string]map[string]any{}}
}

// Source is one contributor to the stats document.
type Source interface {
	Label() string
	Stats(ctx context.Context) (Document, error)
}

// Aggregate merges the documents of sources. Entries are the sorted union of
// every source's entries. When two sources fill the same label, their maps are
// merged per name and the later source wins. A failing source is logged and
// contributes nothing.
func Aggregate(ctx context.Context, sources ...Source) Document {
	out := NewDocument()
	entries := make(map[string]struct{})

	for _, src := range sources {
		doc, err := src.Stats(ctx)
		if err != nil {
			Logger.Errorf("Source %s failed, leaving it out of the response: %v", src.Label(), err)
			continue
		}

		for _, name := range doc.Entries {
			entries[name] = struct{}{}
		}
		for label, scores := range doc.Scores {
			merged, ok := out.Scores[label]
			if !ok {
				merged = make(map[string]any, len(scores))
				out.Scores[label] = merged
			}
			for name, value := range scores {
				merged[name] = value
			}
		}
	}

	for name := range entries {
		out.Entries = append(out.Entries, name)
	}
	sort.Strings(out.Entries)
	return out
}

// Aggregator is a fixed list of sources.
type Aggregator struct {
	sources []Source
}

// NewAggregator returns an aggregator over sources. Nil sources are skipped.
func NewAggregator(sources ...Source) *Aggregator {
	a := &Aggregator{}
	for _, src := range sources {
		if src != nil {
			a.sources = append(a.sources, src)
		}
	}
	return a
}

// Aggregate merges the current stats of every source.
func (a *Aggregator) Aggregate(ctx context.Context) Document {
	return Aggregate(ctx, a.sources...)
}

// Sources returns the labels of the configured sources.
func (a *Aggregator) Sources() []string {
	labels := make([]string, len(a.sources))
	for i, src := range a.sources {
		labels[i] = src.Label()
	}
	return labels
}
