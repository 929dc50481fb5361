package cache

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Entity is a tracked subject, usually a player. The ID is stable for the
// lifetime of the subject; the Name is only used for display.
type Entity struct {
	ID   uuid.UUID
	Name string
}

// DisplayName returns Name, or the ID when the entity never reported a name.
func (e Entity) DisplayName() string {
	if e.Name == "" {
		return e.ID.String()
	}
	return e.Name
}

func (e Entity) String() string {
	return fmt.Sprintf("%s (%s)", e.ID, e.DisplayName())
}

// Score is the current value of one (entity, field) pair. The zero Score is
// null, matching a NULL value column.
type Score struct {
	Value string
	Valid bool
}

// NewScore returns a non-null Score holding v.
func NewScore(v string) Score {
	return Score{Value: v, Valid: true}
}

func (s Score) String() string {
	if !s.Valid {
		return "null"
	}
	return s.Value
}

// Any returns the score as a plain value for document encoders: the string,
// or nil for a null score.
func (s Score) Any() any {
	if !s.Valid {
		return nil
	}
	return s.Value
}

// MarshalJSON encodes a null score as JSON null.
func (s Score) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Any())
}

// FieldSource produces the entities it knows about and their current field
// values. Implementations may be live (recomputed on every call) or backed
// by a cache.
type FieldSource interface {
	ListKnownEntities(ctx context.Context) ([]Entity, error)
	CurrentFieldValues(ctx context.Context, entity Entity) (map[string]Score, error)
}
