package stats

import (
	"context"
	"fmt"
	"slices"
)

// AllObjectives in the objective filter selects every objective.
const AllObjectives = "*"

// Objective is one scoreboard objective with the scores that are set.
type Objective struct {
	Name   string
	Scores map[string]int
}

// Scoreboard exposes the entries and objectives of a scoreboard.
type Scoreboard interface {
	ScoreboardEntries(ctx context.Context) ([]string, error)
	Objectives(ctx context.Context) ([]Objective, error)
}

// ScoreboardSource serves the filtered objectives of a scoreboard, one label
// per objective, with numeric scores.
type ScoreboardSource struct {
	board  Scoreboard
	filter []string
	all    bool
}

// NewScoreboardSource returns a Source over board. filter lists objective
// names to include; "*" includes all of them.
func NewScoreboardSource(board Scoreboard, filter []string) *ScoreboardSource {
	Logger.Infof("Enabled scoreboard source")
	return &ScoreboardSource{
		board:  board,
		filter: append([]string(nil), filter...),
		all:    slices.Contains(filter, AllObjectives),
	}
}

func (s *ScoreboardSource) Label() string {
	return "scoreboard"
}

func (s *ScoreboardSource) includes(objective string) bool {
	return s.all || slices.Contains(s.filter, objective)
}

func (s *ScoreboardSource) Stats(ctx context.Context) (Document, error) {
	entries, err := s.board.ScoreboardEntries(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("scoreboard entries: %w", err)
	}
	objectives, err := s.board.Objectives(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("scoreboard objectives: %w", err)
	}

	doc := NewDocument()
	doc.Entries = append(doc.Entries, entries...)
	for _, o := range objectives {
		if !s.includes(o.Name) {
			continue
		}
		scores := make(map[string]any, len(o.Scores))
		for _, entry := range entries {
			if v, ok := o.Scores[entry]; ok {
				scores[entry] = v
			}
		}
		doc.Scores[o.Name] = scores
	}
	return doc, nil
}
