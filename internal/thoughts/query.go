package thoughts

import (
	"context"
	"strings"
)

// Filters selects thoughts for the browse views. The four conditions are
// AND'd; within each list an empty slice passes everything and a non-empty
// slice matches any listed value.
type Filters struct {
	Tags       []string `json:"tags"`
	Categories []string `json:"categories"`
	Favorites  bool     `json:"favorites"`
	Moods      []string `json:"moods"`
}

// SearchThoughts returns the stored thoughts matching the query. Matching is
// a case-insensitive substring test over the title, every tag, and every
// block's content. An empty query matches everything.
func (m *Manager) SearchThoughts(ctx context.Context, query string) ([]Thought, error) {
	all, err := m.GetAllThoughts(ctx)
	if err != nil {
		return nil, err
	}
	return SearchIn(query, all), nil
}

// SearchIn filters an already-loaded list with the same matching rules as
// SearchThoughts.
func SearchIn(query string, list []Thought) []Thought {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return list
	}
	matched := make([]Thought, 0, len(list))
	for _, thought := range list {
		if matchesQuery(thought, needle) {
			matched = append(matched, thought)
		}
	}
	return matched
}

func matchesQuery(thought Thought, needle string) bool {
	if strings.Contains(strings.ToLower(thought.Title), needle) {
		return true
	}
	for _, tag := range thought.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	for _, block := range thought.Blocks {
		if strings.Contains(strings.ToLower(block.Content), needle) {
			return true
		}
	}
	return false
}

// FilterThoughts returns the stored thoughts passing the filter spec.
func (m *Manager) FilterThoughts(ctx context.Context, filters Filters) ([]Thought, error) {
	all, err := m.GetAllThoughts(ctx)
	if err != nil {
		return nil, err
	}
	matched := make([]Thought, 0, len(all))
	for _, thought := range all {
		if matchesFilters(thought, filters) {
			matched = append(matched, thought)
		}
	}
	return matched, nil
}

func matchesFilters(thought Thought, filters Filters) bool {
	if len(filters.Tags) > 0 {
		found := false
		for _, tag := range filters.Tags {
			if thought.HasTag(tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(filters.Categories) > 0 && !containsString(filters.Categories, thought.Category) {
		return false
	}
	if filters.Favorites && !thought.IsFavorite {
		return false
	}
	if len(filters.Moods) > 0 && !containsString(filters.Moods, string(thought.Mood)) {
		return false
	}
	return true
}

func containsString(list []string, value string) bool {
	for _, candidate := range list {
		if candidate == value {
			return true
		}
	}
	return false
}

// AllTags returns every distinct tag across stored thoughts, first-seen order.
func (m *Manager) AllTags(ctx context.Context) ([]string, error) {
	all, err := m.GetAllThoughts(ctx)
	if err != nil {
		return nil, err
	}
	return distinct(all, func(thought Thought) []string { return thought.Tags }), nil
}

// AllCategories returns every distinct non-empty category, first-seen order.
func (m *Manager) AllCategories(ctx context.Context) ([]string, error) {
	all, err := m.GetAllThoughts(ctx)
	if err != nil {
		return nil, err
	}
	return distinct(all, func(thought Thought) []string {
		if thought.Category == "" {
			return nil
		}
		return []string{thought.Category}
	}), nil
}

// AllMoods returns every distinct mood in use, first-seen order.
func (m *Manager) AllMoods(ctx context.Context) ([]string, error) {
	all, err := m.GetAllThoughts(ctx)
	if err != nil {
		return nil, err
	}
	return distinct(all, func(thought Thought) []string {
		if thought.Mood == "" {
			return nil
		}
		return []string{string(thought.Mood)}
	}), nil
}

func distinct(list []Thought, project func(Thought) []string) []string {
	seen := make(map[string]struct{})
	values := make([]string, 0)
	for _, thought := range list {
		for _, value := range project(thought) {
			if _, ok := seen[value]; ok {
				continue
			}
			seen[value] = struct{}{}
			values = append(values, value)
		}
	}
	return values
}
