package course

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
)

// Catalog is the read-only course listing. It is built once and never
// mutated, so it is safe for concurrent use.
type Catalog struct {
	courses []Course
	byID    map[int]int
}

// NewCatalog builds a Catalog preserving the given order. It rejects
// non-positive and duplicate ids.
func NewCatalog(courses []Course) (*Catalog, error) {
	c := &Catalog{
		courses: make([]Course, len(courses)),
		byID:    make(map[int]int, len(courses)),
	}
	for i, rec := range courses {
		if rec.ID <= 0 {
			return nil, errors.Errorf("course %q: id must be positive, got %d", rec.Title, rec.ID)
		}
		if _, dup := c.byID[rec.ID]; dup {
			return nil, errors.Errorf("duplicate course id %d", rec.ID)
		}
		c.byID[rec.ID] = i
		c.courses[i] = rec
	}
	return c, nil
}

// LoadCatalog reads every course from repo and builds a Catalog.
func LoadCatalog(ctx context.Context, repo Repository) (*Catalog, error) {
	courses, err := repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list courses")
	}
	return NewCatalog(courses)
}

// List returns all courses in catalog order.
func (c *Catalog) List() []Course {
	out := make([]Course, len(c.courses))
	copy(out, c.courses)
	return out
}

// Len returns the number of courses in the catalog.
func (c *Catalog) Len() int { return len(c.courses) }

// Get returns the course with the given id or ErrNotFound.
func (c *Catalog) Get(id int) (Course, error) {
	i, ok := c.byID[id]
	if !ok {
		return Course{}, ErrNotFound
	}
	return c.courses[i], nil
}

// First returns the first course in catalog order.
func (c *Catalog) First() (Course, error) {
	if len(c.courses) == 0 {
		return Course{}, ErrNotFound
	}
	return c.courses[0], nil
}

// FilterByLevel returns the courses of the given level in catalog order.
// "all" returns the full listing; an unknown level matches nothing.
func (c *Catalog) FilterByLevel(level string) []Course {
	if strings.EqualFold(strings.TrimSpace(level), LevelAll) {
		return c.List()
	}
	l, err := ParseLevel(level)
	if err != nil {
		return []Course{}
	}
	return c.filter(func(rec *Course) bool { return rec.Level == l })
}

// Search returns the courses whose title, description or any feature contains
// query, ignoring case. An empty query returns the full listing.
func (c *Catalog) Search(query string) []Course {
	term := strings.ToLower(strings.TrimSpace(query))
	if term == "" {
		return c.List()
	}
	return c.filter(func(rec *Course) bool { return rec.matches(term) })
}

// Related returns up to n courses other than id, in catalog order.
func (c *Catalog) Related(id, n int) []Course {
	out := make([]Course, 0, n)
	for i := range c.courses {
		if len(out) == n {
			break
		}
		if c.courses[i].ID != id {
			out = append(out, c.courses[i])
		}
	}
	return out
}

func (c *Catalog) filter(keep func(*Course) bool) []Course {
	out := make([]Course, 0, len(c.courses))
	for i := range c.courses {
		if keep(&c.courses[i]) {
			out = append(out, c.courses[i])
		}
	}
	return out
}

// matches reports whether term (already lowercased) occurs in the title,
// description or any feature.
func (rec *Course) matches(term string) bool {
	if strings.Contains(strings.ToLower(rec.Title), term) ||
		strings.Contains(strings.ToLower(rec.Description), term) {
		return true
	}
	for _, f := range rec.Features {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}
