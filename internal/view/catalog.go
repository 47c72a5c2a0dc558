package view

import (
	"context"
	"strings"
	"sync"

	"github.com/xenking/trading-academy/internal/domain/course"
)

// Listing is the catalog page view model.
type Listing struct {
	Level string
	Query string
	Cards []Card
	// Empty is set when no course matches the current filter and query.
	Empty bool
	Badge int
}

// CatalogPage lists courses filtered by level and a search query.
type CatalogPage struct {
	header
	catalog *course.Catalog

	mu    sync.Mutex
	level string
	query string
}

// NewCatalogPage builds the page and subscribes it to cart changes.
func NewCatalogPage(catalog *course.Catalog, c Cart, sub Subscriber) *CatalogPage {
	p := &CatalogPage{catalog: catalog, level: course.LevelAll}
	p.attach(c, sub)
	return p
}

// Filter sets the level filter. "all" or an empty level shows every level.
func (p *CatalogPage) Filter(level string) {
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = course.LevelAll
	}
	p.mu.Lock()
	p.level = level
	p.mu.Unlock()
}

// Search sets the search query.
func (p *CatalogPage) Search(query string) {
	p.mu.Lock()
	p.query = strings.TrimSpace(query)
	p.mu.Unlock()
}

// Listing returns the courses matching both the level filter and the query,
// in catalog order.
func (p *CatalogPage) Listing() Listing {
	p.mu.Lock()
	level, query := p.level, p.query
	p.mu.Unlock()

	courses := p.catalog.FilterByLevel(level)
	if query != "" {
		matched := make(map[int]struct{})
		for _, c := range p.catalog.Search(query) {
			matched[c.ID] = struct{}{}
		}
		kept := courses[:0]
		for _, c := range courses {
			if _, ok := matched[c.ID]; ok {
				kept = append(kept, c)
			}
		}
		courses = kept
	}

	l := Listing{
		Level: level,
		Query: query,
		Cards: make([]Card, len(courses)),
		Empty: len(courses) == 0,
		Badge: p.Badge(),
	}
	for i := range courses {
		l.Cards[i] = newCard(&courses[i], p.cart.Contains(courses[i].ID))
	}
	return l
}

// AddToCart adds a course. cart.ErrAlreadyInCart reports a course that was
// already there.
func (p *CatalogPage) AddToCart(ctx context.Context, courseID int) error {
	return p.cart.Add(ctx, courseID)
}
