package view

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/xenking/trading-academy/internal/domain/course"
)

// RelatedCourses is the number of other courses shown on a detail page.
const RelatedCourses = 3

// Detail is the course page view model.
type Detail struct {
	Card
	AllFeatures    []string
	Curriculum     []CurriculumModule
	Instructors    []course.Instructor
	Reviews        []ReviewLine
	Agents         []string
	Related        []Card
	LastUpdated    string
	NextUpdate     string
	ContentVersion string
	Badge          int
}

// CurriculumModule is one expandable curriculum section. Only the first one
// starts expanded.
type CurriculumModule struct {
	Number   int
	Title    string
	Lessons  []string
	Expanded bool
}

// ReviewLine is a review ready for display.
type ReviewLine struct {
	Author  string
	Rating  int
	Stars   string
	Comment string
	Date    string
}

// CoursePage shows one course addressed by a query parameter.
type CoursePage struct {
	header
	catalog *course.Catalog
}

// NewCoursePage builds the page and subscribes it to cart changes.
func NewCoursePage(catalog *course.Catalog, c Cart, sub Subscriber) *CoursePage {
	p := &CoursePage{catalog: catalog}
	p.attach(c, sub)
	return p
}

// Resolve maps the raw "course" query value to a course. The leading integer
// of raw is the id ("2abc" is 2). A missing, zero or unknown id selects the
// first catalog entry, so only an empty catalog fails.
func (p *CoursePage) Resolve(raw string) (course.Course, error) {
	if id, ok := leadingInt(raw); ok && id != 0 {
		if c, err := p.catalog.Get(id); err == nil {
			return c, nil
		}
	}
	return p.catalog.First()
}

// leadingInt parses an optionally signed run of digits after leading spaces
// and ignores whatever follows it.
func leadingInt(raw string) (int, bool) {
	s := strings.TrimLeft(raw, " \t\n\r")
	n := 0
	if n < len(s) && (s[n] == '+' || s[n] == '-') {
		n++
	}
	digits := n
	for n < len(s) && s[n] >= '0' && s[n] <= '9' {
		n++
	}
	if n == digits {
		return 0, false
	}
	id, err := strconv.Atoi(s[:n])
	return id, err == nil
}

// Show builds the detail view for the raw "course" query value.
func (p *CoursePage) Show(raw string) (Detail, error) {
	c, err := p.Resolve(raw)
	if err != nil {
		return Detail{}, err
	}
	return p.detail(&c), nil
}

// ShowID builds the detail view of one course and returns
// course.ErrNotFound for an unknown id.
func (p *CoursePage) ShowID(id int) (Detail, error) {
	c, err := p.catalog.Get(id)
	if err != nil {
		return Detail{}, err
	}
	return p.detail(&c), nil
}

func (p *CoursePage) detail(c *course.Course) Detail {
	d := Detail{
		Card:           newCard(c, p.cart.Contains(c.ID)),
		AllFeatures:    append([]string(nil), c.Features...),
		Curriculum:     make([]CurriculumModule, len(c.Curriculum)),
		Instructors:    append([]course.Instructor(nil), c.Instructors...),
		Reviews:        make([]ReviewLine, len(c.Reviews)),
		Agents:         append([]string(nil), c.Agents...),
		LastUpdated:    formatDate(c.LastUpdated),
		NextUpdate:     formatDate(c.NextUpdate),
		ContentVersion: c.ContentVersion,
		Badge:          p.Badge(),
	}
	for i, m := range c.Curriculum {
		d.Curriculum[i] = CurriculumModule{
			Number:   i + 1,
			Title:    m.Title,
			Lessons:  append([]string(nil), m.Lessons...),
			Expanded: i == 0,
		}
	}
	for i, r := range c.Reviews {
		d.Reviews[i] = ReviewLine{
			Author:  r.Author,
			Rating:  r.Rating,
			Stars:   Stars(r.Rating),
			Comment: r.Comment,
			Date:    formatDate(r.Date),
		}
	}
	related := p.catalog.Related(c.ID, RelatedCourses)
	d.Related = make([]Card, len(related))
	for i := range related {
		d.Related[i] = newCard(&related[i], p.cart.Contains(related[i].ID))
	}
	return d
}

// AddToCart adds a course from the detail page.
func (p *CoursePage) AddToCart(ctx context.Context, courseID int) error {
	return p.cart.Add(ctx, courseID)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}
