// Package static serves the course catalog from JSON documents, by default
// the seed catalog embedded in the binary.
package static

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/trading-academy/db"
	"github.com/xenking/trading-academy/internal/domain/course"
)

var _ course.Repository = (*CourseRepository)(nil)

// courseJSON is the document layout of a course, shared by the seed file and
// catalog exports.
type courseJSON struct {
	ID          int             `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Level       string          `json:"level"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	Duration    string          `json:"duration"`
	Lessons     int             `json:"lessons"`
	Image       string          `json:"image"`
	Features    []string        `json:"features"`
	Curriculum  []struct {
		Module  string   `json:"module"`
		Lessons []string `json:"lessons"`
	} `json:"curriculum"`
	Instructors []struct {
		Name         string   `json:"name"`
		Role         string   `json:"role"`
		Description  string   `json:"description"`
		Capabilities []string `json:"capabilities"`
	} `json:"aiInstructors"`
	Reviews []struct {
		Student string `json:"student"`
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
		Date    string `json:"date"`
	} `json:"reviews"`
	Agents         []string `json:"aiAgents"`
	LastUpdated    string   `json:"lastUpdated"`
	NextUpdate     string   `json:"nextUpdate"`
	ContentVersion string   `json:"contentVersion"`
}

// CourseRepository implements course.Repository over a decoded JSON array.
type CourseRepository struct {
	courses []course.Course
}

// NewCourseRepository decodes a JSON array of courses.
func NewCourseRepository(data []byte) (*CourseRepository, error) {
	courses, err := ParseCourses(data)
	if err != nil {
		return nil, err
	}
	return &CourseRepository{courses: courses}, nil
}

// NewSeedRepository returns the repository for the embedded seed catalog.
func NewSeedRepository() (*CourseRepository, error) {
	return NewCourseRepository(db.SeedCourses)
}

// List returns the courses in document order.
func (r *CourseRepository) List(_ context.Context) ([]course.Course, error) {
	out := make([]course.Course, len(r.courses))
	copy(out, r.courses)
	return out, nil
}

// ParseCourses decodes a JSON array of course documents.
func ParseCourses(data []byte) ([]course.Course, error) {
	var docs []courseJSON
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, errors.Wrap(err, "parse courses JSON")
	}
	out := make([]course.Course, len(docs))
	for i := range docs {
		c, err := docs[i].toDomain()
		if err != nil {
			return nil, errors.Wrapf(err, "course #%d", i)
		}
		out[i] = c
	}
	return out, nil
}

// DecodeCourse decodes a single course document.
func DecodeCourse(data []byte) (course.Course, error) {
	var doc courseJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return course.Course{}, errors.Wrap(err, "parse course JSON")
	}
	return doc.toDomain()
}

func (d *courseJSON) toDomain() (course.Course, error) {
	level, err := course.ParseLevel(d.Level)
	if err != nil {
		return course.Course{}, err
	}
	if d.Price.IsNegative() {
		return course.Course{}, errors.Errorf("course %d: negative price %s", d.ID, d.Price)
	}
	if d.Lessons < 0 {
		return course.Course{}, errors.Errorf("course %d: negative lesson count", d.ID)
	}

	c := course.Course{
		ID:             d.ID,
		Title:          d.Title,
		Description:    d.Description,
		Level:          level,
		Price:          d.Price,
		Currency:       d.Currency,
		Duration:       d.Duration,
		Lessons:        d.Lessons,
		Image:          d.Image,
		Features:       d.Features,
		Agents:         d.Agents,
		ContentVersion: d.ContentVersion,
	}
	if c.Currency == "" {
		c.Currency = "ZAR"
	}
	if c.LastUpdated, err = parseDate(d.LastUpdated); err != nil {
		return course.Course{}, errors.Wrap(err, "lastUpdated")
	}
	if c.NextUpdate, err = parseDate(d.NextUpdate); err != nil {
		return course.Course{}, errors.Wrap(err, "nextUpdate")
	}

	for _, m := range d.Curriculum {
		c.Curriculum = append(c.Curriculum, course.Module{Title: m.Module, Lessons: m.Lessons})
	}
	for _, in := range d.Instructors {
		c.Instructors = append(c.Instructors, course.Instructor{
			Name:         in.Name,
			Role:         in.Role,
			Description:  in.Description,
			Capabilities: in.Capabilities,
		})
	}
	for _, rv := range d.Reviews {
		if rv.Rating < 1 || rv.Rating > 5 {
			return course.Course{}, errors.Errorf("course %d: review rating %d out of range", d.ID, rv.Rating)
		}
		date, err := parseDate(rv.Date)
		if err != nil {
			return course.Course{}, errors.Wrap(err, "review date")
		}
		c.Reviews = append(c.Reviews, course.Review{
			Author:  rv.Student,
			Rating:  rv.Rating,
			Comment: rv.Comment,
			Date:    date,
		})
	}
	return c, nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.DateOnly, s)
}
