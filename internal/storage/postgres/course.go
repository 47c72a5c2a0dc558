package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/trading-academy/internal/domain/course"
)

const (
	listCoursesSQL = `SELECT id, title, description, level, price, currency, duration, lessons, image,
		features, agents, curriculum, instructors, reviews, last_updated, next_update, content_version
		FROM courses ORDER BY position, id`

	upsertCourseSQL = `INSERT INTO courses (id, position, title, description, level, price, currency,
		duration, lessons, image, features, agents, curriculum, instructors, reviews,
		last_updated, next_update, content_version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
		ON CONFLICT (id) DO UPDATE SET
			position = EXCLUDED.position,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			level = EXCLUDED.level,
			price = EXCLUDED.price,
			currency = EXCLUDED.currency,
			duration = EXCLUDED.duration,
			lessons = EXCLUDED.lessons,
			image = EXCLUDED.image,
			features = EXCLUDED.features,
			agents = EXCLUDED.agents,
			curriculum = EXCLUDED.curriculum,
			instructors = EXCLUDED.instructors,
			reviews = EXCLUDED.reviews,
			last_updated = EXCLUDED.last_updated,
			next_update = EXCLUDED.next_update,
			content_version = EXCLUDED.content_version`
)

var _ course.Repository = (*CourseRepository)(nil)

// CourseRepository implements course.Repository backed by PostgreSQL.
type CourseRepository struct {
	pool *pgxpool.Pool
}

// NewCourseRepository returns a CourseRepository that uses the given pool.
func NewCourseRepository(pool *pgxpool.Pool) *CourseRepository {
	return &CourseRepository{pool: pool}
}

// List returns all courses in catalog order.
func (r *CourseRepository) List(ctx context.Context) ([]course.Course, error) {
	rows, err := r.pool.Query(ctx, listCoursesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing courses: %w", err)
	}
	return pgx.CollectRows(rows, scanCourse)
}

// Upsert writes courses in one batch. A course's position in the slice
// becomes its catalog position.
func (r *CourseRepository) Upsert(ctx context.Context, courses []course.Course) error {
	batch := &pgx.Batch{}
	for i := range courses {
		args, err := courseArgs(i, &courses[i])
		if err != nil {
			return err
		}
		batch.Queue(upsertCourseSQL, args...)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for i := range courses {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upserting course %d: %w", courses[i].ID, err)
		}
	}
	return nil
}

// JSONB documents. Field names follow the seed catalog.
type (
	moduleDoc struct {
		Module  string   `json:"module"`
		Lessons []string `json:"lessons"`
	}
	instructorDoc struct {
		Name         string   `json:"name"`
		Role         string   `json:"role"`
		Description  string   `json:"description"`
		Capabilities []string `json:"capabilities"`
	}
	reviewDoc struct {
		Student string `json:"student"`
		Rating  int    `json:"rating"`
		Comment string `json:"comment"`
		Date    string `json:"date"`
	}
)

func courseArgs(position int, c *course.Course) ([]any, error) {
	modules := make([]moduleDoc, len(c.Curriculum))
	for i, m := range c.Curriculum {
		modules[i] = moduleDoc{Module: m.Title, Lessons: m.Lessons}
	}
	instructors := make([]instructorDoc, len(c.Instructors))
	for i, in := range c.Instructors {
		instructors[i] = instructorDoc(in)
	}
	reviews := make([]reviewDoc, len(c.Reviews))
	for i, rv := range c.Reviews {
		reviews[i] = reviewDoc{Student: rv.Author, Rating: rv.Rating, Comment: rv.Comment, Date: rv.Date.Format(time.DateOnly)}
	}

	curriculumJSON, err := json.Marshal(modules)
	if err != nil {
		return nil, fmt.Errorf("marshaling curriculum of course %d: %w", c.ID, err)
	}
	instructorsJSON, err := json.Marshal(instructors)
	if err != nil {
		return nil, fmt.Errorf("marshaling instructors of course %d: %w", c.ID, err)
	}
	reviewsJSON, err := json.Marshal(reviews)
	if err != nil {
		return nil, fmt.Errorf("marshaling reviews of course %d: %w", c.ID, err)
	}

	return []any{
		c.ID, position, c.Title, c.Description, string(c.Level), c.Price, c.Currency,
		c.Duration, c.Lessons, c.Image, nonNil(c.Features), nonNil(c.Agents),
		curriculumJSON, instructorsJSON, reviewsJSON,
		nullDate(c.LastUpdated), nullDate(c.NextUpdate), c.ContentVersion,
	}, nil
}

func scanCourse(row pgx.CollectableRow) (course.Course, error) {
	var (
		c                                course.Course
		level                            string
		price                            decimal.Decimal
		curriculum, instructors, reviews []byte
		lastUpdated, nextUpdate          *time.Time
	)
	if err := row.Scan(
		&c.ID, &c.Title, &c.Description, &level, &price, &c.Currency, &c.Duration, &c.Lessons, &c.Image,
		&c.Features, &c.Agents, &curriculum, &instructors, &reviews, &lastUpdated, &nextUpdate, &c.ContentVersion,
	); err != nil {
		return course.Course{}, err
	}

	l, err := course.ParseLevel(level)
	if err != nil {
		return course.Course{}, fmt.Errorf("course %d: %w", c.ID, err)
	}
	c.Level = l
	c.Price = price
	if lastUpdated != nil {
		c.LastUpdated = *lastUpdated
	}
	if nextUpdate != nil {
		c.NextUpdate = *nextUpdate
	}

	var modules []moduleDoc
	if err := json.Unmarshal(curriculum, &modules); err != nil {
		return course.Course{}, fmt.Errorf("course %d curriculum: %w", c.ID, err)
	}
	for _, m := range modules {
		c.Curriculum = append(c.Curriculum, course.Module{Title: m.Module, Lessons: m.Lessons})
	}

	var ins []instructorDoc
	if err := json.Unmarshal(instructors, &ins); err != nil {
		return course.Course{}, fmt.Errorf("course %d instructors: %w", c.ID, err)
	}
	for _, in := range ins {
		c.Instructors = append(c.Instructors, course.Instructor(in))
	}

	var rvs []reviewDoc
	if err := json.Unmarshal(reviews, &rvs); err != nil {
		return course.Course{}, fmt.Errorf("course %d reviews: %w", c.ID, err)
	}
	for _, rv := range rvs {
		date, _ := time.Parse(time.DateOnly, rv.Date)
		c.Reviews = append(c.Reviews, course.Review{Author: rv.Student, Rating: rv.Rating, Comment: rv.Comment, Date: date})
	}
	return c, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func nullDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
