package course

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested course does not exist.
var ErrNotFound = errors.New("course not found")

// ErrInvalidLevel is returned by ParseLevel for an unrecognised level name.
var ErrInvalidLevel = errors.New("invalid course level")

// Level is the difficulty tier of a course.
type Level string

const (
	LevelBeginner     Level = "beginner"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// LevelAll is the filter value that matches every level.
const LevelAll = "all"

// ParseLevel maps a level name to a Level, ignoring case and surrounding
// whitespace.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case LevelBeginner, LevelIntermediate, LevelAdvanced:
		return l, nil
	default:
		return "", errors.Wrapf(ErrInvalidLevel, "%q", s)
	}
}

// Title returns the display label of the level, e.g. "Beginner".
func (l Level) Title() string {
	if l == "" {
		return ""
	}
	return strings.ToUpper(string(l[:1])) + string(l[1:])
}

// Course is an immutable catalog record.
type Course struct {
	ID             int
	Title          string
	Description    string
	Level          Level
	Price          decimal.Decimal
	Currency       string
	Duration       string
	Lessons        int
	Image          string
	Features       []string
	Curriculum     []Module
	Instructors    []Instructor
	Reviews        []Review
	Agents         []string
	LastUpdated    time.Time
	NextUpdate     time.Time
	ContentVersion string
}

// Module is one section of a course curriculum.
type Module struct {
	Title   string
	Lessons []string
}

// Instructor describes an AI instructor attached to a course.
type Instructor struct {
	Name         string
	Role         string
	Description  string
	Capabilities []string
}

// Review is a student review. Rating is between 1 and 5.
type Review struct {
	Author  string
	Rating  int
	Comment string
	Date    time.Time
}

// Repository is a source of course records in catalog order.
type Repository interface {
	List(ctx context.Context) ([]Course, error)
}
