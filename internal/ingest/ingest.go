// Package ingest reads gzipped NDJSON catalog exports and merges them into
// one catalog, later exports superseding earlier versions of a course.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/trading-academy/internal/domain/course"
	"github.com/xenking/trading-academy/internal/storage/static"
)

const (
	bloomFPR = 0.001
	// maxLine bounds one course document.
	maxLine = 1 << 20
)

// Export is one decoded export file.
type Export struct {
	Name    string
	Courses []course.Course

	filter *bloom.BloomFilter
	ids    map[int]struct{}
}

func newExport(name string, courses []course.Course) *Export {
	filter := bloom.NewWithEstimates(uint(max(len(courses), 1)), bloomFPR)
	for i := range courses {
		filter.AddString(idKey(courses[i].ID))
	}
	return &Export{Name: name, Courses: courses, filter: filter}
}

// mayContain reports whether id is possibly in the export.
func (e *Export) mayContain(id int) bool {
	return e.filter.TestString(idKey(id))
}

// contains confirms a bloom hit. The exact id set is built on first use.
func (e *Export) contains(id int) bool {
	if e.ids == nil {
		e.ids = make(map[int]struct{}, len(e.Courses))
		for i := range e.Courses {
			e.ids[e.Courses[i].ID] = struct{}{}
		}
	}
	_, ok := e.ids[id]
	return ok
}

func idKey(id int) string { return strconv.Itoa(id) }

// ReadFiles decodes every export concurrently. The result keeps the order of
// paths.
func ReadFiles(ctx context.Context, paths []string) ([]*Export, error) {
	exports := make([]*Export, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		g.Go(func() error {
			e, err := ReadFile(ctx, path)
			if err != nil {
				return err
			}
			exports[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return exports, nil
}

// ReadFile decodes one gzipped export.
func ReadFile(ctx context.Context, path string) (*Export, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	e, err := Decode(ctx, path, gz)
	if err != nil {
		return nil, err
	}
	slog.Info("export decoded", slog.String("file", path), slog.Int("courses", len(e.Courses)))
	return e, nil
}

// Decode reads one course document per line. Blank lines are skipped; an id
// repeated inside one export is an error.
func Decode(ctx context.Context, name string, r io.Reader) (*Export, error) {
	var (
		courses []course.Course
		seen    = make(map[int]int)
		line    int
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		c, err := static.DecodeCourse(data)
		if err != nil {
			return nil, errors.Wrapf(err, "%s:%d", name, line)
		}
		if prev, ok := seen[c.ID]; ok {
			return nil, errors.Errorf("%s:%d: course %d already defined on line %d", name, line, c.ID, prev)
		}
		seen[c.ID] = line
		courses = append(courses, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "scan %s", name)
	}
	return newExport(name, courses), nil
}

// Merge returns every course in export order, dropping versions that a later
// export redefines. superseded counts the dropped versions.
func Merge(exports []*Export) (courses []course.Course, superseded int) {
	for i, e := range exports {
		later := exports[i+1:]
		for _, c := range e.Courses {
			if redefined(later, c.ID) {
				superseded++
				continue
			}
			courses = append(courses, c)
		}
	}
	return courses, superseded
}

func redefined(exports []*Export, id int) bool {
	for _, e := range exports {
		if e.mayContain(id) && e.contains(id) {
			return true
		}
	}
	return false
}
