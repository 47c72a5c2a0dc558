package handler

import (
	"net/http"
	"strconv"

	"github.com/go-faster/errors"

	"github.com/xenking/trading-academy/internal/domain/course"
	"github.com/xenking/trading-academy/internal/view"
)

// ListCourses serves the catalog page. The level and q parameters update the
// session's filter and search query when present.
func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	if q.Has("level") {
		s.Catalog.Filter(q.Get("level"))
	}
	if q.Has("q") {
		s.Catalog.Search(q.Get("q"))
	}
	writeJSON(w, http.StatusOK, encodeListing(s.Catalog.Listing()))
}

// GetCourse serves the detail page of the course in the path.
func (h *Handler) GetCourse(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		writeError(w, r, errors.Wrapf(course.ErrNotFound, "course %q", r.PathValue("id")))
		return
	}
	h.showCourse(w, r, func(p *view.CoursePage) (view.Detail, error) { return p.ShowID(id) })
}

// ShowCourse serves the detail page addressed by ?course=. Any value that
// does not name a course shows the first one.
func (h *Handler) ShowCourse(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("course")
	h.showCourse(w, r, func(p *view.CoursePage) (view.Detail, error) { return p.Show(raw) })
}

func (h *Handler) showCourse(w http.ResponseWriter, r *http.Request, show func(*view.CoursePage) (view.Detail, error)) {
	s, err := h.session(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := show(s.Course)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeDetail(d))
}
