package adapthttp

import (
	"net/http"

	"bootcamp/internal/domain"
)

func (s *Server) handleCoursesList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	courses, page, err := s.courses.List(r.Context(), domain.CourseFilter{
		Search: q.Get("search"),
		Level:  q.Get("level"),
		Page:   pageQuery(r),
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if courses == nil {
		courses = []domain.Course{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": courses, "pagination": page})
}

// handleCatalog lists every course for the public course pages.
func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	courses, _, err := s.courses.List(r.Context(), domain.CourseFilter{Level: r.URL.Query().Get("level")})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if courses == nil {
		courses = []domain.Course{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": courses})
}

func (s *Server) handleCoursesGet(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c, err := s.courses.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": c})
}

func (s *Server) handleCoursesCreate(w http.ResponseWriter, r *http.Request) {
	values, err := parseValues(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c, err := s.courses.Create(r.Context(), values)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"data": c})
}

func (s *Server) handleCoursesUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	values, err := parseValues(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	c, err := s.courses.Update(r.Context(), id, values)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": c})
}

func (s *Server) handleCoursesDelete(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.courses.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Course deleted successfully"})
}
