package adapthttp

import (
	"net/http"

	"bootcamp/internal/app"
	"bootcamp/internal/domain"
	"bootcamp/internal/validation"
)

func (s *Server) handleEnrollmentsList(w http.ResponseWriter, r *http.Request) {
	from, err := dateQuery(r, "start_date", false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := dateQuery(r, "end_date", true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	q := r.URL.Query()
	items, page, err := s.enrollments.List(r.Context(), domain.EnrollmentFilter{
		Search:   q.Get("search"),
		UserID:   int64Query(r, "user_id"),
		CourseID: int64Query(r, "course_id"),
		Status:   q.Get("status"),
		From:     from,
		To:       to,
		Page:     pageQuery(r),
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if items == nil {
		items = []domain.Enrollment{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": items, "pagination": page})
}

// handleMyEnrollments lists the signed-in user's own enrollments with a
// count per status. An identity without a profile has none.
func (s *Server) handleMyEnrollments(w http.ResponseWriter, r *http.Request) {
	snap, _ := SnapshotFrom(r.Context())
	if snap.Profile == nil {
		counts := make(map[string]int, len(domain.EnrollmentStatuses))
		for _, st := range domain.EnrollmentStatuses {
			counts[st] = 0
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": []domain.Enrollment{}, "counts": counts})
		return
	}

	items, counts, err := s.enrollments.ListForUser(r.Context(), snap.Profile.ID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": items, "counts": counts})
}

func (s *Server) handleEnrollmentsCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID   int64  `json:"user_id"`
		CourseID int64  `json:"course_id"`
		Status   string `json:"status"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	e, err := s.enrollments.Create(r.Context(), req.UserID, req.CourseID, req.Status)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"data": e})
}

func (s *Server) handleEnrollmentsUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := parseJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	e, err := s.enrollments.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": e})
}

func (s *Server) handleEnrollmentsDelete(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.enrollments.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Enrollment deleted successfully"})
}

// handleRegister accepts the landing page's registration form.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	values, err := parseValues(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	e, err := s.enrollments.Register(r.Context(), values)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"data": e, "message": validation.MsgCourseEnrolled})
}

// handleEnroll accepts a course page's enrollment form.
func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
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
	e, err := s.enrollments.Enroll(r.Context(), id, values)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"data": e, "message": validation.MsgCourseEnrolled})
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	from, err := dateQuery(r, "start_date", false)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	to, err := dateQuery(r, "end_date", true)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	report, err := s.analytics.Report(r.Context(), r.URL.Query().Get("type"), app.Range{From: from, To: to})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
