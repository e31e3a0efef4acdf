package adapthttp

import (
	"net/http"

	"bootcamp/internal/domain"
)

func (s *Server) handleUsersList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	users, page, err := s.users.List(r.Context(), domain.UserFilter{
		Search: q.Get("search"),
		Role:   q.Get("role"),
		Page:   pageQuery(r),
	})
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if users == nil {
		users = []domain.Profile{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": users, "pagination": page})
}

func (s *Server) handleUsersGet(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	u, err := s.users.Get(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": u})
}

func (s *Server) handleUsersCreate(w http.ResponseWriter, r *http.Request) {
	values, err := parseValues(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	u, err := s.users.Create(r.Context(), values)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"data": u})
}

func (s *Server) handleUsersUpdate(w http.ResponseWriter, r *http.Request) {
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
	u, err := s.users.Update(r.Context(), id, values)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": u})
}

func (s *Server) handleUsersDelete(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.users.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "User deleted successfully"})
}
