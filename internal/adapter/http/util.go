package adapthttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strconv"
	"time"

	"go.uber.org/zap"

	"bootcamp/internal/app"
	"bootcamp/internal/domain"
	"bootcamp/internal/validation"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

// writeServiceError maps an application error to its response.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var ve *app.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  validation.MsgValidationFailed,
			"errors": ve.Fields(),
		})
	case errors.Is(err, app.ErrInvalidCredentials),
		errors.Is(err, app.ErrSessionNotFound),
		errors.Is(err, app.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, app.ErrUnknownReport):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, app.ErrConflict), errors.Is(err, app.ErrAlreadyInitialized):
		writeError(w, http.StatusConflict, err)
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "Internal server error"})
	}
}

// parseJSON decodes the request body into dst.
func parseJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

// parseValues decodes a flat JSON object into form values. Numbers and
// booleans keep their literal text; nulls are absent.
func parseValues(r *http.Request) (validation.Values, error) {
	var raw map[string]any
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}
	out := make(validation.Values, len(raw))
	for k, v := range raw {
		switch v := v.(type) {
		case string:
			out[k] = v
		case json.Number:
			out[k] = v.String()
		case bool:
			out[k] = strconv.FormatBool(v)
		case nil:
		default:
			return nil, fmt.Errorf("invalid json: field %q must be a scalar", k)
		}
	}
	return out, nil
}

// ParseID parses a positive record ID.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func intQuery(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func int64Query(r *http.Request, key string) int64 {
	n, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func pageQuery(r *http.Request) domain.Page {
	return domain.Page{
		Number: intQuery(r, "page", 1),
		Limit:  intQuery(r, "limit", domain.DefaultPageLimit),
	}
}

// dateQuery parses a YYYY-MM-DD parameter as a UTC day. With endOfDay the
// last instant of that day is returned.
func dateQuery(r *http.Request, key string, endOfDay bool) (time.Time, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q", key, v)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func withNoCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

func spaFromDisk(dir string) http.Handler {
	fileServer := http.FileServer(http.Dir(dir))
	indexPath := path.Join(dir, "index.html")

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		staticPath := path.Join(dir, path.Clean(r.URL.Path))
		if info, err := os.Stat(staticPath); err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, indexPath)
	})
}
