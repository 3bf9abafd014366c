package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// route instruments a handler with HTTP metrics. The route label is the
// pattern, never the raw path, to keep metric cardinality bounded.
func (s *Server) route(pattern string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.metrics == nil {
			next(w, r)
			return
		}

		s.metrics.HTTPRequestsInFlight.Inc()
		defer s.metrics.HTTPRequestsInFlight.Dec()

		timer := prometheus.NewTimer(s.metrics.HTTPRequestDuration.WithLabelValues(pattern, r.Method))
		defer timer.ObserveDuration()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		s.metrics.HTTPRequestsTotal.WithLabelValues(pattern, r.Method, strconv.Itoa(rec.status)).Inc()
	}
}

// protected wraps a handler behind the session check.
func (s *Server) protected(pattern string, next http.HandlerFunc) http.HandlerFunc {
	return s.route(pattern, func(w http.ResponseWriter, r *http.Request) {
		if _, ok := s.currentUser(r); !ok {
			if s.metrics != nil {
				s.metrics.AuthFailures.Inc()
			}
			s.jsonError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next(w, r)
	})
}

// currentUser returns the authenticated username from the session cookie.
func (s *Server) currentUser(r *http.Request) (string, bool) {
	session, err := s.sessions.Get(r, sessionName)
	if err != nil {
		return "", false
	}
	user, ok := session.Values[sessionUserKey].(string)
	return user, ok && user != ""
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to write JSON response", "error", err)
	}
}

func (s *Server) jsonError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// decodeJSON reads a JSON request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(dst)
}
