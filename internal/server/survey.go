package server

import (
	"math"
	"net/http"
	"time"
)

// surveySamplesRequired is how many uplinks the drive-test workflow averages
// before a point is considered measured.
const surveySamplesRequired = 3

// surveySession marks the start of a drive-test measurement window for one
// user. Samples are not accumulated here; polling re-reads the measurement
// table from the start instant, so a lost poll response loses nothing.
type surveySession struct {
	StartedAt time.Time
}

// handleStartSurvey opens (or restarts) the caller's measurement window.
func (s *Server) handleStartSurvey(w http.ResponseWriter, r *http.Request) {
	user, _ := s.currentUser(r)

	s.surveyMu.Lock()
	_, existed := s.surveys[user]
	s.surveys[user] = surveySession{StartedAt: time.Now()}
	s.surveyMu.Unlock()

	if s.metrics != nil && !existed {
		s.metrics.ActiveSurveySessions.Inc()
	}

	s.logger.Info("survey session started", "user", user)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

// handlePollSurvey checks whether enough uplinks arrived since the window
// opened. Once the required count is reached the first samples are averaged
// and the session ends.
func (s *Server) handlePollSurvey(w http.ResponseWriter, r *http.Request) {
	user, _ := s.currentUser(r)

	s.surveyMu.Lock()
	session, ok := s.surveys[user]
	s.surveyMu.Unlock()
	if !ok {
		s.jsonError(w, http.StatusBadRequest, "No active session")
		return
	}

	samples, err := s.store.SignalSince(r.Context(), session.StartedAt)
	if err != nil {
		s.logger.Error("failed to poll survey samples", "user", user, "error", err)
		s.jsonError(w, http.StatusInternalServerError, "Polling error")
		return
	}

	if len(samples) < surveySamplesRequired {
		s.writeJSON(w, http.StatusOK, map[string]any{
			"status":   "pending",
			"count":    len(samples),
			"required": surveySamplesRequired,
		})
		return
	}

	var sumRSSI, sumSNR float64
	for _, sample := range samples[:surveySamplesRequired] {
		sumRSSI += sample.RSSI
		sumSNR += sample.SNR
	}

	s.surveyMu.Lock()
	delete(s.surveys, user)
	s.surveyMu.Unlock()
	if s.metrics != nil {
		s.metrics.ActiveSurveySessions.Dec()
	}

	s.logger.Info("survey session complete", "user", user, "samples", len(samples))
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "complete",
		"avg_rssi": round2(sumRSSI / surveySamplesRequired),
		"avg_snr":  round2(sumSNR / surveySamplesRequired),
	})
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
