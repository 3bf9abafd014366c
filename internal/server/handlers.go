package server

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"ariot.dev/platform/internal/pipeline"
	"ariot.dev/platform/internal/store"
)

// maxWebhookBody bounds inbound payload size. Uplink payloads are small;
// anything near this limit is abuse, not telemetry.
const maxWebhookBody = 1 << 20

const noDefaultIntegrationMsg = `No integration configured for root /webhook. Please create an integration with slug "webhook" or "chirpstack".`

// handleRootWebhook ingests a payload on the bare /webhook path, letting the
// pipeline resolve the default integration.
func (s *Server) handleRootWebhook(w http.ResponseWriter, r *http.Request) {
	s.serveWebhook(w, r, "")
}

// handleSlugWebhook ingests a payload addressed to a specific integration.
func (s *Server) handleSlugWebhook(w http.ResponseWriter, r *http.Request) {
	s.serveWebhook(w, r, r.PathValue("slug"))
}

func (s *Server) serveWebhook(w http.ResponseWriter, r *http.Request, slug string) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Error", http.StatusInternalServerError)
		return
	}

	result := s.pipeline.Process(r.Context(), slug, body)

	// The audit row is already written; the response only mirrors the
	// terminal state.
	switch result.Outcome {
	case pipeline.OutcomeProcessed, pipeline.OutcomeWaitingLocation:
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "OK")
	case pipeline.OutcomeNotFound:
		http.Error(w, "Not Found", http.StatusNotFound)
	case pipeline.OutcomeNoIntegration:
		http.Error(w, noDefaultIntegrationMsg, http.StatusNotFound)
	case pipeline.OutcomeDecodeFailed:
		http.Error(w, "Decoder Error", http.StatusBadRequest)
	default:
		http.Error(w, "Error", http.StatusInternalServerError)
	}
}

// handleListIntegrations returns all integrations, newest first. Decoder
// scripts are never serialized.
func (s *Server) handleListIntegrations(w http.ResponseWriter, r *http.Request) {
	integrations, err := s.store.ListIntegrations(r.Context())
	if err != nil {
		s.logger.Error("failed to list integrations", "error", err)
		s.jsonError(w, http.StatusInternalServerError, "Fetch error")
		return
	}
	s.writeJSON(w, http.StatusOK, integrations)
}

// handleCreateIntegration registers a new webhook integration and audits the
// creation.
func (s *Server) handleCreateIntegration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name   string `json:"name"`
		Slug   string `json:"slug"`
		Script string `json:"script"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	ctx := r.Context()
	integration, err := s.store.CreateIntegration(ctx, req.Name, req.Slug, req.Script)
	switch {
	case errors.Is(err, store.ErrInvalidInput):
		s.jsonError(w, http.StatusBadRequest, "Name, slug, and script are required")
		return
	case errors.Is(err, store.ErrDuplicateSlug):
		s.jsonError(w, http.StatusConflict, "An integration with this slug already exists")
		return
	case err != nil:
		s.logger.Error("failed to create integration", "error", err)
		s.jsonError(w, http.StatusInternalServerError, "Create failed")
		return
	}

	if err := s.store.AppendSystemLog(ctx, store.SourceSystem, store.LevelInfo,
		"Integration Created",
		map[string]any{"name": integration.Name, "slug": integration.EndpointSlug}); err != nil {
		s.logger.Error("failed to audit integration creation", "error", err)
	}

	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleDeleteIntegration removes an integration by id.
func (s *Server) handleDeleteIntegration(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(r.PathValue("id"), 10, 32)
	if err != nil {
		s.jsonError(w, http.StatusBadRequest, "Invalid integration id")
		return
	}

	switch err := s.store.DeleteIntegration(r.Context(), uint(id)); {
	case errors.Is(err, store.ErrNotFound):
		s.jsonError(w, http.StatusNotFound, "Integration not found")
	case err != nil:
		s.logger.Error("failed to delete integration", "id", id, "error", err)
		s.jsonError(w, http.StatusInternalServerError, "Delete failed")
	default:
		s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
	}
}

// handleSystemLogs returns the most recent audit entries.
func (s *Server) handleSystemLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.RecentSystemLogs(r.Context(), 50)
	if err != nil {
		s.logger.Error("failed to fetch system logs", "error", err)
		s.jsonError(w, http.StatusInternalServerError, "Fetch logs error")
		return
	}
	s.writeJSON(w, http.StatusOK, entries)
}

// handleAllData returns every located point for the map view.
func (s *Server) handleAllData(w http.ResponseWriter, r *http.Request) {
	points, err := s.store.ListLocatedPoints(r.Context())
	if err != nil {
		s.logger.Error("failed to fetch data points", "error", err)
		s.jsonError(w, http.StatusInternalServerError, "DB Error")
		return
	}
	s.writeJSON(w, http.StatusOK, points)
}

// handleSavePoint stores a manually surveyed point.
func (s *Server) handleSavePoint(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AvgRSSI   float64 `json:"avg_rssi"`
		AvgSNR    float64 `json:"avg_snr"`
		Latitude  float64 `json:"lat"`
		Longitude float64 `json:"lng"`
		Note      string  `json:"note"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	point := &store.SavedPoint{
		AvgRSSI:   req.AvgRSSI,
		AvgSNR:    req.AvgSNR,
		Latitude:  req.Latitude,
		Longitude: req.Longitude,
		Note:      req.Note,
	}
	if err := s.store.SaveSurveyPoint(r.Context(), point); err != nil {
		s.logger.Error("failed to save survey point", "error", err)
		s.jsonError(w, http.StatusInternalServerError, "Save failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleSaveScenario stores a coverage planner scenario as planned gateways.
func (s *Server) handleSaveScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Gateways []struct {
			Latitude  float64 `json:"lat"`
			Longitude float64 `json:"lng"`
			Radius    float64 `json:"radius"`
			Frequency float64 `json:"freq"`
		} `json:"gateways"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Gateways == nil {
		s.jsonError(w, http.StatusBadRequest, "Invalid data")
		return
	}

	gateways := make([]store.PlannedGateway, 0, len(req.Gateways))
	for _, g := range req.Gateways {
		gateways = append(gateways, store.PlannedGateway{
			Latitude:  g.Latitude,
			Longitude: g.Longitude,
			Radius:    g.Radius,
			Frequency: g.Frequency,
		})
	}
	if err := s.store.SavePlannedGateways(r.Context(), gateways); err != nil {
		s.logger.Error("failed to save planner scenario", "error", err)
		s.jsonError(w, http.StatusInternalServerError, "Save error")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleExportCSV streams all measurements and saved points as CSV.
func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.ExportRows(r.Context())
	if err != nil {
		s.logger.Error("failed to fetch export rows", "error", err)
		http.Error(w, "DB Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="ariot_data.csv"`)

	cw := csv.NewWriter(w)
	record := []string{"type", "gateway", "rssi", "snr", "latitude", "longitude", "timestamp"}
	if err := cw.Write(record); err != nil {
		s.logger.Error("failed to write CSV header", "error", err)
		return
	}
	for _, row := range rows {
		record = record[:0]
		record = append(record,
			row.Type,
			row.Gateway,
			strconv.FormatFloat(row.RSSI, 'f', -1, 64),
			strconv.FormatFloat(row.SNR, 'f', -1, 64),
			formatCoord(row.Latitude),
			formatCoord(row.Longitude),
			row.CreatedAt.UTC().Format(time.RFC3339),
		)
		if err := cw.Write(record); err != nil {
			s.logger.Error("failed to write CSV row", "error", err)
			return
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.logger.Error("failed to flush CSV", "error", err)
	}
}

// formatCoord renders an optional coordinate; unlocated rows export empty
// cells rather than a sentinel.
func formatCoord(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// handleHealth serves health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(`{"status":"ok"}`)); err != nil {
		s.logger.Error("failed to write health response", "error", err)
	}
}
