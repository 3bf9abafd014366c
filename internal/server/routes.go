package server

import (
	"net/http"

	"ariot.dev/platform/pkg/metrics"
)

// Handler builds the full route table. Webhooks, auth bootstrap, health,
// metrics, and static assets are public; the rest of /api requires a session.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Webhook ingestion
	mux.HandleFunc("POST /webhook", s.route("/webhook", s.handleRootWebhook))
	mux.HandleFunc("POST /webhook/{slug}", s.route("/webhook/{slug}", s.handleSlugWebhook))

	// Auth and setup wizard
	mux.HandleFunc("POST /api/login", s.route("/api/login", s.handleLogin))
	mux.HandleFunc("POST /api/logout", s.route("/api/logout", s.handleLogout))
	mux.HandleFunc("GET /api/app-info", s.route("/api/app-info", s.handleAppInfo))
	mux.HandleFunc("POST /api/complete-setup", s.route("/api/complete-setup", s.handleCompleteSetup))

	// Integration management
	mux.HandleFunc("GET /api/integrations", s.protected("/api/integrations", s.handleListIntegrations))
	mux.HandleFunc("POST /api/integrations", s.protected("/api/integrations", s.handleCreateIntegration))
	mux.HandleFunc("DELETE /api/integrations/{id}", s.protected("/api/integrations/{id}", s.handleDeleteIntegration))

	// Monitoring and map data
	mux.HandleFunc("GET /api/system-logs", s.protected("/api/system-logs", s.handleSystemLogs))
	mux.HandleFunc("GET /api/get-all-data", s.protected("/api/get-all-data", s.handleAllData))
	mux.HandleFunc("GET /api/export-csv", s.protected("/api/export-csv", s.handleExportCSV))

	// Drive-test survey
	mux.HandleFunc("GET /api/start-session", s.protected("/api/start-session", s.handleStartSurvey))
	mux.HandleFunc("GET /api/poll-session", s.protected("/api/poll-session", s.handlePollSurvey))
	mux.HandleFunc("POST /api/save-point", s.protected("/api/save-point", s.handleSavePoint))

	// Coverage planner
	mux.HandleFunc("POST /api/save-scenario", s.protected("/api/save-scenario", s.handleSaveScenario))

	// Operational endpoints
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())

	// Static assets (catch-all, must be last)
	if s.config.StaticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(s.config.StaticDir)))
	}

	return mux
}
