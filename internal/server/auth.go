package server

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"ariot.dev/platform/internal/store"
)

// handleLogin checks the submitted credentials against the configured admin
// account and opens a session.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User string `json:"user"`
		Pass string `json:"pass"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	app := s.appSnapshot()
	if !app.Configured ||
		req.User != app.AdminUser ||
		bcrypt.CompareHashAndPassword([]byte(app.AdminPassHash), []byte(req.Pass)) != nil {
		if s.metrics != nil {
			s.metrics.AuthFailures.Inc()
		}
		s.logger.Warn("login rejected", "user", req.User)
		s.jsonError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	session, _ := s.sessions.Get(r, sessionName)
	session.Values[sessionUserKey] = req.User
	if err := session.Save(r, w); err != nil {
		s.logger.Error("failed to save session", "error", err)
		s.jsonError(w, http.StatusInternalServerError, "Session error")
		return
	}

	s.logger.Info("login accepted", "user", req.User)
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleLogout drops the session cookie.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	session, _ := s.sessions.Get(r, sessionName)
	session.Options.MaxAge = -1
	delete(session.Values, sessionUserKey)
	if err := session.Save(r, w); err != nil {
		s.logger.Error("failed to clear session", "error", err)
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// handleAppInfo reports the app name and whether the setup wizard has run.
// Public so the frontend can decide between the setup and login screens.
func (s *Server) handleAppInfo(w http.ResponseWriter, _ *http.Request) {
	app := s.appSnapshot()
	s.writeJSON(w, http.StatusOK, map[string]any{
		"name":       app.Name,
		"configured": app.Configured,
	})
}

// handleCompleteSetup stores the initial admin account and app name. Open on
// first boot; once configured, rerunning it requires a session.
func (s *Server) handleCompleteSetup(w http.ResponseWriter, r *http.Request) {
	if s.appSnapshot().Configured {
		if _, ok := s.currentUser(r); !ok {
			s.jsonError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
	}

	var req struct {
		AppName   string `json:"appName"`
		AdminUser string `json:"adminUser"`
		AdminPass string `json:"adminPass"`
	}
	if err := decodeJSON(r, &req); err != nil {
		s.jsonError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.AdminUser == "" || req.AdminPass == "" {
		s.jsonError(w, http.StatusBadRequest, "Admin user and password are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.AdminPass), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash admin password", "error", err)
		s.jsonError(w, http.StatusInternalServerError, "Setup failed")
		return
	}

	ctx := r.Context()
	for key, value := range map[string]string{
		store.SettingAppName:       req.AppName,
		store.SettingAdminUser:     req.AdminUser,
		store.SettingAdminPassHash: string(hash),
		store.SettingConfigured:    "true",
	} {
		if err := s.store.PutSetting(ctx, key, value); err != nil {
			s.logger.Error("failed to store setting", "key", key, "error", err)
			s.jsonError(w, http.StatusInternalServerError, "Setup failed")
			return
		}
	}

	if err := s.Reload(ctx); err != nil {
		s.logger.Error("failed to reload settings after setup", "error", err)
		s.jsonError(w, http.StatusInternalServerError, "Setup failed")
		return
	}

	s.logger.Info("setup completed", "app_name", req.AppName, "admin_user", req.AdminUser)
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
