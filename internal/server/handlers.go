package server

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openlearnhq/coursegate/internal/activity"
	"github.com/openlearnhq/coursegate/internal/credentials"
	"github.com/openlearnhq/coursegate/pkg/logger"
)

// maxSettingBody bounds the accepted size of a settings payload.
const maxSettingBody = 64 * 1024

type errorResponse struct {
	Error string `json:"error"`
}

type settingResponse struct {
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at,omitempty"`
}

type putSettingResponse struct {
	Name    string `json:"name"`
	Saved   bool   `json:"saved"`
	Rebuilt bool   `json:"rebuilt,omitempty"`
}

// rateLimitMiddleware applies the per-client API budget.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.apiLimiter != nil && !s.apiLimiter.Allow(clientIP(r)) {
			s.respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// authMiddleware enforces the bearer admin token. Failed attempts consume a
// separate, much smaller budget so the token cannot be brute-forced.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.AdminToken == "" {
			s.respondError(w, http.StatusServiceUnavailable, "admin API is not configured")
			return
		}

		ip := clientIP(r)
		token, ok := bearerToken(r)
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) != 1 {
			// Only failures consume the attempt budget; a valid token is
			// never throttled here.
			if s.authLimiter != nil && !s.authLimiter.Allow(ip) {
				s.respondError(w, http.StatusTooManyRequests, "too many authentication attempts")
				return
			}
			s.log.Warn("admin authentication failed", logger.ClientIPField(ip))
			s.respondError(w, http.StatusUnauthorized, "invalid or missing bearer token")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleGetSetting(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !knownSetting(name) {
		s.respondError(w, http.StatusNotFound, "unknown setting")
		return
	}

	setting, err := s.settings.GetSetting(r.Context(), name)
	if err != nil {
		s.log.Error("failed to read setting", logger.StringField("setting", name), logger.ErrorField(err))
		s.respondError(w, http.StatusInternalServerError, "failed to read setting")
		return
	}
	if setting == nil {
		s.respondError(w, http.StatusNotFound, "setting not found")
		return
	}

	s.respondJSON(w, http.StatusOK, settingResponse{
		Name:      setting.Name,
		Data:      setting.Data,
		UpdatedAt: setting.UpdatedAt,
	})
}

// handlePutSetting stores a named configuration. Writing the telegram
// setting additionally rebuilds the bot connection so the new token takes
// effect without a restart.
func (s *Server) handlePutSetting(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !knownSetting(name) {
		s.respondError(w, http.StatusNotFound, "unknown setting")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSettingBody))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	if err := validateSettingPayload(name, body); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.settings.PutSetting(r.Context(), name, body); err != nil {
		s.log.Error("failed to store setting", logger.StringField("setting", name), logger.ErrorField(err))
		s.respondError(w, http.StatusInternalServerError, "failed to store setting")
		return
	}

	if s.recorder != nil {
		s.recorder.Record(r.Context(), activity.KindCredentialsUpdated, "setting "+name+" updated", clientIP(r))
	}

	resp := putSettingResponse{Name: name, Saved: true}
	if name == credentials.SettingTelegram && s.manager != nil {
		if err := s.manager.Rebuild(r.Context()); err != nil {
			s.log.Error("connection rebuild after settings update failed", logger.ErrorField(err))
			s.respondJSON(w, http.StatusBadGateway, putSettingResponse{Name: name, Saved: true})
			return
		}
		resp.Rebuilt = true
		if s.recorder != nil {
			s.recorder.Record(r.Context(), activity.KindConnectionRebuilt, "bot connection rebuilt", clientIP(r))
		}
	}

	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	if s.activities == nil {
		s.respondError(w, http.StatusNotFound, "activity feed is not available")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 200 {
			s.respondError(w, http.StatusBadRequest, "limit must be between 1 and 200")
			return
		}
		limit = parsed
	}

	entries, err := s.activities.ListRecentActivity(r.Context(), limit)
	if err != nil {
		s.log.Error("failed to list activity", logger.ErrorField(err))
		s.respondError(w, http.StatusInternalServerError, "failed to list activity")
		return
	}
	s.respondJSON(w, http.StatusOK, entries)
}

func (s *Server) handleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	if s.catalog != nil {
		s.catalog.Invalidate(r.Context())
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("failed to encode response", logger.ErrorField(err))
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, msg string) {
	s.respondJSON(w, status, errorResponse{Error: msg})
}

// knownSetting restricts the settings API to the named configurations.
func knownSetting(name string) bool {
	return name == credentials.SettingTelegram || name == credentials.SettingCommerce
}

// validateSettingPayload rejects bodies that do not decode into the named
// setting's shape, so malformed credentials never reach the store.
func validateSettingPayload(name string, body []byte) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()

	switch name {
	case credentials.SettingTelegram:
		var v credentials.Telegram
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("invalid telegram payload: %w", err)
		}
	case credentials.SettingCommerce:
		var v credentials.Commerce
		if err := dec.Decode(&v); err != nil {
			return fmt.Errorf("invalid commerce payload: %w", err)
		}
	}
	return nil
}

func bearerToken(r *http.Request) (string, bool) {
	const prefix = "Bearer "
	auth := r.Header.Get("Authorization")
	if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
		return "", false
	}
	return auth[len(prefix):], true
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
