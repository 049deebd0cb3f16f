package handlers

import (
	"net/http"
)

// Token lifecycle handlers

// expiryWarningSeconds is the warning band surfaced to the status endpoint.
const expiryWarningSeconds = 300

// tokenStatus describes one stored credential without exposing its value.
type tokenStatus struct {
	Present          bool   `json:"present"`
	Expired          bool   `json:"expired,omitempty"`
	ExpiringSoon     bool   `json:"expiring_soon,omitempty"`
	ExpiresInSeconds *int64 `json:"expires_in_seconds,omitempty"`
	Scopes           string `json:"scopes,omitempty"`
	AudienceValid    *bool  `json:"audience_valid,omitempty"`
}

func (h *Handlers) statusOf(tokenString string, checkAudience bool) tokenStatus {
	status := tokenStatus{Present: tokenString != ""}
	if !status.Present {
		return status
	}
	status.Expired = h.tokens.IsExpired(tokenString)
	if ttl, ok := h.tokens.TimeUntilExpiry(tokenString); ok {
		seconds := int64(ttl.Seconds())
		status.ExpiresInSeconds = &seconds
		status.ExpiringSoon = seconds > 0 && seconds < expiryWarningSeconds
	}
	status.Scopes = h.tokens.Scopes(tokenString)
	if checkAudience {
		valid := h.tokens.AudienceValid(tokenString)
		status.AudienceValid = &valid
	}
	return status
}

// GetTokenStatus reports the stored credentials' presence and expiry
// @Summary Get token status
// @Description Reports presence and expiry of stored credentials; never exposes token values
// @Tags tokens
// @Produce json
// @Success 200 {object} map[string]tokenStatus "Per-credential status"
// @Router /api/token/status [get]
func (h *Handlers) GetTokenStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	writeJSON(w, http.StatusOK, map[string]tokenStatus{
		"access_token":  h.statusOf(h.tokens.AccessToken(ctx), true),
		"id_token":      h.statusOf(h.tokens.IDToken(ctx), false),
		"refresh_token": {Present: h.tokens.RefreshToken(ctx) != ""},
	})
}

// RenewToken triggers a manual token renewal
// @Summary Renew tokens
// @Description Exchanges the stored refresh token for a fresh token set
// @Tags tokens
// @Produce json
// @Success 200 {object} map[string]bool "Renewal outcome"
// @Router /api/token/renew [post]
func (h *Handlers) RenewToken(w http.ResponseWriter, r *http.Request) {
	renewed := h.tokens.Renew(r.Context())
	writeJSON(w, http.StatusOK, map[string]bool{"renewed": renewed})
}

// Logout clears every stored credential
// @Summary Log out
// @Description Erases the stored id, access, and refresh tokens
// @Tags tokens
// @Success 204 "Credentials cleared"
// @Router /api/logout [post]
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	h.tokens.Clear(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Health returns service liveness
// @Summary Health check
// @Produce json
// @Success 200 {object} map[string]string "Service status"
// @Router /health [get]
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
