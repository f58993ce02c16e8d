package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ernie/crewvoice/internal/auth"
)

// LoginRequest is the operator's credentials
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the bearer token for admin endpoints
type LoginResponse struct {
	Token     string    `json:"token"`
	Username  string    `json:"username"`
	IsAdmin   bool      `json:"is_admin"`
	ExpiresAt time.Time `json:"expires_at"`
}

// WhoAmIResponse describes the caller's token
type WhoAmIResponse struct {
	Authenticated bool       `json:"authenticated"`
	Username      string     `json:"username,omitempty"`
	IsAdmin       bool       `json:"is_admin"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	var login LoginRequest
	if err := json.NewDecoder(req.Body).Decode(&login); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if login.Username == "" || login.Password == "" {
		writeError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	token, err := r.auth.Login(login.Username, login.Password)
	if errors.Is(err, auth.ErrNoAdmin) {
		writeError(w, http.StatusServiceUnavailable, "admin login is not configured")
		return
	}
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	resp := LoginResponse{Token: token, Username: login.Username, IsAdmin: true}
	if claims, err := r.auth.ValidateToken(token); err == nil && claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleWhoAmI reports whether the bearer token is valid. Tokens are
// stateless, so logging out is the client dropping its token.
func (r *Router) handleWhoAmI(w http.ResponseWriter, req *http.Request) {
	claims := r.bearerClaims(req)
	if claims == nil {
		writeJSON(w, http.StatusOK, WhoAmIResponse{})
		return
	}
	resp := WhoAmIResponse{Authenticated: true, Username: claims.Username, IsAdmin: claims.IsAdmin}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = &claims.ExpiresAt.Time
	}
	writeJSON(w, http.StatusOK, resp)
}

// requireAdmin rejects requests without an admin bearer token
func (r *Router) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		switch claims := r.bearerClaims(req); {
		case claims == nil:
			writeError(w, http.StatusUnauthorized, "authentication required")
		case !claims.IsAdmin:
			writeError(w, http.StatusForbidden, "admin access required")
		default:
			next(w, req)
		}
	}
}

// bearerClaims returns the validated claims of the Authorization header, or nil
func (r *Router) bearerClaims(req *http.Request) *auth.Claims {
	token, ok := strings.CutPrefix(req.Header.Get("Authorization"), "Bearer ")
	if !ok || token == "" {
		return nil
	}
	claims, err := r.auth.ValidateToken(token)
	if err != nil {
		return nil
	}
	return claims
}
