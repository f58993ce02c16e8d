package api

import (
	"context"
	"net/http"

	"github.com/ernie/crewvoice/internal/auth"
	"github.com/ernie/crewvoice/internal/collector"
	"github.com/ernie/crewvoice/internal/leaderboard"
)

// Router holds the HTTP routes and dependencies
type Router struct {
	mux     *http.ServeMux
	store   leaderboard.Store
	manager *collector.Manager
	wsHub   *WebSocketHub
	auth    *auth.Service
}

// NewRouter creates a new HTTP router
func NewRouter(store leaderboard.Store, manager *collector.Manager, authService *auth.Service) *Router {
	r := &Router{
		mux:     http.NewServeMux(),
		store:   store,
		manager: manager,
		wsHub:   NewWebSocketHub(),
		auth:    authService,
	}

	// Live state
	r.mux.HandleFunc("GET /api/sessions", r.handleGetSessions)
	r.mux.HandleFunc("GET /api/channels", r.handleGetChannels)

	// Leaderboard and matches
	r.mux.HandleFunc("GET /api/leaderboard", r.handleGetLeaderboard)
	r.mux.HandleFunc("GET /api/players/{name}", r.handleGetPlayer)
	r.mux.HandleFunc("GET /api/matches/{id}/narrative", r.handleGetNarrative)

	// Auth routes
	r.mux.HandleFunc("POST /api/auth/login", r.handleLogin)
	r.mux.HandleFunc("GET /api/auth/whoami", r.handleWhoAmI)

	// Automute switch (admin only to change)
	r.mux.HandleFunc("GET /api/automute", r.handleGetAutomute)
	r.mux.HandleFunc("PUT /api/automute", r.requireAdmin(r.handleSetAutomute))

	// Player link management (admin only)
	r.mux.HandleFunc("PUT /api/players/{name}/link", r.requireAdmin(r.handleLinkPlayer))
	r.mux.HandleFunc("DELETE /api/players/{name}/link", r.requireAdmin(r.handleUnlinkPlayer))

	// WebSocket endpoint
	r.mux.HandleFunc("GET /ws", r.handleWebSocket)

	// Health check
	r.mux.HandleFunc("GET /health", r.handleHealth)

	return r
}

// ServeHTTP implements http.Handler
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	// CORS headers for API
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if req.Method == "OPTIONS" {
		w.WriteHeader(http.StatusOK)
		return
	}

	r.mux.ServeHTTP(w, req)
}

// StartWebSocketHub starts broadcasting manager events to WebSocket clients
// until ctx ends
func (r *Router) StartWebSocketHub(ctx context.Context) {
	go r.wsHub.Run(ctx)

	// Forward events from manager to WebSocket hub
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event := <-r.manager.Events():
				r.wsHub.Broadcast(event)
			}
		}
	}()
}
