package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/ernie/crewvoice/internal/domain"
	"github.com/ernie/crewvoice/internal/leaderboard"
	"github.com/ernie/crewvoice/internal/matchlog"
)

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// parseID parses an ID from the URL path
func parseID(req *http.Request, param string) (int64, error) {
	idStr := req.PathValue(param)
	return strconv.ParseInt(idStr, 10, 64)
}

// handleGetSessions returns the games in progress
func (r *Router) handleGetSessions(w http.ResponseWriter, req *http.Request) {
	sessions := r.manager.Sessions()
	if sessions == nil {
		sessions = []domain.Session{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

// handleGetChannels returns the live view of every game channel
func (r *Router) handleGetChannels(w http.ResponseWriter, req *http.Request) {
	channels := r.manager.ChannelStatus()
	if channels == nil {
		channels = []domain.ChannelStatus{}
	}
	writeJSON(w, http.StatusOK, channels)
}

// handleGetLeaderboard returns the top rated players
func (r *Router) handleGetLeaderboard(w http.ResponseWriter, req *http.Request) {
	limit := parseLimit(req, 50, 500)

	entries, err := r.store.Top(req.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleGetPlayer returns a single leaderboard entry by in-game name
func (r *Router) handleGetPlayer(w http.ResponseWriter, req *http.Request) {
	name := req.PathValue("name")
	if !validateName(name) {
		writeError(w, http.StatusBadRequest, "invalid player name")
		return
	}

	entry, err := r.store.PlayerByName(req.Context(), name)
	if errors.Is(err, leaderboard.ErrNotFound) {
		writeError(w, http.StatusNotFound, "player not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// NarrativeResponse is the rendered play-by-play of a match
type NarrativeResponse struct {
	MatchID   int64                   `json:"match_id"`
	Result    string                  `json:"result"`
	Entries   []domain.NarrativeEntry `json:"entries"`
	Truncated bool                    `json:"truncated"`
	Dropped   int                     `json:"dropped,omitempty"`
}

// handleGetNarrative renders the narrative of a recorded match
func (r *Router) handleGetNarrative(w http.ResponseWriter, req *http.Request) {
	id, err := parseID(req, "id")
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid match id")
		return
	}

	n, err := r.manager.Narrative(req.Context(), id)
	if errors.Is(err, matchlog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "match not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := NarrativeResponse{
		MatchID:   n.MatchID,
		Result:    n.Result,
		Entries:   make([]domain.NarrativeEntry, len(n.Entries)),
		Truncated: n.Truncated,
		Dropped:   n.Dropped,
	}
	for i, e := range n.Entries {
		resp.Entries[i] = domain.NarrativeEntry{Label: e.Label, Text: e.Text}
	}
	writeJSON(w, http.StatusOK, resp)
}

// AutomuteRequest is the request and response body of the automute switch
type AutomuteRequest struct {
	Enabled bool `json:"enabled"`
}

// handleGetAutomute reports whether automute is on
func (r *Router) handleGetAutomute(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, AutomuteRequest{Enabled: r.manager.AutomuteEnabled()})
}

// handleSetAutomute switches automute on or off (admin only)
func (r *Router) handleSetAutomute(w http.ResponseWriter, req *http.Request) {
	var body AutomuteRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	r.manager.SetAutomute(body.Enabled)
	writeJSON(w, http.StatusOK, AutomuteRequest{Enabled: r.manager.AutomuteEnabled()})
}

// LinkRequest is the request body for linking a player to a Discord user
type LinkRequest struct {
	DiscordID string `json:"discord_id"`
}

// handleLinkPlayer links a player to a Discord user (admin only)
func (r *Router) handleLinkPlayer(w http.ResponseWriter, req *http.Request) {
	name := req.PathValue("name")
	if !validateName(name) {
		writeError(w, http.StatusBadRequest, "invalid player name")
		return
	}

	var body LinkRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !validateDiscordID(body.DiscordID) {
		writeError(w, http.StatusBadRequest, "invalid discord id")
		return
	}

	entry, _, err := leaderboard.EnsurePlayer(req.Context(), r.store, name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create player")
		return
	}
	if err := r.store.LinkDiscord(req.Context(), entry.Name, body.DiscordID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to link player")
		return
	}
	if err := r.store.Persist(req.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to persist link")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "player linked"})
}

// handleUnlinkPlayer clears a player's Discord link (admin only)
func (r *Router) handleUnlinkPlayer(w http.ResponseWriter, req *http.Request) {
	name := req.PathValue("name")
	if !validateName(name) {
		writeError(w, http.StatusBadRequest, "invalid player name")
		return
	}

	err := r.store.UnlinkDiscord(req.Context(), name)
	if errors.Is(err, leaderboard.ErrNotFound) {
		writeError(w, http.StatusNotFound, "player not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to unlink player")
		return
	}
	if err := r.store.Persist(req.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to persist unlink")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "player unlinked"})
}

// handleHealth returns a simple health check response
func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
