package api

import (
	"net/http"
	"strconv"
	"strings"
)

// maxNameLength bounds in-game names accepted in paths
const maxNameLength = 32

// parseLimit parses and validates a limit parameter with default and max values
func parseLimit(r *http.Request, defaultLimit, maxLimit int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= maxLimit {
			return parsed
		}
	}
	return defaultLimit
}

// validateName checks an in-game player name from a path
func validateName(name string) bool {
	name = strings.TrimSpace(name)
	return name != "" && len([]rune(name)) <= maxNameLength
}

// validateDiscordID checks that id looks like a Discord snowflake
func validateDiscordID(id string) bool {
	if len(id) < 15 || len(id) > 21 {
		return false
	}
	_, err := strconv.ParseUint(id, 10, 64)
	return err == nil
}
