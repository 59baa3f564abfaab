package ops

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/cap2cal/internal/errors"
	"github.com/hpungsan/cap2cal/internal/event"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// BaseDirName is the per-user data directory under $HOME.
const BaseDirName = ".cap2cal"

// ticketSearchURL is the search engine used when an event has no direct ticket link.
const ticketSearchURL = "https://www.google.com/search?q="

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// DefaultBaseDir returns ~/.cap2cal.
func DefaultBaseDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", errors.NewInternal(fmt.Errorf("failed to get home directory: %w", err))
	}
	return filepath.Join(homeDir, BaseDirName), nil
}

// TicketLink returns where the user can buy tickets: the direct link when the
// poster had one, otherwise a web search for the event. Returns "" when there
// is nothing to search for.
func TicketLink(e *event.CaptureEvent) string {
	if e.TicketDirectLink != "" {
		return e.TicketDirectLink
	}

	query := strings.TrimSpace(e.TicketSearchQuery)
	if query == "" {
		parts := []string{e.Title}
		if e.Location != nil {
			parts = append(parts, e.Location.City)
		}
		query = strings.TrimSpace(strings.Join(parts, " "))
		if query == "" {
			return ""
		}
		query += " tickets"
	}

	return ticketSearchURL + url.QueryEscape(query)
}

// requireID trims id and rejects empty values.
func requireID(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", errors.NewInvalidRequest("id is required")
	}
	return id, nil
}
