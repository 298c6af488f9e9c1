package model

import "strings"

// SessionType is the presentation category derived from session tags.
type SessionType string

const (
	SessionTypeSession SessionType = "session"
	SessionTypeCodelab SessionType = "codelab"
	SessionTypeBoxtalk SessionType = "boxtalk"
	SessionTypeMisc    SessionType = "misc"
)

// DetectSessionType classifies a session by its tag list.
func DetectSessionType(tags []string) SessionType {
	if len(tags) == 0 {
		return SessionTypeMisc
	}
	joined := strings.ToUpper(strings.Join(tags, ","))
	switch {
	case strings.Contains(joined, "TYPE_SESSIONS"), strings.Contains(joined, "KEYNOTE"):
		return SessionTypeSession
	case strings.Contains(joined, "TYPE_CODELAB"):
		return SessionTypeCodelab
	case strings.Contains(joined, "TYPE_SANDBOXTALKS"):
		return SessionTypeBoxtalk
	default:
		return SessionTypeMisc
	}
}

// Entry is the view-model record for one agenda occurrence. The embedded
// Item is the part the resolver sees; everything else is display data.
type Entry struct {
	Item

	// SessionID keys the user's schedule/reservation state. For recurring
	// blocks every occurrence shares the same SessionID but has its own ID.
	SessionID string `json:"session_id"`
	SourceID  string `json:"source_id"`

	Subtitle      string      `json:"subtitle,omitempty"`
	Room          string      `json:"room,omitempty"`
	Tags          []string    `json:"tags,omitempty"`
	MainTag       string      `json:"main_tag,omitempty"`
	SessionType   SessionType `json:"session_type,omitempty"`
	LivestreamURL string      `json:"livestream_url,omitempty"`

	// SeatsLeft is -1 when the feed does not publish capacity.
	SeatsLeft int `json:"seats_left"`

	// AvailableSessions is filled for free blocks only.
	AvailableSessions int `json:"available_sessions,omitempty"`
}

// IsSession reports whether the entry is a bookable session.
func (e Entry) IsSession() bool {
	return e.Type == TypeSession
}
