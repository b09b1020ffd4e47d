package locomo

// Turn is a single utterance by one named speaker within a session.
type Turn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Session is one numbered sub-conversation of a sample.
type Session struct {
	Key       string // "session_<N>"
	Number    string // <N> exactly as written in the key, e.g. "01"
	Index     int
	DateLabel string // raw "<key>_date_time" value, empty when absent
	Turns     []Turn
}

// Sample is one top-level corpus record. Sessions are held in ascending index order.
type Sample struct {
	SampleID string
	Sessions []Session
}

// Exchange is a normalized user/assistant pair as accepted by the memory ingest endpoint.
type Exchange struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

const (
	// NoResponse fills the assistant side of a trailing unpaired turn.
	NoResponse = "(no response)"
	// Acknowledged is the assistant side of every session header.
	Acknowledged = "(acknowledged)"
	// UnknownDate replaces a missing session date label.
	UnknownDate = "unknown date"
)
