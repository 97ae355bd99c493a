package types

// Journal entry kinds.
const (
	JournalNotification = "NOTIFICATION"
	JournalCommand      = "COMMAND"
	JournalConnection   = "CONNECTION"
)

// JournalEntry is one line of the client's event journal.
type JournalEntry struct {
	Time    string         `json:"time"`
	Kind    string         `json:"kind"`
	Name    string         `json:"name,omitempty"`
	Message string         `json:"message,omitempty"`
	OK      bool           `json:"ok"`
	Extra   map[string]any `json:"extra,omitempty"`
}
