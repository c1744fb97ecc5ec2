package models

// EventType names a filesystem change fanned out to connected clients.
type EventType string

const (
	EventEntryAdded   EventType = "entry_added"
	EventEntryDeleted EventType = "entry_deleted"
	EventEntryMoved   EventType = "entry_moved"
)

// Event is published to an owner's channel after the metadata commit of a
// create, delete, move or rename. Entry carries the new state for additions
// and moves; EntryID identifies the removed entry for deletions.
type Event struct {
	Type    EventType `json:"type"`
	Entry   *Entry    `json:"entry,omitempty"`
	EntryID string    `json:"entry_id,omitempty"`
}
