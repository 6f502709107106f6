package audit

import "time"

// Action describes what was done.
type Action string

const (
	ActionFileUploaded   Action = "file_uploaded"
	ActionFileDeleted    Action = "file_deleted"
	ActionDeleteRefused  Action = "delete_refused"
	ActionCorpusSwitched Action = "corpus_switched"
	ActionCorpusCreated  Action = "corpus_created"
)

// Entry is a single audit trail record.
type Entry struct {
	ID        string    `json:"id"`
	Actor     string    `json:"actor"`
	Action    Action    `json:"action"`
	Detail    string    `json:"detail"`
	CreatedAt time.Time `json:"created_at"`
}
