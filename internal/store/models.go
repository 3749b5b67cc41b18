package store

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultUserID is used when a request carries no user identity.
const DefaultUserID = "default"

type ChatMessage struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// DataChunk is a slice of a legal document with its embedding.
type DataChunk struct {
	ID            string    `json:"id"`
	Content       string    `json:"content"`
	Category      string    `json:"category"`
	Source        string    `json:"source"`
	ChunkIndex    int       `json:"chunk_id"`
	TotalChunks   int       `json:"total_chunks"`
	IndexedAt     time.Time `json:"indexed_at"`
	Embedding     []float32 `json:"-"`
	EmbeddingJSON string    `json:"-"` // stored as a JSON array in SQLite
}
