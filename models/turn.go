package models

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationTurn is a single message in a document's transcript.
// Turns are append-only; an exchange always commits the user turn and
// the assistant turn together.
type ConversationTurn struct {
	ID                string    `bson:"_id" json:"id"`
	DocumentID        string    `bson:"document_id" json:"document_id"`
	Role              string    `bson:"role" json:"role"`
	Text              string    `bson:"text" json:"text"`
	RetrievedChunkIDs []string  `bson:"retrieved_chunk_ids,omitempty" json:"retrieved_chunk_ids,omitempty"`
	CreatedAt         time.Time `bson:"created_at" json:"created_at"`
}

type ChatRequest struct {
	Question string `json:"question" binding:"required,min=1,max=4000"`
}

type ChatResponse struct {
	Answer       string   `json:"answer"`
	UsedChunkIDs []string `json:"used_chunk_ids"`
}
