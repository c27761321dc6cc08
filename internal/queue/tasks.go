package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"chatpdf-backend/internal/logger"
	"chatpdf-backend/services"
)

const TaskIndexDocument = "document:index"

type IndexDocumentPayload struct {
	DocumentID string `json:"document_id"`
	FilePath   string `json:"file_path"`
}

// NewIndexDocumentTask builds the task that drives the indexing pipeline
// for one uploaded document. Retries cover worker crashes; a document
// that reached "failed" is not re-run because the handler reports those
// as success.
func NewIndexDocumentTask(documentID, filePath string) (*asynq.Task, error) {
	payload, err := json.Marshal(IndexDocumentPayload{
		DocumentID: documentID,
		FilePath:   filePath,
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskIndexDocument,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue("critical"),
	), nil
}

type TaskProcessor struct {
	indexer *services.Indexer
}

func NewTaskProcessor(indexer *services.Indexer) *TaskProcessor {
	return &TaskProcessor{indexer: indexer}
}

func (p *TaskProcessor) HandleIndexDocument(ctx context.Context, t *asynq.Task) error {
	var payload IndexDocumentPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %w", asynq.SkipRetry)
	}

	logger.Info("indexing document", "document_id", payload.DocumentID)
	return p.indexer.Run(ctx, payload.DocumentID, payload.FilePath)
}
