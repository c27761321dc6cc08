package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"chatpdf-backend/internal/config"
	"chatpdf-backend/internal/fault"
	"chatpdf-backend/internal/logger"
	"chatpdf-backend/internal/vector"
	"chatpdf-backend/models"
)

// DeletionStore is the persistence slice document removal needs.
type DeletionStore interface {
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	DeleteChunks(ctx context.Context, documentID string) error
	DeleteTurns(ctx context.Context, documentID string) error
	DeleteDocument(ctx context.Context, id string) error
}

// Deleter removes a document and everything derived from it: the vector
// namespace, stored chunks, the uploaded file, and (policy permitting)
// the transcript.
type Deleter struct {
	store      DeletionStore
	index      vector.Index
	storageDir string
	retain     bool
}

func NewDeleter(store DeletionStore, index vector.Index, cfg *config.Config) *Deleter {
	return &Deleter{
		store:      store,
		index:      index,
		storageDir: cfg.StorageDir,
		retain:     cfg.RetainTranscripts,
	}
}

func (d *Deleter) Delete(ctx context.Context, ownerID, documentID string) error {
	doc, err := d.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	if doc.OwnerID != ownerID {
		return fmt.Errorf("%w: document %s", fault.ErrNotFound, documentID)
	}

	// Namespace deletion is idempotent; a document that failed before
	// embedding has no namespace content and this is a no-op.
	if err := d.index.Delete(ctx, doc.Namespace); err != nil {
		return err
	}

	if err := d.store.DeleteChunks(ctx, documentID); err != nil {
		return err
	}

	if !d.retain {
		if err := d.store.DeleteTurns(ctx, documentID); err != nil {
			return err
		}
	}

	if err := d.store.DeleteDocument(ctx, documentID); err != nil {
		return err
	}

	path := UploadPath(d.storageDir, ownerID, documentID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to remove uploaded file", "path", path, "error", err)
	}

	return nil
}

// UploadPath is where an uploaded PDF lives on disk.
func UploadPath(storageDir, ownerID, documentID string) string {
	return filepath.Join(storageDir, "pdfs", ownerID, documentID+".pdf")
}
