package services

import (
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"chatpdf-backend/internal/config"
	"chatpdf-backend/internal/fault"
	"chatpdf-backend/internal/logger"
	"chatpdf-backend/internal/telemetry"
	"chatpdf-backend/internal/vector"
	"chatpdf-backend/models"
	"chatpdf-backend/utils"
)

// IndexerStore is the slice of document persistence the indexing
// pipeline needs.
type IndexerStore interface {
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	Transition(ctx context.Context, id, from, to string) error
	MarkIndexed(ctx context.Context, id string, pageCount, chunkCount int) error
	MarkFailed(ctx context.Context, id, reason string) error
	ReplaceChunks(ctx context.Context, documentID string, chunks []models.Chunk) error
}

// Embedder turns texts into vectors, one per input in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Indexer runs the extract, chunk, embed, upsert pipeline for one
// document inside the worker. Each phase is guarded by a conditional
// status transition; a transition that does not match means another
// actor (a competing worker or the watchdog) got there first.
type Indexer struct {
	store    IndexerStore
	embedder Embedder
	index    vector.Index
	metrics  *telemetry.Metrics

	chunkSize int
	overlap   int
	retries   uint

	extract  func([]byte) ([]string, error)
	readFile func(string) ([]byte, error)
}

func NewIndexer(store IndexerStore, embedder Embedder, index vector.Index, metrics *telemetry.Metrics, cfg *config.Config) *Indexer {
	return &Indexer{
		store:     store,
		embedder:  embedder,
		index:     index,
		metrics:   metrics,
		chunkSize: cfg.ChunkSize,
		overlap:   cfg.ChunkOverlap,
		retries:   uint(cfg.IndexRetries),
		extract:   ExtractPages,
		readFile:  os.ReadFile,
	}
}

// Run indexes the document at filePath. Terminal failures are recorded
// on the document and reported as nil so the queue does not redeliver a
// document that already reached "failed".
func (i *Indexer) Run(ctx context.Context, documentID, filePath string) error {
	doc, err := i.store.GetDocument(ctx, documentID)
	if err != nil {
		if errors.Is(err, fault.ErrNotFound) {
			logger.Warn("document vanished before indexing", "document_id", documentID)
			return nil
		}
		return err
	}

	start := time.Now()

	if err := i.step(ctx, documentID, models.StatusUploaded, models.StatusExtracting); err != nil {
		return ignoreSkip(err)
	}

	content, err := i.readFile(filePath)
	if err != nil {
		return i.fail(ctx, start, documentID, "cannot read uploaded file: "+err.Error())
	}

	// Extraction is not retried: malformed input will not fix itself
	pages, err := i.extract(content)
	if err != nil {
		return i.fail(ctx, start, documentID, err.Error())
	}

	if err := i.step(ctx, documentID, models.StatusExtracting, models.StatusChunking); err != nil {
		return ignoreSkip(err)
	}

	text := strings.TrimSpace(JoinPages(pages))
	pieces := SplitText(text, i.chunkSize, i.overlap)

	chunks := make([]models.Chunk, len(pieces))
	for seq, piece := range pieces {
		body, err := utils.CompressText(piece)
		if err != nil {
			return i.fail(ctx, start, documentID, "failed to compress chunk: "+err.Error())
		}
		chunks[seq] = models.Chunk{
			ID:         ChunkID(documentID, seq),
			DocumentID: documentID,
			Seq:        seq,
			Body:       body,
			CharCount:  len([]rune(piece)),
			TokenCount: EstimateTokens(piece),
		}
	}

	if err := i.store.ReplaceChunks(ctx, documentID, chunks); err != nil {
		return i.fail(ctx, start, documentID, "failed to store chunks: "+err.Error())
	}

	if err := i.step(ctx, documentID, models.StatusChunking, models.StatusEmbedding); err != nil {
		return ignoreSkip(err)
	}

	// A document with no extractable text still reaches indexed, with a
	// chunk count of zero; chat against it answers from an empty context.
	if len(pieces) > 0 {
		vectors, err := i.embedWithRetry(ctx, pieces)
		if err != nil {
			return i.fail(ctx, start, documentID, err.Error())
		}

		batch := make([]vector.Vector, len(chunks))
		for seq, chunk := range chunks {
			batch[seq] = vector.Vector{
				ID:     chunk.ID,
				Values: vectors[seq],
				Metadata: map[string]string{
					"document_id": documentID,
					"seq":         strconv.Itoa(seq),
				},
			}
		}

		if err := i.upsertWithRetry(ctx, doc.Namespace, batch); err != nil {
			return i.fail(ctx, start, documentID, err.Error())
		}
	}

	if err := i.store.MarkIndexed(ctx, documentID, len(pages), len(chunks)); err != nil {
		if errors.Is(err, fault.ErrInvalidState) {
			logger.Warn("document left embedding status mid-pipeline", "document_id", documentID)
			return nil
		}
		return err
	}

	i.observe(start, models.StatusIndexed)
	logger.Info("document indexed",
		"document_id", documentID,
		"pages", len(pages),
		"chunks", len(chunks),
		"duration", time.Since(start).String(),
	)
	return nil
}

// step applies one conditional transition. Losing the race is not an
// error for this worker, just a signal to stop.
func (i *Indexer) step(ctx context.Context, documentID, from, to string) error {
	err := i.store.Transition(ctx, documentID, from, to)
	if err == nil {
		return nil
	}
	if errors.Is(err, fault.ErrInvalidState) {
		logger.Warn("skipping document, status moved concurrently",
			"document_id", documentID, "expected", from)
		return errSkipped
	}
	return err
}

var errSkipped = errors.New("document handled elsewhere")

// ignoreSkip turns a lost transition race into a clean no-op so the
// queue does not redeliver the task.
func ignoreSkip(err error) error {
	if errors.Is(err, errSkipped) {
		return nil
	}
	return err
}

func (i *Indexer) embedWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	return backoff.Retry(ctx, func() ([][]float32, error) {
		return i.embedder.Embed(ctx, texts)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(i.retries))
}

func (i *Indexer) upsertWithRetry(ctx context.Context, namespace string, batch []vector.Vector) error {
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, i.index.Upsert(ctx, namespace, batch)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(i.retries))
	return err
}

func (i *Indexer) fail(ctx context.Context, start time.Time, documentID, reason string) error {
	if err := i.store.MarkFailed(ctx, documentID, reason); err != nil {
		logger.Error("failed to record indexing failure", "document_id", documentID, "error", err)
		return err
	}
	i.observe(start, models.StatusFailed)
	logger.Warn("indexing failed", "document_id", documentID, "reason", reason)
	return nil
}

func (i *Indexer) observe(start time.Time, status string) {
	if i.metrics != nil {
		i.metrics.RecordIndexing(time.Since(start).Seconds(), status)
	}
}
