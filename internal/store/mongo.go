// Package store holds the MongoDB persistence for documents, chunks and
// conversation turns. Status transitions are conditional updates so each
// indexing phase is applied exactly once even with competing workers.
package store

import (
	"context"
	"fmt"
	"time"

	"chatpdf-backend/internal/fault"
	"chatpdf-backend/models"
	"chatpdf-backend/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	documents *mongo.Collection
	chunks    *mongo.Collection
	exchanges *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		documents: db.Collection("documents"),
		chunks:    db.Collection("chunks"),
		exchanges: db.Collection("exchanges"),
	}
}

func (s *Store) CreateDocument(ctx context.Context, doc *models.Document) error {
	_, err := s.documents.InsertOne(ctx, doc)
	return err
}

func (s *Store) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var doc models.Document
	err := s.documents.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: document %s", fault.ErrNotFound, id)
		}
		return nil, err
	}
	return &doc, nil
}

func (s *Store) ListDocuments(ctx context.Context, ownerID string) ([]models.Document, error) {
	cursor, err := s.documents.Find(ctx, bson.M{"owner_id": ownerID},
		options.Find().SetSort(bson.M{"uploaded_at": -1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []models.Document
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	_, err := s.documents.DeleteOne(ctx, bson.M{"_id": id})
	return err
}

// Transition moves a document from one status to the next. The filter on
// the prior status makes the move exactly-once: a second worker racing on
// the same document gets fault.ErrInvalidState and backs off.
func (s *Store) Transition(ctx context.Context, id, from, to string) error {
	res, err := s.documents.UpdateOne(ctx,
		bson.M{"_id": id, "status": from},
		bson.M{"$set": bson.M{"status": to, "updated_at": time.Now()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: document %s is not in status %q", fault.ErrInvalidState, id, from)
	}
	return nil
}

// MarkIndexed completes indexing. chunk_count and page_count are written
// only here, together with the final transition.
func (s *Store) MarkIndexed(ctx context.Context, id string, pageCount, chunkCount int) error {
	now := time.Now()
	res, err := s.documents.UpdateOne(ctx,
		bson.M{"_id": id, "status": models.StatusEmbedding},
		bson.M{"$set": bson.M{
			"status":      models.StatusIndexed,
			"page_count":  pageCount,
			"chunk_count": chunkCount,
			"indexed_at":  now,
			"updated_at":  now,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: document %s is not in status %q", fault.ErrInvalidState, id, models.StatusEmbedding)
	}
	return nil
}

// MarkFailed moves a document to failed from any non-terminal status.
// Already-terminal documents are left alone.
func (s *Store) MarkFailed(ctx context.Context, id, reason string) error {
	_, err := s.documents.UpdateOne(ctx,
		bson.M{"_id": id, "status": bson.M{"$in": models.NonTerminalStatuses()}},
		bson.M{"$set": bson.M{
			"status":         models.StatusFailed,
			"failure_reason": reason,
			"updated_at":     time.Now(),
		}},
	)
	return err
}

// FailStuck sweeps documents that have sat in a non-terminal status past
// the cutoff. Returns the number of documents failed.
func (s *Store) FailStuck(ctx context.Context, cutoff time.Time, reason string) (int64, error) {
	res, err := s.documents.UpdateMany(ctx,
		bson.M{
			"status":     bson.M{"$in": models.NonTerminalStatuses()},
			"updated_at": bson.M{"$lt": cutoff},
		},
		bson.M{"$set": bson.M{
			"status":         models.StatusFailed,
			"failure_reason": reason,
			"updated_at":     time.Now(),
		}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// ReplaceChunks drops any chunks from an earlier indexing attempt and
// inserts the new set. Chunk ids are deterministic, so the matching
// vector upserts overwrite rather than duplicate.
func (s *Store) ReplaceChunks(ctx context.Context, documentID string, chunks []models.Chunk) error {
	if _, err := s.chunks.DeleteMany(ctx, bson.M{"document_id": documentID}); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	docs := make([]interface{}, len(chunks))
	for i, chunk := range chunks {
		docs[i] = chunk
	}
	_, err := s.chunks.InsertMany(ctx, docs)
	return err
}

// GetChunkTexts loads and decompresses chunk text for the given ids.
func (s *Store) GetChunkTexts(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}

	cursor, err := s.chunks.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	texts := make(map[string]string, len(ids))
	for cursor.Next(ctx) {
		var chunk models.Chunk
		if err := cursor.Decode(&chunk); err != nil {
			return nil, err
		}
		text, err := utils.DecompressText(chunk.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress chunk %s: %w", chunk.ID, err)
		}
		texts[chunk.ID] = text
	}
	return texts, cursor.Err()
}

func (s *Store) DeleteChunks(ctx context.Context, documentID string) error {
	_, err := s.chunks.DeleteMany(ctx, bson.M{"document_id": documentID})
	return err
}

// exchange is the stored form of one question/answer pair. Both turns
// live in one document, so committing an exchange is a single atomic
// write and a transcript never ends up with a question missing its
// answer or vice versa.
type exchange struct {
	ID         string                    `bson:"_id"`
	DocumentID string                    `bson:"document_id"`
	CreatedAt  time.Time                 `bson:"created_at"`
	Turns      []models.ConversationTurn `bson:"turns"`
}

func newExchange(turns []models.ConversationTurn) exchange {
	return exchange{
		ID:         turns[0].ID,
		DocumentID: turns[0].DocumentID,
		CreatedAt:  turns[0].CreatedAt,
		Turns:      turns,
	}
}

// flattenExchanges expands exchanges, given oldest first, into their
// turns in transcript order.
func flattenExchanges(exchanges []exchange) []models.ConversationTurn {
	var turns []models.ConversationTurn
	for _, ex := range exchanges {
		turns = append(turns, ex.Turns...)
	}
	return turns
}

// tailTurns keeps at most the last limit turns.
func tailTurns(turns []models.ConversationTurn, limit int) []models.ConversationTurn {
	if limit > 0 && len(turns) > limit {
		return turns[len(turns)-limit:]
	}
	return turns
}

// AppendTurns commits the turns of one exchange as one document insert.
func (s *Store) AppendTurns(ctx context.Context, turns []models.ConversationTurn) error {
	if len(turns) == 0 {
		return nil
	}

	_, err := s.exchanges.InsertOne(ctx, newExchange(turns))
	return err
}

func (s *Store) ListTurns(ctx context.Context, documentID string) ([]models.ConversationTurn, error) {
	cursor, err := s.exchanges.Find(ctx, bson.M{"document_id": documentID},
		options.Find().SetSort(bson.M{"created_at": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var exchanges []exchange
	if err := cursor.All(ctx, &exchanges); err != nil {
		return nil, err
	}
	return flattenExchanges(exchanges), nil
}

// ListRecentTurns returns the last limit turns in chronological order.
func (s *Store) ListRecentTurns(ctx context.Context, documentID string, limit int) ([]models.ConversationTurn, error) {
	// Each exchange holds two turns; fetch just enough of the newest ones
	exchangeLimit := (limit + 1) / 2
	cursor, err := s.exchanges.Find(ctx, bson.M{"document_id": documentID},
		options.Find().SetSort(bson.M{"created_at": -1}).SetLimit(int64(exchangeLimit)))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var exchanges []exchange
	if err := cursor.All(ctx, &exchanges); err != nil {
		return nil, err
	}

	// Reverse newest-first into chronological order
	for i, j := 0, len(exchanges)-1; i < j; i, j = i+1, j-1 {
		exchanges[i], exchanges[j] = exchanges[j], exchanges[i]
	}
	return tailTurns(flattenExchanges(exchanges), limit), nil
}

func (s *Store) DeleteTurns(ctx context.Context, documentID string) error {
	_, err := s.exchanges.DeleteMany(ctx, bson.M{"document_id": documentID})
	return err
}
