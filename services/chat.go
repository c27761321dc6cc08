package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"chatpdf-backend/internal/ai"
	"chatpdf-backend/internal/config"
	"chatpdf-backend/internal/fault"
	"chatpdf-backend/internal/logger"
	"chatpdf-backend/internal/vector"
	"chatpdf-backend/models"
)

// ChatStore is the persistence the conversation path depends on.
type ChatStore interface {
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	GetChunkTexts(ctx context.Context, ids []string) (map[string]string, error)
	AppendTurns(ctx context.Context, turns []models.ConversationTurn) error
	ListRecentTurns(ctx context.Context, documentID string, limit int) ([]models.ConversationTurn, error)
}

// QuestionEmbedder embeds a single chat question.
type QuestionEmbedder interface {
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Generator produces the model answer for a prompt with history.
type Generator interface {
	Generate(ctx context.Context, history []ai.Message, prompt string) (string, error)
}

// ChatService orchestrates one question/answer exchange against an
// indexed document: embed the question, retrieve the nearest chunks,
// assemble the prompt with trailing history, generate, and commit both
// turns atomically.
type ChatService struct {
	store    ChatStore
	embedder QuestionEmbedder
	index    vector.Index
	llm      Generator

	topK          int
	historyWindow int
	retries       uint
}

func NewChatService(store ChatStore, embedder QuestionEmbedder, index vector.Index, llm Generator, cfg *config.Config) *ChatService {
	return &ChatService{
		store:         store,
		embedder:      embedder,
		index:         index,
		llm:           llm,
		topK:          cfg.TopK,
		historyWindow: cfg.HistoryWindow,
		retries:       uint(cfg.ChatRetries),
	}
}

// Ask answers a question against the document. The document must belong
// to ownerID and be indexed; otherwise no external call is made. When
// generation fails, nothing is persisted and the transcript stays
// unchanged.
func (s *ChatService) Ask(ctx context.Context, ownerID, documentID, question string) (*models.ChatResponse, error) {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.OwnerID != ownerID {
		// Do not reveal documents of other users
		return nil, fmt.Errorf("%w: document %s", fault.ErrNotFound, documentID)
	}
	if doc.Status != models.StatusIndexed {
		return nil, fmt.Errorf("%w: document is %q, chat requires %q",
			fault.ErrInvalidState, doc.Status, models.StatusIndexed)
	}

	queryVec, err := backoff.Retry(ctx, func() ([]float32, error) {
		return s.embedder.EmbedOne(ctx, question)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(s.retries))
	if err != nil {
		return nil, err
	}

	matches, err := backoff.Retry(ctx, func() ([]vector.Match, error) {
		return s.index.Query(ctx, doc.Namespace, queryVec, s.topK)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(s.retries))
	if err != nil {
		return nil, err
	}

	contexts, usedIDs, err := s.loadContexts(ctx, matches)
	if err != nil {
		return nil, err
	}

	history, err := s.loadHistory(ctx, documentID)
	if err != nil {
		return nil, err
	}

	prompt := buildPrompt(question, contexts)

	answer, err := backoff.Retry(ctx, func() (string, error) {
		return s.llm.Generate(ctx, history, prompt)
	}, backoff.WithBackOff(backoff.NewExponentialBackOff()), backoff.WithMaxTries(s.retries))
	if err != nil {
		logger.Warn("generation failed, exchange not persisted",
			"document_id", documentID, "error", err)
		return nil, err
	}

	now := time.Now()
	turns := []models.ConversationTurn{
		{
			ID:                uuid.NewString(),
			DocumentID:        documentID,
			Role:              models.RoleUser,
			Text:              question,
			RetrievedChunkIDs: usedIDs,
			CreatedAt:         now,
		},
		{
			ID:                uuid.NewString(),
			DocumentID:        documentID,
			Role:              models.RoleAssistant,
			Text:              answer,
			RetrievedChunkIDs: usedIDs,
			CreatedAt:         now.Add(time.Millisecond),
		},
	}
	if err := s.store.AppendTurns(ctx, turns); err != nil {
		return nil, err
	}

	return &models.ChatResponse{
		Answer:       answer,
		UsedChunkIDs: usedIDs,
	}, nil
}

// loadContexts resolves match ids to chunk texts, preserving the
// descending-similarity order the index returned. Matches whose chunk
// record is gone (a concurrent delete) are dropped silently.
func (s *ChatService) loadContexts(ctx context.Context, matches []vector.Match) ([]string, []string, error) {
	ids := make([]string, len(matches))
	for i, m := range matches {
		ids[i] = m.ID
	}

	texts, err := s.store.GetChunkTexts(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	var contexts []string
	var usedIDs []string
	for _, m := range matches {
		if text, ok := texts[m.ID]; ok {
			contexts = append(contexts, text)
			usedIDs = append(usedIDs, m.ID)
		}
	}
	return contexts, usedIDs, nil
}

func (s *ChatService) loadHistory(ctx context.Context, documentID string) ([]ai.Message, error) {
	turns, err := s.store.ListRecentTurns(ctx, documentID, s.historyWindow)
	if err != nil {
		return nil, err
	}

	history := make([]ai.Message, 0, len(turns))
	for _, turn := range turns {
		history = append(history, ai.Message{Role: turn.Role, Text: turn.Text})
	}
	return history, nil
}

func buildPrompt(question string, contexts []string) string {
	if len(contexts) == 0 {
		return fmt.Sprintf("No relevant passages were found in the document for this question. "+
			"Say so if you cannot answer from the document.\n\nQuestion: %s", question)
	}

	var b strings.Builder
	b.WriteString("Answer based on the following passages from the document:\n\n")
	for i, c := range contexts {
		fmt.Fprintf(&b, "Passage %d:\n%s\n\n", i+1, c)
	}
	fmt.Fprintf(&b, "Question: %s", question)
	return b.String()
}
