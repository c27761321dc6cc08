package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"chatpdf-backend/internal/ai"
	"chatpdf-backend/internal/config"
	"chatpdf-backend/internal/fault"
	"chatpdf-backend/internal/vector"
	"chatpdf-backend/models"
)

type fakeChatStore struct {
	doc        *models.Document
	chunkTexts map[string]string
	recent     []models.ConversationTurn

	appended []models.ConversationTurn
}

func (f *fakeChatStore) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	if f.doc == nil {
		return nil, fmt.Errorf("%w: document %s", fault.ErrNotFound, id)
	}
	return f.doc, nil
}

func (f *fakeChatStore) GetChunkTexts(ctx context.Context, ids []string) (map[string]string, error) {
	out := make(map[string]string)
	for _, id := range ids {
		if text, ok := f.chunkTexts[id]; ok {
			out[id] = text
		}
	}
	return out, nil
}

func (f *fakeChatStore) AppendTurns(ctx context.Context, turns []models.ConversationTurn) error {
	f.appended = append(f.appended, turns...)
	return nil
}

func (f *fakeChatStore) ListRecentTurns(ctx context.Context, documentID string, limit int) ([]models.ConversationTurn, error) {
	return f.recent, nil
}

type fakeQuestionEmbedder struct {
	vec   []float32
	calls int
}

func (f *fakeQuestionEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	return f.vec, nil
}

type fakeGenerator struct {
	answer string
	err    error

	calls   int
	prompts []string
	history [][]ai.Message
}

func (f *fakeGenerator) Generate(ctx context.Context, history []ai.Message, prompt string) (string, error) {
	f.calls++
	f.prompts = append(f.prompts, prompt)
	f.history = append(f.history, history)
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func indexedDoc(id string) *models.Document {
	return &models.Document{
		ID:        id,
		OwnerID:   "owner-1",
		Status:    models.StatusIndexed,
		Namespace: "doc_" + id,
	}
}

func chatFixture(t *testing.T, st *fakeChatStore, gen *fakeGenerator) (*ChatService, vector.Index) {
	t.Helper()

	index, err := vector.NewChromemIndex("")
	if err != nil {
		t.Fatalf("failed to create in-memory index: %v", err)
	}

	cfg := &config.Config{TopK: 3, HistoryWindow: 10, ChatRetries: 1}
	embedder := &fakeQuestionEmbedder{vec: []float32{1, 0, 0}}
	return NewChatService(st, embedder, index, gen, cfg), index
}

func TestAskRejectsUnindexedDocument(t *testing.T) {
	st := &fakeChatStore{doc: &models.Document{
		ID: "doc-1", OwnerID: "owner-1", Status: models.StatusEmbedding, Namespace: "doc_doc-1",
	}}
	gen := &fakeGenerator{answer: "unused"}
	svc, _ := chatFixture(t, st, gen)

	_, err := svc.Ask(context.Background(), "owner-1", "doc-1", "what is this?")
	if !errors.Is(err, fault.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
	if gen.calls != 0 {
		t.Error("no external call may be made for an unindexed document")
	}
	if len(st.appended) != 0 {
		t.Error("no turns may be persisted for an unindexed document")
	}
}

func TestAskHidesForeignDocuments(t *testing.T) {
	st := &fakeChatStore{doc: indexedDoc("doc-1")}
	gen := &fakeGenerator{answer: "unused"}
	svc, _ := chatFixture(t, st, gen)

	_, err := svc.Ask(context.Background(), "intruder", "doc-1", "what is this?")
	if !errors.Is(err, fault.ErrNotFound) {
		t.Fatalf("foreign document must look missing, got %v", err)
	}
	if gen.calls != 0 {
		t.Error("no external call may be made for a foreign document")
	}
}

func TestAskGenerationFailurePersistsNothing(t *testing.T) {
	st := &fakeChatStore{doc: indexedDoc("doc-1"), chunkTexts: map[string]string{}}
	gen := &fakeGenerator{err: fmt.Errorf("%w: model overloaded", fault.ErrGeneration)}
	svc, _ := chatFixture(t, st, gen)

	_, err := svc.Ask(context.Background(), "owner-1", "doc-1", "what is this?")
	if !errors.Is(err, fault.ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
	if len(st.appended) != 0 {
		t.Error("a failed exchange must leave the transcript unchanged")
	}
}

func TestAskEmptyIndexStillAnswers(t *testing.T) {
	st := &fakeChatStore{doc: indexedDoc("doc-1"), chunkTexts: map[string]string{}}
	gen := &fakeGenerator{answer: "The document contains no text."}
	svc, _ := chatFixture(t, st, gen)

	resp, err := svc.Ask(context.Background(), "owner-1", "doc-1", "what is this about?")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}

	if resp.Answer != "The document contains no text." {
		t.Errorf("unexpected answer %q", resp.Answer)
	}
	if len(resp.UsedChunkIDs) != 0 {
		t.Errorf("expected no used chunks, got %v", resp.UsedChunkIDs)
	}
	if len(gen.prompts) != 1 || !strings.Contains(gen.prompts[0], "No relevant passages") {
		t.Error("prompt must state that no passages were found")
	}
	if len(st.appended) != 2 {
		t.Fatalf("expected 2 persisted turns, got %d", len(st.appended))
	}
}

func TestAskRetrievesAndPersistsExchange(t *testing.T) {
	st := &fakeChatStore{
		doc: indexedDoc("doc-1"),
		chunkTexts: map[string]string{
			"doc-1_0": "Paris is the capital of France.",
			"doc-1_1": "Tokyo is the capital of Japan.",
		},
	}
	gen := &fakeGenerator{answer: "It is Paris."}
	svc, index := chatFixture(t, st, gen)

	err := index.Upsert(context.Background(), "doc_doc-1", []vector.Vector{
		{ID: "doc-1_0", Values: []float32{1, 0, 0}, Metadata: map[string]string{"document_id": "doc-1", "seq": "0"}},
		{ID: "doc-1_1", Values: []float32{0, 1, 0}, Metadata: map[string]string{"document_id": "doc-1", "seq": "1"}},
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	resp, err := svc.Ask(context.Background(), "owner-1", "doc-1", "What is the capital of France?")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}

	if resp.Answer != "It is Paris." {
		t.Errorf("unexpected answer %q", resp.Answer)
	}
	// The question vector matches chunk 0 exactly, so it must rank first
	if len(resp.UsedChunkIDs) == 0 || resp.UsedChunkIDs[0] != "doc-1_0" {
		t.Errorf("expected doc-1_0 as the nearest chunk, got %v", resp.UsedChunkIDs)
	}

	if len(gen.prompts) != 1 {
		t.Fatalf("expected 1 generation, got %d", len(gen.prompts))
	}
	if !strings.Contains(gen.prompts[0], "Paris is the capital of France.") {
		t.Error("prompt must carry the retrieved passage text")
	}
	if !strings.Contains(gen.prompts[0], "What is the capital of France?") {
		t.Error("prompt must carry the question")
	}

	if len(st.appended) != 2 {
		t.Fatalf("expected 2 persisted turns, got %d", len(st.appended))
	}
	user, assistant := st.appended[0], st.appended[1]
	if user.Role != models.RoleUser || assistant.Role != models.RoleAssistant {
		t.Errorf("unexpected turn roles %q, %q", user.Role, assistant.Role)
	}
	if !assistant.CreatedAt.After(user.CreatedAt) {
		t.Error("assistant turn must sort after the user turn")
	}
	if len(user.RetrievedChunkIDs) != len(resp.UsedChunkIDs) {
		t.Error("both turns must record the retrieved chunk ids")
	}
}

func TestAskPassesTrailingHistory(t *testing.T) {
	st := &fakeChatStore{
		doc:        indexedDoc("doc-1"),
		chunkTexts: map[string]string{},
		recent: []models.ConversationTurn{
			{Role: models.RoleUser, Text: "earlier question"},
			{Role: models.RoleAssistant, Text: "earlier answer"},
		},
	}
	gen := &fakeGenerator{answer: "Noted."}
	svc, _ := chatFixture(t, st, gen)

	if _, err := svc.Ask(context.Background(), "owner-1", "doc-1", "follow-up"); err != nil {
		t.Fatalf("Ask failed: %v", err)
	}

	if len(gen.history) != 1 || len(gen.history[0]) != 2 {
		t.Fatalf("expected 2 history messages, got %v", gen.history)
	}
	if gen.history[0][0].Text != "earlier question" || gen.history[0][1].Text != "earlier answer" {
		t.Error("history must be passed in chronological order")
	}
}

func TestAskDropsMatchesWithMissingChunks(t *testing.T) {
	st := &fakeChatStore{
		doc: indexedDoc("doc-1"),
		chunkTexts: map[string]string{
			"doc-1_1": "Only this chunk still exists.",
		},
	}
	gen := &fakeGenerator{answer: "ok"}
	svc, index := chatFixture(t, st, gen)

	err := index.Upsert(context.Background(), "doc_doc-1", []vector.Vector{
		{ID: "doc-1_0", Values: []float32{1, 0, 0}},
		{ID: "doc-1_1", Values: []float32{0.9, 0.1, 0}},
	})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	resp, err := svc.Ask(context.Background(), "owner-1", "doc-1", "question")
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}

	if len(resp.UsedChunkIDs) != 1 || resp.UsedChunkIDs[0] != "doc-1_1" {
		t.Errorf("matches without a chunk record must be dropped, got %v", resp.UsedChunkIDs)
	}
}
