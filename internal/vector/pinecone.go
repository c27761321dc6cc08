package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"chatpdf-backend/internal/fault"
)

// PineconeIndex talks to a hosted Pinecone index over its REST API.
type PineconeIndex struct {
	host   string
	apiKey string
	client *http.Client
}

func NewPineconeIndex(host, apiKey string, timeoutSeconds int) *PineconeIndex {
	if timeoutSeconds <= 0 {
		timeoutSeconds = 10
	}
	return &PineconeIndex{
		host:   host,
		apiKey: apiKey,
		client: &http.Client{Timeout: time.Duration(timeoutSeconds) * time.Second},
	}
}

type pineconeUpsertRequest struct {
	Vectors   []Vector `json:"vectors"`
	Namespace string   `json:"namespace"`
}

type pineconeQueryRequest struct {
	Namespace       string    `json:"namespace"`
	TopK            int       `json:"topK"`
	Vector          []float32 `json:"vector"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type pineconeQueryResponse struct {
	Matches []Match `json:"matches"`
}

type pineconeDeleteRequest struct {
	DeleteAll bool   `json:"deleteAll"`
	Namespace string `json:"namespace"`
}

func (p *PineconeIndex) Upsert(ctx context.Context, namespace string, vectors []Vector) error {
	if len(vectors) == 0 {
		return nil
	}

	body, err := p.post(ctx, "/vectors/upsert", pineconeUpsertRequest{
		Vectors:   vectors,
		Namespace: namespace,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", fault.ErrIndexWrite, err)
	}
	defer body.Close()
	io.Copy(io.Discard, body)
	return nil
}

func (p *PineconeIndex) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Match, error) {
	body, err := p.post(ctx, "/query", pineconeQueryRequest{
		Namespace:       namespace,
		TopK:            topK,
		Vector:          vector,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", fault.ErrIndexQuery, err)
	}
	defer body.Close()

	var resp pineconeQueryResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", fault.ErrIndexQuery, err)
	}
	return resp.Matches, nil
}

func (p *PineconeIndex) Delete(ctx context.Context, namespace string) error {
	body, err := p.post(ctx, "/vectors/delete", pineconeDeleteRequest{
		DeleteAll: true,
		Namespace: namespace,
	})
	if err != nil {
		// Deleting a namespace that was never written is a 404; callers
		// treat deletion as idempotent.
		if isNotFound(err) {
			return nil
		}
		return fmt.Errorf("%w: %v", fault.ErrIndexWrite, err)
	}
	defer body.Close()
	io.Copy(io.Discard, body)
	return nil
}

type httpStatusError struct {
	status int
	body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.status, e.body)
}

func isNotFound(err error) bool {
	se, ok := err.(*httpStatusError)
	return ok && se.status == http.StatusNotFound
}

func (p *PineconeIndex) post(ctx context.Context, path string, payload interface{}) (io.ReadCloser, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.host+path, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Api-Key", p.apiKey)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, &httpStatusError{status: resp.StatusCode, body: string(msg)}
	}

	return resp.Body, nil
}
