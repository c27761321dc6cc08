package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter   metric.Int64Counter
	RequestDuration  metric.Float64Histogram
	DocumentsIndexed metric.Int64Counter
	IndexingDuration metric.Float64Histogram
	ChatLatency      metric.Float64Histogram
	TokensUsed       metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("chatpdf-backend")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	documentsIndexed, err := meter.Int64Counter(
		"documents.indexed.total",
		metric.WithDescription("Documents that completed or failed indexing"),
	)
	if err != nil {
		return nil, err
	}

	indexingDuration, err := meter.Float64Histogram(
		"documents.indexing.duration",
		metric.WithDescription("Indexing pipeline duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	chatLatency, err := meter.Float64Histogram(
		"chat.exchange.duration",
		metric.WithDescription("Question/answer exchange duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	tokensUsed, err := meter.Int64Counter(
		"llm.tokens.used",
		metric.WithDescription("Total LLM tokens used"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:   requestCounter,
		RequestDuration:  requestDuration,
		DocumentsIndexed: documentsIndexed,
		IndexingDuration: indexingDuration,
		ChatLatency:      chatLatency,
		TokensUsed:       tokensUsed,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordIndexing records the outcome of one indexing run
func (m *Metrics) RecordIndexing(duration float64, status string) {
	attrs := []attribute.KeyValue{
		attribute.String("document.status", status),
	}

	m.DocumentsIndexed.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.IndexingDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordChat records one question/answer exchange
func (m *Metrics) RecordChat(duration float64, success bool) {
	attrs := []attribute.KeyValue{
		attribute.Bool("chat.success", success),
	}

	m.ChatLatency.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordTokensUsed records LLM token usage
func (m *Metrics) RecordTokensUsed(tokens int64, model string) {
	attrs := []attribute.KeyValue{
		attribute.String("llm.model", model),
	}

	m.TokensUsed.Add(context.Background(), tokens, metric.WithAttributes(attrs...))
}
