// Package qdrant fetches vector-similar conversation snippets used to
// ground AI replies.
package qdrant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// Embedder turns a query into a vector. The gemini client satisfies this.
type Embedder interface {
	Embed(ctx context.Context, model, text string) ([]float32, error)
}

// Config holds the Qdrant connection settings.
type Config struct {
	// URL is the Qdrant server address (e.g. "https://example.qdrant.io:6334").
	URL string
	// Collection is the collection holding stored conversations.
	Collection string
	// APIKey is the optional authentication key.
	APIKey string
	// EmbeddingModel names the model used for query embeddings.
	EmbeddingModel string
}

// Retriever implements ports.Retriever against a Qdrant collection.
type Retriever struct {
	client     *qdrant.Client
	collection string
	embedder   Embedder
	model      string
}

// New creates a Qdrant retriever.
func New(cfg Config, embedder Embedder) (*Retriever, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}

	raw := cfg.URL
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse qdrant url: %w", err)
	}

	port := 6334
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant port: %w", err)
		}
		port = p
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   u.Hostname(),
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: u.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &Retriever{
		client:     client,
		collection: cfg.Collection,
		embedder:   embedder,
		model:      cfg.EmbeddingModel,
	}, nil
}

// Context embeds the query and returns the content of the closest stored
// snippets, best match first. The search is global across senders; sender
// is accepted for future per-user filtering.
func (r *Retriever) Context(ctx context.Context, sender, query string, limit int) ([]string, error) {
	vector, err := r.embedder.Embed(ctx, r.model, query)
	if err != nil {
		return nil, err
	}

	limitUint64 := uint64(limit)
	points, err := r.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: r.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limitUint64,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	var snippets []string
	for _, point := range points {
		if point.Payload == nil {
			continue
		}
		if v, ok := point.Payload["content"]; ok {
			if s := v.GetStringValue(); s != "" {
				snippets = append(snippets, s)
			}
		}
	}
	return snippets, nil
}

// Close releases the underlying connection.
func (r *Retriever) Close() error {
	return r.client.Close()
}
