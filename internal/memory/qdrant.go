package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

const (
	payloadFieldNamespace = "namespace"
	payloadFieldIdentity  = "identity"
	payloadFieldText      = "text"
)

// QdrantStore reads long-term memory records from a Qdrant collection.
// Records are written by an external extraction process; this store is
// read-only.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
	logger     *slog.Logger
}

// NewQdrantStore connects to Qdrant and wraps the memory collection.
func NewQdrantStore(log *slog.Logger, host string, port int, apiKey string, useTLS bool, collection string) (*QdrantStore, error) {
	if log == nil {
		log = slog.Default()
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant connect: %w", err)
	}
	return &QdrantStore{
		client:     client,
		collection: collection,
		logger:     log.With(slog.String("component", "qdrant_store")),
	}, nil
}

// Search returns the text snippets of the topK records closest to the query
// vector within one (namespace, identity) scope, ranked by relevance.
func (s *QdrantStore) Search(ctx context.Context, namespace, identity string, vector []float32, topK int) ([]string, error) {
	if topK <= 0 {
		topK = 3
	}
	limit := uint64(topK)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch(payloadFieldNamespace, namespace),
				qdrant.NewMatch(payloadFieldIdentity, identity),
			},
		},
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	snippets := make([]string, 0, len(points))
	for _, point := range points {
		value, ok := point.Payload[payloadFieldText]
		if !ok {
			continue
		}
		text := strings.TrimSpace(value.GetStringValue())
		if text == "" {
			continue
		}
		snippets = append(snippets, text)
	}
	return snippets, nil
}
