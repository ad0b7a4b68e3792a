package memory

import (
	"context"
	"log/slog"
	"strings"

	"github.com/kaiwa-bot/kaiwa/internal/embeddings"
	"github.com/kaiwa-bot/kaiwa/internal/transcript"
)

// TurnReader reads recent turns from the conversation log.
type TurnReader interface {
	Recent(ctx context.Context, identity, sessionID string, limit int) ([]transcript.Turn, error)
}

// FactStore searches long-term memory records by semantic similarity within
// one namespace scope.
type FactStore interface {
	Search(ctx context.Context, namespace, identity string, vector []float32, topK int) ([]string, error)
}

// Retrieval is a typed retrieval outcome. Degraded distinguishes "empty
// because the store failed" from "empty because nothing is stored"; either
// way the turn proceeds with whatever context is available.
type Retrieval struct {
	Lines    []string
	Degraded bool
}

// Text joins the retrieved lines into a prompt-ready block.
func (r Retrieval) Text() string {
	return strings.Join(r.Lines, "\n")
}

// Retriever assembles short-term and long-term conversational context.
// Every operation is best effort: failures degrade to empty context and
// never abort the turn.
type Retriever struct {
	turns      TurnReader
	facts      FactStore
	embedder   embeddings.Embedder
	namespaces []string
	turnLimit  int
	topK       int
	logger     *slog.Logger
}

// NewRetriever creates a memory retriever. facts and embedder may be nil,
// in which case long-term retrieval returns empty without any store call.
func NewRetriever(log *slog.Logger, turns TurnReader, facts FactStore, embedder embeddings.Embedder, namespaces []string, turnLimit, topK int) *Retriever {
	if log == nil {
		log = slog.Default()
	}
	if turnLimit <= 0 {
		turnLimit = 10
	}
	if topK <= 0 {
		topK = 3
	}
	if len(namespaces) == 0 {
		namespaces = []string{"facts", "preferences"}
	}
	return &Retriever{
		turns:      turns,
		facts:      facts,
		embedder:   embedder,
		namespaces: namespaces,
		turnLimit:  turnLimit,
		topK:       topK,
		logger:     log.With(slog.String("component", "memory")),
	}
}

// RecentTurns fetches the session's recent turns and flattens them into
// chronological "ROLE: text" lines.
func (r *Retriever) RecentTurns(ctx context.Context, identity, sessionID string) Retrieval {
	if r.turns == nil {
		return Retrieval{}
	}
	turns, err := r.turns.Recent(ctx, identity, sessionID, r.turnLimit)
	if err != nil {
		r.logger.Warn("recent turns fetch failed, continuing without short-term context",
			slog.String("identity", identity),
			slog.Any("error", err),
		)
		return Retrieval{Degraded: true}
	}

	lines := make([]string, 0, len(turns)*2)
	for _, turn := range turns {
		if text := strings.TrimSpace(turn.UserText); text != "" {
			lines = append(lines, "USER: "+text)
		}
		if text := strings.TrimSpace(turn.AssistantText); text != "" {
			lines = append(lines, "ASSISTANT: "+text)
		}
	}
	return Retrieval{Lines: lines}
}

// SearchFacts queries every configured namespace for the identity with the
// same free-text query, topK results each, concatenated in namespace order
// then rank order. No cross-namespace dedup or re-ranking.
func (r *Retriever) SearchFacts(ctx context.Context, identity, query string) Retrieval {
	if r.facts == nil || r.embedder == nil {
		return Retrieval{}
	}
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		r.logger.Warn("query embedding failed, continuing without long-term context",
			slog.Any("error", err),
		)
		return Retrieval{Degraded: true}
	}

	var out Retrieval
	for _, namespace := range r.namespaces {
		snippets, err := r.facts.Search(ctx, namespace, identity, vector, r.topK)
		if err != nil {
			// One namespace failing must not discard the others.
			r.logger.Warn("fact search failed",
				slog.String("namespace", namespace),
				slog.Any("error", err),
			)
			out.Degraded = true
			continue
		}
		out.Lines = append(out.Lines, snippets...)
	}
	return out
}
