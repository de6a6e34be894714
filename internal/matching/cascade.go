// Package matching implements the exact → fuzzy → semantic search cascade
// over a tenant-scoped catalog.
package matching

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"cotizador_backend/internal/catalog/cache"
	"cotizador_backend/internal/catalog/repository"
	"cotizador_backend/platform/apperr"
	"cotizador_backend/platform/logger"
)

// MatchType names the cascade stage that produced a candidate.
type MatchType string

const (
	MatchExact    MatchType = "exact"
	MatchFuzzy    MatchType = "fuzzy"
	MatchSemantic MatchType = "semantic"
)

// Acceptance thresholds per stage and mode.
const (
	FuzzySingleThreshold    = 0.70
	FuzzyVariantThreshold   = 0.50
	SemanticSingleThreshold = 0.75
	SemanticVariantThreshold = 0.65

	// ConfirmThreshold is the minimum confidence at which the deterministic
	// fallback treats a candidate as a confirmed catalog match.
	ConfirmThreshold = 0.75

	fuzzyCandidateLimit = 20

	// DefaultMaxVariants caps variant searches when the caller does not ask
	// for a specific count.
	DefaultMaxVariants = 5
)

// Candidate is a transient search result. It is created per call and never
// persisted.
type Candidate struct {
	Product    repository.Product
	MatchType  MatchType
	Confidence float64
}

// SnapshotStore reads the tenant's embedding snapshot. Absence of the
// snapshot is a normal state that disables semantic search.
type SnapshotStore interface {
	Get(ctx context.Context, scope repository.Scope) (cache.Snapshot, bool, error)
}

// Embedder produces a query vector with the same model that built the cached
// product vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Cascade runs the three search stages. The snapshot store and embedder are
// optional; without them the cascade degrades to exact+fuzzy.
type Cascade struct {
	repo      repository.Reader
	snapshots SnapshotStore
	embedder  Embedder
	log       *logger.Logger
}

// New creates a search cascade.
func New(repo repository.Reader, snapshots SnapshotStore, embedder Embedder, log *logger.Logger) *Cascade {
	return &Cascade{repo: repo, snapshots: snapshots, embedder: embedder, log: log}
}

// Search returns the single best candidate for the query, or nil when no
// stage produced an acceptable match. Stage failures against the cache or
// embedding API disable that stage for this call; they never abort the search.
func (c *Cascade) Search(ctx context.Context, query string, scope repository.Scope) (*Candidate, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("query must not be empty")
	}

	if exact := c.searchExact(ctx, query, scope); exact != nil {
		c.log.MatchStage(string(MatchExact), query, 1.0, true)
		return exact, nil
	}

	if best := c.bestFuzzy(ctx, query, scope); best != nil {
		accepted := best.Confidence >= FuzzySingleThreshold
		c.log.MatchStage(string(MatchFuzzy), query, best.Confidence, accepted)
		if accepted {
			return best, nil
		}
	}

	if best := c.bestSemantic(ctx, query, scope); best != nil {
		accepted := best.Confidence >= SemanticSingleThreshold
		c.log.MatchStage(string(MatchSemantic), query, best.Confidence, accepted)
		if accepted {
			return best, nil
		}
	}

	return nil, nil
}

// SearchVariants returns up to maxVariants candidates across all stages,
// deduplicated by product id and ordered by confidence descending with
// product id as the deterministic secondary key.
func (c *Cascade) SearchVariants(ctx context.Context, query string, scope repository.Scope, maxVariants int) ([]Candidate, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperr.Validation("query must not be empty")
	}
	if maxVariants <= 0 {
		maxVariants = DefaultMaxVariants
	}

	var candidates []Candidate
	if exact := c.searchExact(ctx, query, scope); exact != nil {
		candidates = append(candidates, *exact)
	}
	candidates = append(candidates, c.fuzzyCandidates(ctx, query, scope, FuzzyVariantThreshold)...)
	candidates = append(candidates, c.semanticCandidates(ctx, query, scope, SemanticVariantThreshold, maxVariants)...)

	return rankCandidates(candidates, maxVariants), nil
}

// searchExact runs stage 1: case-insensitive full-name equality.
func (c *Cascade) searchExact(ctx context.Context, query string, scope repository.Scope) *Candidate {
	product, err := c.repo.FindByExactName(ctx, query, scope)
	if err != nil {
		if !apperr.Is(err, apperr.KindNotFound) {
			c.log.DatabaseError("exact name search", err)
		}
		return nil
	}
	return &Candidate{Product: *product, MatchType: MatchExact, Confidence: 1.0}
}

// bestFuzzy returns the highest-scoring fuzzy candidate regardless of
// threshold; the caller decides acceptance per mode.
func (c *Cascade) bestFuzzy(ctx context.Context, query string, scope repository.Scope) *Candidate {
	candidates := c.fuzzyCandidates(ctx, query, scope, 0)
	if len(candidates) == 0 {
		return nil
	}
	best := candidates[0]
	for _, cand := range candidates[1:] {
		if cand.Confidence > best.Confidence {
			best = cand
		}
	}
	return &best
}

// fuzzyCandidates runs stage 2: token-overlap scoring over a bounded
// candidate set fetched by the query's first token.
func (c *Cascade) fuzzyCandidates(ctx context.Context, query string, scope repository.Scope, minScore float64) []Candidate {
	tokens := strings.Fields(strings.ToLower(query))
	if len(tokens) == 0 {
		return nil
	}

	rows, err := c.repo.FindByNameToken(ctx, tokens[0], scope, fuzzyCandidateLimit)
	if err != nil {
		c.log.DatabaseError("fuzzy name search", err)
		return nil
	}

	var candidates []Candidate
	for _, product := range rows {
		name := strings.ToLower(product.Name)
		matched := 0
		for _, token := range tokens {
			if strings.Contains(name, token) {
				matched++
			}
		}
		score := float64(matched) / float64(len(tokens))
		if score >= minScore && score > 0 {
			candidates = append(candidates, Candidate{Product: product, MatchType: MatchFuzzy, Confidence: score})
		}
	}
	return candidates
}

// bestSemantic returns the top semantic candidate regardless of threshold.
func (c *Cascade) bestSemantic(ctx context.Context, query string, scope repository.Scope) *Candidate {
	candidates := c.semanticCandidates(ctx, query, scope, 0, 1)
	if len(candidates) == 0 {
		return nil
	}
	return &candidates[0]
}

// semanticCandidates runs stage 3 against the embedding snapshot. Any
// transport failure disables the stage for this call.
func (c *Cascade) semanticCandidates(ctx context.Context, query string, scope repository.Scope, minScore float64, limit int) []Candidate {
	if c.snapshots == nil || c.embedder == nil {
		return nil
	}

	snapshot, found, err := c.snapshots.Get(ctx, scope)
	if err != nil {
		c.log.StageDegraded(string(MatchSemantic), "snapshot read failed", err)
		return nil
	}
	if !found || len(snapshot) == 0 {
		c.log.StageDegraded(string(MatchSemantic), "no embedding snapshot for scope", nil)
		return nil
	}

	queryVec, err := c.embedder.Embed(ctx, query)
	if err != nil {
		c.log.StageDegraded(string(MatchSemantic), "query embedding failed", err)
		return nil
	}

	type scored struct {
		id    uuid.UUID
		entry cache.Entry
		sim   float64
	}
	var hits []scored
	for rawID, entry := range snapshot {
		id, err := uuid.Parse(rawID)
		if err != nil {
			continue
		}
		if sim := cosineSimilarity(queryVec, entry.Embedding); sim >= minScore && sim > 0 {
			hits = append(hits, scored{id: id, entry: entry, sim: sim})
		}
	}

	// Snapshot iteration order is random; sort for determinism.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].sim != hits[j].sim {
			return hits[i].sim > hits[j].sim
		}
		return hits[i].id.String() < hits[j].id.String()
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}

	candidates := make([]Candidate, 0, len(hits))
	for _, hit := range hits {
		candidates = append(candidates, Candidate{
			Product:    c.hydrate(ctx, hit.id, hit.entry, scope),
			MatchType:  MatchSemantic,
			Confidence: hit.sim,
		})
	}
	return candidates
}

// hydrate loads the full catalog row for a semantic hit so downstream unit
// resolution sees the pricing label. When the row cannot be read the cached
// fields stand in, with an empty unit label that resolves to a clarification.
func (c *Cascade) hydrate(ctx context.Context, id uuid.UUID, entry cache.Entry, scope repository.Scope) repository.Product {
	product, err := c.repo.GetByID(ctx, id, scope)
	if err == nil {
		return *product
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		c.log.DatabaseError("hydrate semantic hit", err)
	}
	return repository.Product{
		ID:        id,
		Name:      entry.Name,
		UnitCost:  entry.Cost,
		UnitPrice: entry.Price,
		Active:    true,
	}
}

// rankCandidates deduplicates by product id (keeping the highest confidence),
// orders by confidence descending with id ascending as the tie-break, and
// caps the result.
func rankCandidates(candidates []Candidate, maxVariants int) []Candidate {
	byID := make(map[uuid.UUID]Candidate)
	for _, cand := range candidates {
		existing, ok := byID[cand.Product.ID]
		if !ok || cand.Confidence > existing.Confidence {
			byID[cand.Product.ID] = cand
		}
	}

	ranked := make([]Candidate, 0, len(byID))
	for _, cand := range byID {
		ranked = append(ranked, cand)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		return ranked[i].Product.ID.String() < ranked[j].Product.ID.String()
	})

	if len(ranked) > maxVariants {
		ranked = ranked[:maxVariants]
	}
	return ranked
}
