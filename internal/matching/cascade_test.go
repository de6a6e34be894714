package matching

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"

	"cotizador_backend/internal/catalog/cache"
	"cotizador_backend/internal/catalog/repository"
	"cotizador_backend/platform/apperr"
	"cotizador_backend/platform/logger"
)

type fakeReader struct {
	products []repository.Product
	exactErr error
	tokenErr error
}

func (f *fakeReader) FindByExactName(_ context.Context, name string, _ repository.Scope) (*repository.Product, error) {
	if f.exactErr != nil {
		return nil, f.exactErr
	}
	for i := range f.products {
		if strings.EqualFold(f.products[i].Name, name) && f.products[i].Active {
			return &f.products[i], nil
		}
	}
	return nil, apperr.NotFound("product not found")
}

func (f *fakeReader) FindByNameToken(_ context.Context, token string, _ repository.Scope, limit int) ([]repository.Product, error) {
	if f.tokenErr != nil {
		return nil, f.tokenErr
	}
	var out []repository.Product
	for _, p := range f.products {
		if p.Active && strings.Contains(strings.ToLower(p.Name), strings.ToLower(token)) {
			out = append(out, p)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeReader) GetByID(_ context.Context, id uuid.UUID, _ repository.Scope) (*repository.Product, error) {
	for i := range f.products {
		if f.products[i].ID == id {
			return &f.products[i], nil
		}
	}
	return nil, apperr.NotFound("product not found")
}

type fakeSnapshots struct {
	snapshot cache.Snapshot
	found    bool
	err      error
}

func (f *fakeSnapshots) Get(_ context.Context, _ repository.Scope) (cache.Snapshot, bool, error) {
	return f.snapshot, f.found, f.err
}

type fakeEmbedder struct {
	vec []float32
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return f.vec, f.err
}

func testScope() repository.Scope {
	orgID := uuid.MustParse("11111111-1111-1111-1111-111111111111")
	return repository.Scope{OrganizationID: &orgID}
}

func product(idByte byte, name, unit string, price float64) repository.Product {
	var id uuid.UUID
	id[15] = idByte
	return repository.Product{ID: id, Name: name, Unit: unit, UnitPrice: price, Active: true}
}

func newTestCascade(repo repository.Reader, snapshots SnapshotStore, embedder Embedder) *Cascade {
	return New(repo, snapshots, embedder, logger.New("test"))
}

func TestSearch_ExactMatchShortCircuits(t *testing.T) {
	repo := &fakeReader{products: []repository.Product{
		product(1, "Cemento Gris 50kg", "unidad", 12.5),
	}}
	c := newTestCascade(repo, nil, nil)

	got, err := c.Search(context.Background(), "cemento gris 50KG", testScope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil {
		t.Fatal("expected a candidate")
	}
	if got.MatchType != MatchExact || got.Confidence != 1.0 {
		t.Fatalf("expected exact match at confidence 1.0, got %s %v", got.MatchType, got.Confidence)
	}
}

func TestSearch_FuzzyAcceptsAboveThreshold(t *testing.T) {
	repo := &fakeReader{products: []repository.Product{
		product(1, "cemento blanco premium", "unidad", 18),
	}}
	c := newTestCascade(repo, nil, nil)

	// 2 of 2 tokens present in the name: score 1.0.
	got, err := c.Search(context.Background(), "cemento blanco", testScope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.MatchType != MatchFuzzy {
		t.Fatalf("expected fuzzy match, got %+v", got)
	}
	if got.Confidence != 1.0 {
		t.Fatalf("expected score 1.0, got %v", got.Confidence)
	}
}

func TestSearch_FuzzyBelowThresholdFallsThrough(t *testing.T) {
	repo := &fakeReader{products: []repository.Product{
		product(1, "cemento blanco", "unidad", 18),
	}}
	c := newTestCascade(repo, nil, nil)

	// 1 of 3 tokens matches: score 0.33, below the single-result threshold,
	// and no semantic stage is configured.
	got, err := c.Search(context.Background(), "cemento rapido especial", testScope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no candidate, got %+v", got)
	}
}

func TestSearch_SemanticMatchHydratesFromRepository(t *testing.T) {
	target := product(7, "adhesivo ceramico", "pack x10", 140)
	repo := &fakeReader{products: []repository.Product{target}}
	snapshots := &fakeSnapshots{
		snapshot: cache.Snapshot{
			target.ID.String(): {Name: "adhesivo ceramico", Price: 140, Embedding: []float32{1, 0}},
		},
		found: true,
	}
	embedder := &fakeEmbedder{vec: []float32{1, 0}}
	c := newTestCascade(repo, snapshots, embedder)

	got, err := c.Search(context.Background(), "pegamento para azulejos", testScope())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.MatchType != MatchSemantic {
		t.Fatalf("expected semantic match, got %+v", got)
	}
	if got.Confidence < SemanticSingleThreshold {
		t.Fatalf("expected confidence >= %v, got %v", SemanticSingleThreshold, got.Confidence)
	}
	// The unit label must come from the catalog row, not the snapshot.
	if got.Product.Unit != "pack x10" {
		t.Fatalf("expected hydrated unit label, got %q", got.Product.Unit)
	}
}

func TestSearch_SnapshotFailureDegradesInsteadOfFailing(t *testing.T) {
	repo := &fakeReader{}
	snapshots := &fakeSnapshots{err: errors.New("redis down")}
	embedder := &fakeEmbedder{vec: []float32{1, 0}}
	c := newTestCascade(repo, snapshots, embedder)

	got, err := c.Search(context.Background(), "anything", testScope())
	if err != nil {
		t.Fatalf("stage failure must not surface: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no candidate, got %+v", got)
	}
}

func TestSearch_EmbedderFailureDegradesInsteadOfFailing(t *testing.T) {
	repo := &fakeReader{}
	snapshots := &fakeSnapshots{
		snapshot: cache.Snapshot{uuid.NewString(): {Embedding: []float32{1}}},
		found:    true,
	}
	embedder := &fakeEmbedder{err: errors.New("embed api down")}
	c := newTestCascade(repo, snapshots, embedder)

	got, err := c.Search(context.Background(), "anything", testScope())
	if err != nil {
		t.Fatalf("stage failure must not surface: %v", err)
	}
	if got != nil {
		t.Fatalf("expected no candidate, got %+v", got)
	}
}

func TestSearch_RejectsInvalidScopeAndEmptyQuery(t *testing.T) {
	c := newTestCascade(&fakeReader{}, nil, nil)

	if _, err := c.Search(context.Background(), "cemento", repository.Scope{}); apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for empty scope, got %v", err)
	}

	orgID := uuid.New()
	userID := uuid.New()
	both := repository.Scope{OrganizationID: &orgID, UserID: &userID}
	if _, err := c.Search(context.Background(), "cemento", both); apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for double scope, got %v", err)
	}

	if _, err := c.Search(context.Background(), "   ", testScope()); apperr.GetKind(err) != apperr.KindValidation {
		t.Fatalf("expected validation error for empty query, got %v", err)
	}
}

func TestSearchVariants_RanksAndDeduplicates(t *testing.T) {
	exact := product(1, "tornillo 4mm", "unidad", 0.5)
	fuzzy := product(2, "tornillo 6mm", "unidad", 0.7)
	repo := &fakeReader{products: []repository.Product{exact, fuzzy}}
	c := newTestCascade(repo, nil, nil)

	got, err := c.SearchVariants(context.Background(), "tornillo 4mm", testScope(), DefaultMaxVariants)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(got), got)
	}
	// The exact hit also scores in the fuzzy stage; it must appear once, as
	// exact, first.
	if got[0].Product.ID != exact.ID || got[0].MatchType != MatchExact || got[0].Confidence != 1.0 {
		t.Fatalf("expected exact candidate first, got %+v", got[0])
	}
	if got[1].Product.ID != fuzzy.ID {
		t.Fatalf("expected fuzzy candidate second, got %+v", got[1])
	}
	if got[1].Confidence >= got[0].Confidence {
		t.Fatalf("expected descending confidence, got %v then %v", got[0].Confidence, got[1].Confidence)
	}
}

func TestSearchVariants_TieBreaksByProductID(t *testing.T) {
	a := product(1, "pintura blanca", "l", 9)
	b := product(2, "pintura blanca mate", "l", 10)
	repo := &fakeReader{products: []repository.Product{b, a}}
	c := newTestCascade(repo, nil, nil)

	got, err := c.SearchVariants(context.Background(), "pintura", testScope(), DefaultMaxVariants)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(got))
	}
	// Both score 1.0 in the fuzzy stage; the lower id wins the tie.
	if got[0].Product.ID != a.ID {
		t.Fatalf("expected id tie-break ascending, got %v first", got[0].Product.ID)
	}
}

func TestSearchVariants_CapsResultCount(t *testing.T) {
	var products []repository.Product
	for i := byte(1); i <= 8; i++ {
		products = append(products, product(i, fmt.Sprintf("clavo %d", i), "unidad", 0.1))
	}
	repo := &fakeReader{products: products}
	c := newTestCascade(repo, nil, nil)

	got, err := c.SearchVariants(context.Background(), "clavo", testScope(), 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(got))
	}
}
