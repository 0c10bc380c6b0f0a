package knowledge

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/blevesearch/bleve"
	chromem "github.com/philippgille/chromem-go"
)

// LLM is the slice of the model provider the knowledge base needs.
type LLM interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
	Answer(ctx context.Context, question string, contextChunks []string) (string, error)
}

const (
	collectionName = "documents"
	rrfK           = 60 // reciprocal-rank-fusion constant
)

// Base answers open questions over the persisted document index: vector
// search through chromem, BM25 through bleve, RRF fusion, then one
// grounded completion.
type Base struct {
	collection *chromem.Collection
	index      bleve.Index
	llm        LLM
	topK       int
	logger     *log.Logger
}

// Open loads the persisted knowledge base under dir. An empty or missing
// index is an error: the service must not start ungrounded.
func Open(dir string, topK int, llm LLM) (*Base, error) {
	db, err := chromem.NewPersistentDB(filepath.Join(dir, "chromem"), false)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}
	collection, err := db.GetOrCreateCollection(collectionName, nil, embeddingFunc(llm))
	if err != nil {
		return nil, fmt.Errorf("opening collection: %w", err)
	}
	if collection.Count() == 0 {
		return nil, fmt.Errorf("knowledge base at %s is empty; ingest documents first", dir)
	}

	blevePath := filepath.Join(dir, "bleve")
	var index bleve.Index
	if _, statErr := os.Stat(blevePath); statErr == nil {
		index, err = bleve.Open(blevePath)
	} else {
		index, err = bleve.New(blevePath, bleve.NewIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("opening keyword index: %w", err)
	}

	return New(collection, index, llm, topK), nil
}

// New wires a knowledge base over already-open indexes. Tests use this
// with in-memory backends.
func New(collection *chromem.Collection, index bleve.Index, llm LLM, topK int) *Base {
	if topK <= 0 {
		topK = 7
	}
	return &Base{
		collection: collection,
		index:      index,
		llm:        llm,
		topK:       topK,
		logger:     log.New(log.Writer(), "[KB] ", log.LstdFlags),
	}
}

// EmbeddingFunc adapts the provider to chromem's per-text contract.
func embeddingFunc(llm LLM) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vecs, err := llm.CreateEmbedding(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vecs) == 0 {
			return nil, fmt.Errorf("no embedding returned")
		}
		return vecs[0], nil
	}
}

// Add indexes one chunk in both backends. Ingestion pipelines and tests
// seed through here.
func Add(ctx context.Context, collection *chromem.Collection, index bleve.Index, id, content string) error {
	if err := collection.AddDocument(ctx, chromem.Document{ID: id, Content: content}); err != nil {
		return err
	}
	return index.Index(id, map[string]string{"content": content})
}

type hit struct {
	id   string
	rank int
}

// Answer retrieves the best-matching chunks and generates one grounded
// reply.
func (b *Base) Answer(ctx context.Context, question string) (string, error) {
	chunks, err := b.retrieve(ctx, question)
	if err != nil {
		return "", fmt.Errorf("retrieving context: %w", err)
	}
	answer, err := b.llm.Answer(ctx, question, chunks)
	if err != nil {
		return "", fmt.Errorf("generating answer: %w", err)
	}
	return answer, nil
}

func (b *Base) retrieve(ctx context.Context, question string) ([]string, error) {
	vecHits, err := b.vectorSearch(ctx, question)
	if err != nil {
		return nil, err
	}
	kwHits, err := b.keywordSearch(question)
	if err != nil {
		// BM25 is the secondary signal; vector hits alone still ground
		// the answer.
		b.logger.Printf("keyword search failed: %v", err)
		kwHits = nil
	}

	fused := fuseRRF(vecHits, kwHits, b.topK)
	chunks := make([]string, 0, len(fused))
	for _, h := range fused {
		doc, err := b.collection.GetByID(ctx, h.id)
		if err != nil {
			continue
		}
		chunks = append(chunks, doc.Content)
	}
	return chunks, nil
}

func (b *Base) vectorSearch(ctx context.Context, question string) ([]hit, error) {
	n := b.topK
	if c := b.collection.Count(); c < n {
		n = c
	}
	if n == 0 {
		return nil, nil
	}
	results, err := b.collection.Query(ctx, question, n, nil, nil)
	if err != nil {
		return nil, err
	}
	hits := make([]hit, 0, len(results))
	for i, r := range results {
		hits = append(hits, hit{id: r.ID, rank: i + 1})
	}
	return hits, nil
}

func (b *Base) keywordSearch(question string) ([]hit, error) {
	query := bleve.NewQueryStringQuery(question)
	req := bleve.NewSearchRequestOptions(query, b.topK, 0, false)
	res, err := b.index.Search(req)
	if err != nil {
		return nil, err
	}
	hits := make([]hit, 0, len(res.Hits))
	for i, h := range res.Hits {
		hits = append(hits, hit{id: h.ID, rank: i + 1})
	}
	return hits, nil
}

func fuseRRF(a, b []hit, k int) []hit {
	type agg struct {
		item  hit
		score float64
	}
	m := map[string]*agg{}
	add := func(list []hit) {
		for _, h := range list {
			x, ok := m[h.id]
			if !ok {
				m[h.id] = &agg{item: h}
				x = m[h.id]
			}
			x.score += 1.0 / float64(rrfK+h.rank)
		}
	}
	add(a)
	add(b)

	items := make([]*agg, 0, len(m))
	for _, v := range m {
		items = append(items, v)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].score > items[j].score })

	if len(items) > k {
		items = items[:k]
	}
	out := make([]hit, 0, len(items))
	for i, x := range items {
		x.item.rank = i + 1
		out = append(out, x.item)
	}
	return out
}
