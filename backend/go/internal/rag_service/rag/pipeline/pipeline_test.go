package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"EdgeRAG/backend/go/internal/llm"
	"EdgeRAG/backend/go/internal/models"
	"EdgeRAG/backend/go/internal/rag_service/rag/schema"
	"EdgeRAG/backend/go/internal/rag_service/rag/splitters"
	"EdgeRAG/backend/go/internal/rag_service/rag/storages/vectorstore"
)

type fakeDetector struct {
	lang models.Language
	err  error
}

func (f *fakeDetector) Detect(ctx context.Context, text string) (models.Language, error) {
	return f.lang, f.err
}

type fakeExtractor struct {
	entities []models.Entity
	err      error
}

func (f *fakeExtractor) Extract(ctx context.Context, text string, lang models.Language) ([]models.Entity, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.entities, nil
}

type fakeEmbedder struct {
	vec     []float32
	failFor string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.failFor != "" && strings.Contains(text, f.failFor) {
		return nil, errors.New("embedding backend down")
	}
	return f.vec, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		vec, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// fakeStore 返回预先设定好稠密分数的候选集,便于精确断言融合逻辑。
type fakeStore struct {
	exists     bool
	candidates []schema.ScoredChunk
	searchErr  error
}

func (f *fakeStore) Exists(ctx context.Context, collection string) (bool, error) {
	return f.exists, nil
}

func (f *fakeStore) EnsureCollection(ctx context.Context, collection string, dim int) error {
	f.exists = true
	return nil
}

func (f *fakeStore) Upsert(ctx context.Context, collection string, chunks []*schema.Chunk) error {
	return nil
}

func (f *fakeStore) Search(ctx context.Context, collection string, vector []float32, limit int) ([]schema.ScoredChunk, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if limit > 0 && len(f.candidates) > limit {
		return f.candidates[:limit], nil
	}
	return f.candidates, nil
}

func (f *fakeStore) Scroll(ctx context.Context, collection string, limit int) ([]*schema.Chunk, error) {
	return nil, nil
}

type recordingDiagnostics struct {
	mu     sync.Mutex
	events []models.DiagnosticEvent
}

func (r *recordingDiagnostics) Publish(ctx context.Context, event models.DiagnosticEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingDiagnostics) stages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Stage
	}
	return out
}

type fakeLLM struct {
	response string
	err      error
	calls    int
	lastMsgs []llm.ChatMessage
}

func (f *fakeLLM) Chat(ctx context.Context, model string, messages []llm.ChatMessage, opts models.GenerateOptions) (string, error) {
	f.calls++
	f.lastMsgs = messages
	return f.response, f.err
}

func retrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		VectorDim:      4,
		CandidateLimit: 20,
		TopK:           10,
		LexicalWeights: map[models.Language]float64{
			models.LanguageEnglish: 0.5,
			models.LanguageArabic:  1.2,
		},
		Collections: map[models.Language]string{
			models.LanguageEnglish: "rag_docs_en",
			models.LanguageArabic:  "rag_docs_ar",
		},
	}
}

func chunk(text string, ents map[string][]string) *schema.Chunk {
	return &schema.Chunk{ID: text, Text: text, Source: "test", Language: models.LanguageEnglish, Entities: ents}
}

func TestSearchEntityOverlapBoostsRanking(t *testing.T) {
	store := &fakeStore{exists: true, candidates: []schema.ScoredChunk{
		{Chunk: chunk("the sky is blue today", nil), Score: 0.9},
		{Chunk: chunk("relativity reshaped physics", map[string][]string{"Person": {"Einstein"}}), Score: 0.85},
	}}
	extractor := &fakeExtractor{entities: []models.Entity{{Text: "Einstein", Category: "Person", Confidence: 0.9}}}
	p := NewRetrievalPipeline(extractor, &fakeEmbedder{vec: []float32{1, 0, 0, 0}}, store, nil, retrievalConfig())

	results, err := p.Search(context.Background(), "Einstein", models.LanguageEnglish)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if !strings.Contains(results[0].Text, "relativity") {
		t.Errorf("entity-matching chunk should rank first, got %q", results[0].Text)
	}
	// 有实体重合时 combined = (base + entity)/2。
	want := (0.85 + 1.0) / 2
	if math.Abs(results[0].Score-want) > 1e-9 {
		t.Errorf("fused score = %f, want %f", results[0].Score, want)
	}
	if len(results[0].MatchedEntities) != 1 || results[0].MatchedEntities[0] != "Einstein" {
		t.Errorf("matched entities = %v", results[0].MatchedEntities)
	}
}

func TestSearchWithoutQueryEntitiesKeepsVectorScore(t *testing.T) {
	// 查询无实体且候选与查询无词法重合时,融合分数就是稠密分数。
	store := &fakeStore{exists: true, candidates: []schema.ScoredChunk{
		{Chunk: chunk("completely unrelated words here", nil), Score: 0.7},
	}}
	p := NewRetrievalPipeline(&fakeExtractor{}, &fakeEmbedder{vec: []float32{1, 0, 0, 0}}, store, nil, retrievalConfig())

	results, err := p.Search(context.Background(), "quantum", models.LanguageEnglish)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Score != results[0].VectorScore {
		t.Errorf("score %f should equal vector score %f", results[0].Score, results[0].VectorScore)
	}
	if results[0].EntityScore != 0 {
		t.Errorf("entity score = %f, want 0", results[0].EntityScore)
	}
}

func TestSearchLexicalWeightByLanguage(t *testing.T) {
	for _, tc := range []struct {
		lang   models.Language
		text   string
		query  string
		weight float64
	}{
		{models.LanguageEnglish, "quantum physics explained simply", "quantum physics", 0.5},
		{models.LanguageArabic, "شرح فيزياء الكم ببساطة", "فيزياء الكم", 1.2},
	} {
		store := &fakeStore{exists: true, candidates: []schema.ScoredChunk{
			{Chunk: chunk(tc.text, nil), Score: 0.6},
		}}
		p := NewRetrievalPipeline(&fakeExtractor{}, &fakeEmbedder{vec: []float32{1, 0, 0, 0}}, store, nil, retrievalConfig())

		results, err := p.Search(context.Background(), tc.query, tc.lang)
		if err != nil {
			t.Fatalf("Search(%s): %v", tc.lang, err)
		}
		if len(results) != 1 {
			t.Fatalf("got %d results, want 1", len(results))
		}
		r := results[0]
		if r.LexicalScore <= 0 {
			t.Fatalf("%s: expected positive lexical score", tc.lang)
		}
		want := r.VectorScore + tc.weight*r.LexicalScore
		if math.Abs(r.Score-want) > 1e-9 {
			t.Errorf("%s: score = %f, want vector + %.1f*lexical = %f", tc.lang, r.Score, tc.weight, want)
		}
	}
}

func TestSearchDeduplicatesByText(t *testing.T) {
	store := &fakeStore{exists: true, candidates: []schema.ScoredChunk{
		{Chunk: chunk("duplicate passage", nil), Score: 0.9},
		{Chunk: chunk("duplicate passage", nil), Score: 0.8},
		{Chunk: chunk("unique passage", nil), Score: 0.7},
	}}
	p := NewRetrievalPipeline(&fakeExtractor{}, &fakeEmbedder{vec: []float32{1, 0, 0, 0}}, store, nil, retrievalConfig())

	results, err := p.Search(context.Background(), "anything", models.LanguageEnglish)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2 after dedup", len(results))
	}
	if results[0].VectorScore != 0.9 {
		t.Errorf("dedup kept vector score %f, want 0.9", results[0].VectorScore)
	}
}

func TestSearchTruncatesToTopK(t *testing.T) {
	var candidates []schema.ScoredChunk
	for i := 0; i < 15; i++ {
		candidates = append(candidates, schema.ScoredChunk{
			Chunk: chunk(fmt.Sprintf("passage number %d", i), nil),
			Score: 1.0 - float64(i)*0.01,
		})
	}
	store := &fakeStore{exists: true, candidates: candidates}
	cfg := retrievalConfig()
	cfg.TopK = 5
	p := NewRetrievalPipeline(&fakeExtractor{}, &fakeEmbedder{vec: []float32{1, 0, 0, 0}}, store, nil, cfg)

	results, err := p.Search(context.Background(), "zzz", models.LanguageEnglish)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("got %d results, want 5", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("results not in descending order at %d", i)
		}
	}
}

func TestSearchDegradesWhenExtractorFails(t *testing.T) {
	store := &fakeStore{exists: true, candidates: []schema.ScoredChunk{
		{Chunk: chunk("some passage", nil), Score: 0.5},
	}}
	diag := &recordingDiagnostics{}
	extractor := &fakeExtractor{err: errors.New("azure unavailable")}
	p := NewRetrievalPipeline(extractor, &fakeEmbedder{vec: []float32{1, 0, 0, 0}}, store, diag, retrievalConfig())

	results, err := p.Search(context.Background(), "anything", models.LanguageEnglish)
	if err != nil {
		t.Fatalf("Search should not fail when entity extraction degrades: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	stages := diag.stages()
	if len(stages) != 1 || stages[0] != models.StageEntityExtract {
		t.Errorf("diagnostic stages = %v", stages)
	}
}

func TestSearchEmptyWhenCollectionAbsent(t *testing.T) {
	diag := &recordingDiagnostics{}
	p := NewRetrievalPipeline(&fakeExtractor{}, &fakeEmbedder{vec: []float32{1, 0, 0, 0}}, &fakeStore{exists: false}, diag, retrievalConfig())

	results, err := p.Search(context.Background(), "anything", models.LanguageEnglish)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("got %d results, want 0", len(results))
	}
	stages := diag.stages()
	if len(stages) != 1 || stages[0] != models.StageCollectionAbsent {
		t.Errorf("diagnostic stages = %v", stages)
	}
}

func TestSearchEmptyWhenEmbeddingFails(t *testing.T) {
	diag := &recordingDiagnostics{}
	store := &fakeStore{exists: true, candidates: []schema.ScoredChunk{
		{Chunk: chunk("some passage", nil), Score: 0.5},
	}}
	p := NewRetrievalPipeline(&fakeExtractor{}, &fakeEmbedder{failFor: "anything"}, store, diag, retrievalConfig())

	results, err := p.Search(context.Background(), "anything", models.LanguageEnglish)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("got %d results, want 0", len(results))
	}
	stages := diag.stages()
	if len(stages) != 1 || stages[0] != models.StageEmbedding {
		t.Errorf("diagnostic stages = %v", stages)
	}
}

func indexingConfig() IndexingConfig {
	return IndexingConfig{
		VectorDim: 4,
		BatchSize: 2,
		Collections: map[models.Language]string{
			models.LanguageEnglish: "rag_docs_en",
			models.LanguageArabic:  "rag_docs_ar",
		},
	}
}

func TestIndexingStoresEnrichedChunks(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	ents := []models.Entity{{Text: "Einstein", Category: "Person", Confidence: 0.9}}
	p := NewIndexingPipeline(
		splitters.NewWordSplitter(30),
		&fakeDetector{lang: models.LanguageEnglish},
		&fakeExtractor{entities: ents},
		&fakeEmbedder{vec: []float32{1, 2}},
		store, nil, indexingConfig(),
	)

	outcome, err := p.Run(context.Background(), "Einstein developed the theory of relativity in the early twentieth century", "doc.txt")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.ChunksTotal == 0 || outcome.ChunksIndexed != outcome.ChunksTotal || outcome.ChunksSkipped != 0 {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}

	stored, err := store.Scroll(context.Background(), "rag_docs_en", 100)
	if err != nil {
		t.Fatalf("Scroll: %v", err)
	}
	if len(stored) != outcome.ChunksIndexed {
		t.Fatalf("stored %d chunks, outcome says %d", len(stored), outcome.ChunksIndexed)
	}
	for _, c := range stored {
		if c.Language != models.LanguageEnglish {
			t.Errorf("chunk language = %s", c.Language)
		}
		if len(c.Entities["Person"]) != 1 {
			t.Errorf("chunk entities = %v", c.Entities)
		}
		// 短向量被零填充到配置的维度。
		if len(c.Embedding) != 4 {
			t.Errorf("embedding dim = %d, want 4", len(c.Embedding))
		}
	}
}

func TestIndexingSkipsChunksWhoseEmbeddingFails(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	diag := &recordingDiagnostics{}
	p := NewIndexingPipeline(
		splitters.NewWordSplitter(20),
		&fakeDetector{lang: models.LanguageEnglish},
		&fakeExtractor{},
		&fakeEmbedder{vec: []float32{1, 0, 0, 0}, failFor: "poison"},
		store, diag, indexingConfig(),
	)

	outcome, err := p.Run(context.Background(), "good words here poison pill chunk trailing content words", "doc.txt")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.ChunksSkipped == 0 {
		t.Fatal("expected at least one skipped chunk")
	}
	if outcome.ChunksIndexed+outcome.ChunksSkipped != outcome.ChunksTotal {
		t.Errorf("outcome does not add up: %+v", outcome)
	}
	found := false
	for _, s := range diag.stages() {
		if s == models.StageEmbedding {
			found = true
		}
	}
	if !found {
		t.Errorf("expected embedding diagnostic, got %v", diag.stages())
	}
}

func TestIndexingFallsBackToEnglishOnDetectorError(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	diag := &recordingDiagnostics{}
	p := NewIndexingPipeline(
		splitters.NewWordSplitter(100),
		&fakeDetector{lang: models.LanguageEnglish, err: errors.New("azure timeout")},
		&fakeExtractor{},
		&fakeEmbedder{vec: []float32{1, 0, 0, 0}},
		store, diag, indexingConfig(),
	)

	outcome, err := p.Run(context.Background(), "short document", "doc.txt")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.ChunksIndexed != 1 {
		t.Fatalf("outcome: %+v", outcome)
	}
	stored, _ := store.Scroll(context.Background(), "rag_docs_en", 10)
	if len(stored) != 1 {
		t.Fatalf("chunk should land in the english collection, got %d", len(stored))
	}
	stages := diag.stages()
	if len(stages) == 0 || stages[0] != models.StageLanguageDetect {
		t.Errorf("diagnostic stages = %v", stages)
	}
}

func TestIndexingRoutesUnknownLanguageToEnglish(t *testing.T) {
	store := vectorstore.NewMemoryStore()
	p := NewIndexingPipeline(
		splitters.NewWordSplitter(100),
		&fakeDetector{lang: models.LanguageUnknown},
		&fakeExtractor{},
		&fakeEmbedder{vec: []float32{1, 0, 0, 0}},
		store, nil, indexingConfig(),
	)

	if _, err := p.Run(context.Background(), "12345 67890", "doc.txt"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	stored, _ := store.Scroll(context.Background(), "rag_docs_en", 10)
	if len(stored) != 1 {
		t.Fatalf("unknown-language chunk should go to english collection")
	}
	if stored[0].Language != models.LanguageEnglish {
		t.Errorf("stored language = %s, want english", stored[0].Language)
	}
}

func TestIndexingEmptyDocument(t *testing.T) {
	p := NewIndexingPipeline(
		splitters.NewWordSplitter(100),
		&fakeDetector{lang: models.LanguageEnglish},
		&fakeExtractor{},
		&fakeEmbedder{vec: []float32{1}},
		vectorstore.NewMemoryStore(), nil, indexingConfig(),
	)
	outcome, err := p.Run(context.Background(), "   ", "doc.txt")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.ChunksTotal != 0 || outcome.ChunksIndexed != 0 {
		t.Errorf("outcome: %+v", outcome)
	}
}

func TestQAUsesLanguageSpecificModel(t *testing.T) {
	client := &fakeLLM{response: "answer"}
	p := NewQAPipeline(client, "en-model", "ar-model")
	docs := []schema.RetrievalResult{{Text: "context passage"}}

	if _, err := p.Run(context.Background(), "question", models.LanguageEnglish, docs, models.DefaultGenerateOptions()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if client.calls != 1 {
		t.Fatalf("llm calls = %d", client.calls)
	}
	if len(client.lastMsgs) != 2 || client.lastMsgs[0].Role != llm.RoleSystem {
		t.Fatalf("unexpected messages: %+v", client.lastMsgs)
	}
	if !strings.Contains(client.lastMsgs[0].Content, "context passage") {
		t.Errorf("system prompt missing context: %q", client.lastMsgs[0].Content)
	}
	if client.lastMsgs[1].Content != "question" {
		t.Errorf("user message = %q", client.lastMsgs[1].Content)
	}
}

func TestQANoResultsSkipsGeneration(t *testing.T) {
	client := &fakeLLM{response: "should not be used"}
	p := NewQAPipeline(client, "en-model", "ar-model")

	answer, err := p.Run(context.Background(), "question", models.LanguageEnglish, nil, models.DefaultGenerateOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if client.calls != 0 {
		t.Errorf("llm should not be called for empty results")
	}
	if !strings.Contains(answer, "could not find") {
		t.Errorf("unexpected no-results answer: %q", answer)
	}
}

func TestFormatAnswerStripsTags(t *testing.T) {
	got := FormatAnswer("<p>Hello <b>world</b></p>", models.LanguageEnglish)
	if got != "Hello world" {
		t.Errorf("got %q", got)
	}
}

func TestFormatAnswerArabic(t *testing.T) {
	input := "• النقطة الأولى\n1. البند الأول\n2. البند الثاني"
	got := FormatAnswer(input, models.LanguageArabic)

	if !strings.HasPrefix(got, `<div dir="rtl" style="text-align: right; direction: rtl;">`) || !strings.HasSuffix(got, "</div>") {
		t.Fatalf("answer not wrapped in RTL container: %q", got)
	}
	if strings.Contains(got, "•") {
		t.Errorf("bullet not normalized: %q", got)
	}
	if !strings.Contains(got, "◼ النقطة الأولى") {
		t.Errorf("missing normalized bullet: %q", got)
	}
	if !strings.Contains(got, "١. البند الأول") || !strings.Contains(got, "٢. البند الثاني") {
		t.Errorf("list numerals not converted: %q", got)
	}
	if strings.Contains(got, "\n") || !strings.Contains(got, "<br>") {
		t.Errorf("newlines not converted to <br>: %q", got)
	}
}

func TestNoResultsMessageArabicIsRTL(t *testing.T) {
	got := NoResultsMessage(models.LanguageArabic)
	if !strings.Contains(got, `dir="rtl"`) {
		t.Errorf("arabic no-results message should be RTL wrapped: %q", got)
	}
}
