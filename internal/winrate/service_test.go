package winrate

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/winrate/internal/contracts"
	"github.com/wonny/winrate/internal/qualitative"
	"github.com/wonny/winrate/pkg/config"
	"github.com/wonny/winrate/pkg/redis"
)

type stubAnalyzer struct {
	calls int
	last  qualitative.AnalysisInput
}

func (a *stubAnalyzer) Analyze(_ context.Context, in qualitative.AnalysisInput) *contracts.QualitativeReport {
	a.calls++
	a.last = in
	return &contracts.QualitativeReport{WinRateScore: 64, Source: contracts.SourceLLM, Provider: "openai", Model: "gpt-test"}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(eventType string, _ interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

// mapCache is an in-process ReportCache
type mapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deleted []string
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string][]byte)}
}

func (c *mapCache) GetOrSet(_ context.Context, key string, dest interface{}, _ time.Duration, fn func() (interface{}, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if data, ok := c.entries[key]; ok {
		return json.Unmarshal(data, dest)
	}
	value, err := fn()
	if err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = data
	return json.Unmarshal(data, dest)
}

func (c *mapCache) DeletePattern(_ context.Context, pattern string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.deleted = append(c.deleted, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	removed := 0
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
			removed++
		}
	}
	return removed, nil
}

// unreachableCache points at a closed port: every read and write fails
func unreachableCache() *redis.Cache {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	return redis.NewCache(redis.Wrap(rdb), "winrate")
}

func newTestService(t *testing.T, analyzer Analyzer, cache ReportCache) (*Service, *MemoryStore, *recordingPublisher) {
	t.Helper()

	store := NewMemoryStore()
	store.AddOpportunity(Opportunity{ID: 1, SalespersonID: 3, CustomerName: "ACME"})
	store.AddOpportunity(Opportunity{ID: 2, SalespersonID: 3, CustomerName: "ACME"})

	svc := NewService(store, analyzer, cache, config.Default().Prediction, zerolog.Nop())
	pub := &recordingPublisher{}
	svc.SetPublisher(pub)
	return svc, store, pub
}

func TestService_PredictAndRecord(t *testing.T) {
	analyzer := &stubAnalyzer{}
	svc, store, pub := newTestService(t, analyzer, nil)

	p, err := svc.PredictAndRecord(context.Background(), RecordRequest{
		Input:     contracts.PredictionInput{OpportunityID: 1, Scores: uniform(70), SalespersonID: 3, CompetitorCount: intPtr(2)},
		CreatedBy: "lee",
	})
	require.NoError(t, err)

	assert.NotZero(t, p.ID)
	assert.Equal(t, "weighted-factor-v1", p.ModelID)
	assert.Nil(t, p.Qualitative)
	assert.Equal(t, 0, analyzer.calls)
	assert.InDelta(t, 70*0.6*1.05, p.PredictedWinRate, 0.01)

	history := store.History()
	require.Len(t, history, 1)
	assert.Equal(t, p.PredictedWinRate, history[0].PredictedWinRate)
	assert.Equal(t, contracts.ResultPending, history[0].ActualResult)
	assert.Equal(t, 2, history[0].Features["competitor_count"])

	assert.Equal(t, []string{EventPredictionCreated}, pub.events)
}

func TestService_PredictAndRecordWithQualitative(t *testing.T) {
	analyzer := &stubAnalyzer{}
	svc, _, _ := newTestService(t, analyzer, nil)

	p, err := svc.PredictAndRecord(context.Background(), RecordRequest{
		Input:       contracts.PredictionInput{OpportunityID: 2, Scores: uniform(55), CustomerName: "ACME"},
		Qualitative: true,
	})
	require.NoError(t, err)

	require.NotNil(t, p.Qualitative)
	assert.Equal(t, 64, p.Qualitative.WinRateScore)
	assert.Equal(t, "weighted-factor-v1+openai:gpt-test", p.ModelID)
	assert.Equal(t, 1, analyzer.calls)
	assert.Equal(t, "ACME", analyzer.last.CustomerName)
	assert.InDelta(t, p.PredictedWinRate/100, analyzer.last.PredictedWinRate, 0.0001)
}

func TestService_PredictAndRecordErrors(t *testing.T) {
	svc, store, pub := newTestService(t, nil, nil)

	_, err := svc.PredictAndRecord(context.Background(), RecordRequest{Input: contracts.PredictionInput{Scores: uniform(50)}})
	assert.ErrorIs(t, err, contracts.ErrValidation)

	_, err = svc.PredictAndRecord(context.Background(), RecordRequest{Input: contracts.PredictionInput{OpportunityID: 404, Scores: uniform(50)}})
	assert.ErrorIs(t, err, contracts.ErrNotFound)

	_, err = svc.PredictAndRecord(context.Background(), RecordRequest{Input: contracts.PredictionInput{OpportunityID: 1, Scores: uniform(120)}})
	assert.ErrorIs(t, err, contracts.ErrValidation)

	assert.Empty(t, store.History())
	assert.Empty(t, pub.events)
}

func TestService_AnalyzeWithoutAnalyzerFallsBack(t *testing.T) {
	svc, _, _ := newTestService(t, nil, nil)

	report, err := svc.Analyze(context.Background(), contracts.PredictionInput{Scores: uniform(60), IsRepeatCustomer: true})
	require.NoError(t, err)

	assert.True(t, report.IsFallback())
	assert.Equal(t, "+fallback", report.ModelSuffix())

	_, err = svc.Analyze(context.Background(), contracts.PredictionInput{Scores: uniform(-1)})
	assert.ErrorIs(t, err, contracts.ErrValidation)
}

func TestService_GradeAndReports(t *testing.T) {
	client, err := redis.New(&config.Config{})
	require.NoError(t, err)
	svc, _, pub := newTestService(t, nil, redis.NewCache(client, "winrate"))
	ctx := context.Background()

	p, err := svc.PredictAndRecord(ctx, RecordRequest{Input: contracts.PredictionInput{OpportunityID: 1, Scores: uniform(90), SalespersonID: 3}})
	require.NoError(t, err)

	rec, err := svc.Grade(ctx, GradeRequest{OpportunityID: 1, Result: contracts.ResultWon, UpdatedBy: "lee"})
	require.NoError(t, err)
	require.NotNil(t, rec.PredictionError)
	assert.InDelta(t, 100-p.PredictedWinRate, *rec.PredictionError, 1e-9)
	assert.Equal(t, []string{EventPredictionCreated, EventOutcomeGraded}, pub.events)

	summary, err := svc.Accuracy(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)

	dist, err := svc.Distribution(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, dist.Total)
	assert.Len(t, dist.Buckets, 5)

	report, err := svc.Validation(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, 1, report.SampleSize)

	_, err = svc.Validation(ctx, 0)
	assert.ErrorIs(t, err, contracts.ErrValidation)

	_, err = svc.Grade(ctx, GradeRequest{OpportunityID: 2, Result: contracts.ResultLost})
	assert.ErrorIs(t, err, contracts.ErrNotFound)
}

func TestService_Lookups(t *testing.T) {
	svc, _, _ := newTestService(t, nil, nil)
	ctx := context.Background()

	first, err := svc.PredictAndRecord(ctx, RecordRequest{Input: contracts.PredictionInput{OpportunityID: 1, Scores: uniform(40)}})
	require.NoError(t, err)
	_, err = svc.PredictAndRecord(ctx, RecordRequest{Input: contracts.PredictionInput{OpportunityID: 1, Scores: uniform(80)}})
	require.NoError(t, err)

	got, err := svc.GetPrediction(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, first.PredictedWinRate, got.PredictedWinRate)

	list, err := svc.ListPredictions(ctx, 1, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	items := svc.BatchPredict(ctx, []contracts.LeadInput{
		{LeadID: 1, PredictionInput: contracts.PredictionInput{Scores: uniform(50)}},
		{LeadID: 2, PredictionInput: contracts.PredictionInput{Scores: uniform(500)}},
	}, 4)
	require.Len(t, items, 2)
	assert.False(t, items[0].Failed())
	assert.True(t, items[1].Failed())
}

func TestService_ReportsSurviveCacheOutage(t *testing.T) {
	svc, _, _ := newTestService(t, nil, unreachableCache())
	ctx := context.Background()

	_, err := svc.PredictAndRecord(ctx, RecordRequest{Input: contracts.PredictionInput{OpportunityID: 1, Scores: uniform(90), SalespersonID: 3}})
	require.NoError(t, err)
	_, err = svc.Grade(ctx, GradeRequest{OpportunityID: 1, Result: contracts.ResultWon})
	require.NoError(t, err)

	summary, err := svc.Accuracy(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)

	dist, err := svc.Distribution(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, dist.Total)

	report, err := svc.Validation(ctx, 6)
	require.NoError(t, err)
	assert.Equal(t, 1, report.SampleSize)
}

func TestService_ImportInvalidatesReports(t *testing.T) {
	cache := newMapCache()
	svc, _, _ := newTestService(t, nil, cache)
	ctx := context.Background()

	before, err := svc.Accuracy(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, before.Total)

	correct := true
	predErr := 25.0
	n, err := svc.InsertHistoryBatch(ctx, []contracts.OutcomeHistoryRecord{
		{OpportunityID: 1, PredictedWinRate: 75, ActualResult: contracts.ResultWon, PredictionError: &predErr, IsCorrect: &correct},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{redis.AccuracyPattern()}, cache.deleted)

	after, err := svc.Accuracy(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, after.Total, "imported rows are visible without waiting for the cache TTL")

	_, err = svc.InsertHistoryBatch(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, cache.deleted, 1, "an empty import leaves the cache alone")
}
