package winrate

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/wonny/winrate/internal/contracts"
)

// MemoryStore is an in-memory implementation of Store.
// Used for tests and for dry runs without a database.
type MemoryStore struct {
	mu            sync.RWMutex
	opportunities map[int64]*Opportunity
	predictions   map[int64]*contracts.Prediction
	history       []*contracts.OutcomeHistoryRecord
	nextPredID    int64
	nextHistID    int64
	now           func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		opportunities: make(map[int64]*Opportunity),
		predictions:   make(map[int64]*contracts.Prediction),
		now:           time.Now,
	}
}

// AddOpportunity inserts or replaces an opportunity.
func (s *MemoryStore) AddOpportunity(o Opportunity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.Outcome == "" {
		o.Outcome = OutcomeOpen
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = s.now()
	}
	s.opportunities[o.ID] = &o
}

// Opportunity returns a copy of the opportunity.
func (s *MemoryStore) Opportunity(id int64) (Opportunity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.opportunities[id]
	if !ok {
		return Opportunity{}, false
	}
	return *o, true
}

// SalespersonOutcomes implements StatsStore.
func (s *MemoryStore) SalespersonOutcomes(_ context.Context, salespersonID int64, since time.Time) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wins, total := 0, 0
	for _, o := range s.opportunities {
		if o.SalespersonID != salespersonID || o.CreatedAt.Before(since) || o.Outcome == OutcomeOpen {
			continue
		}
		total++
		if o.Outcome == OutcomeWon {
			wins++
		}
	}
	return wins, total, nil
}

// CustomerOutcomes implements StatsStore.
func (s *MemoryStore) CustomerOutcomes(_ context.Context, customerID *int64, customerName string) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	coop, wins := 0, 0
	for _, o := range s.opportunities {
		if o.Outcome == OutcomeOpen {
			continue
		}
		if customerID != nil {
			if o.CustomerID == nil || *o.CustomerID != *customerID {
				continue
			}
		} else if !strings.EqualFold(o.CustomerName, customerName) {
			continue
		}
		coop++
		if o.Outcome == OutcomeWon {
			wins++
		}
	}
	return coop, wins, nil
}

// SimilarOutcomes implements StatsStore.
func (s *MemoryStore) SimilarOutcomes(_ context.Context, minScore, maxScore float64) (int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wins, total := 0, 0
	for _, o := range s.opportunities {
		if o.Outcome == OutcomeOpen || o.EvaluationScore == nil {
			continue
		}
		if *o.EvaluationScore < minScore || *o.EvaluationScore > maxScore {
			continue
		}
		total++
		if o.Outcome == OutcomeWon {
			wins++
		}
	}
	return wins, total, nil
}

// RecordPrediction implements PredictionStore.
func (s *MemoryStore) RecordPrediction(_ context.Context, p *contracts.Prediction, features map[string]interface{}) (*contracts.OutcomeHistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.opportunities[p.OpportunityID]; !ok {
		return nil, contracts.NewNotFoundError("opportunity", p.OpportunityID)
	}

	s.nextPredID++
	p.ID = s.nextPredID
	p.CreatedAt = s.now()
	predCopy := *p
	s.predictions[p.ID] = &predCopy

	predID := p.ID
	rec := &contracts.OutcomeHistoryRecord{
		OpportunityID:    p.OpportunityID,
		PredictionID:     &predID,
		PredictedWinRate: p.PredictedWinRate,
		ActualResult:     contracts.ResultPending,
		Features:         features,
		CreatedAt:        p.CreatedAt,
	}
	s.appendHistory(rec)

	out := *rec
	return &out, nil
}

// GetPrediction implements PredictionStore.
func (s *MemoryStore) GetPrediction(_ context.Context, id int64) (*contracts.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.predictions[id]
	if !ok {
		return nil, contracts.NewNotFoundError("prediction", id)
	}
	out := *p
	return &out, nil
}

// ListPredictions implements PredictionStore. Newest first.
func (s *MemoryStore) ListPredictions(_ context.Context, opportunityID int64, limit int) ([]contracts.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []contracts.Prediction
	for _, p := range s.predictions {
		if p.OpportunityID == opportunityID {
			result = append(result, *p)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// UpdateLatestOutcome implements GradeStore.
func (s *MemoryStore) UpdateLatestOutcome(_ context.Context, opportunityID int64, apply func(rec *contracts.OutcomeHistoryRecord) error) (*contracts.OutcomeHistoryRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	latest := s.latestLocked(opportunityID)
	if latest == nil {
		return nil, contracts.NewNotFoundError("win_rate_history", opportunityID)
	}

	// 사본에 적용 후 성공 시에만 반영
	working := *latest
	if err := apply(&working); err != nil {
		return nil, err
	}
	*latest = working

	if o, ok := s.opportunities[opportunityID]; ok {
		o.Outcome = outcomeFor(working.ActualResult)
		o.ClosedAt = working.ResultDate
	}

	out := working
	return &out, nil
}

// HistoryRecords implements GradeStore. Oldest first.
func (s *MemoryStore) HistoryRecords(_ context.Context, filter RecordFilter) ([]contracts.OutcomeHistoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []contracts.OutcomeHistoryRecord
	for _, rec := range s.history {
		if filter.GradedOnly && !rec.ActualResult.IsGraded() {
			continue
		}
		if filter.Start != nil && rec.CreatedAt.Before(*filter.Start) {
			continue
		}
		if filter.End != nil && rec.CreatedAt.After(*filter.End) {
			continue
		}
		result = append(result, *rec)
	}
	return result, nil
}

// InsertHistoryBatch implements HistoryImporter.
func (s *MemoryStore) InsertHistoryBatch(_ context.Context, records []contracts.OutcomeHistoryRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range records {
		rec := records[i]
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = s.now()
		}
		s.appendHistory(&rec)
	}
	return len(records), nil
}

// History returns a copy of every history record in insertion order.
func (s *MemoryStore) History() []contracts.OutcomeHistoryRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]contracts.OutcomeHistoryRecord, len(s.history))
	for i, rec := range s.history {
		out[i] = *rec
	}
	return out
}

func (s *MemoryStore) appendHistory(rec *contracts.OutcomeHistoryRecord) {
	s.nextHistID++
	rec.ID = s.nextHistID
	s.history = append(s.history, rec)
}

// latestLocked returns the newest record by (created_at, id); caller holds the lock
func (s *MemoryStore) latestLocked(opportunityID int64) *contracts.OutcomeHistoryRecord {
	var latest *contracts.OutcomeHistoryRecord
	for _, rec := range s.history {
		if rec.OpportunityID != opportunityID {
			continue
		}
		if latest == nil || rec.CreatedAt.After(latest.CreatedAt) ||
			(rec.CreatedAt.Equal(latest.CreatedAt) && rec.ID > latest.ID) {
			latest = rec
		}
	}
	return latest
}
