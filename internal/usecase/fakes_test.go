package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"review-responder/internal/domain/entity"
)

const threeResponses = `{"responses":[
 {"response_text":"Thank you for visiting Tony's Diner! We are thrilled you loved the pancakes and our friendly staff. Come back soon.","word_count":19,"key_points":["thanks","pancakes"]},
 {"response_text":"Everyone at Tony's Diner appreciates your kind words about breakfast.","word_count":0,"key_points":["breakfast"]},
 {"response_text":"We're so glad the team at Tony's Diner made your morning. See you again!","word_count":14}
]}`

const positiveSentiment = `{"sentiment":"positive","score":0.92,"confidence":"high","key_emotions":["delight"],"main_concerns":[]}`

// scriptedProvider answers sentiment and generation calls separately.
type scriptedProvider struct {
	mu             sync.Mutex
	sentiment      string
	sentimentErr   error
	generation     string
	generationErr  error
	generationHook func(req entity.LLMRequest) (string, error)
	requests       []entity.LLMRequest
}

func (p *scriptedProvider) Generate(_ context.Context, req entity.LLMRequest) (*entity.LLMResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	if req.SystemPrompt == sentimentSystemPrompt {
		if p.sentimentErr != nil {
			return nil, p.sentimentErr
		}
		return &entity.LLMResponse{Content: p.sentiment, Model: "fake"}, nil
	}
	if p.generationHook != nil {
		content, err := p.generationHook(req)
		if err != nil {
			return nil, err
		}
		return &entity.LLMResponse{Content: content, Model: "fake"}, nil
	}
	if p.generationErr != nil {
		return nil, p.generationErr
	}
	return &entity.LLMResponse{Content: p.generation, Model: "fake"}, nil
}

// countingProvider fails the first failures calls with err.
type countingProvider struct {
	mu       sync.Mutex
	calls    int
	failures int
	err      error
	content  string
}

func (p *countingProvider) Generate(context.Context, entity.LLMRequest) (*entity.LLMResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failures {
		return nil, p.err
	}
	return &entity.LLMResponse{Content: p.content, Model: "counting"}, nil
}

func (p *countingProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type fakeUsageStore struct {
	mu          sync.Mutex
	state       entity.UsageState
	getErr      error
	incrErr     error
	incremented int
}

func (s *fakeUsageStore) GetUsage(context.Context, string) (*entity.UsageState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	st := s.state
	return &st, nil
}

func (s *fakeUsageStore) IncrementUsage(_ context.Context, _ string, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.incrErr != nil {
		return s.incrErr
	}
	s.incremented += n
	s.state.MonthlyUsage += n
	return nil
}

func (s *fakeUsageStore) ResetMonthlyUsage(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.MonthlyUsage = 0
	return 1, nil
}

func (s *fakeUsageStore) Incremented() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.incremented
}

type fakeResponseStore struct {
	mu      sync.Mutex
	saved   []entity.GenerationRecord
	saveErr error
}

func (s *fakeResponseStore) SaveGeneration(_ context.Context, rec *entity.GenerationRecord) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return 0, s.saveErr
	}
	s.saved = append(s.saved, *rec)
	return int64(len(s.saved)), nil
}

func (s *fakeResponseStore) ListGenerations(_ context.Context, userID string, limit, offset int) ([]entity.GenerationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.GenerationRecord
	for _, r := range s.saved {
		if r.UserID == userID {
			out = append(out, r)
		}
	}
	if offset >= len(out) {
		return []entity.GenerationRecord{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeResponseStore) Saved() []entity.GenerationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.GenerationRecord(nil), s.saved...)
}

type fakeAuditLog struct {
	mu     sync.Mutex
	events []entity.AuditEvent
	err    error
}

func (a *fakeAuditLog) RecordAudit(_ context.Context, evt entity.AuditEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.events = append(a.events, evt)
	return nil
}

func (a *fakeAuditLog) Events() []entity.AuditEvent {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]entity.AuditEvent(nil), a.events...)
}

type fakeLimiter struct {
	allow      bool
	retryAfter time.Duration
	err        error
	calls      int
}

func (l *fakeLimiter) Allow(context.Context, string) (bool, time.Duration, error) {
	l.calls++
	return l.allow, l.retryAfter, l.err
}

func (l *fakeLimiter) Limit() int            { return 100 }
func (l *fakeLimiter) Window() time.Duration { return 15 * time.Minute }

type fakeEmbedder struct {
	err error
}

func (e *fakeEmbedder) CreateEmbedding(context.Context, string) ([]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeIndex struct {
	mu      sync.Mutex
	saved   []int64
	results []entity.SimilarResponse
}

func (i *fakeIndex) Save(_ context.Context, rec *entity.GenerationRecord, _ []float32) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.saved = append(i.saved, rec.ID)
	return nil
}

func (i *fakeIndex) Search(_ context.Context, userID string, _ []float32, _ float32, limit int) ([]entity.SimilarResponse, error) {
	if userID == "" {
		return nil, errors.New("user required")
	}
	if len(i.results) > limit {
		return i.results[:limit], nil
	}
	return i.results, nil
}

type fakeTokenStore struct {
	mu          sync.Mutex
	blacklisted map[string]time.Duration
	refresh     map[string]string
	checkErr    error
}

func newFakeTokenStore() *fakeTokenStore {
	return &fakeTokenStore{blacklisted: map[string]time.Duration{}, refresh: map[string]string{}}
}

func (s *fakeTokenStore) Blacklist(_ context.Context, id string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blacklisted[id] = ttl
	return nil
}

func (s *fakeTokenStore) IsBlacklisted(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkErr != nil {
		return false, s.checkErr
	}
	_, ok := s.blacklisted[id]
	return ok, nil
}

func (s *fakeTokenStore) SaveRefreshToken(_ context.Context, userID, id string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh[userID] = id
	return nil
}

func (s *fakeTokenStore) GetRefreshToken(_ context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refresh[userID], nil
}

func (s *fakeTokenStore) DeleteRefreshToken(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refresh, userID)
	return nil
}

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*entity.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: map[string]*entity.User{}}
}

func (s *fakeUserStore) CreateUser(_ context.Context, u *entity.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.Email]; ok {
		return fmt.Errorf("insert user: %w", entity.ErrConflict)
	}
	cp := *u
	s.users[u.Email] = &cp
	return nil
}

func (s *fakeUserStore) GetUserByEmail(_ context.Context, email string) (*entity.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", email, entity.ErrResourceNotFound)
	}
	cp := *u
	return &cp, nil
}
