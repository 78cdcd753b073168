package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kursadbilgin/followupos/internal/domain"
	"github.com/kursadbilgin/followupos/internal/provider"
	"github.com/kursadbilgin/followupos/internal/queue"
	"github.com/kursadbilgin/followupos/internal/repository"
)

const (
	testAgencyID   = "11111111-1111-1111-1111-111111111111"
	testLeadID     = "44444444-4444-4444-4444-444444444444"
	testCampaignID = "55555555-5555-5555-5555-555555555555"
	testMessageID  = "77777777-7777-7777-7777-777777777777"
)

func strPtr(s string) *string { return &s }

func testLead() *domain.Lead {
	return &domain.Lead{
		ID:       testLeadID,
		AgencyID: testAgencyID,
		FullName: "Jordan Lee",
		Email:    strPtr("jordan.lee@example.com"),
		Phone:    strPtr("+15550100001"),
		Status:   "NEW",
	}
}

// memStore is an in-memory message store whose claim is a compare-and-set
// under one mutex, matching the single conditional UPDATE of the SQL store.
type memStore struct {
	mu       sync.Mutex
	messages map[string]*domain.Message
	attempts []domain.MessageAttempt
	calls    int

	completeSentErr  error
	attemptCreateErr error
	markFailedErr    error
	markFailedCalls  int
}

var _ repository.MessageRepository = (*memStore)(nil)

func newMemStore(msgs ...domain.Message) *memStore {
	s := &memStore{messages: map[string]*domain.Message{}}
	for i := range msgs {
		m := msgs[i]
		s.messages[m.ID] = &m
	}
	return s
}

func (s *memStore) attemptRepo() *memAttempts {
	return &memAttempts{store: s}
}

func (s *memStore) get(id string) domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.messages[id]
}

func (s *memStore) attemptsFor(id string) []domain.MessageAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.MessageAttempt, 0)
	for _, a := range s.attempts {
		if a.MessageID == id {
			out = append(out, a)
		}
	}
	return out
}

func (s *memStore) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *memStore) Create(_ context.Context, m *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	stored := *m
	s.messages[m.ID] = &stored
	return nil
}

func (s *memStore) GetByID(_ context.Context, id string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	m, ok := s.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *m
	out.Lead = nil
	return &out, nil
}

func (s *memStore) GetForDispatch(_ context.Context, id string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	m, ok := s.messages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *m
	return &out, nil
}

func (s *memStore) List(_ context.Context, params repository.ListParams) ([]domain.Message, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	out := make([]domain.Message, 0, len(s.messages))
	for _, m := range s.messages {
		if params.Status != nil && m.Status != *params.Status {
			continue
		}
		out = append(out, *m)
	}
	return out, int64(len(out)), nil
}

func (s *memStore) Claim(_ context.Context, id string, now, staleBefore time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	m, ok := s.messages[id]
	if !ok {
		return false, nil
	}
	claimable := m.Status == domain.StatusPending ||
		m.Status == domain.StatusFailed ||
		(m.Status == domain.StatusSending && m.UpdatedAt.Before(staleBefore))
	if !claimable {
		return false, nil
	}
	m.Status = domain.StatusSending
	m.UpdatedAt = now
	return true, nil
}

func (s *memStore) CompleteSent(_ context.Context, attempt *domain.MessageAttempt, sentAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.completeSentErr != nil {
		return s.completeSentErr
	}
	s.attempts = append(s.attempts, *attempt)
	m := s.messages[attempt.MessageID]
	if m == nil || m.Status == domain.StatusSent {
		return nil
	}
	m.Status = domain.StatusSent
	m.SentAt = &sentAt
	m.AttemptCount++
	m.UpdatedAt = sentAt
	return nil
}

func (s *memStore) MarkFailed(_ context.Context, id string, now time.Time, permanent bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.markFailedCalls++
	if s.markFailedErr != nil {
		return s.markFailedErr
	}
	m := s.messages[id]
	if m == nil || m.Status == domain.StatusSent {
		return nil
	}
	m.Status = domain.StatusFailed
	m.AttemptCount++
	m.FailedPermanently = permanent
	m.UpdatedAt = now
	return nil
}

func (s *memStore) GetDueForReconcile(_ context.Context, params repository.ReconcileParams) ([]domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	out := make([]domain.Message, 0)
	for _, m := range s.messages {
		switch {
		case m.Status == domain.StatusPending && m.UpdatedAt.Before(params.PendingBefore),
			m.Status == domain.StatusFailed && m.AttemptCount < params.MaxAttempts && !m.FailedPermanently && m.UpdatedAt.Before(params.PendingBefore),
			m.Status == domain.StatusSending && m.UpdatedAt.Before(params.StaleBefore):
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > params.Limit {
		out = out[:params.Limit]
	}
	return out, nil
}

type memAttempts struct {
	store *memStore
}

var _ repository.AttemptRepository = (*memAttempts)(nil)

func (a *memAttempts) Create(_ context.Context, attempt *domain.MessageAttempt) error {
	a.store.mu.Lock()
	defer a.store.mu.Unlock()
	a.store.calls++
	if a.store.attemptCreateErr != nil {
		return a.store.attemptCreateErr
	}
	a.store.attempts = append(a.store.attempts, *attempt)
	return nil
}

func (a *memAttempts) ListByMessageID(_ context.Context, messageID string) ([]domain.MessageAttempt, error) {
	return a.store.attemptsFor(messageID), nil
}

type fakeLeadReader struct {
	getByIDFn func(ctx context.Context, id string) (*domain.Lead, error)
}

func (f *fakeLeadReader) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	if f.getByIDFn != nil {
		return f.getByIDFn(ctx, id)
	}
	return testLead(), nil
}

type fakePublisher struct {
	mu        sync.Mutex
	publishFn func(ctx context.Context, job queue.Job) error
	published []queue.Job
}

func (f *fakePublisher) Publish(ctx context.Context, job queue.Job) error {
	if f.publishFn != nil {
		if err := f.publishFn(ctx, job); err != nil {
			return err
		}
	}
	f.mu.Lock()
	f.published = append(f.published, job)
	f.mu.Unlock()
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) jobs() []queue.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]queue.Job(nil), f.published...)
}

type fakeGateway struct {
	mu     sync.Mutex
	sendFn func(ctx context.Context, msg provider.Outbound) provider.Result
	sent   []provider.Outbound
}

func (f *fakeGateway) Send(ctx context.Context, msg provider.Outbound) provider.Result {
	f.mu.Lock()
	f.sent = append(f.sent, msg)
	f.mu.Unlock()
	if f.sendFn != nil {
		return f.sendFn(ctx, msg)
	}
	return provider.NewStubGateway().Send(ctx, msg)
}

func (f *fakeGateway) sendCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeRateLimiter struct {
	waitFn func(ctx context.Context, channel domain.Channel) error
	waits  []domain.Channel
}

func (f *fakeRateLimiter) Wait(ctx context.Context, channel domain.Channel) error {
	f.waits = append(f.waits, channel)
	if f.waitFn != nil {
		return f.waitFn(ctx, channel)
	}
	return nil
}

type fakeConsumer struct {
	mu        sync.Mutex
	consumeFn func(ctx context.Context, handler queue.Handler) error
	calls     int
}

func (f *fakeConsumer) Consume(ctx context.Context, handler queue.Handler) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.consumeFn != nil {
		return f.consumeFn(ctx, handler)
	}
	return nil
}

func (f *fakeConsumer) Close() error { return nil }

type fakeMarker struct {
	mu      sync.Mutex
	marked  map[string]bool
	markErr error
	cleared []string
}

func (f *fakeMarker) Mark(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.markErr != nil {
		return false, f.markErr
	}
	if f.marked == nil {
		f.marked = map[string]bool{}
	}
	if f.marked[id] {
		return false, nil
	}
	f.marked[id] = true
	return true, nil
}

func (f *fakeMarker) Clear(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.marked, id)
	f.cleared = append(f.cleared, id)
	return nil
}
